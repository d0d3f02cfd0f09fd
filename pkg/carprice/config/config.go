// Package config reads the service settings from flags, environment
// variables and an optional config file through viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/dataset"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/model"
)

// EnvPrefix prefixes every environment override, e.g. CARPRICE_MODEL_KIND.
const EnvPrefix = "CARPRICE"

// Config is the full service configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Dataset DatasetConfig `mapstructure:"dataset"`
	Model   ModelConfig   `mapstructure:"model"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatasetConfig locates the training CSV.
type DatasetConfig struct {
	Path   string `mapstructure:"path"`
	Target string `mapstructure:"target"`
}

// ModelConfig selects and tunes the model variant.
type ModelConfig struct {
	Kind            string  `mapstructure:"kind"`
	Seed            int64   `mapstructure:"seed"`
	TestRatio       float64 `mapstructure:"test_ratio"`
	Trees           int     `mapstructure:"trees"`
	MaxDepth        int     `mapstructure:"max_depth"`
	MinSamplesSplit int     `mapstructure:"min_samples_split"`
	Workers         int     `mapstructure:"workers"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("dataset.path", "car_data.csv")
	v.SetDefault("dataset.target", dataset.DefaultTarget)
	v.SetDefault("model.kind", string(model.Forest))
	v.SetDefault("model.seed", 42)
	v.SetDefault("model.test_ratio", 0.2)
	v.SetDefault("model.trees", 100)
	v.SetDefault("model.max_depth", 0)
	v.SetDefault("model.min_samples_split", 2)
	v.SetDefault("model.workers", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// BindEnv enables CARPRICE_* overrides. SERVER_ADDRESS is still honored for
// the listen address.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v.BindEnv("server.address", EnvPrefix+"_SERVER_ADDRESS", "SERVER_ADDRESS")
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the trainer cannot honor.
func (c Config) Validate() error {
	if _, err := model.ParseKind(c.Model.Kind); err != nil {
		return err
	}
	if c.Model.TestRatio <= 0 || c.Model.TestRatio >= 1 {
		return fmt.Errorf("model.test_ratio must be in (0, 1): %v", c.Model.TestRatio)
	}
	if c.Model.Trees < 1 {
		return fmt.Errorf("model.trees must be positive: %d", c.Model.Trees)
	}
	if c.Model.MinSamplesSplit < 2 {
		return fmt.Errorf("model.min_samples_split must be at least 2: %d", c.Model.MinSamplesSplit)
	}
	if c.Model.MaxDepth < 0 {
		return fmt.Errorf("model.max_depth must not be negative: %d", c.Model.MaxDepth)
	}
	if c.Dataset.Path == "" {
		return fmt.Errorf("dataset.path is required")
	}
	return nil
}

// ModelOptions turns the model section into trainer options, starting from
// the defaults of the selected variant.
func (c Config) ModelOptions() model.Options {
	kind, err := model.ParseKind(c.Model.Kind)
	if err != nil {
		kind = model.Forest
	}
	opts := model.DefaultOptions(kind)
	opts.Seed = c.Model.Seed
	opts.TestRatio = c.Model.TestRatio
	opts.Trees = c.Model.Trees
	opts.MaxDepth = c.Model.MaxDepth
	opts.MinSamplesSplit = c.Model.MinSamplesSplit
	opts.Workers = c.Model.Workers
	return opts
}
