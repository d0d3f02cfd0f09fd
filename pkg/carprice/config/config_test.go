package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/config"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/model"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	require.NoError(t, config.BindEnv(v))
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(newViper(t))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "car_data.csv", cfg.Dataset.Path)
	assert.Equal(t, "price(in lakhs)", cfg.Dataset.Target)
	assert.Equal(t, "forest", cfg.Model.Kind)
	assert.Equal(t, int64(42), cfg.Model.Seed)
	assert.Equal(t, 0.2, cfg.Model.TestRatio)
	assert.Equal(t, 100, cfg.Model.Trees)
	assert.Equal(t, "info", cfg.Log.Level)

	assert.Equal(t, model.DefaultOptions(model.Forest), cfg.ModelOptions())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDRESS", ":9090")
	t.Setenv("CARPRICE_MODEL_KIND", "linear")
	t.Setenv("CARPRICE_MODEL_SEED", "7")
	t.Setenv("CARPRICE_LOG_LEVEL", "debug")

	cfg, err := config.Load(newViper(t))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "debug", cfg.Log.Level)

	opts := cfg.ModelOptions()
	assert.Equal(t, model.Linear, opts.Kind)
	assert.Equal(t, int64(7), opts.Seed)
	assert.False(t, opts.Scale)
	assert.Nil(t, opts.Clamp)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carprice.yaml")
	content := `
dataset:
  path: /data/cars.csv
model:
  trees: 250
  test_ratio: 0.25
server:
  shutdown_timeout: 3s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := newViper(t)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := config.Load(v)
	require.NoError(t, err)
	assert.Equal(t, "/data/cars.csv", cfg.Dataset.Path)
	assert.Equal(t, 250, cfg.ModelOptions().Trees)
	assert.Equal(t, 0.25, cfg.Model.TestRatio)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  interface{}
	}{
		{name: "UnknownKind", key: "model.kind", val: "svm"},
		{name: "ZeroRatio", key: "model.test_ratio", val: 0.0},
		{name: "FullRatio", key: "model.test_ratio", val: 1.0},
		{name: "NoTrees", key: "model.trees", val: 0},
		{name: "TinySplit", key: "model.min_samples_split", val: 1},
		{name: "NegativeDepth", key: "model.max_depth", val: -1},
		{name: "NoDataset", key: "dataset.path", val: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := newViper(t)
			v.Set(tc.key, tc.val)
			_, err := config.Load(v)
			assert.Error(t, err)
		})
	}
}
