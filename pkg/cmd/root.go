package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/config"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/dataset"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/logging"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/model"
)

const (
	RootCmdName  = "carprice"
	RootCmdShort = "Used car price prediction service"
	RootCmdLong  = `carprice fits a regression model on a used car dataset at startup
and serves price predictions over HTTP.`
)

var cfgFile string

var RootCmd = &cobra.Command{
	Use:          RootCmdName,
	Short:        RootCmdShort,
	Long:         RootCmdLong,
	SilenceUsage: true,
}

func Execute() {

	if err := RootCmd.Execute(); err != nil {
		log.Println(err)
		os.Exit(-1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := RootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	flags.String("dataset", "car_data.csv", "path to the training CSV")
	flags.String("model", string(model.Forest), "model variant: forest or linear")
	flags.Int64("seed", 42, "seed for the train/test split and the forest")
	flags.Int("trees", 100, "number of trees in the forest")
	flags.String("log-level", "info", "log level")
	flags.String("log-format", "json", "log format: json or console")

	viper.BindPFlag("dataset.path", flags.Lookup("dataset"))
	viper.BindPFlag("model.kind", flags.Lookup("model"))
	viper.BindPFlag("model.seed", flags.Lookup("seed"))
	viper.BindPFlag("model.trees", flags.Lookup("trees"))
	viper.BindPFlag("log.level", flags.Lookup("log-level"))
	viper.BindPFlag("log.format", flags.Lookup("log-format"))

	RootCmd.AddCommand(ServeCmd, TrainCmd)
}

func initConfig() {
	config.SetDefaults(viper.GetViper())
	if err := config.BindEnv(viper.GetViper()); err != nil {
		log.Fatalf("failed to bind environment: %v", err)
	}
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			log.Fatalf("failed to read config file: %v", err)
		}
	}
}

// bootstrap loads the configuration, builds the logger and fits the model.
func bootstrap(ctx context.Context) (config.Config, *zap.Logger, *model.Bundle, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return config.Config{}, nil, nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return config.Config{}, nil, nil, err
	}

	logger.Info("loading dataset", zap.String("path", cfg.Dataset.Path))
	ds, err := dataset.Load(cfg.Dataset.Path, cfg.Dataset.Target)
	if err != nil {
		return config.Config{}, nil, nil, err
	}

	bundle, err := model.Train(ctx, ds, cfg.ModelOptions(), logger)
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("failed to train model: %w", err)
	}
	return cfg, logger, bundle, nil
}
