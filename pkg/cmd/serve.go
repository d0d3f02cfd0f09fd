package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/server"
)

const (
	ServeCmdName  = "serve"
	ServeCmdShort = "Train the model and serve predictions"
	ServeCmdLong  = `serve loads the dataset, fits the configured model once and
answers POST /predict until interrupted.`
)

var (
	ServeCmd = &cobra.Command{
		Use:   ServeCmdName,
		Short: ServeCmdShort,
		Long:  ServeCmdLong,
		RunE:  serveCmdFunc(),
	}
)

func init() {
	ServeCmd.Flags().String("addr", ":8080", "listen address")
	viper.BindPFlag("server.address", ServeCmd.Flags().Lookup("addr"))
}

func serveCmdFunc() func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {

		cfg, logger, bundle, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer logger.Sync()

		serve := server.NewHTTPServer(cfg.Server.Address, bundle, logger)

		signalCh := make(chan os.Signal, 1)
		errCh := make(chan error, 1)

		go func() {
			logger.Info("listening", zap.String("addr", cfg.Server.Address))
			if err := serve.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

		select {
		case sig := <-signalCh:
			logger.Info("shutting down the server", zap.String("signal", sig.String()))
		case err := <-errCh:
			logger.Error("server failed", zap.Error(err))
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return serve.Shutdown(ctx)
	}
}
