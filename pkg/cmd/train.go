package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

const (
	TrainCmdName  = "train"
	TrainCmdShort = "Fit the model once and print its evaluation"
	TrainCmdLong  = `train loads the dataset, fits the configured model and prints the
model summary, including test-split MSE and R², as JSON.`
)

var (
	TrainCmd = &cobra.Command{
		Use:   TrainCmdName,
		Short: TrainCmdShort,
		Long:  TrainCmdLong,
		RunE:  trainCmdFunc(),
	}
)

func trainCmdFunc() func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {

		_, logger, bundle, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer logger.Sync()

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(bundle.Summary())
	}
}
