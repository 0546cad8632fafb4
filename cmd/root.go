package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/labeler/internal/config"
)

type rootOptions struct {
	configPath string
	cfg        *config.Config
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "labeler",
		Short: "Crop review and metadata reconciliation for object labeling",
		Long: `Labeler walks a queue of object crops, pairs each with its most similar
labeled neighbor, and lets an operator reconcile the two metadata records
before writing the result back to the record store and the labeling queue.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			opts.cfg = cfg
			slog.SetDefault(cfg.Logging.NewLogger(os.Stderr))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a YAML config file")

	// Add subcommands
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newQueueCmd(opts))
	cmd.AddCommand(newHistoryCmd(opts))

	return cmd
}
