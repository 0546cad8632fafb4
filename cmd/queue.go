package cmd

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/labeler/internal/export"
	"github.com/lehigh-university-libraries/labeler/internal/models"
	"github.com/lehigh-university-libraries/labeler/internal/queue"
)

func newQueueCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and export the labeling queue",
	}

	cmd.AddCommand(newQueueListCmd(opts))
	cmd.AddCommand(newQueueExportCmd(opts))

	return cmd
}

func newQueueListCmd(opts *rootOptions) *cobra.Command {
	var pendingOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued crops with labeling progress",
		Example: `  labeler queue list
  labeler queue list --pending`,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := queue.NewClient(opts.cfg).List(cmd.Context())
			if err != nil {
				return err
			}

			crops := list.Crops
			if pendingOnly {
				crops = pending(crops)
			}

			rows := make([][]string, 0, len(crops))
			for i, c := range crops {
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					c.SourceURI,
					c.BoundingBox.String(),
					yesNo(c.Labeled),
					c.LabelerName,
					yesNo(c.Difficult),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Source", "Bounding box", "Labeled", "Labeler", "Difficult"},
				rows,
				[]columnAlignment{alignRight},
			))
			fmt.Fprintf(out, "%d of %d crops labeled\n", list.TotalLabeled, list.TotalCrops)
			return nil
		},
	}

	cmd.Flags().BoolVar(&pendingOnly, "pending", false, "Only show crops that are not labeled yet")

	return cmd
}

func newQueueExportCmd(opts *rootOptions) *cobra.Command {
	var (
		output      string
		labeledOnly bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a snapshot of the queue to Parquet, JSONL or CSV",
		Long: `Writes the current labeling queue to a file for downstream training-set
tooling. The format follows the output file extension.`,
		Example: `  labeler queue export --output queue.parquet
  labeler queue export --output labeled.csv --labeled`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := export.FormatFromPath(output); err != nil {
				return err
			}

			list, err := queue.NewClient(opts.cfg).List(cmd.Context())
			if err != nil {
				return err
			}

			crops := list.Crops
			if labeledOnly {
				crops = labeled(crops)
			}

			if err := export.WriteFile(output, export.Rows(crops)); err != nil {
				return err
			}
			slog.Info("Exported queue", "path", output, "rows", len(crops))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "queue.parquet", "Output file (.parquet, .jsonl or .csv)")
	cmd.Flags().BoolVar(&labeledOnly, "labeled", false, "Only export crops that have been labeled")

	return cmd
}

func pending(crops []models.Crop) []models.Crop {
	out := make([]models.Crop, 0, len(crops))
	for _, c := range crops {
		if !c.Labeled {
			out = append(out, c)
		}
	}
	return out
}

func labeled(crops []models.Crop) []models.Crop {
	out := make([]models.Crop, 0, len(crops))
	for _, c := range crops {
		if c.Labeled {
			out = append(out, c)
		}
	}
	return out
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
