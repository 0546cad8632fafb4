package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/labeler/internal/journal"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		limit  int
		source string
		action string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the local commit journal",
		Example: `  labeler history
  labeler history --source s3://bucket/img1.jpg --limit 50
  labeler history --action add`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.cfg.Journal.Path == "" {
				return errors.New("journal is disabled (set LABELER_JOURNAL_PATH or journal.path)")
			}

			store, err := journal.Open(cmd.Context(), opts.cfg.Journal.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), journal.Filter{
				SourceURI: source,
				Action:    journal.Action(action),
				Limit:     limit,
			})
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.RecordedAt.Local().Format(time.DateTime),
					string(e.Action),
					e.SourceURI,
					e.BoundingBox,
					e.LabelerName,
					e.EmbeddingID,
					dirtyFlags(e),
					outcome(e),
				})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"When", "Action", "Source", "Bounding box", "Labeler", "Record", "Dirty", "Outcome"},
				rows,
				nil,
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show (0 for all)")
	cmd.Flags().StringVar(&source, "source", "", "Only show entries for this source image")
	cmd.Flags().StringVar(&action, "action", "", "Only show one action (commit-next, commit-end, add, remove)")

	return cmd
}

func dirtyFlags(e journal.Entry) string {
	switch {
	case e.IncomingDirty && e.MatchedDirty:
		return "both"
	case e.IncomingDirty:
		return "incoming"
	case e.MatchedDirty:
		return "matched"
	default:
		return "-"
	}
}

func outcome(e journal.Entry) string {
	if e.Outcome == journal.OutcomeError {
		return "error: " + e.Error
	}
	return e.Outcome
}
