package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/matthewbaird/recordview/internal/record"
	"github.com/matthewbaird/recordview/internal/signals"
	"github.com/matthewbaird/recordview/internal/store"
)

func newJournalCmd(app *App) *cobra.Command {
	var (
		limit      int
		cursor     string
		categories []string
		minWeight  string
		summary    bool
		days       int
	)

	cmd := &cobra.Command{
		Use:   "journal <AREA.id>",
		Short: "Show the screen events recorded for a record (newest first)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := record.ParseRef(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			cfg, err := app.loadConfig()
			if err != nil {
				return writeErr(cmd, err)
			}
			st, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			if summary {
				until := time.Now()
				since := until.AddDate(0, 0, -days)
				entries, _, _, err := st.QueryByRecord(cmd.Context(), ref, store.JournalOptions{
					Since: &since,
					Until: &until,
					Limit: 500,
				})
				if err != nil {
					return writeErr(cmd, err)
				}
				return writeOut(cmd, app, signals.Summarize(entries, ref, since, until, signals.DefaultRules))
			}

			entries, next, total, err := st.QueryByRecord(cmd.Context(), ref, store.JournalOptions{
				Categories: categories,
				MinWeight:  minWeight,
				Limit:      limit,
				Cursor:     cursor,
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"entries":     entries,
				"next_cursor": next,
				"total":       total,
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Max entries to return")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Continue after a previous page")
	cmd.Flags().StringSliceVar(&categories, "category", nil, "Only these categories (repeatable)")
	cmd.Flags().StringVar(&minWeight, "min-weight", "", "Only entries at least this significant (critical|major|minor|info)")
	cmd.Flags().BoolVar(&summary, "summary", false, "Print a health summary instead of entries")
	cmd.Flags().IntVar(&days, "days", 7, "Summary window in days")
	return cmd
}
