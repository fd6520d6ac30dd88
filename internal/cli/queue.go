package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/matthewbaird/recordview/internal/persist"
	"github.com/matthewbaird/recordview/internal/record"
	"github.com/matthewbaird/recordview/internal/remote"
)

type queuedRequest struct {
	ID         string             `json:"id"`
	Attempts   int                `json:"attempts"`
	Operations []record.Operation `json:"operations"`
}

func newQueueCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "List saves waiting to be uploaded (oldest first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return writeErr(cmd, err)
			}
			st, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			pending, err := st.Pending(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			out := make([]queuedRequest, 0, len(pending))
			for _, req := range pending {
				out = append(out, queuedRequest{ID: req.ID, Attempts: req.Attempts, Operations: req.Operations})
			}
			return writeOut(cmd, app, out)
		},
	}
}

func newSyncCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Upload queued saves to the record service once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return writeErr(cmd, err)
			}
			if cfg.RemoteURL == "" {
				return writeErr(cmd, errors.New("sync needs remote_url (or --remote)"))
			}
			st, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			rep, err := persist.NewSyncWorker(st, remote.NewClient(cfg.RemoteURL)).Sync(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]int{
				"synced":  rep.Synced,
				"failed":  rep.Failed,
				"pending": rep.Pending,
			})
		},
	}
}
