package cli

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/uber-go/tally/v4"

	"github.com/matthewbaird/recordview/internal/server"
)

func newServeCmd(app *App) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the record API and the screen WebSocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := app.loadConfig()
			if err != nil {
				return writeErr(cmd, err)
			}
			if port > 0 {
				cfg.Port = port
			}
			specs, err := loadSpecs(cfg.SpecDir)
			if err != nil {
				return writeErr(cmd, err)
			}
			st, err := openStore(ctx, cfg)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			// TODO: report through a prometheus reporter once the metrics
			// endpoint is exposed.
			scope, closer := tally.NewRootScope(tally.ScopeOptions{
				Prefix:   "recordview",
				Reporter: tally.NullStatsReporter,
			}, 10*time.Second)
			defer closer.Close()

			srv, err := server.New(cfg, st, specs, scope)
			if err != nil {
				return writeErr(cmd, err)
			}
			return srv.Run(ctx)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides port)")
	return cmd
}
