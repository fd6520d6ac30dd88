// Package cli is the recordview command line: the server, screen rendering
// against the local database, and inspection of the journal and the
// offline queue.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matthewbaird/recordview/internal/config"
	"github.com/matthewbaird/recordview/internal/spec"
	"github.com/matthewbaird/recordview/internal/store"
)

type App struct {
	ConfigPath  string
	DatabaseURL string
	SpecPath    string
	RemoteURL   string
	PrettyJSON  bool
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "recordview",
		Short:        "Spec-driven record screens over a local-first record store",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Serve the record API and the screen WebSocket
  recordview serve --config recordview.yaml

  # Render a screen from the local database
  recordview render CompanyDetail --record FI.1

  # Inspect saves that still have to reach the remote side
  recordview queue
`),
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", envOr("RECORDVIEW_CONFIG", ""), "Path to the YAML config file")
	cmd.PersistentFlags().StringVar(&app.DatabaseURL, "db", "", "SQLite DSN (overrides database_url)")
	cmd.PersistentFlags().StringVar(&app.SpecPath, "specs", "", "Spec directory or file (overrides spec_dir)")
	cmd.PersistentFlags().StringVar(&app.RemoteURL, "remote", "", "Record service URL (overrides remote_url)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newSpecsCmd(app))
	cmd.AddCommand(newRenderCmd(app))
	cmd.AddCommand(newJournalCmd(app))
	cmd.AddCommand(newQueueCmd(app))
	cmd.AddCommand(newSyncCmd(app))
	cmd.AddCommand(newSeedCmd(app))

	return cmd
}

// loadConfig loads the config file and applies the flag overrides.
func (app *App) loadConfig() (config.Config, error) {
	cfg, err := config.Load(app.ConfigPath)
	if err != nil {
		return cfg, err
	}
	if app.DatabaseURL != "" {
		cfg.DatabaseURL = app.DatabaseURL
	}
	if app.SpecPath != "" {
		cfg.SpecDir = app.SpecPath
	}
	if app.RemoteURL != "" {
		cfg.RemoteURL = app.RemoteURL
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg config.Config) (*store.Store, error) {
	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return st, nil
}

// loadSpecs reads a single .json/.cue file or a CUE package directory.
func loadSpecs(path string) (*spec.Registry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading specs: %w", err)
	}
	if info.IsDir() {
		return spec.LoadDir(path)
	}
	return spec.LoadFile(path)
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	if app.PrettyJSON {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(map[string]any{"data": v})
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
