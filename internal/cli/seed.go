package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/matthewbaird/recordview/internal/seed"
)

func newSeedCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "seed [fixture.yaml]",
		Short: "Load records into an empty database (built-in demo data without a file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fixture := seed.Demo()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return writeErr(cmd, err)
				}
				defer f.Close()
				if fixture, err = seed.Read(f); err != nil {
					return writeErr(cmd, err)
				}
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

			n, err := seed.Apply(cmd.Context(), st, fixture)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]int{"seeded": n})
		},
	}
}
