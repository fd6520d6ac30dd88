package cli

import (
	"github.com/spf13/cobra"
)

func newSpecsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "specs",
		Short: "Inspect screen definitions",
	}

	validateCmd := &cobra.Command{
		Use:   "validate [path]",
		Short: "Load the definitions and list the tabs they declare",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := app.loadConfig()
				if err != nil {
					return writeErr(cmd, err)
				}
				path = cfg.SpecDir
			}
			reg, err := loadSpecs(path)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"path": path,
				"tabs": reg.TabNames(),
			})
		},
	}

	cmd.AddCommand(validateCmd)
	return cmd
}
