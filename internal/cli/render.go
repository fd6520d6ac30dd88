package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/uber-go/tally/v4"

	"github.com/matthewbaird/recordview/internal/controller"
	"github.com/matthewbaird/recordview/internal/eventbus"
	"github.com/matthewbaird/recordview/internal/orchestrator"
	"github.com/matthewbaird/recordview/internal/query"
	"github.com/matthewbaird/recordview/internal/record"
	"github.com/matthewbaird/recordview/internal/remote"
	"github.com/matthewbaird/recordview/internal/value"
)

func newRenderCmd(app *App) *cobra.Command {
	var (
		recordRef string
		mode      string
		sets      []string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "render <tab>",
		Short: "Render a screen and print its state and group tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := controller.ParseMode(mode)
			if err != nil {
				return writeErr(cmd, err)
			}
			values, err := parseAssignments(sets)
			if err != nil {
				return writeErr(cmd, err)
			}
			cfg, err := app.loadConfig()
			if err != nil {
				return writeErr(cmd, err)
			}
			specs, err := loadSpecs(cfg.SpecDir)
			if err != nil {
				return writeErr(cmd, err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			st, err := openStore(ctx, cfg)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			var row *record.Row
			if recordRef != "" {
				ref, err := record.ParseRef(recordRef)
				if err != nil {
					return writeErr(cmd, err)
				}
				if row, err = st.Get(ctx, ref); err != nil {
					return writeErr(cmd, err)
				}
			}

			var src query.Source
			if cfg.RemoteURL != "" {
				src = remote.NewClient(cfg.RemoteURL)
			}
			bus := eventbus.New()
			engine := query.NewEngine(st, src, bus)
			factory := controller.NewFactory(controller.Deps{Specs: specs, Engine: engine, Offline: st})
			scr := orchestrator.New(factory, args[0], orchestrator.Options{Mode: m, Scope: tally.NoopScope})
			defer scr.Close()

			if row != nil {
				scr.OpenRecord(ctx, row)
				for _, f := range values.Fields() {
					scr.SetValue(ctx, f.Name, f.Value)
				}
			} else {
				scr.OpenContext(ctx, values)
			}
			if err := bus.RunUntil(ctx, func() bool { return scr.State().Settled() }); err != nil {
				return writeErr(cmd, fmt.Errorf("waiting for %s: %w", args[0], err))
			}

			out := map[string]any{
				"tab":   args[0],
				"mode":  m.String(),
				"state": scr.State().String(),
			}
			if err := scr.Err(); err != nil {
				out["error"] = err.Error()
			}
			if g := scr.Group(); g != nil {
				raw, err := json.Marshal(g)
				if err != nil {
					return writeErr(cmd, err)
				}
				out["group"] = json.RawMessage(raw)
			}
			return writeOut(cmd, app, out)
		},
	}
	cmd.Flags().StringVar(&recordRef, "record", "", "Record to open, as AREA.id")
	cmd.Flags().StringVar(&mode, "mode", "view", "Screen mode (view|new|update)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Context value as key=value (repeatable)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "How long to wait for the screen to settle")
	return cmd
}

func parseAssignments(in []string) (*value.Map, error) {
	m := value.NewMap()
	for _, s := range in {
		k, v, ok := strings.Cut(s, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --set %q: want key=value", s)
		}
		m.Set(k, v)
	}
	return m, nil
}
