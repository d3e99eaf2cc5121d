package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/platinummonkey/hookrt/pkg/hre"
	"github.com/spf13/cobra"
)

func newPluginsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Inspect discovered plugins",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List plugins in handler order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				rt, err := a.runtime(ctx)
				if err != nil {
					return err
				}
				return printPlugins(cmd.OutOrStdout(), rt)
			})
		},
	})

	var watch bool
	check := &cobra.Command{
		Use:   "check",
		Short: "Load every declared hook category and report failures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if !watch {
					return checkPlugins(ctx, cmd.OutOrStdout(), a)
				}
				return watchPlugins(ctx, cmd.OutOrStdout(), a)
			})
		},
	}
	check.Flags().BoolVar(&watch, "watch", false, "re-check whenever plugin directories change")
	cmd.AddCommand(check)

	return cmd
}

func printPlugins(out io.Writer, rt *hre.Runtime) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDEPENDENCIES\tCATEGORIES\tDIR")
	for _, p := range rt.Plugins() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			p.ID,
			orDash(strings.Join(p.DependencyIDs(), ",")),
			orDash(strings.Join(p.Categories(), ",")),
			orDash(p.Dir),
		)
	}
	return w.Flush()
}

// checkPlugins reports every category and fails when any did not load.
func checkPlugins(ctx context.Context, out io.Writer, a *app) error {
	rt, err := a.runtime(ctx)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range rt.LoadAll(ctx) {
		if r.Err != nil {
			failed++
			fmt.Fprintf(out, "FAIL  %s/%s: %v\n", r.PluginID, r.Category, r.Err)
			continue
		}
		fmt.Fprintf(out, "ok    %s/%s [%s]\n", r.PluginID, r.Category, strings.Join(r.Hooks, ", "))
	}

	if failed > 0 {
		return fmt.Errorf("%d hook categories failed to load", failed)
	}
	return nil
}

func watchPlugins(ctx context.Context, out io.Writer, a *app) error {
	run := func() {
		if err := checkPlugins(ctx, out, a); err != nil {
			fmt.Fprintf(out, "%v\n", err)
		}
	}

	run()
	err := a.pluginLoader().Watch(ctx, a.cfg.Plugins.WatchDebounce, func() {
		fmt.Fprintln(out, "--- plugins changed, re-checking")
		run()
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
