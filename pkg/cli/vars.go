package cli

import (
	"context"
	"fmt"

	"github.com/platinummonkey/hookrt/pkg/configvars"
	"github.com/spf13/cobra"
)

func newVarsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vars",
		Short: "Resolve configuration variables",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "resolve NAME...",
		Short: "Resolve named variables through the plugin chain",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				rt, err := a.runtime(ctx)
				if err != nil {
					return err
				}
				for _, name := range args {
					value, err := rt.Variables.Resolve(ctx, configvars.Named(name))
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", name, value)
				}
				return nil
			})
		},
	})

	return cmd
}
