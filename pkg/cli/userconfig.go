package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/platinummonkey/hookrt/pkg/userconfig"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Process the user configuration",
	}

	var file string
	process := &cobra.Command{
		Use:   "process",
		Short: "Extend, validate and resolve the user configuration and print the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				path := file
				if path == "" {
					path = a.cfg.Plugins.UserConfigPath
				}

				rt, err := a.runtime(ctx)
				if err != nil {
					return err
				}

				resolved, err := rt.Config.Load(ctx, path)
				var invalid *userconfig.InvalidConfigError
				if errors.As(err, &invalid) {
					for _, v := range invalid.Errors {
						fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", v)
					}
				}
				if err != nil {
					return err
				}

				data, err := yaml.Marshal(resolved)
				if err != nil {
					return fmt.Errorf("failed to encode resolved config: %w", err)
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			})
		},
	}
	process.Flags().StringVarP(&file, "file", "f", "", "user config file (default $HOOKRT_CONFIG or hookrt.yaml)")
	cmd.AddCommand(process)

	return cmd
}
