package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/platinummonkey/hookrt/pkg/plugins/keystore"
	"github.com/spf13/cobra"
)

func newKeystoreCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keystore",
		Short: "Manage the encrypted variable keystore",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored variable names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(_ context.Context, a *app) error {
				if _, err := a.requireKeystorePath(); err != nil {
					return err
				}
				if a.keystore == nil {
					return nil
				}
				for _, name := range a.keystore.Names() {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set NAME",
		Short: "Encrypt and store a variable, prompting for the password and value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				return setKeystoreValue(ctx, a, args[0])
			})
		},
	})

	return cmd
}

func setKeystoreValue(ctx context.Context, a *app, name string) error {
	path, err := a.requireKeystorePath()
	if err != nil {
		return err
	}

	ks := a.keystore
	if ks == nil {
		if ks, err = keystore.New(path, a.logger); err != nil {
			return err
		}
	}

	rt, err := a.runtime(ctx)
	if err != nil {
		return err
	}

	err = rt.Interaction.Uninterrupted(ctx, func(ctx context.Context) error {
		password, err := rt.Interaction.RequestSecretInput(ctx, keystore.PluginID, "Keystore password")
		if err != nil {
			return err
		}
		if password == "" {
			return errors.New("keystore password must not be empty")
		}
		if err := ks.Unlock(password); err != nil {
			return err
		}

		value, err := rt.Interaction.RequestSecretInput(ctx, keystore.PluginID, "Value for "+name)
		if err != nil {
			return err
		}
		return ks.Put(name, value)
	})
	if err != nil {
		return err
	}

	if err := ks.Save(); err != nil {
		return err
	}
	a.logger.WithField("variable", name).Info("Stored variable in keystore")
	return rt.Interaction.DisplayMessage(ctx, keystore.PluginID, fmt.Sprintf("Stored %s in %s", name, displayPath(path)))
}

func displayPath(path string) string {
	if home, err := os.UserHomeDir(); err == nil && len(path) > len(home) && path[:len(home)] == home {
		return "~" + path[len(home):]
	}
	return path
}
