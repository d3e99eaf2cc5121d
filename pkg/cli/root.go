package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var appVersion = "dev"

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "hookrt",
		Short:         "hookrt - inspect and exercise hook runtime plugins",
		Long:          "hookrt discovers plugins, checks that their hook categories load, and resolves configuration through their hooks.",
		Version:       appVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newPluginsCommand())
	root.AddCommand(newVarsCommand())
	root.AddCommand(newConfigCommand())
	root.AddCommand(newKeystoreCommand())

	return root
}

// SetVersion sets the version reported by --version.
func SetVersion(version string) {
	appVersion = version
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// withApp builds the app for one command invocation.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cmd.InOrStdin(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	return fn(ctx, a)
}
