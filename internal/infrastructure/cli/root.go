// Package cli wires the cobra command tree around the app container.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/doeshing/deskrun/internal/app"
	"github.com/doeshing/deskrun/internal/infrastructure/cli/commands"
)

// Options holds CLI-level configuration.
type Options struct {
	Verbose bool
}

// NewRootCmd wires the cobra root command.
func NewRootCmd(ctx context.Context, opts Options) (*cobra.Command, error) {
	container, err := app.BuildContainer(ctx, opts.Verbose)
	if err != nil {
		return nil, err
	}

	root := &cobra.Command{
		Use:           "deskrun",
		Short:         "deskrun - external command execution core",
		Long:          "deskrun runs user commands off the interactive thread, with alias resolution, submission history, cancellation and a privilege-elevated variant.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(commands.NewRunCommand(container))
	root.AddCommand(commands.NewShellCommand(container))
	root.AddCommand(commands.NewAliasCommand(container))
	root.AddCommand(commands.NewHistoryCommand(container))
	root.AddCommand(commands.NewVersionCommand())
	return root, nil
}
