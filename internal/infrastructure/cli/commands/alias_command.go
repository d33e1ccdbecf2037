package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/doeshing/deskrun/internal/app"
	"github.com/doeshing/deskrun/internal/domain"
)

// NewAliasCommand creates the alias command with all subcommands. Changes
// are applied to the live table and persisted to the config file.
func NewAliasCommand(container *app.Container) *cobra.Command {
	aliasCmd := &cobra.Command{
		Use:   "alias",
		Short: "Manage command aliases",
	}

	aliasCmd.AddCommand(
		newAliasListCommand(container),
		newAliasAddCommand(container),
		newAliasRemoveCommand(container),
	)

	return aliasCmd
}

func newAliasListCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured aliases",
		RunE: func(cmd *cobra.Command, args []string) error {
			aliases := container.Dispatcher.Aliases.All()
			if len(aliases) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No aliases configured.")
				return nil
			}
			for _, alias := range aliases {
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", alias.Name, alias.Command)
			}
			return nil
		},
	}
}

func newAliasAddCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "add \"name=command\"",
		Short: "Add or overwrite an alias",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			alias, err := domain.ParseAliasDefinition(args[0])
			if err != nil {
				return err
			}
			container.Dispatcher.Aliases.Set(alias.Name, alias.Command)
			if err := persistAliases(container); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "alias %s = %s\n", alias.Name, alias.Command)
			return nil
		},
	}
}

func newAliasRemoveCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "remove name",
		Short: "Remove an alias",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container.Dispatcher.Aliases.Remove(args[0])
			return persistAliases(container)
		},
	}
}

// persistAliases writes the live table back into the config file.
func persistAliases(container *app.Container) error {
	cfg := container.Config
	cfg.Aliases = nil
	for _, alias := range container.Dispatcher.Aliases.All() {
		cfg.Aliases = append(cfg.Aliases, fmt.Sprintf("%s=%s", alias.Name, alias.Command))
	}
	container.Config = cfg
	return container.ConfigLoader.Save(cfg)
}
