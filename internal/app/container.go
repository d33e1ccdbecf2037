// Package app wires application services with infrastructure adapters.
package app

import (
	"context"

	"github.com/doeshing/deskrun/internal/application/dispatch"
	"github.com/doeshing/deskrun/internal/application/registry"
	"github.com/doeshing/deskrun/internal/domain"
	"github.com/doeshing/deskrun/internal/infrastructure/config"
	"github.com/doeshing/deskrun/internal/infrastructure/execlog"
	"github.com/doeshing/deskrun/internal/infrastructure/executor"
	"github.com/doeshing/deskrun/internal/pkg/logger"
	"github.com/doeshing/deskrun/internal/ports"
)

// Container holds the dependency graph of the execution core.
type Container struct {
	Config       domain.Config
	ConfigLoader *config.FileLoader
	Dispatcher   *dispatch.Service
	Store        ports.ExecutionStore
	Logger       ports.Logger
}

// BuildContainer constructs the dependency graph.
func BuildContainer(ctx context.Context, verbose bool) (*Container, error) {
	cfgLoader := config.NewFileLoader("")
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.NewStd(verbose || cfg.Verbose)

	var store ports.ExecutionStore
	switch cfg.Log.Store {
	case "jsonl":
		store = execlog.NewFileStore(cfg.Log.Path)
	default:
		store = execlog.NewSQLiteStore(cfg.Log.Path)
	}

	aliases := domain.NewAliasTable()
	for _, def := range cfg.Aliases {
		alias, err := domain.ParseAliasDefinition(def)
		if err != nil {
			log.Warn("skipping malformed alias", map[string]interface{}{
				"definition": def,
				"error":      err.Error(),
			})
			continue
		}
		aliases.Set(alias.Name, alias.Command)
	}

	dispatcher := &dispatch.Service{
		Aliases:  aliases,
		History:  domain.NewHistoryLog(),
		Registry: registry.New(cfg.Execution.RetainTerminal),
		Runner:   executor.New(cfg.Shell, log),
		Store:    store,
		Logger:   log,
	}
	dispatcher.LimitConcurrency(cfg.Execution.MaxConcurrent)

	return &Container{
		Config:       cfg,
		ConfigLoader: cfgLoader,
		Dispatcher:   dispatcher,
		Store:        store,
		Logger:       log,
	}, nil
}
