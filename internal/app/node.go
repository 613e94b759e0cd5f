package app

import (
	"context"

	"github.com/grindlemire/graft"

	"github.com/loomworks/loom/internal/adapters/config"
	"github.com/loomworks/loom/internal/adapters/logger"
	"github.com/loomworks/loom/internal/core/ports"
	"github.com/loomworks/loom/internal/engine/fingerprint"
	"github.com/loomworks/loom/internal/engine/scheduler"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

// Components bundles the resolved application surface for the CLI.
type Components struct {
	App    *App
	Logger ports.Logger
	Loader ports.PlanLoader
	Store  ports.Store
}

func init() {
	// App Node
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			fingerprint.NodeID,
			scheduler.NodeID,
		},
		Run: func(ctx context.Context) (*App, error) {
			loader, err := graft.Dep[ports.PlanLoader](ctx)
			if err != nil {
				return nil, err
			}

			store, err := graft.Dep[ports.Store](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			engine, err := graft.Dep[*fingerprint.Engine](ctx)
			if err != nil {
				return nil, err
			}

			sched, err := graft.Dep[*scheduler.Scheduler](ctx)
			if err != nil {
				return nil, err
			}

			return New(loader, store, log, engine, sched), nil
		},
	})

	// Components Node
	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
			config.NodeID,
		},
		Run: runComponentsNode,
	})
}

func runComponentsNode(ctx context.Context) (*Components, error) {
	app, err := graft.Dep[*App](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	loader, err := graft.Dep[ports.PlanLoader](ctx)
	if err != nil {
		return nil, err
	}

	store, err := graft.Dep[ports.Store](ctx)
	if err != nil {
		return nil, err
	}

	return &Components{
		App:    app,
		Logger: log,
		Loader: loader,
		Store:  store,
	}, nil
}
