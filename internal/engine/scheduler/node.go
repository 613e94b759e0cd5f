package scheduler

import (
	"context"

	"github.com/grindlemire/graft"

	"github.com/loomworks/loom/internal/adapters/logger"
	"github.com/loomworks/loom/internal/adapters/telemetry"
	"github.com/loomworks/loom/internal/core/ports"
)

// NodeID is the unique identifier for the scheduler Graft node.
const NodeID graft.ID = "engine.scheduler"

func init() {
	graft.Register(graft.Node[*Scheduler]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			logger.NodeID,
			telemetry.NodeID,
		},
		Run: func(ctx context.Context) (*Scheduler, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			tel, err := graft.Dep[ports.Telemetry](ctx)
			if err != nil {
				return nil, err
			}

			return NewScheduler(log, tel), nil
		},
	})
}
