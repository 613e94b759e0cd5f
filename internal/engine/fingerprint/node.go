package fingerprint

import (
	"context"

	"github.com/grindlemire/graft"

	"github.com/loomworks/loom/internal/adapters/cache"
	"github.com/loomworks/loom/internal/core/ports"
)

// NodeID is the unique identifier for the fingerprint engine Graft node.
const NodeID graft.ID = "engine.fingerprint"

func init() {
	graft.Register(graft.Node[*Engine]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{cache.NodeID},
		Run: func(ctx context.Context) (*Engine, error) {
			store, err := graft.Dep[ports.Store](ctx)
			if err != nil {
				return nil, err
			}
			return NewEngine(store), nil
		},
	})
}
