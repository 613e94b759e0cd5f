package cache

import (
	"context"
	"path/filepath"

	"github.com/grindlemire/graft"

	"github.com/loomworks/loom/internal/core/ports"
)

// NodeID is the unique identifier for the cache store Graft node.
const NodeID graft.ID = "adapter.cache_store"

// DefaultRoot is the cache directory created under the working directory.
const DefaultRoot = ".loom"

func init() {
	graft.Register(graft.Node[ports.Store]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(ctx context.Context) (ports.Store, error) {
			return NewStore(filepath.Join(".", DefaultRoot))
		},
	})
}
