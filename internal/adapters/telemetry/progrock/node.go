package progrock

import (
	"context"

	"github.com/grindlemire/graft"

	"github.com/loomworks/loom/internal/core/ports"
)

const (
	// NodeID is the unique identifier for the telemetry adapter node.
	// It matches the default provider's ID: import this package instead of
	// the noop adapter to record live progress.
	NodeID graft.ID = "adapter.telemetry"
)

func init() {
	graft.Register(graft.Node[ports.Telemetry]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Telemetry, error) {
			return New(), nil
		},
	})
}
