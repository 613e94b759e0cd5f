package telemetry

import (
	"context"

	"github.com/grindlemire/graft"

	"github.com/loomworks/loom/internal/core/ports"
)

// NodeID is the unique identifier for the telemetry Graft node.
const NodeID graft.ID = "adapter.telemetry"

func init() {
	// The noop provider is the default; the progrock recorder is attached
	// explicitly where an interactive session wants live progress.
	graft.Register(graft.Node[ports.Telemetry]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(ctx context.Context) (ports.Telemetry, error) {
			return NewNoop(), nil
		},
	})
}
