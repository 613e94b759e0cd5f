// Package telemetry provides build progress recording.
package telemetry

import (
	"context"
	"io"

	"github.com/loomworks/loom/internal/core/ports"
)

var _ ports.Telemetry = (*Noop)(nil)

// Noop is a Telemetry implementation that records nothing.
type Noop struct{}

// NewNoop creates a no-op telemetry provider.
func NewNoop() *Noop {
	return &Noop{}
}

// Record returns an inert vertex.
func (n *Noop) Record(ctx context.Context, _ string) (context.Context, ports.Vertex) {
	return ctx, noopVertex{}
}

// Close is a no-op.
func (n *Noop) Close() error {
	return nil
}

type noopVertex struct{}

func (noopVertex) Stdout() io.Writer { return io.Discard }
func (noopVertex) Cached()           {}
func (noopVertex) Complete(error)    {}
