package ports

import (
	"context"
	"io"
)

// Telemetry records the progress of a run as a set of vertices, one per
// node being built or scanned.
//
//go:generate go run go.uber.org/mock/mockgen -source=telemetry.go -destination=mocks/mock_telemetry.go -package=mocks
type Telemetry interface {
	// Record starts recording a vertex for the named node.
	Record(ctx context.Context, name string) (context.Context, Vertex)

	// Close flushes and closes the recording session.
	Close() error
}

// Vertex represents one recorded unit of work.
type Vertex interface {
	// Stdout returns a writer for output attached to the vertex.
	Stdout() io.Writer

	// Cached marks the vertex as skipped because it was up to date.
	Cached()

	// Complete marks the vertex as finished, with err nil on success.
	Complete(err error)
}
