package ports

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/loomworks/loom/internal/core/domain"
)

// Parser is the static-analysis capability over command expressions.
// Extraction must never evaluate or execute anything.
//
//go:generate go run go.uber.org/mock/mockgen -source=parser.go -destination=mocks/mock_parser.go -package=mocks
type Parser interface {
	// Extract returns the dependency names referenced by the expression
	// source: free symbols, file inputs and declared file outputs.
	// Names in bound are locally bound (function parameters) and are
	// excluded from the symbol set.
	Extract(src string, bound ...string) (domain.DepSet, error)
}

// ValueLookup resolves a dependency name to its current workspace value.
type ValueLookup func(name string) (cty.Value, bool)

// Evaluator evaluates a command expression against the workspace
// environment it was constructed over.
type Evaluator interface {
	// Evaluate parses and evaluates the expression source. Free variables
	// resolve through the evaluator's value lookup; calls resolve through
	// its builtin and user-defined function table.
	Evaluate(src string) (cty.Value, error)
}
