package envir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zclconf/go-cty/cty"

	"github.com/loomworks/loom/internal/core/domain"
	"github.com/loomworks/loom/internal/engine/envir"
)

// Three-layer pipeline: raw -> mid -> final. After the middle stage builds,
// raw is no longer needed by anything pending and must be evicted, while
// mid survives as a direct input of final.
func TestPrune_EvictsValuesNoPendingNodeNeeds(t *testing.T) {
	g := buildGraph(t,
		targetNode("raw"),
		targetNode("mid", "raw"),
		targetNode("final", "mid"),
	)

	ws := envir.NewWorkspace()
	ws.Set("raw", cty.StringVal("r"))
	ws.Set("mid", cty.StringVal("m"))

	removed := envir.Prune(g, []domain.InternedString{domain.NewInternedString("final")}, ws)

	assert.Equal(t, []string{"raw"}, removed)
	assert.False(t, ws.Has("raw"))
	assert.True(t, ws.Has("mid"))
}

func TestPrune_KeepsPendingAndTheirInputs(t *testing.T) {
	g := buildGraph(t,
		targetNode("a"),
		targetNode("b", "a"),
		targetNode("c", "b"),
	)

	ws := envir.NewWorkspace()
	ws.Set("a", cty.True)

	pending := []domain.InternedString{
		domain.NewInternedString("b"),
		domain.NewInternedString("c"),
	}
	removed := envir.Prune(g, pending, ws)

	assert.Empty(t, removed)
	assert.True(t, ws.Has("a"))
}

// A value read only inside a function body is reachable from its pending
// caller through the function's import node. It must survive every barrier
// until the caller has built.
func TestPrune_KeepsValuesReachableThroughFunctionImports(t *testing.T) {
	factor := &domain.Node{Name: domain.NewInternedString("factor"), Kind: domain.KindImport}
	scale := &domain.Node{
		Name: domain.NewInternedString("scale"),
		Kind: domain.KindImport,
		Deps: []domain.InternedString{domain.NewInternedString("factor")},
	}
	g := buildGraph(t,
		factor,
		scale,
		targetNode("base"),
		targetNode("scaled", "base", "scale"),
	)

	ws := envir.NewWorkspace()
	ws.Set("factor", cty.NumberIntVal(2))
	ws.Set("base", cty.NumberIntVal(21))

	removed := envir.Prune(g, []domain.InternedString{domain.NewInternedString("scaled")}, ws)

	assert.Empty(t, removed)
	assert.True(t, ws.Has("factor"))
	assert.True(t, ws.Has("base"))
}

// Terminal outputs have no dependents; they stay bound after the final
// stage even though nothing pending needs them.
func TestPrune_RetainsTerminalOutputs(t *testing.T) {
	g := buildGraph(t,
		targetNode("a"),
		targetNode("b", "a"),
	)

	ws := envir.NewWorkspace()
	ws.Set("a", cty.True)
	ws.Set("b", cty.True)

	removed := envir.Prune(g, nil, ws)

	assert.Equal(t, []string{"a"}, removed)
	assert.True(t, ws.Has("b"))
}

func TestPrune_IgnoresHostValuesOutsideGraph(t *testing.T) {
	g := buildGraph(t, targetNode("a"))

	ws := envir.NewWorkspace()
	ws.Set("unrelated", cty.True)

	removed := envir.Prune(g, nil, ws)

	assert.Empty(t, removed)
	assert.True(t, ws.Has("unrelated"))
}
