package envir

import (
	"github.com/zclconf/go-cty/cty"
	"go.trai.ch/zerr"

	"github.com/loomworks/loom/internal/core/domain"
	"github.com/loomworks/loom/internal/core/ports"
)

// Mode selects how dependency values are materialized from the cache.
type Mode int

const (
	// Eager reads and decodes every dependency value at the stage barrier.
	Eager Mode = iota
	// Lazy binds thunks at the barrier; values are read on first access
	// during command evaluation.
	Lazy
)

// Loader populates the workspace with the dependency values a node needs
// before its build runs.
type Loader struct {
	store ports.Store
	mode  Mode
}

// NewLoader creates a Loader over the store.
func NewLoader(store ports.Store, mode Mode) *Loader {
	return &Loader{store: store, mode: mode}
}

// LoadInputs binds every target dependency of the node that is not already
// in the workspace. Only target values live in the cache: file dependencies
// are hashed, never loaded, and imports resolve through the workspace
// environment. A target value absent from both workspace and cache fails
// with ErrMissingDependency.
func (l *Loader) LoadInputs(g *domain.Graph, node domain.Node, ws *Workspace) error {
	for _, dep := range node.Deps {
		if n, ok := g.Node(dep); !ok || n.Kind != domain.KindTarget {
			continue
		}
		name := dep.String()
		if ws.Has(name) {
			continue
		}

		if l.mode == Lazy {
			ok, err := l.store.Exists(name, ports.NamespaceObjects)
			if err != nil {
				return zerr.With(err, "dependency", name)
			}
			if !ok {
				return missingDep(node, name)
			}
			ws.SetLazy(name, l.thunk(name))
			continue
		}

		data, err := l.store.Get(name, ports.NamespaceObjects)
		if err != nil {
			return zerr.With(err, "dependency", name)
		}
		if data == nil {
			return missingDep(node, name)
		}
		v, err := UnmarshalValue(data)
		if err != nil {
			return zerr.With(err, "dependency", name)
		}
		ws.Set(name, v)
	}
	return nil
}

func (l *Loader) thunk(name string) Thunk {
	return func() (cty.Value, error) {
		data, err := l.store.Get(name, ports.NamespaceObjects)
		if err != nil {
			return cty.NilVal, err
		}
		if data == nil {
			return cty.NilVal, domain.ErrMissingDependency
		}
		return UnmarshalValue(data)
	}
}

func missingDep(node domain.Node, dep string) error {
	err := zerr.With(domain.ErrMissingDependency, "node", node.Name.String())
	return zerr.With(err, "dependency", dep)
}
