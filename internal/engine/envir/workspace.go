// Package envir manages the in-memory workspace environment of a run:
// the named values that commands evaluate against, their loading from the
// cache and their pruning between stages.
package envir

import (
	"slices"
	"sync"

	"github.com/zclconf/go-cty/cty"
	"go.trai.ch/zerr"

	"github.com/loomworks/loom/internal/core/domain"
)

// Thunk produces a value on first access.
type Thunk func() (cty.Value, error)

// Workspace is the mutable value environment of a run. Safe for concurrent
// use; thunks are forced at most once.
type Workspace struct {
	mu     sync.RWMutex
	values map[string]cty.Value
	thunks map[string]Thunk
}

// NewWorkspace creates an empty workspace.
func NewWorkspace() *Workspace {
	return &Workspace{
		values: make(map[string]cty.Value),
		thunks: make(map[string]Thunk),
	}
}

// Set binds a name to a value, replacing any thunk.
func (w *Workspace) Set(name string, v cty.Value) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.values[name] = v
	delete(w.thunks, name)
}

// SetLazy binds a name to a thunk forced on first Get.
func (w *Workspace) SetLazy(name string, t Thunk) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.thunks[name] = t
	delete(w.values, name)
}

// Get returns the value bound to the name, forcing a thunk if necessary.
// It fails with ErrMissingDependency when the name is unbound.
func (w *Workspace) Get(name string) (cty.Value, error) {
	w.mu.RLock()
	v, ok := w.values[name]
	w.mu.RUnlock()
	if ok {
		return v, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if v, ok := w.values[name]; ok {
		return v, nil
	}
	t, ok := w.thunks[name]
	if !ok {
		return cty.NilVal, zerr.With(domain.ErrMissingDependency, "name", name)
	}
	v, err := t()
	if err != nil {
		return cty.NilVal, zerr.With(err, "name", name)
	}
	w.values[name] = v
	delete(w.thunks, name)
	return v, nil
}

// Has reports whether the name is bound, forced or not.
func (w *Workspace) Has(name string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, v := w.values[name]
	_, t := w.thunks[name]
	return v || t
}

// Delete unbinds the name.
func (w *Workspace) Delete(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.values, name)
	delete(w.thunks, name)
}

// Names returns all bound names in lexical order, including unforced thunks.
func (w *Workspace) Names() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, 0, len(w.values)+len(w.thunks))
	for name := range w.values {
		out = append(out, name)
	}
	for name := range w.thunks {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Len returns the number of bound names.
func (w *Workspace) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.values) + len(w.thunks)
}

// Lookup adapts the workspace to expression evaluation. A thunk that fails
// to force reports the name as unbound; the evaluator then surfaces an
// unknown-variable error naming it.
func (w *Workspace) Lookup(name string) (cty.Value, bool) {
	if !w.Has(name) {
		return cty.NilVal, false
	}
	v, err := w.Get(name)
	if err != nil {
		return cty.NilVal, false
	}
	return v, true
}
