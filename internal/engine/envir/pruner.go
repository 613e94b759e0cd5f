package envir

import (
	"slices"

	"github.com/loomworks/loom/internal/core/domain"
)

// Prune unbinds every workspace value that no pending node still needs and
// returns the removed names, sorted. A value survives when it is itself
// pending, is reachable from a pending node through import nodes, or is a
// terminal output with no dependents at all.
//
// Reachability recurses through imports only: a value read inside a
// function body must survive until every caller has built. Target
// dependencies are kept but not traversed, anything behind a pending
// target is rebuilt or reloaded before it is read.
func Prune(g *domain.Graph, pending []domain.InternedString, ws *Workspace) []string {
	needed := make(map[string]struct{}, len(pending))
	queue := make([]domain.InternedString, 0, len(pending))
	for _, name := range pending {
		needed[name.String()] = struct{}{}
		queue = append(queue, name)
	}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		node, ok := g.Node(name)
		if !ok {
			continue
		}
		for _, dep := range node.Deps {
			if _, seen := needed[dep.String()]; seen {
				continue
			}
			needed[dep.String()] = struct{}{}
			if n, ok := g.Node(dep); ok && n.Kind == domain.KindImport {
				queue = append(queue, dep)
			}
		}
	}

	var removed []string
	for _, name := range ws.Names() {
		if _, keep := needed[name]; keep {
			continue
		}
		if len(g.Dependents(domain.NewInternedString(name))) == 0 {
			continue
		}
		ws.Delete(name)
		removed = append(removed, name)
	}
	slices.Sort(removed)
	return removed
}
