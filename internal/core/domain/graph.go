package domain

import (
	"iter"
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// NodeKind classifies graph nodes.
type NodeKind string

const (
	// KindTarget is a plan-defined node that can be built.
	KindTarget NodeKind = "target"
	// KindImport is an environment value or function: hashed, never built.
	KindImport NodeKind = "import"
	// KindFile is an external file reference: hashed, never built.
	KindFile NodeKind = "file"
)

// Node is a vertex of the dependency graph. An edge node→dep means the
// node's command or body references dep.
type Node struct {
	Name InternedString
	Kind NodeKind
	Deps []InternedString

	// OutFiles lists file paths the node's command declares as outputs.
	// Only set for target nodes.
	OutFiles []string
}

// Graph is the directed dependency graph over targets, imports and files.
// It must be validated (acyclic) before Walk or Stages are used.
type Graph struct {
	nodes          map[InternedString]Node
	executionOrder []InternedString
}

// NewGraph creates a new empty Graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[InternedString]Node),
	}
}

// AddNode adds a node to the graph.
// It returns an error if a node with the same name already exists.
func (g *Graph) AddNode(n *Node) error {
	if _, exists := g.nodes[n.Name]; exists {
		return zerr.With(ErrNodeAlreadyExists, "node", n.Name.String())
	}
	g.nodes[n.Name] = *n
	return nil
}

// Node returns the node with the given name.
func (g *Graph) Node(name InternedString) (Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Names returns all node names in lexical order.
func (g *Graph) Names() []InternedString {
	names := make([]InternedString, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sortNames(names)
	return names
}

// Validate checks for cycles using a depth-first topological sort and
// populates the execution order. Disconnected components are visited in
// lexical order so the resulting order is deterministic.
func (g *Graph) Validate() error {
	g.executionOrder = make([]InternedString, 0, len(g.nodes))
	visited := make(map[InternedString]int, len(g.nodes)) // 0: unvisited, 1: visiting, 2: visited
	var path []InternedString

	var visit func(u InternedString) error
	visit = func(u InternedString) error {
		visited[u] = 1
		path = append(path, u)

		node, exists := g.nodes[u]
		if !exists {
			return zerr.With(ErrNodeNotFound, "node", u.String())
		}

		for _, dep := range node.Deps {
			if visited[dep] == 1 {
				return cycleError(path, dep)
			}
			if visited[dep] == 0 {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		visited[u] = 2
		path = path[:len(path)-1]
		g.executionOrder = append(g.executionOrder, u)
		return nil
	}

	for _, name := range g.Names() {
		if visited[name] == 0 {
			if err := visit(name); err != nil {
				return err
			}
		}
	}

	return nil
}

// cycleError constructs an ErrCycleDetected carrying the cycle's node
// sequence as metadata.
func cycleError(path []InternedString, dep InternedString) error {
	startIdx := 0
	for i, node := range path {
		if node == dep {
			startIdx = i
			break
		}
	}

	var b strings.Builder
	for i := startIdx; i < len(path); i++ {
		b.WriteString(path[i].String())
		b.WriteString(" -> ")
	}
	b.WriteString(dep.String())
	return zerr.With(ErrCycleDetected, "cycle", b.String())
}

// Walk returns an iterator that yields nodes in execution order
// (dependencies before dependents). Validate must have succeeded.
func (g *Graph) Walk() iter.Seq[Node] {
	return func(yield func(Node) bool) {
		for _, name := range g.executionOrder {
			if !yield(g.nodes[name]) {
				return
			}
		}
	}
}

// Dependents returns the names of nodes that directly depend on the given
// node, in lexical order.
func (g *Graph) Dependents(name InternedString) []InternedString {
	var out []InternedString
	for n, node := range g.nodes {
		if slices.Contains(node.Deps, name) {
			out = append(out, n)
		}
	}
	sortNames(out)
	return out
}

// Stages groups nodes into topological stages: each stage is a maximal set
// of nodes with no edges between them whose dependencies all lie in earlier
// stages. Stage members are sorted lexically.
func (g *Graph) Stages() [][]InternedString {
	depth := make(map[InternedString]int, len(g.nodes))
	maxDepth := 0
	for _, name := range g.executionOrder {
		d := 0
		for _, dep := range g.nodes[name].Deps {
			if dd := depth[dep] + 1; dd > d {
				d = dd
			}
		}
		depth[name] = d
		if d > maxDepth {
			maxDepth = d
		}
	}

	if len(g.nodes) == 0 {
		return nil
	}

	stages := make([][]InternedString, maxDepth+1)
	for name, d := range depth {
		stages[d] = append(stages[d], name)
	}
	for _, stage := range stages {
		sortNames(stage)
	}
	return stages
}

// Ancestors returns every node reachable from the given node by following
// dependency edges, in lexical order. The node itself is excluded.
func (g *Graph) Ancestors(name InternedString) []InternedString {
	return g.reach(name, func(n InternedString) []InternedString {
		return g.nodes[n].Deps
	})
}

// Descendants returns every node that transitively depends on the given
// node, in lexical order. The node itself is excluded.
func (g *Graph) Descendants(name InternedString) []InternedString {
	return g.reach(name, g.Dependents)
}

func (g *Graph) reach(start InternedString, next func(InternedString) []InternedString) []InternedString {
	seen := make(map[InternedString]struct{})
	queue := []InternedString{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range next(cur) {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			queue = append(queue, n)
		}
	}
	delete(seen, start)

	out := make([]InternedString, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sortNames(out)
	return out
}

// Subgraph returns the induced subgraph containing the named nodes and all
// of their ancestors. The result is validated by construction but Validate
// must still be called to populate its execution order.
func (g *Graph) Subgraph(names []InternedString) (*Graph, error) {
	keep := make(map[InternedString]struct{})
	for _, name := range names {
		if _, ok := g.nodes[name]; !ok {
			return nil, zerr.With(ErrNodeNotFound, "node", name.String())
		}
		keep[name] = struct{}{}
		for _, a := range g.Ancestors(name) {
			keep[a] = struct{}{}
		}
	}

	sub := NewGraph()
	for name := range keep {
		node := g.nodes[name]
		kept := Node{Name: node.Name, Kind: node.Kind, OutFiles: node.OutFiles}
		for _, dep := range node.Deps {
			if _, ok := keep[dep]; ok {
				kept.Deps = append(kept.Deps, dep)
			}
		}
		if err := sub.AddNode(&kept); err != nil {
			return nil, err
		}
	}
	return sub, nil
}

func sortNames(names []InternedString) {
	slices.SortFunc(names, func(a, b InternedString) int {
		return strings.Compare(a.String(), b.String())
	})
}
