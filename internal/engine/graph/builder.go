// Package graph assembles the dependency graph over plan targets and all
// transitively reachable imports.
package graph

import (
	"slices"
	"strings"

	"go.trai.ch/zerr"

	"github.com/loomworks/loom/internal/core/domain"
	"github.com/loomworks/loom/internal/core/ports"
)

// Environment exposes the importable symbols of the workspace environment
// to graph construction.
type Environment interface {
	// HasValue reports whether a constant value with the name is importable.
	HasValue(name string) bool
	// Func returns the user-defined function with the name.
	Func(name string) (domain.FuncDef, bool)
}

// Builder constructs the dependency graph by static analysis of every
// target command and every reachable function body.
type Builder struct {
	parser ports.Parser
	logger ports.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(parser ports.Parser, logger ports.Logger) *Builder {
	return &Builder{parser: parser, logger: logger}
}

// Build derives the graph for the plan. It fails with ErrCycleDetected if
// the result is not acyclic.
func (b *Builder) Build(plan *domain.Plan, env Environment) (*domain.Graph, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	g := domain.NewGraph()
	files := make(map[domain.InternedString]struct{})
	imports := make(map[string]struct{})
	var pending []string // import functions whose bodies still need extraction

	for _, target := range plan.Targets {
		deps, err := b.parser.Extract(target.Command)
		if err != nil {
			return nil, zerr.With(err, "target_name", target.Name.String())
		}

		node := domain.Node{
			Name:     target.Name,
			Kind:     domain.KindTarget,
			OutFiles: deps.FileOuts,
		}

		for _, sym := range deps.Symbols {
			dep, ok := b.resolveTargetSymbol(plan, env, target.Name.String(), sym)
			if !ok {
				continue
			}
			node.Deps = append(node.Deps, dep)
			if !plan.HasTarget(sym) {
				if _, seen := imports[sym]; !seen {
					imports[sym] = struct{}{}
					pending = append(pending, sym)
				}
			}
		}

		for _, path := range deps.Files {
			ref := domain.FileRef(path)
			node.Deps = append(node.Deps, ref)
			files[ref] = struct{}{}
		}

		normalizeDeps(&node)
		if err := g.AddNode(&node); err != nil {
			return nil, err
		}
	}

	if err := b.expandImports(g, plan, env, imports, pending, files); err != nil {
		return nil, err
	}

	for ref := range files {
		if err := g.AddNode(&domain.Node{Name: ref, Kind: domain.KindFile}); err != nil {
			return nil, err
		}
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// resolveTargetSymbol resolves a symbol referenced by a target command.
// Plan target names take precedence over same-named imports; unresolvable
// symbols are dropped, they may be base-library calls.
func (b *Builder) resolveTargetSymbol(plan *domain.Plan, env Environment, from, sym string) (domain.InternedString, bool) {
	if plan.HasTarget(sym) {
		if env.HasValue(sym) {
			b.logger.Warn("target shadows an environment import", "name", sym, "referenced_by", from)
		}
		if _, ok := env.Func(sym); ok {
			b.logger.Warn("target shadows an environment function", "name", sym, "referenced_by", from)
		}
		return domain.NewInternedString(sym), true
	}
	if _, ok := env.Func(sym); ok {
		return domain.NewInternedString(sym), true
	}
	if env.HasValue(sym) {
		return domain.NewInternedString(sym), true
	}
	return domain.InternedString{}, false
}

// expandImports recurses into the bodies of referenced functions so a
// function that calls another function depends on it. Function bodies
// resolve only against the environment: imports are scanned before any
// target builds and cannot depend on build products.
func (b *Builder) expandImports(
	g *domain.Graph,
	plan *domain.Plan,
	env Environment,
	imports map[string]struct{},
	pending []string,
	files map[domain.InternedString]struct{},
) error {
	for len(pending) > 0 {
		name := pending[0]
		pending = pending[1:]

		node := domain.Node{
			Name: domain.NewInternedString(name),
			Kind: domain.KindImport,
		}

		def, isFunc := env.Func(name)
		if isFunc {
			deps, err := b.parser.Extract(def.Body, def.Params...)
			if err != nil {
				return zerr.With(err, "func", name)
			}

			for _, sym := range deps.Symbols {
				if sym == name {
					continue
				}
				_, funcOK := env.Func(sym)
				if !funcOK && !env.HasValue(sym) {
					if plan.HasTarget(sym) {
						b.logger.Debug("function references a target; ignored for import scanning", "func", name, "symbol", sym)
					}
					continue
				}
				node.Deps = append(node.Deps, domain.NewInternedString(sym))
				if _, seen := imports[sym]; !seen {
					imports[sym] = struct{}{}
					pending = append(pending, sym)
				}
			}

			for _, path := range deps.Files {
				ref := domain.FileRef(path)
				node.Deps = append(node.Deps, ref)
				files[ref] = struct{}{}
			}
		}

		normalizeDeps(&node)
		if err := g.AddNode(&node); err != nil {
			return err
		}
	}
	return nil
}

func normalizeDeps(node *domain.Node) {
	slices.SortFunc(node.Deps, func(a, b domain.InternedString) int {
		return strings.Compare(a.String(), b.String())
	})
	node.Deps = slices.Compact(node.Deps)
}
