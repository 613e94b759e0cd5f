// Package domain contains the core domain models for the build engine:
// the plan, the dependency graph, fingerprints and build reports.
package domain

import (
	"strings"

	"go.trai.ch/zerr"
)

// Target is a single plan row: a named unit of work defined by a command
// expression. Immutable once the plan is loaded.
type Target struct {
	Name InternedString

	// Command is the HCL expression evaluated to produce the target.
	Command string

	// File marks the target as producing files rather than a workspace value.
	// Its fingerprint then tracks the declared output files on disk.
	File bool

	// Trigger overrides the run-level trigger policy for this target.
	// Empty means inherit.
	Trigger Trigger
}

// FuncDef is a user-defined function importable from the environment:
// a parameter list and an HCL expression body. Functions are tracked for
// change detection like any other import but are never built.
type FuncDef struct {
	Name   string
	Params []string
	Body   string
}

// Settings carries the run configuration surface.
type Settings struct {
	// Jobs is the worker count for each stage. Minimum 1.
	Jobs int
	// Trigger is the run-level staleness policy.
	Trigger Trigger
	// StopOnError cancels not-yet-dispatched stages on the first failure.
	StopOnError bool
	// LazyLoad records cache loads as thunks forced on first access instead
	// of reading values eagerly at stage barriers.
	LazyLoad bool
	// FileOutFuncs names the functions whose string-literal arguments are
	// treated as file outputs during dependency extraction.
	FileOutFuncs []string
}

// Plan is an ordered sequence of targets plus the environment of importable
// values and functions they may reference.
type Plan struct {
	Targets []Target

	// Values are import constants supplied by the host, by name. They are
	// decoded into workspace values before a run starts.
	Values map[string]any

	// Funcs are user-defined functions, by name.
	Funcs map[string]FuncDef

	Settings Settings
}

// Validate checks plan invariants: non-empty unique target names.
func (p *Plan) Validate() error {
	seen := make(map[InternedString]struct{}, len(p.Targets))
	for _, t := range p.Targets {
		name := t.Name.String()
		if strings.TrimSpace(name) == "" {
			return zerr.New("target name must not be empty")
		}
		if _, dup := seen[t.Name]; dup {
			return zerr.With(ErrDuplicateTarget, "target_name", name)
		}
		seen[t.Name] = struct{}{}
	}
	return nil
}

// Target returns the target with the given name.
func (p *Plan) Target(name InternedString) (Target, bool) {
	for _, t := range p.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return Target{}, false
}

// HasTarget reports whether the plan defines a target with the given name.
func (p *Plan) HasTarget(name string) bool {
	_, ok := p.Target(NewInternedString(name))
	return ok
}

// TriggerFor resolves the effective trigger for a target, applying the
// per-target override over the run-level policy.
func (p *Plan) TriggerFor(t Target) Trigger {
	if t.Trigger != "" {
		return t.Trigger
	}
	if p.Settings.Trigger != "" {
		return p.Settings.Trigger
	}
	return TriggerAny
}

// DepSet is the result of static dependency extraction over one expression.
// All slices are sorted and free of duplicates.
type DepSet struct {
	// Symbols are free variable references and called function names:
	// candidate target/import dependencies.
	Symbols []string
	// Files are paths marked as file inputs.
	Files []string
	// FileOuts are paths marked as file outputs.
	FileOuts []string
}

// filePrefix namespaces file dependencies so a file named like a variable
// cannot collide with a symbol node.
const filePrefix = "file:"

// FileRef returns the graph node name for a file dependency path.
func FileRef(path string) InternedString {
	return NewInternedString(filePrefix + path)
}

// FilePath extracts the path from a file node name.
// The second return is false if the name is not a file reference.
func FilePath(name InternedString) (string, bool) {
	s := name.String()
	if !strings.HasPrefix(s, filePrefix) {
		return "", false
	}
	return s[len(filePrefix):], true
}
