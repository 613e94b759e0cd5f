package domain

import "errors"

// Sentinels are plain stdlib errors so errors.Is matches them through any
// zerr metadata or wrap chain layered on top.
var (
	// ErrDuplicateTarget is returned when a plan defines two targets with the same name.
	ErrDuplicateTarget = errors.New("duplicate target name")

	// ErrNodeAlreadyExists is returned when attempting to add a node with a name that already exists.
	ErrNodeAlreadyExists = errors.New("node already exists")

	// ErrNodeNotFound is returned when a requested node is not found in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrCycleDetected is returned when the dependency graph is not acyclic.
	// No valid build order exists, so the run must abort before any build step.
	ErrCycleDetected = errors.New("cycle detected")

	// ErrMissingDependency is returned when a dependency value is absent from
	// both the workspace environment and the cache.
	ErrMissingDependency = errors.New("missing dependency")

	// ErrUnknownTrigger is returned when a trigger name does not match any policy.
	ErrUnknownTrigger = errors.New("unknown trigger")

	// ErrUnknownTarget is returned when a requested target is not defined in the plan.
	ErrUnknownTarget = errors.New("unknown target")

	// ErrCacheFailure marks adapter-level store failures. Metadata integrity
	// cannot be guaranteed once the store misbehaves, so it aborts the run.
	ErrCacheFailure = errors.New("cache failure")

	// ErrBuildExecutionFailed signals that at least one node failed or was
	// skipped during a run. The CLI maps it to a non-zero exit code.
	ErrBuildExecutionFailed = errors.New("build execution failed")
)
