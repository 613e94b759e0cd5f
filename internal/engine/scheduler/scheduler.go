// Package scheduler runs outdated targets stage by stage: every member of
// a stage has all of its dependencies in earlier stages, so the members can
// build in parallel, and the scheduler only advances once the whole stage
// has settled.
package scheduler

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/loomworks/loom/internal/core/domain"
	"github.com/loomworks/loom/internal/core/ports"
)

// TaskStatus is the live status of a node during a run.
type TaskStatus string

const (
	// StatusPending indicates the node is waiting for its stage.
	StatusPending TaskStatus = "Pending"
	// StatusRunning indicates the node is currently building.
	StatusRunning TaskStatus = "Running"
	// StatusCompleted indicates the node built successfully.
	StatusCompleted TaskStatus = "Completed"
	// StatusFailed indicates the node's build raised an error.
	StatusFailed TaskStatus = "Failed"
	// StatusSkipped indicates the node was not attempted.
	StatusSkipped TaskStatus = "Skipped"
)

// BuildFunc evaluates one target. The scheduler guarantees every
// dependency finished before it is called.
type BuildFunc func(ctx context.Context, node domain.Node) error

// StageHooks let the run orchestration act at stage barriers, where no
// builds are in flight.
type StageHooks interface {
	// LoadInputs materializes the dependency values of a node about to
	// build. Called single threaded at the barrier; an error fails the
	// node without attempting its build.
	LoadInputs(node domain.Node) error

	// AfterStage runs once a stage has settled. pending names the targets
	// still scheduled in later stages.
	AfterStage(pending []domain.InternedString)
}

// Options control one run.
type Options struct {
	// Jobs caps the number of concurrent builds per stage. Minimum 1.
	Jobs int
	// StopOnError skips all later stages after the first failure.
	// In-flight builds of the failing stage still run to completion.
	StopOnError bool
}

// Scheduler executes build passes over a validated graph.
type Scheduler struct {
	logger    ports.Logger
	telemetry ports.Telemetry

	mu         sync.RWMutex
	taskStatus map[domain.InternedString]TaskStatus
}

// NewScheduler creates a Scheduler.
func NewScheduler(logger ports.Logger, telemetry ports.Telemetry) *Scheduler {
	return &Scheduler{
		logger:     logger,
		telemetry:  telemetry,
		taskStatus: make(map[domain.InternedString]TaskStatus),
	}
}

func (s *Scheduler) updateStatus(name domain.InternedString, status TaskStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taskStatus[name] = status
}

// Status retrieves the live status of a node.
func (s *Scheduler) Status(name domain.InternedString) TaskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.taskStatus[name]
}

// Run builds every target in outdated, marks every node in scanned as
// rehashed and every remaining target as current, and returns the full
// report. Build failures are recorded in the report, not returned; the
// returned error is reserved for context cancellation.
func (s *Scheduler) Run(
	ctx context.Context,
	g *domain.Graph,
	outdated map[domain.InternedString]struct{},
	scanned map[domain.InternedString]struct{},
	hooks StageHooks,
	build BuildFunc,
	opts Options,
) (*domain.BuildReport, error) {
	jobs := opts.Jobs
	if jobs < 1 {
		jobs = 1
	}

	report := domain.NewBuildReport()
	state := &runState{
		scheduler: s,
		graph:     g,
		hooks:     hooks,
		build:     build,
		report:    report,
		failed:    make(map[domain.InternedString]domain.InternedString),
	}

	for name := range outdated {
		s.updateStatus(name, StatusPending)
		report.Outdated = append(report.Outdated, name.String())
	}
	slices.Sort(report.Outdated)

	stages := state.plan(outdated, scanned)
	for i, stage := range stages {
		if err := ctx.Err(); err != nil {
			state.recordCancelled(stages[i:])
			report.Elapsed = time.Since(report.Started)
			return report, err
		}
		if opts.StopOnError && state.hasStopped() {
			state.recordCancelled(stages[i:])
			break
		}

		runnable := state.admit(stage, scanned)
		if len(runnable) > 0 {
			eg, egctx := errgroup.WithContext(ctx)
			eg.SetLimit(jobs)
			for _, node := range runnable {
				eg.Go(func() error {
					state.runOne(egctx, node)
					return nil
				})
			}
			// Stage barrier: errors are recorded per node, not returned.
			_ = eg.Wait()
		}

		// Even a scan-only stage is a barrier: pruning runs here too.
		hooks.AfterStage(state.stillPending(stages[i+1:]))
	}

	for node := range g.Walk() {
		if _, recorded := report.Entries[node.Name.String()]; recorded {
			continue
		}
		if node.Kind == domain.KindTarget {
			report.Record(domain.ReportEntry{Name: node.Name.String(), Status: domain.StatusCurrent})
		}
	}

	report.Elapsed = time.Since(report.Started)
	return report, nil
}

type runState struct {
	scheduler *Scheduler
	graph     *domain.Graph
	hooks     StageHooks
	build     BuildFunc
	report    *domain.BuildReport

	mu      sync.Mutex
	failed  map[domain.InternedString]domain.InternedString // node -> root cause
	stopped bool
}

// plan filters the graph's stages down to the nodes this run touches,
// preserving the stage ordering.
func (state *runState) plan(
	outdated map[domain.InternedString]struct{},
	scanned map[domain.InternedString]struct{},
) [][]domain.InternedString {
	var stages [][]domain.InternedString
	for _, stage := range state.graph.Stages() {
		var members []domain.InternedString
		for _, name := range stage {
			_, isOutdated := outdated[name]
			_, isScanned := scanned[name]
			if isOutdated || isScanned {
				members = append(members, name)
			}
		}
		if len(members) > 0 {
			stages = append(stages, members)
		}
	}
	return stages
}

// admit settles a stage's bookkeeping at the barrier: scans are recorded,
// targets downstream of a failure are skipped, inputs of the rest are
// loaded. It returns the nodes to dispatch.
func (state *runState) admit(
	stage []domain.InternedString,
	scanned map[domain.InternedString]struct{},
) []domain.Node {
	var runnable []domain.Node
	for _, name := range stage {
		node, ok := state.graph.Node(name)
		if !ok {
			continue
		}

		if _, isScan := scanned[name]; isScan {
			state.report.Record(domain.ReportEntry{Name: name.String(), Status: domain.StatusScanned})
			continue
		}

		if cause, hit := state.failedAncestor(node); hit {
			state.skip(node.Name, cause)
			continue
		}

		if err := state.hooks.LoadInputs(node); err != nil {
			state.scheduler.logger.Error(err)
			state.fail(node.Name, node.Name, err)
			continue
		}

		runnable = append(runnable, node)
	}
	return runnable
}

func (state *runState) runOne(ctx context.Context, node domain.Node) {
	name := node.Name
	state.scheduler.updateStatus(name, StatusRunning)

	_, vertex := state.scheduler.telemetry.Record(ctx, name.String())
	t0 := time.Now()
	err := state.build(ctx, node)
	vertex.Complete(err)

	if err != nil {
		state.scheduler.logger.Error(err)
		state.fail(name, name, err)
		return
	}

	state.scheduler.updateStatus(name, StatusCompleted)
	state.mu.Lock()
	state.report.Record(domain.ReportEntry{
		Name:    name.String(),
		Status:  domain.StatusBuilt,
		Elapsed: time.Since(t0),
	})
	state.mu.Unlock()
}

func (state *runState) fail(name, cause domain.InternedString, err error) {
	state.scheduler.updateStatus(name, StatusFailed)
	state.mu.Lock()
	defer state.mu.Unlock()
	state.failed[name] = cause
	state.stopped = true
	state.report.Record(domain.ReportEntry{
		Name:   name.String(),
		Status: domain.StatusFailed,
		Err:    err,
	})
}

func (state *runState) skip(name, cause domain.InternedString) {
	state.scheduler.updateStatus(name, StatusSkipped)
	state.mu.Lock()
	defer state.mu.Unlock()
	state.failed[name] = cause
	state.report.Record(domain.ReportEntry{
		Name:   name.String(),
		Status: domain.StatusSkipped,
		Cause:  cause.String(),
	})
}

func (state *runState) hasStopped() bool {
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.stopped
}

// failedAncestor reports whether any dependency failed or was skipped, and
// returns the root cause so skip chains name the original failure.
func (state *runState) failedAncestor(node domain.Node) (domain.InternedString, bool) {
	state.mu.Lock()
	defer state.mu.Unlock()
	for _, dep := range node.Deps {
		if cause, ok := state.failed[dep]; ok {
			return cause, true
		}
	}
	return domain.InternedString{}, false
}

// recordCancelled marks every target in the remaining stages skipped.
func (state *runState) recordCancelled(stages [][]domain.InternedString) {
	for _, stage := range stages {
		for _, name := range stage {
			node, ok := state.graph.Node(name)
			if !ok || node.Kind != domain.KindTarget {
				continue
			}
			if _, done := state.report.Entries[name.String()]; done {
				continue
			}
			state.scheduler.updateStatus(name, StatusSkipped)
			state.report.Record(domain.ReportEntry{
				Name:   name.String(),
				Status: domain.StatusSkipped,
				Cause:  "run cancelled",
			})
		}
	}
}

// stillPending flattens the targets of the remaining stages that are not
// already failed or skipped.
func (state *runState) stillPending(stages [][]domain.InternedString) []domain.InternedString {
	state.mu.Lock()
	defer state.mu.Unlock()
	var pending []domain.InternedString
	for _, stage := range stages {
		for _, name := range stage {
			node, ok := state.graph.Node(name)
			if !ok || node.Kind != domain.KindTarget {
				continue
			}
			if _, dead := state.failed[name]; dead {
				continue
			}
			pending = append(pending, name)
		}
	}
	return pending
}
