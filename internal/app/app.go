// Package app implements the application layer for loom: it wires the plan
// loader, graph builder, fingerprint engine and scheduler into complete
// runs.
package app

import (
	"context"
	"encoding/json"
	"strings"

	"go.trai.ch/zerr"

	"github.com/loomworks/loom/internal/adapters/hclexpr"
	"github.com/loomworks/loom/internal/core/domain"
	"github.com/loomworks/loom/internal/core/ports"
	"github.com/loomworks/loom/internal/engine/envir"
	"github.com/loomworks/loom/internal/engine/fingerprint"
	"github.com/loomworks/loom/internal/engine/graph"
	"github.com/loomworks/loom/internal/engine/scheduler"
)

// App represents the main application logic.
type App struct {
	loader      ports.PlanLoader
	store       ports.Store
	logger      ports.Logger
	fingerprint *fingerprint.Engine
	scheduler   *scheduler.Scheduler
}

// New creates a new App instance.
func New(
	loader ports.PlanLoader,
	store ports.Store,
	logger ports.Logger,
	engine *fingerprint.Engine,
	sched *scheduler.Scheduler,
) *App {
	return &App{
		loader:      loader,
		store:       store,
		logger:      logger,
		fingerprint: engine,
		scheduler:   sched,
	}
}

// Options select and override what one run does. Zero values inherit the
// plan's settings.
type Options struct {
	// Targets restricts the run to the named targets and their ancestors.
	// Empty means the whole plan.
	Targets []string
	// Jobs overrides the per-stage worker count when positive.
	Jobs int
	// Trigger overrides the run-level staleness policy when non-empty.
	Trigger string
	// StopOnError skips all later stages after the first failure.
	StopOnError bool
}

// Make analyzes the plan and builds everything outdated. The returned
// report is complete even when the run had failures; in that case the error
// is ErrBuildExecutionFailed.
func (a *App) Make(ctx context.Context, opts Options) (*domain.BuildReport, error) {
	run, err := a.prepare(opts)
	if err != nil {
		return nil, err
	}
	if err := a.snapshot(run); err != nil {
		return nil, err
	}

	evaluator := hclexpr.NewEvaluator(run.plan.Funcs, run.plan.Settings.FileOutFuncs, run.ws.Lookup)
	mode := envir.Eager
	if run.plan.Settings.LazyLoad {
		mode = envir.Lazy
	}
	hooks := &runHooks{
		graph:  run.graph,
		ws:     run.ws,
		loader: envir.NewLoader(a.store, mode),
		logger: a.logger,
	}

	a.logger.Info("starting run",
		"outdated", len(run.pass.Outdated()),
		"jobs", run.jobs,
		"trigger", string(run.trigger),
	)

	report, err := a.scheduler.Run(ctx, run.graph, run.pass.OutdatedSet(), run.pass.ScanSet(),
		hooks, a.buildFunc(run, evaluator),
		scheduler.Options{Jobs: run.jobs, StopOnError: run.stopOnError})
	if err != nil {
		return report, err
	}

	a.logger.Info("run complete", "run_id", report.RunID.String(), "summary", report.Summary())
	if report.HasFailures() {
		return report, domain.ErrBuildExecutionFailed
	}
	return report, nil
}

// Outdated analyzes the plan without building and returns the names of
// outdated targets, sorted.
func (a *App) Outdated(ctx context.Context, opts Options) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	run, err := a.prepare(opts)
	if err != nil {
		return nil, err
	}
	return run.pass.Outdated(), nil
}

// Stages returns the stage partition of the dependency graph: targets,
// imports and file references grouped so every stage only depends on
// earlier ones.
func (a *App) Stages(ctx context.Context, opts Options) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	run, err := a.prepare(opts)
	if err != nil {
		return nil, err
	}

	var out [][]string
	for _, stage := range run.graph.Stages() {
		names := make([]string, 0, len(stage))
		for _, n := range stage {
			names = append(names, n.String())
		}
		out = append(out, names)
	}
	return out, nil
}

type runContext struct {
	plan        *domain.Plan
	graph       *domain.Graph
	ws          *envir.Workspace
	pass        *fingerprint.Pass
	jobs        int
	trigger     domain.Trigger
	stopOnError bool
}

// prepare loads the plan, seeds the workspace with the host-supplied
// values, builds the graph and runs the staleness analysis.
func (a *App) prepare(opts Options) (*runContext, error) {
	plan, err := a.loader.Load(".")
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load plan")
	}

	trigger := plan.Settings.Trigger
	if opts.Trigger != "" {
		trigger, err = domain.ParseTrigger(opts.Trigger)
		if err != nil {
			return nil, err
		}
	}
	jobs := plan.Settings.Jobs
	if opts.Jobs > 0 {
		jobs = opts.Jobs
	}
	if jobs < 1 {
		jobs = 1
	}

	ws := envir.NewWorkspace()
	for name, raw := range plan.Values {
		v, err := envir.FromGo(raw)
		if err != nil {
			return nil, zerr.With(err, "name", name)
		}
		ws.Set(name, v)
	}

	parser := hclexpr.NewParser(plan.Settings.FileOutFuncs)
	g, err := graph.NewBuilder(parser, a.logger).Build(plan, &planEnv{plan: plan, ws: ws})
	if err != nil {
		return nil, err
	}

	if len(opts.Targets) > 0 {
		g, err = a.restrict(g, plan, opts.Targets)
		if err != nil {
			return nil, err
		}
	}

	pass, err := a.fingerprint.Analyze(g, plan, ws, trigger)
	if err != nil {
		return nil, err
	}

	return &runContext{
		plan:        plan,
		graph:       g,
		ws:          ws,
		pass:        pass,
		jobs:        jobs,
		trigger:     trigger,
		stopOnError: opts.StopOnError || plan.Settings.StopOnError,
	}, nil
}

// restrict narrows the graph to the requested targets and their ancestors.
func (a *App) restrict(g *domain.Graph, plan *domain.Plan, targets []string) (*domain.Graph, error) {
	names := make([]domain.InternedString, 0, len(targets))
	for _, t := range targets {
		if !plan.HasTarget(t) {
			return nil, zerr.With(domain.ErrUnknownTarget, "target_name", t)
		}
		names = append(names, domain.NewInternedString(t))
	}

	sub, err := g.Subgraph(names)
	if err != nil {
		return nil, err
	}
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	return sub, nil
}

// snapshot persists the effective plan, graph shape and settings of this
// run into the config namespace, so a cache directory is self-describing.
func (a *App) snapshot(run *runContext) error {
	type graphNode struct {
		Name string   `json:"name"`
		Kind string   `json:"kind"`
		Deps []string `json:"deps,omitempty"`
	}

	var nodes []graphNode
	for node := range run.graph.Walk() {
		gn := graphNode{Name: node.Name.String(), Kind: string(node.Kind)}
		for _, d := range node.Deps {
			gn.Deps = append(gn.Deps, d.String())
		}
		nodes = append(nodes, gn)
	}

	entries := map[string]any{
		"plan":  run.plan,
		"graph": nodes,
		"settings": map[string]any{
			"jobs":          run.jobs,
			"trigger":       string(run.trigger),
			"stop_on_error": run.stopOnError,
			"lazy_load":     run.plan.Settings.LazyLoad,
		},
	}
	for key, v := range entries {
		data, err := json.Marshal(v)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to marshal run snapshot"), "key", key)
		}
		if err := a.store.Set(key, ports.NamespaceConfig, data); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to write run snapshot"), "key", key)
		}
	}
	return nil
}

// buildFunc evaluates one target's command, stores the produced value and
// commits its fingerprint.
func (a *App) buildFunc(run *runContext, evaluator ports.Evaluator) scheduler.BuildFunc {
	return func(ctx context.Context, node domain.Node) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, ok := run.plan.Target(node.Name)
		if !ok {
			return zerr.With(domain.ErrNodeNotFound, "node", node.Name.String())
		}

		v, err := evaluator.Evaluate(target.Command)
		if err != nil {
			return zerr.With(err, "target_name", node.Name.String())
		}

		if target.File {
			// File targets produce their declared output files as a side
			// effect; the fingerprint is taken from disk.
			return run.pass.Commit(node, nil)
		}

		data, err := envir.MarshalValue(v)
		if err != nil {
			return zerr.With(err, "target_name", node.Name.String())
		}
		if err := a.store.Set(node.Name.String(), ports.NamespaceObjects, data); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to store build product"), "target_name", node.Name.String())
		}
		run.ws.Set(node.Name.String(), v)
		return run.pass.Commit(node, data)
	}
}

// planEnv adapts the loaded plan and seeded workspace to graph
// construction.
type planEnv struct {
	plan *domain.Plan
	ws   *envir.Workspace
}

func (e *planEnv) HasValue(name string) bool {
	return e.ws.Has(name)
}

func (e *planEnv) Func(name string) (domain.FuncDef, bool) {
	def, ok := e.plan.Funcs[name]
	return def, ok
}

type runHooks struct {
	graph  *domain.Graph
	ws     *envir.Workspace
	loader *envir.Loader
	logger ports.Logger
}

func (h *runHooks) LoadInputs(node domain.Node) error {
	return h.loader.LoadInputs(h.graph, node, h.ws)
}

func (h *runHooks) AfterStage(pending []domain.InternedString) {
	removed := envir.Prune(h.graph, pending, h.ws)
	if len(removed) > 0 {
		h.logger.Debug("pruned workspace values", "removed", strings.Join(removed, ","))
	}
}
