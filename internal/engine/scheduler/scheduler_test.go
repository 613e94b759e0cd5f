package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"testing/synctest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"

	"github.com/loomworks/loom/internal/adapters/telemetry"
	"github.com/loomworks/loom/internal/core/domain"
	"github.com/loomworks/loom/internal/core/ports/mocks"
	"github.com/loomworks/loom/internal/engine/scheduler"
)

type recordingHooks struct {
	mu      sync.Mutex
	loaded  []string
	loadErr map[string]error
	after   [][]string
}

func newRecordingHooks() *recordingHooks {
	return &recordingHooks{loadErr: make(map[string]error)}
}

func (h *recordingHooks) LoadInputs(node domain.Node) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loaded = append(h.loaded, node.Name.String())
	return h.loadErr[node.Name.String()]
}

func (h *recordingHooks) AfterStage(pending []domain.InternedString) {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(pending))
	for _, p := range pending {
		names = append(names, p.String())
	}
	h.after = append(h.after, names)
}

func quietLogger(t *testing.T) *mocks.MockLogger {
	t.Helper()
	log := mocks.NewMockLogger(gomock.NewController(t))
	log.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()
	log.EXPECT().Info(gomock.Any(), gomock.Any()).AnyTimes()
	log.EXPECT().Warn(gomock.Any(), gomock.Any()).AnyTimes()
	log.EXPECT().Error(gomock.Any()).AnyTimes()
	return log
}

func name(s string) domain.InternedString { return domain.NewInternedString(s) }

func diamond(t *testing.T) *domain.Graph {
	t.Helper()
	g := domain.NewGraph()
	nodes := []*domain.Node{
		{Name: name("base"), Kind: domain.KindTarget},
		{Name: name("left"), Kind: domain.KindTarget, Deps: []domain.InternedString{name("base")}},
		{Name: name("right"), Kind: domain.KindTarget, Deps: []domain.InternedString{name("base")}},
		{Name: name("top"), Kind: domain.KindTarget, Deps: []domain.InternedString{name("left"), name("right")}},
	}
	for _, n := range nodes {
		require.NoError(t, g.AddNode(n))
	}
	require.NoError(t, g.Validate())
	return g
}

func all(g *domain.Graph) map[domain.InternedString]struct{} {
	out := make(map[domain.InternedString]struct{})
	for node := range g.Walk() {
		out[node.Name] = struct{}{}
	}
	return out
}

func TestRun_BuildsDependenciesBeforeDependents(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		g := diamond(t)
		s := scheduler.NewScheduler(quietLogger(t), telemetry.NewNoop())

		var mu sync.Mutex
		var order []string
		build := func(ctx context.Context, node domain.Node) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, node.Name.String())
			return nil
		}

		report, err := s.Run(context.Background(), g, all(g), nil, newRecordingHooks(), build, scheduler.Options{Jobs: 2})
		require.NoError(t, err)

		pos := make(map[string]int, len(order))
		for i, n := range order {
			pos[n] = i
		}
		assert.Less(t, pos["base"], pos["left"])
		assert.Less(t, pos["base"], pos["right"])
		assert.Greater(t, pos["top"], pos["left"])
		assert.Greater(t, pos["top"], pos["right"])

		assert.Equal(t, []string{"base", "left", "right", "top"}, report.WithStatus(domain.StatusBuilt))
		assert.False(t, report.HasFailures())
		assert.Equal(t, scheduler.StatusCompleted, s.Status(name("top")))
	})
}

func TestRun_StageMembersRunInParallel(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		g := diamond(t)
		s := scheduler.NewScheduler(quietLogger(t), telemetry.NewNoop())

		// left and right rendezvous: the stage only completes if both are in
		// flight at the same time.
		meet := make(chan struct{})
		build := func(ctx context.Context, node domain.Node) error {
			switch node.Name.String() {
			case "left":
				meet <- struct{}{}
			case "right":
				<-meet
			}
			return nil
		}

		report, err := s.Run(context.Background(), g, all(g), nil, newRecordingHooks(), build, scheduler.Options{Jobs: 2})
		require.NoError(t, err)
		assert.False(t, report.HasFailures())
	})
}

func TestRun_FailureSkipsDescendantsAndNamesRootCause(t *testing.T) {
	g := diamond(t)
	s := scheduler.NewScheduler(quietLogger(t), telemetry.NewNoop())

	build := func(ctx context.Context, node domain.Node) error {
		if node.Name.String() == "left" {
			return zerr.New("boom")
		}
		return nil
	}

	report, err := s.Run(context.Background(), g, all(g), nil, newRecordingHooks(), build, scheduler.Options{Jobs: 2})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFailed, report.Entries["left"].Status)
	assert.Equal(t, domain.StatusBuilt, report.Entries["right"].Status)
	assert.Equal(t, domain.StatusSkipped, report.Entries["top"].Status)
	assert.Equal(t, "left", report.Entries["top"].Cause)
	assert.True(t, report.HasFailures())
}

func TestRun_SkipCauseNamesOriginalFailureThroughChains(t *testing.T) {
	g := domain.NewGraph()
	require.NoError(t, g.AddNode(&domain.Node{Name: name("a"), Kind: domain.KindTarget}))
	require.NoError(t, g.AddNode(&domain.Node{Name: name("b"), Kind: domain.KindTarget, Deps: []domain.InternedString{name("a")}}))
	require.NoError(t, g.AddNode(&domain.Node{Name: name("c"), Kind: domain.KindTarget, Deps: []domain.InternedString{name("b")}}))
	require.NoError(t, g.Validate())

	s := scheduler.NewScheduler(quietLogger(t), telemetry.NewNoop())
	build := func(ctx context.Context, node domain.Node) error {
		return zerr.New("boom")
	}

	report, err := s.Run(context.Background(), g, all(g), nil, newRecordingHooks(), build, scheduler.Options{Jobs: 1})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFailed, report.Entries["a"].Status)
	assert.Equal(t, "a", report.Entries["b"].Cause)
	assert.Equal(t, "a", report.Entries["c"].Cause)
}

func TestRun_StopOnErrorCancelsLaterStages(t *testing.T) {
	g := diamond(t)
	s := scheduler.NewScheduler(quietLogger(t), telemetry.NewNoop())

	build := func(ctx context.Context, node domain.Node) error {
		if node.Name.String() == "base" {
			return zerr.New("boom")
		}
		return nil
	}

	report, err := s.Run(context.Background(), g, all(g), nil, newRecordingHooks(), build,
		scheduler.Options{Jobs: 2, StopOnError: true})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFailed, report.Entries["base"].Status)
	for _, n := range []string{"left", "right", "top"} {
		assert.Equal(t, domain.StatusSkipped, report.Entries[n].Status, n)
	}
}

func TestRun_LoadErrorFailsNodeWithoutBuilding(t *testing.T) {
	g := diamond(t)
	s := scheduler.NewScheduler(quietLogger(t), telemetry.NewNoop())

	hooks := newRecordingHooks()
	hooks.loadErr["left"] = zerr.With(domain.ErrMissingDependency, "dependency", "base")

	var mu sync.Mutex
	built := make(map[string]bool)
	build := func(ctx context.Context, node domain.Node) error {
		mu.Lock()
		defer mu.Unlock()
		built[node.Name.String()] = true
		return nil
	}

	report, err := s.Run(context.Background(), g, all(g), nil, hooks, build, scheduler.Options{Jobs: 2})
	require.NoError(t, err)

	assert.False(t, built["left"])
	assert.Equal(t, domain.StatusFailed, report.Entries["left"].Status)
	assert.ErrorIs(t, report.Entries["left"].Err, domain.ErrMissingDependency)
	assert.Equal(t, domain.StatusBuilt, report.Entries["right"].Status)
	assert.Equal(t, domain.StatusSkipped, report.Entries["top"].Status)
}

func TestRun_ScannedAndCurrentNodesAreReported(t *testing.T) {
	g := domain.NewGraph()
	require.NoError(t, g.AddNode(&domain.Node{Name: name("threshold"), Kind: domain.KindImport}))
	require.NoError(t, g.AddNode(&domain.Node{Name: name("fresh"), Kind: domain.KindTarget, Deps: []domain.InternedString{name("threshold")}}))
	require.NoError(t, g.AddNode(&domain.Node{Name: name("stale"), Kind: domain.KindTarget}))
	require.NoError(t, g.Validate())

	s := scheduler.NewScheduler(quietLogger(t), telemetry.NewNoop())
	build := func(ctx context.Context, node domain.Node) error { return nil }

	outdated := map[domain.InternedString]struct{}{name("stale"): {}}
	scanned := map[domain.InternedString]struct{}{name("threshold"): {}}

	report, err := s.Run(context.Background(), g, outdated, scanned, newRecordingHooks(), build, scheduler.Options{Jobs: 1})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusScanned, report.Entries["threshold"].Status)
	assert.Equal(t, domain.StatusCurrent, report.Entries["fresh"].Status)
	assert.Equal(t, domain.StatusBuilt, report.Entries["stale"].Status)
	assert.Equal(t, []string{"stale"}, report.Outdated)
}

func TestRun_AfterStageReportsRemainingPending(t *testing.T) {
	g := diamond(t)
	s := scheduler.NewScheduler(quietLogger(t), telemetry.NewNoop())

	hooks := newRecordingHooks()
	build := func(ctx context.Context, node domain.Node) error { return nil }

	_, err := s.Run(context.Background(), g, all(g), nil, hooks, build, scheduler.Options{Jobs: 2})
	require.NoError(t, err)

	require.Len(t, hooks.after, 3)
	assert.ElementsMatch(t, []string{"left", "right", "top"}, hooks.after[0])
	assert.ElementsMatch(t, []string{"top"}, hooks.after[1])
	assert.Empty(t, hooks.after[2])
}

// A stage whose members are all scans dispatches nothing, but it is still
// a barrier and the hook must fire so workspace pruning keeps up.
func TestRun_AfterStageFiresForScanOnlyStages(t *testing.T) {
	g := domain.NewGraph()
	require.NoError(t, g.AddNode(&domain.Node{Name: name("threshold"), Kind: domain.KindImport}))
	require.NoError(t, g.AddNode(&domain.Node{Name: name("gate"), Kind: domain.KindTarget, Deps: []domain.InternedString{name("threshold")}}))
	require.NoError(t, g.Validate())

	s := scheduler.NewScheduler(quietLogger(t), telemetry.NewNoop())
	hooks := newRecordingHooks()
	build := func(ctx context.Context, node domain.Node) error { return nil }

	outdated := map[domain.InternedString]struct{}{name("gate"): {}}
	scanned := map[domain.InternedString]struct{}{name("threshold"): {}}

	_, err := s.Run(context.Background(), g, outdated, scanned, hooks, build, scheduler.Options{Jobs: 1})
	require.NoError(t, err)

	require.Len(t, hooks.after, 2)
	assert.Equal(t, []string{"gate"}, hooks.after[0])
	assert.Empty(t, hooks.after[1])
}

func TestRun_CancelledContextStopsScheduling(t *testing.T) {
	g := diamond(t)
	s := scheduler.NewScheduler(quietLogger(t), telemetry.NewNoop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	build := func(ctx context.Context, node domain.Node) error { return nil }
	_, err := s.Run(ctx, g, all(g), nil, newRecordingHooks(), build, scheduler.Options{Jobs: 1})
	require.ErrorIs(t, err, context.Canceled)
}
