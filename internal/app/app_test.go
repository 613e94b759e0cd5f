package app_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/internal/adapters/cache"
	"github.com/loomworks/loom/internal/adapters/config"
	"github.com/loomworks/loom/internal/adapters/logger"
	"github.com/loomworks/loom/internal/adapters/telemetry"
	"github.com/loomworks/loom/internal/app"
	"github.com/loomworks/loom/internal/core/domain"
	"github.com/loomworks/loom/internal/core/ports"
	"github.com/loomworks/loom/internal/engine/envir"
	"github.com/loomworks/loom/internal/engine/fingerprint"
	"github.com/loomworks/loom/internal/engine/scheduler"
)

type harness struct {
	app   *app.App
	store ports.Store
	dir   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)

	log := logger.New()
	log.SetOutput(io.Discard)

	store, err := cache.NewStore(filepath.Join(dir, cache.DefaultRoot))
	require.NoError(t, err)

	a := app.New(
		config.NewLoader(),
		store,
		log,
		fingerprint.NewEngine(store),
		scheduler.NewScheduler(log, telemetry.NewNoop()),
	)
	return &harness{app: a, store: store, dir: dir}
}

func (h *harness) writePlan(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, config.DefaultFilename), []byte(content), 0o644))
}

const pipelinePlan = `
env:
  factor: 2
funcs:
  scale:
    params: [v]
    body: v * factor
targets:
  - name: base
    command: "21"
  - name: scaled
    command: scale(base)
  - name: label
    command: format("val=%d", scaled)
`

func TestMake_BuildsPipelineAndIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.writePlan(t, pipelinePlan)

	report, err := h.app.Make(context.Background(), app.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"base", "label", "scaled"}, report.WithStatus(domain.StatusBuilt))
	assert.Equal(t, []string{"factor", "scale"}, report.WithStatus(domain.StatusScanned))

	data, err := h.store.Get("scaled", ports.NamespaceObjects)
	require.NoError(t, err)
	v, err := envir.UnmarshalValue(data)
	require.NoError(t, err)
	scaled, _ := v.AsBigFloat().Int64()
	assert.Equal(t, int64(42), scaled)

	data, err = h.store.Get("label", ports.NamespaceObjects)
	require.NoError(t, err)
	v, err = envir.UnmarshalValue(data)
	require.NoError(t, err)
	assert.Equal(t, "val=42", v.AsString())

	again, err := h.app.Make(context.Background(), app.Options{})
	require.NoError(t, err)
	assert.Empty(t, again.WithStatus(domain.StatusBuilt))
	assert.Equal(t, []string{"base", "label", "scaled"}, again.WithStatus(domain.StatusCurrent))
}

func TestMake_EnvChangeRebuildsDependentsOnly(t *testing.T) {
	h := newHarness(t)
	h.writePlan(t, pipelinePlan)

	_, err := h.app.Make(context.Background(), app.Options{})
	require.NoError(t, err)

	h.writePlan(t, `
env:
  factor: 3
funcs:
  scale:
    params: [v]
    body: v * factor
targets:
  - name: base
    command: "21"
  - name: scaled
    command: scale(base)
  - name: label
    command: format("val=%d", scaled)
`)

	report, err := h.app.Make(context.Background(), app.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"label", "scaled"}, report.WithStatus(domain.StatusBuilt))
	assert.Equal(t, []string{"base"}, report.WithStatus(domain.StatusCurrent))

	data, err := h.store.Get("label", ports.NamespaceObjects)
	require.NoError(t, err)
	v, err := envir.UnmarshalValue(data)
	require.NoError(t, err)
	assert.Equal(t, "val=63", v.AsString())
}

func TestMake_FileDependencyDrivesRebuilds(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(h.dir, "input.txt")
	require.NoError(t, os.WriteFile(path, []byte("one"), 0o644))

	h.writePlan(t, `
targets:
  - name: sized
    command: strlen(file("input.txt"))
`)

	report, err := h.app.Make(context.Background(), app.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"sized"}, report.WithStatus(domain.StatusBuilt))

	// Unchanged file, nothing to do.
	report, err = h.app.Make(context.Background(), app.Options{})
	require.NoError(t, err)
	assert.Empty(t, report.WithStatus(domain.StatusBuilt))

	require.NoError(t, os.WriteFile(path, []byte("three"), 0o644))
	report, err = h.app.Make(context.Background(), app.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"sized"}, report.WithStatus(domain.StatusBuilt))
}

func TestMake_FailurePropagatesAndReturnsBuildError(t *testing.T) {
	h := newHarness(t)
	h.writePlan(t, `
targets:
  - name: broken
    command: missing_symbol + 1
  - name: sink
    command: broken * 2
`)

	report, err := h.app.Make(context.Background(), app.Options{})
	require.ErrorIs(t, err, domain.ErrBuildExecutionFailed)
	require.NotNil(t, report)

	assert.Equal(t, domain.StatusFailed, report.Entries["broken"].Status)
	assert.Equal(t, domain.StatusSkipped, report.Entries["sink"].Status)
	assert.Equal(t, "broken", report.Entries["sink"].Cause)
}

func TestMake_TargetSelectionBuildsAncestorsOnly(t *testing.T) {
	h := newHarness(t)
	h.writePlan(t, pipelinePlan)

	report, err := h.app.Make(context.Background(), app.Options{Targets: []string{"scaled"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"base", "scaled"}, report.WithStatus(domain.StatusBuilt))
	_, tracked := report.Entries["label"]
	assert.False(t, tracked, "label is outside the selected subgraph")
}

func TestMake_UnknownTargetFails(t *testing.T) {
	h := newHarness(t)
	h.writePlan(t, pipelinePlan)

	_, err := h.app.Make(context.Background(), app.Options{Targets: []string{"ghost"}})
	require.ErrorIs(t, err, domain.ErrUnknownTarget)
}

func TestOutdated_ListsStaleTargets(t *testing.T) {
	h := newHarness(t)
	h.writePlan(t, pipelinePlan)

	outdated, err := h.app.Outdated(context.Background(), app.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"base", "label", "scaled"}, outdated)

	_, err = h.app.Make(context.Background(), app.Options{})
	require.NoError(t, err)

	outdated, err = h.app.Outdated(context.Background(), app.Options{})
	require.NoError(t, err)
	assert.Empty(t, outdated)
}

func TestMake_TriggerOverrideForcesRebuild(t *testing.T) {
	h := newHarness(t)
	h.writePlan(t, pipelinePlan)

	_, err := h.app.Make(context.Background(), app.Options{})
	require.NoError(t, err)

	report, err := h.app.Make(context.Background(), app.Options{Trigger: "always"})
	require.NoError(t, err)
	assert.Equal(t, []string{"base", "label", "scaled"}, report.WithStatus(domain.StatusBuilt))
}

func TestStages_PartitionsGraph(t *testing.T) {
	h := newHarness(t)
	h.writePlan(t, pipelinePlan)

	stages, err := h.app.Stages(context.Background(), app.Options{})
	require.NoError(t, err)
	require.Len(t, stages, 4)

	// Leaves first, then the function import, then the pipeline.
	assert.Equal(t, []string{"base", "factor"}, stages[0])
	assert.Equal(t, []string{"scale"}, stages[1])
	assert.Equal(t, []string{"scaled"}, stages[2])
	assert.Equal(t, []string{"label"}, stages[3])
}

func TestMake_ConfigSnapshotWritten(t *testing.T) {
	h := newHarness(t)
	h.writePlan(t, pipelinePlan)

	_, err := h.app.Make(context.Background(), app.Options{})
	require.NoError(t, err)

	keys, err := h.store.List(ports.NamespaceConfig)
	require.NoError(t, err)
	assert.Equal(t, []string{"graph", "plan", "settings"}, keys)
}
