package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/internal/adapters/config"
	"github.com/loomworks/loom/internal/core/domain"
)

func writePlan(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, config.DefaultFilename)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return dir
}

func TestLoad_FullPlan(t *testing.T) {
	dir := writePlan(t, `
version: "1"
settings:
  jobs: 2
  trigger: depends
  stop_on_error: true
  file_out_funcs: [file_out, render_to]
env:
  threshold: 0.5
funcs:
  clean:
    params: [raw]
    body: trim(raw)
targets:
  - name: data
    command: load(file("data.csv"))
  - name: report
    command: render(data, file_out("report.html"))
    file: true
    trigger: file
`)

	plan, err := config.NewLoader().Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 2, plan.Settings.Jobs)
	assert.Equal(t, domain.TriggerDepends, plan.Settings.Trigger)
	assert.True(t, plan.Settings.StopOnError)
	assert.Equal(t, []string{"file_out", "render_to"}, plan.Settings.FileOutFuncs)

	require.Len(t, plan.Targets, 2)
	assert.Equal(t, "data", plan.Targets[0].Name.String())
	assert.False(t, plan.Targets[0].File)
	assert.Equal(t, domain.Trigger(""), plan.Targets[0].Trigger)
	assert.True(t, plan.Targets[1].File)
	assert.Equal(t, domain.TriggerFile, plan.Targets[1].Trigger)

	require.Contains(t, plan.Funcs, "clean")
	assert.Equal(t, []string{"raw"}, plan.Funcs["clean"].Params)

	assert.Equal(t, 0.5, plan.Values["threshold"])
}

func TestLoad_DuplicateTargetName(t *testing.T) {
	dir := writePlan(t, `
targets:
  - name: data
    command: "1"
  - name: data
    command: "2"
`)

	_, err := config.NewLoader().Load(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDuplicateTarget))
}

func TestLoad_UnknownTrigger(t *testing.T) {
	dir := writePlan(t, `
targets:
  - name: data
    command: "1"
    trigger: sometimes
`)

	_, err := config.NewLoader().Load(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnknownTrigger))
}

func TestLoad_EmptyCommandRejected(t *testing.T) {
	dir := writePlan(t, `
targets:
  - name: data
`)

	_, err := config.NewLoader().Load(dir)
	require.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.NewLoader().Load(t.TempDir())
	require.Error(t, err)
}

func TestLoad_DefaultSettings(t *testing.T) {
	dir := writePlan(t, `
targets:
  - name: data
    command: "1"
`)

	plan, err := config.NewLoader().Load(dir)
	require.NoError(t, err)

	assert.Equal(t, domain.TriggerAny, plan.Settings.Trigger)
	assert.Positive(t, plan.Settings.Jobs)
	assert.False(t, plan.Settings.StopOnError)
}
