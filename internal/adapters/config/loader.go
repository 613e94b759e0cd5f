// Package config provides the plan loader for loom.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"

	"github.com/loomworks/loom/internal/core/domain"
	"github.com/loomworks/loom/internal/core/ports"
)

// DefaultFilename is the plan file looked up in the working directory.
const DefaultFilename = "loom.yaml"

var _ ports.PlanLoader = (*FileLoader)(nil)

// FileLoader implements ports.PlanLoader using a YAML plan file.
type FileLoader struct {
	Filename string
}

// NewLoader creates a FileLoader reading DefaultFilename.
func NewLoader() *FileLoader {
	return &FileLoader{Filename: DefaultFilename}
}

// Load reads the plan from the given working directory.
func (l *FileLoader) Load(cwd string) (*domain.Plan, error) {
	return Load(filepath.Join(cwd, l.Filename))
}

// Load reads a plan file from the given path.
func Load(path string) (*domain.Plan, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
	if err != nil {
		return nil, zerr.Wrap(err, "failed to read plan file")
	}

	var file Loomfile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, zerr.Wrap(err, "failed to parse plan file")
	}

	settings, err := parseSettings(file.Settings)
	if err != nil {
		return nil, err
	}

	plan := &domain.Plan{
		Values:   file.Env,
		Funcs:    make(map[string]domain.FuncDef, len(file.Funcs)),
		Settings: settings,
	}

	for name, dto := range file.Funcs {
		if strings.TrimSpace(dto.Body) == "" {
			return nil, zerr.With(zerr.New("function body must not be empty"), "func", name)
		}
		plan.Funcs[name] = domain.FuncDef{
			Name:   name,
			Params: dto.Params,
			Body:   dto.Body,
		}
	}

	for _, dto := range file.Targets {
		trigger, err := parseTargetTrigger(dto)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(dto.Command) == "" {
			return nil, zerr.With(zerr.New("target command must not be empty"), "target_name", dto.Name)
		}
		plan.Targets = append(plan.Targets, domain.Target{
			Name:    domain.NewInternedString(dto.Name),
			Command: dto.Command,
			File:    dto.File,
			Trigger: trigger,
		})
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}

	return plan, nil
}

func parseSettings(dto SettingsDTO) (domain.Settings, error) {
	trigger, err := domain.ParseTrigger(dto.Trigger)
	if err != nil {
		return domain.Settings{}, err
	}

	jobs := dto.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}

	return domain.Settings{
		Jobs:         jobs,
		Trigger:      trigger,
		StopOnError:  dto.StopOnError,
		LazyLoad:     dto.LazyLoad,
		FileOutFuncs: dto.FileOutFuncs,
	}, nil
}

func parseTargetTrigger(dto TargetDTO) (domain.Trigger, error) {
	if dto.Trigger == "" {
		// Empty means inherit the run-level policy.
		return "", nil
	}
	trigger, err := domain.ParseTrigger(dto.Trigger)
	if err != nil {
		return "", zerr.With(err, "target_name", dto.Name)
	}
	return trigger, nil
}
