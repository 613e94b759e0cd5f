package config

// Loomfile represents the structure of the loom.yaml plan file.
type Loomfile struct {
	Version  string             `yaml:"version"`
	Settings SettingsDTO        `yaml:"settings"`
	Env      map[string]any     `yaml:"env"`
	Funcs    map[string]FuncDTO `yaml:"funcs"`
	Targets  []TargetDTO        `yaml:"targets"`
}

// SettingsDTO represents the run configuration in the plan file.
type SettingsDTO struct {
	Jobs         int      `yaml:"jobs"`
	Trigger      string   `yaml:"trigger"`
	StopOnError  bool     `yaml:"stop_on_error"`
	LazyLoad     bool     `yaml:"lazy_load"`
	FileOutFuncs []string `yaml:"file_out_funcs"`
}

// FuncDTO represents a user-defined function in the plan file.
type FuncDTO struct {
	Params []string `yaml:"params"`
	Body   string   `yaml:"body"`
}

// TargetDTO represents one plan row. Targets are a sequence so the plan
// keeps its order and duplicate names can be rejected.
type TargetDTO struct {
	Name    string `yaml:"name"`
	Command string `yaml:"command"`
	File    bool   `yaml:"file"`
	Trigger string `yaml:"trigger"`
}
