package domain

import "go.trai.ch/zerr"

// Trigger selects which metadata changes mark a target as outdated.
type Trigger string

const (
	// TriggerAny rebuilds when the command, a dependency hash, the output
	// file, or a missing output changed. This is the default policy.
	TriggerAny Trigger = "any"
	// TriggerCommand rebuilds only on command-text changes.
	TriggerCommand Trigger = "command"
	// TriggerDepends rebuilds only on dependency-hash changes.
	TriggerDepends Trigger = "depends"
	// TriggerFile rebuilds only when the output file changed or is missing.
	TriggerFile Trigger = "file"
	// TriggerAlways rebuilds unconditionally.
	TriggerAlways Trigger = "always"
)

// ParseTrigger converts a trigger name to a Trigger.
// The empty string maps to TriggerAny.
func ParseTrigger(s string) (Trigger, error) {
	switch Trigger(s) {
	case "":
		return TriggerAny, nil
	case TriggerAny, TriggerCommand, TriggerDepends, TriggerFile, TriggerAlways:
		return Trigger(s), nil
	default:
		return "", zerr.With(ErrUnknownTrigger, "trigger", s)
	}
}
