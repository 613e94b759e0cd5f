package domain

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BuildStatus is the final per-node outcome of a run.
type BuildStatus string

const (
	// StatusCurrent indicates the node was up to date and not rebuilt.
	StatusCurrent BuildStatus = "current"
	// StatusBuilt indicates the node was rebuilt successfully.
	StatusBuilt BuildStatus = "built"
	// StatusScanned indicates an import or file node was rehashed.
	StatusScanned BuildStatus = "scanned"
	// StatusSkipped indicates the node was not attempted because an
	// ancestor failed, or a stop-on-error run was cancelled.
	StatusSkipped BuildStatus = "skipped"
	// StatusFailed indicates the node's build raised an error.
	StatusFailed BuildStatus = "failed"
)

// ReportEntry is the per-node record of a BuildReport.
type ReportEntry struct {
	Name    string        `json:"name"`
	Status  BuildStatus   `json:"status"`
	Elapsed time.Duration `json:"elapsed,omitzero"`

	// Cause names the failed ancestor for skipped nodes.
	Cause string `json:"cause,omitzero"`

	// Err holds the captured error for failed nodes.
	Err error `json:"-"`
}

// BuildReport is the structured summary of one run.
type BuildReport struct {
	RunID    uuid.UUID              `json:"run_id"`
	Started  time.Time              `json:"started"`
	Elapsed  time.Duration          `json:"elapsed"`
	Outdated []string               `json:"outdated"`
	Entries  map[string]ReportEntry `json:"entries"`
}

// NewBuildReport creates an empty report with a fresh run ID.
func NewBuildReport() *BuildReport {
	return &BuildReport{
		RunID:   uuid.New(),
		Started: time.Now(),
		Entries: make(map[string]ReportEntry),
	}
}

// Record stores an entry, overwriting any previous entry for the node.
func (r *BuildReport) Record(e ReportEntry) {
	r.Entries[e.Name] = e
}

// WithStatus returns the names of entries with the given status, sorted.
func (r *BuildReport) WithStatus(status BuildStatus) []string {
	var out []string
	for name, e := range r.Entries {
		if e.Status == status {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// HasFailures reports whether any node failed or was skipped.
// A non-empty failure set is a non-zero outcome even if other targets built.
func (r *BuildReport) HasFailures() bool {
	for _, e := range r.Entries {
		if e.Status == StatusFailed || e.Status == StatusSkipped {
			return true
		}
	}
	return false
}

// Summary renders a one-line counts summary for logging.
func (r *BuildReport) Summary() string {
	counts := map[BuildStatus]int{}
	for _, e := range r.Entries {
		counts[e.Status]++
	}

	var b strings.Builder
	for i, s := range []BuildStatus{StatusBuilt, StatusCurrent, StatusScanned, StatusSkipped, StatusFailed} {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(string(s))
		b.WriteString("=")
		b.WriteString(strconv.Itoa(counts[s]))
	}
	return b.String()
}
