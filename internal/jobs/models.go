package jobs

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a merge job.
type Status string

const (
	StatusStaging   Status = "staging"
	StatusEncoding  Status = "encoding"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var allStatuses = []Status{
	StatusStaging,
	StatusEncoding,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsActive reports whether the status reflects an in-flight job.
func (s Status) IsActive() bool {
	return s == StatusStaging || s == StatusEncoding
}

// Job represents a merge job persisted in SQLite.
type Job struct {
	ID              int64
	OutputName      string
	Manifest        string
	InputCount      int
	Status          Status
	ProgressPhase   string
	ProgressPercent float64
	ProgressMessage string
	ErrorMessage    string
	ResultPath      string
	ResultSize      int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SetProgress updates the three progress fields together.
func (j *Job) SetProgress(phase, message string, percent float64) {
	j.ProgressPhase = phase
	j.ProgressMessage = message
	j.ProgressPercent = percent
}

// SetFailed marks the job as failed with the given error message.
func (j *Job) SetFailed(message string) {
	j.Status = StatusFailed
	j.ErrorMessage = message
	j.ProgressPhase = "failed"
	j.ProgressMessage = message
}

// SetCompleted records the result artifact and pins progress at 100.
func (j *Job) SetCompleted(resultPath string, resultSize int64) {
	j.Status = StatusCompleted
	j.ResultPath = resultPath
	j.ResultSize = resultSize
	j.SetProgress("completed", "merge complete", 100)
}

// HealthSummary describes aggregated job counts per lifecycle state.
type HealthSummary struct {
	Total     int
	Active    int
	Completed int
	Failed    int
}
