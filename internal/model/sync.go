package model

import (
	"fmt"
	"time"
)

// Job names an independently schedulable synchronization job.
type Job string

const (
	JobRegistry Job = "registry"
	JobLedgers  Job = "ledgers"
	JobStatuses Job = "statuses"
)

// Jobs lists every job in pipeline order.
var Jobs = []Job{JobRegistry, JobLedgers, JobStatuses}

// ParseJob validates a job name.
func ParseJob(name string) (Job, error) {
	for _, j := range Jobs {
		if string(j) == name {
			return j, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownJob, name)
}

// EntityFailure describes one entity a job could not reconcile.
type EntityFailure struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

// SyncReport is the outcome of one job run. A run with failures is still a
// completed run: sibling entities were reconciled independently.
type SyncReport struct {
	Job        Job             `json:"job"`
	RunID      string          `json:"runId"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
	Succeeded  int             `json:"succeeded"`
	Failed     []EntityFailure `json:"failed"`
	Skipped    []EntityFailure `json:"skipped"`
}
