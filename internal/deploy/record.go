// Package deploy implements the staged blue-green deployment pipeline:
// a fixed six-step state machine over the transformation-engine client,
// with per-environment mutual exclusion, an append-only capped
// deployment log, and best-effort rollback on failure.
package deploy

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the deployment record state.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// StepStatus is the state of one pipeline step.
type StepStatus string

const (
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// Step is one executed pipeline step. Appended to the record as it
// runs; never mutated after completion.
type Step struct {
	Name        string     `json:"name"`
	Status      StepStatus `json:"status"`
	Mutating    bool       `json:"mutating,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	Warnings    []string   `json:"warnings,omitempty"`
	DurationMS  int64      `json:"duration_ms"`
}

// Record is the full audit trail of one deployment attempt.
type Record struct {
	ID                string     `json:"id"`
	Environment       string     `json:"environment"`
	StartedAt         time.Time  `json:"started_at"`
	Status            Status     `json:"status"`
	Steps             []Step     `json:"steps"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	FailedAt          *time.Time `json:"failed_at,omitempty"`
	Error             string     `json:"error,omitempty"`
	DurationMS        int64      `json:"duration_ms"`
	RollbackAttempted bool       `json:"rollback_attempted,omitempty"`
}

// newRecordID builds a time+random deployment ID, e.g.
// deploy-20240115-093042-5f2b1c9a.
func newRecordID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("deploy-%s-%s", now.UTC().Format("20060102-150405"), suffix)
}
