// Package audit provides the append-only security audit trail.
// Entries are written as JSONL (one JSON object per line) so the log
// can be tailed, grepped, and shipped without parsing state.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileName is the audit log file name inside the workspace directory.
const FileName = "audit.jsonl"

// Entry is a single audit event.
type Entry struct {
	Timestamp time.Time      `json:"ts"`
	Level     string         `json:"level"`
	EventType string         `json:"event_type"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Logger appends entries to a JSONL file. A nil *Logger discards all
// events, so call sites never need to guard.
type Logger struct {
	path string
	mu   sync.Mutex
}

// NewLogger creates a logger writing to path. Parent directories must
// already exist.
func NewLogger(path string) *Logger {
	return &Logger{path: path}
}

// Append writes one entry. The timestamp is filled in when unset.
func (l *Logger) Append(e *Entry) error {
	if l == nil {
		return nil
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling audit entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600) // #nosec G304 - controlled path from config
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing audit entry: %w", err)
	}
	return nil
}

// Path returns the audit log path (empty for a nil logger).
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// LogSecurityEvent records a generic structured event.
func (l *Logger) LogSecurityEvent(level, eventType string, payload map[string]any) error {
	return l.Append(&Entry{Level: level, EventType: eventType, Payload: payload})
}

// RollbackInitiated records the start of a story rollback.
func (l *Logger) RollbackInitiated(storyID, feature, reason string, dryRun bool) error {
	payload := map[string]any{
		"story":   storyID,
		"feature": feature,
		"dry_run": dryRun,
	}
	if reason != "" {
		payload["reason"] = reason
	}
	return l.Append(&Entry{Level: "warning", EventType: "rollback_initiated", Payload: payload})
}

// RollbackCompleted records a successful story rollback.
func (l *Logger) RollbackCompleted(storyID, feature string, dryRun bool) error {
	return l.Append(&Entry{Level: "info", EventType: "rollback_completed", Payload: map[string]any{
		"story":   storyID,
		"feature": feature,
		"dry_run": dryRun,
	}})
}

// FeatureFlagChanged records a flag mutation.
func (l *Logger) FeatureFlagChanged(name string, enabled bool) error {
	return l.Append(&Entry{Level: "info", EventType: "feature_flag_changed", Payload: map[string]any{
		"feature": name,
		"enabled": enabled,
	}})
}

// DeploymentCompleted records a successful deployment.
func (l *Logger) DeploymentCompleted(id, environment string, duration time.Duration) error {
	return l.Append(&Entry{Level: "info", EventType: "deployment_completed", Payload: map[string]any{
		"deployment":  id,
		"environment": environment,
		"duration_ms": duration.Milliseconds(),
	}})
}

// DeploymentFailed records a failed deployment.
func (l *Logger) DeploymentFailed(id, environment, errMsg string) error {
	return l.Append(&Entry{Level: "error", EventType: "deployment_failed", Payload: map[string]any{
		"deployment":  id,
		"environment": environment,
		"error":       errMsg,
	}})
}

// DefaultPath returns the audit log path inside a workspace directory.
func DefaultPath(dir string) string {
	return filepath.Join(dir, FileName)
}
