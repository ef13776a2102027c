package deploy

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// MaxLogEntries caps the deployment log; the oldest record is evicted
// first when full.
const MaxLogEntries = 100

// Log is the append-only deployment history file: a JSON array of
// records, newest last.
type Log struct {
	path string
	mu   sync.Mutex
}

// NewLog creates a log writing to path.
func NewLog(path string) *Log {
	return &Log{path: path}
}

// Append adds rec to the log, evicting the oldest entries beyond
// MaxLogEntries, and writes the file atomically.
func (l *Log) Append(rec *Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.readLocked()
	if err != nil {
		return err
	}

	records = append(records, rec)
	if len(records) > MaxLogEntries {
		records = records[len(records)-MaxLogEntries:]
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling deployment log: %w", err)
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing deployment log: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing deployment log: %w", err)
	}
	return nil
}

// Records returns every logged deployment, oldest first.
func (l *Log) Records() ([]*Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readLocked()
}

// Find returns the record with the given ID.
func (l *Log) Find(id string) (*Record, error) {
	records, err := l.Records()
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("deployment %s not found", id)
}

func (l *Log) readLocked() ([]*Record, error) {
	data, err := os.ReadFile(l.path) // #nosec G304 - controlled path from config
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading deployment log: %w", err)
	}

	var records []*Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing deployment log: %w", err)
	}
	return records, nil
}
