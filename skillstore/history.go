package skillstore

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ExecutionRecord is one line of a per-skill append-only execution log. ID
// is a fresh random identifier assigned at append time, letting downstream
// tooling correlate a history line with a specific RecordExecution call
// even when two executions share a timestamp.
type ExecutionRecord struct {
	ID              string    `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	Success         bool      `json:"success"`
	ExecutionTimeMs *float64  `json:"execution_time_ms,omitempty"`
	Context         any       `json:"context,omitempty"`
}

// newExecutionRecordID generates the identifier stamped onto each appended
// history line.
func newExecutionRecordID() string {
	return uuid.NewString()
}

// sanitizeSkillName maps a skill name to a filesystem-safe history file stem
// by replacing path separators with underscores.
func sanitizeSkillName(name string) string {
	replacer := strings.NewReplacer("/", "_", string(filepath.Separator), "_", "\\", "_")
	return replacer.Replace(name)
}

func (r *Repository) historyPath(name string) string {
	return filepath.Join(r.historyDir, sanitizeSkillName(name)+".jsonl")
}

// appendHistory appends a single execution record to the skill's log file.
// Append failures are the caller's responsibility to log; they must never
// roll back the authoritative counters in the skills table.
func (r *Repository) appendHistory(name string, rec ExecutionRecord) error {
	path := r.historyPath(name)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("skillstore: open history %s: %w", path, err)
	}
	defer f.Close()

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("skillstore: marshal history record: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("skillstore: write history %s: %w", path, err)
	}
	return nil
}

// GetHistory reads the tail of a skill's execution log. A missing file is
// treated as an empty history, never an error.
func (r *Repository) GetHistory(name string, limit int) ([]ExecutionRecord, error) {
	path := r.historyPath(name)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("skillstore: open history %s: %w", path, err)
	}
	defer f.Close()

	var all []ExecutionRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var rec ExecutionRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		all = append(all, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("skillstore: read history %s: %w", path, err)
	}

	if limit <= 0 || limit >= len(all) {
		return all, nil
	}
	return all[len(all)-limit:], nil
}

// deleteHistory removes a skill's history file. A missing file is not an error.
func (r *Repository) deleteHistory(name string) error {
	path := r.historyPath(name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("skillstore: remove history %s: %w", path, err)
	}
	return nil
}
