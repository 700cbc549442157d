// Package journal records what each provisioning run did. The journal
// is the system's memory: the last successful record per tool decides
// whether an install is a no-op, and `status` compares it against what
// is actually on disk.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Outcome is the final state of one tool in a run.
type Outcome string

const (
	OutcomeInstalled Outcome = "installed"
	OutcomeUpdated   Outcome = "updated"
	OutcomeCurrent   Outcome = "current"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Record is one tool's result within a run.
type Record struct {
	Tool      string    `json:"tool"`
	Mode      string    `json:"mode"`
	Version   string    `json:"version,omitempty"`
	Commit    string    `json:"commit,omitempty"`
	Outcome   Outcome   `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Run is one provisioning run.
type Run struct {
	Version int       `json:"version"` // Schema version for future evolution
	ID      string    `json:"id"`      // UUID for unique identification
	Started time.Time `json:"started"`
	Records []Record  `json:"records"`
}

// Journal persists runs under a directory, one JSON file per run, and
// keeps a merged view of the latest state per tool.
type Journal struct {
	dir string
}

// New creates a journal rooted at dir.
func New(dir string) *Journal {
	return &Journal{dir: dir}
}

// NewRun starts an empty run.
func NewRun() *Run {
	return &Run{
		Version: 1,
		ID:      uuid.New().String(),
		Started: time.Now().UTC(),
	}
}

// Add appends a record to the run.
func (r *Run) Add(rec Record) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	r.Records = append(r.Records, rec)
}

// Save writes the run to disk atomically.
// Uses write-then-rename pattern for atomicity.
func (j *Journal) Save(run *Run) error {
	if err := os.MkdirAll(j.dir, 0755); err != nil {
		return fmt.Errorf("create journal directory: %w", err)
	}

	finalPath := filepath.Join(j.dir, fmt.Sprintf("run-%s.json", run.ID))
	tmpPath := finalPath + ".tmp"

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write temporary run file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename run file: %w", err)
	}

	// Sync directory for durability
	df, err := os.Open(j.dir)
	if err == nil {
		df.Sync()
		df.Close()
	}
	return nil
}

// Load reads a single run file.
func Load(path string) (*Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run file: %w", err)
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("unmarshal run: %w", err)
	}
	return &run, nil
}

// Latest returns the newest successful record per tool across all runs.
// Failed and skipped records never shadow an earlier success.
func (j *Journal) Latest() (map[string]Record, error) {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Record{}, nil
		}
		return nil, fmt.Errorf("read journal directory: %w", err)
	}

	latest := make(map[string]Record)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		run, err := Load(filepath.Join(j.dir, name))
		if err != nil {
			// A corrupt run file should not hide the others.
			continue
		}
		for _, rec := range run.Records {
			switch rec.Outcome {
			case OutcomeInstalled, OutcomeUpdated, OutcomeCurrent:
			default:
				continue
			}
			if prev, ok := latest[rec.Tool]; !ok || rec.Timestamp.After(prev.Timestamp) {
				latest[rec.Tool] = rec
			}
		}
	}
	return latest, nil
}

// LatestFor returns the newest successful record for one tool.
func (j *Journal) LatestFor(tool string) (Record, bool, error) {
	latest, err := j.Latest()
	if err != nil {
		return Record{}, false, err
	}
	rec, ok := latest[tool]
	return rec, ok, nil
}
