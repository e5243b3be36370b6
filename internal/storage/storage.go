package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Status is the lifecycle state of a run
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// ManifestSuffix is appended to the output path to name its manifest
const ManifestSuffix = ".manifest.json"

// Manifest describes one extraction run
type Manifest struct {
	RunID      string `json:"run_id"`
	Status     Status `json:"status"`
	SourceURL  string `json:"source_url,omitempty"`
	Member     string `json:"member,omitempty"`
	State      string `json:"state"`
	Output     string `json:"output"`
	Batches    int    `json:"batches"`
	RowsRead   int    `json:"rows_read"`
	RowsKept   int    `json:"rows_kept"`
	StartedAt  string `json:"started_at"`
	UpdatedAt  string `json:"updated_at"`
	FinishedAt string `json:"finished_at,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Complete reports whether the run finished successfully
func (m *Manifest) Complete() bool {
	return m != nil && m.Status == StatusComplete
}

// Storage reads and writes the manifest for one output file
type Storage struct {
	path string
}

// New creates a Storage for the manifest of outputPath
func New(outputPath string) *Storage {
	return &Storage{
		path: ManifestPath(outputPath),
	}
}

// ManifestPath returns the manifest location for an output file
func ManifestPath(outputPath string) string {
	return outputPath + ManifestSuffix
}

// Path returns the manifest file path
func (s *Storage) Path() string {
	return s.path
}

// Load reads the manifest. It returns (nil, nil) when no manifest exists yet.
func (s *Storage) Load() (*Manifest, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}

// Save writes the manifest atomically (temp file + rename)
func (s *Storage) Save(m *Manifest) error {
	m.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating manifest directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp manifest: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing manifest: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing manifest: %w", err)
	}

	return nil
}

// Start records a new running manifest
func (s *Storage) Start(runID, state, output string) (*Manifest, error) {
	m := &Manifest{
		RunID:     runID,
		Status:    StatusRunning,
		State:     state,
		Output:    output,
		StartedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.Save(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Finish marks the manifest complete, or failed when runErr is non-nil, and saves it
func (s *Storage) Finish(m *Manifest, runErr error) error {
	m.FinishedAt = time.Now().UTC().Format(time.RFC3339)
	if runErr != nil {
		m.Status = StatusFailed
		m.Error = runErr.Error()
	} else {
		m.Status = StatusComplete
		m.Error = ""
	}
	return s.Save(m)
}
