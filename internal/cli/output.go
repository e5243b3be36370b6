package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pfrederiksen/nppes-extract/internal/pipeline"
	"github.com/pfrederiksen/nppes-extract/internal/storage"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// OutputResult contains data to be output
type OutputResult struct {
	RunID       string    `json:"run_id"`
	FinishedAt  time.Time `json:"finished_at"`
	SourceURL   string    `json:"source_url"`
	Member      string    `json:"member"`
	State       string    `json:"state"`
	Output      string    `json:"output"`
	Batches     int       `json:"batches"`
	RowsRead    int       `json:"rows_read"`
	RowsWritten int       `json:"rows_written"`
}

// NewOutputResult converts a pipeline result for printing
func NewOutputResult(r *pipeline.Result, state string) *OutputResult {
	return &OutputResult{
		RunID:       r.RunID,
		FinishedAt:  time.Now().UTC(),
		SourceURL:   r.SourceURL,
		Member:      r.Member,
		State:       state,
		Output:      r.Output,
		Batches:     r.Batches,
		RowsRead:    r.RowsRead,
		RowsWritten: r.RowsKept,
	}
}

// WriteOutput writes the result in the specified format
func WriteOutput(w io.Writer, result *OutputResult, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return writeText(w, result)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteManifest writes a run manifest in the specified format
func WriteManifest(w io.Writer, m *storage.Manifest, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, m)
	case FormatText:
		fmt.Fprintf(w, "Run:      %s\n", m.RunID)
		fmt.Fprintf(w, "Status:   %s\n", m.Status)
		if m.SourceURL != "" {
			fmt.Fprintf(w, "Source:   %s\n", m.SourceURL)
		}
		if m.Member != "" {
			fmt.Fprintf(w, "Member:   %s\n", m.Member)
		}
		fmt.Fprintf(w, "State:    %s\n", m.State)
		fmt.Fprintf(w, "Rows:     %d kept of %d read in %d batches\n", m.RowsKept, m.RowsRead, m.Batches)
		fmt.Fprintf(w, "Started:  %s\n", m.StartedAt)
		if m.FinishedAt != "" {
			fmt.Fprintf(w, "Finished: %s\n", m.FinishedAt)
		}
		if m.Error != "" {
			fmt.Fprintf(w, "Error:    %s\n", m.Error)
		}
		if !m.Complete() {
			fmt.Fprintf(w, "\nWarning: %s is incomplete\n", m.Output)
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs v as indented JSON
func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// writeText outputs results as human-readable text
func writeText(w io.Writer, result *OutputResult) error {
	fmt.Fprintf(w, "Latest Monthly V2 file: %s\n", result.SourceURL)
	fmt.Fprintf(w, "Using CSV: %s\n", result.Member)
	fmt.Fprintf(w, "Done. Wrote %d rows to %s\n", result.RowsWritten, result.Output)
	return nil
}
