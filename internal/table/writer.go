package table

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// Writer appends batches to a CSV file. The header is written with the first
// batch that has rows; empty batches never touch the file.
type Writer struct {
	path          string
	headerWritten bool
	rows          int
}

// Create truncates (or creates) the file at path, along with missing parent directories
func Create(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating output file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("closing output file: %w", err)
	}

	return &Writer{path: path}, nil
}

// Path returns the output file path
func (w *Writer) Path() string {
	return w.path
}

// HeaderWritten reports whether the header row is already in the file
func (w *Writer) HeaderWritten() bool {
	return w.headerWritten
}

// Rows returns the number of data rows appended so far
func (w *Writer) Rows() int {
	return w.rows
}

// Append opens the file in append mode and writes the batch's rows,
// preceded by the header if no earlier batch wrote one.
func (w *Writer) Append(b *Batch) error {
	if b.Empty() {
		return nil
	}

	f, err := os.OpenFile(w.path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening output file: %w", err)
	}

	cw := csv.NewWriter(f)
	if !w.headerWritten {
		if err := cw.Write(b.Header); err != nil {
			f.Close()
			return fmt.Errorf("writing header: %w", err)
		}
	}
	if err := cw.WriteAll(b.Rows); err != nil {
		f.Close()
		return fmt.Errorf("writing rows: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing output file: %w", err)
	}

	w.headerWritten = true
	w.rows += len(b.Rows)
	return nil
}
