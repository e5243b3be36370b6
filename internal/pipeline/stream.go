package pipeline

import (
	"errors"
	"io"

	"github.com/pfrederiksen/nppes-extract/internal/filter"
	"github.com/pfrederiksen/nppes-extract/internal/table"
)

// Progress describes one processed batch
type Progress struct {
	Batch   int  // 1-based batch index
	Read    int  // rows read in this batch
	Kept    int  // rows kept in this batch
	Total   int  // rows kept so far
	Written bool // false when the batch was filtered to empty and skipped
	Columns map[string]string
}

// Counts totals a filtered stream
type Counts struct {
	Batches  int
	RowsRead int
	RowsKept int
}

// FilterStream reads CSV from r in batches of batchSize rows, keeps the rows that
// satisfy set and appends them to w. progress, if non-nil, is called after every batch.
func FilterStream(r io.Reader, w *table.Writer, set filter.Set, batchSize int, progress func(Progress)) (Counts, error) {
	var counts Counts

	reader, err := table.NewReader(r, batchSize)
	if err != nil {
		return counts, newError(KindParse, "reading header", err)
	}

	for {
		batch, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return counts, nil
		}
		if err != nil {
			return counts, newError(KindParse, "reading batch", err)
		}

		kept, stats := set.Apply(batch)
		counts.Batches++
		counts.RowsRead += stats.Read

		written := false
		if !kept.Empty() {
			if err := w.Append(kept); err != nil {
				return counts, newError(KindWrite, "appending batch", err)
			}
			counts.RowsKept += kept.Len()
			written = true
		}

		if progress != nil {
			progress(Progress{
				Batch:   batch.Index,
				Read:    stats.Read,
				Kept:    stats.Kept,
				Total:   counts.RowsKept,
				Written: written,
				Columns: stats.Columns,
			})
		}
	}
}
