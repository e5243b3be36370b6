package table

import "strings"

// Batch is a bounded group of rows sharing one header
type Batch struct {
	Index  int // 1-based position in the stream
	Header []string
	Rows   [][]string
}

// Len returns the number of rows in the batch
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Rows)
}

// Empty reports whether the batch has no rows
func (b *Batch) Empty() bool {
	return b.Len() == 0
}

// Column returns the index of the named column, or -1
func (b *Batch) Column(name string) int {
	for i, h := range b.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// WithRows returns a batch with the same index and header holding rows
func (b *Batch) WithRows(rows [][]string) *Batch {
	return &Batch{
		Index:  b.Index,
		Header: b.Header,
		Rows:   rows,
	}
}

// NormalizeHeader trims surrounding whitespace from every column name
func NormalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = strings.TrimSpace(h)
	}
	return out
}
