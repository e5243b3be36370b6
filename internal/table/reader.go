package table

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// ErrNoHeader is returned when the input holds no header row
var ErrNoHeader = errors.New("no header row")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode wraps r so it yields UTF-8. Supported encodings are "utf-8", "latin1" and
// "windows-1252"; an empty name means UTF-8.
func Decode(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(encoding) {
	case "", "utf-8", "utf8":
		return r, nil
	case "latin1", "iso-8859-1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	case "windows-1252", "cp1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("unsupported encoding: %q", encoding)
	}
}

// skipBOM drops a leading UTF-8 byte order mark
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(len(utf8BOM))
	}
	return br
}

// Reader reads a header-plus-rows CSV in batches
type Reader struct {
	csv       *csv.Reader
	header    []string
	batchSize int
	index     int
	done      bool
}

// NewReader reads the header from r and prepares batches of batchSize rows
func NewReader(r io.Reader, batchSize int) (*Reader, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("invalid batch size: %d", batchSize)
	}

	cr := csv.NewReader(skipBOM(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	return &Reader{
		csv:       cr,
		header:    NormalizeHeader(header),
		batchSize: batchSize,
	}, nil
}

// Header returns the normalized column names
func (r *Reader) Header() []string {
	return r.header
}

// Next returns the next batch, or io.EOF once every row has been read.
// Rows shorter than the header are padded with empty cells; longer rows are an error.
func (r *Reader) Next() (*Batch, error) {
	if r.done {
		return nil, io.EOF
	}

	rows := make([][]string, 0, min(r.batchSize, 4096))
	for len(rows) < r.batchSize {
		record, err := r.csv.Read()
		if err == io.EOF {
			r.done = true
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}

		if len(record) > len(r.header) {
			line, _ := r.csv.FieldPos(0)
			return nil, fmt.Errorf("line %d: expected %d fields, saw %d", line, len(r.header), len(record))
		}
		for len(record) < len(r.header) {
			record = append(record, "")
		}
		rows = append(rows, record)
	}

	if len(rows) == 0 {
		return nil, io.EOF
	}

	r.index++
	return &Batch{
		Index:  r.index,
		Header: r.header,
		Rows:   rows,
	}, nil
}
