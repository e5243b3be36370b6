// Package archive opens a downloaded NPPES zip and picks the member holding the provider data.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zip"
)

const (
	// DataFileMarker appears in the name of the main provider CSV, e.g.
	// npidata_pfile_20050523-20261012.csv
	DataFileMarker = "npidata_pfile"
	CSVSuffix      = ".csv"

	// headerOnlyMarker tags the companion file that carries only the column names
	headerOnlyMarker = "fileheader"
)

// ErrNoDataFile is returned when an archive holds no CSV member
var ErrNoDataFile = errors.New("no CSV data file found in archive")

// Member is one CSV entry of the archive
type Member struct {
	Name string
	Size uint64 // uncompressed
	file *zip.File
}

// Open returns a reader over the member's decompressed contents
func (m Member) Open() (io.ReadCloser, error) {
	if m.file == nil {
		return nil, fmt.Errorf("member %q is not backed by an archive", m.Name)
	}
	return m.file.Open()
}

// Archive is a zip held in memory
type Archive struct {
	reader *zip.Reader
}

// Open reads the zip directory of data
func Open(data []byte) (*Archive, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening zip: %w", err)
	}
	return &Archive{reader: r}, nil
}

// CSVMembers lists the entries whose name ends in .csv (case-insensitive), in archive order
func (a *Archive) CSVMembers() []Member {
	members := make([]Member, 0)
	for _, f := range a.reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(f.Name), CSVSuffix) {
			continue
		}
		members = append(members, Member{
			Name: f.Name,
			Size: f.UncompressedSize64,
			file: f,
		})
	}
	return members
}

// Locate returns the archive's provider data member
func (a *Archive) Locate() (Member, error) {
	return Locate(a.CSVMembers())
}

// Locate picks the data member from a list of CSV members.
// A name containing DataFileMarker wins, header-only companions last; otherwise the
// largest member is used, the earliest one on ties.
func Locate(members []Member) (Member, error) {
	if len(members) == 0 {
		return Member{}, ErrNoDataFile
	}

	var headerOnly *Member
	for i := range members {
		name := strings.ToLower(members[i].Name)
		if !strings.Contains(name, DataFileMarker) {
			continue
		}
		if strings.Contains(name, headerOnlyMarker) {
			if headerOnly == nil {
				headerOnly = &members[i]
			}
			continue
		}
		return members[i], nil
	}
	if headerOnly != nil {
		return *headerOnly, nil
	}

	largest := members[0]
	for _, m := range members[1:] {
		if m.Size > largest.Size {
			largest = m
		}
	}
	return largest, nil
}
