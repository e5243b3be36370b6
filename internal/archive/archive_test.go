package archive

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
)

// buildZip writes the named files into an in-memory zip, in order
func buildZip(t *testing.T, files [][2]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f[0])
		if err != nil {
			t.Fatalf("Create(%q) error: %v", f[0], err)
		}
		if _, err := io.WriteString(w, f[1]); err != nil {
			t.Fatalf("write %q error: %v", f[0], err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	return buf.Bytes()
}

func TestLocate(t *testing.T) {
	tests := []struct {
		name    string
		members []Member
		want    string
		wantErr error
	}{
		{
			name: "name marker beats size",
			members: []Member{
				{Name: "othersmall.csv", Size: 10},
				{Name: "npidata_pfile_20240101-20240107.csv", Size: 5},
			},
			want: "npidata_pfile_20240101-20240107.csv",
		},
		{
			name: "marker match is case-insensitive",
			members: []Member{
				{Name: "pl_pfile_20240101-20240107.csv", Size: 900},
				{Name: "NPIDATA_PFILE_20240101-20240107.CSV", Size: 100},
			},
			want: "NPIDATA_PFILE_20240101-20240107.CSV",
		},
		{
			name: "header-only companion skipped",
			members: []Member{
				{Name: "npidata_pfile_20240101-20240107_fileheader.csv", Size: 4000},
				{Name: "npidata_pfile_20240101-20240107.csv", Size: 9000000},
			},
			want: "npidata_pfile_20240101-20240107.csv",
		},
		{
			name: "header-only companion used when alone",
			members: []Member{
				{Name: "othername.csv", Size: 9000000},
				{Name: "npidata_pfile_fileheader.csv", Size: 4000},
			},
			want: "npidata_pfile_fileheader.csv",
		},
		{
			name: "largest fallback",
			members: []Member{
				{Name: "a.csv", Size: 10},
				{Name: "b.csv", Size: 30},
				{Name: "c.csv", Size: 20},
			},
			want: "b.csv",
		},
		{
			name: "largest fallback keeps the first on ties",
			members: []Member{
				{Name: "a.csv", Size: 30},
				{Name: "b.csv", Size: 30},
			},
			want: "a.csv",
		},
		{
			name:    "no members",
			members: nil,
			wantErr: ErrNoDataFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Locate(tt.members)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Locate() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Locate() unexpected error: %v", err)
			}
			if got.Name != tt.want {
				t.Errorf("Locate() = %q, want %q", got.Name, tt.want)
			}
		})
	}
}

func TestArchive_CSVMembers(t *testing.T) {
	data := buildZip(t, [][2]string{
		{"Readme.pdf", "pdf"},
		{"docs/", ""},
		{"othersmall.csv", "a\n1\n"},
		{"endpoint_pfile_20240101-20240107.CSV", "b\n"},
	})

	a, err := Open(data)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	members := a.CSVMembers()
	if len(members) != 2 {
		t.Fatalf("CSVMembers() returned %d members, want 2: %+v", len(members), members)
	}
	if members[0].Name != "othersmall.csv" || members[0].Size != 4 {
		t.Errorf("members[0] = %s (%d bytes)", members[0].Name, members[0].Size)
	}
	if members[1].Name != "endpoint_pfile_20240101-20240107.CSV" {
		t.Errorf("members[1] = %s", members[1].Name)
	}
}

func TestArchive_LocateAndOpen(t *testing.T) {
	big := strings.Repeat("x,y\n", 1000)
	data := buildZip(t, [][2]string{
		{"othersmall.csv", "h\n1\n"},
		{"npidata_pfile_20240101-20240107.csv", "NPI\n" + big},
	})

	a, err := Open(data)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	m, err := a.Locate()
	if err != nil {
		t.Fatalf("Locate() error: %v", err)
	}
	if m.Name != "npidata_pfile_20240101-20240107.csv" {
		t.Fatalf("Locate() = %q", m.Name)
	}

	rc, err := m.Open()
	if err != nil {
		t.Fatalf("Member.Open() error: %v", err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if string(content) != "NPI\n"+big {
		t.Errorf("member content length = %d, want %d", len(content), len("NPI\n"+big))
	}
}

func TestArchive_NoCSV(t *testing.T) {
	data := buildZip(t, [][2]string{{"Readme.pdf", "pdf"}})

	a, err := Open(data)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if _, err := a.Locate(); !errors.Is(err, ErrNoDataFile) {
		t.Errorf("Locate() error = %v, want ErrNoDataFile", err)
	}
}

func TestOpen_NotAZip(t *testing.T) {
	if _, err := Open([]byte("<html>maintenance</html>")); err == nil {
		t.Error("Open() expected error for non-zip data")
	}
}

func TestMember_OpenDetached(t *testing.T) {
	if _, err := (Member{Name: "x.csv"}).Open(); err == nil {
		t.Error("Open() on a detached member should fail")
	}
}
