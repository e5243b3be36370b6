package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pfrederiksen/nppes-extract/internal/filter"
	"github.com/pfrederiksen/nppes-extract/internal/table"
)

const scenarioHeader = "NPI,NPI Deactivation Date,Provider Business Practice Location Address State\n"

func defaultFilters() filter.Set {
	return filter.Set{
		filter.Active(filter.DeactivationColumns...),
		filter.InRegion("DE", filter.StateColumns...),
	}
}

func runStream(t *testing.T, input string, batchSize int) (string, Counts, []Progress) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "out.csv")
	w, err := table.Create(path)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	var progress []Progress
	counts, err := FilterStream(strings.NewReader(input), w, defaultFilters(), batchSize, func(p Progress) {
		progress = append(progress, p)
	})
	if err != nil {
		t.Fatalf("FilterStream() error: %v", err)
	}

	out, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(out), counts, progress
}

func TestFilterStream_Scenario(t *testing.T) {
	input := scenarioHeader +
		"1,,DE\n" +
		"2,2020-01-01,DE\n" +
		"3,,NY\n"

	out, counts, _ := runStream(t, input, 250000)

	want := scenarioHeader + "1,,DE\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
	if counts.RowsKept != 1 || counts.RowsRead != 3 || counts.Batches != 1 {
		t.Errorf("counts = %+v", counts)
	}
}

func TestFilterStream_NoDeactivationColumn(t *testing.T) {
	input := "NPI,Provider Business Practice Location Address State\n" +
		"1,DE\n" +
		"2,NY\n" +
		"3,DE\n"

	out, counts, _ := runStream(t, input, 10)

	want := "NPI,Provider Business Practice Location Address State\n1,DE\n3,DE\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
	if counts.RowsKept != 2 {
		t.Errorf("RowsKept = %d, want 2", counts.RowsKept)
	}
}

func TestFilterStream_HeaderOnceAcrossBatches(t *testing.T) {
	// batch 1 has no survivors, batches 2 and 3 do
	input := scenarioHeader +
		"1,,NY\n" +
		"2,2019-01-01,DE\n" +
		"3,,DE\n" +
		"4,,PA\n" +
		"5,,de\n" +
		"6,,DE\n"

	out, counts, progress := runStream(t, input, 2)

	want := scenarioHeader + "3,,DE\n5,,de\n6,,DE\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
	if strings.Count(out, "NPI,") != 1 {
		t.Errorf("header written %d times", strings.Count(out, "NPI,"))
	}
	if counts.Batches != 3 || counts.RowsRead != 6 || counts.RowsKept != 3 {
		t.Errorf("counts = %+v", counts)
	}

	wantProgress := []Progress{
		{Batch: 1, Read: 2, Kept: 0, Total: 0, Written: false},
		{Batch: 2, Read: 2, Kept: 1, Total: 1, Written: true},
		{Batch: 3, Read: 2, Kept: 2, Total: 3, Written: true},
	}
	if len(progress) != len(wantProgress) {
		t.Fatalf("got %d progress events, want %d", len(progress), len(wantProgress))
	}
	for i, want := range wantProgress {
		got := progress[i]
		if got.Batch != want.Batch || got.Read != want.Read || got.Kept != want.Kept ||
			got.Total != want.Total || got.Written != want.Written {
			t.Errorf("progress[%d] = %+v, want %+v", i, got, want)
		}
	}
}

func TestFilterStream_AllFilteredIsEmptyFile(t *testing.T) {
	input := scenarioHeader +
		"1,2020-01-01,DE\n" +
		"2,,NY\n"

	out, counts, _ := runStream(t, input, 1)

	if out != "" {
		t.Errorf("output = %q, want empty file", out)
	}
	if counts.RowsKept != 0 || counts.RowsRead != 2 {
		t.Errorf("counts = %+v", counts)
	}
}

func TestFilterStream_BatchSizeDoesNotChangeOutput(t *testing.T) {
	var b strings.Builder
	b.WriteString(" NPI ,NPI Deactivation Date, Provider Business Practice Location Address State \n")
	states := []string{"DE", "NY", " de", "PA", "DE "}
	for i := 0; i < 97; i++ {
		deact := ""
		if i%7 == 0 {
			deact = "2021-03-04"
		}
		b.WriteString(strings.Join([]string{string(rune('a' + i%26)), deact, states[i%len(states)]}, ","))
		b.WriteString("\n")
	}
	input := b.String()

	reference, refCounts, _ := runStream(t, input, 1000)
	for _, size := range []int{1, 2, 5, 13, 96, 97} {
		out, counts, _ := runStream(t, input, size)
		if out != reference {
			t.Errorf("batch size %d changed the output", size)
		}
		if counts.RowsKept != refCounts.RowsKept {
			t.Errorf("batch size %d kept %d rows, want %d", size, counts.RowsKept, refCounts.RowsKept)
		}
	}
	if !strings.HasPrefix(reference, "NPI,NPI Deactivation Date,Provider Business Practice Location Address State\n") {
		t.Errorf("header not normalized: %q", strings.SplitN(reference, "\n", 2)[0])
	}
}

func TestFilterStream_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKind Kind
	}{
		{"empty member", "", KindParse},
		{"row wider than header", "a,b\n1,2,3\n", KindParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := table.Create(filepath.Join(t.TempDir(), "out.csv"))
			if err != nil {
				t.Fatal(err)
			}

			_, err = FilterStream(strings.NewReader(tt.input), w, defaultFilters(), 10, nil)
			if err == nil {
				t.Fatal("FilterStream() expected error")
			}
			if KindOf(err) != tt.wantKind {
				t.Errorf("KindOf() = %q, want %q (err %v)", KindOf(err), tt.wantKind, err)
			}
		})
	}
}
