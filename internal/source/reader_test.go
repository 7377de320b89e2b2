package source

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klemens/imagehaul/internal/domain"
	"github.com/parquet-go/parquet-go"
)

// laionRow mirrors the uppercase layout of laion metadata tables, with
// dimensions stored as doubles and a nullable license.
type laionRow struct {
	URL     string  `parquet:"URL"`
	Text    string  `parquet:"TEXT"`
	Width   float64 `parquet:"WIDTH"`
	Height  float64 `parquet:"HEIGHT"`
	License *string `parquet:"LICENSE,optional"`
}

// altRow mirrors a lowercase layout using the caption alias and int32
// dimensions, without a license column.
type altRow struct {
	URL     string `parquet:"url"`
	Caption string `parquet:"caption"`
	Width   int32  `parquet:"width"`
	Height  int32  `parquet:"height"`
}

func writeLaion(t *testing.T, path string, batches ...[]laionRow) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	pw := parquet.NewGenericWriter[laionRow](f)
	for _, batch := range batches {
		if _, err := pw.Write(batch); err != nil {
			t.Fatalf("write batch: %v", err)
		}
		if err := pw.Flush(); err != nil {
			t.Fatalf("flush batch: %v", err)
		}
	}
	if err := pw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
}

func writeAlt(t *testing.T, path string, rows []altRow) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	pw := parquet.NewGenericWriter[altRow](f)
	if _, err := pw.Write(rows); err != nil {
		t.Fatalf("write rows: %v", err)
	}
	if err := pw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
}

func collect(t *testing.T, paths ...string) []domain.MetadataRow {
	t.Helper()
	r, err := New(paths...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	var rows []domain.MetadataRow
	for r.Next() {
		rows = append(rows, r.Row())
	}
	if err := r.Err(); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	return rows
}

func strPtr(s string) *string { return &s }

// TestReaderLaionSchema verifies projection from an uppercase table with
// double dimensions, a null license and an unusable empty-URL row
func TestReaderLaionSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.parquet")
	writeLaion(t, path, []laionRow{
		{URL: "http://img.example/a.jpg", Text: "a pumpkin", Width: 640, Height: 480, License: strPtr("?")},
		{URL: "", Text: "no url", Width: 10, Height: 10},
		{URL: "http://img.example/b.jpg", Text: "bad dims", Width: -3, Height: 480},
	})

	rows := collect(t, path)
	if len(rows) != 2 {
		t.Fatalf("read %d rows, want 2", len(rows))
	}

	if rows[0].URL != "http://img.example/a.jpg" || rows[0].Text != "a pumpkin" {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if rows[0].Width != 640 || rows[0].Height != 480 {
		t.Errorf("row 0 dims = %dx%d, want 640x480", rows[0].Width, rows[0].Height)
	}
	if rows[0].License != "?" {
		t.Errorf("row 0 license = %q, want ?", rows[0].License)
	}

	if rows[1].URL != "http://img.example/b.jpg" {
		t.Errorf("row 1 = %+v", rows[1])
	}
	if rows[1].Width != 0 {
		t.Errorf("negative width = %d, want 0", rows[1].Width)
	}
	if rows[1].License != "" {
		t.Errorf("null license = %q, want empty", rows[1].License)
	}
}

// TestReaderCaptionAlias verifies the lowercase caption layout projects
// onto the same fields
func TestReaderCaptionAlias(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.parquet")
	writeAlt(t, path, []altRow{
		{URL: "http://img.example/c.jpg", Caption: "spooky halloween", Width: 320, Height: 240},
	})

	rows := collect(t, path)
	if len(rows) != 1 {
		t.Fatalf("read %d rows, want 1", len(rows))
	}
	if rows[0].Text != "spooky halloween" {
		t.Errorf("caption projected to %q", rows[0].Text)
	}
	if rows[0].Width != 320 || rows[0].Height != 240 {
		t.Errorf("dims = %dx%d, want 320x240", rows[0].Width, rows[0].Height)
	}
	if rows[0].License != "" {
		t.Errorf("license = %q, want empty for absent column", rows[0].License)
	}
}

// TestReaderMultipleFiles verifies rows come back in path order across
// files and row groups
func TestReaderMultipleFiles(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.parquet")
	second := filepath.Join(dir, "b.parquet")

	// Two row groups in the first file
	writeLaion(t, first,
		[]laionRow{{URL: "http://img.example/1.jpg", Text: "one", Width: 100, Height: 100}},
		[]laionRow{{URL: "http://img.example/2.jpg", Text: "two", Width: 100, Height: 100}},
	)
	writeAlt(t, second, []altRow{
		{URL: "http://img.example/3.jpg", Caption: "three", Width: 100, Height: 100},
	})

	rows := collect(t, first, second)
	if len(rows) != 3 {
		t.Fatalf("read %d rows, want 3", len(rows))
	}
	want := []string{"http://img.example/1.jpg", "http://img.example/2.jpg", "http://img.example/3.jpg"}
	for i, row := range rows {
		if row.URL != want[i] {
			t.Errorf("row %d URL = %s, want %s", i, row.URL, want[i])
		}
	}
}

// TestReaderRejectsBadTables verifies New fails upfront for unusable paths
func TestReaderRejectsBadTables(t *testing.T) {
	dir := t.TempDir()

	noURL := filepath.Join(dir, "nourl.parquet")
	type noURLRow struct {
		Text string `parquet:"text"`
	}
	f, err := os.Create(noURL)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	pw := parquet.NewGenericWriter[noURLRow](f)
	if _, err := pw.Write([]noURLRow{{Text: "x"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := pw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	f.Close()

	corrupt := filepath.Join(dir, "corrupt.parquet")
	if err := os.WriteFile(corrupt, []byte("definitely not parquet"), 0o644); err != nil {
		t.Fatalf("write corrupt: %v", err)
	}

	good := filepath.Join(dir, "good.parquet")
	writeLaion(t, good, []laionRow{{URL: "http://img.example/a.jpg", Text: "ok"}})

	testCases := []struct {
		name  string
		paths []string
	}{
		{name: "no inputs", paths: nil},
		{name: "missing file", paths: []string{filepath.Join(dir, "absent.parquet")}},
		{name: "corrupt file", paths: []string{corrupt}},
		{name: "no url column", paths: []string{noURL}},
		{name: "good file after bad", paths: []string{corrupt, good}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.paths...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

// TestReaderReadErrorType verifies table failures carry the offending path
func TestReaderReadErrorType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.parquet")
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := New(path)
	var re *ReadError
	if !errors.As(err, &re) {
		t.Fatalf("error %v is not a table read error", err)
	}
	if re.Path != path {
		t.Errorf("error path = %s, want %s", re.Path, path)
	}
}
