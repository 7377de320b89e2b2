package source

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/klemens/imagehaul/internal/domain"
	"github.com/parquet-go/parquet-go"
)

const rowBatch = 128

// ReadError reports an unreadable or malformed input table. It is fatal
// to the run, unlike the per-row conditions the pipeline tolerates.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read table %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// columns maps the fields a MetadataRow is projected from to leaf column
// indexes. Absent optional columns are -1.
type columns struct {
	url, text, width, height, license int
}

// Reader streams MetadataRows out of one or more tables in the order the
// paths were supplied, reading one row group at a time so tables far
// larger than memory stay readable. Rows without a usable URL are
// skipped silently. Iteration follows the bufio.Scanner pattern.
type Reader struct {
	paths []string
	fidx  int
	path  string
	f     *os.File
	pf    *parquet.File
	cols  columns

	groups []parquet.RowGroup
	gidx   int
	rows   parquet.Rows
	eof    bool

	buf    []parquet.Row
	n, pos int
	cur    domain.MetadataRow
	err    error
	done   bool
}

// New validates every path upfront so an unreadable or malformed table
// aborts before any processing starts, then returns a lazy reader over
// all of them.
func New(paths ...string) (*Reader, error) {
	if len(paths) == 0 {
		return nil, errors.New("no input tables")
	}
	for _, p := range paths {
		if err := probe(p); err != nil {
			return nil, err
		}
	}
	return &Reader{
		paths: paths,
		buf:   make([]parquet.Row, rowBatch),
	}, nil
}

// Next advances to the next metadata row, returning false at the end of
// the last table or on error.
func (r *Reader) Next() bool {
	for {
		for r.pos < r.n {
			row := r.buf[r.pos]
			r.pos++
			if m, ok := r.decode(row); ok {
				r.cur = m
				return true
			}
		}
		if r.err != nil || r.done {
			return false
		}

		if r.rows != nil {
			if r.eof {
				r.closeRows()
				r.eof = false
				continue
			}
			n, err := r.rows.ReadRows(r.buf)
			r.n, r.pos = n, 0
			if err == io.EOF {
				r.eof = true
			} else if err != nil {
				r.err = &ReadError{Path: r.path, Err: err}
			}
			continue
		}

		if r.gidx < len(r.groups) {
			r.rows = r.groups[r.gidx].Rows()
			r.gidx++
			continue
		}

		r.closeFile()
		if r.fidx >= len(r.paths) {
			r.done = true
			return false
		}
		if err := r.openFile(r.paths[r.fidx]); err != nil {
			r.err = err
			return false
		}
		r.fidx++
	}
}

// Row returns the current row. Only valid after Next returned true.
func (r *Reader) Row() domain.MetadataRow {
	return r.cur
}

// Err returns the error that terminated iteration, nil on a clean end.
func (r *Reader) Err() error {
	return r.err
}

// Close releases the currently open table.
func (r *Reader) Close() error {
	r.closeRows()
	r.closeFile()
	return r.err
}

func (r *Reader) openFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return &ReadError{Path: path, Err: err}
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return &ReadError{Path: path, Err: err}
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		f.Close()
		return &ReadError{Path: path, Err: err}
	}
	cols, err := resolveColumns(pf.Schema())
	if err != nil {
		f.Close()
		return &ReadError{Path: path, Err: err}
	}

	r.f, r.pf, r.cols, r.path = f, pf, cols, path
	r.groups = pf.RowGroups()
	r.gidx = 0
	return nil
}

func (r *Reader) closeFile() {
	if r.f != nil {
		r.f.Close()
		r.f, r.pf, r.groups = nil, nil, nil
	}
}

func (r *Reader) closeRows() {
	if r.rows != nil {
		if err := r.rows.Close(); err != nil && r.err == nil {
			r.err = &ReadError{Path: r.path, Err: err}
		}
		r.rows = nil
	}
}

// decode projects one raw row onto a MetadataRow. Rows with a null,
// empty or non-string URL are reported unusable.
func (r *Reader) decode(row parquet.Row) (domain.MetadataRow, bool) {
	var m domain.MetadataRow
	for _, v := range row {
		if v.IsNull() {
			continue
		}
		switch v.Column() {
		case r.cols.url:
			if v.Kind() == parquet.ByteArray {
				m.URL = string(v.ByteArray())
			}
		case r.cols.text:
			if v.Kind() == parquet.ByteArray {
				m.Text = string(v.ByteArray())
			}
		case r.cols.width:
			m.Width = intValue(v)
		case r.cols.height:
			m.Height = intValue(v)
		case r.cols.license:
			if v.Kind() == parquet.ByteArray {
				m.License = string(v.ByteArray())
			}
		}
	}
	return m, m.URL != ""
}

// probe verifies a table can be opened and carries the required columns
// without reading any row data.
func probe(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return &ReadError{Path: path, Err: err}
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return &ReadError{Path: path, Err: err}
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return &ReadError{Path: path, Err: err}
	}
	if _, err := resolveColumns(pf.Schema()); err != nil {
		return &ReadError{Path: path, Err: err}
	}
	return nil
}

// resolveColumns matches the projected fields against the table schema.
// Column names are matched case-insensitively and common aliases are
// accepted, so both laion-style (URL, TEXT, WIDTH, HEIGHT) and
// lowercase layouts work.
func resolveColumns(schema *parquet.Schema) (columns, error) {
	byName := make(map[string]int)
	for _, field := range schema.Fields() {
		if lc, ok := schema.Lookup(field.Name()); ok {
			byName[strings.ToLower(field.Name())] = lc.ColumnIndex
		}
	}
	pick := func(names ...string) int {
		for _, n := range names {
			if idx, ok := byName[n]; ok {
				return idx
			}
		}
		return -1
	}

	cols := columns{
		url:     pick("url"),
		text:    pick("text", "caption"),
		width:   pick("width", "original_width"),
		height:  pick("height", "original_height"),
		license: pick("license"),
	}
	if cols.url < 0 {
		return cols, errors.New("no url column")
	}
	if cols.text < 0 {
		return cols, errors.New("no text or caption column")
	}
	return cols, nil
}

// intValue converts a numeric column value to a non-negative int.
// Tables in the wild store dimensions as int32, int64 or double;
// anything invalid collapses to 0, meaning "absent".
func intValue(v parquet.Value) int {
	var n int
	switch v.Kind() {
	case parquet.Int32:
		n = int(v.Int32())
	case parquet.Int64:
		n = int(v.Int64())
	case parquet.Double:
		f := v.Double()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		n = int(f)
	case parquet.Float:
		f := float64(v.Float())
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		n = int(f)
	default:
		return 0
	}
	if n < 0 {
		return 0
	}
	return n
}
