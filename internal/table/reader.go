package table

import (
	"fmt"
	"io"
	"os"

	"github.com/klemens/imagehaul/internal/domain"
	"github.com/parquet-go/parquet-go"
)

const readBatch = 128

// Reader streams OutputRows back out of a table, one row group at a
// time. Iteration follows the bufio.Scanner pattern:
//
//	r, err := table.OpenReader(path)
//	for r.Next() {
//	    row := r.Row()
//	}
//	err = r.Err()
type Reader struct {
	f      *os.File
	pf     *parquet.File
	groups []parquet.RowGroup
	gidx   int
	rg     *parquet.GenericReader[domain.OutputRow]
	buf    []domain.OutputRow
	n, pos int
	cur    domain.OutputRow
	err    error
	done   bool
}

// OpenReader opens an output table for streaming reads.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat table: %w", err)
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("parse table %s: %w", path, err)
	}
	return &Reader{
		f:      f,
		pf:     pf,
		groups: pf.RowGroups(),
		buf:    make([]domain.OutputRow, readBatch),
	}, nil
}

// Next advances to the next row, returning false at the end of the table
// or on error.
func (r *Reader) Next() bool {
	for {
		if r.pos < r.n {
			r.cur = r.buf[r.pos]
			r.pos++
			return true
		}
		if r.err != nil || r.done {
			return false
		}
		if r.rg == nil {
			if r.gidx >= len(r.groups) {
				r.done = true
				return false
			}
			r.rg = parquet.NewGenericRowGroupReader[domain.OutputRow](r.groups[r.gidx])
			r.gidx++
		}
		n, err := r.rg.Read(r.buf)
		r.n, r.pos = n, 0
		if err == io.EOF {
			r.closeGroup()
		} else if err != nil {
			r.err = fmt.Errorf("read row group: %w", err)
		}
	}
}

// Row returns the current row. Only valid after Next returned true.
func (r *Reader) Row() domain.OutputRow {
	return r.cur
}

// Err returns the first error encountered during iteration, nil on a
// clean end of table.
func (r *Reader) Err() error {
	return r.err
}

// NumRows returns the total row count recorded in the table footer.
func (r *Reader) NumRows() int64 {
	return r.pf.NumRows()
}

// Keywords returns the keyword list the table was harvested with, if
// recorded.
func (r *Reader) Keywords() (string, bool) {
	return r.pf.Lookup(MetaKeywords)
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	r.closeGroup()
	return r.f.Close()
}

func (r *Reader) closeGroup() {
	if r.rg != nil {
		if err := r.rg.Close(); err != nil && r.err == nil {
			r.err = fmt.Errorf("close row group: %w", err)
		}
		r.rg = nil
	}
}
