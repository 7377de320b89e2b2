package table

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klemens/imagehaul/internal/domain"
	"github.com/parquet-go/parquet-go"
)

const (
	// DefaultFlushRows is the buffered row count after which a row group
	// is cut and written to disk.
	DefaultFlushRows = 100

	// MetaKeywords is the file metadata key carrying the keyword list a
	// table was harvested with. The catalog renderer reads it back.
	MetaKeywords = "keywords"
)

// Writer appends OutputRows to a parquet table. Rows are buffered and
// written as row groups of FlushRows rows; the remainder is flushed on
// Close. The table is built under a temporary name and renamed onto the
// destination when Close succeeds, so an aborted or crashed run leaves
// any previous table untouched.
type Writer struct {
	dst     string
	tmp     string
	f       *os.File
	pw      *parquet.GenericWriter[domain.OutputRow]
	buf     []domain.OutputRow
	flushAt int
	rows    int64
	done    bool
}

// NewWriter creates a writer targeting dst. The keyword list is recorded
// as file metadata; flushAt <= 0 selects DefaultFlushRows.
func NewWriter(dst string, keywords []string, flushAt int) (*Writer, error) {
	if flushAt <= 0 {
		flushAt = DefaultFlushRows
	}

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.CreateTemp(dir, filepath.Base(dst)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp table: %w", err)
	}

	opts := []parquet.WriterOption{
		parquet.Compression(&parquet.Zstd),
	}
	if len(keywords) > 0 {
		opts = append(opts, parquet.KeyValueMetadata(MetaKeywords, strings.Join(keywords, ",")))
	}

	return &Writer{
		dst:     dst,
		tmp:     f.Name(),
		f:       f,
		pw:      parquet.NewGenericWriter[domain.OutputRow](f, opts...),
		buf:     make([]domain.OutputRow, 0, flushAt),
		flushAt: flushAt,
	}, nil
}

// Append buffers one row, cutting a row group when the buffer is full.
func (w *Writer) Append(row domain.OutputRow) error {
	if w.done {
		return fmt.Errorf("append to closed table %s", w.dst)
	}
	w.buf = append(w.buf, row)
	w.rows++
	if len(w.buf) >= w.flushAt {
		return w.Flush()
	}
	return nil
}

// Flush writes all buffered rows as one row group. A no-op when the
// buffer is empty.
func (w *Writer) Flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	if _, err := w.pw.Write(w.buf); err != nil {
		return fmt.Errorf("write row group: %w", err)
	}
	if err := w.pw.Flush(); err != nil {
		return fmt.Errorf("flush row group: %w", err)
	}
	w.buf = w.buf[:0]
	return nil
}

// Rows returns the number of rows appended so far.
func (w *Writer) Rows() int64 {
	return w.rows
}

// CopyExisting streams every row of a previous table at path through the
// writer and returns the hashes seen, in row order, for seeding a dedup
// ledger. A missing file is not an error and yields no hashes.
func (w *Writer) CopyExisting(path string) ([]string, error) {
	r, err := OpenReader(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer r.Close()

	var hashes []string
	for r.Next() {
		row := r.Row()
		if err := w.Append(row); err != nil {
			return nil, err
		}
		hashes = append(hashes, row.Hash)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return hashes, nil
}

// Close flushes the remaining buffer, finalizes the file and renames it
// onto the destination. The destination is only ever replaced by a
// complete table.
func (w *Writer) Close() error {
	if w.done {
		return nil
	}
	w.done = true

	if len(w.buf) > 0 {
		if _, err := w.pw.Write(w.buf); err != nil {
			w.discard()
			return fmt.Errorf("write row group: %w", err)
		}
		w.buf = w.buf[:0]
	}
	if err := w.pw.Close(); err != nil {
		w.discard()
		return fmt.Errorf("finalize table: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		w.discard()
		return fmt.Errorf("sync table: %w", err)
	}
	if err := w.f.Close(); err != nil {
		os.Remove(w.tmp)
		return fmt.Errorf("close table: %w", err)
	}
	if err := os.Rename(w.tmp, w.dst); err != nil {
		os.Remove(w.tmp)
		return fmt.Errorf("commit table: %w", err)
	}
	return nil
}

// Abort discards the temporary file without touching the destination.
func (w *Writer) Abort() {
	if w.done {
		return
	}
	w.done = true
	w.discard()
}

func (w *Writer) discard() {
	w.f.Close()
	os.Remove(w.tmp)
}
