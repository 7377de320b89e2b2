package sink

import (
	"fmt"
	"sync"

	"github.com/klemens/imagehaul/internal/domain"
	"github.com/klemens/imagehaul/internal/table"
)

// Disposition is the keep/duplicate decision for a submitted image.
type Disposition int

const (
	Keep Disposition = iota
	DropDuplicate
)

func (d Disposition) String() string {
	if d == DropDuplicate {
		return "duplicate"
	}
	return "keep"
}

// Sink owns the dedup ledger and the output table writer. Submit is the
// only path that touches either, so the at-most-one-row-per-hash
// invariant holds no matter how many workers race on the same content.
// Submit never performs network I/O.
type Sink struct {
	mu   sync.Mutex
	seen map[string]struct{}
	w    *table.Writer
}

// New wraps a table writer. The ledger starts empty; use Seed to preload
// hashes from a previous run.
func New(w *table.Writer) *Sink {
	return &Sink{
		seen: make(map[string]struct{}),
		w:    w,
	}
}

// Seed marks hashes as already present so continuation runs never
// re-add content a previous run kept. Must be called before workers
// start submitting.
func (s *Sink) Seed(hashes []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range hashes {
		s.seen[h] = struct{}{}
	}
}

// Submit decides whether a fetched image is kept. A hash seen before
// returns DropDuplicate and writes nothing. A new hash is recorded in
// the ledger and appended to the output table as one row built from the
// metadata row, the image and its cache location. A write error is
// fatal to the run: the hash is not recorded and the error is returned.
func (s *Sink) Submit(row *domain.MetadataRow, img *domain.Image, localPath string) (Disposition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[img.Hash]; ok {
		return DropDuplicate, nil
	}

	out := domain.OutputRow{
		Size:           int64(len(img.Bytes)),
		Width:          int32(img.Width),
		Height:         int32(img.Height),
		OriginalWidth:  int32(row.Width),
		OriginalHeight: int32(row.Height),
		URL:            row.URL,
		Text:           row.Text,
		LocalPath:      localPath,
		License:        row.License,
		Hash:           img.Hash,
	}
	if err := s.w.Append(out); err != nil {
		return Keep, fmt.Errorf("append output row: %w", err)
	}
	s.seen[img.Hash] = struct{}{}
	return Keep, nil
}

// Len returns the number of hashes in the ledger.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
