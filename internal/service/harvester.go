package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klemens/imagehaul/internal/cache"
	"github.com/klemens/imagehaul/internal/domain"
	"github.com/klemens/imagehaul/internal/fetch"
	"github.com/klemens/imagehaul/internal/filter"
	"github.com/klemens/imagehaul/internal/logger"
	"github.com/klemens/imagehaul/internal/sink"
	"github.com/klemens/imagehaul/internal/source"
	"github.com/klemens/imagehaul/internal/table"
)

// Config holds harvest run configuration.
type Config struct {
	Output       string // output table path
	Workers      int    // fetch workers, <= 0 selects 8 per CPU
	QueueDepth   int    // work queue bound, <= 0 selects workers*2
	Budget       int64  // max rows fed to the pool, <= 0 is unlimited
	MinImageSize int    // metadata dimension prefilter, 0 disables
	FlushRows    int    // output row group size
	Continue     bool   // seed the ledger from an existing output table
}

// Harvester drives the fetch-filter-dedup-persist pipeline: one producer
// feeds filtered metadata rows into a bounded queue, a fixed pool of
// workers fetches and submits them, and a collector folds the outcomes
// into counters. Its lifecycle is Idle -> Running -> Draining -> Stopped
// and a Harvester runs at most once.
type Harvester struct {
	src      *source.Reader
	keywords *filter.Keywords
	fetcher  *fetch.Fetcher
	store    *cache.Store
	logger   *logger.Logger
	cfg      Config

	state int32

	fatalMu sync.Mutex
	fatal   error
}

// NewHarvester wires the pipeline components together.
func NewHarvester(src *source.Reader, keywords *filter.Keywords, fetcher *fetch.Fetcher, store *cache.Store, log *logger.Logger, cfg Config) *Harvester {
	if keywords == nil {
		keywords = filter.NewKeywords(nil)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8 * runtime.NumCPU()
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = cfg.Workers * 2
	}
	return &Harvester{
		src:      src,
		keywords: keywords,
		fetcher:  fetcher,
		store:    store,
		logger:   log,
		cfg:      cfg,
		state:    int32(domain.StateIdle),
	}
}

// State reports the current lifecycle state.
func (h *Harvester) State() domain.RunState {
	return domain.RunState(atomic.LoadInt32(&h.state))
}

// log returns a logger from context if available, otherwise the instance logger
func (h *Harvester) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return h.logger
}

// fetchOutcome is what a worker reports back per attempted row.
type fetchOutcome struct {
	url         string
	worker      int
	size        int64 // image bytes, set on Keep
	disposition sink.Disposition
	reason      fetch.Reason
	err         error
	fatal       bool
}

// Run executes the pipeline until the source drains, the budget is
// reached or ctx is canceled. Cancellation drains gracefully: queued
// rows are dropped, in-flight fetches finish naturally and the output
// table is committed. Source read errors and output write errors are
// fatal; the temporary output is discarded and any previous table at
// the destination survives intact.
func (h *Harvester) Run(ctx context.Context) (*domain.RunStats, error) {
	if !atomic.CompareAndSwapInt32(&h.state, int32(domain.StateIdle), int32(domain.StateRunning)) {
		return nil, errors.New("harvester has already run")
	}
	defer atomic.StoreInt32(&h.state, int32(domain.StateStopped))

	ctx = logger.SetComponent(ctx, "harvester")
	stats := &domain.RunStats{StartTime: time.Now()}

	w, err := table.NewWriter(h.cfg.Output, h.keywords.Terms(), h.cfg.FlushRows)
	if err != nil {
		return nil, fmt.Errorf("open output table: %w", err)
	}

	snk := sink.New(w)
	if h.cfg.Continue {
		hashes, err := w.CopyExisting(h.cfg.Output)
		if err != nil {
			w.Abort()
			return nil, fmt.Errorf("seed ledger from previous table: %w", err)
		}
		snk.Seed(hashes)
		if len(hashes) > 0 {
			h.log(ctx).WithField("rows", len(hashes)).Info("Seeded ledger from previous table")
		}
	}

	h.log(ctx).WithFields(logger.Fields{
		"output":   h.cfg.Output,
		"workers":  h.cfg.Workers,
		"queue":    h.cfg.QueueDepth,
		"budget":   h.cfg.Budget,
		"keywords": strings.Join(h.keywords.Terms(), ","),
	}).Info("Starting harvest")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan domain.MetadataRow, h.cfg.QueueDepth)
	results := make(chan fetchOutcome, h.cfg.QueueDepth)

	// Start workers
	var wg sync.WaitGroup
	for i := 0; i < h.cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			h.worker(runCtx, workerID, jobs, results, snk, cancel)
		}(i)
	}

	// Start outcome collector
	done := make(chan struct{})
	go func() {
		defer close(done)
		for res := range results {
			atomic.AddInt64(&stats.Attempted, 1)
			switch {
			case res.fatal:
				atomic.AddInt64(&stats.Failed, 1)
				h.log(ctx).WithField("url", res.url).WithError(res.err).Error("Aborting run")
			case res.err != nil:
				atomic.AddInt64(&stats.Failed, 1)
				h.log(ctx).WithFields(logger.Fields{
					"url":              res.url,
					"reason":           res.reason,
					logger.FieldWorker: res.worker,
				}).WithError(res.err).Debug("Fetch failed")
			case res.disposition == sink.DropDuplicate:
				atomic.AddInt64(&stats.Duplicate, 1)
			default:
				atomic.AddInt64(&stats.Kept, 1)
				atomic.AddInt64(&stats.Bytes, res.size)
			}
		}
	}()

	// Feed filtered rows into the queue. The queue bound is the only
	// backpressure: when workers fall behind, the send blocks.
	var queued int64
feed:
	for h.src.Next() {
		if runCtx.Err() != nil {
			break
		}
		row := h.src.Row()
		atomic.AddInt64(&stats.Scanned, 1)
		if !h.keywords.Match(row.Text) || !filter.MinDimensions(&row, h.cfg.MinImageSize) {
			atomic.AddInt64(&stats.Filtered, 1)
			continue
		}
		select {
		case jobs <- row:
			queued++
			if h.cfg.Budget > 0 && queued >= h.cfg.Budget {
				break feed
			}
		case <-runCtx.Done():
			break feed
		}
	}
	srcErr := h.src.Err()

	// Drain: no new rows, workers finish what they hold and exit.
	atomic.StoreInt32(&h.state, int32(domain.StateDraining))
	close(jobs)
	wg.Wait()
	close(results)
	<-done

	stats.EndTime = time.Now()

	if err := h.fatalErr(); err != nil {
		w.Abort()
		return stats, err
	}
	if srcErr != nil {
		w.Abort()
		return stats, srcErr
	}
	if err := w.Close(); err != nil {
		return stats, fmt.Errorf("close output table: %w", err)
	}

	logger.With(logger.Fields{
		"scanned":   stats.Scanned,
		"filtered":  stats.Filtered,
		"attempted": stats.Attempted,
		"kept":      stats.Kept,
		"duplicate": stats.Duplicate,
		"failed":    stats.Failed,
	}).WithRows(w.Rows()).WithSize(stats.Bytes).WithDuration(stats.Duration().Milliseconds()).Info(ctx, "Harvest completed")

	return stats, nil
}

func (h *Harvester) worker(ctx context.Context, workerID int, jobs <-chan domain.MetadataRow, results chan<- fetchOutcome, snk *sink.Sink, abort context.CancelFunc) {
	// In-flight downloads are never cut short by cancellation; the
	// detached context leaves the per-fetch timeout as their only bound.
	fetchCtx := context.WithoutCancel(ctx)

	for row := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		out := fetchOutcome{url: row.URL, worker: workerID}

		img, err := h.fetcher.Fetch(fetchCtx, row.URL)
		if err != nil {
			out.err = err
			var fe *fetch.Error
			if errors.As(err, &fe) {
				out.reason = fe.Reason
			}
			results <- out
			continue
		}

		key := cache.Key(img.Hash, img.Format)
		disp, err := snk.Submit(&row, img, key)
		if err != nil {
			out.err = err
			out.fatal = true
			h.setFatal(err)
			abort()
			results <- out
			continue
		}
		out.disposition = disp

		if disp == sink.Keep {
			out.size = int64(len(img.Bytes))
			if err := h.store.Write(key, img.Bytes); err != nil {
				// A kept row whose bytes never landed would break the
				// hash/local_path integrity contract, so this counts as
				// a sink failure.
				out.err = fmt.Errorf("cache write after keep: %w", err)
				out.fatal = true
				h.setFatal(out.err)
				abort()
			}
		}
		results <- out
	}
}

func (h *Harvester) setFatal(err error) {
	h.fatalMu.Lock()
	if h.fatal == nil {
		h.fatal = err
	}
	h.fatalMu.Unlock()
}

func (h *Harvester) fatalErr() error {
	h.fatalMu.Lock()
	defer h.fatalMu.Unlock()
	return h.fatal
}
