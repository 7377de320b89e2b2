package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/klemens/imagehaul/internal/cache"
	"github.com/klemens/imagehaul/internal/config"
	"github.com/klemens/imagehaul/internal/fetch"
	"github.com/klemens/imagehaul/internal/filter"
	"github.com/klemens/imagehaul/internal/logger"
	"github.com/klemens/imagehaul/internal/service"
	"github.com/klemens/imagehaul/internal/source"
)

func main() {
	// Initialize logger from environment (supports file rotation)
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Parse command line flags
	output := flag.String("output", "", "Write the resulting table to this path")
	keywords := flag.String("keywords", "", "Comma-separated keywords captions must contain")
	workers := flag.Int("workers", 0, "Number of fetch workers (0 = 8 per CPU)")
	budget := flag.Int64("budget", 0, "Stop after feeding this many rows to the pool (0 = unlimited)")
	cont := flag.Bool("continue", false, "Seed the dedup ledger from an existing output table")
	cacheDir := flag.String("cache-dir", "", "Directory downloaded images are stored in")
	minSize := flag.Int("min-size", -1, "Minimum image edge length in pixels (0 disables)")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	inputs := flag.Args()
	if len(inputs) == 0 {
		appLogger.Fatal("No input tables given")
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	// Flags given on the command line override the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "output":
			cfg.Output.Path = *output
		case "keywords":
			cfg.Filter.Keywords = strings.Split(*keywords, ",")
		case "workers":
			cfg.Run.Workers = *workers
		case "budget":
			cfg.Run.Budget = *budget
		case "continue":
			cfg.Run.Continue = *cont
		case "cache-dir":
			cfg.Cache.Dir = *cacheDir
		case "min-size":
			cfg.Filter.MinImageSize = *minSize
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.SetRunID(ctx, uuid.New().String())
	ctx = logger.SetSource(ctx, strings.Join(inputs, ","))

	// Open pipeline components
	src, err := source.New(inputs...)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to open input tables")
	}
	defer src.Close()

	store, err := cache.New(cfg.Cache.Dir)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to open image cache")
	}

	fetcher := fetch.New(&fetch.Config{
		UserAgent:            cfg.Fetch.UserAgent,
		Timeout:              cfg.Fetch.Timeout,
		MaxBodyBytes:         cfg.Fetch.MaxBodyBytes,
		MinImageSize:         cfg.Filter.MinImageSize,
		Formats:              cfg.Fetch.Formats,
		DisallowedDirectives: cfg.Fetch.DisallowedDirectives,
	})

	harvester := service.NewHarvester(
		src,
		filter.NewKeywords(cfg.Filter.Keywords),
		fetcher,
		store,
		appLogger,
		service.Config{
			Output:       cfg.Output.Path,
			Workers:      cfg.Run.Workers,
			QueueDepth:   cfg.Run.QueueDepth,
			Budget:       cfg.Run.Budget,
			MinImageSize: cfg.Filter.MinImageSize,
			FlushRows:    cfg.Output.FlushRows,
			Continue:     cfg.Run.Continue,
		},
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, draining...")
		cancel()
	}()

	stats, err := harvester.Run(ctx)
	if err != nil {
		appLogger.WithError(err).Fatal("Harvest failed")
	}
	appLogger.WithFields(logger.Fields{
		"scanned":   stats.Scanned,
		"kept":      stats.Kept,
		"duplicate": stats.Duplicate,
		"failed":    stats.Failed,
		"duration":  stats.Duration().String(),
	}).Info("Harvest finished")
}
