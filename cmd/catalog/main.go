package main

import (
	"context"
	"flag"

	"github.com/google/uuid"
	"github.com/klemens/imagehaul/internal/cache"
	"github.com/klemens/imagehaul/internal/catalog"
	"github.com/klemens/imagehaul/internal/config"
	"github.com/klemens/imagehaul/internal/logger"
)

func main() {
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "text",
		ServiceName: "imagehaul-catalog",
	})
	logger.SetDefaultLogger(appLogger)

	// Parse command line flags
	output := flag.String("output", "", "Write the catalog page to this path")
	title := flag.String("title", "", "Title of the catalog page")
	maxImages := flag.Int("max-images", 0, "Maximum number of tiles on the page")
	cacheDir := flag.String("cache-dir", "", "Directory the images were downloaded to")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	if flag.NArg() != 1 {
		appLogger.Fatal("Expected exactly one table argument")
	}
	tablePath := flag.Arg(0)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	// Flags given on the command line override the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "output":
			cfg.Catalog.Output = *output
		case "title":
			cfg.Catalog.Title = *title
		case "max-images":
			cfg.Catalog.MaxImages = *maxImages
		case "cache-dir":
			cfg.Cache.Dir = *cacheDir
		}
	})

	ctx := logger.SetRunID(context.Background(), uuid.New().String())
	ctx = logger.SetSource(ctx, tablePath)

	store, err := cache.New(cfg.Cache.Dir)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to open image cache")
	}

	renderer := catalog.New(catalog.Config{
		Table:     tablePath,
		Output:    cfg.Catalog.Output,
		Title:     cfg.Catalog.Title,
		MaxImages: cfg.Catalog.MaxImages,
		ThumbSize: cfg.Catalog.ThumbSize,
		Quality:   cfg.Catalog.Quality,
	}, store, appLogger)

	tiles, err := renderer.Render(ctx)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to build catalog")
	}
	appLogger.WithFields(logger.Fields{
		"tiles":  tiles,
		"output": cfg.Catalog.Output,
	}).Info("Catalog written")
}
