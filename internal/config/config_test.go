package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestLoadDefaults verifies the built-in defaults when no config file exists
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Run.Workers != 0 {
		t.Errorf("run.workers = %d, want 0", cfg.Run.Workers)
	}
	if cfg.Filter.MinImageSize != 128 {
		t.Errorf("filter.min_image_size = %d, want 128", cfg.Filter.MinImageSize)
	}
	if cfg.Fetch.Timeout != 10*time.Second {
		t.Errorf("fetch.timeout = %s, want 10s", cfg.Fetch.Timeout)
	}
	if cfg.Fetch.MaxBodyBytes != 20<<20 {
		t.Errorf("fetch.max_body_bytes = %d, want %d", cfg.Fetch.MaxBodyBytes, 20<<20)
	}
	if len(cfg.Fetch.Formats) != 2 || cfg.Fetch.Formats[0] != "jpg" || cfg.Fetch.Formats[1] != "png" {
		t.Errorf("fetch.formats = %v, want [jpg png]", cfg.Fetch.Formats)
	}
	if cfg.Output.Path != "images.parquet" {
		t.Errorf("output.path = %q", cfg.Output.Path)
	}
	if cfg.Output.FlushRows != 100 {
		t.Errorf("output.flush_rows = %d, want 100", cfg.Output.FlushRows)
	}
	if cfg.Cache.Dir != "./images" {
		t.Errorf("cache.dir = %q", cfg.Cache.Dir)
	}
	if cfg.Catalog.MaxImages != 1280 || cfg.Catalog.ThumbSize != 128 || cfg.Catalog.Quality != 80 {
		t.Errorf("catalog defaults = %+v", cfg.Catalog)
	}
}

// TestLoadFromFile verifies values from a yaml config file override defaults
func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
run:
  workers: 3
  budget: 50
filter:
  keywords:
    - pumpkin
    - halloween
  min_image_size: 64
fetch:
  timeout: 3s
  formats:
    - jpg
output:
  path: /data/out.parquet
  flush_rows: 10
cache:
  dir: /data/images
catalog:
  title: Pumpkins
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Run.Workers != 3 {
		t.Errorf("run.workers = %d, want 3", cfg.Run.Workers)
	}
	if cfg.Run.Budget != 50 {
		t.Errorf("run.budget = %d, want 50", cfg.Run.Budget)
	}
	if len(cfg.Filter.Keywords) != 2 || cfg.Filter.Keywords[0] != "pumpkin" {
		t.Errorf("filter.keywords = %v", cfg.Filter.Keywords)
	}
	if cfg.Filter.MinImageSize != 64 {
		t.Errorf("filter.min_image_size = %d, want 64", cfg.Filter.MinImageSize)
	}
	if cfg.Fetch.Timeout != 3*time.Second {
		t.Errorf("fetch.timeout = %s, want 3s", cfg.Fetch.Timeout)
	}
	if len(cfg.Fetch.Formats) != 1 || cfg.Fetch.Formats[0] != "jpg" {
		t.Errorf("fetch.formats = %v, want [jpg]", cfg.Fetch.Formats)
	}
	if cfg.Output.Path != "/data/out.parquet" {
		t.Errorf("output.path = %q", cfg.Output.Path)
	}
	if cfg.Output.FlushRows != 10 {
		t.Errorf("output.flush_rows = %d, want 10", cfg.Output.FlushRows)
	}
	if cfg.Cache.Dir != "/data/images" {
		t.Errorf("cache.dir = %q", cfg.Cache.Dir)
	}
	if cfg.Catalog.Title != "Pumpkins" {
		t.Errorf("catalog.title = %q", cfg.Catalog.Title)
	}
	// Untouched sections keep their defaults
	if cfg.Fetch.MaxBodyBytes != 20<<20 {
		t.Errorf("fetch.max_body_bytes = %d, want default", cfg.Fetch.MaxBodyBytes)
	}
}

// TestLoadEnvOverride verifies deployment environment variables win
func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("RUN_WORKERS", "4")
	t.Setenv("OUTPUT_PATH", "/env/out.parquet")
	t.Setenv("CACHE_DIR", "/env/images")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Run.Workers != 4 {
		t.Errorf("run.workers = %d, want 4", cfg.Run.Workers)
	}
	if cfg.Output.Path != "/env/out.parquet" {
		t.Errorf("output.path = %q", cfg.Output.Path)
	}
	if cfg.Cache.Dir != "/env/images" {
		t.Errorf("cache.dir = %q", cfg.Cache.Dir)
	}
}

// TestLoadMissingExplicitFile verifies a named but absent config file fails
func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for a missing explicit config file")
	}
}
