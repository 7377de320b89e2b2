package catalog

import (
	"bytes"
	"context"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/klemens/imagehaul/internal/cache"
	"github.com/klemens/imagehaul/internal/logger"
	"github.com/klemens/imagehaul/internal/table"
	_ "golang.org/x/image/webp"
)

//go:embed assets
var assets embed.FS

const (
	DefaultMaxImages = 1280
	DefaultThumbSize = 128
	DefaultQuality   = 80
	DefaultTitle     = "Catalog"
)

// Config holds catalog renderer settings.
type Config struct {
	Table     string // harvested output table to read
	Output    string // index.html destination
	Title     string // page title, falls back to the table's keywords
	MaxImages int
	ThumbSize int
	Quality   int
}

// Renderer builds a static browsing page for a harvested table: one
// tile per kept image, thumbnails center-cropped to squares and
// embedded as JPEG data URLs so the page works without the cache
// directory present. The stylesheet and selection script are written
// next to the page.
type Renderer struct {
	cfg    Config
	store  *cache.Store
	logger *logger.Logger
}

// New creates a renderer reading image bytes from store.
func New(cfg Config, store *cache.Store, log *logger.Logger) *Renderer {
	if cfg.MaxImages <= 0 {
		cfg.MaxImages = DefaultMaxImages
	}
	if cfg.ThumbSize <= 0 {
		cfg.ThumbSize = DefaultThumbSize
	}
	if cfg.Quality <= 0 {
		cfg.Quality = DefaultQuality
	}
	return &Renderer{cfg: cfg, store: store, logger: log}
}

// log returns a logger from context if available, otherwise the instance logger
func (r *Renderer) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return r.logger
}

type tile struct {
	URL   string
	Title string
	Hash  string
	Style template.CSS
}

type page struct {
	Title    string
	Keywords string
	Tiles    []tile
}

// Render writes the catalog page and its assets, returning the number
// of tiles produced. Entries whose cached image is missing or does not
// decode are skipped with a warning.
func (r *Renderer) Render(ctx context.Context) (int, error) {
	ctx = logger.SetComponent(ctx, "catalog")

	rd, err := table.OpenReader(r.cfg.Table)
	if err != nil {
		return 0, err
	}
	defer rd.Close()

	keywords, _ := rd.Keywords()
	title := r.cfg.Title
	if title == "" {
		title = keywords
	}
	if title == "" {
		title = DefaultTitle
	}

	r.log(ctx).WithFields(logger.Fields{
		"table": r.cfg.Table,
		"rows":  rd.NumRows(),
	}).Info("Building catalog")

	tiles := make([]tile, 0, min(int(rd.NumRows()), r.cfg.MaxImages))
	for rd.Next() {
		if len(tiles) >= r.cfg.MaxImages {
			break
		}
		row := rd.Row()
		thumb, err := r.thumbnail(row.LocalPath)
		if err != nil {
			r.log(ctx).WithField("hash", row.Hash).WithError(err).Warn("Skipping entry")
			continue
		}
		tiles = append(tiles, tile{
			URL:   row.URL,
			Title: fmt.Sprintf("%dx%d, %s", row.OriginalWidth, row.OriginalHeight, strings.ReplaceAll(row.Text, `"`, "")),
			Hash:  row.Hash,
			Style: template.CSS("background-image: url('data:image/jpeg;base64," + thumb + "')"),
		})
	}
	if err := rd.Err(); err != nil {
		return 0, err
	}

	tmpl, err := template.ParseFS(assets, "assets/index.html.tmpl")
	if err != nil {
		return 0, fmt.Errorf("parse page template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, page{Title: title, Keywords: keywords, Tiles: tiles}); err != nil {
		return 0, fmt.Errorf("render page: %w", err)
	}
	if err := os.WriteFile(r.cfg.Output, buf.Bytes(), 0o644); err != nil {
		return 0, fmt.Errorf("write page: %w", err)
	}
	if err := r.copyAssets(filepath.Dir(r.cfg.Output)); err != nil {
		return 0, err
	}

	logger.With(logger.Fields{
		"output": r.cfg.Output,
	}).WithCount(int64(len(tiles))).Info(ctx, "Catalog rendered")
	return len(tiles), nil
}

// thumbnail loads a cached image and returns it center-cropped, scaled
// and re-encoded as base64 JPEG.
func (r *Renderer) thumbnail(key string) (string, error) {
	f, err := r.store.Open(key)
	if err != nil {
		return "", err
	}
	defer f.Close()

	img, err := imaging.Decode(f)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", key, err)
	}
	thumb := imaging.Fill(img, r.cfg.ThumbSize, r.cfg.ThumbSize, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(r.cfg.Quality)); err != nil {
		return "", fmt.Errorf("encode thumbnail %s: %w", key, err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (r *Renderer) copyAssets(dir string) error {
	for _, name := range []string{"catalog.css", "catalog.js"} {
		data, err := assets.ReadFile("assets/" + name)
		if err != nil {
			return fmt.Errorf("load asset %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return fmt.Errorf("write asset %s: %w", name, err)
		}
	}
	return nil
}
