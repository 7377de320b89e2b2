package fetch

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/klemens/imagehaul/internal/domain"
	"golang.org/x/crypto/blake2b"
	_ "golang.org/x/image/webp"
)

const (
	// DefaultUserAgent is sent with every request; some image hosts
	// refuse requests without a browser user agent.
	DefaultUserAgent = "Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:72.0) Gecko/20100101 Firefox/72.0"

	// DefaultTimeout bounds a single fetch including body read.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxBodyBytes caps the response body size per fetch.
	DefaultMaxBodyBytes = 20 << 20
)

// Config holds fetcher settings.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
	MinImageSize int // minimum decoded edge length, 0 disables

	// Formats lists accepted decode formats (jpg, png, ...). Empty
	// accepts anything the registered decoders understand.
	Formats []string

	// DisallowedDirectives lists X-Robots-Tag directives that reject an
	// image (for example noindex, noimageindex). Empty disables the check.
	DisallowedDirectives []string
}

// Fetcher downloads one image per URL with a single GET, validates that
// the body decodes as an acceptable image and computes its content hash.
// It never retries.
type Fetcher struct {
	client     *resty.Client
	maxBody    int64
	minSize    int
	formats    map[string]bool
	disallowed []string
}

// New creates a Fetcher. Zero config fields fall back to the package
// defaults.
func New(cfg *Config) *Fetcher {
	if cfg == nil {
		cfg = &Config{}
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	client := resty.New()
	client.SetHeader("User-Agent", ua)
	client.SetTimeout(timeout)
	client.SetDoNotParseResponse(true)

	var formats map[string]bool
	if len(cfg.Formats) > 0 {
		formats = make(map[string]bool, len(cfg.Formats))
		for _, f := range cfg.Formats {
			formats[normalizeFormat(f)] = true
		}
	}

	disallowed := make([]string, 0, len(cfg.DisallowedDirectives))
	for _, d := range cfg.DisallowedDirectives {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			disallowed = append(disallowed, d)
		}
	}

	return &Fetcher{
		client:     client,
		maxBody:    maxBody,
		minSize:    cfg.MinImageSize,
		formats:    formats,
		disallowed: disallowed,
	}
}

// Fetch downloads the image at url. On success it returns the raw bytes
// together with the content hash and decoded dimensions. Every failure
// is returned as an *Error carrying the rejection reason; no retry is
// attempted at this layer.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*domain.Image, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, &Error{URL: url, Reason: ReasonNetwork, Err: err}
	}
	body := resp.RawBody()
	defer body.Close()

	if code := resp.StatusCode(); code < 200 || code > 299 {
		return nil, &Error{URL: url, Reason: ReasonHTTPStatus, Status: code}
	}

	if dir := disallowedDirective(resp.Header(), f.disallowed); dir != "" {
		return nil, &Error{URL: url, Reason: ReasonRobots, Err: fmt.Errorf("x-robots-tag directive %q", dir)}
	}

	data, err := readCapped(body, f.maxBody)
	if err != nil {
		reason := ReasonNetwork
		if err == errBodyTooLarge {
			reason = ReasonTooLarge
		}
		return nil, &Error{URL: url, Reason: reason, Err: err}
	}

	imgCfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &Error{URL: url, Reason: ReasonNotImage, Err: err}
	}
	format = normalizeFormat(format)

	if f.formats != nil && !f.formats[format] {
		return nil, &Error{URL: url, Reason: ReasonFormat, Err: fmt.Errorf("format %s not accepted", format)}
	}
	if f.minSize > 0 && (imgCfg.Width < f.minSize || imgCfg.Height < f.minSize) {
		return nil, &Error{
			URL:    url,
			Reason: ReasonTooSmall,
			Err:    fmt.Errorf("decoded size %dx%d below minimum %d", imgCfg.Width, imgCfg.Height, f.minSize),
		}
	}

	return &domain.Image{
		Bytes:  data,
		Hash:   ContentHash(data),
		Format: format,
		Width:  imgCfg.Width,
		Height: imgCfg.Height,
	}, nil
}

// ContentHash returns the BLAKE2b-128 hex digest of data. The digest is
// the image's identity throughout the pipeline: cache file name, dedup
// key and hash column of the output table.
func ContentHash(data []byte) string {
	h, err := blake2b.New(16, nil)
	if err != nil {
		// Unreachable: size 16 with no key is always valid.
		panic(err)
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

var errBodyTooLarge = fmt.Errorf("response body exceeds size limit")

// readCapped reads at most max bytes, returning errBodyTooLarge when the
// body is longer.
func readCapped(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// disallowedDirective returns the first X-Robots-Tag directive present
// in both the response headers and the configured disallow list. Header
// values may carry a user agent token before the directives, so only
// the part after the colon is inspected.
func disallowedDirective(h http.Header, disallowed []string) string {
	if len(disallowed) == 0 {
		return ""
	}
	for _, value := range h.Values("X-Robots-Tag") {
		parts := strings.SplitN(value, ":", 2)
		for _, directive := range strings.Split(parts[len(parts)-1], ",") {
			directive = strings.ToLower(strings.TrimSpace(directive))
			for _, bad := range disallowed {
				if directive == bad {
					return directive
				}
			}
		}
	}
	return ""
}

func normalizeFormat(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "jpeg" {
		return "jpg"
	}
	return format
}
