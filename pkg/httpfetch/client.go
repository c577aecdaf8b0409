// Package httpfetch is the low-level HTTPS fetch abstraction every
// retriever composes with a PathPlanner: text retrieval, directory
// listing (via anchor-text extraction), and binary download to file
// with transparent gzip/zip awareness and atomic-rename write
// discipline. Keeping this single client free of retriever-specific
// knowledge is what lets IndexRetriever and FilingRetriever stay free
// of HTTP, compression, and atomicity concerns.
package httpfetch

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/dpriedel/edgarmirror/pkg/mirrorerrors"
)

// Config holds construction-time parameters for Client.
type Config struct {
	Host      string
	Port      int
	UserAgent string

	// RequestTimeout bounds a single HTTP round trip.
	RequestTimeout time.Duration
	// MinInterval is the minimum spacing between requests issued by
	// this client (the "politeness" delay).
	MinInterval time.Duration
	// MaxAttempts bounds the retry loop for retryable errors.
	MaxAttempts int
	// BaseBackoff is the first retry delay; it doubles each attempt.
	BaseBackoff time.Duration
	// MaxBackoff caps the computed backoff delay.
	MaxBackoff time.Duration
}

// DefaultConfig returns sane defaults: a 30s per-request timeout
// (matching the teacher's own http.Client timeout), a 200ms
// politeness interval, and a 5-attempt exponential backoff starting at
// 500ms and capped at 8s.
func DefaultConfig(host string, port int) Config {
	return Config{
		Host:           host,
		Port:           port,
		UserAgent:      "edgarmirror/1.0 (contact: oss@example.com)",
		RequestTimeout: 30 * time.Second,
		MinInterval:    200 * time.Millisecond,
		MaxAttempts:    5,
		BaseBackoff:    500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
	}
}

// Client is the single abstraction that talks HTTP to the archive
// host: one connection reused across requests, rate-limited to the
// configured politeness interval.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
}

// New constructs a Client for (host, port).
func New(cfg Config) *Client {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	interval := cfg.MinInterval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	scheme := "https"
	base := fmt.Sprintf("%s://%s", scheme, cfg.Host)
	if cfg.Port != 0 && cfg.Port != 443 {
		base = fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port)
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		limiter:    rate.NewLimiter(rate.Every(interval), 1),
		baseURL:    base,
	}
}

// NewWithHTTPClient builds a Client against an arbitrary base URL using
// a caller-supplied *http.Client, bypassing the https://host:port
// construction New performs. It exists so retriever and other
// composing packages can point a Client at an httptest.Server in their
// own tests without reaching into this package's unexported fields.
func NewWithHTTPClient(cfg Config, hc *http.Client, baseURL string) *Client {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	interval := cfg.MinInterval
	if interval <= 0 {
		interval = time.Millisecond
	}
	return &Client{
		cfg:        cfg,
		httpClient: hc,
		limiter:    rate.NewLimiter(rate.Every(interval), 1),
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

func (c *Client) url(remotePath string) string {
	if !strings.HasPrefix(remotePath, "/") {
		remotePath = "/" + remotePath
	}
	return c.baseURL + remotePath
}

// do performs a single rate-limited GET with the configured headers,
// then classifies the response per the §7 error taxonomy. It does not
// retry; callers use withRetry for that.
func (c *Client) do(ctx context.Context, remotePath string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &mirrorerrors.NetworkError{Op: "rate-limit wait", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(remotePath), nil)
	if err != nil {
		return nil, &mirrorerrors.InvalidInput{Field: "remotePath", Reason: err.Error()}
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &mirrorerrors.NetworkError{Op: "GET " + remotePath, Err: err}
	}

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		resp.Body.Close()
		return nil, &mirrorerrors.NotFound{Path: remotePath}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &mirrorerrors.HTTPError{Status: resp.StatusCode, URL: remotePath + ": " + string(body)}
	}

	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			resp.Body.Close()
			return nil, &mirrorerrors.ProtocolError{Reason: "transport gzip decode", Err: err}
		}
		resp.Body = &gzipCloser{Reader: gz, underlying: resp.Body}
	}

	return resp, nil
}

type gzipCloser struct {
	*gzip.Reader
	underlying io.ReadCloser
}

func (g *gzipCloser) Close() error {
	g.Reader.Close()
	return g.underlying.Close()
}

// withRetry runs op, retrying with bounded exponential backoff (plus
// jitter) while the returned error reports Retryable(); any other
// error, or exhaustion of the attempt budget, is returned as-is.
func (c *Client) withRetry(ctx context.Context, op func() (*http.Response, error)) (*http.Response, error) {
	attempts := c.cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := c.cfg.BaseBackoff
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	maxDelay := c.cfg.MaxBackoff
	if maxDelay <= 0 {
		maxDelay = 8 * time.Second
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		resp, err := op()
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !mirrorerrors.IsRetryable(err) || attempt == attempts-1 {
			return nil, err
		}
		wait := delay
		if wait > maxDelay {
			wait = maxDelay
		}
		jitter := time.Duration(float64(wait) * (0.8 + 0.4*pseudoRandom(attempt)))
		select {
		case <-time.After(jitter):
		case <-ctx.Done():
			return nil, &mirrorerrors.NetworkError{Op: "retry wait", Err: ctx.Err()}
		}
		delay *= 2
	}
	return nil, lastErr
}

// pseudoRandom is a tiny deterministic jitter source: it avoids a
// dependency on math/rand's global state so retry timing stays
// reproducible across attempts within a single process, which is all
// the jitter needs here.
func pseudoRandom(attempt int) float64 {
	const a, c, m = 1103515245, 12345, 1 << 31
	seed := uint64(attempt+1) * a + c
	return float64(seed%m) / float64(m)
}

// RetrieveText performs a GET and returns the decoded body as a
// string.
func (c *Client) RetrieveText(ctx context.Context, remotePath string) (string, error) {
	resp, err := c.withRetry(ctx, func() (*http.Response, error) { return c.do(ctx, remotePath) })
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &mirrorerrors.ProtocolError{Reason: "truncated response body", Err: err}
	}
	return string(body), nil
}

// ListDirectory GETs remotePath (expected to be an HTML directory
// listing) and extracts anchor hrefs that name child artifacts,
// filtering out navigational links ("..", "/", query-only anchors).
// Duplicates are removed; ordering follows server order.
func (c *Client) ListDirectory(ctx context.Context, remotePath string) ([]string, error) {
	resp, err := c.withRetry(ctx, func() (*http.Response, error) { return c.do(ctx, remotePath) })
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &mirrorerrors.ProtocolError{Reason: "parsing directory listing HTML", Err: err}
	}

	seen := make(map[string]bool)
	var out []string
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		name := filepath.Base(strings.TrimSuffix(href, "/"))
		if name == "" || name == "." || name == ".." || strings.HasPrefix(href, "?") || strings.HasPrefix(href, "#") {
			return
		}
		if seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	})
	return out, nil
}

// DownloadFile streams remotePath's body to local. If remotePath ends
// in ".gz" the body is decompressed on the fly so local holds the
// decompressed artifact; if it ends in ".zip" the archive bytes are
// written as-is to local. Only an error is returned, not the path: the
// caller unzips the file at the local path it passed in. Writes
// land in a sibling temp file, fsynced and atomically renamed into
// place on success, so a failed or disk-full write never leaves a
// partial artifact at the destination path.
func (c *Client) DownloadFile(ctx context.Context, remotePath, local string) error {
	resp, err := c.withRetry(ctx, func() (*http.Response, error) { return c.do(ctx, remotePath) })
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return &mirrorerrors.IOError{Op: "mkdir", Path: filepath.Dir(local), Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(local), ".tmp-"+filepath.Base(local)+"-*")
	if err != nil {
		return &mirrorerrors.IOError{Op: "create temp file", Path: local, Err: err}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	var reader io.Reader = resp.Body
	if strings.HasSuffix(remotePath, ".gz") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			tmp.Close()
			return &mirrorerrors.ProtocolError{Reason: "decompressing " + remotePath, Err: err}
		}
		defer gz.Close()
		reader = gz
	}

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return &mirrorerrors.IOError{Op: "write", Path: tmpPath, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &mirrorerrors.IOError{Op: "fsync", Path: tmpPath, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &mirrorerrors.IOError{Op: "close", Path: tmpPath, Err: err}
	}
	if err := os.Rename(tmpPath, local); err != nil {
		return &mirrorerrors.IOError{Op: "rename", Path: local, Err: err}
	}
	return nil
}
