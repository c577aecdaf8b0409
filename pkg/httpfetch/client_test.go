package httpfetch

import (
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/dpriedel/edgarmirror/pkg/mirrorerrors"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	c := &Client{
		cfg:        DefaultConfig("example.invalid", 443),
		httpClient: srv.Client(),
		limiter:    rate.NewLimiter(rate.Inf, 1),
		baseURL:    srv.URL,
	}
	return c, srv.Close
}

func TestURLJoining(t *testing.T) {
	c := New(DefaultConfig("www.sec.gov", 443))
	assert.Equal(t, "https://www.sec.gov/Archives/edgar/foo", c.url("/Archives/edgar/foo"))
	assert.Equal(t, "https://www.sec.gov/bar", c.url("bar"))
}

func TestURLJoiningNonDefaultPort(t *testing.T) {
	c := New(DefaultConfig("localhost", 8443))
	assert.Equal(t, "https://localhost:8443/x", c.url("/x"))
}

func TestRetrieveTextSuccess(t *testing.T) {
	c, closeFn := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello world"))
	})
	defer closeFn()

	body, err := c.RetrieveText(context.Background(), "/anything")
	require.NoError(t, err)
	assert.Equal(t, "hello world", body)
}

func TestRetrieveTextNotFound(t *testing.T) {
	c, closeFn := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer closeFn()

	_, err := c.RetrieveText(context.Background(), "/missing")
	assert.Error(t, err)
	assert.True(t, mirrorerrors.IsNotFound(err))
}

func TestRetrieveTextGzipped(t *testing.T) {
	c, closeFn := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		gz.Write([]byte("compressed body"))
		gz.Close()
	})
	defer closeFn()

	body, err := c.RetrieveText(context.Background(), "/x.gz")
	require.NoError(t, err)
	assert.Equal(t, "compressed body", body)
}

func TestListDirectoryExtractsNames(t *testing.T) {
	c, closeFn := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<a href="../">..</a>
			<a href="master.20131014.idx">master.20131014.idx</a>
			<a href="form.20131014.idx.gz">form.20131014.idx.gz</a>
			<a href="?C=N">sort</a>
		</body></html>`))
	})
	defer closeFn()

	names, err := c.ListDirectory(context.Background(), "/Archives/edgar/2013/QTR4/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"master.20131014.idx", "form.20131014.idx.gz"}, names)
}

func TestDownloadFileAtomicAndDecompresses(t *testing.T) {
	c, closeFn := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gz := gzip.NewWriter(w)
		gz.Write([]byte("file contents"))
		gz.Close()
	})
	defer closeFn()

	dir := t.TempDir()
	dest := filepath.Join(dir, "out.idx")
	err := c.DownloadFile(context.Background(), "/form.20131014.idx.gz", dest)
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "file contents", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no leftover temp file")
}

func TestWithRetryRetriesRetryableThenSucceeds(t *testing.T) {
	c := &Client{cfg: Config{MaxAttempts: 3, BaseBackoff: 1, MaxBackoff: 1}}
	attempt := 0
	_, err := c.withRetry(context.Background(), func() (*http.Response, error) {
		attempt++
		if attempt < 3 {
			return nil, &mirrorerrors.HTTPError{Status: 503}
		}
		return &http.Response{StatusCode: 200}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempt)
}

func TestWithRetryGivesUpOnNonRetryable(t *testing.T) {
	c := &Client{cfg: Config{MaxAttempts: 5, BaseBackoff: 1, MaxBackoff: 1}}
	attempt := 0
	_, err := c.withRetry(context.Background(), func() (*http.Response, error) {
		attempt++
		return nil, &mirrorerrors.HTTPError{Status: 404}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempt)
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	c := &Client{cfg: Config{MaxAttempts: 3, BaseBackoff: 1, MaxBackoff: 1}}
	attempt := 0
	boom := errors.New("network down")
	_, err := c.withRetry(context.Background(), func() (*http.Response, error) {
		attempt++
		return nil, &mirrorerrors.NetworkError{Op: "GET", Err: boom}
	})
	assert.Error(t, err)
	assert.Equal(t, 3, attempt)
}

func TestPseudoRandomDeterministicAndBounded(t *testing.T) {
	a := pseudoRandom(2)
	b := pseudoRandom(2)
	assert.Equal(t, a, b)
	assert.GreaterOrEqual(t, a, 0.0)
	assert.Less(t, a, 1.0)
}
