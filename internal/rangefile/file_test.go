package rangefile

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// origin serves content with byte-range support and counts requests.
type origin struct {
	content  []byte
	requests atomic.Int32

	mu     sync.Mutex
	ranges []string
}

func (o *origin) seen() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.ranges...)
}

func newOrigin(t *testing.T, content []byte) (*origin, *httptest.Server) {
	t.Helper()
	o := &origin{content: content}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.requests.Add(1)
		o.mu.Lock()
		o.ranges = append(o.ranges, r.Header.Get("Range"))
		o.mu.Unlock()
		http.ServeContent(w, r, "video.mp4", time.Time{}, bytes.NewReader(o.content))
	}))
	t.Cleanup(srv.Close)
	return o, srv
}

func patterned(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

func TestFile_Size_probes_once(t *testing.T) {
	o, srv := newOrigin(t, patterned(1000))
	f := New(srv.URL)

	for i := 0; i < 3; i++ {
		size, err := f.Size(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(1000), size)
	}
	assert.Equal(t, int32(1), o.requests.Load(), "size discovery should issue exactly one request")
	assert.Equal(t, []string{"bytes=0-0"}, o.seen())
}

func TestFile_Size_hint_skips_discovery(t *testing.T) {
	o, srv := newOrigin(t, patterned(1000))
	f := New(srv.URL, WithSizeHint(1000))

	size, err := f.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1000), size)
	assert.Equal(t, int32(0), o.requests.Load())
}

func TestFile_Size_empty_file(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Range", "bytes */0")
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
	}))
	defer srv.Close()
	f := New(srv.URL)

	size, err := f.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)
}

func TestFile_Size_empty_body_without_content_range(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Size(context.Background())
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusOK, perr.StatusCode)
}

func TestFile_Size_unexpected_status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Size(context.Background())
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusForbidden, perr.StatusCode)
}

func TestFile_Size_missing_content_range(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("whole body"))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Size(context.Background())
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
}

func TestFile_ReadAt_matches_uncached_fetch(t *testing.T) {
	content := patterned(4096)
	o, srv := newOrigin(t, content)
	f := New(srv.URL, WithFetchSize(1024))

	buf := make([]byte, 100)
	n, err := f.ReadAt(context.Background(), 10, 100, buf, 0)
	require.NoError(t, err)
	require.Equal(t, 100, n)
	assert.Equal(t, content[10:110], buf)
	assert.Equal(t, []string{"bytes=10-1033"}, o.seen())

	// Every read inside the window is served without a request and matches
	// what an uncached fetch of the same range returns.
	for _, tc := range []struct{ off, length int }{{10, 1}, {500, 200}, {1033, 1}, {10, 1024}} {
		cached := make([]byte, tc.length)
		n, err := f.ReadAt(context.Background(), int64(tc.off), tc.length, cached, 0)
		require.NoError(t, err)
		require.Equal(t, tc.length, n)

		uncached := make([]byte, tc.length)
		_, err = New(srv.URL).ReadAt(context.Background(), int64(tc.off), tc.length, uncached, 0)
		require.NoError(t, err)
		assert.Equal(t, uncached, cached, "offset %d length %d", tc.off, tc.length)
	}
	assert.Equal(t, "bytes=10-1033", o.seen()[0])
}

func TestFile_ReadAt_cache_hit_issues_no_request(t *testing.T) {
	o, srv := newOrigin(t, patterned(4096))
	f := New(srv.URL, WithFetchSize(1024))

	buf := make([]byte, 64)
	_, err := f.ReadAt(context.Background(), 0, 64, buf, 0)
	require.NoError(t, err)
	_, err = f.ReadAt(context.Background(), 512, 64, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(1), o.requests.Load())

	// Backward seek outside the window replaces it.
	_, err = f.ReadAt(context.Background(), 2048, 64, buf, 0)
	require.NoError(t, err)
	_, err = f.ReadAt(context.Background(), 0, 64, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(3), o.requests.Load())
}

func TestFile_ReadAt_destination_offset(t *testing.T) {
	content := patterned(256)
	_, srv := newOrigin(t, content)
	f := New(srv.URL)

	buf := make([]byte, 20)
	n, err := f.ReadAt(context.Background(), 100, 10, buf, 5)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, make([]byte, 5), buf[:5])
	assert.Equal(t, content[100:110], buf[5:15])
}

func TestFile_ReadAt_short_tail(t *testing.T) {
	content := patterned(300)
	_, srv := newOrigin(t, content)
	f := New(srv.URL)

	buf := make([]byte, 100)
	n, err := f.ReadAt(context.Background(), 250, 100, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 50, n)
	assert.Equal(t, content[250:], buf[:50])
}

func TestFile_ReadAt_beyond_eof(t *testing.T) {
	_, srv := newOrigin(t, patterned(300))
	f := New(srv.URL)

	buf := make([]byte, 10)
	n, err := f.ReadAt(context.Background(), 1000, 10, buf, 0)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestFile_ReadAt_zero_length(t *testing.T) {
	o, srv := newOrigin(t, patterned(300))
	n, err := New(srv.URL).ReadAt(context.Background(), 0, 0, nil, 0)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, int32(0), o.requests.Load())
}

func TestFile_ReadAt_rejects_whole_body(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write(patterned(1000))
	}))
	defer srv.Close()

	buf := make([]byte, 10)
	n, err := New(srv.URL).ReadAt(context.Background(), 100, 10, buf, 0)
	assert.Equal(t, 0, n)
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusOK, perr.StatusCode)
	assert.Equal(t, make([]byte, 10), buf, "body must not be substituted for the requested slice")
}

func TestFile_ReadAt_rejects_window_past_offset(t *testing.T) {
	content := patterned(1000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Range", "bytes 500-999/1000")
		w.WriteHeader(http.StatusPartialContent)
		w.Write(content[500:])
	}))
	defer srv.Close()

	buf := make([]byte, 10)
	n, err := New(srv.URL).ReadAt(context.Background(), 100, 10, buf, 0)
	assert.Equal(t, 0, n)
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Error(), "does not cover requested offset")
}

func TestFile_ReadAt_rejects_window_before_offset(t *testing.T) {
	content := patterned(1000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Range", "bytes 0-49/1000")
		w.WriteHeader(http.StatusPartialContent)
		w.Write(content[:50])
	}))
	defer srv.Close()

	n, err := New(srv.URL).ReadAt(context.Background(), 100, 10, make([]byte, 10), 0)
	assert.Equal(t, 0, n)
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
}

func TestFile_ReadAt_malformed_content_range(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Range", "bytes */1000")
		w.WriteHeader(http.StatusPartialContent)
	}))
	defer srv.Close()

	_, err := New(srv.URL).ReadAt(context.Background(), 0, 10, make([]byte, 10), 0)
	var perr *ProtocolError
	assert.ErrorAs(t, err, &perr)
}

func TestFile_ReadAt_server_error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(srv.URL).ReadAt(context.Background(), 0, 10, make([]byte, 10), 0)
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusInternalServerError, perr.StatusCode)
}

func TestFile_ReadAt_network_error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(url).ReadAt(context.Background(), 5, 10, make([]byte, 10), 0)
	var nerr *NetworkError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, url, nerr.URL)
	assert.Equal(t, "5-262148", nerr.Range)
	assert.Contains(t, err.Error(), "bytes=5-262148")
	assert.NotNil(t, errors.Unwrap(err))
}

type countingObserver struct {
	hits, misses int
	bytes        int64
}

func (c *countingObserver) CacheHit()            { c.hits++ }
func (c *countingObserver) CacheMiss()           { c.misses++ }
func (c *countingObserver) RangeFetched(n int64) { c.bytes += n }

func TestFile_observer(t *testing.T) {
	_, srv := newOrigin(t, patterned(2048))
	obs := &countingObserver{}
	f := New(srv.URL, WithFetchSize(1024), WithObserver(obs))

	buf := make([]byte, 16)
	for _, off := range []int64{0, 16, 32, 1500} {
		_, err := f.ReadAt(context.Background(), off, 16, buf, 0)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, obs.hits)
	assert.Equal(t, 2, obs.misses)
	assert.Equal(t, int64(1024+548), obs.bytes)
}
