package rangefile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
)

// DefaultFetchSize is the minimum number of bytes requested per range GET.
const DefaultFetchSize = 256 * 1024

var contentRangePattern = regexp.MustCompile(`^bytes (\d+)-(\d+)/(\d+)$`)

// Observer receives read accounting from a File. Implementations must be
// cheap; they are called inline on every read.
type Observer interface {
	CacheHit()
	CacheMiss()
	RangeFetched(bytes int64)
}

type noopObserver struct{}

func (noopObserver) CacheHit()          {}
func (noopObserver) CacheMiss()         {}
func (noopObserver) RangeFetched(int64) {}

// File is a read-only random-access view of a remote resource. It is not
// safe for concurrent use: the cache window has a single reader and writer.
type File struct {
	url       string
	client    *http.Client
	log       *slog.Logger
	observer  Observer
	fetchSize int64

	size      int64
	sizeKnown bool

	cache Cache
}

// Option configures a File.
type Option func(*File)

// WithSizeHint marks the file size as already known, skipping discovery.
func WithSizeHint(size int64) Option {
	return func(f *File) {
		if size >= 0 {
			f.size = size
			f.sizeKnown = true
		}
	}
}

// WithFetchSize sets the minimum range GET length. Values <= 0 are ignored.
func WithFetchSize(n int64) Option {
	return func(f *File) {
		if n > 0 {
			f.fetchSize = n
		}
	}
}

// WithHTTPClient sets the client used for range GETs. Its Timeout is the
// only deadline applied to a read.
func WithHTTPClient(c *http.Client) Option {
	return func(f *File) {
		if c != nil {
			f.client = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *File) {
		if l != nil {
			f.log = l
		}
	}
}

// WithObserver sets the read observer.
func WithObserver(o Observer) Option {
	return func(f *File) {
		if o != nil {
			f.observer = o
		}
	}
}

// New returns a File for url. Nothing is fetched until Size or ReadAt is called.
func New(url string, opts ...Option) *File {
	f := &File{
		url:       url,
		client:    http.DefaultClient,
		log:       slog.Default(),
		observer:  noopObserver{},
		fetchSize: DefaultFetchSize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// URL returns the remote location.
func (f *File) URL() string {
	return f.url
}

// Size returns the remote file size, discovering it with a zero-length range
// probe on first use. A successful discovery is memoized for the lifetime of f.
func (f *File) Size(ctx context.Context) (int64, error) {
	if f.sizeKnown {
		return f.size, nil
	}

	resp, rng, err := f.get(ctx, 0, 0)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable {
		f.log.Warn("size probe not satisfiable, treating file as empty", slog.String("url", f.url))
		f.size, f.sizeKnown = 0, true
		return 0, nil
	}
	if !isSuccess(resp.StatusCode) {
		return 0, &ProtocolError{URL: f.url, Range: rng, StatusCode: resp.StatusCode, Reason: "unexpected response status"}
	}

	header := resp.Header.Get("Content-Range")
	if header == "" {
		return 0, &ProtocolError{URL: f.url, Range: rng, StatusCode: resp.StatusCode, Reason: "response did not contain Content-Range header"}
	}
	_, _, total, err := parseContentRange(header)
	if err != nil {
		return 0, &ProtocolError{URL: f.url, Range: rng, StatusCode: resp.StatusCode, Reason: "cannot determine file size: " + err.Error()}
	}

	f.log.Debug("discovered remote size", slog.String("url", f.url), slog.Int64("size", total))
	f.size, f.sizeKnown = total, true
	return total, nil
}

// ReadAt copies up to length bytes at offset into dst[dstOffset:] and returns
// the number of bytes written. It blocks on the network when the cache window
// cannot serve the read. A range beyond end of file yields 0 and no error.
func (f *File) ReadAt(ctx context.Context, offset int64, length int, dst []byte, dstOffset int) (int, error) {
	if length <= 0 {
		return 0, nil
	}
	if offset < 0 || dstOffset < 0 || dstOffset+length > len(dst) {
		return 0, fmt.Errorf("read %d bytes at %d into buffer of %d at %d: %w", length, offset, len(dst), dstOffset, io.ErrShortBuffer)
	}
	target := dst[dstOffset : dstOffset+length]

	if f.cache.CanServe(offset, int64(length)) {
		f.observer.CacheHit()
		return f.cache.Serve(offset, int64(length), target), nil
	}
	f.observer.CacheMiss()

	resp, rng, err := f.get(ctx, offset, int64(length))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable {
		f.log.Debug("range not satisfiable, reporting end of file",
			slog.String("url", f.url),
			slog.String("range", rng))
		return 0, nil
	}
	if !isSuccess(resp.StatusCode) {
		return 0, &ProtocolError{URL: f.url, Range: rng, StatusCode: resp.StatusCode, Reason: "unexpected response status"}
	}

	header := resp.Header.Get("Content-Range")
	if header == "" {
		return 0, &ProtocolError{URL: f.url, Range: rng, StatusCode: resp.StatusCode, Reason: "response did not contain Content-Range header"}
	}
	start, _, total, err := parseContentRange(header)
	if err != nil {
		return 0, &ProtocolError{URL: f.url, Range: rng, StatusCode: resp.StatusCode, Reason: err.Error()}
	}
	if start > offset {
		return 0, &ProtocolError{URL: f.url, Range: rng, StatusCode: resp.StatusCode, Reason: "Content-Range does not cover requested offset"}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, &NetworkError{URL: f.url, Range: rng, Err: err}
	}
	if offset >= start+int64(len(data)) {
		if offset < total {
			return 0, &ProtocolError{URL: f.url, Range: rng, StatusCode: resp.StatusCode, Reason: "Content-Range does not cover requested offset"}
		}
		return 0, nil
	}
	f.observer.RangeFetched(int64(len(data)))
	f.log.Debug("range fetched",
		slog.String("url", f.url),
		slog.String("range", rng),
		slog.Int64("window_offset", start),
		slog.Int("bytes", len(data)))

	f.cache.Replace(start, data)
	return f.cache.Serve(offset, int64(length), target), nil
}

// get issues one range GET. A zero length requests the single byte at offset,
// which is how size discovery probes the origin.
func (f *File) get(ctx context.Context, offset, length int64) (*http.Response, string, error) {
	end := offset
	if length > 0 {
		end += max(length, f.fetchSize) - 1
	}
	rng := strconv.FormatInt(offset, 10) + "-" + strconv.FormatInt(end, 10)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, rng, &NetworkError{URL: f.url, Range: rng, Err: err}
	}
	req.Header.Set("Range", "bytes="+rng)
	// Content-Range describes the encoded body; keep the transport from
	// decompressing it underneath us.
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, rng, &NetworkError{URL: f.url, Range: rng, Err: err}
	}
	return resp, rng, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status <= 299
}

func parseContentRange(header string) (start, end, total int64, err error) {
	m := contentRangePattern.FindStringSubmatch(header)
	if m == nil {
		return 0, 0, 0, fmt.Errorf("could not parse Content-Range header %q", header)
	}
	if start, err = strconv.ParseInt(m[1], 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("content-range start: %w", err)
	}
	if end, err = strconv.ParseInt(m[2], 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("content-range end: %w", err)
	}
	if total, err = strconv.ParseInt(m[3], 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("content-range total: %w", err)
	}
	return start, end, total, nil
}
