package vfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// Mount exposes one FileOps as a named file on a loopback HTTP listener, so an
// engine running as a separate process can open it by URL and seek with Range
// requests. It plays the host filesystem: every callback into the FileOps is
// serialized, and the first fatal error is kept for the caller.
type Mount struct {
	ctx  context.Context
	name string
	ops  FileOps
	log  *slog.Logger

	ln   net.Listener
	srv  *http.Server
	done chan struct{}

	opsMu sync.Mutex

	errMu sync.Mutex
	err   error
}

// NewMount starts serving ops as name on addr (e.g. "127.0.0.1:0"). ctx is
// used for every callback instead of the request context, so an engine
// dropping a connection mid-seek never aborts a remote fetch.
func NewMount(ctx context.Context, addr, name string, ops FileOps, log *slog.Logger) (*Mount, error) {
	if name == "" {
		return nil, fmt.Errorf("mount: empty file name: %w", ErrInvalidArgument)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("mount: listen %s: %w", addr, err)
	}

	m := &Mount{
		ctx:  ctx,
		name: name,
		ops:  ops,
		log:  log,
		ln:   ln,
		done: make(chan struct{}),
	}

	r := chi.NewRouter()
	r.Get("/{name}", m.serveFile)
	r.Head("/{name}", m.serveFile)
	m.srv = &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		defer close(m.done)
		if err := m.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Error("mount server stopped", slog.String("error", err.Error()))
		}
	}()

	m.log.Debug("mounted virtual file", slog.String("name", name), slog.String("url", m.URL()))
	return m, nil
}

// URL is the location the engine should open.
func (m *Mount) URL() string {
	return "http://" + m.ln.Addr().String() + "/" + url.PathEscape(m.name)
}

// Err returns the first fatal error raised by the FileOps, if any.
func (m *Mount) Err() error {
	m.errMu.Lock()
	defer m.errMu.Unlock()
	return m.err
}

// Close stops the listener and drops open connections.
func (m *Mount) Close() error {
	err := m.srv.Close()
	<-m.done
	return err
}

func (m *Mount) fail(err error) {
	if err == nil || errors.Is(err, ErrInvalidArgument) {
		return
	}
	m.errMu.Lock()
	defer m.errMu.Unlock()
	if m.err == nil {
		m.err = err
		m.log.Warn("virtual file read failed", slog.String("name", m.name), slog.String("error", err.Error()))
	}
}

func (m *Mount) serveFile(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "name") != m.name {
		http.NotFound(w, r)
		return
	}

	m.opsMu.Lock()
	attr, err := m.ops.Stat(m.ctx)
	m.opsMu.Unlock()
	if err != nil {
		m.fail(err)
		http.Error(w, "stat failed", http.StatusBadGateway)
		return
	}

	m.log.Debug("engine opened virtual file",
		slog.String("name", m.name),
		slog.Int64("size", attr.Size),
		slog.String("range", r.Header.Get("Range")))

	// Skip content sniffing; it would cost an extra read and seek per request.
	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeContent(w, r, m.name, time.Time{}, &fileReader{m: m})
}

// fileReader is the host side of one open stream: an io.ReadSeeker driven
// through the FileOps callbacks.
type fileReader struct {
	m      *Mount
	stream Stream
}

func (r *fileReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	r.m.opsMu.Lock()
	n, err := r.m.ops.Read(r.m.ctx, &r.stream, p, 0, len(p), r.stream.Position)
	r.m.opsMu.Unlock()
	if err != nil {
		r.m.fail(err)
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	r.stream.Position += int64(n)
	return n, nil
}

func (r *fileReader) Seek(offset int64, whence int) (int64, error) {
	r.m.opsMu.Lock()
	pos, err := r.m.ops.Seek(r.m.ctx, &r.stream, offset, Whence(whence))
	r.m.opsMu.Unlock()
	if err != nil {
		r.m.fail(err)
	}
	return pos, err
}
