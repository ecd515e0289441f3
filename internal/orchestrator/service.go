package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"filmstrip/internal/platform/metrics"
	"filmstrip/internal/trace"
)

var (
	// ErrBusy is returned when a generation is requested while another runs.
	ErrBusy = errors.New("a filmstrip is already being generated")

	// ErrInvalidVideo is returned for a video that cannot be fetched by range.
	ErrInvalidVideo = errors.New("invalid video")

	// ErrNotFound is returned for an unknown filmstrip or tile.
	ErrNotFound = errors.New("not found")
)

// Generator produces a filmstrip artifact for a video. *Orchestrator satisfies it.
type Generator interface {
	Generate(ctx context.Context, v Video) (*Result, error)
}

// Service runs one generation at a time and keeps the results in a Repository.
type Service struct {
	repo    Repository
	gen     Generator
	log     *slog.Logger
	metrics *metrics.Metrics

	busy atomic.Bool
}

// NewService returns a Service. Metrics may be nil to disable metric recording.
func NewService(repo Repository, gen Generator, log *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{repo: repo, gen: gen, log: log, metrics: m}
}

// Create validates v, generates its filmstrip and stores it under a new ID.
// A second call while one is running fails fast with ErrBusy.
func (s *Service) Create(ctx context.Context, v Video) (*Filmstrip, error) {
	if err := validateVideo(v); err != nil {
		return nil, err
	}

	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.busy.Store(false)

	if s.metrics != nil {
		s.metrics.SetGenerating(true)
		defer s.metrics.SetGenerating(false)
	}

	res, err := s.gen.Generate(ctx, v)
	if err != nil {
		return nil, err
	}

	f := &Filmstrip{
		ID:           FilmstripID(uuid.NewString()),
		Source:       v,
		ContentType:  res.ContentType,
		Segments:     res.Segments,
		Format:       res.Format,
		CreatedAt:    time.Now().UTC(),
		ArtifactPath: res.ArtifactPath,
	}
	if err := s.repo.Save(f); err != nil {
		removeArtifact(f.ArtifactPath)
		return nil, fmt.Errorf("save filmstrip: %w", err)
	}

	if s.metrics != nil {
		s.metrics.IncGenerated(len(f.Segments))
	}
	s.log.Info("filmstrip stored",
		slog.String("id", string(f.ID)),
		slog.Int("segments", len(f.Segments)))
	return f, nil
}

// Busy reports whether a generation is running.
func (s *Service) Busy() bool {
	return s.busy.Load()
}

// Get returns the stored filmstrip.
func (s *Service) Get(id FilmstripID) (*Filmstrip, error) {
	f, ok := s.repo.Get(id)
	if !ok {
		return nil, fmt.Errorf("filmstrip %s: %w", id, ErrNotFound)
	}
	return f, nil
}

// Delete forgets the filmstrip and removes its artifact from disk.
func (s *Service) Delete(id FilmstripID) error {
	f, ok := s.repo.Delete(id)
	if !ok {
		return fmt.Errorf("filmstrip %s: %w", id, ErrNotFound)
	}
	removeArtifact(f.ArtifactPath)
	s.log.Info("filmstrip deleted", slog.String("id", string(id)))
	return nil
}

// ReadTile returns the bytes of the tile at index along with its segment.
func (s *Service) ReadTile(id FilmstripID, index int) ([]byte, trace.Segment, error) {
	f, err := s.Get(id)
	if err != nil {
		return nil, trace.Segment{}, err
	}
	seg, err := f.tile(index)
	if err != nil {
		return nil, seg, err
	}

	artifact, err := os.Open(f.ArtifactPath)
	if err != nil {
		return nil, seg, fmt.Errorf("open artifact: %w", err)
	}
	defer artifact.Close()

	data, err := ReadTile(artifact, seg)
	return data, seg, err
}

// Count returns the number of stored filmstrips.
func (s *Service) Count() int {
	return s.repo.Count()
}

func validateVideo(v Video) error {
	u, err := url.Parse(v.URL)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidVideo, err.Error())
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url must be absolute http or https", ErrInvalidVideo)
	}
	if v.SizeHint != nil && *v.SizeHint < 0 {
		return fmt.Errorf("%w: negative size hint", ErrInvalidVideo)
	}
	return nil
}

// removeArtifact deletes the per-generation directory holding path.
func removeArtifact(path string) {
	if path == "" {
		return
	}
	os.RemoveAll(filepath.Dir(path))
}
