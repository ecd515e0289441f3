package orchestrator

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"filmstrip/internal/trace"
)

// FilmstripID uniquely identifies a generated filmstrip.
type FilmstripID string

// Video describes the remote source of a filmstrip.
// This also matches the input JSON payload for creating filmstrips.
type Video struct {
	URL         string `json:"url"`
	SizeHint    *int64 `json:"sizeHint,omitempty"`
	DisplayName string `json:"displayName"`
}

// Filmstrip is a completed generation: the composite artifact plus the byte
// location of every tile inside it.
type Filmstrip struct {
	ID          FilmstripID       `json:"id"`
	Source      Video             `json:"source"`
	ContentType string            `json:"contentType"`
	Segments    []trace.Segment   `json:"segments"`
	Format      map[string]string `json:"format,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`

	// Managed by the server (not exposed in the API).
	ArtifactPath string `json:"-"`
}

func (f *Filmstrip) tile(index int) (trace.Segment, error) {
	if index < 0 || index >= len(f.Segments) {
		return trace.Segment{}, fmt.Errorf("tile %d of filmstrip %s: %w", index, f.ID, ErrNotFound)
	}
	return f.Segments[index], nil
}

// clone returns a copy that shares no slices or maps with f.
func (f *Filmstrip) clone() *Filmstrip {
	c := *f
	c.Segments = slices.Clone(f.Segments)
	c.Format = maps.Clone(f.Format)
	if f.Source.SizeHint != nil {
		hint := *f.Source.SizeHint
		c.Source.SizeHint = &hint
	}
	return &c
}
