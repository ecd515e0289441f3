package orchestrator

// Store is the persistence abstraction for filmstrip records.
// Implementations can be in-memory, file-based, or remote.
// The Repository uses Store for all reads and writes and provides the locking.
type Store interface {
	GetFilmstrip(id FilmstripID) (*Filmstrip, bool)
	SetFilmstrip(f *Filmstrip)
	DeleteFilmstrip(id FilmstripID)
	ListFilmstripIDs() []FilmstripID
}

// InMemoryStore is an in-memory implementation of Store.
type InMemoryStore struct {
	filmstrips map[FilmstripID]*Filmstrip
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		filmstrips: make(map[FilmstripID]*Filmstrip),
	}
}

// GetFilmstrip implements Store.GetFilmstrip.
func (s *InMemoryStore) GetFilmstrip(id FilmstripID) (*Filmstrip, bool) {
	f, ok := s.filmstrips[id]
	return f, ok
}

// SetFilmstrip implements Store.SetFilmstrip.
func (s *InMemoryStore) SetFilmstrip(f *Filmstrip) {
	s.filmstrips[f.ID] = f
}

// DeleteFilmstrip implements Store.DeleteFilmstrip.
func (s *InMemoryStore) DeleteFilmstrip(id FilmstripID) {
	delete(s.filmstrips, id)
}

// ListFilmstripIDs implements Store.ListFilmstripIDs.
func (s *InMemoryStore) ListFilmstripIDs() []FilmstripID {
	ids := make([]FilmstripID, 0, len(s.filmstrips))
	for id := range s.filmstrips {
		ids = append(ids, id)
	}
	return ids
}
