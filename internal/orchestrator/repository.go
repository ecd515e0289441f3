package orchestrator

import (
	"errors"
	"sync"
)

// Repository defines the concurrency-safe contract for accessing and mutating
// stored filmstrips.
type Repository interface {
	// Save records a new filmstrip. Saving an ID that already exists returns
	// ErrDuplicateID and leaves the stored record untouched.
	Save(f *Filmstrip) error

	// Get returns a snapshot of the filmstrip. The ok return is false if the
	// ID is unknown.
	Get(id FilmstripID) (f *Filmstrip, ok bool)

	// Delete removes the filmstrip and returns what was stored.
	Delete(id FilmstripID) (f *Filmstrip, ok bool)

	// Count returns the number of stored filmstrips. Used for metrics.
	Count() int
}

// ErrDuplicateID is returned when saving a filmstrip whose ID is taken.
var ErrDuplicateID = errors.New("filmstrip id already exists")

// InMemoryRepository is a concurrency-safe in-memory implementation of Repository.
// It uses a Store for persistence; by default that is an InMemoryStore.
type InMemoryRepository struct {
	mu    sync.RWMutex
	store Store
}

// NewInMemoryRepository constructs a new repository with a default in-memory store.
func NewInMemoryRepository() *InMemoryRepository {
	return NewInMemoryRepositoryWithStore(NewInMemoryStore())
}

// NewInMemoryRepositoryWithStore constructs a repository that uses the given Store.
// Useful for testing or for plugging in a different persistence backend.
func NewInMemoryRepositoryWithStore(store Store) *InMemoryRepository {
	return &InMemoryRepository{store: store}
}

// Save implements Repository.Save.
func (r *InMemoryRepository) Save(f *Filmstrip) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.store.GetFilmstrip(f.ID); exists {
		return ErrDuplicateID
	}
	r.store.SetFilmstrip(f.clone())
	return nil
}

// Get implements Repository.Get.
func (r *InMemoryRepository) Get(id FilmstripID) (*Filmstrip, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.store.GetFilmstrip(id)
	if !ok {
		return nil, false
	}
	// Hand out a copy so callers cannot mutate stored state.
	return f.clone(), true
}

// Delete implements Repository.Delete.
func (r *InMemoryRepository) Delete(id FilmstripID) (*Filmstrip, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.store.GetFilmstrip(id)
	if !ok {
		return nil, false
	}
	r.store.DeleteFilmstrip(id)
	return f, true
}

// Count implements Repository.Count.
func (r *InMemoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.store.ListFilmstripIDs())
}
