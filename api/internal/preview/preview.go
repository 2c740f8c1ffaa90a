// Package preview holds the bytes behind image previews until their owner releases them.
package preview

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrReleased is returned for handles that were released or never acquired.
var ErrReleased = errors.New("preview: handle unknown or released")

// Handle references preview bytes held by a Store. The zero Handle references nothing.
type Handle struct {
	ID string
}

func (h Handle) IsZero() bool { return h.ID == "" }

type item struct {
	data      []byte
	mediaType string
}

type Store struct {
	mu    sync.Mutex
	items map[string]item
}

func NewStore() *Store {
	return &Store{items: make(map[string]item)}
}

// Acquire registers data under a fresh handle. The slice is not copied and must not be mutated afterwards.
func (s *Store) Acquire(data []byte, mediaType string) Handle {
	id := uuid.NewString()
	s.mu.Lock()
	s.items[id] = item{data: data, mediaType: mediaType}
	s.mu.Unlock()
	return Handle{ID: id}
}

func (s *Store) Open(id string) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return nil, "", ErrReleased
	}
	return it.data, it.mediaType, nil
}

// Release frees the handle. Releasing twice returns ErrReleased.
func (s *Store) Release(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return ErrReleased
	}
	delete(s.items, id)
	return nil
}

// Len reports how many handles are live.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
