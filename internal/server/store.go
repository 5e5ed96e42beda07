package server

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/dusk-indust/deepask/internal/completion"
)

var (
	// ErrNotFound is returned for unknown or expired conversations.
	ErrNotFound = errors.New("conversation not found")

	// ErrBusy is returned when a conversation already has a run in flight.
	ErrBusy = errors.New("conversation has a run in progress")
)

// Conversation is a snapshot of one stored conversation.
type Conversation struct {
	ID        string             `json:"id"`
	History   completion.History `json:"history"`
	UpdatedAt time.Time          `json:"updatedAt"`
	Running   bool               `json:"running"`
}

// Store keeps conversations in memory. Entries expire ttl after their last
// update; nothing outlives the process.
type Store struct {
	mu    sync.Mutex
	items *cache.Cache
	ttl   time.Duration
}

// NewStore creates a Store whose entries expire after ttl. A non-positive
// ttl keeps entries for the life of the process.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	cleanup := ttl / 2
	if ttl == cache.NoExpiration {
		cleanup = 0
	}
	return &Store{items: cache.New(ttl, cleanup), ttl: ttl}
}

// Create stores an empty conversation under a new ID.
func (s *Store) Create() Conversation {
	c := &Conversation{ID: uuid.NewString(), UpdatedAt: time.Now().UTC()}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items.Set(c.ID, c, s.ttl)
	return c.snapshot()
}

// Get returns a copy of the conversation with the given ID.
func (s *Store) Get(id string) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.lookup(id)
	if !ok {
		return Conversation{}, ErrNotFound
	}
	return c.snapshot(), nil
}

// Acquire marks the conversation as running and returns its history. The
// caller must call Release when the run ends.
func (s *Store) Acquire(id string) (completion.History, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.lookup(id)
	if !ok {
		return nil, ErrNotFound
	}
	if c.Running {
		return nil, ErrBusy
	}
	c.Running = true
	return c.History.Clone(), nil
}

// Release stores history as the conversation's new history and ends the run.
// A nil history keeps the stored one.
func (s *Store) Release(id string, history completion.History) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.lookup(id)
	if !ok {
		return
	}
	c.Running = false
	if history != nil {
		c.History = history.Clone()
	}
	c.UpdatedAt = time.Now().UTC()
	s.items.Set(id, c, s.ttl)
}

// Clear empties the conversation history.
func (s *Store) Clear(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.lookup(id)
	if !ok {
		return ErrNotFound
	}
	if c.Running {
		return ErrBusy
	}
	c.History = nil
	c.UpdatedAt = time.Now().UTC()
	s.items.Set(id, c, s.ttl)
	return nil
}

// Count returns the number of live conversations.
func (s *Store) Count() int {
	return s.items.ItemCount()
}

func (s *Store) lookup(id string) (*Conversation, bool) {
	v, ok := s.items.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*Conversation), true
}

func (c *Conversation) snapshot() Conversation {
	out := *c
	out.History = c.History.Clone()
	return out
}
