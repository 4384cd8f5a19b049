package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const (
	DefaultTTL   = time.Hour
	cleanupEvery = 10 * time.Minute
)

// Registry holds sessions in memory and forgets them after a period of
// inactivity.
type Registry struct {
	ttl   time.Duration
	items *cache.Cache
}

// NewRegistry returns a Registry whose sessions expire ttl after their last use.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{ttl: ttl, items: cache.New(ttl, cleanupEvery)}
}

// Create registers a new empty session.
func (r *Registry) Create(name string) *Session {
	if name == "" {
		name = "playlist"
	}
	s := New(uuid.NewString(), name)
	r.items.SetDefault(s.ID, s)
	return s
}

// Get returns the session and extends its lifetime.
func (r *Registry) Get(id string) (*Session, bool) {
	v, ok := r.items.Get(id)
	if !ok {
		return nil, false
	}
	s := v.(*Session)
	r.items.SetDefault(id, s)
	return s, true
}

// Delete removes a session. It reports whether the session existed.
func (r *Registry) Delete(id string) bool {
	if _, ok := r.items.Get(id); !ok {
		return false
	}
	r.items.Delete(id)
	return true
}

// Len is the number of live sessions.
func (r *Registry) Len() int {
	return r.items.ItemCount()
}
