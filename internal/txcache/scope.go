package txcache

import (
	"reflect"
	"sync"

	"persist/internal/metadata"
)

// Scope is the entity cache of one logical transaction. It remembers the
// most recently staged instance of every entity type so children built later
// in the same transaction can resolve their parent's identifier.
//
// A Scope has a single writer (the transaction that owns it); builds read it
// concurrently.
type Scope struct {
	mu      sync.RWMutex
	staged  map[reflect.Type]any
	parents map[reflect.Type]any
}

// New returns an empty scope.
func New() *Scope {
	return &Scope{
		staged:  map[reflect.Type]any{},
		parents: map[reflect.Type]any{},
	}
}

// Stage records entity as the most recently staged instance of its type.
func (s *Scope) Stage(entity any) {
	t := metadata.TypeOf(entity)
	if t == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged[t] = entity
}

// Bind fixes the parent used for every relationship to parent's type,
// taking precedence over the staged instance.
func (s *Scope) Bind(parent any) {
	t := metadata.TypeOf(parent)
	if t == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parents[t] = parent
}

// MostRecentlyStaged returns the last staged instance of t.
func (s *Scope) MostRecentlyStaged(t reflect.Type) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.staged[t]
	return e, ok
}

// Parent returns the instance a child should reference for parent type t:
// the bound parent when there is one, otherwise the most recently staged.
func (s *Scope) Parent(t reflect.Type) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.parents[t]; ok {
		return p, true
	}
	e, ok := s.staged[t]
	return e, ok
}

// Clear drops every entry. The owning transaction calls it when it ends.
func (s *Scope) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.staged)
	clear(s.parents)
}
