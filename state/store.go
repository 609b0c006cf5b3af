package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Scope determines the lifetime of a state entry
type Scope string

const (
	// ScopeUser holds durable per-homeowner preference state
	ScopeUser Scope = "user"
	// ScopeApplication holds cross-instance configuration-like state
	ScopeApplication Scope = "application"
	// ScopeEphemeral holds pipeline scratch space; the owner id is the
	// workflow instance id and entries are cleared when it terminates
	ScopeEphemeral Scope = "ephemeral"
)

// ErrInvalidScope is returned for any scope outside the three known values
var ErrInvalidScope = errors.New("invalid state scope")

// Valid reports whether the scope is one of the known values
func (s Scope) Valid() bool {
	switch s {
	case ScopeUser, ScopeApplication, ScopeEphemeral:
		return true
	}
	return false
}

// Key addresses one state entry. Composing the scope and owner id into the
// key structurally means two owners never collide even with identical key
// text, and there is no string concatenation to get wrong.
type Key struct {
	Scope   Scope
	OwnerID string
	Name    string
}

// Store is the shared key/value store scoping data to user, application
// and ephemeral-workflow lifetimes. Failures are always surfaced to the
// caller; callers own the retry policy.
type Store interface {
	Get(ctx context.Context, scope Scope, ownerID, key string) (any, bool, error)
	Set(ctx context.Context, scope Scope, ownerID, key string, value any) error
	Delete(ctx context.Context, scope Scope, ownerID, key string) error
	ClearEphemeral(ctx context.Context, workflowInstanceID string) error
}

// MemoryStore is an in-memory Store guarded by a RWMutex.
// In production, user and application scopes should be backed by a database
// through the same interface.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[Key]any
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[Key]any),
	}
}

func (s *MemoryStore) Get(_ context.Context, scope Scope, ownerID, key string) (any, bool, error) {
	if !scope.Valid() {
		return nil, false, fmt.Errorf("get %q: %w", scope, ErrInvalidScope)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.entries[Key{Scope: scope, OwnerID: ownerID, Name: key}]
	return value, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, scope Scope, ownerID, key string, value any) error {
	if !scope.Valid() {
		return fmt.Errorf("set %q: %w", scope, ErrInvalidScope)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[Key{Scope: scope, OwnerID: ownerID, Name: key}] = value
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, scope Scope, ownerID, key string) error {
	if !scope.Valid() {
		return fmt.Errorf("delete %q: %w", scope, ErrInvalidScope)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, Key{Scope: scope, OwnerID: ownerID, Name: key})
	return nil
}

// ClearEphemeral removes every ephemeral entry written by the given
// workflow instance. Called when the instance completes, fails or is
// cancelled.
func (s *MemoryStore) ClearEphemeral(_ context.Context, workflowInstanceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k := range s.entries {
		if k.Scope == ScopeEphemeral && k.OwnerID == workflowInstanceID {
			delete(s.entries, k)
		}
	}
	return nil
}

// Count returns the number of entries in the store
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
