package state

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryStoreSetAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Set(ctx, ScopeUser, "owner-a", "preferred_channel", "sms"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, ok, err := store.Get(ctx, ScopeUser, "owner-a", "preferred_channel")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected entry to exist")
	}
	if value != "sms" {
		t.Errorf("Expected sms, got %v", value)
	}

	_, ok, err = store.Get(ctx, ScopeUser, "owner-a", "missing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("Expected absent entry")
	}
}

func TestMemoryStoreScopeIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	// Same key text under two owners must never collide
	store.Set(ctx, ScopeUser, "owner-a", "budget_hint", 5000)
	store.Set(ctx, ScopeUser, "owner-b", "budget_hint", 9000)

	value, ok, _ := store.Get(ctx, ScopeUser, "owner-a", "budget_hint")
	if !ok || value != 5000 {
		t.Errorf("Expected 5000 for owner-a, got %v", value)
	}

	value, ok, _ = store.Get(ctx, ScopeUser, "owner-b", "budget_hint")
	if !ok || value != 9000 {
		t.Errorf("Expected 9000 for owner-b, got %v", value)
	}

	// A write under owner-a is never visible under owner-b
	store.Set(ctx, ScopeUser, "owner-a", "only_a", "secret")
	_, ok, _ = store.Get(ctx, ScopeUser, "owner-b", "only_a")
	if ok {
		t.Error("owner-b must not see owner-a's entry")
	}

	// Identical key text in different scopes is also distinct
	store.Set(ctx, ScopeApplication, "global", "budget_hint", "app")
	value, _, _ = store.Get(ctx, ScopeApplication, "global", "budget_hint")
	if value != "app" {
		t.Errorf("Expected app-scope value, got %v", value)
	}
}

func TestMemoryStoreInvalidScope(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Set(ctx, Scope("session"), "o", "k", 1); !errors.Is(err, ErrInvalidScope) {
		t.Errorf("Expected ErrInvalidScope, got %v", err)
	}
	if _, _, err := store.Get(ctx, Scope(""), "o", "k"); !errors.Is(err, ErrInvalidScope) {
		t.Errorf("Expected ErrInvalidScope, got %v", err)
	}
	if err := store.Delete(ctx, Scope("bad"), "o", "k"); !errors.Is(err, ErrInvalidScope) {
		t.Errorf("Expected ErrInvalidScope, got %v", err)
	}
}

func TestMemoryStoreClearEphemeral(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Set(ctx, ScopeEphemeral, "wf-1", "ranked", []string{"c1"})
	store.Set(ctx, ScopeEphemeral, "wf-1", "scratch", 42)
	store.Set(ctx, ScopeEphemeral, "wf-2", "ranked", []string{"c2"})
	store.Set(ctx, ScopeUser, "wf-1", "kept", true)

	if err := store.ClearEphemeral(ctx, "wf-1"); err != nil {
		t.Fatalf("ClearEphemeral failed: %v", err)
	}

	if _, ok, _ := store.Get(ctx, ScopeEphemeral, "wf-1", "ranked"); ok {
		t.Error("Expected wf-1 ephemeral state to be cleared")
	}
	if _, ok, _ := store.Get(ctx, ScopeEphemeral, "wf-1", "scratch"); ok {
		t.Error("Expected wf-1 scratch to be cleared")
	}
	if _, ok, _ := store.Get(ctx, ScopeEphemeral, "wf-2", "ranked"); !ok {
		t.Error("Expected wf-2 ephemeral state to survive")
	}
	if _, ok, _ := store.Get(ctx, ScopeUser, "wf-1", "kept"); !ok {
		t.Error("Expected user-scope entry to survive ephemeral cleanup")
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Set(ctx, ScopeApplication, "global", "flag", true)
	store.Delete(ctx, ScopeApplication, "global", "flag")

	if _, ok, _ := store.Get(ctx, ScopeApplication, "global", "flag"); ok {
		t.Error("Expected entry to be deleted")
	}
}

// flakyStore fails every call until failures runs out
type flakyStore struct {
	inner    Store
	failures int32
}

func (f *flakyStore) tryFail() error {
	if atomic.AddInt32(&f.failures, -1) >= 0 {
		return errors.New("storage unavailable")
	}
	return nil
}

func (f *flakyStore) Get(ctx context.Context, scope Scope, ownerID, key string) (any, bool, error) {
	if err := f.tryFail(); err != nil {
		return nil, false, err
	}
	return f.inner.Get(ctx, scope, ownerID, key)
}

func (f *flakyStore) Set(ctx context.Context, scope Scope, ownerID, key string, value any) error {
	if err := f.tryFail(); err != nil {
		return err
	}
	return f.inner.Set(ctx, scope, ownerID, key, value)
}

func (f *flakyStore) Delete(ctx context.Context, scope Scope, ownerID, key string) error {
	if err := f.tryFail(); err != nil {
		return err
	}
	return f.inner.Delete(ctx, scope, ownerID, key)
}

func (f *flakyStore) ClearEphemeral(ctx context.Context, workflowInstanceID string) error {
	if err := f.tryFail(); err != nil {
		return err
	}
	return f.inner.ClearEphemeral(ctx, workflowInstanceID)
}

func TestRetryingStoreRecovers(t *testing.T) {
	flaky := &flakyStore{inner: NewMemoryStore(), failures: 2}
	store := NewRetryingStore(flaky, 3, time.Millisecond)
	ctx := context.Background()

	if err := store.Set(ctx, ScopeUser, "o", "k", "v"); err != nil {
		t.Fatalf("Expected set to succeed after retries: %v", err)
	}

	value, ok, err := store.Get(ctx, ScopeUser, "o", "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok || value != "v" {
		t.Errorf("Expected v, got %v", value)
	}
}

func TestRetryingStoreExhaustsBound(t *testing.T) {
	flaky := &flakyStore{inner: NewMemoryStore(), failures: 10}
	store := NewRetryingStore(flaky, 3, time.Millisecond)

	err := store.Set(context.Background(), ScopeUser, "o", "k", "v")
	if err == nil {
		t.Fatal("Expected error after exhausting retry bound")
	}
}

func TestRetryingStoreInvalidScopeNotRetried(t *testing.T) {
	flaky := &flakyStore{inner: NewMemoryStore(), failures: 0}
	store := NewRetryingStore(flaky, 3, time.Millisecond)

	err := store.Set(context.Background(), Scope("bad"), "o", "k", "v")
	if !errors.Is(err, ErrInvalidScope) {
		t.Fatalf("Expected ErrInvalidScope, got %v", err)
	}
}
