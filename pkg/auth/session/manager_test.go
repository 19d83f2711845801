package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
)

type fakeStore struct {
	values map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: map[string]string{}}
}

func (f *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.values[key] = value.(string)
	return nil
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.values[key]; ok {
		return v, nil
	}
	return "", redislib.Nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

type fakeKeyer struct{}

func (fakeKeyer) AccessSessionKey(accessID string) string { return "sl:session:access:" + accessID }

func newTestManager() (*Manager, *fakeStore) {
	store := newFakeStore()
	return &Manager{store: store, keyer: fakeKeyer{}, ttl: time.Hour}, store
}

func TestSessionLifecycle(t *testing.T) {
	mgr, _ := newTestManager()
	ctx := context.Background()
	accessID := NewAccessID()

	ok, err := mgr.HasSession(ctx, accessID)
	if err != nil {
		t.Fatalf("HasSession failed: %v", err)
	}
	if ok {
		t.Fatal("session should not exist before Open")
	}

	if err := mgr.Open(ctx, accessID, uuid.New()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	ok, err = mgr.HasSession(ctx, accessID)
	if err != nil {
		t.Fatalf("HasSession failed: %v", err)
	}
	if !ok {
		t.Fatal("session should exist after Open")
	}

	if err := mgr.Revoke(ctx, accessID); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	ok, err = mgr.HasSession(ctx, accessID)
	if err != nil {
		t.Fatalf("HasSession failed: %v", err)
	}
	if ok {
		t.Fatal("session should be gone after Revoke")
	}
}

func TestSessionRequiresAccessID(t *testing.T) {
	mgr, _ := newTestManager()
	ctx := context.Background()
	if err := mgr.Open(ctx, " ", uuid.New()); err == nil {
		t.Fatal("expected error for blank access id")
	}
	if _, err := mgr.HasSession(ctx, ""); err == nil {
		t.Fatal("expected error for blank access id")
	}
	if err := mgr.Revoke(ctx, ""); err == nil {
		t.Fatal("expected error for blank access id")
	}
}
