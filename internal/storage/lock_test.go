package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestLocker_TryLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	locker := NewLocker(client, "kk", time.Minute)
	ctx := context.Background()

	unlock, err := locker.TryLock(ctx, "session-1")
	if err != nil {
		t.Fatalf("TryLock() error = %v", err)
	}
	if !mr.Exists("kk:lock:session-1") {
		t.Fatalf("Expected lock key, have %v", mr.Keys())
	}
	if ttl := mr.TTL("kk:lock:session-1"); ttl != time.Minute {
		t.Errorf("Expected TTL 1m, got %v", ttl)
	}

	if _, err := locker.TryLock(ctx, "session-1"); !errors.Is(err, ErrLocked) {
		t.Errorf("Expected ErrLocked, got %v", err)
	}

	// A different session is independent.
	other, err := locker.TryLock(ctx, "session-2")
	if err != nil {
		t.Fatalf("TryLock(session-2) error = %v", err)
	}
	defer func() { _ = other(ctx) }()

	if err := unlock(ctx); err != nil {
		t.Fatalf("unlock error = %v", err)
	}
	if mr.Exists("kk:lock:session-1") {
		t.Error("Expected lock key removed")
	}

	relock, err := locker.TryLock(ctx, "session-1")
	if err != nil {
		t.Fatalf("TryLock after unlock error = %v", err)
	}
	_ = relock(ctx)
}

func TestLocker_ReleaseDoesNotStealNewOwner(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	locker := NewLocker(client, "", time.Second)
	ctx := context.Background()

	staleUnlock, err := locker.TryLock(ctx, "s")
	if err != nil {
		t.Fatalf("TryLock() error = %v", err)
	}
	mr.FastForward(2 * time.Second)

	if _, err := locker.TryLock(ctx, "s"); err != nil {
		t.Fatalf("Expected lock after expiry, got %v", err)
	}
	if err := staleUnlock(ctx); err != nil {
		t.Fatalf("stale unlock error = %v", err)
	}
	if !mr.Exists("lock:s") {
		t.Error("Stale unlock removed the new owner's lock")
	}
}
