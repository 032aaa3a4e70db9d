package runlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Fletcher15478/nba-game-predictor/internal/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedis(rdb, time.Minute), mr
}

func newTestFile(t *testing.T) *File {
	t.Helper()
	f, err := NewFile(t.TempDir(), time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestKey(t *testing.T) {
	if got := Key(models.SportNFL); got != "sport:nfl" {
		t.Errorf("Key = %q", got)
	}
	if Key(models.SportNBA) == Key(models.SportNFL) {
		t.Error("sports share a lock key")
	}
}

func TestLocker_Exclusive(t *testing.T) {
	r, _ := newTestRedis(t)
	lockers := map[string]Locker{
		BackendRedis: r,
		BackendFile:  newTestFile(t),
	}
	ctx := context.Background()
	for name, l := range lockers {
		t.Run(name, func(t *testing.T) {
			lease, err := l.Acquire(ctx, "nba:2025-12-02")
			if err != nil {
				t.Fatalf("Acquire: %v", err)
			}
			if _, err := l.Acquire(ctx, "nba:2025-12-02"); !errors.Is(err, ErrLocked) {
				t.Errorf("second Acquire err = %v, want ErrLocked", err)
			}

			other, err := l.Acquire(ctx, "nfl:2025-wk07")
			if err != nil {
				t.Errorf("different key should not block: %v", err)
			} else {
				_ = other.Release(ctx)
			}

			if err := lease.Release(ctx); err != nil {
				t.Fatalf("Release: %v", err)
			}
			again, err := l.Acquire(ctx, "nba:2025-12-02")
			if err != nil {
				t.Fatalf("Acquire after release: %v", err)
			}
			_ = again.Release(ctx)
		})
	}
}

func TestRedis_ExpiredLeaseDoesNotReleaseNewOwner(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	stale, err := r.Acquire(ctx, "nba:2025-12-02")
	if err != nil {
		t.Fatal(err)
	}
	mr.FastForward(2 * time.Minute)

	fresh, err := r.Acquire(ctx, "nba:2025-12-02")
	if err != nil {
		t.Fatalf("Acquire after expiry: %v", err)
	}
	if err := stale.Release(ctx); err != nil {
		t.Fatalf("stale Release: %v", err)
	}
	if !mr.Exists(redisKeyPrefix + "nba:2025-12-02") {
		t.Error("stale lease released the new owner's lock")
	}
	_ = fresh.Release(ctx)
	if mr.Exists(redisKeyPrefix + "nba:2025-12-02") {
		t.Error("lock still held after owner released it")
	}
}

func TestFile_StaleLockIsTakenOver(t *testing.T) {
	f := newTestFile(t)
	ctx := context.Background()

	stale, err := f.Acquire(ctx, "nba:2025-12-02")
	if err != nil {
		t.Fatal(err)
	}
	f.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	fresh, err := f.Acquire(ctx, "nba:2025-12-02")
	if err != nil {
		t.Fatalf("Acquire over stale lock: %v", err)
	}
	if err := stale.Release(ctx); err != nil {
		t.Fatal(err)
	}
	f.now = time.Now
	if _, err := f.Acquire(ctx, "nba:2025-12-02"); !errors.Is(err, ErrLocked) {
		t.Errorf("stale lease released the new owner's lock: err = %v", err)
	}
	_ = fresh.Release(ctx)
}

func TestRedis_Unreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 50 * time.Millisecond})
	defer rdb.Close()
	_, err := NewRedis(rdb, time.Minute).Acquire(context.Background(), "nba:2025-12-02")
	if err == nil || errors.Is(err, ErrLocked) {
		t.Errorf("err = %v, want connection error", err)
	}
}
