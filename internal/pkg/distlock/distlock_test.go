package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestJobLock_MutualExclusion(t *testing.T) {
	client, _ := setupRedis(t)
	ctx := context.Background()

	first := NewJobLock(client, nil, 42, time.Minute)
	ok, err := first.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	if !ok {
		t.Fatal("First Acquire() = false, want true")
	}

	second := NewJobLock(client, nil, 42, time.Minute)
	ok, err = second.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	if ok {
		t.Error("Second Acquire() on the same job = true, want false")
	}

	// A different job is a different lock.
	other := NewJobLock(client, nil, 43, time.Minute)
	ok, _ = other.Acquire(ctx)
	if !ok {
		t.Error("Acquire() on another job = false, want true")
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("Release() error: %v", err)
	}
	ok, _ = second.Acquire(ctx)
	if !ok {
		t.Error("Acquire() after release = false, want true")
	}
}

func TestRedisLock_ReleaseOnlyOwn(t *testing.T) {
	client, _ := setupRedis(t)
	ctx := context.Background()

	owner := NewRedisLock(client, "ingest:job:7", time.Minute)
	if ok, _ := owner.Acquire(ctx); !ok {
		t.Fatal("Acquire() = false, want true")
	}

	// A second instance on the same key holds a different ownership
	// value; its Release must not free the owner's lock.
	intruder := NewRedisLock(client, "ingest:job:7", time.Minute)
	if err := intruder.Release(ctx); err != nil {
		t.Fatalf("Release() error: %v", err)
	}

	if ok, _ := intruder.Acquire(ctx); ok {
		t.Error("Acquire() after foreign release = true, want false")
	}
}

func TestRedisLock_ExpiresWithTTL(t *testing.T) {
	client, mr := setupRedis(t)
	ctx := context.Background()

	stale := NewRedisLock(client, "ingest:job:9", time.Second)
	if ok, _ := stale.Acquire(ctx); !ok {
		t.Fatal("Acquire() = false, want true")
	}

	mr.FastForward(2 * time.Second)

	next := NewRedisLock(client, "ingest:job:9", time.Second)
	if ok, _ := next.Acquire(ctx); !ok {
		t.Error("Acquire() after TTL expiry = false, want true")
	}
}

func TestRedisLock_Extend(t *testing.T) {
	client, mr := setupRedis(t)
	ctx := context.Background()

	lock := NewRedisLock(client, "ingest:job:11", time.Second)
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("Acquire() = false, want true")
	}
	if err := lock.Extend(ctx, 10*time.Second); err != nil {
		t.Fatalf("Extend() error: %v", err)
	}

	mr.FastForward(2 * time.Second)

	other := NewRedisLock(client, "ingest:job:11", time.Second)
	if ok, _ := other.Acquire(ctx); ok {
		t.Error("Acquire() during extended TTL = true, want false")
	}
}

func TestPGAdvisoryLock_Fallback(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("pg_try_advisory_lock").
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec("pg_advisory_unlock").
		WillReturnResult(sqlmock.NewResult(0, 1))

	// Nil Redis client selects the advisory lock backend.
	lock := NewJobLock(nil, db, 42, time.Minute)
	if _, isPG := lock.(*PGAdvisoryLock); !isPG {
		t.Fatalf("NewJobLock() without Redis = %T, want *PGAdvisoryLock", lock)
	}

	ok, err := lock.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	if !ok {
		t.Error("Acquire() = false, want true")
	}
	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("Release() error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %s", err)
	}
}
