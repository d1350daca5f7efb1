// Package distlock provides the job-level lock the queue consumer takes
// before handing a message to the processor: at most one consumer drives
// a given job at a time. Redis is the preferred backend; PostgreSQL
// advisory locks are the fallback when no Redis is configured.
package distlock

import (
	"context"
	"database/sql"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistLock is the interface for distributed locking.
// Implementations must be safe for use from a single goroutine;
// concurrent use across goroutines requires separate lock instances.
type DistLock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// NewJobLock creates a lock scoped to one ingestion job. With a Redis
// client the lock works across hosts; without one it degrades to a
// PostgreSQL advisory lock, which still covers workers sharing a database.
func NewJobLock(redisClient *redis.Client, db *sql.DB, jobID int, ttl time.Duration) DistLock {
	key := "ingest:job:" + strconv.Itoa(jobID)
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	return NewPGAdvisoryLock(db, key)
}

// PGAdvisoryLock implements DistLock using PostgreSQL advisory locks.
// pg_try_advisory_lock is session-scoped: the lock drops automatically
// if the connection dies, giving crash-safety similar to a Redis TTL.
type PGAdvisoryLock struct {
	db     *sql.DB
	lockID int64
}

// NewPGAdvisoryLock creates a PG advisory lock with a deterministic lock ID
// derived from the given key string.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{
		db:     db,
		lockID: int64(h.Sum64()),
	}
}

// Acquire tries to acquire the advisory lock. Returns true if successful.
// Non-blocking; a lock held elsewhere simply returns false.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	var acquired bool
	err := l.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired)
	return acquired, err
}

// Release releases the advisory lock.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}
