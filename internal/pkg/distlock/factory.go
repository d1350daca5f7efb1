package distlock

import (
	"database/sql"
	"time"

	"github.com/redis/go-redis/v9"
)

// Factory hands out per-job locks with a fixed TTL so callers don't carry
// the Redis client and database handle around.
type Factory struct {
	redis *redis.Client
	db    *sql.DB
	ttl   time.Duration
}

// NewFactory creates a lock factory. Either backend may be nil; with no
// Redis client locks fall back to PostgreSQL advisory locks.
func NewFactory(redisClient *redis.Client, db *sql.DB, ttl time.Duration) *Factory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Factory{redis: redisClient, db: db, ttl: ttl}
}

// ForJob returns a fresh lock instance for the given job.
func (f *Factory) ForJob(jobID int) DistLock {
	return NewJobLock(f.redis, f.db, jobID, f.ttl)
}
