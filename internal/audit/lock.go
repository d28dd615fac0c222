package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const runLockKey = "lock:cascade-integrity-audit"

// ErrAuditRunning is returned when another audit holds the run lock.
var ErrAuditRunning = errors.New("another cascade integrity audit is running")

// AcquireRunLock takes the single-run lock in Redis. An unreachable Redis is logged
// and tolerated since the audit itself is read-only; only a lock held by another run
// stops the audit. The returned release func is always safe to call.
func AcquireRunLock(ctx context.Context, redisURL string, ttl time.Duration, logger logrus.FieldLogger) (func(), error) {
	noop := func() {}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return noop, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	closeClient := func() { _ = rdb.Close() }

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("redis unavailable, running without single-run lock")
		closeClient()
		return noop, nil
	}

	locker := redislock.New(rdb)
	lock, err := locker.Obtain(ctx, runLockKey, ttl, nil)
	if err == redislock.ErrNotObtained {
		closeClient()
		return noop, ErrAuditRunning
	}
	if err != nil {
		logger.WithError(err).Warn("could not obtain run lock, continuing without it")
		closeClient()
		return noop, nil
	}

	return func() {
		if err := lock.Release(context.Background()); err != nil && err != redislock.ErrLockNotHeld {
			logger.WithError(err).Warn("release run lock")
		}
		closeClient()
	}, nil
}
