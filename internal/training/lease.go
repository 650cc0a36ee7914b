package training

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
)

// ErrRunInProgress means another instance currently holds the run lease.
var ErrRunInProgress = errors.New("training run already in progress")

// RunLock is the run-in-progress indicator: acquired for the duration of a
// batch run and released on both the success and failure paths. A lease in a
// shared store (not a local file) so concurrent runs across hosts are
// excluded too.
type RunLock interface {
	Acquire(ctx context.Context) (release func(), err error)
}

const leaseKey = "forecasting:training:lease"

// RedisRunLock implements RunLock on a redislock client. The TTL bounds how
// long a crashed holder can block the next run.
type RedisRunLock struct {
	locker *redislock.Client
	ttl    time.Duration
}

func NewRedisRunLock(locker *redislock.Client, ttl time.Duration) *RedisRunLock {
	return &RedisRunLock{locker: locker, ttl: ttl}
}

func (l *RedisRunLock) Acquire(ctx context.Context) (func(), error) {
	lock, err := l.locker.Obtain(ctx, leaseKey, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrRunInProgress
	}
	if err != nil {
		return nil, err
	}
	return func() {
		// Release must run even when the run's context is done.
		_ = lock.Release(context.Background())
	}, nil
}
