package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// Pinger is satisfied by pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck probes a database connection. Used as the readiness check for
// the postgres pool.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return errors.Wrap(p.Ping(ctx), "ping")
	}
}

// GoroutineCountCheck flags a goroutine leak: unhealthy once the count
// exceeds limit.
func GoroutineCountCheck(limit int) CheckFunc {
	return func(_ context.Context) error {
		if n := runtime.NumGoroutine(); n > limit {
			return errors.Errorf("%d goroutines, limit %d", n, limit)
		}
		return nil
	}
}

// QueueDepthCheck flags a bounded work queue that stays above limit, which
// for the audit recorder means the sink cannot keep up and entries are about
// to be dropped.
func QueueDepthCheck(depth func() int, limit int) CheckFunc {
	return func(_ context.Context) error {
		if d := depth(); d > limit {
			return errors.Errorf("queue depth %d, limit %d", d, limit)
		}
		return nil
	}
}
