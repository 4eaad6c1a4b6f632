package runlock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/sweep/internal/logger"
)

// backoff is the startup ping policy: exponential waits capped at maxWait,
// abandoned once total has elapsed.
type backoff struct {
	initial     time.Duration
	maxWait     time.Duration
	total       time.Duration
	pingTimeout time.Duration
}

// connect pings until Redis answers or the budget runs out. A Redis that
// comes up a few seconds after sweep (compose, k8s sidecars) is tolerated.
func connect(ctx context.Context, client *redis.Client, addr string, b backoff, log logger.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, b.total)
	defer cancel()

	start := time.Now()
	wait := b.initial

	for attempt := 1; ; attempt++ {
		pingCtx, pingCancel := context.WithTimeout(ctx, b.pingTimeout)
		err := client.Ping(pingCtx).Err()
		pingCancel()

		if err == nil {
			if attempt > 1 {
				log.Warn("connected to redis after retry",
					logger.String("addr", addr),
					logger.Int("attempts", attempt),
					logger.Duration("elapsed", time.Since(start)))
			}
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Error("redis unavailable, giving up",
				logger.String("addr", addr),
				logger.Int("attempts", attempt),
				logger.Duration("timeout", b.total),
				logger.Error(err))
			return fmt.Errorf("redis unavailable at %s after %d attempts: %w", addr, attempt, err)

		case <-timer.C:
			log.Warn("redis connection failed, retrying",
				logger.String("addr", addr),
				logger.Int("attempt", attempt),
				logger.Duration("next_retry_in", wait),
				logger.Error(err))
			wait = min(wait*2, b.maxWait)
		}
	}
}
