package transmission

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/sweep/internal/domain"
	"github.com/MrSnakeDoc/sweep/internal/logger"
)

const (
	// DefaultMaxAttempts caps discovery attempts so an absent daemon fails
	// loudly instead of hanging the process.
	DefaultMaxAttempts = 30
	// DefaultRetryDelay is the fixed pause between discovery attempts.
	DefaultRetryDelay = time.Second
)

// FetchTorrents returns every torrent known to the daemon. Connectivity
// failures are retried with a fixed delay while the daemon may still be
// starting; any other error is returned at once.
func (c *Client) FetchTorrents(ctx context.Context) ([]domain.RawTorrent, error) {
	start := time.Now()

	for attempt := 1; ; attempt++ {
		torrents, err := c.fetchOnce(ctx)
		if err == nil {
			c.logFetched(len(torrents), attempt, time.Since(start))
			return torrents, nil
		}

		if !IsConnectivityError(err) {
			return nil, err
		}

		if attempt >= c.maxAttempts {
			c.log.Error("daemon unreachable, giving up",
				logger.String("url", c.endpoint),
				logger.Int("attempts", attempt),
				logger.Error(err))
			return nil, &ConnectivityError{Attempts: attempt, Err: err}
		}

		// Only the first failure is announced; the rest stay quiet.
		if attempt == 1 {
			c.log.Info("connecting to daemon",
				logger.String("url", c.endpoint),
				logger.Int("max_attempts", c.maxAttempts),
				logger.Duration("retry_delay", c.retryDelay),
				logger.Error(err))
		}

		if err := c.sleep(ctx, c.retryDelay); err != nil {
			return nil, err
		}
	}
}

func (c *Client) logFetched(count, attempts int, elapsed time.Duration) {
	if attempts > 1 {
		c.log.Info("connected to daemon after retry",
			logger.String("url", c.endpoint),
			logger.Int("attempts", attempts),
			logger.Duration("elapsed", elapsed),
			logger.Int("torrents", count))
		return
	}
	c.log.Info("fetched torrents from daemon",
		logger.Int("torrents", count))
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
