package runlock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/sweep/internal/logger"
)

const (
	// KeyPrefix namespaces every key this package writes.
	KeyPrefix = "sweep:lock:"
	// DefaultTTL bounds how long a crashed holder can block other processes.
	DefaultTTL = 30 * time.Minute
)

// releaseScript deletes the key only if it still holds our token, so an
// expired lock re-acquired by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Key returns the Redis key for a named lock.
func Key(name string) string {
	return KeyPrefix + name
}

// Options configures the Redis connection backing the lock.
type Options struct {
	Addr         string        // ex: "localhost:6379"
	User         string        // optional
	Password     string        // optional
	DB           int           // Redis DB number
	TTL          time.Duration // lock expiry (default: 30m)
	Name         string        // lock name (default: "run")
	DialTimeout  time.Duration // default: 5s
	PingTimeout  time.Duration // per attempt, default: 2s
	ReadTimeout  time.Duration // default: 3s
	WriteTimeout time.Duration // default: 3s

	ConnectTimeout time.Duration // total startup budget, default: 10s
	RetryInterval  time.Duration // first wait between pings, doubles, default: 500ms
	MaxWait        time.Duration // cap on the wait between pings, default: 4s
}

// Locker is a single-holder lock shared by every sweep process pointing at
// the same daemon.
type Locker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger logger.Logger
}

// New connects to Redis, retrying with backoff for at most ConnectTimeout.
func New(ctx context.Context, opts Options, log logger.Logger) (*Locker, error) {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Name == "" {
		opts.Name = "run"
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 2 * time.Second
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 500 * time.Millisecond
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = 4 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 3 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 3 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Username:     opts.User,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolSize:     2,
	})

	err := connect(ctx, client, opts.Addr, backoff{
		initial:     opts.RetryInterval,
		maxWait:     opts.MaxWait,
		total:       opts.ConnectTimeout,
		pingTimeout: opts.PingTimeout,
	}, log)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	log.Info("connected to redis for run lock",
		logger.String("addr", opts.Addr),
		logger.String("key", Key(opts.Name)),
		logger.Duration("ttl", opts.TTL))

	return &Locker{
		client: client,
		key:    Key(opts.Name),
		ttl:    opts.TTL,
		logger: log,
	}, nil
}

// TryLock attempts to take the lock without waiting. When ok is false
// another process holds it. The returned unlock releases only our own hold.
func (l *Locker) TryLock(ctx context.Context) (unlock func(context.Context) error, ok bool, err error) {
	token := uuid.NewString()

	acquired, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}

	unlock = func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
			return fmt.Errorf("failed to release run lock: %w", err)
		}
		return nil
	}
	return unlock, true, nil
}

// Ping checks that Redis still answers.
func (l *Locker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (l *Locker) Close() error {
	return l.client.Close()
}
