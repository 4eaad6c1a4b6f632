package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/MrSnakeDoc/sweep/internal/domain"
)

// Error is a malformed or missing setting. It is fatal at startup.
type Error struct {
	Key    string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Key, e.Reason)
}

type Config struct {
	// Daemon
	RPCURL      string        // ex: "http://transmission:9091/transmission/rpc"
	RPCUsername string        // optional Basic Auth
	RPCPassword string        // optional Basic Auth
	RPCTimeout  time.Duration // per-request timeout (default: 30s)

	// Retention policy, possibly overridden by PolicyFile
	Policy     domain.Policy
	PolicyFile string // optional YAML or TOML policy file, hot-reloaded

	Schedule string // cron expression; empty => run once and exit

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Ops HTTP server, disabled when ListenAddr is empty
	ListenAddr      string        // ex: ":9090"
	AllowedCIDRS    []string      // restrict /run, /status and /metrics
	AllowedHosts    []string      // Host headers accepted on /run, wildcard "*.example.com"
	RunBurst        int           // /run requests per client before throttling
	RunPerMinute    int           // /run token refill per client
	TrustProxy      bool          // resolve client IP from X-Forwarded-For
	ShutdownTimeout time.Duration // ex: 5s

	// Redis run lock, disabled when RedisAddr is empty
	RedisAddr     string
	RedisUser     string
	RedisPassword string
	RedisDB       int
	RedisConnect  time.Duration // startup retry budget
	LockTTL       time.Duration
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom reads the configuration through lookup.
func LoadFrom(lookup LookupFunc) (*Config, error) {
	e := &env{lookup: lookup}

	cfg := &Config{
		RPCURL:      e.requireEnv("SWEEP_RPC_URL"),
		RPCUsername: e.getenv("SWEEP_RPC_USERNAME", ""),
		RPCPassword: e.getenv("SWEEP_RPC_PASSWORD", ""),
		RPCTimeout:  e.mustDuration("SWEEP_RPC_TIMEOUT", 30*time.Second),

		Policy: domain.Policy{
			Labels:             e.list("SWEEP_LABELS"),
			ExcludedTrackers:   e.list("SWEEP_EXCLUDED_TRACKERS"),
			MaxRatio:           e.positiveFloat("SWEEP_MAX_RATIO", 2.0),
			DeadRetentionHours: e.positiveFloat("SWEEP_DEAD_RETENTION_HOURS", 12),
			MaxAgeHours:        e.positiveFloat("SWEEP_MAX_AGE_HOURS", 120),
			DryRun:             e.mustBool("SWEEP_DRY_RUN", false),
		}.Normalized(),
		PolicyFile: e.getenv("SWEEP_POLICY_FILE", ""),

		Schedule: e.getenv("SWEEP_SCHEDULE", ""),

		LogLevel:  strings.ToLower(e.getenv("SWEEP_LOG_LEVEL", "info")),
		PrettyLog: e.mustBool("SWEEP_PRETTY_LOG", false),

		ListenAddr:      e.getenv("SWEEP_LISTEN_ADDR", ""),
		AllowedCIDRS:    e.list("SWEEP_ALLOWED_CIDRS"),
		AllowedHosts:    e.list("SWEEP_ALLOWED_HOSTS"),
		RunBurst:        e.getenvInt("SWEEP_RUN_BURST", 3),
		RunPerMinute:    e.getenvInt("SWEEP_RUN_PER_MINUTE", 6),
		TrustProxy:      e.mustBool("SWEEP_TRUST_PROXY", false),
		ShutdownTimeout: e.mustDuration("SWEEP_SHUTDOWN_TIMEOUT", 5*time.Second),

		RedisAddr:     e.getenv("SWEEP_REDIS_ADDR", ""),
		RedisUser:     e.getenv("SWEEP_REDIS_USERNAME", ""),
		RedisPassword: e.getenv("SWEEP_REDIS_PASSWORD", ""),
		RedisDB:       e.getenvInt("SWEEP_REDIS_DB", 0),
		RedisConnect:  e.mustDuration("SWEEP_REDIS_CONNECT_TIMEOUT", 10*time.Second),
		LockTTL:       e.mustDuration("SWEEP_LOCK_TTL", 30*time.Minute),
	}

	if e.err != nil {
		return nil, e.err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.RPCURL)
	if err != nil {
		return &Error{Key: "SWEEP_RPC_URL", Reason: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &Error{Key: "SWEEP_RPC_URL", Reason: "must use http or https scheme"}
	}
	if u.Host == "" {
		return &Error{Key: "SWEEP_RPC_URL", Reason: "must have a host"}
	}

	if c.RPCPassword != "" && c.RPCUsername == "" {
		return &Error{Key: "SWEEP_RPC_USERNAME", Reason: "required when SWEEP_RPC_PASSWORD is set"}
	}
	if strings.Contains(c.RPCUsername, ":") {
		return &Error{Key: "SWEEP_RPC_USERNAME", Reason: "must not contain ':'"}
	}

	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			return &Error{Key: "SWEEP_SCHEDULE", Reason: err.Error()}
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return &Error{Key: "SWEEP_LOG_LEVEL", Reason: fmt.Sprintf("unknown level %q", c.LogLevel)}
	}

	if c.RunBurst < 1 {
		return &Error{Key: "SWEEP_RUN_BURST", Reason: "must be >= 1"}
	}
	if c.RunPerMinute < 1 {
		return &Error{Key: "SWEEP_RUN_PER_MINUTE", Reason: "must be >= 1"}
	}

	if c.RedisDB < 0 {
		return &Error{Key: "SWEEP_REDIS_DB", Reason: "must be >= 0"}
	}

	return nil
}

// OneShot reports whether the process should run once and exit.
func (c *Config) OneShot() bool {
	return c.Schedule == ""
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	if c.RPCPassword != "" {
		c.RPCPassword = "***REDACTED***"
	}
	if c.RedisPassword != "" {
		c.RedisPassword = "***REDACTED***"
	}
	return c
}
