package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrSnakeDoc/sweep/internal/config"
	"github.com/MrSnakeDoc/sweep/internal/httpserver"
	"github.com/MrSnakeDoc/sweep/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sweep/internal/logger"
	"github.com/MrSnakeDoc/sweep/internal/metrics"
	"github.com/MrSnakeDoc/sweep/internal/policy"
	"github.com/MrSnakeDoc/sweep/internal/runlock"
	"github.com/MrSnakeDoc/sweep/internal/scheduler"
	"github.com/MrSnakeDoc/sweep/internal/sweeper"
	"github.com/MrSnakeDoc/sweep/internal/transmission"
	"github.com/MrSnakeDoc/sweep/internal/version"
)

type App struct {
	cfg       *config.Config
	logger    logger.Logger
	metrics   *metrics.Metrics
	policies  *policy.Store
	watcher   *policy.Watcher
	locker    *runlock.Locker
	sweeper   *sweeper.Sweeper
	scheduler *scheduler.Scheduler
	server    *httpserver.Server
}

// New loads the configuration from the environment and wires every component.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(cfg)
}

// NewWithConfig wires every component from cfg. Nothing talks to the daemon
// yet; Redis, when configured, must answer within its connect budget.
func NewWithConfig(cfg *config.Config) (*App, error) {
	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)
	loggerClient.Debug("configuration loaded",
		logger.Any("config", cfg.Redacted()))

	m := metrics.New()

	client, err := transmission.New(transmission.Options{
		URL:       cfg.RPCURL,
		Username:  cfg.RPCUsername,
		Password:  cfg.RPCPassword,
		Timeout:   cfg.RPCTimeout,
		Observer:  m,
		UserAgent: version.UserAgent(),
	}, loggerClient)
	if err != nil {
		return nil, &config.Error{Key: "SWEEP_RPC_URL", Reason: err.Error()}
	}

	store := policy.NewStore(cfg.Policy)
	policySource := "env"
	var watcher *policy.Watcher
	if cfg.PolicyFile != "" {
		reloader := policy.NewReloader(cfg.PolicyFile, cfg.Policy, store, loggerClient)
		if err := reloader.Reload(); err != nil {
			return nil, &config.Error{Key: "SWEEP_POLICY_FILE", Reason: err.Error()}
		}
		policySource = cfg.PolicyFile
		if !cfg.OneShot() {
			watcher = policy.NewWatcher(reloader, loggerClient, policy.DefaultDebounce)
		}
	} else {
		p := store.Current()
		loggerClient.Info("policy loaded from environment",
			logger.Strings("labels", p.Labels),
			logger.Strings("excluded_trackers", p.ExcludedTrackers),
			logger.Float64("max_ratio", p.MaxRatio),
			logger.Float64("dead_retention_hours", p.DeadRetentionHours),
			logger.Float64("max_age_hours", p.MaxAgeHours),
			logger.Bool("dry_run", p.DryRun))
	}

	opts := []sweeper.Option{sweeper.WithRecorder(m)}

	var locker *runlock.Locker
	if cfg.RedisAddr != "" {
		loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		locker, err = runlock.New(context.Background(), runlock.Options{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			DB:             cfg.RedisDB,
			TTL:            cfg.LockTTL,
			ConnectTimeout: cfg.RedisConnect,
		}, loggerClient)
		if err != nil {
			return nil, fmt.Errorf("failed to set up run lock: %w", err)
		}
		opts = append(opts, sweeper.WithLocker(locker))
	}

	sw := sweeper.New(client, store, loggerClient, opts...)

	a := &App{
		cfg:      cfg,
		logger:   loggerClient,
		metrics:  m,
		policies: store,
		watcher:  watcher,
		locker:   locker,
		sweeper:  sw,
	}

	if cfg.OneShot() {
		return a, nil
	}

	runTrigger := make(chan struct{}, 1)
	a.scheduler = scheduler.New(sw, cfg.Schedule, runTrigger, loggerClient)

	if cfg.ListenAddr != "" {
		d := deps.Deps{
			Logger:       loggerClient,
			StartTime:    time.Now(),
			Version:      version.Version,
			Commit:       version.Commit,
			BuildDate:    version.BuildDate,
			GoVersion:    version.GoVersion,
			TimeNow:      time.Now,
			AllowedCIDRS: cfg.AllowedCIDRS,
			AllowedHosts: cfg.AllowedHosts,
			TrustProxy:   cfg.TrustProxy,
			RunBurst:     cfg.RunBurst,
			RunPerMinute: cfg.RunPerMinute,
			RunTrigger:   runTrigger,
			RunStatus:    sw.Status,
			NextRun:      a.scheduler.Next,
			Policy:       store.Current,
			PolicySource: policySource,
			DaemonURL:    client.Endpoint(),
			Metrics:      m.Handler(),
		}
		if locker != nil {
			d.RunLock = locker
		}
		a.server = httpserver.New(cfg.ListenAddr, loggerClient, d)
	}

	return a, nil
}

// Run executes once and returns in one-shot mode. Otherwise it serves the
// schedule until SIGINT/SIGTERM; only the first run's failure is returned.
func (a *App) Run() error {
	defer a.close()

	a.logger.Info(version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.cfg.OneShot() {
		a.logger.Info("running once")
		if _, err := a.sweeper.Run(ctx); err != nil {
			a.logger.Error("run failed", logger.Error(err))
			return fmt.Errorf("run failed: %w", err)
		}
		return nil
	}

	if a.watcher != nil {
		if err := a.watcher.Start(ctx); err != nil {
			return fmt.Errorf("failed to watch policy file: %w", err)
		}
		defer a.watcher.Stop()
	}

	// Probes answer while the first run is still discovering the daemon.
	errCh := make(chan error, 1)
	if a.server != nil {
		go func() {
			if err := a.server.Start(); err != nil {
				errCh <- fmt.Errorf("http server error: %w", err)
			}
		}()
	}

	if err := a.scheduler.Start(ctx); err != nil {
		a.logger.Error("first run failed", logger.Error(err))
		_ = a.stopServer()
		return err
	}

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		a.scheduler.Stop()
		return err
	}

	a.scheduler.Stop()

	if err := a.stopServer(); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	a.logger.Info("✅ sweep stopped cleanly")
	return nil
}

func (a *App) stopServer() error {
	if a.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	return a.server.Stop(shutdownCtx)
}

func (a *App) close() {
	if a.locker != nil {
		if err := a.locker.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		}
	}
	_ = a.logger.Sync()
}
