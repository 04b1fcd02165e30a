package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/goclaw/willing/config"
	"github.com/goclaw/willing/pkg/api"
	"github.com/goclaw/willing/pkg/api/events"
	"github.com/goclaw/willing/pkg/api/handlers"
	"github.com/goclaw/willing/pkg/logger"
	"github.com/goclaw/willing/pkg/metrics"
	"github.com/goclaw/willing/pkg/storage"
	badgerstore "github.com/goclaw/willing/pkg/storage/badger"
	memorystore "github.com/goclaw/willing/pkg/storage/memory"
	redisstore "github.com/goclaw/willing/pkg/storage/redis"
	"github.com/goclaw/willing/pkg/telemetry/tracing"
	"github.com/goclaw/willing/pkg/version"
	"github.com/goclaw/willing/pkg/willing"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the willingness API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, loader, err := opts.load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return run(ctx, cfg, loader, opts.configPath, nil)
		},
	}
}

// daemon holds every component started by run so shutdown can unwind them
// in reverse order.
type daemon struct {
	cfg         *config.Config
	log         logger.Logger
	metrics     *metrics.Manager
	provider    *config.Provider
	broadcaster *events.Broadcaster
	manager     *willing.Manager
	backend     storage.Storage
	snapshotter *willing.Snapshotter
	watcher     *config.Watcher
	stream      *handlers.WebSocketHandler
	server      *api.HTTPServer
	shutdownTr  tracing.ShutdownFunc
}

// run starts the daemon and blocks until ctx is cancelled. When ready is not
// nil it receives the bound API address once the server is listening.
func run(ctx context.Context, cfg *config.Config, loader *config.Loader, configPath string, ready chan<- net.Addr) error {
	d, err := start(ctx, cfg, loader, configPath)
	if err != nil {
		return err
	}

	addr, err := d.server.Listen()
	if err != nil {
		d.shutdown()
		return fmt.Errorf("listen: %w", err)
	}
	d.log.Info("willingd started",
		"version", version.Version,
		"addr", addr.String(),
		"storage", cfg.Storage.Type,
		"environment", cfg.App.Environment,
	)
	if ready != nil {
		ready <- addr
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.server.Start()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		d.log.Info("shutdown signal received")
	case serveErr = <-errCh:
		if serveErr != nil {
			d.log.Error("http server failed", "error", serveErr)
		}
	}

	d.shutdown()
	return serveErr
}

func start(ctx context.Context, cfg *config.Config, loader *config.Loader, configPath string) (*daemon, error) {
	d := &daemon{cfg: cfg}

	level := logger.ParseLevel(cfg.Log.Level)
	if cfg.App.Debug {
		level = logger.DebugLevel
	}
	d.log = logger.New(&logger.Config{
		Level:   level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.App.Name,
	})
	logger.SetGlobal(d.log)

	shutdownTr, err := tracing.Init(ctx, cfg.Tracing, cfg.App.Name, version.Version, tracing.WithLogger(d.log))
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	d.shutdownTr = shutdownTr

	d.metrics = metrics.NewManager(metrics.Config{
		Enabled: cfg.Metrics.Enabled,
		Port:    cfg.Metrics.Port,
		Path:    cfg.Metrics.Path,
	})
	if d.metrics.Enabled() {
		go func() {
			if err := d.metrics.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
				d.log.Error("metrics server failed", "error", err)
			}
		}()
	}

	d.provider, err = config.NewProvider(cfg)
	if err != nil {
		d.shutdown()
		return nil, fmt.Errorf("init tuning: %w", err)
	}

	d.broadcaster = events.NewBroadcaster()
	d.manager = willing.NewManager(
		willing.WithLogger(d.log.With("component", "willing")),
		willing.WithMetrics(d.metrics),
		willing.WithObserver(d.broadcaster.ObserveDecision),
		willing.WithDecay(cfg.Willing.DecayInterval, cfg.Willing.DecayFactor),
	)

	d.backend, err = openStorage(ctx, cfg.Storage)
	if err != nil {
		d.shutdown()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if cfg.Storage.Type != "memory" {
		d.snapshotter, err = willing.NewSnapshotter(d.manager.Store(), d.backend,
			willing.WithSnapshotInterval(cfg.Storage.SnapshotInterval),
			willing.WithSnapshotLogger(d.log.With("component", "snapshot")),
			willing.WithSnapshotMetrics(d.metrics),
		)
		if err != nil {
			d.shutdown()
			return nil, fmt.Errorf("init snapshots: %w", err)
		}
		n, err := d.snapshotter.Restore(ctx)
		if err != nil {
			d.log.Warn("snapshot restore failed, starting empty", "error", err)
		} else {
			d.log.Info("snapshot restored", "conversations", n)
		}
		d.snapshotter.Start(ctx)
	}

	if err := d.manager.EnsureBackgroundDecayStarted(ctx); err != nil {
		d.shutdown()
		return nil, fmt.Errorf("start decay: %w", err)
	}

	if configPath != "" && loader != nil {
		if err := d.watchConfig(ctx, loader, configPath); err != nil {
			d.log.Warn("config hot reload disabled", "error", err)
		}
	}

	d.stream = handlers.NewWebSocketHandler(d.log.With("component", "events"), handlers.WebSocketConfig{
		AllowedOrigins: cfg.Server.CORS.AllowedOrigins,
	})
	d.stream.Attach(ctx, d.broadcaster)

	d.server = api.NewHTTPServer(cfg, d.log, &api.Handlers{
		Conversations: handlers.NewConversationHandler(d.manager, d.provider, d.broadcaster, d.log.With("component", "api")),
		Health: handlers.NewHealthHandler(d.manager,
			map[string]any{"storage": cfg.Storage.Type, "environment": cfg.App.Environment},
			storageCheck(d.backend),
		),
		Events:  d.stream,
		Metrics: d.metrics,
	})
	return d, nil
}

func (d *daemon) watchConfig(ctx context.Context, loader *config.Loader, configPath string) error {
	w, err := config.NewWatcher(configPath, loader, config.WithWatcherLogger(d.log.With("component", "config")))
	if err != nil {
		return err
	}
	// Callbacks run on their own goroutines.
	var mu sync.Mutex
	current := config.ExtractHotReloadable(d.cfg)
	w.OnChange(func(next *config.Config) {
		mu.Lock()
		defer mu.Unlock()

		reloaded := config.ExtractHotReloadable(next)
		if !current.Changed(reloaded) {
			return
		}
		err := d.provider.Update(next)
		d.metrics.RecordTuningReload(err)
		if err != nil {
			d.log.Warn("tuning reload rejected", "error", err)
			return
		}
		if reloaded.LogLevel != current.LogLevel {
			logger.SetLevel(logger.ParseLevel(reloaded.LogLevel))
		}
		current = reloaded
		d.log.Info("tuning reloaded",
			"interest_amplifier", reloaded.InterestAmplifier,
			"willingness_amplifier", reloaded.WillingnessAmplifier,
			"down_frequency_rate", reloaded.DownFrequencyRate,
		)
	})
	go func() {
		if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.log.Error("config watcher stopped", "error", err)
		}
	}()
	d.watcher = w
	return nil
}

// shutdown tears components down in reverse start order. It tolerates a
// partially started daemon.
func (d *daemon) shutdown() {
	timeout := d.cfg.Server.HTTP.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if d.server != nil {
		if err := d.server.Shutdown(ctx); err != nil {
			d.log.Error("http shutdown failed", "error", err)
		}
	}
	if d.stream != nil {
		d.stream.Close()
	}
	if d.watcher != nil {
		_ = d.watcher.Stop()
	}
	if d.manager != nil {
		d.manager.Stop()
	}
	if d.snapshotter != nil {
		if err := d.snapshotter.Stop(ctx); err != nil {
			d.log.Error("final snapshot failed", "error", err)
		}
	}
	if d.backend != nil {
		if err := d.backend.Close(); err != nil {
			d.log.Error("storage close failed", "error", err)
		}
	}
	if d.broadcaster != nil {
		d.broadcaster.Close()
	}
	if d.shutdownTr != nil {
		if err := d.shutdownTr(ctx); err != nil {
			d.log.Error("tracing shutdown failed", "error", err)
		}
	}
	d.log.Info("willingd stopped")
	_ = d.log.Close()
}

func openStorage(ctx context.Context, cfg config.StorageConfig) (storage.Storage, error) {
	switch cfg.Type {
	case "", "memory":
		return memorystore.NewMemoryStorage(), nil
	case "badger":
		s, err := badgerstore.NewBadgerStorage(&badgerstore.Config{
			Path:              cfg.Badger.Path,
			SyncWrites:        cfg.Badger.SyncWrites,
			ValueLogFileSize:  cfg.Badger.ValueLogFileSize,
			NumVersionsToKeep: cfg.Badger.NumVersionsToKeep,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "redis":
		s, err := redisstore.NewRedisStorage(ctx, &redisstore.Config{
			Address:     cfg.Redis.Address,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			KeyPrefix:   cfg.Redis.KeyPrefix,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
	}
}

// storageCheck probes the backend with a lookup of a key that never exists.
// A not-found answer means the backend is reachable.
func storageCheck(backend storage.Storage) handlers.ReadinessCheck {
	return handlers.ReadinessCheck{
		Name: "storage",
		Check: func(ctx context.Context) error {
			_, err := backend.GetRecord(ctx, "__readiness_probe__")
			var nf *storage.NotFoundError
			if err == nil || errors.As(err, &nf) {
				return nil
			}
			return err
		},
	}
}
