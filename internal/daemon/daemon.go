package daemon

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nexus-quest/pulse/internal/api"
	"github.com/nexus-quest/pulse/internal/app/playerstate"
	"github.com/nexus-quest/pulse/internal/app/pulse"
	"github.com/nexus-quest/pulse/internal/domain"
	"github.com/nexus-quest/pulse/internal/health"
	"github.com/nexus-quest/pulse/internal/infra/kvcache"
	_ "github.com/nexus-quest/pulse/internal/infra/metrics" // Register Prometheus metrics
	"github.com/nexus-quest/pulse/internal/infra/sqlite"
	"github.com/nexus-quest/pulse/internal/infra/synth"
)

// Daemon is the Nexus Pulse runtime. It wires storage, the engine, the
// player-state store and the HTTP API together.
type Daemon struct {
	Config   Config
	DB       *sqlite.DB
	KV       *kvcache.Store
	Provider domain.SynthesisProvider
	State    *playerstate.Store
	Pulse    *pulse.Pulse
	Live     *api.LiveHub
	Server   *api.Server
	Health   *health.Checker

	logFile io.Closer
	cancel  context.CancelFunc
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(ctx context.Context, cfg Config) (*Daemon, error) {
	d := &Daemon{Config: cfg}

	logFile, err := SetupLogging(cfg.Logging.File)
	if err != nil {
		return nil, err
	}
	d.logFile = logFile

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		d.Close()
		return nil, err
	}

	// Storage: SQLite behind an LRU
	db, kv, err := OpenStore(cfg)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.DB, d.KV = db, kv

	// Synthesis provider; a broken provider degrades to local insights only
	provider, err := synth.New(ctx, cfg.ProviderConfig())
	if err != nil {
		log.Printf("[daemon] WARNING: synthesis provider: %v (local insights only)", err)
		provider = synth.Disabled{}
	}
	d.Provider = provider

	// Player state
	initial := domain.State{}
	if cfg.Pulse.StateFile != "" {
		s, err := LoadStateFile(cfg.Pulse.StateFile)
		if err != nil {
			d.Close()
			return nil, err
		}
		initial = s
	}
	d.State = playerstate.New(initial)

	// Engine
	d.Pulse = pulse.New(provider, kv, d.State.Current, engineCfg)
	d.State.Subscribe(d.Pulse.OnStateChange)

	// API
	d.Server = api.NewServer(d.Pulse, d.State)
	d.Server.SetCORSOrigins(cfg.API.CORSOrigins)
	if cfg.Telemetry.Prometheus {
		d.Server.EnableMetrics()
	}
	d.Live = api.NewLiveHub(d.Pulse)
	d.Server.SetLiveHub(d.Live)

	// Health
	checks := []health.Check{
		health.StorageCheck(db, kv.Purge),
		health.DirCheck(storageDir(cfg)),
	}
	if _, disabled := provider.(synth.Disabled); !disabled {
		checks = append(checks, health.SynthesisCheck(provider.Name(), d.Pulse.Orchestrator().LastError))
	}
	d.Health = health.NewChecker(health.DefaultInterval, checks...)
	d.Server.SetHealth(d.Health)

	log.Printf("[daemon] provider=%s storage=%s cooldown=%s timeout=%s",
		provider.Name(), storageDir(cfg), engineCfg.Cooldown, engineCfg.Timeout)
	return d, nil
}

// OpenStore opens the SQLite KV store and its LRU front.
func OpenStore(cfg Config) (*sqlite.DB, *kvcache.Store, error) {
	db, err := sqlite.Open(storageDir(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	// The cache record carries the cooldown, which the CLI and daemon share.
	kv, err := kvcache.New(db, cfg.Storage.CacheEntries, pulse.CacheKey)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, kv, nil
}

func storageDir(cfg Config) string {
	if cfg.Storage.Dir == "" {
		return pulseHome()
	}
	return cfg.Storage.Dir
}

// SetupLogging tees the standard logger to path in addition to stderr.
// An empty path leaves logging untouched.
func SetupLogging(path string) (io.Closer, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	return f, nil
}

// Addr returns the configured listen address.
func (d *Daemon) Addr() string {
	return fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	addr := d.Addr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           d.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	go d.Health.Run(ctx)

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		log.Printf("[daemon] shutting down")
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	fmt.Printf("Nexus Pulse serving on http://%s\n", addr)
	fmt.Printf("  Provider: %s\n", d.Provider.Name())
	if d.Config.Telemetry.Prometheus {
		fmt.Printf("  Metrics: http://%s/metrics\n", addr)
	}

	err := httpServer.ListenAndServe()
	d.Close()
	if err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Live != nil {
		d.Live.Close()
		d.Live = nil
	}
	if d.Pulse != nil {
		d.Pulse.Close()
		d.Pulse = nil
	}
	if d.DB != nil {
		_ = d.DB.Close()
		d.DB = nil
	}
	if d.logFile != nil {
		log.SetOutput(os.Stderr)
		_ = d.logFile.Close()
		d.logFile = nil
	}
}
