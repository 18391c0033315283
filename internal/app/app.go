// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/guc-preloader/internal/api"
	"github.com/JakeFAU/guc-preloader/internal/clock/system"
	"github.com/JakeFAU/guc-preloader/internal/config"
	collyfetcher "github.com/JakeFAU/guc-preloader/internal/fetcher/colly"
	iduuid "github.com/JakeFAU/guc-preloader/internal/id/uuid"
	"github.com/JakeFAU/guc-preloader/internal/logging"
	"github.com/JakeFAU/guc-preloader/internal/navigation"
	"github.com/JakeFAU/guc-preloader/internal/progress"
	"github.com/JakeFAU/guc-preloader/internal/progress/sinks"
	"github.com/JakeFAU/guc-preloader/internal/redirect"
	"github.com/JakeFAU/guc-preloader/internal/registry"
	"github.com/JakeFAU/guc-preloader/internal/session"
	"github.com/JakeFAU/guc-preloader/internal/storage/memory"
	"github.com/JakeFAU/guc-preloader/internal/storage/postgres"
)

const (
	memoryJournalCapacity = 1024
	shutdownTimeout       = 5 * time.Second
)

// Option overrides a dependency NewApp would otherwise build from config.
type Option func(*options)

type options struct {
	store      navigation.Store
	lookup     redirect.Lookup
	registerer prometheus.Registerer
}

// WithStore replaces the configured navigation journal.
func WithStore(store navigation.Store) Option {
	return func(o *options) { o.store = store }
}

// WithLookup replaces the HTTP registry client.
func WithLookup(lookup redirect.Lookup) Option {
	return func(o *options) { o.lookup = lookup }
}

// WithRegisterer sets where lifecycle collectors are registered.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// App holds all the shared, long-lived services for the application.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	hub      *progress.Hub
	store    navigation.Store
	recorder *navigation.Recorder
	resolver *redirect.Resolver
	sessions *session.Manager
	server   *api.Server

	stopJanitor context.CancelFunc
	janitorDone chan struct{}
}

// NewApp wires every service from cfg. It fails fast when the journal
// database or the metrics registry cannot be initialized.
func NewApp(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = logging.OrNop(logger)
	o := options{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}

	logger.Info("initializing application services")

	promSink, err := sinks.NewPrometheusSink(o.registerer)
	if err != nil {
		return nil, fmt.Errorf("init prometheus sink: %w", err)
	}
	hub := progress.NewHub(progress.Config{
		BufferSize:     cfg.Progress.BufferSize,
		MaxBatchEvents: cfg.Progress.MaxBatchEvents,
		MaxBatchWait:   cfg.BatchWait(),
		Logger:         logger.Named("progress"),
	}, sinks.NewLogSink(logger.Named("lifecycle")), promSink)

	store := o.store
	if store == nil {
		store, err = newStore(ctx, cfg, logger)
		if err != nil {
			closeHub(hub, logger)
			return nil, err
		}
	}

	lookup := o.lookup
	if lookup == nil {
		fetcher := collyfetcher.New(collyfetcher.Config{
			UserAgent: cfg.Registry.UserAgent,
			Timeout:   cfg.RegistryTimeout(),
		})
		lookup = registry.NewClient(cfg.Registry.URL, fetcher, logger.Named("registry"))
	}

	clock := system.New()
	ids := iduuid.New()
	resolverLogger := logger.Named("redirect")
	resolver := redirect.NewResolver(resolverLogger, cfg.Redirect.DefaultURL,
		redirect.NewRegistryStep(lookup, resolverLogger),
		redirect.NewPathOverrideStep(cfg.Redirect.OverridePrefix),
	)
	recorder := navigation.NewRecorder(navigation.RecorderOptions{
		Store:   store,
		IDs:     ids,
		Clock:   clock,
		Emitter: hub,
		Logger:  logger.Named("navigation"),
	})
	sessions := session.NewManager(session.Options{
		IDs:             ids,
		Resolver:        resolver,
		Navigator:       recorder,
		Emitter:         hub,
		Clock:           clock,
		Logger:          logger.Named("session"),
		NavigationDelay: cfg.NavigationDelay(),
	},
		session.WithIdleTTL(cfg.SessionIdleTTL()),
		session.WithMaxSessions(cfg.Session.MaxSessions),
	)
	janitorCtx, stopJanitor := context.WithCancel(context.WithoutCancel(ctx))
	janitorDone := make(chan struct{})
	go func() {
		defer close(janitorDone)
		sessions.RunJanitor(janitorCtx, janitorInterval(cfg.SessionIdleTTL()))
	}()
	server := api.NewServer(api.Options{
		Sessions:    sessions,
		Navigations: recorder,
		Logger:      logger.Named("api"),
		Ready: func(ctx context.Context) error {
			if _, err := store.Recent(ctx, 1); err != nil {
				return fmt.Errorf("navigation journal: %w", err)
			}
			return nil
		},
	})

	logger.Info("application services initialized")
	return &App{
		cfg:      cfg,
		logger:   logger,
		hub:      hub,
		store:    store,
		recorder: recorder,
		resolver: resolver,
		sessions: sessions,
		server:   server,

		stopJanitor: stopJanitor,
		janitorDone: janitorDone,
	}, nil
}

func newStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (navigation.Store, error) {
	if cfg.DB.DSN == "" {
		logger.Info("using in-memory navigation journal", zap.Int("capacity", memoryJournalCapacity))
		return memory.NewNavigationStore(memoryJournalCapacity), nil
	}
	logger.Info("connecting navigation journal to postgres", zap.String("table", cfg.DB.Table))
	store, err := postgres.NewNavigationStore(ctx, postgres.NavigationStoreConfig{
		DSN:      cfg.DB.DSN,
		Table:    cfg.DB.Table,
		MaxConns: cfg.DB.MaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("init navigation journal: %w", err)
	}
	return store, nil
}

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the root logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Sessions returns the live session manager.
func (a *App) Sessions() *session.Manager { return a.sessions }

// Resolver returns the redirect chain.
func (a *App) Resolver() *redirect.Resolver { return a.resolver }

// Navigations returns the navigation journal reader.
func (a *App) Navigations() *navigation.Recorder { return a.recorder }

// Server returns the HTTP API.
func (a *App) Server() *api.Server { return a.server }

// Close ends live sessions, flushes lifecycle events and releases the
// journal. It is called by a Cobra hook after the command finishes.
func (a *App) Close() {
	a.logger.Info("shutting down application services")
	a.stopJanitor()
	<-a.janitorDone
	a.sessions.Close()
	closeHub(a.hub, a.logger)
	a.store.Close()
	// Sync fails on stderr/stdout under some terminals; nothing left to report to.
	_ = a.logger.Sync()
}

// janitorInterval sweeps twice per TTL, but never more than once a second.
func janitorInterval(ttl time.Duration) time.Duration {
	return max(ttl/2, time.Second)
}

func closeHub(hub *progress.Hub, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := hub.Close(ctx); err != nil {
		logger.Warn("progress hub did not drain", zap.Error(err))
	}
}
