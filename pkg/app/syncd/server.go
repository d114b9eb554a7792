// Package syncd implements app.Runner for the punch sync daemon.
package syncd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/clockwork-hr/punchsync/pkg/app/httpserver"
	"github.com/clockwork-hr/punchsync/pkg/attstore"
	"github.com/clockwork-hr/punchsync/pkg/auth"
	"github.com/clockwork-hr/punchsync/pkg/config"
	"github.com/clockwork-hr/punchsync/pkg/devicestore"
	"github.com/clockwork-hr/punchsync/pkg/pgutil"
	"github.com/clockwork-hr/punchsync/pkg/syncer"
	"github.com/clockwork-hr/punchsync/pkg/zkteco"
)

const (
	defaultHTTPMiddlewareTimeout = 60 * time.Second
	defaultHTTPReadTimeout       = 15 * time.Second
	defaultHTTPWriteTimeout      = 15 * time.Second
	defaultHTTPIdleTimeout       = 60 * time.Second

	defaultListLimit = 100
)

// Server holds configuration for the syncd process.
type Server struct {
	cfg *config.Config
}

// NewServer initializes a new syncd Server.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// Run starts the sync engine and the operational HTTP server.
// It blocks until an OS shutdown signal is received or a fatal server error occurs.
func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("nil config")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting punch sync daemon")

	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = db.Close() }()
	logger.Info("Database connection established")

	devices := devicestore.NewStore(db)
	ledger := attstore.NewStore(db)

	if cfg.Sync.DeviceFile != "" {
		if err := SeedDevices(ctx, cfg.Sync.DeviceFile, cfg.Sync, devices, logger); err != nil {
			return fmt.Errorf("seed devices: %w", err)
		}
	}

	sync, err := syncer.NewSyncer(zkteco.NewDialer(logger), devices, ledger, logger)
	if err != nil {
		return fmt.Errorf("create syncer: %w", err)
	}

	engine := syncer.NewEngine(sync, devices, ledger, cfg.Sync.PollInterval, logger)
	engine.Start(ctx)
	defer engine.Stop()

	router := s.newRouter(devices, ledger, engine, logger)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  defaultHTTPReadTimeout,
		WriteTimeout: defaultHTTPWriteTimeout,
		IdleTimeout:  defaultHTTPIdleTimeout,
	}

	return httpserver.ServeAndWait(ctx, logger, httpServer, cfg.Shutdown.Timeout)
}

func (s *Server) newRouter(devices devicestore.Store, ledger attstore.Store, engine *syncer.Engine, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(defaultHTTPMiddlewareTimeout))
	r.Use(middleware.Logger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Get("/ready", func(w http.ResponseWriter, _ *http.Request) {
		if !engine.IsReady() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT_READY"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	})

	r.Handle("/metrics", promhttp.Handler())

	validator := auth.NewJWTValidator(s.cfg.Auth.JWTSecret, s.cfg.Auth.JWTIssuer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/devices", handleListDevices(devices, logger))
		r.Post("/devices/{id}/sync", handleSyncDevice(engine, logger))
		r.Post("/devices/{id}/sync-users", handleSyncUsers(engine, logger))
		r.With(validator.Middleware).Post("/devices/{id}/purge", handlePurge(engine, logger))
		r.Get("/employees/{id}/intervals", handleListIntervals(ledger, logger))
		r.Get("/employees/{id}/punches", handleListPunches(ledger, logger))
	})

	return r
}
