package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"appraisal/internal/domain/appraisal"
	"appraisal/internal/domain/scoring"
	"appraisal/internal/platform/config"
	"appraisal/internal/platform/crypto"
	"appraisal/internal/platform/db"
	"appraisal/internal/platform/jobs"
	"appraisal/internal/platform/logging"
	"appraisal/internal/platform/metrics"
	adminhandler "appraisal/internal/transport/http/handlers/admin"
	appraisalhandler "appraisal/internal/transport/http/handlers/appraisal"
	ledgerhandler "appraisal/internal/transport/http/handlers/ledger"
	periodhandler "appraisal/internal/transport/http/handlers/period"
	staffhandler "appraisal/internal/transport/http/handlers/staff"
	"appraisal/internal/transport/http/middleware"
)

type App struct {
	Config  config.Config
	Store   appraisal.StoreAPI
	Service *appraisal.Service
	Jobs    *jobs.Service
	Metrics *metrics.Collector
	Router  http.Handler

	closeStore func()
}

// NewService builds the appraisal service with the configured scoring
// rules and attachment key.
func NewService(cfg config.Config, store appraisal.StoreAPI, collector *metrics.Collector) (*appraisal.Service, error) {
	scoringCfg, err := scoring.LoadConfig(cfg.ScoringConfigPath)
	if err != nil {
		return nil, err
	}
	engine, err := scoring.NewEngine(scoringCfg)
	if err != nil {
		return nil, err
	}
	cryptoSvc, err := crypto.New(cfg.DataEncryptionKey)
	if err != nil {
		return nil, err
	}
	return appraisal.NewService(store, engine, cryptoSvc, collector), nil
}

// New opens the store, seeds it when configured and assembles the router.
// Background jobs are not started; Run does that.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	store, closeStore, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	collector := metrics.New()
	svc, err := NewService(cfg, store, collector)
	if err != nil {
		closeStore()
		return nil, err
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, svc, cfg, time.Now()); err != nil {
			closeStore()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	jobsSvc := jobs.New(svc, cfg.LedgerBackfillInterval)
	app := &App{
		Config:     cfg,
		Store:      store,
		Service:    svc,
		Jobs:       jobsSvc,
		Metrics:    collector,
		closeStore: closeStore,
	}
	app.Router = NewRouter(cfg, store, svc, jobsSvc, collector)
	return app, nil
}

func (a *App) Close() {
	if a.closeStore != nil {
		a.closeStore()
	}
}

func NewRouter(cfg config.Config, store appraisal.StoreAPI, svc *appraisal.Service, jobsSvc *jobs.Service, collector *metrics.Collector) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	router.Use(middleware.Logger(collector))
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			http.Error(w, "store not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
		r.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

		staffhandler.NewHandler(svc).RegisterRoutes(r)
		periodhandler.NewHandler(svc).RegisterRoutes(r)
		appraisalhandler.NewHandler(svc).RegisterRoutes(r)
		ledgerhandler.NewHandler(svc, jobsSvc).RegisterRoutes(r)
		if cfg.MetricsEnabled {
			adminhandler.NewHandler(collector, jobsSvc).RegisterRoutes(r)
		}
	})

	return router
}

func Run() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logCloser, err := logging.Setup(cfg)
	if err != nil {
		slog.Error("logging setup failed", "err", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer app.Close()

	app.Jobs.Start(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("server shutdown failed", "err", err)
		}
	}()

	slog.Info("appraisal server listening", "addr", cfg.Addr, "store", cfg.StoreDriver)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "err", err)
	}
}
