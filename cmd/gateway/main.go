package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	api "github.com/mind-engage/mindengage-attempts/internal/api/http"
	"github.com/mind-engage/mindengage-attempts/internal/attempt"
	auth "github.com/mind-engage/mindengage-attempts/internal/auth/middleware"
	"github.com/mind-engage/mindengage-attempts/internal/config"
	"github.com/mind-engage/mindengage-attempts/internal/logger"
	"github.com/mind-engage/mindengage-attempts/internal/metrics"
	"github.com/mind-engage/mindengage-attempts/internal/upstream"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, closeLog := logger.New(cfg.Log, os.Stdout)
	defer func() { _ = closeLog() }()

	metrics.Init()

	// --- Classroom API ---
	client, err := upstream.New(upstream.Config{
		BaseURL:    cfg.Upstream.BaseURL,
		Timeout:    cfg.Upstream.Timeout,
		RatePerSec: cfg.Upstream.RatePerSec,
		Burst:      cfg.Upstream.Burst,
	}, lg)
	if err != nil {
		lg.Fatal("upstream client", zap.Error(err))
	}

	orch := attempt.New(client, attempt.NewRegistry(), lg.Named("attempt"), time.Now)
	orch.LoadTimeout = cfg.Session.LoadTimeout
	orch.EvaluateTimeout = cfg.Session.EvaluateTimeout

	// --- Auth (tokens are issued by the classroom API) ---
	authSvc := auth.NewAuthService(cfg.Auth.HMACSecret, cfg.Auth.DefaultRole)
	if cfg.Auth.HMACSecret == "" {
		lg.Warn("no auth.hmac_secret set: bearer tokens are decoded but not verified")
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Protected API (JWT → caller + role in context → RBAC)
	r.Route("/api", func(ar chi.Router) {
		// evaluation may run long; the request waits for it
		ar.Use(middleware.Timeout(cfg.Session.EvaluateTimeout + 10*time.Second))
		ar.Use(auth.JWTMiddleware(authSvc))
		api.MountAttempts(ar, orch)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweep(ctx, orch, cfg.Session.SweepInterval, cfg.Session.IdleTTL)

	go func() {
		lg.Info("listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("mode", string(cfg.Mode)),
			zap.String("upstream", cfg.Upstream.BaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down", zap.Int("open_sessions", orch.Sessions.Len()))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("shutdown", zap.Error(err))
	}
}

// sweep drops idle sessions until ctx ends.
func sweep(ctx context.Context, o *attempt.Orchestrator, every, ttl time.Duration) {
	if every <= 0 || ttl <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			o.Sweep(ttl)
		}
	}
}
