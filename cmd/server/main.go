// Sitecraft - AI website generator UI server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/sitecraft/internal/api"
	"github.com/ashureev/sitecraft/internal/apiclient"
	"github.com/ashureev/sitecraft/internal/config"
	"github.com/ashureev/sitecraft/internal/form"
	"github.com/ashureev/sitecraft/internal/health"
	"github.com/ashureev/sitecraft/internal/history"
	"github.com/ashureev/sitecraft/internal/identity"
	"github.com/ashureev/sitecraft/internal/metrics"
	"github.com/ashureev/sitecraft/internal/middleware"
	"github.com/ashureev/sitecraft/internal/realtime"
	"github.com/ashureev/sitecraft/internal/session"
	"github.com/ashureev/sitecraft/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server", "port", cfg.Port, "api_url", cfg.APIURL, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	reg := metrics.NewRegistry()
	appMetrics := metrics.New(reg)
	var httpMetrics *metrics.HTTP
	if cfg.MetricsEnabled {
		httpMetrics = metrics.NewHTTP(reg)
	}

	client := apiclient.New(cfg.APIURL, apiclient.WithLogger(logger))

	checker := health.Checker(health.HTTPChecker{Client: client})
	if cfg.Health.GRPCAddr != "" {
		grpcChecker := health.NewGRPCChecker(cfg.Health.GRPCAddr, cfg.Health.GRPCService)
		defer func() {
			if closeErr := grpcChecker.Close(); closeErr != nil {
				slog.Warn("Failed to close gRPC health connection", "error", closeErr)
			}
		}()
		checker = health.Multi(checker, grpcChecker)
		slog.Info("gRPC health check enabled", "address", cfg.Health.GRPCAddr, "service", cfg.Health.GRPCService)
	}
	probe := health.NewProbe(checker,
		health.WithTimeout(cfg.Health.Timeout),
		health.WithLogger(logger),
		health.WithMetrics(appMetrics),
	)

	workspaces := session.NewRegistry(client,
		session.WithLogger(logger),
		session.WithMetrics(appMetrics),
		session.WithFormOptions(
			form.WithLogger(logger),
			form.WithMetrics(appMetrics),
			form.WithTimeout(cfg.Generate.Timeout),
		),
		session.WithHistoryOptions(
			history.WithLogger(logger),
			history.WithMetrics(appMetrics),
			history.WithPageSize(cfg.HistoryPageSize),
		),
	)
	conns := realtime.NewConnManager()
	limiter := middleware.NewRateLimiter(cfg.Generate.RatePerMinute, cfg.Generate.Burst, 2*cfg.SessionTTL)

	// Initialize handlers.
	baseHandler := api.NewHandler(workspaces, logger)
	workspaceHandler := api.NewWorkspaceHandler(baseHandler, middleware.RateLimit(limiter, middleware.ByUser))
	projectsHandler := api.NewProjectsHandler(baseHandler)
	previewHandler := api.NewPreviewHandler(baseHandler)
	healthHandler := api.NewHealthHandler(probe)
	wsHandler := realtime.NewWebSocketHandler(workspaces, conns, appMetrics, cfg.AllowedOrigins(), cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))

	// Public routes.
	r.Group(func(r chi.Router) {
		r.Use(httpMetrics.Middleware("health"))
		healthHandler.RegisterRoutes(r)
	})
	r.Handle("/metrics", metrics.Handler(reg))

	// Per-tab routes.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(cfg.IsDevelopment()))

		r.Group(func(r chi.Router) {
			r.Use(httpMetrics.Middleware("api"))
			workspaceHandler.RegisterRoutes(r)
			projectsHandler.RegisterRoutes(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(httpMetrics.Middleware("preview"))
			previewHandler.RegisterRoutes(r)
		})

		// WebSocket endpoint.
		r.Get("/ws/state", wsHandler.ServeHTTP)
	})

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Create server.
	// Generation can take minutes, so there is no write timeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Probe the backend once at startup; the result never blocks serving.
	go func() {
		st := probe.Check(ctx)
		slog.Info("Backend health", "status", st.Status, "detail", st.Detail)
	}()

	session.StartTTLWorker(ctx, workspaces, session.DefaultSweepInterval, cfg.SessionTTL, conns.CloseSession)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	slog.Info("Closing state feeds", "feeds", conns.Count(), "workspaces", workspaces.Len())
	conns.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
