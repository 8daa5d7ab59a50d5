package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	_ "github.com/joho/godotenv/autoload"
	"github.com/riandyrn/otelchi"
	otelchimetric "github.com/riandyrn/otelchi/metric"
	"github.com/recgen/recgen/internal/config"
	"github.com/recgen/recgen/internal/logger"
	"github.com/recgen/recgen/internal/metrics"
	"github.com/recgen/recgen/internal/sentry"
	"github.com/recgen/recgen/internal/services/kitchen"
	"github.com/recgen/recgen/internal/session"
	"github.com/recgen/recgen/internal/telemetry"
	"github.com/recgen/recgen/internal/web"
	"go.opentelemetry.io/otel"
)

// busyMargin is added to the remote call timeout before a busy session is
// considered abandoned.
const busyMargin = 30 * time.Second

func main() {
	defer sentry.Recover()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize telemetry
	shutdownTelemetry, err := telemetry.InitTelemetry(ctx, cfg.ServiceName, cfg.ServiceVersion, cfg.Env, cfg.OtelExporterOTLPEndpoint, cfg.OTLPHeaders())
	if err != nil {
		slog.Warn("Failed to init telemetry", "error", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}

	// Initialize Sentry
	if err := sentry.Init(cfg.SentryDSN, cfg.Env, cfg.ServiceName, cfg.ServiceVersion); err != nil {
		slog.Warn("Failed to init Sentry", "error", err)
	}
	if cfg.SentryDSN != "" {
		defer sentry.Flush(2 * time.Second)
	}

	// Re-create business instruments on the provider installed above
	if err := metrics.Init(); err != nil {
		slog.Warn("Failed to init business metrics", "error", err)
	}

	appLogger := logger.New(cfg.Env)
	slog.SetDefault(appLogger)

	// Session store: Redis when configured, memory otherwise
	var store session.Store
	if cfg.RedisURL != "" {
		redisClient, err := session.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		store = session.NewRedisStore(redisClient, cfg.Component.SessionTTL)
	} else {
		slog.Info("REDIS_URL not set, keeping sessions in memory")
		store = session.NewMemoryStore(cfg.Component.SessionTTL)
	}

	kitchenClient := kitchen.NewClient(cfg.Component.DetectURL, cfg.Component.GenerateURL, cfg.Component.Timeout)
	component := session.NewComponent(store, kitchenClient, session.Flow(cfg.Component.Flow), appLogger,
		session.WithBusyTimeout(cfg.Component.Timeout+busyMargin),
	)
	webServer := web.NewServer(cfg, component, appLogger)

	// Router
	r := chi.NewRouter()

	r.Use(otelchi.Middleware(cfg.ServiceName,
		otelchi.WithChiRoutes(r),
		otelchi.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health"
		}),
	))

	// HTTP metrics
	metricCfg := otelchimetric.NewBaseConfig(cfg.ServiceName, otelchimetric.WithMeterProvider(otel.GetMeterProvider()))
	r.Use(otelchimetric.NewRequestDurationMillis(metricCfg))
	r.Use(otelchimetric.NewRequestInFlight(metricCfg))
	r.Use(otelchimetric.NewResponseSizeBytes(metricCfg))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
	}))

	webServer.Mount(r)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting server",
			"port", port,
			"flow", cfg.Component.Flow,
			"detect_url", cfg.Component.DetectURL,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Error("Telemetry shutdown failed", "error", err)
	}
}
