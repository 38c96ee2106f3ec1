// Package main is the entry point of the gamification API server.
//
// The API accepts login events and XP awards from the TutorLink platform,
// serves per-student gamification state, and exposes the leaderboard.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/tutorlink/tutorlink-gamification/config"
	"github.com/tutorlink/tutorlink-gamification/internal/application/command"
	"github.com/tutorlink/tutorlink-gamification/internal/application/eventhandler"
	"github.com/tutorlink/tutorlink-gamification/internal/application/query"
	"github.com/tutorlink/tutorlink-gamification/internal/infrastructure/external/email"
	"github.com/tutorlink/tutorlink-gamification/internal/infrastructure/messaging"
	"github.com/tutorlink/tutorlink-gamification/internal/infrastructure/persistence/postgres"
	"github.com/tutorlink/tutorlink-gamification/internal/infrastructure/persistence/redis"
	"github.com/tutorlink/tutorlink-gamification/internal/infrastructure/service"
	httpapi "github.com/tutorlink/tutorlink-gamification/internal/interface/http"
	"github.com/tutorlink/tutorlink-gamification/internal/interface/http/handlers"
	"github.com/tutorlink/tutorlink-gamification/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	apiLog := setupAPILogger(cfg)
	log.Info("starting gamification API",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()

	log.Info("running database migrations")
	if err := postgres.NewMigrator(dbConn).Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (leaderboard cache, optional)
	// ─────────────────────────────────────────────────────────────────────────
	var redisClient = newRedisClient(ctx, cfg, log)
	leaderboardCache := redis.NewLeaderboardCache(redisClient, cfg.Redis.CacheTTL)
	if redisClient != nil {
		defer redisClient.Close()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS AND NOTIFICATIONS
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	bus := messaging.NewInMemoryEventBus(busCfg)
	defer bus.Close()

	emailClient := newEmailClient(cfg, log)
	notifier := service.NewEmailNotifier(
		emailSender(emailClient),
		service.StaticRecipients(parseRecipients(os.Getenv("EMAIL_RECIPIENTS"))),
		cfg.Features,
		log,
	)

	progress := eventhandler.NewOnProgressHandler(notifier, log, eventhandler.DefaultProgressConfig())
	if err := progress.Subscribe(bus); err != nil {
		return fmt.Errorf("failed to subscribe notification handler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. REPOSITORIES, PORTS, AND HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	repo := postgres.NewGamificationRepository(dbConn)
	history := postgres.NewHistoryRepository(dbConn)
	cacheAdapter := service.NewLeaderboardCacheAdapter(leaderboardCache, cfg.Features)

	recordLogin := command.NewRecordLoginHandler(repo, history, bus, cacheAdapter, log)
	awardXP := command.NewAwardXPHandler(repo, history, bus, cacheAdapter, log)
	getGamification := query.NewGetGamificationHandler(repo, history)
	getLeaderboard := query.NewGetLeaderboardHandler(repo, cacheAdapter, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HEALTH CHECKS AND METRICS
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("postgres", handlers.NewPingCheck(dbConn))
	if redisClient != nil {
		health.AddCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	if emailClient != nil {
		health.AddCheck("email", handlers.NewEmailCheck(emailClient.IsHealthy))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	serverCfg := httpapi.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.EnableCORS = cfg.HTTP.EnableCORS
	serverCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverCfg.EnableMetrics = cfg.HTTP.EnableMetrics
	serverCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	serverCfg.APIKeyHeader = cfg.HTTP.APIKeyHeader
	serverCfg.APIKeys = cfg.HTTP.APIKeys

	server := httpapi.NewServer(serverCfg, httpapi.Dependencies{
		RecordLoginHandler:     recordLogin,
		AwardXPHandler:         awardXP,
		GetGamificationHandler: getGamification,
		GetLeaderboardHandler:  getLeaderboard,
		Logger:                 apiLog,
		HealthChecker:          health,
		MetricsRegistry:        registry,
	})

	errCh := server.StartAsync()
	log.Info("gamification API is running", "address", server.Address())

	// ─────────────────────────────────────────────────────────────────────────
	// 9. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	log.Info("shutdown completed")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRING HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// newRedisClient connects to Redis or returns nil when the cache is off.
func newRedisClient(ctx context.Context, cfg *config.Config, log *slog.Logger) *goredis.Client {
	if cfg.Redis.Disabled {
		log.Info("redis disabled, leaderboard reads go to storage")
		return nil
	}

	redisCfg := redis.DefaultConfig()
	redisCfg.Addr = cfg.Redis.Addr()
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB
	redisCfg.DialTimeout = cfg.Redis.DialTimeout
	redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
	redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

	client, err := redis.NewClient(ctx, redisCfg)
	if err != nil {
		log.Warn("redis unavailable, leaderboard reads go to storage", "error", err)
		return nil
	}

	log.Info("redis connection established")
	return client
}

// newEmailClient builds the provider client, or nil when email is off.
func newEmailClient(cfg *config.Config, log *slog.Logger) *email.Client {
	if !cfg.Email.Enabled() {
		log.Info("email disabled, notifications will be dropped")
		return nil
	}

	emailCfg := email.DefaultClientConfig(cfg.Email.APIKey)
	emailCfg.BaseURL = cfg.Email.BaseURL
	emailCfg.FromAddress = cfg.Email.FromAddress
	emailCfg.Timeout = cfg.Email.RequestTimeout
	emailCfg.Logger = log

	return email.NewClient(emailCfg)
}

// emailSender adapts a possibly nil client to the notifier port.
func emailSender(client *email.Client) service.EmailSender {
	if client == nil {
		return dropSender{}
	}
	return client
}

// dropSender silently discards messages when email is not configured.
type dropSender struct{}

func (dropSender) Send(context.Context, email.Message) error { return nil }

// parseRecipients reads "student=address" pairs separated by commas. The
// real recipient directory lives in the platform; this is the dev fallback.
func parseRecipients(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		kv := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(kv) == 2 && kv[0] != "" && kv[1] != "" {
			out[kv[0]] = kv[1]
		}
	}
	return out
}

// setupLogger configures the service-wide structured logger.
func setupLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}

// setupAPILogger configures the request logger used by the HTTP layer.
func setupAPILogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	return logger.New(opts).With(logger.Component("api"))
}
