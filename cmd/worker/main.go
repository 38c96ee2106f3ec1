// Package main is the entry point of the gamification background worker.
//
// The worker runs the periodic jobs that the request path cannot afford:
// rebuilding the cached leaderboard page and sweeping for streaks that
// break at the next UTC midnight.
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
	goredis "github.com/redis/go-redis/v9"

	"github.com/tutorlink/tutorlink-gamification/config"
	"github.com/tutorlink/tutorlink-gamification/internal/infrastructure/external/email"
	"github.com/tutorlink/tutorlink-gamification/internal/infrastructure/messaging"
	"github.com/tutorlink/tutorlink-gamification/internal/infrastructure/persistence/postgres"
	"github.com/tutorlink/tutorlink-gamification/internal/infrastructure/persistence/redis"
	"github.com/tutorlink/tutorlink-gamification/internal/infrastructure/scheduler"
	"github.com/tutorlink/tutorlink-gamification/internal/infrastructure/scheduler/jobs"
	"github.com/tutorlink/tutorlink-gamification/internal/infrastructure/service"
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
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !cfg.Scheduler.Enabled {
		return fmt.Errorf("scheduler is disabled, nothing to run (set SCHEDULER_ENABLED=true)")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting gamification worker",
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
	// 4. REDIS (leaderboard cache)
	// ─────────────────────────────────────────────────────────────────────────
	// The rebuild job exists to warm this cache. Unlike the API, the worker
	// refuses to start without it rather than silently doing nothing.
	redisClient, err := newRedisClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
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

	notifier := service.NewEmailNotifier(
		emailSender(cfg, log),
		service.StaticRecipients(parseRecipients(os.Getenv("EMAIL_RECIPIENTS"))),
		cfg.Features,
		log,
	)

	repo := postgres.NewGamificationRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. SCHEDULER AND JOBS
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(log)

	rebuildJob := jobs.NewRebuildLeaderboardJob(repo, leaderboardCache, bus, log, jobs.RebuildLeaderboardConfig{
		TopN:    100,
		Timeout: cfg.Scheduler.JobTimeout,
	})
	if err := sched.Register(rebuildJob, scheduler.NewIntervalSchedule(cfg.Scheduler.RebuildLeaderboardInterval)); err != nil {
		return fmt.Errorf("failed to register %s: %w", rebuildJob.Name(), err)
	}

	reminderJob := jobs.NewStreaksAtRiskJob(repo, notifier, log, jobs.StreaksAtRiskConfig{
		MinStreak: cfg.Scheduler.StreakReminderMinStreak,
		Timeout:   cfg.Scheduler.JobTimeout,
	})
	reminderAt, err := reminderSchedule(cfg)
	if err != nil {
		return fmt.Errorf("invalid reminder schedule: %w", err)
	}
	if err := sched.Register(reminderJob, reminderAt); err != nil {
		return fmt.Errorf("failed to register %s: %w", reminderJob.Name(), err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	// Warm the cache immediately instead of waiting out the first interval.
	if _, err := sched.RunNow(ctx, rebuildJob.Name()); err != nil {
		log.Warn("initial leaderboard rebuild failed", "error", err)
	}

	log.Info("gamification worker is running",
		"rebuild_interval", cfg.Scheduler.RebuildLeaderboardInterval.String(),
		"reminder_at", reminderAt.String(),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())

	if err := sched.Stop(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}

	log.Info("shutdown completed")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRING HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// reminderSchedule picks the sweep schedule: a cron expression when one is
// configured, otherwise the daily hour/minute pair.
func reminderSchedule(cfg *config.Config) (scheduler.Schedule, error) {
	if expr := cfg.Scheduler.StreakReminderCron; expr != "" {
		return scheduler.NewCronSchedule(expr)
	}
	return scheduler.NewDailySchedule(cfg.Scheduler.StreakReminderHour, cfg.Scheduler.StreakReminderMinute), nil
}

func newRedisClient(ctx context.Context, cfg *config.Config) (*goredis.Client, error) {
	if cfg.Redis.Disabled {
		return nil, fmt.Errorf("redis is disabled but the worker needs it (unset REDIS_DISABLED)")
	}

	redisCfg := redis.DefaultConfig()
	redisCfg.Addr = cfg.Redis.Addr()
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB
	redisCfg.DialTimeout = cfg.Redis.DialTimeout
	redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
	redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

	return redis.NewClient(ctx, redisCfg)
}

// emailSender builds the provider client, or a drop sender when email is off.
func emailSender(cfg *config.Config, log *slog.Logger) service.EmailSender {
	if !cfg.Email.Enabled() {
		log.Info("email disabled, streak reminders will be dropped")
		return dropSender{}
	}

	emailCfg := email.DefaultClientConfig(cfg.Email.APIKey)
	emailCfg.BaseURL = cfg.Email.BaseURL
	emailCfg.FromAddress = cfg.Email.FromAddress
	emailCfg.Timeout = cfg.Email.RequestTimeout
	emailCfg.Logger = log

	return email.NewClient(emailCfg)
}

// dropSender silently discards messages when email is not configured.
type dropSender struct{}

func (dropSender) Send(context.Context, email.Message) error { return nil }

// parseRecipients reads "student=address" pairs separated by commas.
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

// setupLogger configures the worker-wide structured logger.
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
