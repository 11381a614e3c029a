package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"matchwell/internal/api"
	"matchwell/internal/config"
	"matchwell/internal/database"
	"matchwell/internal/events"
	"matchwell/internal/export"
	"matchwell/internal/logging"
	"matchwell/internal/metrics"
	"matchwell/internal/models"
	"matchwell/internal/notify"
	"matchwell/internal/repository"
	"matchwell/internal/service"
	"matchwell/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	if err := loadTherapists(cfg, &logger); err != nil {
		return err
	}

	db, err := initDatabase(cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	sessionRepo := initSessionRepository(cfg, redisClient, &logger)

	dispatcher := notify.NewDispatcher()
	dispatcher.Register(models.ChannelEmail, notify.NewEmailSender(cfg.Notify.SMTP))
	dispatcher.Register(models.ChannelSMS, notify.NewSMSSender(cfg.Notify.SMS))

	retryPolicy := worker.RetryPolicy{MaxRetries: 5, InitialDelay: 2 * time.Second, MaxDelay: time.Minute, BackoffFactor: 2}
	deliveryWorker := worker.NewDeliveryWorker(db, dispatcher, redisClient, retryPolicy, &logger)
	go deliveryWorker.Start(ctx)

	eventBus := events.NewEventBus()
	subscribeEvents(eventBus, &logger)

	matchService := service.NewMatchService(db, eventBus, &logger)
	intakeService := service.NewIntakeService(db, sessionRepo, matchService, eventBus, &logger)
	verifyService := service.NewVerificationService(db, sessionRepo, deliveryWorker, eventBus, cfg.Verify, &logger)
	bookingService := service.NewBookingService(db, eventBus, deliveryWorker, cfg.Intake.MaxBookingDays, &logger)
	leadService := service.NewLeadService(db, &logger)
	therapistService := service.NewTherapistService(db, &logger)
	statsService := service.NewStatsService(db, &logger)
	exportService := export.NewService(db, &logger)

	go runMatchSweeper(ctx, matchService, cfg.Matching, &logger)

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	startMetrics(ctx, cfg, &logger)

	httpServer := api.NewHTTPServer(cfg.Server, cfg.Admin, api.Services{
		Intake:     intakeService,
		Verify:     verifyService,
		Matches:    matchService,
		Bookings:   bookingService,
		Leads:      leadService,
		Therapists: therapistService,
		Stats:      statsService,
		Exporter:   exportService,
	}, &logger)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown error")
	}

	logger.Info().Msg("server stopped")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "server-main").Logger()

	return cfg, logger, closer, nil
}

// loadTherapists reads the roster file unless the config already carries one
// inline.
func loadTherapists(cfg *config.Config, logger *zerolog.Logger) error {
	if len(cfg.Therapists) > 0 {
		return nil
	}

	rosterPath := os.Getenv("THERAPISTS_PATH")
	if rosterPath == "" {
		rosterPath = "configs/therapists.yaml"
	}
	data, err := os.ReadFile(rosterPath)
	if err != nil {
		logger.Error().Err(err).Str("therapists_path", rosterPath).Msg("read therapists")
		return err
	}

	var roster struct {
		Therapists []models.Therapist `yaml:"therapists"`
	}
	if err := yaml.Unmarshal(data, &roster); err != nil {
		logger.Error().Err(err).Str("therapists_path", rosterPath).Msg("parse therapists")
		return err
	}
	if err := config.ValidateTherapists(roster.Therapists); err != nil {
		logger.Error().Err(err).Msg("therapists validation failed")
		return err
	}

	cfg.Therapists = roster.Therapists
	return nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("create database directory")
		return err
	}
	if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("create exports directory")
		return err
	}
	return nil
}

func initDatabase(cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	// The configured roster is the source of truth at startup.
	if err := db.SyncTherapists(context.Background(), cfg.Therapists); err != nil {
		logger.Error().Err(err).Msg("sync therapists")
	}
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, sessions fall back to memory")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}
	return redisClient
}

func initSessionRepository(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) *repository.FailoverSessionRepository {
	ttl := time.Duration(cfg.Intake.SessionTTL) * time.Second
	primary := repository.NewRedisSessionRepository(redisClient, ttl)
	fallback := repository.NewMemorySessionRepository(ttl)
	return repository.NewFailoverSessionRepository(primary, fallback, logger)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

// runMatchSweeper expires unanswered match proposals on a fixed interval.
func runMatchSweeper(ctx context.Context, matches *service.MatchService, cfg config.MatchingConfig, logger *zerolog.Logger) {
	ttl := time.Duration(cfg.ProposalTTL) * time.Second
	ticker := time.NewTicker(time.Duration(cfg.SweepInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := matches.ExpireStale(ctx, ttl); err != nil {
				logger.Error().Err(err).Msg("match proposal sweep failed")
			}
		}
	}
}

// subscribeEvents wires audit logging for the funnel-critical events.
func subscribeEvents(bus *events.EventBus, logger *zerolog.Logger) {
	logHandler := func(ev *events.Event) error {
		var payload map[string]interface{}
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}
		logger.Info().Str("event", ev.Type).Interface("payload", payload).Msg("domain event")
		return nil
	}

	bus.Subscribe(events.EventLeadCreated, logHandler)
	bus.Subscribe(events.EventLeadVerified, logHandler)
	bus.Subscribe(events.EventMatchProposed, logHandler)
	bus.Subscribe(events.EventMatchAccepted, logHandler)
	bus.Subscribe(events.EventMatchDeclined, logHandler)
	bus.Subscribe(events.EventBookingCreated, logHandler)
	bus.Subscribe(events.EventBookingConfirmed, logHandler)
	bus.Subscribe(events.EventBookingCancelled, logHandler)
	bus.Subscribe(events.EventBookingCompleted, logHandler)
}
