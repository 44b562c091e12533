package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"

	"wayfare/internal/api"
	"wayfare/internal/config"
	"wayfare/internal/database"
	"wayfare/internal/domain"
	"wayfare/internal/events"
	"wayfare/internal/export"
	"wayfare/internal/gateway"
	"wayfare/internal/google"
	"wayfare/internal/logging"
	"wayfare/internal/metrics"
	"wayfare/internal/models"
	"wayfare/internal/repository"
	"wayfare/internal/service"
	"wayfare/internal/worker"
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
		defer func() { _ = closer.Close() }()
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	if err := seedCatalog(db, cfg.Catalog.PackagesPath, &logger); err != nil {
		return err
	}

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}
	coord := buildCoordination(redisClient, &logger)

	bus := events.NewEventBus()
	gw := gateway.NewSimulator(cfg.Gateway, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	var syncWorker *worker.SyncWorker
	if sheetsService := initGoogleSheets(cfg, &logger); sheetsService != nil {
		syncWorker = worker.NewSyncWorker(db, sheetsService, redisClient, worker.RetryPolicy{Jitter: 500 * time.Millisecond}, logger)
		go syncWorker.Start(ctx)
	}

	feeds := service.NewNotificationService(db, bus, coord, cfg.Notifications.FeedCap, logger)
	wallets := service.NewWalletService(db, logger)
	bookings := service.NewBookingService(db, bus, syncWorkerOrNil(syncWorker), wallets, feeds, logger)
	payments := service.NewPaymentService(db, coord, gw, bus, syncWorkerOrNil(syncWorker), feeds, cfg.Gateway.Timeout(), logger)
	invoices := service.NewInvoiceService(db)
	identity := service.NewIdentityService(db, logger)
	exports := export.NewService(db, cfg.Exports.Path, logger)

	reconciler := worker.NewReconciler(db, cfg.Reconciler.PollInterval(), cfg.Reconciler.StaleAfter(), logger)
	go reconciler.Start(ctx)

	if cfg.Backup.Enabled {
		backup := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backup.Start(ctx)
	}

	httpServer := api.NewHTTPServer(cfg.API, api.Services{
		Identity:      identity,
		Bookings:      bookings,
		Payments:      payments,
		Invoices:      invoices,
		Notifications: feeds,
		Wallets:       wallets,
		Store:         db,
		Exports:       exports,
		Coordination:  coord,
	}, logger)

	startMetrics(ctx, cfg, &logger)

	return serveUntilSignal(ctx, httpServer, &logger)
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
	logger := logging.Component(baseLogger, "api-main")

	return cfg, logger, closer, nil
}

// seedCatalog loads the package catalog from YAML and upserts every entry.
// Existing bookings keep their snapshots, so reseeding is always safe.
func seedCatalog(db *database.DB, path string, logger *zerolog.Logger) error {
	if path == "" {
		path = "configs/packages.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error().Err(err).Str("packages_path", path).Msg("read packages")
		return err
	}

	var catalog struct {
		Packages []models.Package `yaml:"packages"`
	}
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		logger.Error().Err(err).Str("packages_path", path).Msg("parse packages")
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i := range catalog.Packages {
		if err := db.UpsertPackage(ctx, &catalog.Packages[i]); err != nil {
			return fmt.Errorf("seed package %s: %w", catalog.Packages[i].ID, err)
		}
	}

	logger.Info().Int("packages", len(catalog.Packages)).Msg("catalog seeded")
	return nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(context.Background(), redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// buildCoordination prefers redis-backed locks with in-memory failover;
// without redis the in-process implementation still serializes settlements.
func buildCoordination(redisClient *redis.Client, logger *zerolog.Logger) domain.CoordinationRepository {
	memory := repository.NewMemoryCoordinationRepository()
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverCoordinationRepository(
		repository.NewRedisCoordinationRepository(redisClient),
		memory,
		logger,
	)
}

func initGoogleSheets(cfg *config.Config, logger *zerolog.Logger) *google.SheetsService {
	if cfg.Google.GoogleCredentialsFile == "" || cfg.Google.BookingSpreadSheetID == "" {
		return nil
	}

	sheetsService, err := google.NewSheetsService(cfg.Google.GoogleCredentialsFile, cfg.Google.BookingSpreadSheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}

	logger.Info().Msg("google sheets connected")
	return sheetsService
}

// syncWorkerOrNil keeps the domain.SyncWorker interface value nil when no
// worker is configured, instead of a non-nil interface around a nil pointer.
func syncWorkerOrNil(w *worker.SyncWorker) domain.SyncWorker {
	if w == nil {
		return nil
	}
	return w
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func serveUntilSignal(ctx context.Context, httpServer *api.HTTPServer, logger *zerolog.Logger) error {
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
		logger.Error().Err(err).Msg("http server shutdown")
	}

	logger.Info().Msg("server stopped")
	return nil
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
