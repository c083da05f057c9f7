package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-finance/config"
	"github.com/jwalitptl/clinic-finance/internal/handler/health"
	promhandler "github.com/jwalitptl/clinic-finance/internal/handler/prometheus"
	"github.com/jwalitptl/clinic-finance/internal/repository"
	"github.com/jwalitptl/clinic-finance/internal/repository/postgres"
	"github.com/jwalitptl/clinic-finance/internal/service/audit"
	"github.com/jwalitptl/clinic-finance/internal/service/billing"
	"github.com/jwalitptl/clinic-finance/pkg/logger"
	"github.com/jwalitptl/clinic-finance/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-finance/pkg/metrics"
	"github.com/jwalitptl/clinic-finance/pkg/worker"
)

func setupHealthCheck(port int, db health.Pinger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	health.NewHandler(db).RegisterRoutes(engine)
	engine.GET("/metrics", promhandler.Handler(prometheus.DefaultGatherer))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: engine,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("health check server failed")
		}
	}()
	return srv
}

// scheduleJobs registers the periodic maintenance jobs. Each job runs in
// singleton mode so a slow run is never overlapped by the next tick.
func scheduleJobs(
	ctx context.Context,
	cfg *config.Config,
	billingSvc *billing.Service,
	outboxRepo repository.OutboxRepository,
	cleanup *worker.AuditCleanupWorker,
	logger *logger.Logger,
) (*gocron.Scheduler, error) {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	if _, err := s.Every(cfg.Scheduler.BalanceRefreshMinutes).Minutes().Do(func() {
		if err := billingSvc.RefreshBalanceMetrics(ctx); err != nil {
			logger.Error(err, "balance metrics refresh failed")
		}
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule balance refresh: %w", err)
	}

	if _, err := s.Every(cfg.Scheduler.CleanupHours).Hours().Do(func() {
		cutoff := time.Now().Add(-cfg.Outbox.Retention)
		n, err := outboxRepo.DeleteProcessedBefore(ctx, cutoff)
		if err != nil {
			logger.Error(err, "outbox cleanup failed")
			return
		}
		logger.Info("outbox cleanup finished", "deleted", n)

		cleanup.Run(ctx)
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule cleanup: %w", err)
	}

	return s, nil
}

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to config.yml")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger := cfg.Logger()
	log.Logger = logger.ZL

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(cfg.Redis.ToBrokerConfig(), &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Redis broker")
	}
	defer broker.Close()

	m := metrics.NewMetrics("clinic_finance_worker", prometheus.DefaultRegisterer)

	outboxRepo := postgres.NewOutboxRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	processor, err := worker.NewOutboxProcessor(
		outboxRepo,
		broker,
		cfg.Outbox.ToWorkerConfig(),
		logger.WithFields(map[string]interface{}{"component": "outbox"}),
		m,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid outbox configuration")
	}

	// The worker only reports balances; it never renders or mails.
	billingSvc := billing.NewService(cfg.BillingConfig(), billing.Deps{
		Patients: postgres.NewPatientRepository(db),
		Plans:    postgres.NewPlanRepository(db),
		Payments: postgres.NewPaymentRepository(db),
		Outbox:   outboxRepo,
		Auditor:  audit.NewService(auditRepo, logger),
		Metrics:  m,
		Logger:   logger,
	})
	cleanup := worker.NewAuditCleanupWorker(auditRepo, cfg.Scheduler.AuditRetentionDays, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler, err := scheduleJobs(ctx, cfg, billingSvc, outboxRepo, cleanup, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to schedule jobs")
	}
	scheduler.StartAsync()
	defer scheduler.Stop()

	healthSrv := setupHealthCheck(cfg.Server.HealthPort, db)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutting down...")
		cancel()
	}()

	processor.Start(ctx)

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stop()
	_ = healthSrv.Shutdown(shutdownCtx)
}
