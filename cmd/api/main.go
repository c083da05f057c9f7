package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-finance/config"
	billingHandler "github.com/jwalitptl/clinic-finance/internal/handler/billing"
	"github.com/jwalitptl/clinic-finance/internal/handler/health"
	patientHandler "github.com/jwalitptl/clinic-finance/internal/handler/patient"
	paymentHandler "github.com/jwalitptl/clinic-finance/internal/handler/payment"
	planHandler "github.com/jwalitptl/clinic-finance/internal/handler/plan"
	templateHandler "github.com/jwalitptl/clinic-finance/internal/handler/template"
	"github.com/jwalitptl/clinic-finance/internal/middleware"
	"github.com/jwalitptl/clinic-finance/internal/repository/postgres"
	"github.com/jwalitptl/clinic-finance/internal/router"
	"github.com/jwalitptl/clinic-finance/internal/service/audit"
	billingService "github.com/jwalitptl/clinic-finance/internal/service/billing"
	patientService "github.com/jwalitptl/clinic-finance/internal/service/patient"
	paymentService "github.com/jwalitptl/clinic-finance/internal/service/payment"
	planService "github.com/jwalitptl/clinic-finance/internal/service/plan"
	templateService "github.com/jwalitptl/clinic-finance/internal/service/template"
	"github.com/jwalitptl/clinic-finance/pkg/auth"
	"github.com/jwalitptl/clinic-finance/pkg/invoice"
	"github.com/jwalitptl/clinic-finance/pkg/mailer"
	"github.com/jwalitptl/clinic-finance/pkg/metrics"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to config.yml")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := cfg.Logger()
	log.Logger = logger.ZL

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Repositories
	patientRepo := postgres.NewPatientRepository(db)
	templateRepo := postgres.NewTemplateRepository(db)
	planRepo := postgres.NewPlanRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	m := metrics.NewMetrics("clinic_finance", prometheus.DefaultRegisterer)
	auditor := audit.NewService(auditRepo, logger)

	// Services
	patientSvc := patientService.NewService(patientRepo, auditor)
	templateSvc := templateService.NewService(templateRepo, auditor)
	planSvc := planService.NewService(planRepo, templateRepo, patientRepo, auditor, m, logger)
	paymentSvc := paymentService.NewService(paymentRepo, patientRepo, auditor)
	billingSvc := billingService.NewService(cfg.BillingConfig(), billingService.Deps{
		Patients: patientRepo,
		Plans:    planRepo,
		Payments: paymentRepo,
		Outbox:   outboxRepo,
		Renderer: invoice.NewHTTPRenderer(cfg.Invoice.ToRendererConfig()),
		Mailer:   mailer.NewSMTPSender(cfg.Mail.ToMailerConfig()),
		Auditor:  auditor,
		Metrics:  m,
		Logger:   logger,
	})

	tokens := auth.NewTokenValidator(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience)

	r := router.NewRouter(
		middleware.NewAuthMiddleware(tokens),
		health.NewHandler(db),
		m,
		prometheus.DefaultGatherer,
		cfg.RouterConfig(),
		patientHandler.NewHandler(patientSvc),
		templateHandler.NewHandler(templateSvc),
		planHandler.NewHandler(planSvc),
		paymentHandler.NewHandler(paymentSvc),
		billingHandler.NewHandler(billingSvc),
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited")
}
