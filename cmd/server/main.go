// Server runs the voicetrust HTTP API, the gRPC health endpoint and the ticket janitor.
package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"voicetrust/backend/internal/approval"
	"voicetrust/backend/internal/attempt"
	attemptrepo "voicetrust/backend/internal/attempt/repository"
	"voicetrust/backend/internal/audit"
	auditrepo "voicetrust/backend/internal/audit/repository"
	"voicetrust/backend/internal/challenge"
	challengerepo "voicetrust/backend/internal/challenge/repository"
	"voicetrust/backend/internal/config"
	"voicetrust/backend/internal/confirmation"
	"voicetrust/backend/internal/db"
	"voicetrust/backend/internal/escalation"
	"voicetrust/backend/internal/health"
	"voicetrust/backend/internal/identity"
	identityrepo "voicetrust/backend/internal/identity/repository"
	"voicetrust/backend/internal/localization"
	"voicetrust/backend/internal/metrics"
	"voicetrust/backend/internal/notification"
	"voicetrust/backend/internal/notification/producer"
	"voicetrust/backend/internal/platform/logging"
	"voicetrust/backend/internal/policy/engine"
	policyrepo "voicetrust/backend/internal/policy/repository"
	"voicetrust/backend/internal/ratelimit"
	"voicetrust/backend/internal/risk"
	riskrepo "voicetrust/backend/internal/risk/repository"
	"voicetrust/backend/internal/security"
	"voicetrust/backend/internal/server"
	"voicetrust/backend/internal/server/httpapi"
	"voicetrust/backend/internal/telemetry"
	telemetryotel "voicetrust/backend/internal/telemetry/otel"
	"voicetrust/backend/internal/ticket"
	ticketrepo "voicetrust/backend/internal/ticket/repository"
	validatorrepo "voicetrust/backend/internal/validator/repository"
)

const serviceName = "voicetrust-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, cfg.Env, cfg.OTLPInsecure)
	if err != nil {
		return err
	}
	providers.SetGlobal()
	emitter := telemetryotel.NewEventEmitter(providers.LoggerProvider)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	msgs, err := localization.NewEngine(localization.DefaultCatalog(), cfg.DefaultLanguage, cfg.DefaultPersona)
	if err != nil {
		return err
	}

	identities := identity.NewDirectory(identityrepo.NewPostgresRepository(sqlDB))
	bank := challenge.NewBank(challengerepo.NewPostgresRepository(sqlDB), security.NewHasher(cfg.BcryptCost), msgs, nil)
	policy := engine.NewOPAEvaluator(policyrepo.NewPostgresRepository(sqlDB), logger)
	attempts := attempt.NewLog(attemptrepo.NewPostgresRepository(sqlDB), logger)
	riskRecorder := risk.NewRecorder(riskrepo.NewPostgresRepository(sqlDB), logger)
	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(sqlDB), httpapi.ClientIP, logger)
	tickets := ticketrepo.NewPostgresRepository(sqlDB)
	validators := validatorrepo.NewPostgresRepository(sqlDB)

	var pub notification.Publisher = notification.NewLogPublisher(logger)
	if brokers := cfg.KafkaBrokersList(); len(brokers) > 0 {
		kp, err := producer.NewKafkaProducer(brokers, cfg.NotifyKafkaTopic)
		if err != nil {
			return err
		}
		pub = kp
	}
	defer func() { _ = pub.Close() }()
	dispatcher := notification.NewDispatcher(pub, logger, m)

	var limiter httpapi.RateLimiter
	if cfg.RedisURL != "" {
		rl, err := ratelimit.NewFromURL(cfg.RedisURL, cfg.RateLimitMaxRequests, cfg.RateLimitWindowDuration(), logger)
		if err != nil {
			return err
		}
		defer func() { _ = rl.Close() }()
		if err := rl.Ping(ctx); err != nil {
			logger.Warn("redis unreachable at startup; rate limiting fails open", zap.Error(err))
		}
		limiter = rl
	}

	var tokens httpapi.TokenValidator
	if cfg.AuthEnabled() {
		key, err := security.ParsePublicKey(cfg.JWTPublicKey)
		if err != nil {
			return err
		}
		tokens = security.NewTokenProvider(nil, key, cfg.JWTIssuer, cfg.JWTAudience, cfg.ValidatorTokenTTL())
	} else {
		logger.Warn("JWT_PUBLIC_KEY not set; validation-approve accepts unauthenticated requests")
	}

	stateMachine := confirmation.NewStateMachine(confirmation.Deps{
		Identities: identities,
		Challenges: bank,
		Policy:     policy,
		Attempts:   attempts,
		Risk:       riskRecorder,
		Messages:   msgs,
		Emitter:    emitter,
		Metrics:    m,
		Log:        logger,
	})
	coordinator := escalation.NewCoordinator(escalation.Deps{
		Identities:      identities,
		Tickets:         tickets,
		Validators:      validators,
		Risk:            riskRecorder,
		Attempts:        attempts,
		Notifier:        dispatcher,
		Messages:        msgs,
		Emitter:         emitter,
		Metrics:         m,
		Log:             logger,
		FanoutLimit:     cfg.ValidatorFanoutLimit,
		DeepLinkBaseURL: cfg.DeepLinkBaseURL,
	})
	processor := approval.NewProcessor(approval.Deps{
		Tickets:    tickets,
		Validators: validators,
		Policy:     policy,
		Identities: identities,
		Attempts:   attempts,
		Risk:       riskRecorder,
		Audit:      auditLogger,
		Notifier:   dispatcher,
		Messages:   msgs,
		Emitter:    emitter,
		Metrics:    m,
		Log:        logger,
	})

	checker := &health.Checker{DB: sqlDB, Policy: policy}

	httpSrv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(httpapi.Deps{
			Confirmation: stateMachine,
			Escalation:   coordinator,
			Approval:     processor,
			Ready:        checker,
			Limiter:      limiter,
			Tokens:       tokens,
			Messages:     msgs,
			Metrics:      m,
			Log:          logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	grpcSrv, healthSrv := server.NewGRPCServer(logger, cfg.Env != "production")
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	go checker.Watch(ctx, healthSrv, 10*time.Second, logger)

	janitor := ticket.NewJanitor(ticket.JanitorDeps{
		Tickets:  tickets,
		Attempts: attempts,
		Audit:    auditLogger,
		Emitter:  emitter,
		Metrics:  m,
		Log:      logger,
	})
	go janitor.Run(ctx, cfg.JanitorIntervalDuration())

	errCh := make(chan error, 2)
	go func() {
		logger.Info("gRPC health server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("HTTP API listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("server failed, shutting down", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	grpcSrv.GracefulStop()
	dispatcher.Wait()
	select {
	case <-time.After(telemetry.ShutdownDrainDuration):
	case <-shutdownCtx.Done():
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Warn("otel shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
	return nil
}
