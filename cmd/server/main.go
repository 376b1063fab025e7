// server runs the alumni tracker JSON API and the gRPC health endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/health"

	accounthandler "alumni-tracker/internal/account/handler"
	accountrepo "alumni-tracker/internal/account/repository"
	accountservice "alumni-tracker/internal/account/service"
	activityhandler "alumni-tracker/internal/activity/handler"
	activityrepo "alumni-tracker/internal/activity/repository"
	activityservice "alumni-tracker/internal/activity/service"
	"alumni-tracker/internal/audit"
	audithandler "alumni-tracker/internal/audit/handler"
	auditrepo "alumni-tracker/internal/audit/repository"
	"alumni-tracker/internal/config"
	healthhandler "alumni-tracker/internal/health/handler"
	"alumni-tracker/internal/kv/backend"
	"alumni-tracker/internal/metrics"
	"alumni-tracker/internal/policy/engine"
	"alumni-tracker/internal/security"
	"alumni-tracker/internal/server"
	"alumni-tracker/internal/server/interceptors"
	"alumni-tracker/internal/session"
	sessionhandler "alumni-tracker/internal/session/handler"
	"alumni-tracker/internal/stats"
	statshandler "alumni-tracker/internal/stats/handler"
	surveyhandler "alumni-tracker/internal/survey/handler"
	surveyrepo "alumni-tracker/internal/survey/repository"
	surveyservice "alumni-tracker/internal/survey/service"
	"alumni-tracker/internal/telemetry"
	telemetryotel "alumni-tracker/internal/telemetry/otel"
	"alumni-tracker/internal/telemetry/producer"
)

const (
	serviceName     = "alumni-tracker"
	healthInterval  = 10 * time.Second
	shutdownTimeout = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	providers.SetGlobal()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(sctx); err != nil {
			logger.Warn("otel shutdown", "error", err)
		}
	}()

	store, err := backend.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer store.Close()
	logger.Info("store opened", "backend", cfg.StoreBackend)

	gate, err := engine.NewOPAGate(ctx, "", logger)
	if err != nil {
		return fmt.Errorf("policy: %w", err)
	}

	tokens, err := newTokenProvider(cfg, logger)
	if err != nil {
		return fmt.Errorf("tokens: %w", err)
	}

	kafkaProducer, err := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.EventsKafkaTopic)
	if err != nil {
		return fmt.Errorf("kafka: %w", err)
	}
	// A nil *KafkaProducer must not reach Fanout as a non-nil interface.
	var kafkaEmitter telemetry.EventEmitter
	if kafkaProducer != nil {
		kafkaEmitter = kafkaProducer
		defer func() {
			if err := kafkaProducer.Close(); err != nil {
				logger.Warn("kafka close", "error", err)
			}
		}()
		logger.Info("publishing events to kafka", "topic", cfg.EventsKafkaTopic)
	}
	events := telemetry.Fanout(kafkaEmitter, telemetryotel.NewEventEmitter(providers.LoggerProvider))

	m := metrics.New(prometheus.DefaultRegisterer)
	auditRepo := auditrepo.NewKVRepository(store)
	auditLogger := audit.NewLogger(auditRepo, interceptors.GetClientIP, logger)

	accountRepo := accountrepo.NewKVRepository(store)
	accounts := accountservice.NewAccountService(accountRepo, security.NewHasher(cfg.BcryptCost), gate,
		accountservice.WithAudit(auditLogger),
		accountservice.WithEvents(events),
		accountservice.WithMetrics(m),
		accountservice.WithLogger(logger),
	)
	activityRepo := activityrepo.NewKVRepository(store)
	activities := activityservice.NewEnrollmentService(activityRepo,
		activityservice.WithAudit(auditLogger),
		activityservice.WithEvents(events),
		activityservice.WithMetrics(m),
		activityservice.WithLogger(logger),
	)
	surveyRepo := surveyrepo.NewKVRepository(store)
	surveys := surveyservice.NewSurveyService(surveyRepo,
		surveyservice.WithAudit(auditLogger),
		surveyservice.WithEvents(events),
		surveyservice.WithMetrics(m),
		surveyservice.WithLogger(logger),
	)
	sessions := session.NewManager(accounts, accountRepo, tokens, auditLogger, events, logger)

	checker := healthhandler.NewChecker(store, gate, logger)
	router := server.NewRouter(server.RouterDeps{
		Resolver: sessions,
		Handlers: []server.Registrar{
			accounthandler.New(accounts, gate, logger, accounthandler.WithCoordinatorSignup(cfg.AllowCoordinatorSignup)),
			sessionhandler.New(sessions, logger),
			activityhandler.New(activities, gate, logger),
			surveyhandler.New(surveys, gate, logger),
			statshandler.New(stats.NewService(accountRepo, activityRepo, surveyRepo), gate, logger),
			audithandler.New(auditRepo, gate, logger),
		},
		Health:   checker,
		Gatherer: prometheus.DefaultGatherer,
		Logger:   logger,
	})
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	hs := health.NewServer()
	grpcSrv := server.NewGRPCServer(hs)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("grpc health server listening", "addr", cfg.GRPCAddr)
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		checker.Run(gctx, hs, healthInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpSrv.Shutdown(sctx)
		grpcSrv.GracefulStop()
		return err
	})
	err = g.Wait()
	// Let in-flight async event emits finish before the producer and providers close.
	time.Sleep(telemetry.ShutdownDrainDuration)
	return err
}

// newTokenProvider loads the configured signing key pair, or generates an ephemeral one
// outside production when none is configured.
func newTokenProvider(cfg *config.Config, logger *slog.Logger) (*security.TokenProvider, error) {
	if cfg.JWTPrivateKey == "" {
		if cfg.IsProduction() {
			return nil, errors.New("JWT_PRIVATE_KEY is required in production")
		}
		priv, pub, err := security.GenerateEphemeralKey()
		if err != nil {
			return nil, err
		}
		logger.Warn("no JWT key configured; using an ephemeral key, sessions will not survive a restart")
		return security.NewTokenProvider(priv, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL()), nil
	}
	priv, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	pub, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		return nil, fmt.Errorf("public key: %w", err)
	}
	return security.NewTokenProvider(priv, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL()), nil
}
