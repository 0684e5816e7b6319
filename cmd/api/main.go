package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/roamline/api/internal/handlers"
	"github.com/roamline/api/internal/platform/config"
	pfirestore "github.com/roamline/api/internal/platform/firestore"
	"github.com/roamline/api/internal/platform/idempotency"
	"github.com/roamline/api/internal/platform/observability"
	"github.com/roamline/api/internal/repositories"
	firestoreRepo "github.com/roamline/api/internal/repositories/firestore"
	"github.com/roamline/api/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(cfg, startedAt)

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	healthRepo, err := newHealthRepository(firestoreClient)
	if err != nil {
		logger.Warn("health: dependency checks init failed", zap.Error(err))
	}

	packageRepo, err := firestoreRepo.NewPackageRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise package repository", zap.Error(err))
	}
	departureRepo, err := firestoreRepo.NewDepartureRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise departure repository", zap.Error(err))
	}

	var quoteRepo repositories.QuoteRepository
	if cfg.Features.EnableQuotePersistence {
		repo, repoErr := firestoreRepo.NewQuoteRepository(firestoreProvider)
		if repoErr != nil {
			logger.Fatal("failed to initialise quote repository", zap.Error(repoErr))
		}
		quoteRepo = repo
	}

	validator, err := services.NewCompositionValidator(services.CompositionValidatorDeps{
		Logger: zapEventLogger(logger.Named("validation")),
	})
	if err != nil {
		logger.Fatal("failed to initialise composition validator", zap.Error(err))
	}

	engine, err := services.NewPriceEngine(services.PriceEngineDeps{
		Now:    time.Now,
		Logger: zapEventLogger(logger.Named("pricing")),
	})
	if err != nil {
		logger.Fatal("failed to initialise price engine", zap.Error(err))
	}

	gate, err := services.NewAvailabilityGate(services.AvailabilityGateDeps{
		Logger: zapEventLogger(logger.Named("availability")),
	})
	if err != nil {
		logger.Fatal("failed to initialise availability gate", zap.Error(err))
	}

	quoteService, err := services.NewQuoteService(services.QuoteServiceDeps{
		Packages:   packageRepo,
		Departures: departureRepo,
		Quotes:     quoteRepo,
		Validator:  validator,
		Engine:     engine,
		Gate:       gate,
		Clock:      time.Now,
		Logger:     zapEventLogger(logger.Named("quotes")),
	})
	if err != nil {
		logger.Fatal("failed to initialise quote service", zap.Error(err))
	}

	pricingHandlers := handlers.NewPricingHandlers(quoteService,
		handlers.WithQuoteRateLimit(cfg.RateLimits.QuotePerMinute, time.Minute),
	)

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthRepository(healthRepo),
	)

	idempotencyStore := idempotency.NewFirestoreStore(firestoreClient)

	projectID := strings.TrimSpace(cfg.Firestore.ProjectID)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
		idempotency.Middleware(idempotencyStore,
			idempotency.WithOptionalKeys(),
			idempotency.WithMethods(http.MethodPost),
			idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
		),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithPackageRoutes(pricingHandlers.PackageRoutes),
		handlers.WithDepartureRoutes(pricingHandlers.DepartureRoutes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("roamline pricing api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildInfoFromEnv(cfg config.Config, started time.Time) handlers.BuildInfo {
	version := strings.TrimSpace(os.Getenv("API_BUILD_VERSION"))
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(os.Getenv("API_BUILD_COMMIT_SHA"))
	if commit == "" {
		commit = "unknown"
	}
	return handlers.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: cfg.Server.Environment,
		StartedAt:   started,
	}
}

func newHealthRepository(client *firestore.Client) (repositories.HealthRepository, error) {
	if client == nil {
		return nil, errors.New("health: firestore client is required")
	}
	checks := []repositories.DependencyCheck{
		{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				iter := client.Collections(ctx)
				_, err := iter.Next()
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			},
		},
	}
	return repositories.NewDependencyHealthRepository(checks)
}

func zapEventLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Debug("event", zFields...)
	}
}
