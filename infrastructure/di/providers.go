package di

import (
	"context"
	"fmt"
	"time"

	"citegraph/application/commands/bus"
	commandhandlers "citegraph/application/commands/handlers"
	"citegraph/application/ports"
	querybus "citegraph/application/queries/bus"
	queryhandlers "citegraph/application/queries/handlers"
	"citegraph/application/services"
	domainconfig "citegraph/domain/config"
	domainservices "citegraph/domain/services"
	"citegraph/infrastructure/cache"
	"citegraph/infrastructure/config"
	"citegraph/infrastructure/messaging"
	"citegraph/infrastructure/messaging/eventbridge"
	"citegraph/infrastructure/persistence/dynamodb"
	"citegraph/infrastructure/persistence/memory"
	"citegraph/infrastructure/persistence/resilience"
	"citegraph/infrastructure/persistence/sqlite"
	"citegraph/interfaces/http/rest"
	"citegraph/interfaces/http/rest/middleware"
	"citegraph/pkg/auth"
	pkgerrors "citegraph/pkg/errors"
	"citegraph/pkg/observability"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Server.LogLevel, err)
	}

	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

// ProvideDomainConfig derives the business rules from the configuration
func ProvideDomainConfig(cfg *config.Config) *domainconfig.DomainConfig {
	return cfg.Domain()
}

// ProvideCollector creates the Prometheus collector
func ProvideCollector() *observability.Collector {
	return observability.NewCollector("citegraph")
}

// ProvideMetrics exposes the collector to the application layer
func ProvideMetrics(collector *observability.Collector) ports.Metrics {
	return collector
}

// ProvideTracing installs the OpenTelemetry tracer provider
func ProvideTracing(ctx context.Context, cfg *config.Config) (*observability.TracerProvider, func(), error) {
	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:  "citegraph",
		Environment:  cfg.Server.Environment,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SampleRatio:  cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tp.Shutdown(ctx)
	}
	return tp, cleanup, nil
}

// ProvidePaperCache creates the paper read cache, or nil when disabled
func ProvidePaperCache(cfg *config.Config) *cache.InMemoryCache {
	if cfg.Cache.PaperTTLSeconds <= 0 {
		return nil
	}
	return cache.NewInMemoryCache(time.Minute)
}

// ProvideStore opens the configured backend and wraps it with the circuit
// breaker and the paper cache
func ProvideStore(
	ctx context.Context,
	cfg *config.Config,
	paperCache *cache.InMemoryCache,
	collector *observability.Collector,
	logger *zap.Logger,
) (ports.Store, func(), error) {
	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	store := backend
	if cfg.Store.Breaker {
		store = resilience.NewBreakerStore(store, resilience.DefaultBreakerConfig("store-"+cfg.Store.Type), logger, collector.ObserveBreaker)
	}
	if paperCache != nil {
		store = cache.NewCachedStore(store, paperCache, cfg.Cache.PaperTTLSeconds, logger)
	}

	cleanup := func() {
		if paperCache != nil {
			paperCache.Close()
		}
		if err := backend.Close(); err != nil {
			logger.Warn("Failed to close store", zap.Error(err))
		}
	}
	return store, cleanup, nil
}

func openBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.Store, error) {
	switch cfg.Store.Type {
	case config.StoreMemory:
		if cfg.Store.FixturePath == "" {
			return memory.NewStore(), nil
		}
		fixture, err := memory.LoadFixture(cfg.Store.FixturePath)
		if err != nil {
			return nil, err
		}
		logger.Info("Loaded fixture",
			zap.String("path", cfg.Store.FixturePath),
			zap.Int("papers", len(fixture.Papers)),
			zap.Int("citations", len(fixture.Citations)),
		)
		return memory.NewStoreFromFixture(fixture)

	case config.StoreSQLite:
		return sqlite.Open(ctx, cfg.Store.SQLitePath, logger)

	case config.StoreDynamoDB:
		client, err := dynamodb.NewClient(ctx, dynamodb.ClientOptions{
			Region:            cfg.Store.DynamoDB.Region,
			Endpoint:          cfg.Store.DynamoDB.Endpoint,
			StaticCredentials: cfg.Store.DynamoDB.Endpoint != "",
		})
		if err != nil {
			return nil, err
		}
		store := dynamodb.NewStore(client, cfg.Store.DynamoDB.Table, logger)
		if cfg.Store.DynamoDB.CreateTable {
			if err := store.CreateTable(ctx); err != nil {
				return nil, err
			}
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Store.Type)
	}
}

// ProvideEventPublisher publishes to EventBridge when a bus is configured
// and logs events otherwise
func ProvideEventPublisher(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.EventPublisher, error) {
	if cfg.Events.BusName == "" {
		return messaging.NewLogPublisher(logger), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Store.DynamoDB.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return eventbridge.NewPublisher(awseventbridge.NewFromConfig(awsCfg), cfg.Events.BusName, cfg.Events.Source, logger), nil
}

// ProvideVisibilityPolicy creates the shared visibility policy
func ProvideVisibilityPolicy(cfg *config.Config) *domainservices.VisibilityPolicy {
	return domainservices.NewVisibilityPolicy(cfg.Visibility.HideThreshold)
}

// ProvideScoreAggregator creates the score aggregator
func ProvideScoreAggregator(store ports.Store) *services.ScoreAggregator {
	return services.NewScoreAggregator(store.Votes())
}

// ProvideVoteService creates the vote service
func ProvideVoteService(
	store ports.Store,
	scores *services.ScoreAggregator,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	logger *zap.Logger,
) *services.VoteService {
	return services.NewVoteService(store.Votes(), scores, publisher, metrics, logger)
}

// ProvidePaperService creates the paper service
func ProvidePaperService(
	store ports.Store,
	scores *services.ScoreAggregator,
	visibility *domainservices.VisibilityPolicy,
	publisher ports.EventPublisher,
	domainCfg *domainconfig.DomainConfig,
	metrics ports.Metrics,
	logger *zap.Logger,
) *services.PaperService {
	return services.NewPaperService(store, scores, visibility, publisher, domainCfg, metrics, logger)
}

// ProvideGraphExpander creates the graph expander
func ProvideGraphExpander(
	store ports.Store,
	scores *services.ScoreAggregator,
	visibility *domainservices.VisibilityPolicy,
	domainCfg *domainconfig.DomainConfig,
	metrics ports.Metrics,
	logger *zap.Logger,
) *services.GraphExpander {
	return services.NewGraphExpander(store.Papers(), store.Citations(), scores, visibility, domainCfg, metrics, logger)
}

// ProvideCommandBus creates the command bus with all handlers registered
func ProvideCommandBus(
	logger *zap.Logger,
	collector *observability.Collector,
	votes *services.VoteService,
	papers *services.PaperService,
) (*bus.CommandBus, error) {
	b := bus.NewCommandBus(
		bus.LoggingMiddleware(logger.Sugar()),
		bus.MetricsMiddleware(collector),
	)
	if err := commandhandlers.Register(b, votes, papers); err != nil {
		return nil, fmt.Errorf("failed to register command handlers: %w", err)
	}
	return b, nil
}

// ProvideQueryBus creates the query bus with all handlers registered
func ProvideQueryBus(
	collector *observability.Collector,
	papers *services.PaperService,
	expander *services.GraphExpander,
) (*querybus.QueryBus, error) {
	b := querybus.NewQueryBus(collector)
	if err := queryhandlers.Register(b, papers, expander); err != nil {
		return nil, fmt.Errorf("failed to register query handlers: %w", err)
	}
	return b, nil
}

// ProvideVoteRateLimiter creates the per-user vote limiter, or nil when
// rate limiting is disabled. The DynamoDB-backed limiter is used when
// distributed limiting is requested on the dynamodb store.
func ProvideVoteRateLimiter(ctx context.Context, cfg *config.Config, logger *zap.Logger) (middleware.VoteLimiter, func(), error) {
	if cfg.RateLimit.VotesPerMinute <= 0 {
		return nil, func() {}, nil
	}

	if cfg.RateLimit.Distributed && cfg.Store.Type == config.StoreDynamoDB {
		client, err := dynamodb.NewClient(ctx, dynamodb.ClientOptions{
			Region:            cfg.Store.DynamoDB.Region,
			Endpoint:          cfg.Store.DynamoDB.Endpoint,
			StaticCredentials: cfg.Store.DynamoDB.Endpoint != "",
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using distributed vote rate limiter",
			zap.String("table", cfg.Store.DynamoDB.Table),
			zap.Int("votes_per_minute", cfg.RateLimit.VotesPerMinute),
		)
		return auth.NewDistributedUserRateLimiter(client, cfg.Store.DynamoDB.Table, cfg.RateLimit.VotesPerMinute), func() {}, nil
	}
	if cfg.RateLimit.Distributed {
		logger.Warn("Distributed rate limiting requires the dynamodb store, using in-process limiter",
			zap.String("store", cfg.Store.Type))
	}

	limiter := auth.NewUserRateLimiter(cfg.RateLimit.VotesPerMinute)
	return limiter, limiter.Close, nil
}

// ProvideErrorHandler creates the HTTP error handler
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *pkgerrors.ErrorHandler {
	return pkgerrors.NewErrorHandler(logger, cfg.IsDevelopment())
}

// ProvideRouter creates the HTTP router
func ProvideRouter(
	cfg *config.Config,
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	store ports.Store,
	collector *observability.Collector,
	limiter middleware.VoteLimiter,
	errorHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *rest.Router {
	return rest.NewRouter(commandBus, queryBus, store, collector, limiter, errorHandler, rest.RouterOptions{
		EnableCORS:     cfg.Features.EnableCORS,
		AllowedOrigins: cfg.Features.AllowedOrigins,
		EnableMetrics:  cfg.Features.EnableMetrics,
	}, logger)
}
