//go:build !wireinject
// +build !wireinject

// This file is maintained by hand in the shape wire would produce for the
// injector in wire.go. Keep the provider order in step with SuperSet when
// providers change, or regenerate it with `wire ./infrastructure/di`.

package di

import (
	"context"

	"citegraph/infrastructure/config"
)

// Injectors from wire.go:

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	domainConfig := ProvideDomainConfig(cfg)
	collector := ProvideCollector()
	metrics := ProvideMetrics(collector)
	tracerProvider, cleanup, err := ProvideTracing(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	inMemoryCache := ProvidePaperCache(cfg)
	store, cleanup2, err := ProvideStore(ctx, cfg, inMemoryCache, collector, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	eventPublisher, err := ProvideEventPublisher(ctx, cfg, logger)
	if err != nil {
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	visibilityPolicy := ProvideVisibilityPolicy(cfg)
	scoreAggregator := ProvideScoreAggregator(store)
	voteService := ProvideVoteService(store, scoreAggregator, eventPublisher, metrics, logger)
	paperService := ProvidePaperService(store, scoreAggregator, visibilityPolicy, eventPublisher, domainConfig, metrics, logger)
	graphExpander := ProvideGraphExpander(store, scoreAggregator, visibilityPolicy, domainConfig, metrics, logger)
	commandBus, err := ProvideCommandBus(logger, collector, voteService, paperService)
	if err != nil {
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	queryBus, err := ProvideQueryBus(collector, paperService, graphExpander)
	if err != nil {
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	voteLimiter, cleanup3, err := ProvideVoteRateLimiter(ctx, cfg, logger)
	if err != nil {
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	errorHandler := ProvideErrorHandler(cfg, logger)
	router := ProvideRouter(cfg, commandBus, queryBus, store, collector, voteLimiter, errorHandler, logger)
	container := &Container{
		Config:     cfg,
		Logger:     logger,
		Tracing:    tracerProvider,
		Collector:  collector,
		Store:      store,
		Publisher:  eventPublisher,
		Visibility: visibilityPolicy,
		Votes:      voteService,
		Papers:     paperService,
		Expander:   graphExpander,
		CommandBus: commandBus,
		QueryBus:   queryBus,
		Router:     router,
	}
	return container, func() {
		cleanup3()
		cleanup2()
		cleanup()
	}, nil
}
