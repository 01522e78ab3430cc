//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"citegraph/infrastructure/config"

	"github.com/google/wire"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideDomainConfig,
	ProvideCollector,
	ProvideMetrics,
	ProvideTracing,
	ProvidePaperCache,
	ProvideStore,
	ProvideEventPublisher,
	ProvideVisibilityPolicy,
	ProvideScoreAggregator,
	ProvideVoteService,
	ProvidePaperService,
	ProvideGraphExpander,
	ProvideCommandBus,
	ProvideQueryBus,
	ProvideVoteRateLimiter,
	ProvideErrorHandler,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}
