package di

import (
	"net/http"

	"citegraph/application/commands/bus"
	"citegraph/application/ports"
	querybus "citegraph/application/queries/bus"
	"citegraph/application/services"
	domainservices "citegraph/domain/services"
	"citegraph/infrastructure/config"
	"citegraph/interfaces/http/rest"
	"citegraph/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Tracing    *observability.TracerProvider
	Collector  *observability.Collector
	Store      ports.Store
	Publisher  ports.EventPublisher
	Visibility *domainservices.VisibilityPolicy
	Votes      *services.VoteService
	Papers     *services.PaperService
	Expander   *services.GraphExpander
	CommandBus *bus.CommandBus
	QueryBus   *querybus.QueryBus
	Router     *rest.Router
}

// Handler returns the configured HTTP handler
func (c *Container) Handler() http.Handler {
	return c.Router.Setup()
}

// WatchConfig hot-reloads the hide threshold when the configuration file
// changes. It returns nil when no file is configured.
func (c *Container) WatchConfig() (*config.ConfigWatcher, error) {
	if c.Config.ConfigFile == "" {
		return nil, nil
	}

	watcher, err := config.NewConfigWatcher(c.Config, c.Logger)
	if err != nil {
		return nil, err
	}
	watcher.OnChange(func(cfg *config.Config) {
		c.Visibility.SetThreshold(cfg.Visibility.HideThreshold)
	})
	return watcher, nil
}
