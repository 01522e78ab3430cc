package rest

import (
	"net/http"

	"citegraph/application/commands/bus"
	querybus "citegraph/application/queries/bus"
	"citegraph/interfaces/http/rest/handlers"
	"citegraph/interfaces/http/rest/middleware"
	pkgerrors "citegraph/pkg/errors"
	"citegraph/pkg/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterOptions toggles optional router features
type RouterOptions struct {
	EnableCORS     bool
	AllowedOrigins []string
	EnableMetrics  bool
}

// Router creates and configures the HTTP router
type Router struct {
	commandBus   *bus.CommandBus
	queryBus     *querybus.QueryBus
	store        handlers.Pinger
	collector    *observability.Collector
	voteLimiter  middleware.VoteLimiter
	errorHandler *pkgerrors.ErrorHandler
	options      RouterOptions
	logger       *zap.Logger
}

// NewRouter creates a new router instance. collector and voteLimiter may
// be nil.
func NewRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	store handlers.Pinger,
	collector *observability.Collector,
	voteLimiter middleware.VoteLimiter,
	errorHandler *pkgerrors.ErrorHandler,
	options RouterOptions,
	logger *zap.Logger,
) *Router {
	return &Router{
		commandBus:   commandBus,
		queryBus:     queryBus,
		store:        store,
		collector:    collector,
		voteLimiter:  voteLimiter,
		errorHandler: errorHandler,
		options:      options,
		logger:       logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	var observer middleware.HTTPObserver
	if rt.collector != nil {
		observer = rt.collector
	}

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(rt.errorHandler.Middleware)
	router.Use(middleware.Logger(rt.logger, observer))

	if rt.options.EnableCORS {
		origins := rt.options.AllowedOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", "X-User-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	health := handlers.NewHealthHandler(rt.store, rt.logger)
	router.Get("/health", health.Health)
	router.Get("/ready", health.Ready)
	if rt.options.EnableMetrics && rt.collector != nil {
		router.Handle("/metrics", rt.collector.Handler())
	}

	votes := handlers.NewVoteHandler(rt.commandBus, rt.errorHandler, rt.logger)
	papers := handlers.NewPaperHandler(rt.commandBus, rt.queryBus, rt.errorHandler, rt.logger)
	graph := handlers.NewGraphHandler(rt.queryBus, rt.errorHandler, rt.logger)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity)

		r.Group(func(r chi.Router) {
			if rt.voteLimiter != nil {
				r.Use(middleware.RateLimit(rt.voteLimiter, rt.errorHandler, rt.logger))
			}
			r.Post("/votes", votes.CastVote)
		})

		r.Route("/papers", func(r chi.Router) {
			r.Get("/", papers.ListPapers)
			r.Post("/", papers.AddPaper)
			r.Get("/{paperID}", papers.GetPaper)
			r.Get("/{paperID}/related", papers.RelatedPapers)
		})

		r.Post("/citations", papers.AddCitation)
		r.Get("/search", papers.Search)
		r.Get("/graph/{seedID}", graph.Expand)
		r.Get("/moderation/flagged", papers.Flagged)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		rt.errorHandler.HandleStatus(w, r, http.StatusNotFound, "route not found")
	})

	return router
}
