package bus

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"
)

// Query represents a read-only query
type Query interface {
	Validate() error
}

// QueryHandler handles a specific query type
type QueryHandler interface {
	Handle(ctx context.Context, query Query) (interface{}, error)
}

// QueryBus dispatches queries to their handlers
type QueryBus struct {
	handlers map[reflect.Type]QueryHandler
	observer Observer
	mu       sync.RWMutex
}

// NewQueryBus creates a new query bus. A nil observer disables metrics.
func NewQueryBus(observer Observer) *QueryBus {
	return &QueryBus{
		handlers: make(map[reflect.Type]QueryHandler),
		observer: observer,
	}
}

// Register registers a handler for a query type
func (b *QueryBus) Register(queryType Query, handler QueryHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := reflect.TypeOf(queryType)
	if _, exists := b.handlers[t]; exists {
		return fmt.Errorf("handler already registered for query type %s", t.Name())
	}

	if b.observer != nil {
		handler = NewMetricsMiddleware(b.observer).Wrap(handler)
	}
	b.handlers[t] = handler
	return nil
}

// Ask dispatches a query to its handler and returns the result
func (b *QueryBus) Ask(ctx context.Context, query Query) (interface{}, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	handler, exists := b.handlers[reflect.TypeOf(query)]
	b.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %T", ErrHandlerNotFound, query)
	}

	return handler.Handle(ctx, query)
}

// QueryHandlerFunc is an adapter to allow functions to be used as handlers
type QueryHandlerFunc func(ctx context.Context, query Query) (interface{}, error)

// Handle implements QueryHandler
func (f QueryHandlerFunc) Handle(ctx context.Context, query Query) (interface{}, error) {
	return f(ctx, query)
}

// MetricsMiddleware adds metrics to query handlers
type MetricsMiddleware struct {
	observer Observer
}

// NewMetricsMiddleware creates a new metrics middleware
func NewMetricsMiddleware(observer Observer) *MetricsMiddleware {
	return &MetricsMiddleware{
		observer: observer,
	}
}

// Wrap wraps a query handler with metrics
func (m *MetricsMiddleware) Wrap(next QueryHandler) QueryHandler {
	return QueryHandlerFunc(func(ctx context.Context, query Query) (interface{}, error) {
		start := time.Now()
		result, err := next.Handle(ctx, query)
		m.observer.ObserveQuery(reflect.TypeOf(query).Name(), time.Since(start), err)
		return result, err
	})
}

// Observer receives query measurements
type Observer interface {
	ObserveQuery(name string, duration time.Duration, err error)
}

// Errors
var (
	ErrHandlerNotFound = errors.New("query handler not found")
	ErrUnexpectedType  = errors.New("unexpected query type")
)
