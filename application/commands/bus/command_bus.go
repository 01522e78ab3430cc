package bus

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"
)

// Command represents a command that changes state
type Command interface {
	Validate() error
}

// CommandHandler handles a specific command type
type CommandHandler interface {
	Handle(ctx context.Context, cmd Command) (interface{}, error)
}

// CommandBus dispatches commands to their handlers
type CommandBus struct {
	handlers map[reflect.Type]CommandHandler
	pipeline *Pipeline
	mu       sync.RWMutex
}

// NewCommandBus creates a new command bus. Every registered handler is
// wrapped with the given middleware, outermost first.
func NewCommandBus(middlewares ...Middleware) *CommandBus {
	return &CommandBus{
		handlers: make(map[reflect.Type]CommandHandler),
		pipeline: NewPipeline(middlewares...),
	}
}

// Register registers a handler for a command type
func (b *CommandBus) Register(cmdType Command, handler CommandHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := reflect.TypeOf(cmdType)
	if _, exists := b.handlers[t]; exists {
		return fmt.Errorf("handler already registered for command type %s", t.Name())
	}

	b.handlers[t] = b.pipeline.Execute(handler)
	return nil
}

// Send validates a command and dispatches it to its handler
func (b *CommandBus) Send(ctx context.Context, cmd Command) (interface{}, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	handler, exists := b.handlers[reflect.TypeOf(cmd)]
	b.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %T", ErrHandlerNotFound, cmd)
	}

	return handler.Handle(ctx, cmd)
}

// Middleware defines command middleware
type Middleware func(next CommandHandler) CommandHandler

// CommandHandlerFunc is an adapter to allow functions to be used as handlers
type CommandHandlerFunc func(ctx context.Context, cmd Command) (interface{}, error)

// Handle implements CommandHandler
func (f CommandHandlerFunc) Handle(ctx context.Context, cmd Command) (interface{}, error) {
	return f(ctx, cmd)
}

// LoggingMiddleware logs command execution
func LoggingMiddleware(logger Logger) Middleware {
	return func(next CommandHandler) CommandHandler {
		return CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
			cmdType := reflect.TypeOf(cmd).Name()
			logger.Debugw("Executing command", "type", cmdType)

			result, err := next.Handle(ctx, cmd)
			if err != nil {
				logger.Infow("Command failed", "type", cmdType, "error", err)
			} else {
				logger.Debugw("Command succeeded", "type", cmdType)
			}

			return result, err
		})
	}
}

// MetricsMiddleware reports the duration and outcome of every command
func MetricsMiddleware(observer Observer) Middleware {
	return func(next CommandHandler) CommandHandler {
		return CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
			start := time.Now()
			result, err := next.Handle(ctx, cmd)
			observer.ObserveCommand(reflect.TypeOf(cmd).Name(), time.Since(start), err)
			return result, err
		})
	}
}

// Logger is the structured logger the middleware writes to.
// *zap.SugaredLogger satisfies it.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
}

// Observer receives command measurements
type Observer interface {
	ObserveCommand(name string, duration time.Duration, err error)
}

// Pipeline chains multiple middleware together
type Pipeline struct {
	middlewares []Middleware
}

// NewPipeline creates a new middleware pipeline
func NewPipeline(middlewares ...Middleware) *Pipeline {
	return &Pipeline{
		middlewares: middlewares,
	}
}

// Execute wraps handler so the first middleware runs outermost
func (p *Pipeline) Execute(handler CommandHandler) CommandHandler {
	for i := len(p.middlewares) - 1; i >= 0; i-- {
		handler = p.middlewares[i](handler)
	}
	return handler
}

// Errors
var (
	ErrHandlerNotFound = errors.New("command handler not found")
	ErrUnexpectedType  = errors.New("unexpected command type")
)
