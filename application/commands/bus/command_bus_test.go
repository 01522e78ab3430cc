package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type pingCommand struct{ Name string }

func (c pingCommand) Validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

type recordingObserver struct {
	names []string
	errs  []error
}

func (o *recordingObserver) ObserveCommand(name string, _ time.Duration, err error) {
	o.names = append(o.names, name)
	o.errs = append(o.errs, err)
}

func TestCommandBus_Send(t *testing.T) {
	var order []string
	trace := func(tag string) Middleware {
		return func(next CommandHandler) CommandHandler {
			return CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
				order = append(order, tag)
				return next.Handle(ctx, cmd)
			})
		}
	}
	observer := &recordingObserver{}
	b := NewCommandBus(trace("outer"), trace("inner"), MetricsMiddleware(observer), LoggingMiddleware(zap.NewNop().Sugar()))

	require.NoError(t, b.Register(pingCommand{}, CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
		return "pong " + cmd.(pingCommand).Name, nil
	})))

	got, err := b.Send(context.Background(), pingCommand{Name: "a"})
	require.NoError(t, err)
	assert.Equal(t, "pong a", got)
	assert.Equal(t, []string{"outer", "inner"}, order)
	assert.Equal(t, []string{"pingCommand"}, observer.names)
}

func TestCommandBus_Errors(t *testing.T) {
	b := NewCommandBus()
	handler := CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
		return nil, nil
	})

	_, err := b.Send(context.Background(), pingCommand{Name: "x"})
	assert.ErrorIs(t, err, ErrHandlerNotFound)

	require.NoError(t, b.Register(pingCommand{}, handler))
	assert.Error(t, b.Register(pingCommand{}, handler))

	_, err = b.Send(context.Background(), pingCommand{})
	assert.EqualError(t, err, "name is required")
}
