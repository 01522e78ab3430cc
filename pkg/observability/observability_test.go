package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	pkgerrors "citegraph/pkg/errors"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Votes(t *testing.T) {
	c := NewCollector("test")

	c.RecordVote("cast", nil)
	c.RecordVote("cast", nil)
	c.RecordVote("", pkgerrors.ErrTargetNotFound("paper", "p"))
	c.RecordVote("", errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Votes.WithLabelValues("cast")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Votes.WithLabelValues(pkgerrors.CodeTargetNotFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Votes.WithLabelValues("error")))
}

func TestCollector_OperationsAndBreaker(t *testing.T) {
	c := NewCollector("test")

	c.ObserveQuery("ExpandGraphQuery", time.Millisecond, nil)
	c.ObserveQuery("ExpandGraphQuery", time.Millisecond, pkgerrors.ErrNodeNotFound("x"))
	c.ObserveCommand("CastVoteCommand", time.Millisecond, nil)
	c.RecordPublishFailure("vote.cast")
	c.ObserveBreaker("store", gobreaker.StateClosed, gobreaker.StateOpen)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Operations.WithLabelValues("query", "ExpandGraphQuery", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Operations.WithLabelValues("query", "ExpandGraphQuery", pkgerrors.CodeNodeNotFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Operations.WithLabelValues("command", "CastVoteCommand", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.PublishFailures.WithLabelValues("vote.cast")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.BreakerState.WithLabelValues("store")))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("citegraph")
	c.ObserveHTTP(http.MethodGet, "/api/v1/papers", 200, 5*time.Millisecond)
	c.RecordExpansion(3, 2, time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `citegraph_http_requests_total{method="GET",route="/api/v1/papers",status="200"} 1`)
	assert.Contains(t, rec.Body.String(), "citegraph_graph_expansion_nodes_count 1")
}

func TestInitTracing_DisabledWithoutEndpoint(t *testing.T) {
	tp, err := InitTracing(context.Background(), TracingConfig{ServiceName: "citegraph"})
	require.NoError(t, err)
	assert.False(t, tp.Enabled())
	assert.NoError(t, tp.Shutdown(context.Background()))
}
