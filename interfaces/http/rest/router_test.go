package rest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"citegraph/application/commands/bus"
	commandhandlers "citegraph/application/commands/handlers"
	querybus "citegraph/application/queries/bus"
	queryhandlers "citegraph/application/queries/handlers"
	"citegraph/application/services"
	domainservices "citegraph/domain/services"
	"citegraph/infrastructure/persistence/memory"
	"citegraph/interfaces/http/rest/middleware"
	"citegraph/pkg/auth"
	pkgerrors "citegraph/pkg/errors"
	"citegraph/pkg/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	handler    http.Handler
	visibility *domainservices.VisibilityPolicy
}

func newTestServer(t *testing.T, votesPerMinute int) *testServer {
	t.Helper()
	logger := zap.NewNop()
	store := memory.NewStore()
	collector := observability.NewCollector("citegraph_test")
	scores := services.NewScoreAggregator(store.Votes())
	visibility := domainservices.NewVisibilityPolicy(-0.5)
	papers := services.NewPaperService(store, scores, visibility, nil, nil, collector, logger)
	votes := services.NewVoteService(store.Votes(), scores, nil, collector, logger)
	expander := services.NewGraphExpander(store.Papers(), store.Citations(), scores, visibility, nil, collector, logger)

	cb := bus.NewCommandBus(bus.MetricsMiddleware(collector))
	require.NoError(t, commandhandlers.Register(cb, votes, papers))
	qb := querybus.NewQueryBus(collector)
	require.NoError(t, queryhandlers.Register(qb, papers, expander))

	var limiter middleware.VoteLimiter
	if votesPerMinute > 0 {
		userLimiter := auth.NewUserRateLimiter(votesPerMinute)
		t.Cleanup(userLimiter.Close)
		limiter = userLimiter
	}

	router := NewRouter(cb, qb, store, collector, limiter, pkgerrors.NewErrorHandler(logger, false),
		RouterOptions{EnableCORS: true, EnableMetrics: true}, logger)
	return &testServer{handler: router.Setup(), visibility: visibility}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func (s *testServer) addPaper(t *testing.T, title string, year int) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/papers", map[string]interface{}{
		"title":   title,
		"authors": []string{"A. Author"},
		"year":    year,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var p services.PaperView
	decode(t, rec, &p)
	return p.ID
}

func (s *testServer) addCitation(t *testing.T, citing, cited string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/citations", map[string]string{"citingId": citing, "citedId": cited})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		ID string `json:"id"`
	}
	decode(t, rec, &out)
	return out.ID
}

func TestRouter_VoteFlow(t *testing.T) {
	s := newTestServer(t, 0)
	paper := s.addPaper(t, "Attention", 2017)

	cast := func(user string, value int) *httptest.ResponseRecorder {
		return s.do(t, http.MethodPost, "/api/v1/votes", map[string]interface{}{
			"targetKind": "paper", "targetId": paper, "value": value,
		}, "X-User-ID", user)
	}

	require.Equal(t, http.StatusOK, cast("u1", 1).Code)
	require.Equal(t, http.StatusOK, cast("u2", 1).Code)
	rec := cast("u3", -1)
	require.Equal(t, http.StatusOK, rec.Code)

	var result services.VoteResult
	decode(t, rec, &result)
	assert.Equal(t, -1, result.UserVote)
	assert.Equal(t, 2, result.Counts.Up)
	assert.Equal(t, 1, result.Counts.Down)
	assert.Equal(t, 1, result.Counts.Score)

	// body user id wins over the header
	rec = s.do(t, http.MethodPost, "/api/v1/votes", map[string]interface{}{
		"targetKind": "paper", "targetId": paper, "value": 0, "userId": "u1",
	}, "X-User-ID", "someone-else")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &result)
	assert.Equal(t, 0, result.UserVote)
	assert.Equal(t, 1, result.Counts.Up)

	rec = s.do(t, http.MethodGet, "/api/v1/papers/"+paper+"?user_id=u3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view services.PaperView
	decode(t, rec, &view)
	require.NotNil(t, view.UserVote)
	assert.Equal(t, -1, *view.UserVote)
}

func TestRouter_VoteErrors(t *testing.T) {
	s := newTestServer(t, 0)
	paper := s.addPaper(t, "Attention", 2017)

	tests := []struct {
		name   string
		body   map[string]interface{}
		status int
		code   string
	}{
		{"bad value", map[string]interface{}{"targetKind": "paper", "targetId": paper, "value": 2}, http.StatusBadRequest, pkgerrors.CodeInvalidVoteValue},
		{"bad kind", map[string]interface{}{"targetKind": "author", "targetId": paper, "value": 1}, http.StatusBadRequest, pkgerrors.CodeInvalidTargetKind},
		{"unknown target", map[string]interface{}{"targetKind": "paper", "targetId": "missing", "value": 1}, http.StatusNotFound, pkgerrors.CodeTargetNotFound},
		{"missing value", map[string]interface{}{"targetKind": "paper", "targetId": paper}, http.StatusBadRequest, pkgerrors.CodeValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/v1/votes", tt.body, "X-User-ID", "u1")
			assert.Equal(t, tt.status, rec.Code)
			var body pkgerrors.ErrorResponse
			decode(t, rec, &body)
			assert.True(t, body.Error)
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

func TestRouter_VoteRateLimit(t *testing.T) {
	s := newTestServer(t, 2)
	paper := s.addPaper(t, "Attention", 2017)
	body := map[string]interface{}{"targetKind": "paper", "targetId": paper, "value": 1}

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/votes", body, "X-User-ID", "u1").Code)
	}
	rec := s.do(t, http.MethodPost, "/api/v1/votes", body, "X-User-ID", "u1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/votes", body, "X-User-ID", "u2").Code)
}

func TestRouter_HiddenPapers(t *testing.T) {
	s := newTestServer(t, 0)
	good := s.addPaper(t, "Good", 2020)
	bad := s.addPaper(t, "Bad", 2021)

	rec := s.do(t, http.MethodPost, "/api/v1/votes", map[string]interface{}{
		"targetKind": "paper", "targetId": bad, "value": -1,
	}, "X-User-ID", "u1")
	require.Equal(t, http.StatusOK, rec.Code)

	var listed struct {
		Papers []services.PaperView `json:"papers"`
	}
	decode(t, s.do(t, http.MethodGet, "/api/v1/papers", nil), &listed)
	require.Len(t, listed.Papers, 1)
	assert.Equal(t, good, listed.Papers[0].ID)

	decode(t, s.do(t, http.MethodGet, "/api/v1/papers?include_hidden=true", nil), &listed)
	assert.Len(t, listed.Papers, 2)

	decode(t, s.do(t, http.MethodGet, "/api/v1/moderation/flagged", nil), &listed)
	require.Len(t, listed.Papers, 1)
	assert.Equal(t, bad, listed.Papers[0].ID)
	assert.True(t, listed.Papers[0].Hidden)

	s.visibility.SetThreshold(-2)
	decode(t, s.do(t, http.MethodGet, "/api/v1/papers", nil), &listed)
	assert.Len(t, listed.Papers, 2)

	rec = s.do(t, http.MethodGet, "/api/v1/papers?include_hidden=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_GraphExpansion(t *testing.T) {
	s := newTestServer(t, 0)
	a := s.addPaper(t, "A", 2020)
	b := s.addPaper(t, "B", 2019)
	c := s.addPaper(t, "C", 2018)
	s.addCitation(t, a, b)
	s.addCitation(t, b, c)

	rec := s.do(t, http.MethodGet, "/api/v1/graph/"+a+"?depth=2&direction=outgoing", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var snap services.GraphSnapshot
	decode(t, rec, &snap)
	assert.Equal(t, a, snap.SeedID)
	assert.Len(t, snap.Nodes, 3)
	assert.Len(t, snap.Edges, 2)

	tests := []struct {
		name   string
		path   string
		status int
		code   string
	}{
		{"unknown seed", "/api/v1/graph/missing", http.StatusNotFound, pkgerrors.CodeNodeNotFound},
		{"depth too large", "/api/v1/graph/" + a + "?depth=99", http.StatusBadRequest, pkgerrors.CodeInvalidDepth},
		{"depth not a number", "/api/v1/graph/" + a + "?depth=deep", http.StatusBadRequest, pkgerrors.CodeInvalidDepth},
		{"bad direction", "/api/v1/graph/" + a + "?direction=up", http.StatusBadRequest, pkgerrors.CodeInvalidDirection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.status, rec.Code)
			var body pkgerrors.ErrorResponse
			decode(t, rec, &body)
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

func TestRouter_Citations(t *testing.T) {
	s := newTestServer(t, 0)
	a := s.addPaper(t, "A", 2020)
	b := s.addPaper(t, "B", 2019)
	s.addCitation(t, a, b)

	rec := s.do(t, http.MethodPost, "/api/v1/citations", map[string]string{"citingId": a, "citedId": b})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/citations", map[string]string{"citingId": a, "citedId": a})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/papers/"+b+"/related", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var related services.RelatedPapers
	decode(t, rec, &related)
	require.Len(t, related.CitedBy, 1)
	assert.Equal(t, a, related.CitedBy[0].ID)
}

func TestRouter_SearchAndProbes(t *testing.T) {
	s := newTestServer(t, 0)
	s.addPaper(t, "Graph Neural Networks", 2019)
	s.addPaper(t, "Attention", 2017)

	rec := s.do(t, http.MethodGet, "/api/v1/search?q=graph", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var found struct {
		Query  string               `json:"query"`
		Papers []services.PaperView `json:"papers"`
	}
	decode(t, rec, &found)
	assert.Equal(t, "graph", found.Query)
	require.Len(t, found.Papers, 1)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/ready", nil).Code)

	rec = s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "citegraph_test_"), "metrics are exported")

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/v1/nope", nil).Code)
}
