package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/wildvoice/wildrag/internal/entity"
	"github.com/wildvoice/wildrag/internal/log"
	"github.com/wildvoice/wildrag/internal/query"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubService struct {
	result *query.Result
	err    error

	entityName string
	queryText  string
}

func (s *stubService) Process(_ context.Context, entityName, queryText string) (*query.Result, error) {
	s.entityName = entityName
	s.queryText = queryText
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubPinger struct{ err error }

func (p *stubPinger) Ping(context.Context) error { return p.err }

func newTestServer(svc QueryService, pinger Pinger) *Server {
	return NewServer("127.0.0.1:0", entity.Default(), svc, pinger, log.NewNop())
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := doRequest(t, newTestServer(&stubService{}, nil), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"wildrag"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReady(t *testing.T) {
	t.Run("no backend", func(t *testing.T) {
		rec := doRequest(t, newTestServer(&stubService{}, nil), http.MethodGet, "/ready", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("backend reachable", func(t *testing.T) {
		rec := doRequest(t, newTestServer(&stubService{}, &stubPinger{}), http.MethodGet, "/ready", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("backend down", func(t *testing.T) {
		pinger := &stubPinger{err: errors.New("connection refused")}
		rec := doRequest(t, newTestServer(&stubService{}, pinger), http.MethodGet, "/ready", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestHello(t *testing.T) {
	rec := doRequest(t, newTestServer(&stubService{}, nil), http.MethodGet, "/hello", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Hello from wildrag!")
}

func TestEntities(t *testing.T) {
	rec := doRequest(t, newTestServer(&stubService{}, nil), http.MethodGet, "/entities", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Entities []entityInfo `json:"entities"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Entities, 2)
	assert.Equal(t, "seagrass", resp.Entities[0].Name)
	assert.Equal(t, "seal", resp.Entities[1].Name)
	assert.NotEmpty(t, resp.Entities[1].Description)
}

func TestQuery(t *testing.T) {
	svc := &stubService{result: &query.Result{
		Answer: "Seals rest on sandbanks.",
		Sources: []query.Source{
			{FileName: "report.txt", Score: 0.92, Text: "Seals rest on sandbanks at low tide."},
		},
		Query:  "Where do you rest?",
		Entity: "seal",
	}}

	rec := doRequest(t, newTestServer(svc, nil), http.MethodPost, "/query",
		`{"entity": "seal", "query": "Where do you rest?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "seal", svc.entityName)
	assert.Equal(t, "Where do you rest?", svc.queryText)

	var result query.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "Seals rest on sandbanks.", result.Answer)
	assert.Equal(t, "Where do you rest?", result.Query)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "report.txt", result.Sources[0].FileName)
}

func TestQueryValidation(t *testing.T) {
	s := newTestServer(&stubService{}, nil)

	rec := doRequest(t, s, http.MethodPost, "/query", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/query", `{"query": "hi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "entity is required")

	rec = doRequest(t, s, http.MethodPost, "/query", `{"entity": "seal"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "query is required")
}

func TestQueryUnknownEntity(t *testing.T) {
	svc := &stubService{err: &entity.UnknownEntityError{
		Name:      "walrus",
		Available: []string{"seagrass", "seal"},
	}}

	rec := doRequest(t, newTestServer(svc, nil), http.MethodPost, "/query",
		`{"entity": "walrus", "query": "hi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "walrus")
	assert.Contains(t, rec.Body.String(), "seal")
}

func TestQueryInternalError(t *testing.T) {
	svc := &stubService{err: errors.New("pgvector exploded: password=hunter2")}

	rec := doRequest(t, newTestServer(svc, nil), http.MethodPost, "/query",
		`{"entity": "seal", "query": "hi"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	// Internal details stay out of the response body.
	assert.NotContains(t, rec.Body.String(), "hunter2")
}

func TestMethodNotAllowed(t *testing.T) {
	rec := doRequest(t, newTestServer(&stubService{}, nil), http.MethodGet, "/query", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mark("outer"), mark("middle"), mark("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "middle", "inner", "handler"}, order)
}

func TestRecoveryMiddleware(t *testing.T) {
	s := newTestServer(&stubService{}, nil)

	panicking := chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), s.recoveryMiddleware)

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	rec := httptest.NewRecorder()
	panicking.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequestIDPropagation(t *testing.T) {
	s := newTestServer(&stubService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "fixed-id", rec.Header().Get("X-Request-ID"))
}

func TestRunGracefulShutdown(t *testing.T) {
	s := newTestServer(&stubService{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	require.NoError(t, <-done)
}
