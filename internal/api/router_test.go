package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Julianb233/sierra-fred-carey-sub003/internal/orm/query"
	"github.com/Julianb233/sierra-fred-carey-sub003/internal/sqlbridge"
	"github.com/Julianb233/sierra-fred-carey-sub003/internal/web/auth"
	"github.com/Julianb233/sierra-fred-carey-sub003/internal/web/ratelimit"
	"github.com/Julianb233/sierra-fred-carey-sub003/internal/web/response"
)

const testSecret = "test-secret"

type testServer struct {
	handler http.Handler
	db      *sql.DB
	service string
	anon    string
}

func newTestServer(t *testing.T, strict bool, limiter ratelimit.RateLimiter) *testServer {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE users (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		score REAL
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO users (id, name) VALUES (1, 'Ann'), (2, 'Bob')`)
	require.NoError(t, err)

	authService := auth.NewAuthService(testSecret, time.Hour)
	service, err := authService.GenerateToken("svc", auth.RoleService)
	require.NoError(t, err)
	anon, err := authService.GenerateToken("visitor", auth.RoleAnon)
	require.NoError(t, err)

	client := sqlbridge.NewClient(db, query.SQLite, sqlbridge.Config{Strict: strict})
	handler := NewRouter(Options{
		Client:         client,
		DB:             db,
		Auth:           authService,
		Limiter:        limiter,
		Prefix:         "/api",
		RequestTimeout: 5 * time.Second,
	})

	return &testServer{handler: handler, db: db, service: service, anon: anon}
}

func (s *testServer) post(t *testing.T, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func sqlBody(query string, params ...interface{}) string {
	b, _ := json.Marshal(SQLRequest{Query: query, Params: params})
	return string(b)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) response.ErrorResponse {
	t.Helper()
	var body response.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, false, nil)

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	s.db.Close()
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestExecSQL_Select(t *testing.T) {
	s := newTestServer(t, false, nil)

	rec := s.post(t, s.service, sqlBody("SELECT id, name AS label FROM users WHERE id = $1", 2))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.JSONEq(t, `{"data":[{"id":2,"label":"Bob"}],"warnings":[]}`, rec.Body.String())
}

func TestExecSQL_InsertDecodesNumbers(t *testing.T) {
	s := newTestServer(t, false, nil)

	rec := s.post(t, s.service, `{"query":"INSERT INTO users (id, name, score) VALUES ($1, $2, $3)","params":[3,"Cy",2.5]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body SQLResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.EqualValues(t, 3, body.Data[0]["id"])
	assert.EqualValues(t, 2.5, body.Data[0]["score"])
}

func TestExecSQL_ReportsWarnings(t *testing.T) {
	s := newTestServer(t, false, nil)

	rec := s.post(t, s.service, sqlBody("SELECT * FROM users WHERE id = $1 OR name = $2", 1, "Bob"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body SQLResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Warnings)
}

func TestExecSQL_StrictRejectsUnsupported(t *testing.T) {
	s := newTestServer(t, true, nil)

	rec := s.post(t, s.service, sqlBody("DROP TABLE users"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", decodeError(t, rec).Error)
}

func TestExecSQL_ConstraintErrors(t *testing.T) {
	s := newTestServer(t, false, nil)

	rec := s.post(t, s.service, sqlBody("INSERT INTO users (id, name) VALUES ($1, $2)", 1, "Dup"))
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = s.post(t, s.service, sqlBody("INSERT INTO users (id, name) VALUES ($1, $2)", 9, nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
}

func TestExecSQL_AnonMayOnlyRead(t *testing.T) {
	s := newTestServer(t, false, nil)

	rec := s.post(t, s.anon, sqlBody("SELECT * FROM users"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.post(t, s.anon, sqlBody("DELETE FROM users WHERE id = $1", 1))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&n))
	assert.Equal(t, 2, n)
}

func TestExecSQL_RequestErrors(t *testing.T) {
	s := newTestServer(t, false, nil)

	rec := s.post(t, "", sqlBody("SELECT * FROM users"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.post(t, s.service, `{"query":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.post(t, s.service, `{"query":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "query is required", decodeError(t, rec).Message)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sql", nil)
	req.Header.Set("Authorization", "Bearer "+s.service)
	get := httptest.NewRecorder()
	s.handler.ServeHTTP(get, req)
	assert.Equal(t, http.StatusMethodNotAllowed, get.Code)
}

func TestExecSQL_RateLimited(t *testing.T) {
	limiter := ratelimit.NewTokenBucketWithConfig(ratelimit.TokenBucketConfig{Capacity: 1, RefillRate: time.Hour})
	defer limiter.Close()
	s := newTestServer(t, false, limiter)

	rec := s.post(t, s.service, sqlBody("SELECT * FROM users"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.post(t, s.service, sqlBody("SELECT * FROM users"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// other keys are limited separately
	rec = s.post(t, s.anon, sqlBody("SELECT * FROM users"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNormalizeParam(t *testing.T) {
	assert.Equal(t, int64(42), normalizeParam(json.Number("42")))
	assert.Equal(t, 1.5, normalizeParam(json.Number("1.5")))
	assert.Equal(t, "x", normalizeParam("x"))
	assert.Nil(t, normalizeParam(nil))
	assert.Equal(t, []interface{}{int64(1), "a"}, normalizeParam([]interface{}{json.Number("1"), "a"}))
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{&sqlbridge.UnsupportedError{Query: "DROP", Reason: "no"}, http.StatusBadRequest},
		{&sqlbridge.ExecError{Err: &query.BuildError{Err: query.ErrMissingFilter}}, http.StatusBadRequest},
		{&sqlbridge.ExecError{Err: fmt.Errorf("%w: x", query.ErrUniqueViolation)}, http.StatusConflict},
		{&sqlbridge.ExecError{Err: query.ErrCheckViolation}, http.StatusUnprocessableEntity},
		{&sqlbridge.ExecError{Err: context.DeadlineExceeded}, http.StatusGatewayTimeout},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := errorStatus(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}
