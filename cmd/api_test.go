package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/siahsang/conduit/internal/auth"
	"github.com/siahsang/conduit/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestApplication builds an application without a database connection. The
// covered paths (validation, authentication policies, rate limiting) all
// reject the request before any query runs.
func newTestApplication() *application {
	return &application{
		config: config.Config{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		auth:   auth.NewAuth("test-secret", time.Hour),
	}
}

func doJSONRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	r := httptest.NewRequest(method, path, reader)
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func errorPart(t *testing.T, body map[string]any) map[string]any {
	t.Helper()

	require.Equal(t, false, body["success"])
	errorBody, ok := body["error"].(map[string]any)
	require.True(t, ok, "response must carry an error object")
	return errorBody
}

func TestRegisterUserValidation(t *testing.T) {
	app := newTestApplication()

	w := doJSONRequest(t, app.routes(), http.MethodPost, "/api/users",
		`{"username": "a", "email": "not-an-email", "password": "123"}`)

	require.Equal(t, http.StatusBadRequest, w.Code)

	errorBody := errorPart(t, decodeEnvelope(t, w))
	assert.Equal(t, "VALIDATION_ERROR", errorBody["code"])

	details, ok := errorBody["details"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, details, "username")
	assert.Contains(t, details, "email")
	assert.Contains(t, details, "password")
}

func TestRegisterUserMalformedBody(t *testing.T) {
	app := newTestApplication()

	testCases := []struct {
		name string
		body string
	}{
		{"broken JSON", `{"username":`},
		{"empty body", ""},
		{"unknown field", `{"unknown": "value"}`},
		{"two JSON values", `{"username": "alice"}{"username": "bob"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSONRequest(t, app.routes(), http.MethodPost, "/api/users", tc.body)

			require.Equal(t, http.StatusBadRequest, w.Code)
			errorBody := errorPart(t, decodeEnvelope(t, w))
			assert.Equal(t, "VALIDATION_ERROR", errorBody["code"])
		})
	}
}

func TestLoginValidation(t *testing.T) {
	app := newTestApplication()

	form := url.Values{}
	form.Set("email", "alice@example.com")

	r := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := httptest.NewRecorder()
	app.routes().ServeHTTP(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)

	errorBody := errorPart(t, decodeEnvelope(t, w))
	assert.Equal(t, "VALIDATION_ERROR", errorBody["code"])

	details, ok := errorBody["details"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, details, "password")
	assert.NotContains(t, details, "email")
}

func TestProtectedRoutesRequireAuthentication(t *testing.T) {
	app := newTestApplication()
	handler := app.routes()

	protectedRoutes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/users/me"},
		{http.MethodPut, "/api/users/me"},
		{http.MethodPost, "/api/users/alice/follow"},
		{http.MethodDelete, "/api/users/alice/follow"},
		{http.MethodPost, "/api/articles"},
		{http.MethodPut, "/api/articles/some-slug"},
		{http.MethodDelete, "/api/articles/some-slug"},
		{http.MethodPost, "/api/articles/some-slug/favorite"},
		{http.MethodDelete, "/api/articles/some-slug/favorite"},
		{http.MethodPost, "/api/articles/some-slug/comments"},
		{http.MethodDelete, "/api/articles/some-slug/comments/1"},
	}

	for _, rt := range protectedRoutes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			w := doJSONRequest(t, handler, rt.method, rt.path, "")

			require.Equal(t, http.StatusUnauthorized, w.Code)
			errorBody := errorPart(t, decodeEnvelope(t, w))
			assert.Equal(t, "AUTHENTICATION_REQUIRED", errorBody["code"])
		})
	}
}

func TestMalformedAuthorizationHeader(t *testing.T) {
	app := newTestApplication()

	for _, header := range []string{"garbage", "Basic abc", "Bearer a b"} {
		r := httptest.NewRequest(http.MethodGet, "/api/articles", nil)
		r.Header.Set("Authorization", header)

		w := httptest.NewRecorder()
		app.routes().ServeHTTP(w, r)

		require.Equal(t, http.StatusUnauthorized, w.Code, "header %q", header)
		errorBody := errorPart(t, decodeEnvelope(t, w))
		assert.Equal(t, "AUTHENTICATION_FAILED", errorBody["code"])
		assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
	}
}

func TestInvalidBearerToken(t *testing.T) {
	app := newTestApplication()

	r := httptest.NewRequest(http.MethodGet, "/api/articles", nil)
	r.Header.Set("Authorization", "Bearer not-a-valid-token")

	w := httptest.NewRecorder()
	app.routes().ServeHTTP(w, r)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	errorBody := errorPart(t, decodeEnvelope(t, w))
	assert.Equal(t, "AUTHENTICATION_FAILED", errorBody["code"])
}

func TestGetArticlesFilterValidation(t *testing.T) {
	app := newTestApplication()

	testCases := []struct {
		name  string
		query string
	}{
		{"zero limit", "?limit=0"},
		{"limit above maximum", "?limit=101"},
		{"non-numeric limit", "?limit=abc"},
		{"negative offset", "?offset=-1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSONRequest(t, app.routes(), http.MethodGet, "/api/articles"+tc.query, "")

			require.Equal(t, http.StatusBadRequest, w.Code)
			errorBody := errorPart(t, decodeEnvelope(t, w))
			assert.Equal(t, "VALIDATION_ERROR", errorBody["code"])
		})
	}
}

func TestUnknownRoute(t *testing.T) {
	app := newTestApplication()

	w := doJSONRequest(t, app.routes(), http.MethodGet, "/api/unknown", "")

	require.Equal(t, http.StatusNotFound, w.Code)
	errorBody := errorPart(t, decodeEnvelope(t, w))
	assert.Equal(t, "NOT_FOUND", errorBody["code"])
}

func TestRateLimit(t *testing.T) {
	app := newTestApplication()
	app.config.RateLimit = config.RateLimit{Enabled: true, RPS: 1, Burst: 1}

	handler := app.routes()

	first := doJSONRequest(t, handler, http.MethodGet, "/api/unknown", "")
	require.Equal(t, http.StatusNotFound, first.Code)

	second := doJSONRequest(t, handler, http.MethodGet, "/api/unknown", "")
	require.Equal(t, http.StatusTooManyRequests, second.Code)

	errorBody := errorPart(t, decodeEnvelope(t, second))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errorBody["code"])
}
