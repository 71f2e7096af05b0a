package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"house-alert-api/handlers"
	"house-alert-api/middleware"
)

const testOrigin = "https://alerts.example.com"

func testRouter() http.Handler {
	return newRouter(routes{
		allowedOrigin:  testOrigin,
		internalSecret: "internal",
		sessions:       middleware.NewSessionStore(middleware.SessionOptions{Secret: "session-secret"}),
		limiter:        middleware.NewRateLimiter(nil),
		checkout:       handlers.NewCheckoutHandler(nil),
		callback:       handlers.NewPaymentCallbackHandler(nil, nil),
		webhook:        handlers.NewLineWebhookHandler("", nil, nil),
		plans:          handlers.NewPlanHandler(),
		auth:           handlers.NewAuthHandler(nil, nil),
		internal:       handlers.NewInternalHandler(nil, nil, nil),
		account:        handlers.NewAccountHandler(nil),
		monitors:       handlers.NewMonitorHandler(nil),
		health:         handlers.NewHealthHandler(nil),
	})
}

func TestPreflightOnProtectedRoutes(t *testing.T) {
	router := testRouter()

	for _, path := range []string{"/api/me", "/api/monitors", "/api/monitors/m-1"} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		req.Header.Set("Origin", testOrigin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPut)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, testOrigin, rec.Header().Get("Access-Control-Allow-Origin"), path)
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "DELETE", path)
	}
}

func TestProtectedRoutesStillRequireAuth(t *testing.T) {
	router := testRouter()

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/me"},
		{http.MethodGet, "/api/monitors"},
		{http.MethodPost, "/api/monitors"},
		{http.MethodPut, "/api/monitors/m-1"},
		{http.MethodDelete, "/api/monitors/m-1"},
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)
		assert.Equal(t, testOrigin, rec.Header().Get("Access-Control-Allow-Origin"), tc.path)
	}
}

func TestVerifyEndpointRouted(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/line/webhook", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"active"}`, rec.Body.String())
}
