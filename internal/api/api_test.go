package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

func TestRequireToken(t *testing.T) {
	h := RequireToken("s3cret")(okHandler)

	tests := []struct {
		name   string
		target string
		header string
		want   int
	}{
		{"missing", "/x", "", http.StatusUnauthorized},
		{"bearer", "/x", "Bearer s3cret", http.StatusNoContent},
		{"bearer lowercase scheme", "/x", "bearer s3cret", http.StatusNoContent},
		{"wrong bearer", "/x", "Bearer nope", http.StatusUnauthorized},
		{"query param", "/x?api_token=s3cret", "", http.StatusNoContent},
		{"wrong query param", "/x?api_token=nope", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequireTokenDisabled(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireToken("")(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRateLimitPerClient(t *testing.T) {
	h := RateLimit(2)(okHandler)

	do := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		req.RemoteAddr = ip + ":5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, do("10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, do("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, do("10.0.0.2"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.7:1234"
	assert.Equal(t, "192.168.1.7", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", ClientIP(req))
}

func TestQueryInt(t *testing.T) {
	req := func(q string) *http.Request { return httptest.NewRequest(http.MethodGet, "/?"+q, nil) }

	assert.Equal(t, 60, QueryInt(req(""), "minutes", 60, 5, 1440))
	assert.Equal(t, 60, QueryInt(req("minutes=abc"), "minutes", 60, 5, 1440))
	assert.Equal(t, 5, QueryInt(req("minutes=1"), "minutes", 60, 5, 1440))
	assert.Equal(t, 1440, QueryInt(req("minutes=9999"), "minutes", 60, 5, 1440))
	assert.Equal(t, 120, QueryInt(req("minutes=120"), "minutes", 60, 5, 1440))
	assert.Equal(t, 9999, QueryInt(req("minutes=9999"), "minutes", 60, 5, 0))
}

func TestRecoverer(t *testing.T) {
	h := Recoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "unexpected error")
}
