package middleware

import (
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDGeneratesWhenMissing(t *testing.T) {
	var captured string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetRequestID(r.Context())
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.NotEmpty(t, captured)
	assert.Equal(t, captured, recorder.Header().Get("X-Request-Id"))
}

func TestRequestIDHonorsSaneInboundHeader(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	request := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	request.Header.Set("X-Request-Id", "upstream-123")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	assert.Equal(t, "upstream-123", recorder.Header().Get("X-Request-Id"))
}

func TestRequestIDRejectsMalformedInboundHeader(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	request := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	request.Header.Set("X-Request-Id", "has spaces in it")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	assert.NotEqual(t, "has spaces in it", recorder.Header().Get("X-Request-Id"))
	assert.NotEmpty(t, recorder.Header().Get("X-Request-Id"))
}

func TestTraceKeepsFlusherAvailable(t *testing.T) {
	logger := log.New(&discardWriter{}, "", 0)
	var flushable bool
	handler := Trace(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, flushable = w.(http.Flusher)
		w.WriteHeader(http.StatusAccepted)
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/v1/research/res_1/stream", nil))

	assert.True(t, flushable)
	assert.Equal(t, http.StatusAccepted, recorder.Code)
}

func TestRateLimitBlocksAfterBurst(t *testing.T) {
	handler := RateLimit(1, 2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var last int
	for i := 0; i < 5; i++ {
		request := httptest.NewRequest(http.MethodGet, "/v1/research", nil)
		request.RemoteAddr = "10.0.0.9:1234"
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		last = recorder.Code
	}

	require.Equal(t, http.StatusTooManyRequests, last)
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.RemoteAddr = "10.0.0.9:1234"
	assert.Equal(t, "10.0.0.9", clientIP(request))

	request.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", clientIP(request))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
