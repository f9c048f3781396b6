package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsaathi-ai-api/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type countingLimiter struct {
	keys  []string
	limit int
	err   error
}

func (l *countingLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, int, error) {
	if l.err != nil {
		return false, 0, l.err
	}
	l.keys = append(l.keys, key)
	used := 0
	for _, k := range l.keys {
		if k == key {
			used++
		}
	}
	l.limit = limit
	return used <= limit, max(limit-used, 0), nil
}

func serve(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestOwner(t *testing.T) {
	r := gin.New()
	r.GET("/me", Owner(), func(c *gin.Context) {
		c.String(http.StatusOK, GetOwnerID(c)+"/"+string(GetRole(c)))
	})
	r.GET("/advisor", Owner(), RequireRole(RoleAdvisor), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := serve(r, http.MethodGet, "/me", map[string]string{OwnerIDHeader: " u-1 "})
	assert.Equal(t, "u-1/user", w.Body.String())

	w = serve(r, http.MethodGet, "/me", map[string]string{OwnerIDHeader: "adv-1", OwnerRoleHeader: "Advisor"})
	assert.Equal(t, "adv-1/advisor", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/me", nil).Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/me", map[string]string{OwnerIDHeader: "u", OwnerRoleHeader: "admin"}).Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/advisor", map[string]string{OwnerIDHeader: "u"}).Code)
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/advisor", map[string]string{OwnerIDHeader: "a", OwnerRoleHeader: "advisor"}).Code)
}

func TestRateLimit(t *testing.T) {
	limiter := &countingLimiter{}
	r := gin.New()
	r.POST("/turns/:tid", Owner(), RateLimit(RateLimitConfig{Enabled: true, Limit: 2, Window: time.Minute}, limiter), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	u1 := map[string]string{OwnerIDHeader: "u-1"}
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/turns/a", u1).Code)
	w := serve(r, http.MethodPost, "/turns/b", u1)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = serve(r, http.MethodPost, "/turns/a", u1)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/turns/a", map[string]string{OwnerIDHeader: "u-2"}).Code)
	require.NotEmpty(t, limiter.keys)
	assert.Equal(t, "ratelimit:u-1:/turns/:tid", limiter.keys[0])
}

func TestRateLimitFailsOpen(t *testing.T) {
	r := gin.New()
	r.GET("/x", RateLimit(RateLimitConfig{Enabled: true}, &countingLimiter{err: errors.New("redis down")}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/x", nil).Code)

	r = gin.New()
	r.GET("/y", RateLimit(RateLimitConfig{Enabled: false}, nil), func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/y", nil).Code)
}

func TestRequestIDAndRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(), RequestID())
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	w := serve(r, http.MethodGet, "/ok", map[string]string{RequestIDHeader: "req-1"})
	assert.Equal(t, "req-1", w.Body.String())
	assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))

	w = serve(r, http.MethodGet, "/ok", nil)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	w = serve(r, http.MethodGet, "/ok", map[string]string{RequestIDHeader: "bad id\twith spaces"})
	assert.NotEqual(t, "bad id\twith spaces", w.Body.String())
	assert.Len(t, w.Body.String(), 36)

	w = serve(r, http.MethodGet, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")
	assert.Contains(t, w.Body.String(), "internal server error")
}

func TestValidRequestID(t *testing.T) {
	assert.True(t, validRequestID("a1b2-c3_d4.e5:f6"))
	assert.False(t, validRequestID(""))
	assert.False(t, validRequestID("has space"))
	assert.False(t, validRequestID(strings.Repeat("x", maxRequestIDLength+1)))
}

func TestMetricsSkipsProbes(t *testing.T) {
	r := gin.New()
	r.Use(Metrics("/health"))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/v1/threads/:tid", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/health", "200"))
	serve(r, http.MethodGet, "/health", nil)
	assert.Equal(t, before, testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/health", "200")))

	before = testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/v1/threads/:tid", "200"))
	serve(r, http.MethodGet, "/v1/threads/t-1", nil)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/v1/threads/:tid", "200")))
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS(CORSConfig{AllowedOrigins: []string{"https://app.example.in"}}))
	r.POST("/v1/threads", func(c *gin.Context) { c.Status(http.StatusCreated) })

	req := httptest.NewRequest(http.MethodOptions, "/v1/threads", nil)
	req.Header.Set("Origin", "https://app.example.in")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", OwnerIDHeader)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "https://app.example.in", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodPost, "/v1/threads", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
