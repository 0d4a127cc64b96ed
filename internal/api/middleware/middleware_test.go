package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvix/internal/api/respond"
	"cvix/internal/auth"
	"cvix/internal/errcode"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) respond.ErrorDetail {
	t.Helper()
	var body respond.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func TestCorrelationID(t *testing.T) {
	t.Parallel()

	r := gin.New()
	r.Use(CorrelationID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetCorrelationID(c)) })

	tests := []struct {
		name    string
		inbound string
		keep    bool
	}{
		{"generated", "", false},
		{"kept", "req-123.a_b", true},
		{"unsafe replaced", "bad id\r\nX-Evil: 1", false},
		{"too long replaced", strings.Repeat("a", 65), false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.inbound != "" {
			req.Header.Set(respond.CorrelationHeader, tt.inbound)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		got := w.Header().Get(respond.CorrelationHeader)
		assert.Equal(t, got, w.Body.String(), tt.name)
		if tt.keep {
			assert.Equal(t, tt.inbound, got, tt.name)
		} else {
			assert.Len(t, got, 36, tt.name)
		}
	}
}

func TestCorrelationID_RequestIDFallback(t *testing.T) {
	t.Parallel()

	r := gin.New()
	r.Use(CorrelationID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetCorrelationID(c)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "proxy-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "proxy-42", w.Body.String())

	req.Header.Set(respond.CorrelationHeader, "own-1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "own-1", w.Body.String())
}

func TestSlogLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	r := gin.New()
	r.Use(CorrelationID(), SlogLogger(logger), CallerIdentity(nil))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) {
		LoggerFromContext(c).Info("inside handler")
		c.String(http.StatusInternalServerError, "x")
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, buf.String(), "probes log at debug")

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(respond.CorrelationHeader, "corr-7")
	r.ServeHTTP(httptest.NewRecorder(), req)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var inside, access map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &inside))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &access))
	assert.Equal(t, "corr-7", inside["correlation_id"])
	assert.Equal(t, "WARN", access["level"])
	assert.Equal(t, "/boom", access["route"])
	assert.EqualValues(t, 500, access["status"])
	assert.NotEmpty(t, access["caller"])
	assert.NotContains(t, lines[1], "192.0.2.1")
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "default-src 'none'; frame-ancestors 'none'", w.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-referrer", w.Header().Get("Referrer-Policy"))
}

func TestLocale(t *testing.T) {
	t.Parallel()

	r := gin.New()
	r.Use(Locale())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetLocale(c)) })

	tests := map[string]string{
		"":                        "en",
		"es-MX,es;q=0.9,en;q=0.5": "es",
		"en-GB":                   "en",
		"de-CH;q=0.4, fr;q=0.9":   "fr",
		"*":                       "en",
		"*, es;q=0.8":             "es",
		"mul, zxx;q=0.9":          "en",
		";;;garbage":              "en",
	}
	for header, want := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Language", header)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Body.String(), header)
	}
}

func TestBodyLimit(t *testing.T) {
	t.Parallel()

	r := gin.New()
	r.Use(CorrelationID(), BodyLimit(10))
	r.POST("/", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if respond.IsBodyTooLarge(err) {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789A")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	detail := decodeError(t, w)
	assert.Equal(t, errcode.PayloadTooLarge, detail.Code)
	assert.NotEmpty(t, detail.CorrelationID)

	// unknown length is caught by the capped reader
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 50)))
	req.ContentLength = -1
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestInternalSecret(t *testing.T) {
	t.Parallel()

	open := gin.New()
	open.GET("/metrics", InternalSecret(""), func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	open.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	guarded := gin.New()
	guarded.GET("/metrics", InternalSecret("s3cret"), func(c *gin.Context) { c.Status(http.StatusOK) })

	w = httptest.NewRecorder()
	guarded.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("X-Internal-Secret", "s3cret")
	w = httptest.NewRecorder()
	guarded.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

type stubVerifier map[string]string

func (s stubVerifier) Verify(token string) (*auth.TokenClaims, error) {
	sub, ok := s[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	claims := &auth.TokenClaims{}
	claims.Subject = sub
	return claims, nil
}

func TestCallerIdentity(t *testing.T) {
	t.Parallel()

	handler := func(c *gin.Context) { c.String(http.StatusOK, CallerID(c)) }

	anon := gin.New()
	anon.GET("/", CallerIdentity(nil), handler)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	w := httptest.NewRecorder()
	anon.ServeHTTP(w, req)
	assert.Equal(t, "ip:203.0.113.9", w.Body.String())

	authed := gin.New()
	authed.GET("/", CallerIdentity(stubVerifier{"good": "user-1"}), handler)

	for header, want := range map[string]int{
		"":            http.StatusUnauthorized,
		"Bearer":      http.StatusUnauthorized,
		"Basic good":  http.StatusUnauthorized,
		"Bearer bad":  http.StatusUnauthorized,
		"Bearer good": http.StatusOK,
		"bearer good": http.StatusOK,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		authed.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, header)
		if want == http.StatusOK {
			assert.Equal(t, "sub:user-1", w.Body.String())
		}
	}
}

func newLimitedRouter(t *testing.T, client RateCounter, limit int, now func() time.Time) *gin.Engine {
	t.Helper()
	r := gin.New()
	r.Use(CorrelationID(), CallerIdentity(nil), rateLimit(client, limit, time.Minute, now))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Date(2026, 1, 1, 12, 0, 15, 0, time.UTC)
	r := newLimitedRouter(t, client, 2, func() time.Time { return now })

	do := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		return w
	}

	assert.Equal(t, http.StatusOK, do().Code)
	w := do()
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = do()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "45", w.Header().Get("Retry-After"))
	assert.Equal(t, errcode.RateLimited, decodeError(t, w).Code)

	for _, key := range mr.Keys() {
		assert.True(t, strings.HasPrefix(key, rateLimitPrefix))
		assert.NotContains(t, key, "192.0.2.1")
		assert.Greater(t, mr.TTL(key), time.Duration(0))
	}

	now = now.Add(time.Minute)
	assert.Equal(t, http.StatusOK, do().Code)
}

type failingCounter struct{}

func (failingCounter) Incr(ctx context.Context, key string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	cmd.SetErr(errors.New("connection refused"))
	return cmd
}

func (failingCounter) Expire(ctx context.Context, key string, _ time.Duration) *redis.BoolCmd {
	return redis.NewBoolCmd(ctx)
}

func TestRateLimit_FailsOpen(t *testing.T) {
	t.Parallel()

	r := newLimitedRouter(t, failingCounter{}, 1, time.Now)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
