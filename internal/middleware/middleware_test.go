package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/gym-management/internal/config"
	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/utils"
)

const testSecret = "middleware-secret"

func serve(t *testing.T, mw []echo.MiddlewareFunc, header string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	h := func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"user_id": c.Get(UserIDKey), "role": c.Get(RoleKey)})
	}
	e.GET("/private", h, mw...)
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	tok, err := utils.NewAccessToken(testSecret, 42, "member", 5)
	require.NoError(t, err)
	other, err := utils.NewAccessToken("another-secret", 42, "member", 5)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"valid token", "Bearer " + tok.Token, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad signature", "Bearer " + other.Token, http.StatusUnauthorized},
		{"garbage", "Bearer not-a-jwt", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(t, []echo.MiddlewareFunc{JWTAuth(testSecret)}, tc.header)
			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				assert.JSONEq(t, `{"user_id":42,"role":"member"}`, rec.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	member, err := utils.NewAccessToken(testSecret, 7, "member", 5)
	require.NoError(t, err)
	admin, err := utils.NewAccessToken(testSecret, 1, "admin", 5)
	require.NoError(t, err)

	chain := []echo.MiddlewareFunc{JWTAuth(testSecret), RequireRole(model.RoleAdmin, model.RoleTrainer)}
	assert.Equal(t, http.StatusForbidden, serve(t, chain, "Bearer "+member.Token).Code)
	assert.Equal(t, http.StatusOK, serve(t, chain, "Bearer "+admin.Token).Code)

	// Without JWTAuth there is no role at all.
	assert.Equal(t, http.StatusForbidden, serve(t, []echo.MiddlewareFunc{RequireRole(model.RoleAdmin)}, "").Code)
}

func TestDisabledRedisMiddlewarePassesThrough(t *testing.T) {
	chain := []echo.MiddlewareFunc{
		NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil),
		NewRedisCache(config.CacheConfig{Enabled: true}, nil),
		InvalidateCache(config.CacheConfig{Enabled: true}, nil),
	}
	rec := serve(t, chain, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.RemoteAddr = "10.0.0.9:5555"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/v1/auth/login")

	cfg := config.RateLimitConfig{Prefix: "gym:rl", KeyStrategy: "ip_route"}
	assert.Equal(t, "gym:rl:ip:10.0.0.9:route:POST /api/v1/auth/login", buildRateKey(cfg, c))

	cfg.KeyStrategy = "user"
	assert.Equal(t, "gym:rl:user:anon", buildRateKey(cfg, c))
	c.Set(UserIDKey, uint64(12))
	assert.Equal(t, "gym:rl:user:12", buildRateKey(cfg, c))

	cfg.KeyStrategy = "ip_device"
	assert.Equal(t, "gym:rl:ip:10.0.0.9:user:12:route:POST /api/v1/auth/login", buildRateKey(cfg, c))
}

func TestParseBucketResult(t *testing.T) {
	res, err := parseBucketResult([]any{int64(0), int64(0), int64(2500)})
	require.NoError(t, err)
	assert.False(t, res.allowed)
	assert.Equal(t, 2.5, res.retry.Seconds())

	_, err = parseBucketResult("nope")
	assert.Error(t, err)
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"ok":true}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"ok":true}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 0})
	assert.False(t, ok)
}

func TestCacheKeyPerUser(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/packages?page=2", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/v1/packages")

	shared := config.CacheConfig{Prefix: "gym:cache", KeyStrategy: "route_query"}
	perUser := config.CacheConfig{Prefix: "gym:cache", KeyStrategy: "route_query_user"}

	a := cacheKeyFrom(perUser, c)
	s := cacheKeyFrom(shared, c)
	c.Set(UserIDKey, uint64(3))
	assert.NotEqual(t, a, cacheKeyFrom(perUser, c))
	assert.Equal(t, s, cacheKeyFrom(shared, c))
	assert.Regexp(t, `^gym:cache:[0-9a-f]{40}$`, s)
}
