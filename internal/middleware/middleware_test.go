package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/jwtauth/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func hit(h http.Handler, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/bus-locations", nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_Local(t *testing.T) {
	t.Parallel()

	h := RateLimit(3, time.Minute, nil)(http.HandlerFunc(okHandler))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, hit(h, "10.0.0.1:5000").Code)
	}
	rec := hit(h, "10.0.0.1:5001")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"ok":false,"error":"too_many_requests","message":"Too many requests."}`, rec.Body.String())

	// other clients keep their own budget
	assert.Equal(t, http.StatusNoContent, hit(h, "10.0.0.2:5000").Code)
}

func TestRateLimit_RedisSharedBetweenInstances(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	first := RateLimit(2, time.Minute, client)(http.HandlerFunc(okHandler))
	second := RateLimit(2, time.Minute, client)(http.HandlerFunc(okHandler))

	assert.Equal(t, http.StatusNoContent, hit(first, "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusNoContent, hit(second, "10.0.0.1:2").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(first, "10.0.0.1:3").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(second, "10.0.0.1:4").Code)

	keys := mr.Keys()
	require.NotEmpty(t, keys)
	for _, k := range keys {
		assert.True(t, strings.HasPrefix(k, RateLimitPrefix), k)
	}
}

func TestRateLimit_RedisDownFallsBackToLocal(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	mr.Close()

	h := RateLimit(5, time.Minute, client)(http.HandlerFunc(okHandler))
	assert.Equal(t, http.StatusNoContent, hit(h, "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusNoContent, hit(h, "10.0.0.1:2").Code)
}

func TestRequireAccount(t *testing.T) {
	t.Parallel()

	tokenAuth := jwtauth.New("HS256", []byte("secret-for-tests-0123"), nil)
	var seen int64
	h := jwtauth.Verifier(tokenAuth)(RequireAccount()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = AccountIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})))

	_, token, err := tokenAuth.Encode(map[string]interface{}{"user_id": "12"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/tags", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(12), seen)

	_, token, err = tokenAuth.Encode(map[string]interface{}{"role": "viewer"})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/tags", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/tags", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAccountIDFromContext(t *testing.T) {
	t.Parallel()

	_, ok := AccountIDFromContext(context.Background())
	assert.False(t, ok)
	id, ok := AccountIDFromContext(WithAccountID(context.Background(), 5))
	assert.True(t, ok)
	assert.Equal(t, int64(5), id)
}
