package entitlement_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billing/pkg/entitlement"
	"github.com/dmitrymomot/billing/pkg/retry"
)

func newClient(t *testing.T, url string, opts ...entitlement.Option) *entitlement.Client {
	t.Helper()
	opts = append([]entitlement.Option{entitlement.WithBackoff(retry.FixedBackoff{Interval: time.Millisecond})}, opts...)
	c, err := entitlement.New(entitlement.Config{BaseURL: url, Token: "secret", Timeout: time.Second, MaxRetries: 2}, opts...)
	require.NoError(t, err)
	return c
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, entitlement.Config{}.Validate(), entitlement.ErrMissingBaseURL)
	assert.ErrorIs(t, entitlement.Config{BaseURL: "auth-service"}.Validate(), entitlement.ErrInvalidBaseURL)
	assert.NoError(t, entitlement.Config{BaseURL: "http://auth:8080/api"}.Validate())

	_, err := entitlement.New(entitlement.Config{})
	require.ErrorIs(t, err, entitlement.ErrMissingBaseURL)
}

func TestClient_SetUserPermissionRank(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	c := newClient(t, srv.URL+"/api/")
	require.NoError(t, c.SetUserPermissionRank(context.Background(), userID, 3))

	require.NotNil(t, got)
	assert.Equal(t, http.MethodPatch, got.Method)
	assert.Equal(t, "/api/users/"+userID.String()+"/content_permission_rank/3", got.URL.Path)
	assert.Equal(t, "Bearer secret", got.Header.Get("Authorization"))
}

func TestClient_Retries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("server errors are retried", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		t.Cleanup(srv.Close)

		require.NoError(t, newClient(t, srv.URL).SetUserPermissionRank(ctx, uuid.New(), 1))
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			http.Error(w, "unknown user", http.StatusNotFound)
		}))
		t.Cleanup(srv.Close)

		err := newClient(t, srv.URL).SetUserPermissionRank(ctx, uuid.New(), 1)
		require.ErrorIs(t, err, entitlement.ErrRejected)
		assert.Contains(t, err.Error(), "unknown user")
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("exhausted retries report unavailable", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		t.Cleanup(srv.Close)

		err := newClient(t, srv.URL).SetUserPermissionRank(ctx, uuid.New(), 1)
		require.ErrorIs(t, err, entitlement.ErrUnavailable)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("open circuit fails fast", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		t.Cleanup(srv.Close)

		c := newClient(t, srv.URL, entitlement.WithCircuitBreaker(retry.NewCircuitBreaker(3, 1, time.Hour)))
		require.ErrorIs(t, c.SetUserPermissionRank(ctx, uuid.New(), 1), entitlement.ErrUnavailable)
		require.Equal(t, int32(3), calls.Load())

		err := c.SetUserPermissionRank(ctx, uuid.New(), 1)
		require.ErrorIs(t, err, entitlement.ErrUnavailable)
		require.ErrorIs(t, err, retry.ErrCircuitOpen)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("unreachable host", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		err := newClient(t, url).SetUserPermissionRank(ctx, uuid.New(), 1)
		require.ErrorIs(t, err, entitlement.ErrUnavailable)
	})
}

func TestClient_NegativeRank(t *testing.T) {
	t.Parallel()

	c := newClient(t, "http://127.0.0.1:1")
	require.ErrorIs(t, c.SetUserPermissionRank(context.Background(), uuid.New(), -1), entitlement.ErrRejected)
}
