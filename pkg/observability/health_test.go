package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecker_Liveness(t *testing.T) {
	checker := NewHealthChecker("test")

	rr := httptest.NewRecorder()
	checker.Liveness(rr, httptest.NewRequest("GET", "/health/live", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}

func TestHealthChecker_Check(t *testing.T) {
	failing := func(context.Context) error { return errors.New("down") }
	passing := func(context.Context) error { return nil }

	tests := []struct {
		name     string
		critical bool
		fn       CheckFunc
		want     string
	}{
		{name: "passing critical", critical: true, fn: passing, want: StatusHealthy},
		{name: "failing critical", critical: true, fn: failing, want: StatusUnhealthy},
		{name: "failing optional", critical: false, fn: failing, want: StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewHealthChecker("test")
			checker.AddCheck("dep", tt.critical, tt.fn)

			status := checker.Check(context.Background())
			assert.Equal(t, tt.want, status.Status)
			assert.Contains(t, status.Dependencies, "dep")
		})
	}
}

func TestHealthChecker_ReadinessWithRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	checker := NewHealthChecker("test")
	checker.AddCheck("redis", true, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})

	rr := httptest.NewRecorder()
	checker.Readiness(rr, httptest.NewRequest("GET", "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	mr.Close()

	rr = httptest.NewRecorder()
	checker.Readiness(rr, httptest.NewRequest("GET", "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	assert.Equal(t, StatusUnhealthy, status.Dependencies["redis"].Status)
}
