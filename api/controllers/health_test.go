package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/licensegate/pkg/config"
	"github.com/angelmondragon/licensegate/pkg/types"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestHealthLive(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	rec := httptest.NewRecorder()
	HealthLive(cfg)(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dev", rec.Header().Get(envHeader))
	assert.Equal(t, "live", decode[types.HealthStatus](t, rec).Status)
}

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}

	tests := []struct {
		name   string
		store  Pinger
		redis  Pinger
		status int
		checks map[string]string
	}{
		{"store only", fakePinger{}, nil, http.StatusOK, map[string]string{"store": "ok", "redis": "disabled"}},
		{"store and redis", fakePinger{}, fakePinger{}, http.StatusOK, map[string]string{"store": "ok", "redis": "ok"}},
		{"store down", fakePinger{err: errors.New("dial tcp: refused")}, nil, http.StatusServiceUnavailable, map[string]string{"store": "unavailable", "redis": "disabled"}},
		{"redis down", fakePinger{}, fakePinger{err: errors.New("i/o timeout")}, http.StatusServiceUnavailable, map[string]string{"store": "ok", "redis": "unavailable"}},
		{"no store", nil, nil, http.StatusServiceUnavailable, map[string]string{"store": "unavailable", "redis": "disabled"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HealthReady(cfg, testLogger(), tt.store, tt.redis)(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			require.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.checks, decode[types.HealthStatus](t, rec).Checks)
		})
	}
}
