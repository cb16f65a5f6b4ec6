package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/angelmondragon/licensegate/api/responses"
	"github.com/angelmondragon/licensegate/pkg/config"
	"github.com/angelmondragon/licensegate/pkg/logger"
	"github.com/angelmondragon/licensegate/pkg/types"
)

const (
	envHeader          = "X-LicenseGate-Env"
	readinessTimeout   = 2 * time.Second
	dependencyOK       = "ok"
	dependencyDisabled = "disabled"
	dependencyDown     = "unavailable"
)

var errNoStore = errors.New("license store not configured")

// Pinger is satisfied by the license service and the Redis client.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, types.HealthStatus{Status: "live"})
	}
}

// HealthReady pings the license store and, when configured, Redis. A nil redis pinger is reported as disabled.
func HealthReady(cfg *config.Config, logg *logger.Logger, store Pinger, redis Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{"store": dependencyOK, "redis": dependencyDisabled}
		ready := true

		if err := ping(ctx, store); err != nil {
			checks["store"] = dependencyDown
			ready = false
			if logg != nil {
				logg.Error(ctx, "health.store_unavailable", err)
			}
		}
		if redis != nil {
			checks["redis"] = dependencyOK
			if err := ping(ctx, redis); err != nil {
				checks["redis"] = dependencyDown
				ready = false
				if logg != nil {
					logg.Error(ctx, "health.redis_unavailable", err)
				}
			}
		}

		if !ready {
			responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, types.HealthStatus{Status: dependencyDown, Checks: checks})
			return
		}
		responses.WriteSuccess(w, types.HealthStatus{Status: "ready", Checks: checks})
	}
}

func ping(ctx context.Context, p Pinger) error {
	if p == nil {
		return errNoStore
	}
	return p.Ping(ctx)
}
