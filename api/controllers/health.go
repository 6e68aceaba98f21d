package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/pawelnowak/pimhub-backend/api/responses"
	"github.com/pawelnowak/pimhub-backend/pkg/config"
	"github.com/pawelnowak/pimhub-backend/pkg/logger"
)

const readinessTimeout = 5 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"status": "live", "env": cfg.App.Env})
	}
}

// HealthReady reports per-dependency readiness. Any failing dependency
// flips the response to 503 so the load balancer stops routing here.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{}
		healthy := true
		for name, dep := range deps {
			if dep == nil {
				checks[name] = "skipped"
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				checks[name] = "down"
				healthy = false
				if logg != nil {
					logg.Error(logg.WithField(ctx, "dependency", name), "readiness check failed", err)
				}
				continue
			}
			checks[name] = "up"
		}

		status := http.StatusOK
		payload := map[string]any{
			"status": "ready",
			"env":    cfg.App.Env,
			"checks": checks,
		}
		if !healthy {
			status = http.StatusServiceUnavailable
			payload["status"] = "degraded"
		}
		responses.WriteSuccessStatus(w, status, payload)
	}
}

// ReadinessDeps assembles the dependency map for HealthReady.
func ReadinessDeps(db pinger, redis pinger, gcs pinger) map[string]pinger {
	return map[string]pinger{
		"postgres": db,
		"redis":    redis,
		"gcs":      gcs,
	}
}
