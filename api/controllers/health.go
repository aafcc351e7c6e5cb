package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/dmoreira/storefront-backend/api/responses"
	"github.com/dmoreira/storefront-backend/pkg/config"
	pkgerrors "github.com/dmoreira/storefront-backend/pkg/errors"
	"github.com/dmoreira/storefront-backend/pkg/logger"
)

const readyProbeTimeout = 2 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Storefront-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, db, cache pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Storefront-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyProbeTimeout)
		defer cancel()

		checks := map[string]string{"db": "ok", "redis": "ok"}

		if db != nil {
			if err := db.Ping(ctx); err != nil {
				checks["db"] = "down"
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unreachable").WithDetails(checks))
				return
			}
		}
		if cache != nil {
			if err := cache.Ping(ctx); err != nil {
				checks["redis"] = "down"
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unreachable").WithDetails(checks))
				return
			}
		}

		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
