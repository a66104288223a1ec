package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/sunshinecowhides/gallery-backend/api/responses"
	"github.com/sunshinecowhides/gallery-backend/pkg/config"
	pkgerrors "github.com/sunshinecowhides/gallery-backend/pkg/errors"
	"github.com/sunshinecowhides/gallery-backend/pkg/logger"
)

const readyCheckTimeout = 5 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency the API needs to serve traffic. The CDE
// check is included: a pod that cannot reach the legacy system can still serve
// the gallery, but we want it visible on the readiness endpoint.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP, redisP, storageP, cdeP pinger) http.HandlerFunc {
	deps := []struct {
		name string
		dep  pinger
	}{
		{"database", dbP},
		{"redis", redisP},
		{"storage", storageP},
		{"cde", cdeP},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		defer cancel()

		failures := map[string]string{}
		for _, entry := range deps {
			if entry.dep == nil {
				continue
			}
			if err := entry.dep.Ping(ctx); err != nil {
				failures[entry.name] = err.Error()
			}
		}

		if len(failures) > 0 {
			err := pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").WithDetails(failures)
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
