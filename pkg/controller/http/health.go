package http

import (
	"net/http"
	"sync/atomic"

	"github.com/m-mizutani/sfbackup/pkg/domain/model"
	"github.com/m-mizutani/sfbackup/pkg/domain/types"
)

// healthHandler reports liveness and whether a backup run is in progress
func healthHandler(running *atomic.Bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := &model.HealthStatus{
			Status:  "healthy",
			Service: types.AppName,
			Version: types.Version,
			Running: running.Load(),
		}

		writeJSON(r.Context(), w, http.StatusOK, status)
	}
}
