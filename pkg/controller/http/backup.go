package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sfbackup/pkg/domain/interfaces"
	"github.com/m-mizutani/sfbackup/pkg/domain/model"
	"github.com/m-mizutani/sfbackup/pkg/utils/async"
	"github.com/m-mizutani/sfbackup/pkg/utils/logging"
)

// BackupHandler triggers backup runs. Only one run may be in progress at a time.
type BackupHandler struct {
	backupUC   interfaces.BackupUseCase
	token      string
	running    *atomic.Bool
	background *async.Group
}

// NewBackupHandler creates a new BackupHandler
func NewBackupHandler(backupUC interfaces.BackupUseCase, token string, running *atomic.Bool, background *async.Group) *BackupHandler {
	return &BackupHandler{
		backupUC:   backupUC,
		token:      token,
		running:    running,
		background: background,
	}
}

type acceptedResponse struct {
	Status string `json:"status"`
}

// Handle runs the pipeline. With ?async=true it answers 202 immediately.
func (h *BackupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.From(ctx)

	if !h.authorized(r) {
		logger.Warn("Unauthorized backup trigger")
		writeError(ctx, w, goerr.New("invalid trigger token"), http.StatusUnauthorized)
		return
	}

	if !h.running.CompareAndSwap(false, true) {
		writeError(ctx, w, goerr.New("a backup run is already in progress"), http.StatusConflict)
		return
	}

	if r.URL.Query().Get("async") == "true" {
		h.background.Dispatch(ctx, func(ctx context.Context) error {
			defer h.running.Store(false)
			_, err := h.backupUC.Run(ctx)
			return err
		})

		writeJSON(ctx, w, http.StatusAccepted, &acceptedResponse{Status: "accepted"})
		return
	}

	// A client disconnect must not abort the run
	run, err := h.backupUC.Run(context.WithoutCancel(ctx))
	h.running.Store(false)

	var pipelineErr *model.PipelineError
	switch {
	case err == nil:
		writeJSON(ctx, w, http.StatusOK, run)
	case errors.As(err, &pipelineErr) && pipelineErr.IsNoExports():
		writeJSON(ctx, w, http.StatusOK, run)
	default:
		logger.Error("Backup run failed", "error", err)
		writeJSON(ctx, w, http.StatusInternalServerError, run)
	}
}

func (h *BackupHandler) authorized(r *http.Request) bool {
	if h.token == "" {
		return true
	}

	auth := r.Header.Get("Authorization")
	given, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(h.token)) == 1
}
