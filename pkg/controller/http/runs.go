package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sfbackup/pkg/domain/interfaces"
	"github.com/m-mizutani/sfbackup/pkg/domain/model"
	"github.com/m-mizutani/sfbackup/pkg/domain/types"
	"github.com/m-mizutani/sfbackup/pkg/utils/logging"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

// RunsHandler serves the backup run history
type RunsHandler struct {
	recorder interfaces.RunRecorder
}

// NewRunsHandler creates a new RunsHandler. recorder may be nil.
func NewRunsHandler(recorder interfaces.RunRecorder) *RunsHandler {
	return &RunsHandler{recorder: recorder}
}

type runsResponse struct {
	Runs []*model.BackupRun `json:"runs"`
}

// List returns recent runs, newest first
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.recorder == nil {
		writeError(ctx, w, goerr.New("run history is not configured"), http.StatusNotFound)
		return
	}

	limit := defaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(ctx, w, goerr.New("limit must be a positive integer", goerr.V("limit", v)), http.StatusBadRequest)
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := h.recorder.List(ctx, limit)
	if err != nil {
		logging.From(ctx).Error("Failed to list backup runs", "error", err)
		writeError(ctx, w, goerr.New("failed to list backup runs"), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []*model.BackupRun{}
	}

	writeJSON(ctx, w, http.StatusOK, &runsResponse{Runs: runs})
}

// Get returns one run
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.recorder == nil {
		writeError(ctx, w, goerr.New("run history is not configured"), http.StatusNotFound)
		return
	}

	id := types.RunID(chi.URLParam(r, "id"))
	run, err := h.recorder.Get(ctx, id)
	if err != nil {
		logging.From(ctx).Error("Failed to get backup run", "error", err, "run_id", id)
		writeError(ctx, w, goerr.New("failed to get backup run"), http.StatusInternalServerError)
		return
	}
	if run == nil {
		writeError(ctx, w, goerr.New("backup run not found", goerr.V("run_id", id)), http.StatusNotFound)
		return
	}

	writeJSON(ctx, w, http.StatusOK, run)
}
