package model

import (
	"fmt"
	"time"

	"github.com/m-mizutani/sfbackup/pkg/domain/types"
)

// Stage is a step of the backup pipeline
type Stage string

const (
	StageExtractLinks Stage = "extract_links"
	StageDownload     Stage = "download"
	StageConsolidate  Stage = "consolidate"
	StageHandoff      Stage = "handoff"
	StageDone         Stage = "done"
)

// RunStatus is the terminal status of a BackupRun
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	// RunStatusSkipped is used when there was nothing to back up yet
	RunStatusSkipped RunStatus = "skipped"
)

// FailureReason distinguishes why a run ended in the failed state
type FailureReason string

const (
	ReasonExtractFailed     FailureReason = "extract_failed"
	ReasonNoExports         FailureReason = "no_exports"
	ReasonDownloadFailed    FailureReason = "download_failed"
	ReasonConsolidateFailed FailureReason = "consolidate_failed"
	ReasonHandoffFailed     FailureReason = "handoff_failed"
	ReasonInvalidState      FailureReason = "invalid_state"
)

// BackupRun records one pipeline execution
type BackupRun struct {
	ID         types.RunID   `firestore:"id" json:"id"`
	StartedAt  time.Time     `firestore:"started_at" json:"started_at"`
	FinishedAt time.Time     `firestore:"finished_at" json:"finished_at"`
	Stage      Stage         `firestore:"stage" json:"stage"`
	Status     RunStatus     `firestore:"status" json:"status"`
	Reason     FailureReason `firestore:"reason,omitempty" json:"reason,omitempty"`
	LinkCount  int           `firestore:"link_count" json:"link_count"`
	ObjectName string        `firestore:"object_name,omitempty" json:"object_name,omitempty"`
	Error      string        `firestore:"error,omitempty" json:"error,omitempty"`
}

// Duration returns how long the run took, or zero while it is still running
func (r *BackupRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// PipelineError is the single error type a backup run returns to its host
type PipelineError struct {
	Stage  Stage
	Reason FailureReason
	Err    error
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("backup failed at %s: %s", e.Stage, e.Reason)
	}
	return fmt.Sprintf("backup failed at %s: %s: %v", e.Stage, e.Reason, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// IsNoExports reports whether the run ended because nothing was available to download
func (e *PipelineError) IsNoExports() bool {
	return e.Reason == ReasonNoExports
}
