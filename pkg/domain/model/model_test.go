package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/sfbackup/pkg/domain/model"
)

func TestCredential_Expired(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	var nilCred *model.Credential
	gt.True(t, nilCred.Expired(now, time.Hour))
	gt.True(t, (&model.Credential{FetchedAt: now}).Expired(now, time.Hour))

	cred := &model.Credential{Token: "t", FetchedAt: now}
	gt.False(t, cred.Expired(now.Add(59*time.Minute), time.Hour))
	gt.True(t, cred.Expired(now.Add(time.Hour), time.Hour))
	gt.False(t, cred.Expired(now.Add(24*time.Hour), 0))
}

func TestConsolidationError(t *testing.T) {
	cause := errors.New("zip: not a valid zip file")
	err := error(&model.ConsolidationError{Kind: model.ConsolidationCorrupt, Path: "/dl/export1.zip", Err: cause})

	gt.String(t, err.Error()).Contains("corrupt")
	gt.String(t, err.Error()).Contains("/dl/export1.zip")
	gt.True(t, errors.Is(err, cause))
}

func TestPipelineError(t *testing.T) {
	cause := &model.ConsolidationError{Kind: model.ConsolidationInUse, Path: "/dl/export0.zip"}
	err := error(&model.PipelineError{Stage: model.StageConsolidate, Reason: model.ReasonConsolidateFailed, Err: cause})

	var consErr *model.ConsolidationError
	gt.True(t, errors.As(err, &consErr))
	gt.Value(t, consErr.Kind).Equal(model.ConsolidationInUse)
	gt.String(t, err.Error()).Contains("consolidate_failed")

	noExports := &model.PipelineError{Stage: model.StageExtractLinks, Reason: model.ReasonNoExports}
	gt.True(t, noExports.IsNoExports())
	gt.False(t, (&model.PipelineError{Reason: model.ReasonExtractFailed}).IsNoExports())
}

func TestBackupRun_Duration(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	run := &model.BackupRun{StartedAt: start}
	gt.Value(t, run.Duration()).Equal(time.Duration(0))

	run.FinishedAt = start.Add(90 * time.Second)
	gt.Value(t, run.Duration()).Equal(90 * time.Second)
}
