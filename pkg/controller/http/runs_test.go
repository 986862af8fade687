package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/m-mizutani/gt"
	controller "github.com/m-mizutani/sfbackup/pkg/controller/http"
	"github.com/m-mizutani/sfbackup/pkg/domain/model"
	"github.com/m-mizutani/sfbackup/pkg/domain/types"
)

// recorderMock is a hand-written mock of interfaces.RunRecorder
type recorderMock struct {
	RecordFunc func(ctx context.Context, run *model.BackupRun) error
	GetFunc    func(ctx context.Context, id types.RunID) (*model.BackupRun, error)
	ListFunc   func(ctx context.Context, limit int) ([]*model.BackupRun, error)
}

func (m *recorderMock) Record(ctx context.Context, run *model.BackupRun) error {
	return m.RecordFunc(ctx, run)
}

func (m *recorderMock) Get(ctx context.Context, id types.RunID) (*model.BackupRun, error) {
	return m.GetFunc(ctx, id)
}

func (m *recorderMock) List(ctx context.Context, limit int) ([]*model.BackupRun, error) {
	return m.ListFunc(ctx, limit)
}

func TestRunsHandler(t *testing.T) {
	var gotLimit int
	recorder := &recorderMock{
		GetFunc: func(ctx context.Context, id types.RunID) (*model.BackupRun, error) {
			switch id {
			case "run-1":
				return &model.BackupRun{ID: id, Status: model.RunStatusSucceeded}, nil
			case "broken":
				return nil, errors.New("deadline exceeded")
			}
			return nil, nil
		},
		ListFunc: func(ctx context.Context, limit int) ([]*model.BackupRun, error) {
			gotLimit = limit
			return []*model.BackupRun{{ID: "run-2"}, {ID: "run-1"}}, nil
		},
	}
	server := newTestServer(t, &backupUseCaseMock{}, controller.WithRecorder(recorder))

	t.Run("list with default limit", func(t *testing.T) {
		w := serve(server, http.MethodGet, "/backup/runs", "")
		gt.Value(t, w.Code).Equal(http.StatusOK)
		gt.Value(t, gotLimit).Equal(20)

		var resp struct {
			Runs []model.BackupRun `json:"runs"`
		}
		gt.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		gt.Array(t, resp.Runs).Length(2)
		gt.Value(t, resp.Runs[0].ID).Equal(types.RunID("run-2"))
	})

	t.Run("limit is capped", func(t *testing.T) {
		w := serve(server, http.MethodGet, "/backup/runs?limit=1000", "")
		gt.Value(t, w.Code).Equal(http.StatusOK)
		gt.Value(t, gotLimit).Equal(100)
	})

	t.Run("invalid limit", func(t *testing.T) {
		w := serve(server, http.MethodGet, "/backup/runs?limit=abc", "")
		gt.Value(t, w.Code).Equal(http.StatusBadRequest)
	})

	t.Run("get existing run", func(t *testing.T) {
		w := serve(server, http.MethodGet, "/backup/runs/run-1", "")
		gt.Value(t, w.Code).Equal(http.StatusOK)

		var run model.BackupRun
		gt.NoError(t, json.NewDecoder(w.Body).Decode(&run))
		gt.Value(t, run.Status).Equal(model.RunStatusSucceeded)
	})

	t.Run("get unknown run", func(t *testing.T) {
		w := serve(server, http.MethodGet, "/backup/runs/nope", "")
		gt.Value(t, w.Code).Equal(http.StatusNotFound)
	})

	t.Run("recorder error", func(t *testing.T) {
		w := serve(server, http.MethodGet, "/backup/runs/broken", "")
		gt.Value(t, w.Code).Equal(http.StatusInternalServerError)
	})
}

func TestRunsHandler_NotConfigured(t *testing.T) {
	server := newTestServer(t, &backupUseCaseMock{})

	gt.Value(t, serve(server, http.MethodGet, "/backup/runs", "").Code).Equal(http.StatusNotFound)
	gt.Value(t, serve(server, http.MethodGet, "/backup/runs/run-1", "").Code).Equal(http.StatusNotFound)
}
