package interfaces

import (
	"context"
	"io"

	"github.com/m-mizutani/sfbackup/pkg/domain/model"
	"github.com/m-mizutani/sfbackup/pkg/domain/types"
)

// Sink stores the consolidated backup. Write is all-or-nothing: if it returns an error
// no object is left under name.
type Sink interface {
	Write(ctx context.Context, name string, r io.Reader) error
}

// RunRecorder persists the history of backup runs
type RunRecorder interface {
	Record(ctx context.Context, run *model.BackupRun) error
	// Get returns nil without error when the run does not exist
	Get(ctx context.Context, id types.RunID) (*model.BackupRun, error)
	List(ctx context.Context, limit int) ([]*model.BackupRun, error)
}

// Notifier is told about every finished run
type Notifier interface {
	Notify(ctx context.Context, run *model.BackupRun, runErr error) error
}
