package sentry

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sfbackup/pkg/domain/interfaces"
	"github.com/m-mizutani/sfbackup/pkg/domain/model"
	"github.com/m-mizutani/sfbackup/pkg/domain/types"
	"github.com/m-mizutani/sfbackup/pkg/utils/logging"
)

// Reporter sends failed backup runs to Sentry. Succeeded and skipped runs are ignored.
type Reporter struct {
	hub          *sentry.Hub
	flushTimeout time.Duration
}

var _ interfaces.Notifier = (*Reporter)(nil)

// New creates a Reporter. Release defaults to the application version.
func New(opts sentry.ClientOptions) (*Reporter, error) {
	if opts.Release == "" {
		opts.Release = types.AppName + "@" + types.Version
	}

	client, err := sentry.NewClient(opts)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create sentry client")
	}

	return &Reporter{
		hub:          sentry.NewHub(client, sentry.NewScope()),
		flushTimeout: 5 * time.Second,
	}, nil
}

// Notify captures runErr when the run failed
func (r *Reporter) Notify(ctx context.Context, run *model.BackupRun, runErr error) error {
	if runErr == nil || run.Status != model.RunStatusFailed {
		return nil
	}

	var eventID *sentry.EventID
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("run_id", run.ID.String())
		scope.SetTag("stage", string(run.Stage))
		scope.SetTag("reason", string(run.Reason))
		scope.SetContext("backup_run", sentry.Context{
			"started_at":  run.StartedAt,
			"finished_at": run.FinishedAt,
			"link_count":  run.LinkCount,
		})
		eventID = r.hub.CaptureException(runErr)
	})

	if eventID != nil {
		logging.From(ctx).Info("Reported failed run to Sentry", "event_id", *eventID)
	}
	return nil
}

// Flush waits for buffered events to be delivered
func (r *Reporter) Flush() bool {
	return r.hub.Flush(r.flushTimeout)
}
