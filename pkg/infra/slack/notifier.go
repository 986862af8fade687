package slack

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sfbackup/pkg/domain/interfaces"
	"github.com/m-mizutani/sfbackup/pkg/domain/model"
	"github.com/m-mizutani/sfbackup/pkg/domain/types"
	"github.com/slack-go/slack"
)

// Notifier posts the outcome of each backup run to a Slack incoming webhook
type Notifier struct {
	webhookURL string
	channel    string
}

var _ interfaces.Notifier = (*Notifier)(nil)

// Option is a functional option for Notifier
type Option func(*Notifier)

// WithChannel overrides the webhook's default channel
func WithChannel(channel string) Option {
	return func(n *Notifier) {
		n.channel = channel
	}
}

// New creates a Notifier
func New(webhookURL string, opts ...Option) (*Notifier, error) {
	if webhookURL == "" {
		return nil, goerr.New("slack webhook URL is required")
	}

	n := &Notifier{webhookURL: webhookURL}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Notify posts one message for the run
func (n *Notifier) Notify(ctx context.Context, run *model.BackupRun, runErr error) error {
	msg := &slack.WebhookMessage{
		Channel:     n.channel,
		Text:        summary(run),
		Attachments: []slack.Attachment{attachment(run, runErr)},
	}

	if err := slack.PostWebhookContext(ctx, n.webhookURL, msg); err != nil {
		return goerr.Wrap(err, "failed to post slack message", goerr.V("run_id", run.ID))
	}
	return nil
}

func summary(run *model.BackupRun) string {
	switch run.Status {
	case model.RunStatusSucceeded:
		return fmt.Sprintf("%s: backup stored as %s", types.AppName, run.ObjectName)
	case model.RunStatusSkipped:
		return fmt.Sprintf("%s: no export available yet, backup skipped", types.AppName)
	default:
		return fmt.Sprintf("%s: backup failed at %s (%s)", types.AppName, run.Stage, run.Reason)
	}
}

func attachment(run *model.BackupRun, runErr error) slack.Attachment {
	color := "good"
	switch run.Status {
	case model.RunStatusSkipped:
		color = "warning"
	case model.RunStatusFailed:
		color = "danger"
	}

	fields := []slack.AttachmentField{
		{Title: "Run ID", Value: run.ID.String(), Short: true},
		{Title: "Duration", Value: run.Duration().String(), Short: true},
		{Title: "Exports", Value: fmt.Sprintf("%d", run.LinkCount), Short: true},
	}
	if runErr != nil && run.Status == model.RunStatusFailed {
		fields = append(fields, slack.AttachmentField{Title: "Error", Value: runErr.Error()})
	}

	return slack.Attachment{
		Color:  color,
		Fields: fields,
	}
}
