package config

import (
	sentrygo "github.com/getsentry/sentry-go"
	"github.com/m-mizutani/sfbackup/pkg/infra/sentry"
	"github.com/m-mizutani/sfbackup/pkg/infra/slack"
	"github.com/urfave/cli/v3"
)

// Slack holds Slack notification configuration
type Slack struct {
	WebhookURL string `masq:"secret"`
	Channel    string
}

// Flags returns CLI flags for Slack configuration
func (c *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-webhook-url",
			Usage:       "Incoming webhook receiving run outcomes",
			Destination: &c.WebhookURL,
			Sources:     cli.EnvVars("SFBACKUP_SLACK_WEBHOOK_URL"),
		},
		&cli.StringFlag{
			Name:        "slack-channel",
			Usage:       "Channel overriding the webhook default",
			Destination: &c.Channel,
			Sources:     cli.EnvVars("SFBACKUP_SLACK_CHANNEL"),
		},
	}
}

// Build creates the notifier, or returns nil when no webhook is configured
func (c *Slack) Build() (*slack.Notifier, error) {
	if c.WebhookURL == "" {
		return nil, nil
	}
	return slack.New(c.WebhookURL, slack.WithChannel(c.Channel))
}

// Sentry holds error reporting configuration
type Sentry struct {
	DSN         string `masq:"secret"`
	Environment string
}

// Flags returns CLI flags for Sentry configuration
func (c *Sentry) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "sentry-dsn",
			Usage:       "Sentry DSN receiving failed runs",
			Destination: &c.DSN,
			Sources:     cli.EnvVars("SFBACKUP_SENTRY_DSN"),
		},
		&cli.StringFlag{
			Name:        "sentry-env",
			Usage:       "Sentry environment",
			Value:       "production",
			Destination: &c.Environment,
			Sources:     cli.EnvVars("SFBACKUP_SENTRY_ENV"),
		},
	}
}

// Build creates the reporter, or returns nil when no DSN is configured
func (c *Sentry) Build() (*sentry.Reporter, error) {
	if c.DSN == "" {
		return nil, nil
	}
	return sentry.New(sentrygo.ClientOptions{
		Dsn:         c.DSN,
		Environment: c.Environment,
	})
}
