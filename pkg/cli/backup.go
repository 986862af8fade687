package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sfbackup/pkg/cli/config"
	"github.com/m-mizutani/sfbackup/pkg/domain/interfaces"
	"github.com/m-mizutani/sfbackup/pkg/domain/model"
	"github.com/m-mizutani/sfbackup/pkg/usecase"
	"github.com/m-mizutani/sfbackup/pkg/utils/logging"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
)

// backupConfig gathers every flag group the pipeline needs
type backupConfig struct {
	salesforce config.Salesforce
	export     config.Export
	storage    config.Storage
	history    config.History
	slack      config.Slack
	sentry     config.Sentry
}

func (c *backupConfig) Flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, c.salesforce.Flags()...)
	flags = append(flags, c.export.Flags()...)
	flags = append(flags, c.storage.Flags()...)
	flags = append(flags, c.history.Flags()...)
	flags = append(flags, c.slack.Flags()...)
	flags = append(flags, c.sentry.Flags()...)
	return flags
}

// pipeline is the wired backup use case and the resources it holds
type pipeline struct {
	backup   *usecase.Backup
	recorder interfaces.RunRecorder
	closers  []io.Closer
	flushers []func() bool
}

func (p *pipeline) Close(ctx context.Context) {
	for _, flush := range p.flushers {
		flush()
	}
	for _, c := range p.closers {
		if err := c.Close(); err != nil {
			logging.From(ctx).Warn("Failed to close resource", "error", err)
		}
	}
}

// build wires the pipeline from configuration
func (c *backupConfig) build(ctx context.Context) (_ *pipeline, err error) {
	logger := logging.From(ctx)
	p := &pipeline{}
	defer func() {
		if err != nil {
			p.Close(ctx)
		}
	}()

	logger.Info("Configuration", slog.Any("salesforce", c.salesforce))

	client, err := c.salesforce.Build(ctx)
	if err != nil {
		return nil, err
	}

	fs := afero.NewOsFs()
	svc, err := c.export.Service(fs)
	if err != nil {
		return nil, err
	}

	extractor, err := usecase.NewLinkExtractor(client, svc.Page, svc.LinkPattern)
	if err != nil {
		return nil, err
	}

	downloader, err := c.export.Downloader(client, fs)
	if err != nil {
		return nil, err
	}

	consolidator := usecase.NewConsolidator(fs,
		usecase.WithTempRoot(c.export.WorkDir),
		usecase.WithProgress(func(done, total int) {
			logger.Debug("Consolidation progress", "done", done, "total", total)
		}),
	)

	sink, closer, err := c.storage.Build(ctx)
	if err != nil {
		return nil, err
	}
	p.closers = append(p.closers, closer)

	opts := []usecase.BackupOption{
		usecase.WithWorkDir(c.export.WorkDir),
		usecase.WithObjectName(c.export.ObjectName),
		usecase.WithStageTimeout(c.export.StageTimeout),
	}

	recorder, err := c.history.Build(ctx, c.storage.ClientOptions()...)
	if err != nil {
		return nil, err
	}
	if recorder != nil {
		p.recorder = recorder
		p.closers = append(p.closers, recorder)
		opts = append(opts, usecase.WithRecorder(recorder))
	}

	slackNotifier, err := c.slack.Build()
	if err != nil {
		return nil, err
	}
	if slackNotifier != nil {
		opts = append(opts, usecase.WithNotifier(slackNotifier))
	}

	reporter, err := c.sentry.Build()
	if err != nil {
		return nil, err
	}
	if reporter != nil {
		p.flushers = append(p.flushers, reporter.Flush)
		opts = append(opts, usecase.WithNotifier(reporter))
	}

	backup, err := usecase.NewBackup(extractor, downloader, consolidator, sink, fs, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create backup pipeline")
	}
	p.backup = backup

	return p, nil
}

// isNoExports reports whether err only says that nothing was available to back up
func isNoExports(err error) bool {
	var pipelineErr *model.PipelineError
	return errors.As(err, &pipelineErr) && pipelineErr.IsNoExports()
}
