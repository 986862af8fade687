package usecase

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sfbackup/pkg/domain/interfaces"
	"github.com/m-mizutani/sfbackup/pkg/domain/model"
	"github.com/m-mizutani/sfbackup/pkg/domain/types"
	"github.com/m-mizutani/sfbackup/pkg/utils/logging"
	"github.com/spf13/afero"
)

const (
	// DefaultObjectName is the object name template used for the consolidated archive
	DefaultObjectName = "backups/{{.Date}}.zip"
	// DefaultStageTimeout bounds each pipeline stage
	DefaultStageTimeout = 30 * time.Minute
)

// ObjectNameData is the data available to the object name template
type ObjectNameData struct {
	Date  string // 2006-01-02
	Time  string // 150405
	RunID types.RunID
}

// Backup runs the export backup pipeline: extract links, download, consolidate and hand
// the archive to the sink.
type Backup struct {
	extractor    interfaces.LinkExtractor
	downloader   interfaces.Downloader
	consolidator interfaces.Consolidator
	sink         interfaces.Sink
	fs           afero.Fs

	workDir      string
	objectName   string
	stageTimeout time.Duration
	recorders    []interfaces.RunRecorder
	notifiers    []interfaces.Notifier
	now          func() time.Time

	nameTmpl *template.Template
}

var _ interfaces.BackupUseCase = (*Backup)(nil)

// BackupOption is a functional option for Backup
type BackupOption func(*Backup)

// WithWorkDir sets where exports are downloaded and the consolidated archive is written
func WithWorkDir(dir string) BackupOption {
	return func(b *Backup) {
		b.workDir = dir
	}
}

// WithObjectName sets the text/template used to name the stored archive
func WithObjectName(tmpl string) BackupOption {
	return func(b *Backup) {
		b.objectName = tmpl
	}
}

// WithStageTimeout bounds every stage. Zero disables the deadline.
func WithStageTimeout(d time.Duration) BackupOption {
	return func(b *Backup) {
		b.stageTimeout = d
	}
}

// WithRecorder adds a run history recorder
func WithRecorder(r interfaces.RunRecorder) BackupOption {
	return func(b *Backup) {
		b.recorders = append(b.recorders, r)
	}
}

// WithNotifier adds a notifier told about every finished run
func WithNotifier(n interfaces.Notifier) BackupOption {
	return func(b *Backup) {
		b.notifiers = append(b.notifiers, n)
	}
}

// WithBackupClock replaces time.Now, for tests
func WithBackupClock(now func() time.Time) BackupOption {
	return func(b *Backup) {
		b.now = now
	}
}

// NewBackup creates the pipeline orchestrator
func NewBackup(
	extractor interfaces.LinkExtractor,
	downloader interfaces.Downloader,
	consolidator interfaces.Consolidator,
	sink interfaces.Sink,
	fs afero.Fs,
	opts ...BackupOption,
) (*Backup, error) {
	b := &Backup{
		extractor:    extractor,
		downloader:   downloader,
		consolidator: consolidator,
		sink:         sink,
		fs:           fs,
		workDir:      filepath.Join(os.TempDir(), "sfbackup"),
		objectName:   DefaultObjectName,
		stageTimeout: DefaultStageTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}

	tmpl, err := template.New("object").Option("missingkey=error").Parse(b.objectName)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse object name template", goerr.V("template", b.objectName))
	}
	b.nameTmpl = tmpl

	return b, nil
}

// Run executes the pipeline once. The returned run is always non-nil; the error, if
// any, is a *model.PipelineError.
func (b *Backup) Run(ctx context.Context) (*model.BackupRun, error) {
	run := &model.BackupRun{
		ID:        types.NewRunID(),
		StartedAt: b.now(),
		Stage:     model.StageExtractLinks,
		Status:    model.RunStatusRunning,
	}
	ctx = logging.With(ctx, logging.From(ctx).With("run_id", run.ID))
	logging.From(ctx).Info("Starting backup run")

	b.record(ctx, run)
	err := b.execute(ctx, run)
	b.finish(ctx, run, err)

	if err != nil {
		return run, err
	}
	return run, nil
}

func (b *Backup) execute(ctx context.Context, run *model.BackupRun) error {
	links, err := b.extractLinks(ctx, run)
	if err != nil {
		return err
	}

	paths, err := b.download(ctx, run, links)
	if err != nil {
		return err
	}

	archive, err := b.consolidate(ctx, run, paths)
	if err != nil {
		return err
	}

	if err := b.handoff(ctx, run, archive); err != nil {
		return err
	}

	run.Stage = model.StageDone
	if err := b.fs.Remove(archive); err != nil {
		logging.From(ctx).Warn("Failed to remove local archive", "error", err, "path", archive)
	}

	return nil
}

func (b *Backup) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.stageTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.stageTimeout)
}

func stageError(stage model.Stage, reason model.FailureReason, err error) *model.PipelineError {
	if errors.Is(err, model.ErrInvalidState) {
		reason = model.ReasonInvalidState
	}
	return &model.PipelineError{Stage: stage, Reason: reason, Err: err}
}

func (b *Backup) extractLinks(ctx context.Context, run *model.BackupRun) ([]string, error) {
	run.Stage = model.StageExtractLinks
	ctx, cancel := b.stageContext(ctx)
	defer cancel()

	result, err := b.extractor.Extract(ctx)
	if err != nil {
		return nil, stageError(run.Stage, model.ReasonExtractFailed, err)
	}
	if result == nil || !result.Success {
		return nil, stageError(run.Stage, model.ReasonExtractFailed, goerr.New("export page could not be read"))
	}
	if !result.HasLinks() {
		return nil, &model.PipelineError{Stage: run.Stage, Reason: model.ReasonNoExports}
	}

	run.LinkCount = len(result.Links)
	logging.From(ctx).Info("Found export links", "count", run.LinkCount)
	return result.Links, nil
}

func (b *Backup) download(ctx context.Context, run *model.BackupRun, links []string) ([]string, error) {
	run.Stage = model.StageDownload
	ctx, cancel := b.stageContext(ctx)
	defer cancel()

	dir := filepath.Join(b.workDir, run.ID.String())
	result, err := b.downloader.Download(ctx, links, dir)
	if err != nil {
		return nil, stageError(run.Stage, model.ReasonDownloadFailed, err)
	}
	if result == nil || !result.Success {
		return nil, stageError(run.Stage, model.ReasonDownloadFailed,
			goerr.New("one or more exports could not be downloaded", goerr.V("dir", dir)))
	}

	logging.From(ctx).Info("Downloaded exports", "count", result.Count(), "dir", dir)
	return result.Paths, nil
}

func (b *Backup) consolidate(ctx context.Context, run *model.BackupRun, paths []string) (string, error) {
	run.Stage = model.StageConsolidate
	ctx, cancel := b.stageContext(ctx)
	defer cancel()

	output := filepath.Join(b.workDir, "sfbackup-"+run.ID.String()+".zip")
	archive, err := b.consolidator.Consolidate(ctx, paths, output)
	if err != nil {
		return "", stageError(run.Stage, model.ReasonConsolidateFailed, err)
	}

	// Sources are gone once consolidated, leaving the per-run directory empty
	dir := filepath.Join(b.workDir, run.ID.String())
	if err := b.fs.Remove(dir); err != nil {
		logging.From(ctx).Debug("Download directory not removed", "error", err, "dir", dir)
	}

	return archive, nil
}

func (b *Backup) handoff(ctx context.Context, run *model.BackupRun, archive string) error {
	run.Stage = model.StageHandoff
	ctx, cancel := b.stageContext(ctx)
	defer cancel()

	name, err := b.renderObjectName(run)
	if err != nil {
		return stageError(run.Stage, model.ReasonHandoffFailed, err)
	}

	f, err := b.fs.Open(archive)
	if err != nil {
		return stageError(run.Stage, model.ReasonHandoffFailed,
			goerr.Wrap(err, "failed to open consolidated archive", goerr.V("path", archive)))
	}
	defer f.Close()

	if err := b.sink.Write(ctx, name, f); err != nil {
		logging.From(ctx).Error("Consolidated archive kept locally", "path", archive)
		return stageError(run.Stage, model.ReasonHandoffFailed, err)
	}

	run.ObjectName = name
	logging.From(ctx).Info("Stored consolidated archive", "object", name)
	return nil
}

func (b *Backup) renderObjectName(run *model.BackupRun) (string, error) {
	data := ObjectNameData{
		Date:  run.StartedAt.Format("2006-01-02"),
		Time:  run.StartedAt.Format("150405"),
		RunID: run.ID,
	}

	var buf bytes.Buffer
	if err := b.nameTmpl.Execute(&buf, data); err != nil {
		return "", goerr.Wrap(err, "failed to render object name", goerr.V("template", b.objectName))
	}
	if buf.Len() == 0 {
		return "", goerr.New("object name is empty", goerr.V("template", b.objectName))
	}

	return buf.String(), nil
}

func (b *Backup) finish(ctx context.Context, run *model.BackupRun, err error) {
	logger := logging.From(ctx)
	run.FinishedAt = b.now()

	var pipelineErr *model.PipelineError
	switch {
	case err == nil:
		run.Status = model.RunStatusSucceeded
		logger.Info("Backup run succeeded", "object", run.ObjectName, "duration", run.Duration())

	case errors.As(err, &pipelineErr) && pipelineErr.IsNoExports():
		run.Status = model.RunStatusSkipped
		run.Reason = pipelineErr.Reason
		logger.Warn("No export available, nothing to back up")

	default:
		run.Status = model.RunStatusFailed
		run.Error = err.Error()
		if errors.As(err, &pipelineErr) {
			run.Reason = pipelineErr.Reason
		}
		logger.Error("Backup run failed", "error", err, "stage", run.Stage, "reason", run.Reason)
	}

	// Report even when the run itself was cancelled
	ctx = context.WithoutCancel(ctx)
	b.record(ctx, run)
	for _, n := range b.notifiers {
		if nErr := n.Notify(ctx, run, err); nErr != nil {
			logger.Warn("Failed to send notification", "error", nErr)
		}
	}
}

func (b *Backup) record(ctx context.Context, run *model.BackupRun) {
	for _, r := range b.recorders {
		if err := r.Record(ctx, run); err != nil {
			logging.From(ctx).Warn("Failed to record backup run", "error", err)
		}
	}
}
