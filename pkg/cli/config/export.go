package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sfbackup/pkg/domain/interfaces"
	"github.com/m-mizutani/sfbackup/pkg/domain/types"
	"github.com/m-mizutani/sfbackup/pkg/usecase"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
)

//go:embed export_service.toml
var defaultExportService []byte

// Download strategies
const (
	StrategySerial     = "serial"
	StrategyConcurrent = "concurrent"
)

// ExportService describes where export links are published
type ExportService struct {
	Page        string `toml:"page"`
	LinkPattern string `toml:"link_pattern"`
}

// Export holds configuration of the backup pipeline
type Export struct {
	ServiceFile  string
	Page         string
	LinkPattern  string
	Strategy     string
	Concurrency  int
	WorkDir      string
	StageTimeout time.Duration
	ObjectName   string
}

// Flags returns CLI flags for export configuration
func (c *Export) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "export-service-file",
			Usage:       "TOML file overriding the export page and link pattern",
			Destination: &c.ServiceFile,
			Sources:     cli.EnvVars("SFBACKUP_EXPORT_SERVICE_FILE"),
		},
		&cli.StringFlag{
			Name:        "export-page",
			Usage:       "Path of the data export status page",
			Destination: &c.Page,
			Sources:     cli.EnvVars("SFBACKUP_EXPORT_PAGE"),
		},
		&cli.StringFlag{
			Name:        "export-link-pattern",
			Usage:       "Regular expression with a relurl group matching export links",
			Destination: &c.LinkPattern,
			Sources:     cli.EnvVars("SFBACKUP_EXPORT_LINK_PATTERN"),
		},
		&cli.StringFlag{
			Name:        "download-strategy",
			Usage:       "Download strategy (serial, concurrent)",
			Value:       StrategyConcurrent,
			Destination: &c.Strategy,
			Sources:     cli.EnvVars("SFBACKUP_DOWNLOAD_STRATEGY"),
		},
		&cli.IntFlag{
			Name:        "download-concurrency",
			Usage:       "Maximum simultaneous downloads of the concurrent strategy",
			Value:       usecase.DefaultConcurrency,
			Destination: &c.Concurrency,
			Sources:     cli.EnvVars("SFBACKUP_DOWNLOAD_CONCURRENCY"),
		},
		&cli.StringFlag{
			Name:        "work-dir",
			Usage:       "Directory for downloads and the consolidated archive",
			Value:       filepath.Join(os.TempDir(), types.AppName),
			Destination: &c.WorkDir,
			Sources:     cli.EnvVars("SFBACKUP_WORK_DIR"),
		},
		&cli.DurationFlag{
			Name:        "stage-timeout",
			Usage:       "Deadline of each pipeline stage (0 to disable)",
			Value:       usecase.DefaultStageTimeout,
			Destination: &c.StageTimeout,
			Sources:     cli.EnvVars("SFBACKUP_STAGE_TIMEOUT"),
		},
		&cli.StringFlag{
			Name:        "object-name",
			Usage:       "Object name template of the stored backup ({{.Date}}, {{.Time}}, {{.RunID}})",
			Value:       usecase.DefaultObjectName,
			Destination: &c.ObjectName,
			Sources:     cli.EnvVars("SFBACKUP_OBJECT_NAME"),
		},
	}
}

// Service resolves the export service from the embedded defaults, the service file and
// the flags, in increasing order of precedence. The service file is read from fs.
func (c *Export) Service(fs afero.Fs) (*ExportService, error) {
	var svc ExportService
	if err := toml.Unmarshal(defaultExportService, &svc); err != nil {
		return nil, goerr.Wrap(err, "failed to parse default export service")
	}

	if c.ServiceFile != "" {
		data, err := afero.ReadFile(fs, c.ServiceFile)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read export service file", goerr.V("path", c.ServiceFile))
		}
		if err := toml.Unmarshal(data, &svc); err != nil {
			return nil, goerr.Wrap(err, "failed to parse export service file", goerr.V("path", c.ServiceFile))
		}
	}

	if c.Page != "" {
		svc.Page = c.Page
	}
	if c.LinkPattern != "" {
		svc.LinkPattern = c.LinkPattern
	}

	return &svc, nil
}

// Downloader builds the configured download strategy
func (c *Export) Downloader(client interfaces.OrgClient, fs afero.Fs) (interfaces.Downloader, error) {
	switch c.Strategy {
	case StrategySerial:
		return usecase.NewSerialDownloader(client, fs), nil
	case StrategyConcurrent, "":
		return usecase.NewConcurrentDownloader(client, fs, usecase.WithConcurrency(c.Concurrency)), nil
	default:
		return nil, goerr.New("unknown download strategy", goerr.V("strategy", c.Strategy))
	}
}
