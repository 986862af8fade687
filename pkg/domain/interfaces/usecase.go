package interfaces

import (
	"context"

	"github.com/m-mizutani/sfbackup/pkg/domain/model"
)

// LinkExtractor discovers export download links on the export status page
type LinkExtractor interface {
	Extract(ctx context.Context) (*model.ExtractionResult, error)
}

// Downloader downloads every URL into dir as export{i}.zip
type Downloader interface {
	Download(ctx context.Context, urls []string, dir string) (*model.DownloadResult, error)
}

// Consolidator merges archives into one. An empty outputPath makes it generate one.
// The returned path is the consolidated archive.
type Consolidator interface {
	Consolidate(ctx context.Context, paths []string, outputPath string) (string, error)
}

// BackupUseCase runs the whole pipeline once
type BackupUseCase interface {
	Run(ctx context.Context) (*model.BackupRun, error)
}
