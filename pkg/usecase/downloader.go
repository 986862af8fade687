package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sfbackup/pkg/domain/interfaces"
	"github.com/m-mizutani/sfbackup/pkg/domain/model"
	"github.com/m-mizutani/sfbackup/pkg/utils/logging"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of simultaneous downloads of ConcurrentDownloader
const DefaultConcurrency = 4

// ExportFileName returns the local file name of the i-th export
func ExportFileName(i int) string {
	return fmt.Sprintf("export%d.zip", i)
}

// SerialDownloader downloads exports one after another and stops at the first failure
type SerialDownloader struct {
	client interfaces.OrgClient
	fs     afero.Fs
}

var _ interfaces.Downloader = (*SerialDownloader)(nil)

// NewSerialDownloader creates a SerialDownloader writing to fs
func NewSerialDownloader(client interfaces.OrgClient, fs afero.Fs) *SerialDownloader {
	return &SerialDownloader{client: client, fs: fs}
}

// Download fetches urls in order. Files downloaded before a failure are left in dir.
func (d *SerialDownloader) Download(ctx context.Context, urls []string, dir string) (*model.DownloadResult, error) {
	logger := logging.From(ctx)

	if err := d.fs.MkdirAll(dir, 0755); err != nil {
		return nil, goerr.Wrap(err, "failed to create download directory", goerr.V("dir", dir))
	}

	paths := make([]string, 0, len(urls))
	for i, u := range urls {
		path := filepath.Join(dir, ExportFileName(i))
		if err := fetchExport(ctx, d.client, d.fs, u, path); err != nil {
			if errors.Is(err, model.ErrInvalidState) {
				return nil, err
			}
			logger.Error("Failed to download export", "error", err, "index", i, "path", path)
			return &model.DownloadResult{Success: false}, nil
		}

		logger.Info("Downloaded export", "index", i, "total", len(urls), "path", path)
		paths = append(paths, path)
	}

	return &model.DownloadResult{Success: true, Paths: paths}, nil
}

// ConcurrentDownloader downloads exports in parallel. The first failure cancels the
// downloads still in flight.
type ConcurrentDownloader struct {
	client interfaces.OrgClient
	fs     afero.Fs
	limit  int
}

var _ interfaces.Downloader = (*ConcurrentDownloader)(nil)

// ConcurrentOption is a functional option for ConcurrentDownloader
type ConcurrentOption func(*ConcurrentDownloader)

// WithConcurrency caps the number of simultaneous downloads. n < 1 is ignored.
func WithConcurrency(n int) ConcurrentOption {
	return func(d *ConcurrentDownloader) {
		if n > 0 {
			d.limit = n
		}
	}
}

// NewConcurrentDownloader creates a ConcurrentDownloader writing to fs
func NewConcurrentDownloader(client interfaces.OrgClient, fs afero.Fs, opts ...ConcurrentOption) *ConcurrentDownloader {
	d := &ConcurrentDownloader{
		client: client,
		fs:     fs,
		limit:  DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download fetches all urls concurrently. Paths keep the order of urls.
func (d *ConcurrentDownloader) Download(ctx context.Context, urls []string, dir string) (*model.DownloadResult, error) {
	logger := logging.From(ctx)

	if err := d.fs.MkdirAll(dir, 0755); err != nil {
		return nil, goerr.Wrap(err, "failed to create download directory", goerr.V("dir", dir))
	}

	paths := make([]string, len(urls))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(d.limit)

	for i, u := range urls {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}

			path := filepath.Join(dir, ExportFileName(i))
			if err := fetchExport(egCtx, d.client, d.fs, u, path); err != nil {
				return goerr.Wrap(err, "failed to download export", goerr.V("index", i))
			}

			logger.Info("Downloaded export", "index", i, "total", len(urls), "path", path)
			paths[i] = path
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		if errors.Is(err, model.ErrInvalidState) {
			return nil, err
		}
		logger.Error("Concurrent download failed", "error", err, "dir", dir)
		return &model.DownloadResult{Success: false}, nil
	}

	return &model.DownloadResult{Success: true, Paths: paths}, nil
}

// fetchExport streams one export into path. A partially written file is removed.
func fetchExport(ctx context.Context, client interfaces.OrgClient, fs afero.Fs, url, path string) error {
	resp, err := client.Get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return goerr.New("unexpected status code",
			goerr.V("status", resp.StatusCode),
			goerr.V("url", url))
	}

	out, err := fs.Create(path)
	if err != nil {
		return goerr.Wrap(err, "failed to create export file", goerr.V("path", path))
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		_ = fs.Remove(path)
		return goerr.Wrap(err, "failed to write export file", goerr.V("path", path))
	}

	if err := out.Close(); err != nil {
		_ = fs.Remove(path)
		return goerr.Wrap(err, "failed to close export file", goerr.V("path", path))
	}

	return nil
}
