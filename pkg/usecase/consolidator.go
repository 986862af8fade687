package usecase

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sfbackup/pkg/domain/interfaces"
	"github.com/m-mizutani/sfbackup/pkg/domain/model"
	"github.com/m-mizutani/sfbackup/pkg/utils/logging"
	"github.com/spf13/afero"
)

// Consolidator merges several export archives into one. Entries of later archives
// overwrite entries of earlier ones with the same name.
type Consolidator struct {
	fs       afero.Fs
	tempRoot string
	progress func(done, total int)
}

var _ interfaces.Consolidator = (*Consolidator)(nil)

// ConsolidatorOption is a functional option for Consolidator
type ConsolidatorOption func(*Consolidator)

// WithTempRoot sets the parent of scratch directories and generated archives
func WithTempRoot(dir string) ConsolidatorOption {
	return func(c *Consolidator) {
		c.tempRoot = dir
	}
}

// WithProgress registers a callback invoked after each archive is extracted
func WithProgress(fn func(done, total int)) ConsolidatorOption {
	return func(c *Consolidator) {
		c.progress = fn
	}
}

// NewConsolidator creates a Consolidator operating on fs
func NewConsolidator(fs afero.Fs, opts ...ConsolidatorOption) *Consolidator {
	c := &Consolidator{
		fs:       fs,
		tempRoot: os.TempDir(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Consolidate extracts every archive in order into a fresh scratch directory, deleting
// each source after it is extracted, then packages the scratch directory into
// outputPath (generated when empty) and returns its path.
func (c *Consolidator) Consolidate(ctx context.Context, paths []string, outputPath string) (string, error) {
	logger := logging.From(ctx)

	scratch := filepath.Join(c.tempRoot, "sfbackup-scratch-"+uuid.NewString())
	if err := c.fs.MkdirAll(scratch, 0700); err != nil {
		return "", &model.ConsolidationError{Kind: model.ConsolidationExtract, Path: scratch, Err: err}
	}
	logger.Debug("Created scratch directory", "scratch", scratch)

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			c.removeScratch(ctx, scratch)
			return "", goerr.Wrap(err, "consolidation interrupted", goerr.V("path", path))
		}

		if err := c.extract(path, scratch); err != nil {
			c.removeScratch(ctx, scratch)
			return "", err
		}

		if err := c.fs.Remove(path); err != nil {
			c.removeScratch(ctx, scratch)
			return "", &model.ConsolidationError{Kind: model.ConsolidationInUse, Path: path, Err: err}
		}

		logger.Info("Extracted archive", "path", path, "done", i+1, "total", len(paths))
		if c.progress != nil {
			c.progress(i+1, len(paths))
		}
	}

	if outputPath == "" {
		outputPath = filepath.Join(c.tempRoot, "sfbackup-"+uuid.NewString()+".zip")
	}

	if err := c.pack(scratch, outputPath); err != nil {
		_ = c.fs.Remove(outputPath)
		c.removeScratch(ctx, scratch)
		return "", &model.ConsolidationError{Kind: model.ConsolidationPackaging, Path: outputPath, Err: err}
	}

	// The archive is complete at this point, so a leftover scratch directory is not fatal
	if err := c.fs.RemoveAll(scratch); err != nil {
		logger.Warn("Failed to clean up after consolidation",
			"error", &model.ConsolidationError{Kind: model.ConsolidationCleanup, Path: scratch, Err: err})
	}

	logger.Info("Consolidated archives", "output", outputPath, "archives", len(paths))
	return outputPath, nil
}

func (c *Consolidator) removeScratch(ctx context.Context, scratch string) {
	if err := c.fs.RemoveAll(scratch); err != nil {
		logging.From(ctx).Warn("Failed to remove scratch directory", "error", err, "scratch", scratch)
	}
}

func (c *Consolidator) extract(path, scratch string) error {
	corrupt := func(err error) error {
		return &model.ConsolidationError{Kind: model.ConsolidationCorrupt, Path: path, Err: err}
	}

	f, err := c.fs.Open(path)
	if err != nil {
		return corrupt(err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return corrupt(err)
	}

	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return corrupt(err)
	}

	for _, entry := range zr.File {
		if err := c.extractEntry(entry, scratch); err != nil {
			var readErr *entryReadError
			if errors.As(err, &readErr) {
				return corrupt(readErr.err)
			}
			return &model.ConsolidationError{Kind: model.ConsolidationExtract, Path: path, Err: err}
		}
	}

	return nil
}

// entryReadError marks a failure reading from the archive, as opposed to writing into
// the scratch directory
type entryReadError struct {
	err error
}

func (e *entryReadError) Error() string { return e.err.Error() }

type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}

func (c *Consolidator) extractEntry(entry *zip.File, scratch string) error {
	// Security check: prevent path traversal attacks
	dest := filepath.Join(scratch, filepath.FromSlash(entry.Name))
	if dest == filepath.Clean(scratch) {
		// names like "./" carry nothing to extract
		return nil
	}
	if !strings.HasPrefix(dest, filepath.Clean(scratch)+string(os.PathSeparator)) {
		return &entryReadError{err: goerr.New("archive entry escapes scratch directory", goerr.V("entry", entry.Name))}
	}

	if entry.FileInfo().IsDir() {
		if err := c.fs.MkdirAll(dest, 0755); err != nil {
			return goerr.Wrap(err, "failed to create directory", goerr.V("dest", dest))
		}
		return nil
	}

	rc, err := entry.Open()
	if err != nil {
		return &entryReadError{err: goerr.Wrap(err, "failed to open archive entry", goerr.V("entry", entry.Name))}
	}
	defer rc.Close()

	if err := c.fs.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return goerr.Wrap(err, "failed to create parent directories", goerr.V("dest", dest))
	}

	out, err := c.fs.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return goerr.Wrap(err, "failed to create extracted file", goerr.V("dest", dest))
	}

	src := &trackingReader{r: rc}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		if src.err != nil {
			return &entryReadError{err: goerr.Wrap(src.err, "failed to decompress archive entry", goerr.V("entry", entry.Name))}
		}
		return goerr.Wrap(err, "failed to write extracted file", goerr.V("dest", dest))
	}

	if err := out.Close(); err != nil {
		return goerr.Wrap(err, "failed to close extracted file", goerr.V("dest", dest))
	}

	return nil
}

func (c *Consolidator) pack(scratch, outputPath string) error {
	if err := c.fs.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return goerr.Wrap(err, "failed to create output directory", goerr.V("output", outputPath))
	}

	out, err := c.fs.Create(outputPath)
	if err != nil {
		return goerr.Wrap(err, "failed to create consolidated archive", goerr.V("output", outputPath))
	}

	zw := zip.NewWriter(out)
	walkErr := afero.Walk(c.fs, scratch, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(scratch, path)
		if err != nil {
			return goerr.Wrap(err, "failed to resolve entry name", goerr.V("path", path))
		}

		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     filepath.ToSlash(rel),
			Method:   zip.Deflate,
			Modified: info.ModTime(),
		})
		if err != nil {
			return goerr.Wrap(err, "failed to add archive entry", goerr.V("entry", rel))
		}

		src, err := c.fs.Open(path)
		if err != nil {
			return goerr.Wrap(err, "failed to open extracted file", goerr.V("path", path))
		}
		defer src.Close()

		if _, err := io.Copy(w, src); err != nil {
			return goerr.Wrap(err, "failed to write archive entry", goerr.V("entry", rel))
		}
		return nil
	})

	if walkErr != nil {
		_ = zw.Close()
		_ = out.Close()
		return walkErr
	}

	if err := zw.Close(); err != nil {
		_ = out.Close()
		return goerr.Wrap(err, "failed to finalize consolidated archive")
	}
	if err := out.Close(); err != nil {
		return goerr.Wrap(err, "failed to close consolidated archive")
	}

	return nil
}
