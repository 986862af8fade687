package blob

import (
	"context"
	"io"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sfbackup/pkg/domain/interfaces"
	"github.com/m-mizutani/sfbackup/pkg/utils/logging"
	"gocloud.dev/blob"

	// Bucket URL schemes: file://, mem://, gs://, s3://
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// Sink writes backups into a gocloud.dev bucket
type Sink struct {
	bucket *blob.Bucket
}

var _ interfaces.Sink = (*Sink)(nil)

// Open opens the bucket at bucketURL, e.g. "gs://my-bucket" or "file:///var/backup"
func Open(ctx context.Context, bucketURL string) (*Sink, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open bucket", goerr.V("url", bucketURL))
	}
	return &Sink{bucket: bucket}, nil
}

// New wraps an already opened bucket
func New(bucket *blob.Bucket) *Sink {
	return &Sink{bucket: bucket}
}

// Write streams r into the object name. The object only becomes visible when the whole
// stream has been written.
func (s *Sink) Write(ctx context.Context, name string, r io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := s.bucket.NewWriter(ctx, name, &blob.WriterOptions{ContentType: "application/zip"})
	if err != nil {
		return goerr.Wrap(err, "failed to create blob writer", goerr.V("name", name))
	}

	n, err := io.Copy(w, r)
	if err != nil {
		// cancelling before Close aborts the upload
		cancel()
		_ = w.Close()
		return goerr.Wrap(err, "failed to upload backup", goerr.V("name", name))
	}

	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to finalize backup object", goerr.V("name", name))
	}

	logging.From(ctx).Info("Uploaded backup to bucket", "name", name, "size_bytes", n)
	return nil
}

// Close releases the bucket
func (s *Sink) Close() error {
	return s.bucket.Close()
}
