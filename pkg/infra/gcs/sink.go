package gcs

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sfbackup/pkg/domain/interfaces"
	"github.com/m-mizutani/sfbackup/pkg/utils/logging"
	"google.golang.org/api/option"
)

// Sink uploads backups to a Google Cloud Storage bucket
type Sink struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ interfaces.Sink = (*Sink)(nil)

// Option is a functional option for Sink
type Option func(*Sink)

// WithPrefix prepends prefix to every object name
func WithPrefix(prefix string) Option {
	return func(s *Sink) {
		s.prefix = prefix
	}
}

// New creates a Sink for bucket. clientOpts are passed to the storage client, e.g.
// option.WithCredentialsFile.
func New(ctx context.Context, bucket string, clientOpts []option.ClientOption, opts ...Option) (*Sink, error) {
	if bucket == "" {
		return nil, goerr.New("bucket name is required")
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	s := &Sink{client: client, bucket: bucket}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Write uploads r as one object. A failed copy cancels the upload so no partial object
// is committed.
func (s *Sink) Write(ctx context.Context, name string, r io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	objName := s.prefix + name
	w := s.client.Bucket(s.bucket).Object(objName).NewWriter(ctx)
	w.ContentType = "application/zip"

	n, err := io.Copy(w, r)
	if err != nil {
		cancel()
		_ = w.Close()
		return goerr.Wrap(err, "failed to upload backup",
			goerr.V("bucket", s.bucket),
			goerr.V("object", objName))
	}

	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to finalize backup object",
			goerr.V("bucket", s.bucket),
			goerr.V("object", objName))
	}

	logging.From(ctx).Info("Uploaded backup to Cloud Storage",
		"bucket", s.bucket,
		"object", objName,
		"size_bytes", n,
	)
	return nil
}

// Close closes the storage client
func (s *Sink) Close() error {
	return s.client.Close()
}
