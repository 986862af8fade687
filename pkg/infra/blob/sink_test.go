package blob_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/sfbackup/pkg/infra/blob"
	"gocloud.dev/blob/memblob"
)

type failingReader struct {
	r io.Reader
}

func (f *failingReader) Read(p []byte) (int, error) {
	n, err := f.r.Read(p)
	if err == io.EOF {
		return n, errors.New("archive truncated")
	}
	return n, err
}

func TestSink_Write(t *testing.T) {
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	sink := blob.New(bucket)
	defer sink.Close()

	gt.NoError(t, sink.Write(ctx, "backups/2026-03-01.zip", strings.NewReader("zip data")))

	data, err := bucket.ReadAll(ctx, "backups/2026-03-01.zip")
	gt.NoError(t, err)
	gt.Value(t, string(data)).Equal("zip data")
}

func TestSink_Write_AbortsOnReadError(t *testing.T) {
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	sink := blob.New(bucket)
	defer sink.Close()

	err := sink.Write(ctx, "backups/broken.zip", &failingReader{r: bytes.NewReader([]byte("partial"))})
	gt.Error(t, err)

	exists, err := bucket.Exists(ctx, "backups/broken.zip")
	gt.NoError(t, err)
	gt.False(t, exists)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	sink, err := blob.Open(ctx, "mem://")
	gt.NoError(t, err)
	defer sink.Close()
	gt.NoError(t, sink.Write(ctx, "a.zip", strings.NewReader("a")))

	_, err = blob.Open(ctx, "unknown-scheme://bucket")
	gt.Error(t, err)
}
