package config_test

import (
	"context"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/sfbackup/pkg/cli/config"
)

func TestStorage_Build(t *testing.T) {
	ctx := context.Background()

	t.Run("bucket URL", func(t *testing.T) {
		cfg := &config.Storage{BucketURL: "mem://"}
		sink, closer, err := cfg.Build(ctx)
		gt.NoError(t, err)
		defer closer.Close()

		gt.NoError(t, sink.Write(ctx, "backups/test.zip", strings.NewReader("data")))
	})

	t.Run("nothing configured", func(t *testing.T) {
		_, _, err := (&config.Storage{}).Build(ctx)
		gt.Error(t, err)
	})

	t.Run("both configured", func(t *testing.T) {
		_, _, err := (&config.Storage{GCSBucket: "b", BucketURL: "mem://"}).Build(ctx)
		gt.Error(t, err)
	})
}

func TestOptionalBuilders(t *testing.T) {
	recorder, err := (&config.History{}).Build(context.Background())
	gt.NoError(t, err)
	gt.True(t, recorder == nil)

	notifier, err := (&config.Slack{}).Build()
	gt.NoError(t, err)
	gt.True(t, notifier == nil)

	reporter, err := (&config.Sentry{}).Build()
	gt.NoError(t, err)
	gt.True(t, reporter == nil)
}
