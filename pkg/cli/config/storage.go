package config

import (
	"context"
	"io"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sfbackup/pkg/domain/interfaces"
	"github.com/m-mizutani/sfbackup/pkg/infra/blob"
	"github.com/m-mizutani/sfbackup/pkg/infra/gcs"
	"github.com/urfave/cli/v3"
	"google.golang.org/api/option"
)

// Storage holds configuration of where backups are stored
type Storage struct {
	GCSBucket       string
	GCSPrefix       string
	BucketURL       string
	CredentialsFile string
}

// Flags returns CLI flags for storage configuration
func (c *Storage) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gcs-bucket",
			Usage:       "Cloud Storage bucket receiving backups",
			Destination: &c.GCSBucket,
			Sources:     cli.EnvVars("SFBACKUP_GCS_BUCKET"),
		},
		&cli.StringFlag{
			Name:        "gcs-prefix",
			Usage:       "Object name prefix in the Cloud Storage bucket",
			Destination: &c.GCSPrefix,
			Sources:     cli.EnvVars("SFBACKUP_GCS_PREFIX"),
		},
		&cli.StringFlag{
			Name:        "bucket-url",
			Usage:       "Bucket URL receiving backups (file://, mem://, gs://, s3://)",
			Destination: &c.BucketURL,
			Sources:     cli.EnvVars("SFBACKUP_BUCKET_URL"),
		},
		&cli.StringFlag{
			Name:        "google-credentials-file",
			Usage:       "Service account key file for Google Cloud clients",
			Destination: &c.CredentialsFile,
			Sources:     cli.EnvVars("SFBACKUP_GOOGLE_CREDENTIALS_FILE", "GOOGLE_APPLICATION_CREDENTIALS"),
		},
	}
}

// ClientOptions returns options shared by Google Cloud clients
func (c *Storage) ClientOptions() []option.ClientOption {
	if c.CredentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(c.CredentialsFile)}
}

// Build creates the sink. The returned closer releases the underlying client.
func (c *Storage) Build(ctx context.Context) (interfaces.Sink, io.Closer, error) {
	switch {
	case c.GCSBucket != "" && c.BucketURL != "":
		return nil, nil, goerr.New("--gcs-bucket and --bucket-url are mutually exclusive")

	case c.GCSBucket != "":
		sink, err := gcs.New(ctx, c.GCSBucket, c.ClientOptions(), gcs.WithPrefix(c.GCSPrefix))
		if err != nil {
			return nil, nil, err
		}
		return sink, sink, nil

	case c.BucketURL != "":
		sink, err := blob.Open(ctx, c.BucketURL)
		if err != nil {
			return nil, nil, err
		}
		return sink, sink, nil

	default:
		return nil, nil, goerr.New("either --gcs-bucket or --bucket-url is required")
	}
}
