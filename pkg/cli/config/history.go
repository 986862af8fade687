package config

import (
	"context"

	"github.com/m-mizutani/sfbackup/pkg/infra/firestore"
	"github.com/urfave/cli/v3"
	"google.golang.org/api/option"
)

// History holds configuration of the run history store
type History struct {
	ProjectID  string
	DatabaseID string
	Collection string
}

// Flags returns CLI flags for history configuration
func (c *History) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Project of the Firestore database recording backup runs",
			Destination: &c.ProjectID,
			Sources:     cli.EnvVars("SFBACKUP_FIRESTORE_PROJECT_ID"),
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore database ID",
			Destination: &c.DatabaseID,
			Sources:     cli.EnvVars("SFBACKUP_FIRESTORE_DATABASE_ID"),
		},
		&cli.StringFlag{
			Name:        "firestore-collection",
			Usage:       "Collection storing backup runs",
			Value:       firestore.DefaultCollection,
			Destination: &c.Collection,
			Sources:     cli.EnvVars("SFBACKUP_FIRESTORE_COLLECTION"),
		},
	}
}

// Build creates the recorder, or returns nil when history is not configured
func (c *History) Build(ctx context.Context, opts ...option.ClientOption) (*firestore.Recorder, error) {
	if c.ProjectID == "" {
		return nil, nil
	}
	return firestore.New(ctx, c.ProjectID, c.DatabaseID, c.Collection, opts...)
}
