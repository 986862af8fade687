package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sfbackup/pkg/domain/interfaces"
	"github.com/m-mizutani/sfbackup/pkg/domain/model"
	"github.com/m-mizutani/sfbackup/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultCollection stores backup runs
const DefaultCollection = "backup_runs"

// Recorder keeps the backup run history in Firestore, one document per run
type Recorder struct {
	client     *firestore.Client
	collection string
}

var _ interfaces.RunRecorder = (*Recorder)(nil)

// New creates a Recorder. An empty databaseID selects the default database.
func New(ctx context.Context, projectID, databaseID, collection string, opts ...option.ClientOption) (*Recorder, error) {
	if projectID == "" {
		return nil, goerr.New("firestore project ID is required")
	}
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}
	if collection == "" {
		collection = DefaultCollection
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project_id", projectID),
			goerr.V("database_id", databaseID))
	}

	return &Recorder{client: client, collection: collection}, nil
}

// Record creates or replaces the document of run
func (r *Recorder) Record(ctx context.Context, run *model.BackupRun) error {
	doc := r.client.Collection(r.collection).Doc(run.ID.String())
	if _, err := doc.Set(ctx, run); err != nil {
		return goerr.Wrap(err, "failed to save backup run", goerr.V("run_id", run.ID))
	}
	return nil
}

// Get returns the run, or nil if no such run was recorded
func (r *Recorder) Get(ctx context.Context, id types.RunID) (*model.BackupRun, error) {
	doc, err := r.client.Collection(r.collection).Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get backup run", goerr.V("run_id", id))
	}

	var run model.BackupRun
	if err := doc.DataTo(&run); err != nil {
		return nil, goerr.Wrap(err, "failed to decode backup run", goerr.V("run_id", id))
	}
	return &run, nil
}

// List returns the most recent runs, newest first
func (r *Recorder) List(ctx context.Context, limit int) ([]*model.BackupRun, error) {
	query := r.client.Collection(r.collection).OrderBy("started_at", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var runs []*model.BackupRun
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list backup runs")
		}

		var run model.BackupRun
		if err := doc.DataTo(&run); err != nil {
			return nil, goerr.Wrap(err, "failed to decode backup run", goerr.V("doc_id", doc.Ref.ID))
		}
		runs = append(runs, &run)
	}

	return runs, nil
}

// Close closes the firestore client
func (r *Recorder) Close() error {
	return r.client.Close()
}
