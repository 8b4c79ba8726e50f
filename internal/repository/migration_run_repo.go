package repository

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sigap-dashboard/sigap-api/pkg/model"
)

const migrationRunsCollection = "cluster_migrations"

// MigrationRunRepository manages cluster migration run records.
type MigrationRunRepository struct {
	client *firestore.Client
}

func NewMigrationRunRepository(client *firestore.Client) *MigrationRunRepository {
	return &MigrationRunRepository{client: client}
}

func (r *MigrationRunRepository) CreateRun(ctx context.Context, run model.MigrationRun) error {
	if run.RunID == "" {
		return fmt.Errorf("runId is required")
	}
	ref := r.client.Collection(migrationRunsCollection).Doc(run.RunID)
	if _, err := ref.Create(ctx, run); err != nil {
		return fmt.Errorf("create run %s: %w", run.RunID, err)
	}
	return nil
}

func (r *MigrationRunRepository) UpdateRun(ctx context.Context, run model.MigrationRun) error {
	if run.RunID == "" {
		return fmt.Errorf("runId is required")
	}
	ref := r.client.Collection(migrationRunsCollection).Doc(run.RunID)
	if _, err := ref.Set(ctx, run); err != nil {
		return fmt.Errorf("update run %s: %w", run.RunID, err)
	}
	return nil
}

func (r *MigrationRunRepository) GetRun(ctx context.Context, runID string) (model.MigrationRun, error) {
	snap, err := r.client.Collection(migrationRunsCollection).Doc(runID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return model.MigrationRun{}, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return model.MigrationRun{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	var run model.MigrationRun
	if err := snap.DataTo(&run); err != nil {
		return model.MigrationRun{}, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first.
func (r *MigrationRunRepository) ListRuns(ctx context.Context, limit int) ([]model.MigrationRun, error) {
	if limit <= 0 {
		limit = 20
	}
	iter := r.client.Collection(migrationRunsCollection).
		OrderBy("startedAt", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	runs := []model.MigrationRun{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate runs: %w", err)
		}
		var run model.MigrationRun
		if err := doc.DataTo(&run); err != nil {
			return nil, fmt.Errorf("decode run %s: %w", doc.Ref.ID, err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}
