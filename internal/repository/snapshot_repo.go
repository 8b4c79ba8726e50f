package repository

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sigap-dashboard/sigap-api/pkg/model"
)

// SnapshotRepository manages the system/dashboard singleton document.
type SnapshotRepository struct {
	client *firestore.Client
}

func NewSnapshotRepository(client *firestore.Client) *SnapshotRepository {
	return &SnapshotRepository{client: client}
}

func (r *SnapshotRepository) SaveSnapshot(ctx context.Context, snap model.DashboardSnapshot) error {
	snap.LastUpdated = time.Now().UTC()
	ref := r.client.Collection("system").Doc("dashboard")
	if _, err := ref.Set(ctx, snap); err != nil {
		return fmt.Errorf("save dashboard snapshot: %w", err)
	}
	return nil
}

func (r *SnapshotRepository) GetSnapshot(ctx context.Context) (model.DashboardSnapshot, error) {
	ref := r.client.Collection("system").Doc("dashboard")
	snap, err := ref.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return model.DashboardSnapshot{}, fmt.Errorf("dashboard snapshot: %w", ErrNotFound)
	}
	if err != nil {
		return model.DashboardSnapshot{}, fmt.Errorf("get dashboard snapshot: %w", err)
	}
	var out model.DashboardSnapshot
	if err := snap.DataTo(&out); err != nil {
		return model.DashboardSnapshot{}, fmt.Errorf("decode dashboard snapshot: %w", err)
	}
	return out, nil
}
