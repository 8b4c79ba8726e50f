package repository

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/sigap-dashboard/sigap-api/pkg/model"
)

const (
	liveClustersCollection    = "district_clusters"
	historyClustersCollection = "district_clusters_history"
)

// ClusterRepository stores live district clusters and their monthly history.
type ClusterRepository struct {
	client *firestore.Client
}

func NewClusterRepository(client *firestore.Client) *ClusterRepository {
	return &ClusterRepository{client: client}
}

// ListLive returns the current cluster of every district.
func (r *ClusterRepository) ListLive(ctx context.Context) ([]model.DistrictCluster, error) {
	iter := r.client.Collection(liveClustersCollection).Documents(ctx)
	defer iter.Stop()

	clusters := []model.DistrictCluster{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate clusters: %w", err)
		}
		var c model.DistrictCluster
		if err := doc.DataTo(&c); err != nil {
			return nil, fmt.Errorf("decode cluster %s: %w", doc.Ref.ID, err)
		}
		clusters = append(clusters, c)
	}
	return clusters, nil
}

// ReplaceLive overwrites the live clusters and clears update flags raised before
// flaggedBefore. Later flags survive so the next refresh sees them.
func (r *ClusterRepository) ReplaceLive(ctx context.Context, clusters []model.DistrictCluster, flaggedBefore time.Time) error {
	if len(clusters) == 0 {
		return nil
	}
	col := r.client.Collection(liveClustersCollection)
	refs := make([]*firestore.DocumentRef, len(clusters))
	for i, c := range clusters {
		refs[i] = col.Doc(clusterKey(c))
	}

	now := time.Now().UTC()
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snaps, err := tx.GetAll(refs)
		if err != nil {
			return fmt.Errorf("read live clusters: %w", err)
		}
		for i, c := range clusters {
			c.NeedsUpdate = false
			c.FlaggedAt = time.Time{}
			if snaps[i].Exists() {
				var prev model.DistrictCluster
				if err := snaps[i].DataTo(&prev); err != nil {
					return fmt.Errorf("decode cluster %s: %w", refs[i].ID, err)
				}
				if prev.NeedsUpdate && prev.FlaggedAt.After(flaggedBefore) {
					c.NeedsUpdate = true
					c.FlaggedAt = prev.FlaggedAt
				}
			}
			c.UpdatedAt = now
			if err := tx.Set(refs[i], c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace live clusters: %w", err)
	}
	return nil
}

// MarkNeedsUpdate flags a district so the next refresh recomputes clusters.
func (r *ClusterRepository) MarkNeedsUpdate(ctx context.Context, districtID string) error {
	ref := r.client.Collection(liveClustersCollection).Doc(districtID)
	_, err := ref.Set(ctx, map[string]interface{}{
		"districtId":  districtID,
		"needsUpdate": true,
		"flaggedAt":   time.Now().UTC(),
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("mark cluster %s: %w", districtID, err)
	}
	return nil
}

// AnyNeedsUpdate reports whether at least one district is flagged.
func (r *ClusterRepository) AnyNeedsUpdate(ctx context.Context) (bool, error) {
	iter := r.client.Collection(liveClustersCollection).
		Where("needsUpdate", "==", true).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	_, err := iter.Next()
	if err == iterator.Done {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query flagged clusters: %w", err)
	}
	return true, nil
}

// SaveHistorical copies clusters into the history collection under period.
// It returns how many documents were written.
func (r *ClusterRepository) SaveHistorical(ctx context.Context, period string, clusters []model.DistrictCluster) (int, error) {
	if len(clusters) == 0 {
		return 0, nil
	}
	batch := r.client.Batch()
	for _, c := range clusters {
		c.Period = period
		c.NeedsUpdate = false
		id := fmt.Sprintf("%s_%s", period, clusterKey(c))
		batch.Set(r.client.Collection(historyClustersCollection).Doc(id), c)
	}
	if _, err := batch.Commit(ctx); err != nil {
		return 0, fmt.Errorf("save historical clusters %s: %w", period, err)
	}
	return len(clusters), nil
}

func clusterKey(c model.DistrictCluster) string {
	if c.DistrictID != "" {
		return c.DistrictID
	}
	return c.DistrictName
}
