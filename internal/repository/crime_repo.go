package repository

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sigap-dashboard/sigap-api/internal/platform/logger"
	"github.com/sigap-dashboard/sigap-api/pkg/model"
)

// CrimesCollection holds one document per district and month.
const CrimesCollection = "crimes"

// CrimeRepository handles Firestore read/write for crime groups and their incidents.
type CrimeRepository struct {
	client *firestore.Client
	log    logger.Logger
}

func NewCrimeRepository(client *firestore.Client, log logger.Logger) *CrimeRepository {
	if log == nil {
		log = logger.NewNop()
	}
	return &CrimeRepository{client: client, log: log}
}

// List loads the crime groups matching q, ordered by document ID.
func (r *CrimeRepository) List(ctx context.Context, q model.CrimeQuery) ([]model.CrimeGroup, error) {
	query := r.client.Collection(CrimesCollection).Query
	if q.DistrictID != "" {
		query = query.Where("districtId", "==", q.DistrictID)
	}
	if q.Year > 0 {
		query = query.Where("year", "==", q.Year)
	}
	if q.Month > 0 {
		query = query.Where("month", "==", q.Month)
	}
	query = query.OrderBy(firestore.DocumentID, firestore.Asc)
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	groups := []model.CrimeGroup{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate crimes: %w", err)
		}
		g, err := decodeGroup(doc)
		if err != nil {
			return nil, err
		}
		groups = append(groups, prepareGroup(g, r.log))
	}
	return groups, nil
}

// Get loads a single crime group by document ID.
func (r *CrimeRepository) Get(ctx context.Context, id string) (model.CrimeGroup, error) {
	snap, err := r.client.Collection(CrimesCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return model.CrimeGroup{}, fmt.Errorf("crime group %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.CrimeGroup{}, fmt.Errorf("get crime group %s: %w", id, err)
	}
	g, err := decodeGroup(snap)
	if err != nil {
		return model.CrimeGroup{}, err
	}
	return prepareGroup(g, r.log), nil
}

// BatchUpsert writes crime groups in batches to reduce round trips.
func (r *CrimeRepository) BatchUpsert(ctx context.Context, groups []model.CrimeGroup) error {
	if len(groups) == 0 {
		return nil
	}
	const batchSize = 400

	for start := 0; start < len(groups); start += batchSize {
		end := start + batchSize
		if end > len(groups) {
			end = len(groups)
		}
		batch := r.client.Batch()
		for _, g := range groups[start:end] {
			g.ID = GroupDocumentID(g)
			g.UpdatedAt = time.Now().UTC()
			batch.Set(r.client.Collection(CrimesCollection).Doc(g.ID), g)
		}
		if _, err := batch.Commit(ctx); err != nil {
			return fmt.Errorf("commit batch [%d:%d]: %w", start, end, err)
		}
	}
	return nil
}

// AppendIncident adds inc to the group identified by target's district and period,
// creating the group when it does not exist yet. NumberOfCrime is kept in step.
func (r *CrimeRepository) AppendIncident(ctx context.Context, target model.CrimeGroup, inc model.Incident) (model.CrimeGroup, error) {
	target.ID = GroupDocumentID(target)
	ref := r.client.Collection(CrimesCollection).Doc(target.ID)

	var out model.CrimeGroup
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		group := target
		snap, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
			// first incident of the period
		case err != nil:
			return fmt.Errorf("read crime group %s: %w", target.ID, err)
		default:
			if group, err = decodeGroup(snap); err != nil {
				return err
			}
		}
		group.Incidents = append(group.Incidents, inc)
		group.NumberOfCrime++
		group.UpdatedAt = time.Now().UTC()
		out = group
		return tx.Set(ref, group)
	})
	if err != nil {
		return model.CrimeGroup{}, fmt.Errorf("append incident %s: %w", inc.ID, err)
	}
	return out, nil
}

// UpdateIncidentStatus sets the status of one incident inside a group.
func (r *CrimeRepository) UpdateIncidentStatus(ctx context.Context, groupID, incidentID, newStatus string) (model.CrimeGroup, model.Incident, error) {
	ref := r.client.Collection(CrimesCollection).Doc(groupID)

	var (
		group   model.CrimeGroup
		updated model.Incident
	)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("crime group %s: %w", groupID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("read crime group %s: %w", groupID, err)
		}
		if group, err = decodeGroup(snap); err != nil {
			return err
		}
		idx := -1
		for i, inc := range group.Incidents {
			if inc.ID == incidentID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("incident %s in group %s: %w", incidentID, groupID, ErrNotFound)
		}
		group.Incidents[idx].Status = newStatus
		group.UpdatedAt = time.Now().UTC()
		updated = group.Incidents[idx]
		return tx.Set(ref, group)
	})
	if err != nil {
		return model.CrimeGroup{}, model.Incident{}, err
	}
	return group, updated, nil
}

func decodeGroup(doc *firestore.DocumentSnapshot) (model.CrimeGroup, error) {
	var g model.CrimeGroup
	if err := doc.DataTo(&g); err != nil {
		return model.CrimeGroup{}, fmt.Errorf("decode crime group %s: %w", doc.Ref.ID, err)
	}
	if g.ID == "" {
		g.ID = doc.Ref.ID
	}
	return g, nil
}

// GroupDocumentID derives the document ID of a crime group from its district and period.
func GroupDocumentID(g model.CrimeGroup) string {
	if g.ID != "" {
		return g.ID
	}
	return fmt.Sprintf("%s_%04d_%02d", g.DistrictID, g.Year, g.Month)
}
