package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/yigit/schoolhealth/internal/app/models"
	"github.com/yigit/schoolhealth/internal/pkg/apperrors"
)

// ResultRepository is the memory-backed result store.
type ResultRepository struct {
	db *DB
}

// NewResultRepository creates a result store over db.
func NewResultRepository(db *DB) *ResultRepository {
	return &ResultRepository{db: db}
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func copyResult(r *models.ResultRecord) *models.ResultRecord {
	out := *r
	out.Height = copyFloat(r.Height)
	out.Weight = copyFloat(r.Weight)
	out.BMI = copyFloat(r.BMI)
	if r.CheckupDate != nil {
		d := *r.CheckupDate
		out.CheckupDate = &d
	}
	if r.VaccinationDate != nil {
		d := *r.VaccinationDate
		out.VaccinationDate = &d
	}
	return &out
}

func (r *ResultRepository) CreateResult(_ context.Context, rec *models.ResultRecord) (*models.ResultRecord, error) {
	t := r.db.results
	t.mutex.Lock()
	defer t.mutex.Unlock()

	key := pairKey{rec.CampaignID, rec.StudentID}
	if _, ok := t.byPair[key]; ok {
		return nil, fmt.Errorf("campaign %d student %d: %w", rec.CampaignID, rec.StudentID, apperrors.ErrDuplicateResult)
	}

	t.seq++
	stored := copyResult(rec)
	stored.ID = t.seq
	now := r.db.now()
	stored.Version = 1
	stored.CreatedAt, stored.UpdatedAt = now, now
	t.t[stored.ID] = stored
	t.byPair[key] = stored.ID
	return copyResult(stored), nil
}

func (r *ResultRepository) GetResult(_ context.Context, id int64) (*models.ResultRecord, error) {
	t := r.db.results
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	if rec, ok := t.t[id]; ok {
		return copyResult(rec), nil
	}
	return nil, fmt.Errorf("result %d: %w", id, apperrors.ErrNotFound)
}

func (r *ResultRepository) GetResultByPair(_ context.Context, campaignID, studentID int64) (*models.ResultRecord, error) {
	t := r.db.results
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	if id, ok := t.byPair[pairKey{campaignID, studentID}]; ok {
		return copyResult(t.t[id]), nil
	}
	return nil, fmt.Errorf("result for campaign %d student %d: %w", campaignID, studentID, apperrors.ErrNotFound)
}

// campaignCompleted reports whether the campaign has reached completed; lock order is results then campaigns.
func (r *ResultRepository) campaignCompleted(campaignID int64) bool {
	c := r.db.campaigns
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	stored, ok := c.t[campaignID]
	return ok && stored.Status == models.CampaignCompleted
}

func (r *ResultRepository) UpdateResult(_ context.Context, rec *models.ResultRecord, expectedVersion int64) (*models.ResultRecord, error) {
	t := r.db.results
	t.mutex.Lock()
	defer t.mutex.Unlock()

	stored, ok := t.t[rec.ID]
	if !ok {
		return nil, fmt.Errorf("result %d: %w", rec.ID, apperrors.ErrNotFound)
	}
	if stored.Version != expectedVersion {
		return nil, fmt.Errorf("result %d at version %d, expected %d: %w", rec.ID, stored.Version, expectedVersion, apperrors.ErrVersionConflict)
	}
	if r.campaignCompleted(stored.CampaignID) {
		return nil, fmt.Errorf("%w: campaign %d is completed, results are read-only", apperrors.ErrCampaignClosed, stored.CampaignID)
	}
	updated := copyResult(rec)
	// identity columns are immutable
	updated.CampaignID = stored.CampaignID
	updated.StudentID = stored.StudentID
	updated.NurseID = stored.NurseID
	updated.Family = stored.Family
	updated.CreatedAt = stored.CreatedAt
	updated.Version = stored.Version + 1
	updated.UpdatedAt = r.db.now()
	t.t[rec.ID] = updated
	return copyResult(updated), nil
}

func (r *ResultRepository) DeleteResult(_ context.Context, id int64) error {
	t := r.db.results
	t.mutex.Lock()
	defer t.mutex.Unlock()

	stored, ok := t.t[id]
	if !ok {
		return fmt.Errorf("result %d: %w", id, apperrors.ErrNotFound)
	}
	delete(t.byPair, pairKey{stored.CampaignID, stored.StudentID})
	delete(t.t, id)
	return nil
}

func (r *ResultRepository) ListResultsByCampaign(_ context.Context, campaignID int64) ([]*models.ResultRecord, error) {
	t := r.db.results
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	res := []*models.ResultRecord{}
	for _, rec := range t.t {
		if rec.CampaignID == campaignID {
			res = append(res, copyResult(rec))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}
