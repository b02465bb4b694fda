package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/yigit/schoolhealth/internal/app/models"
	"github.com/yigit/schoolhealth/internal/pkg/apperrors"
)

// CampaignRepository is the memory-backed campaign store.
type CampaignRepository struct {
	db *DB
}

// NewCampaignRepository creates a campaign store over db.
func NewCampaignRepository(db *DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

func copyCampaign(c *models.Campaign) *models.Campaign {
	out := *c
	if c.DeclaredTotal != nil {
		total := *c.DeclaredTotal
		out.DeclaredTotal = &total
	}
	return &out
}

func (r *CampaignRepository) CreateCampaign(_ context.Context, campaign *models.Campaign) (*models.Campaign, error) {
	t := r.db.campaigns
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.seq++
	stored := copyCampaign(campaign)
	stored.ID = t.seq
	stored.Version = 1
	now := r.db.now()
	stored.CreatedAt, stored.UpdatedAt = now, now
	t.t[stored.ID] = stored
	return copyCampaign(stored), nil
}

func (r *CampaignRepository) GetCampaign(_ context.Context, id int64) (*models.Campaign, error) {
	t := r.db.campaigns
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	if c, ok := t.t[id]; ok {
		return copyCampaign(c), nil
	}
	return nil, fmt.Errorf("campaign %d: %w", id, apperrors.ErrNotFound)
}

func (r *CampaignRepository) ListCampaigns(_ context.Context, filter models.CampaignFilter) ([]*models.Campaign, error) {
	t := r.db.campaigns
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	res := make([]*models.Campaign, 0, len(t.t))
	for _, c := range t.t {
		if filter.Matches(c) {
			res = append(res, copyCampaign(c))
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].ScheduledDate.Equal(res[j].ScheduledDate) {
			return res[i].ScheduledDate.Before(res[j].ScheduledDate)
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

// lockVersioned returns the stored row for id once its version matches; the caller holds the write lock.
func (r *CampaignRepository) lockVersioned(id, expectedVersion int64) (*models.Campaign, error) {
	stored, ok := r.db.campaigns.t[id]
	if !ok {
		return nil, fmt.Errorf("campaign %d: %w", id, apperrors.ErrNotFound)
	}
	if stored.Version != expectedVersion {
		return nil, fmt.Errorf("campaign %d at version %d, expected %d: %w", id, stored.Version, expectedVersion, apperrors.ErrVersionConflict)
	}
	return stored, nil
}

func (r *CampaignRepository) UpdateCampaign(_ context.Context, campaign *models.Campaign, expectedVersion int64) (*models.Campaign, error) {
	t := r.db.campaigns
	t.mutex.Lock()
	defer t.mutex.Unlock()

	stored, err := r.lockVersioned(campaign.ID, expectedVersion)
	if err != nil {
		return nil, err
	}
	stored.Name = campaign.Name
	stored.Description = campaign.Description
	stored.ScheduledDate = campaign.ScheduledDate
	stored.TargetGrades = campaign.TargetGrades
	stored.CheckupTypes = campaign.CheckupTypes
	stored.VaccineType = campaign.VaccineType
	stored.Status = campaign.Status
	stored.Version++
	stored.UpdatedAt = r.db.now()
	return copyCampaign(stored), nil
}

func (r *CampaignRepository) ApplyCounters(_ context.Context, id int64, expectedVersion int64, counters models.CampaignCounters) (*models.Campaign, error) {
	t := r.db.campaigns
	t.mutex.Lock()
	defer t.mutex.Unlock()

	stored, err := r.lockVersioned(id, expectedVersion)
	if err != nil {
		return nil, err
	}
	stored.CampaignCounters = counters
	stored.CountersStale = false
	stored.Version++
	stored.UpdatedAt = r.db.now()
	return copyCampaign(stored), nil
}

func (r *CampaignRepository) SetCountersStale(_ context.Context, id int64, stale bool) error {
	t := r.db.campaigns
	t.mutex.Lock()
	defer t.mutex.Unlock()

	stored, ok := t.t[id]
	if !ok {
		return fmt.Errorf("campaign %d: %w", id, apperrors.ErrNotFound)
	}
	stored.CountersStale = stale
	return nil
}
