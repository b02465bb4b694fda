package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/yigit/schoolhealth/internal/app/models"
	"github.com/yigit/schoolhealth/internal/pkg/apperrors"
)

// ConsentRepository is the memory-backed consent store.
type ConsentRepository struct {
	db *DB
}

// NewConsentRepository creates a consent store over db.
func NewConsentRepository(db *DB) *ConsentRepository {
	return &ConsentRepository{db: db}
}

func copyConsent(c *models.ConsentRecord) *models.ConsentRecord {
	out := *c
	if c.ConsentDate != nil {
		d := *c.ConsentDate
		out.ConsentDate = &d
	}
	if c.DecidedBy != nil {
		by := *c.DecidedBy
		out.DecidedBy = &by
	}
	return &out
}

func (r *ConsentRepository) IssueConsent(_ context.Context, rec *models.ConsentRecord) (*models.ConsentRecord, bool, error) {
	t := r.db.consents
	t.mutex.Lock()
	defer t.mutex.Unlock()

	key := pairKey{rec.CampaignID, rec.StudentID}
	if id, ok := t.byPair[key]; ok {
		return copyConsent(t.t[id]), false, nil
	}

	t.seq++
	stored := &models.ConsentRecord{
		ID:          t.seq,
		CampaignID:  rec.CampaignID,
		StudentID:   rec.StudentID,
		ConsentType: rec.ConsentType,
		Status:      rec.Status,
	}
	now := r.db.now()
	stored.CreatedAt, stored.UpdatedAt = now, now
	t.t[stored.ID] = stored
	t.byPair[key] = stored.ID
	return copyConsent(stored), true, nil
}

func (r *ConsentRepository) GetConsent(_ context.Context, id int64) (*models.ConsentRecord, error) {
	t := r.db.consents
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	if c, ok := t.t[id]; ok {
		return copyConsent(c), nil
	}
	return nil, fmt.Errorf("consent %d: %w", id, apperrors.ErrNotFound)
}

func (r *ConsentRepository) GetConsentByPair(_ context.Context, campaignID, studentID int64) (*models.ConsentRecord, error) {
	t := r.db.consents
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	if id, ok := t.byPair[pairKey{campaignID, studentID}]; ok {
		return copyConsent(t.t[id]), nil
	}
	return nil, fmt.Errorf("consent for campaign %d student %d: %w", campaignID, studentID, apperrors.ErrNotFound)
}

func (r *ConsentRepository) TransitionConsent(_ context.Context, id int64, from []models.ConsentStatus, change models.ConsentTransition) (*models.ConsentRecord, error) {
	t := r.db.consents
	t.mutex.Lock()
	defer t.mutex.Unlock()

	stored, ok := t.t[id]
	if !ok {
		return nil, fmt.Errorf("consent %d: %w", id, apperrors.ErrNotFound)
	}
	for _, s := range from {
		if stored.Status == s {
			change.Apply(stored)
			return copyConsent(stored), nil
		}
	}
	return copyConsent(stored), fmt.Errorf("consent %d is %s: %w", id, stored.Status, apperrors.ErrStateConflict)
}

func (r *ConsentRepository) list(match func(*models.ConsentRecord) bool) []*models.ConsentRecord {
	t := r.db.consents
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	res := []*models.ConsentRecord{}
	for _, c := range t.t {
		if match(c) {
			res = append(res, copyConsent(c))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

func (r *ConsentRepository) ListConsentsByStudent(_ context.Context, studentID int64) ([]*models.ConsentRecord, error) {
	return r.list(func(c *models.ConsentRecord) bool { return c.StudentID == studentID }), nil
}

func (r *ConsentRepository) ListConsentsByCampaign(_ context.Context, campaignID int64) ([]*models.ConsentRecord, error) {
	return r.list(func(c *models.ConsentRecord) bool { return c.CampaignID == campaignID }), nil
}
