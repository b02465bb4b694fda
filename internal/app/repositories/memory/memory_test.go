package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/schoolhealth/internal/app/models"
	"github.com/yigit/schoolhealth/internal/pkg/apperrors"
)

func newCampaign(t *testing.T, repo *CampaignRepository) *models.Campaign {
	t.Helper()
	c, err := repo.CreateCampaign(context.Background(), &models.Campaign{
		Family:        models.FamilyHealthCheckup,
		Name:          "Spring checkup",
		ScheduledDate: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		TargetGrades:  "Grade 1",
		Status:        models.CampaignPlanned,
		CreatedBy:     1,
	})
	require.NoError(t, err)
	return c
}

func TestCampaignVersioning(t *testing.T) {
	ctx := context.Background()
	repo := NewCampaignRepository(Open())
	c := newCampaign(t, repo)
	assert.Equal(t, int64(1), c.Version)

	c.Name = "Renamed"
	updated, err := repo.UpdateCampaign(ctx, c, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)

	// a writer still holding version 1 loses
	_, err = repo.UpdateCampaign(ctx, c, 1)
	assert.True(t, errors.Is(err, apperrors.ErrVersionConflict))

	require.NoError(t, repo.SetCountersStale(ctx, c.ID, true))
	applied, err := repo.ApplyCounters(ctx, c.ID, 2, models.CampaignCounters{TotalStudents: 5})
	require.NoError(t, err)
	assert.False(t, applied.CountersStale)
	assert.Equal(t, 5, applied.TotalStudents)
	assert.Equal(t, int64(3), applied.Version)

	_, err = repo.GetCampaign(ctx, 99)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestCampaignReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewCampaignRepository(Open())
	c := newCampaign(t, repo)

	c.Name = "mutated outside"
	stored, err := repo.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Spring checkup", stored.Name)
}

func TestListCampaignsFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewCampaignRepository(Open())
	late, err := repo.CreateCampaign(ctx, &models.Campaign{
		Family: models.FamilyVaccination, Name: "Flu", Status: models.CampaignPlanned,
		ScheduledDate: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	early := newCampaign(t, repo)
	_, err = repo.CreateCampaign(ctx, &models.Campaign{
		Family: models.FamilyVaccination, Name: "Done", Status: models.CampaignCompleted,
		ScheduledDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	active, err := repo.ListCampaigns(ctx, models.CampaignFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, early.ID, active[0].ID)
	assert.Equal(t, late.ID, active[1].ID)

	vacc, err := repo.ListCampaigns(ctx, models.CampaignFilter{Family: models.FamilyVaccination})
	require.NoError(t, err)
	assert.Len(t, vacc, 2)
}

func TestIssueConsentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewConsentRepository(Open())
	rec := &models.ConsentRecord{CampaignID: 5, StudentID: 9, ConsentType: models.FamilyHealthCheckup, Status: models.ConsentPending}

	first, created, err := repo.IssueConsent(ctx, rec)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := repo.IssueConsent(ctx, rec)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	byPair, err := repo.GetConsentByPair(ctx, 5, 9)
	require.NoError(t, err)
	assert.Equal(t, first.ID, byPair.ID)
}

func TestTransitionConsentPrecondition(t *testing.T) {
	ctx := context.Background()
	repo := NewConsentRepository(Open())
	rec, _, err := repo.IssueConsent(ctx, &models.ConsentRecord{CampaignID: 1, StudentID: 2, Status: models.ConsentPending})
	require.NoError(t, err)

	at := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	approved, err := repo.TransitionConsent(ctx, rec.ID, []models.ConsentStatus{models.ConsentPending, models.ConsentRejected},
		models.ConsentTransition{To: models.ConsentApproved, Decision: true, ConsentGiven: true, ParentSignature: "P", ConsentDate: at, DecidedBy: 100, At: at})
	require.NoError(t, err)
	assert.Equal(t, models.ConsentApproved, approved.Status)
	require.NotNil(t, approved.DecidedBy)
	assert.Equal(t, int64(100), *approved.DecidedBy)

	current, err := repo.TransitionConsent(ctx, rec.ID, []models.ConsentStatus{models.ConsentPending},
		models.ConsentTransition{To: models.ConsentRejected, At: at})
	assert.True(t, errors.Is(err, apperrors.ErrStateConflict))
	require.NotNil(t, current)
	assert.Equal(t, models.ConsentApproved, current.Status)
}

func TestConcurrentDecisionsOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	repo := NewConsentRepository(Open())
	rec, _, err := repo.IssueConsent(ctx, &models.ConsentRecord{CampaignID: 1, StudentID: 2, Status: models.ConsentPending})
	require.NoError(t, err)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// approval is only legal from pending here, so one goroutine can succeed
			_, err := repo.TransitionConsent(ctx, rec.ID, []models.ConsentStatus{models.ConsentPending},
				models.ConsentTransition{To: models.ConsentApproved, Decision: true, ConsentGiven: true})
			if err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

func TestCreateResultUniquePair(t *testing.T) {
	ctx := context.Background()
	repo := NewResultRepository(Open())

	var ok, dup int32
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.CreateResult(ctx, &models.ResultRecord{CampaignID: 5, StudentID: 9, NurseID: 2, Family: models.FamilyHealthCheckup})
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case errors.Is(err, apperrors.ErrDuplicateResult):
				atomic.AddInt32(&dup, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), ok)
	assert.Equal(t, int32(24), dup)

	list, err := repo.ListResultsByCampaign(ctx, 5)
	require.NoError(t, err)
	require.Len(t, list, 1)

	// deleting frees the pair for a new submission
	require.NoError(t, repo.DeleteResult(ctx, list[0].ID))
	_, err = repo.CreateResult(ctx, &models.ResultRecord{CampaignID: 5, StudentID: 9, NurseID: 2})
	assert.NoError(t, err)
	assert.True(t, errors.Is(repo.DeleteResult(ctx, list[0].ID), apperrors.ErrNotFound))
}

func TestUpdateResultKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	repo := NewResultRepository(Open())
	stored, err := repo.CreateResult(ctx, &models.ResultRecord{CampaignID: 1, StudentID: 2, NurseID: 3, Family: models.FamilyHealthCheckup})
	require.NoError(t, err)

	edit := *stored
	edit.CampaignID = 42
	edit.StudentID = 43
	edit.GeneralHealth = "good"
	updated, err := repo.UpdateResult(ctx, &edit, stored.Version)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.CampaignID)
	assert.Equal(t, int64(2), updated.StudentID)
	assert.Equal(t, "good", updated.GeneralHealth)
	assert.Equal(t, stored.Version+1, updated.Version)

	byPair, err := repo.GetResultByPair(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, byPair.ID)
	_, err = repo.GetResultByPair(ctx, 1, 3)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestUpdateResultVersionAndCampaignChecks(t *testing.T) {
	ctx := context.Background()
	db := Open()
	campaigns := NewCampaignRepository(db)
	repo := NewResultRepository(db)
	c := newCampaign(t, campaigns)

	stored, err := repo.CreateResult(ctx, &models.ResultRecord{CampaignID: c.ID, StudentID: 2, NurseID: 3, Family: models.FamilyHealthCheckup})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)

	first := *stored
	first.BloodPressure = "110/70"
	_, err = repo.UpdateResult(ctx, &first, stored.Version)
	require.NoError(t, err)

	// a second writer still holding the old version loses
	second := *stored
	second.VisionTest = "20/20"
	_, err = repo.UpdateResult(ctx, &second, stored.Version)
	assert.True(t, errors.Is(err, apperrors.ErrVersionConflict))

	current, err := repo.GetResult(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, "110/70", current.BloodPressure)
	assert.Empty(t, current.VisionTest)

	c.Status = models.CampaignCompleted
	_, err = campaigns.UpdateCampaign(ctx, c, c.Version)
	require.NoError(t, err)
	current.VisionTest = "20/20"
	_, err = repo.UpdateResult(ctx, current, current.Version)
	assert.True(t, errors.Is(err, apperrors.ErrCampaignClosed))

	_, err = repo.UpdateResult(ctx, &models.ResultRecord{ID: 99}, 1)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestRoster(t *testing.T) {
	ctx := context.Background()
	roster := NewRosterRepository(Open())
	_, err := roster.AddStudent(ctx, models.RosterEntry{StudentID: 9, GuardianID: 100, Grade: "Grade 1"})
	require.NoError(t, err)
	next, err := roster.AddStudent(ctx, models.RosterEntry{GuardianID: 100, Grade: "2"})
	require.NoError(t, err)
	assert.Equal(t, int64(10), next.StudentID)
	_, err = roster.AddStudent(ctx, models.RosterEntry{GuardianID: 101, Grade: "grade 1"})
	require.NoError(t, err)

	inGrade1, err := roster.StudentsInGrades(ctx, models.ParseTargetGrades("Grade 1"))
	require.NoError(t, err)
	assert.Len(t, inGrade1, 2)

	kids, err := roster.StudentsOfGuardian(ctx, 100)
	require.NoError(t, err)
	require.Len(t, kids, 2)
	assert.Equal(t, int64(9), kids[0].StudentID)
}
