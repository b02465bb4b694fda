package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/schoolhealth/internal/app/models"
	"github.com/yigit/schoolhealth/internal/app/repositories"
	"github.com/yigit/schoolhealth/internal/app/repositories/memory"
	"github.com/yigit/schoolhealth/internal/pkg/apperrors"
)

var (
	staff  = models.Actor{ID: 1, Role: models.RoleStaff}
	nurse  = models.Actor{ID: 2, Role: models.RoleNurse}
	parent = models.Actor{ID: 100, Role: models.RoleParent}
	other  = models.Actor{ID: 101, Role: models.RoleParent}
)

var fastRetries = AggregatorConfig{
	MaxRetries:       2,
	InitialInterval:  time.Millisecond,
	MaxInterval:      2 * time.Millisecond,
	MaxElapsedTime:   time.Second,
	ConflictAttempts: 8,
}

func newEngine(t *testing.T) (*Services, *repositories.Repositories) {
	t.Helper()
	repos := memory.NewRepositories(memory.Open())
	return NewServices(repos, fastRetries, zerolog.Nop()), repos
}

func addStudent(t *testing.T, repos *repositories.Repositories, id, guardian int64, grade string) {
	t.Helper()
	_, err := repos.Roster.AddStudent(context.Background(), models.RosterEntry{StudentID: id, GuardianID: guardian, Grade: grade})
	require.NoError(t, err)
}

func intPtr(v int) *int                                        { return &v }
func floatPtr(v float64) *float64                              { return &v }
func strPtr(v string) *string                                  { return &v }
func boolPtr(v bool) *bool                                     { return &v }
func statusPtr(s models.CampaignStatus) *models.CampaignStatus { return &s }

func checkupDraft(total *int) models.CampaignDraft {
	return models.CampaignDraft{
		Family:        models.FamilyHealthCheckup,
		Name:          "Annual checkup",
		ScheduledDate: time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC),
		TargetGrades:  "Grade 1, Grade 2",
		CheckupTypes:  "vision, hearing",
		TotalStudents: total,
	}
}

func checkupMetrics(height, weight float64) models.ResultMetrics {
	return models.ResultMetrics{CheckupMetrics: models.CheckupMetrics{
		Height:        floatPtr(height),
		Weight:        floatPtr(weight),
		BloodPressure: "110/70",
		VisionTest:    "20/20",
		HearingTest:   "normal",
		GeneralHealth: "good",
	}}
}

func mustGetCampaign(t *testing.T, svc *Services, id int64) *models.Campaign {
	t.Helper()
	c, err := svc.Campaigns.GetCampaign(context.Background(), id)
	require.NoError(t, err)
	return c
}

func assertCounterBounds(t *testing.T, c *models.Campaign) {
	t.Helper()
	assert.GreaterOrEqual(t, c.ConsentReceived, 0)
	assert.LessOrEqual(t, c.ConsentReceived, c.TotalStudents)
	assert.GreaterOrEqual(t, c.CheckupsCompleted, 0)
	assert.LessOrEqual(t, c.CheckupsCompleted, c.TotalStudents)
}

func feedStatus(t *testing.T, svc *Services, guardian models.Actor, status models.FeedStatus) []models.NotificationItem {
	t.Helper()
	items, err := svc.Notifications.BuildFeed(context.Background(), guardian, guardian.ID)
	require.NoError(t, err)
	return FilterByStatus(items, status)
}

func TestEndToEndCampaignLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, repos := newEngine(t)
	addStudent(t, repos, 1, parent.ID, "Grade 1")

	c, err := svc.Campaigns.CreateCampaign(ctx, staff, checkupDraft(intPtr(100)))
	require.NoError(t, err)
	assert.Equal(t, models.CampaignPlanned, c.Status)
	assert.Equal(t, 100, c.TotalStudents)

	consent, err := svc.Consents.IssueConsent(ctx, nurse, c.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.ConsentPending, consent.Status)
	assert.Len(t, feedStatus(t, svc, parent, models.FeedPending), 1)

	consent, err = svc.Consents.DecideConsent(ctx, parent, consent.ID, ConsentDecision{ConsentGiven: true, ParentSignature: "Lan Nguyen"})
	require.NoError(t, err)
	assert.Equal(t, models.ConsentApproved, consent.Status)

	c = mustGetCampaign(t, svc, c.ID)
	assert.Equal(t, 1, c.ConsentReceived)
	assert.Equal(t, 1.0, c.ConsentRate())
	assertCounterBounds(t, c)

	result, err := svc.Results.SubmitResult(ctx, nurse, c.ID, 1, checkupMetrics(140, 35))
	require.NoError(t, err)
	require.NotNil(t, result.BMI)
	assert.InDelta(t, 17.86, *result.BMI, 0.01)

	c = mustGetCampaign(t, svc, c.ID)
	assert.Equal(t, 1, c.CheckupsCompleted)
	assert.Equal(t, 1.0, c.CompletionRate())
	assertCounterBounds(t, c)

	consent, err = svc.Consents.GetConsent(ctx, consent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConsentCompleted, consent.Status)

	assert.Empty(t, feedStatus(t, svc, parent, models.FeedPending))
	completed := feedStatus(t, svc, parent, models.FeedCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, int64(1), completed[0].StudentID)
	feed := PartitionByFamily(completed)
	assert.Len(t, feed.Examinations, 1)
	assert.Empty(t, feed.Vaccinations)

	// deleting the result does not revert the consent
	require.NoError(t, svc.Results.DeleteResult(ctx, staff, result.ID))
	c = mustGetCampaign(t, svc, c.ID)
	assert.Equal(t, 0, c.CheckupsCompleted)
	assert.Equal(t, 1, c.ConsentReceived)
	consent, err = svc.Consents.GetConsent(ctx, consent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConsentCompleted, consent.Status)
}

func TestSubmitDuplicateResult(t *testing.T) {
	ctx := context.Background()
	svc, repos := newEngine(t)

	// align the generated ids with campaign 5 / student 9
	for i := 0; i < 5; i++ {
		_, err := svc.Campaigns.CreateCampaign(ctx, staff, checkupDraft(nil))
		require.NoError(t, err)
	}
	addStudent(t, repos, 9, parent.ID, "Grade 1")

	_, err := svc.Results.SubmitResult(ctx, nurse, 5, 9, checkupMetrics(150, 40))
	require.NoError(t, err)
	_, err = svc.Results.SubmitResult(ctx, nurse, 5, 9, checkupMetrics(151, 41))
	require.Error(t, err)
	assert.Equal(t, apperrors.KindDuplicateResult, apperrors.KindOf(err))

	list, err := svc.Results.ListByCampaign(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, mustGetCampaign(t, svc, 5).CheckupsCompleted)
}

func TestConcurrentSubmitsSamePair(t *testing.T) {
	ctx := context.Background()
	svc, _ := newEngine(t)
	c, err := svc.Campaigns.CreateCampaign(ctx, staff, checkupDraft(intPtr(10)))
	require.NoError(t, err)

	var ok, dup int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Results.SubmitResult(ctx, nurse, c.ID, 3, checkupMetrics(150, 40))
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
	assert.Equal(t, int32(9), dup)
	assert.Equal(t, 1, mustGetCampaign(t, svc, c.ID).CheckupsCompleted)
}

func TestConcurrentSubmitsKeepCountersExact(t *testing.T) {
	ctx := context.Background()
	svc, _ := newEngine(t)
	c, err := svc.Campaigns.CreateCampaign(ctx, staff, checkupDraft(intPtr(20)))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for student := int64(1); student <= 8; student++ {
		wg.Add(1)
		go func(studentID int64) {
			defer wg.Done()
			m := checkupMetrics(150, 40)
			m.RequiresFollowup = studentID%2 == 0
			_, err := svc.Results.SubmitResult(ctx, nurse, c.ID, studentID, m)
			assert.NoError(t, err)
		}(student)
	}
	wg.Wait()

	got := mustGetCampaign(t, svc, c.ID)
	assert.Equal(t, 8, got.CheckupsCompleted)
	assert.Equal(t, 4, got.RequiringFollowup)
	assert.False(t, got.CountersStale)
	assertCounterBounds(t, got)
}

func TestCampaignStateMachine(t *testing.T) {
	ctx := context.Background()
	svc, _ := newEngine(t)
	c, err := svc.Campaigns.CreateCampaign(ctx, staff, checkupDraft(nil))
	require.NoError(t, err)

	_, err = svc.Campaigns.UpdateCampaign(ctx, staff, c.ID, models.CampaignPatch{Status: statusPtr(models.CampaignCompleted)})
	assert.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(err))

	_, err = svc.Campaigns.UpdateCampaign(ctx, staff, c.ID, models.CampaignPatch{Status: statusPtr(models.CampaignInProgress)})
	require.NoError(t, err)
	done, err := svc.Campaigns.UpdateCampaign(ctx, staff, c.ID, models.CampaignPatch{Status: statusPtr(models.CampaignCompleted)})
	require.NoError(t, err)
	assert.Equal(t, models.CampaignCompleted, done.Status)

	_, err = svc.Campaigns.UpdateCampaign(ctx, staff, c.ID, models.CampaignPatch{Status: statusPtr(models.CampaignPlanned)})
	assert.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(err))
	assert.Equal(t, models.CampaignCompleted, mustGetCampaign(t, svc, c.ID).Status)

	active, err := svc.Campaigns.ListActiveCampaigns(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestCampaignAuthorization(t *testing.T) {
	ctx := context.Background()
	svc, _ := newEngine(t)

	_, err := svc.Campaigns.CreateCampaign(ctx, nurse, checkupDraft(nil))
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))

	c, err := svc.Campaigns.CreateCampaign(ctx, staff, checkupDraft(nil))
	require.NoError(t, err)

	_, err = svc.Campaigns.UpdateCampaign(ctx, nurse, c.ID, models.CampaignPatch{Status: statusPtr(models.CampaignCancelled)})
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))

	renamed, err := svc.Campaigns.UpdateCampaign(ctx, nurse, c.ID, models.CampaignPatch{Name: strPtr("Autumn checkup")})
	require.NoError(t, err)
	assert.Equal(t, "Autumn checkup", renamed.Name)
	assert.Equal(t, c.Version+1, renamed.Version)

	_, err = svc.Campaigns.UpdateCampaign(ctx, parent, c.ID, models.CampaignPatch{Name: strPtr("x y")})
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))
}

func TestCampaignValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newEngine(t)

	draft := checkupDraft(nil)
	draft.Name = "  "
	_, err := svc.Campaigns.CreateCampaign(ctx, staff, draft)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	draft = checkupDraft(intPtr(-1))
	_, err = svc.Campaigns.CreateCampaign(ctx, staff, draft)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	_, err = svc.Campaigns.UpdateCampaign(ctx, staff, 1, models.CampaignPatch{})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	_, err = svc.Campaigns.GetCampaign(ctx, 42)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestConsentDecisions(t *testing.T) {
	ctx := context.Background()
	svc, repos := newEngine(t)
	addStudent(t, repos, 1, parent.ID, "Grade 1")
	c, err := svc.Campaigns.CreateCampaign(ctx, staff, checkupDraft(nil))
	require.NoError(t, err)
	rec, err := svc.Consents.IssueConsent(ctx, nurse, c.ID, 1)
	require.NoError(t, err)

	again, err := svc.Consents.IssueConsent(ctx, nurse, c.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, again.ID)

	_, err = svc.Consents.DecideConsent(ctx, parent, rec.ID, ConsentDecision{ConsentGiven: true})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	_, err = svc.Consents.DecideConsent(ctx, other, rec.ID, ConsentDecision{ConsentGiven: false})
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))

	declined, err := svc.Consents.DecideConsent(ctx, parent, rec.ID, ConsentDecision{ConsentGiven: false, Note: "ill"})
	require.NoError(t, err)
	assert.Equal(t, models.ConsentRejected, declined.Status)
	assert.Equal(t, 0, mustGetCampaign(t, svc, c.ID).ConsentReceived)

	// a declined consent may still be approved later
	approved, err := svc.Consents.DecideConsent(ctx, parent, rec.ID, ConsentDecision{ConsentGiven: true, ParentSignature: "L"})
	require.NoError(t, err)
	assert.Equal(t, models.ConsentApproved, approved.Status)
	require.NotNil(t, approved.DecidedBy)
	assert.Equal(t, parent.ID, *approved.DecidedBy)

	_, err = svc.Consents.DecideConsent(ctx, parent, rec.ID, ConsentDecision{ConsentGiven: false})
	assert.Equal(t, apperrors.KindAlreadyFinalized, apperrors.KindOf(err))

	_, err = svc.Consents.ListByStudent(ctx, other, 1)
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))
	_, err = svc.Consents.ViewConsent(ctx, other, rec.ID)
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))
	mine, err := svc.Consents.ListByStudent(ctx, parent, 1)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestConcurrentDecisionsSingleWinner(t *testing.T) {
	ctx := context.Background()
	svc, repos := newEngine(t)
	addStudent(t, repos, 1, parent.ID, "Grade 1")
	c, err := svc.Campaigns.CreateCampaign(ctx, staff, checkupDraft(nil))
	require.NoError(t, err)
	rec, err := svc.Consents.IssueConsent(ctx, nurse, c.ID, 1)
	require.NoError(t, err)

	var ok, finalized int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Consents.DecideConsent(ctx, parent, rec.ID, ConsentDecision{ConsentGiven: true, ParentSignature: "L"})
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case errors.Is(err, apperrors.ErrAlreadyFinalized):
				atomic.AddInt32(&finalized, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), ok)
	assert.Equal(t, int32(9), finalized)
	assert.Equal(t, 1, mustGetCampaign(t, svc, c.ID).ConsentReceived)
}

func TestMarkCompletedRequiresApproval(t *testing.T) {
	ctx := context.Background()
	svc, _ := newEngine(t)
	c, err := svc.Campaigns.CreateCampaign(ctx, staff, checkupDraft(nil))
	require.NoError(t, err)
	rec, err := svc.Consents.IssueConsent(ctx, nurse, c.ID, 1)
	require.NoError(t, err)

	_, err = svc.Consents.MarkCompleted(ctx, rec.ID)
	assert.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(err))

	// a result for a pending consent is stored but leaves the consent alone
	_, err = svc.Results.SubmitResult(ctx, nurse, c.ID, 1, checkupMetrics(150, 40))
	require.NoError(t, err)
	rec, err = svc.Consents.GetConsent(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConsentPending, rec.Status)
}

func TestApprovalAfterResultCompletesConsent(t *testing.T) {
	ctx := context.Background()
	svc, repos := newEngine(t)
	addStudent(t, repos, 1, parent.ID, "Grade 1")
	c, err := svc.Campaigns.CreateCampaign(ctx, staff, checkupDraft(intPtr(100)))
	require.NoError(t, err)
	rec, err := svc.Consents.IssueConsent(ctx, nurse, c.ID, 1)
	require.NoError(t, err)

	// the nurse examines the student before the guardian answers
	_, err = svc.Results.SubmitResult(ctx, nurse, c.ID, 1, checkupMetrics(140, 35))
	require.NoError(t, err)

	decided, err := svc.Consents.DecideConsent(ctx, parent, rec.ID, ConsentDecision{ConsentGiven: true, ParentSignature: "Lan Nguyen"})
	require.NoError(t, err)
	assert.Equal(t, models.ConsentCompleted, decided.Status)
	assert.True(t, decided.ConsentGiven)

	stored, err := svc.Consents.GetConsent(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConsentCompleted, stored.Status)
	assert.Len(t, feedStatus(t, svc, parent, models.FeedCompleted), 1)
	assert.Empty(t, feedStatus(t, svc, parent, models.FeedApproved))

	got := mustGetCampaign(t, svc, c.ID)
	assert.Equal(t, 1, got.ConsentReceived)
	assert.Equal(t, 1, got.CheckupsCompleted)
	assertCounterBounds(t, got)
}

func TestApprovalWithoutResultStaysApproved(t *testing.T) {
	ctx := context.Background()
	svc, repos := newEngine(t)
	addStudent(t, repos, 1, parent.ID, "Grade 1")
	addStudent(t, repos, 2, parent.ID, "Grade 1")
	c, err := svc.Campaigns.CreateCampaign(ctx, staff, checkupDraft(intPtr(10)))
	require.NoError(t, err)
	rec, err := svc.Consents.IssueConsent(ctx, nurse, c.ID, 1)
	require.NoError(t, err)

	// a result for a sibling must not complete this consent
	_, err = svc.Results.SubmitResult(ctx, nurse, c.ID, 2, checkupMetrics(140, 35))
	require.NoError(t, err)

	decided, err := svc.Consents.DecideConsent(ctx, parent, rec.ID, ConsentDecision{ConsentGiven: true, ParentSignature: "L"})
	require.NoError(t, err)
	assert.Equal(t, models.ConsentApproved, decided.Status)
}

func TestDecideOnCompletedConsent(t *testing.T) {
	ctx := context.Background()
	svc, repos := newEngine(t)
	addStudent(t, repos, 1, parent.ID, "Grade 1")
	c, err := svc.Campaigns.CreateCampaign(ctx, staff, checkupDraft(intPtr(10)))
	require.NoError(t, err)
	rec, err := svc.Consents.IssueConsent(ctx, nurse, c.ID, 1)
	require.NoError(t, err)
	_, err = svc.Consents.DecideConsent(ctx, parent, rec.ID, ConsentDecision{ConsentGiven: true, ParentSignature: "L"})
	require.NoError(t, err)
	_, err = svc.Results.SubmitResult(ctx, nurse, c.ID, 1, checkupMetrics(150, 40))
	require.NoError(t, err)

	rec, err = svc.Consents.GetConsent(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, models.ConsentCompleted, rec.Status)

	for _, decision := range []ConsentDecision{
		{ConsentGiven: false, Note: "changed my mind"},
		{ConsentGiven: true, ParentSignature: "L"},
	} {
		_, err = svc.Consents.DecideConsent(ctx, parent, rec.ID, decision)
		assert.Equal(t, apperrors.KindAlreadyFinalized, apperrors.KindOf(err))
	}

	rec, err = svc.Consents.GetConsent(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConsentCompleted, rec.Status)
	assert.Equal(t, 1, mustGetCampaign(t, svc, c.ID).ConsentReceived)
}

func TestIssueForRoster(t *testing.T) {
	ctx := context.Background()
	svc, repos := newEngine(t)
	addStudent(t, repos, 1, parent.ID, "Grade 1")
	addStudent(t, repos, 2, parent.ID, "grade 2")
	addStudent(t, repos, 3, other.ID, "Grade 3")

	c, err := svc.Campaigns.CreateCampaign(ctx, staff, checkupDraft(nil))
	require.NoError(t, err)

	records, err := svc.Consents.IssueForRoster(ctx, nurse, c.ID)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	again, err := svc.Consents.IssueForRoster(ctx, nurse, c.ID)
	require.NoError(t, err)
	assert.Equal(t, records[0].ID, again[0].ID)

	// no declared total: the roster size of the target grades is used
	assert.Equal(t, 2, mustGetCampaign(t, svc, c.ID).TotalStudents)
}

func TestRetargetingGradesRefreshesTotal(t *testing.T) {
	ctx := context.Background()
	svc, repos := newEngine(t)
	addStudent(t, repos, 1, parent.ID, "Grade 1")
	addStudent(t, repos, 2, parent.ID, "Grade 3")
	addStudent(t, repos, 3, other.ID, "Grade 3")

	draft := checkupDraft(nil)
	draft.TargetGrades = "Grade 1"
	c, err := svc.Campaigns.CreateCampaign(ctx, staff, draft)
	require.NoError(t, err)
	_, err = svc.Consents.IssueForRoster(ctx, nurse, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, mustGetCampaign(t, svc, c.ID).TotalStudents)

	updated, err := svc.Campaigns.UpdateCampaign(ctx, nurse, c.ID, models.CampaignPatch{TargetGrades: strPtr("Grade 1, Grade 3")})
	require.NoError(t, err)
	assert.Equal(t, "Grade 1, Grade 3", updated.TargetGrades)
	assert.Equal(t, 3, updated.TotalStudents)
	assert.Equal(t, 3, mustGetCampaign(t, svc, c.ID).TotalStudents)

	// a declared total wins over the roster
	declared, err := svc.Campaigns.CreateCampaign(ctx, staff, checkupDraft(intPtr(40)))
	require.NoError(t, err)
	updated, err = svc.Campaigns.UpdateCampaign(ctx, nurse, declared.ID, models.CampaignPatch{TargetGrades: strPtr("Grade 3")})
	require.NoError(t, err)
	assert.Equal(t, 40, updated.TotalStudents)
}

func TestClosedCampaignRejectsWrites(t *testing.T) {
	ctx := context.Background()
	svc, repos := newEngine(t)
	addStudent(t, repos, 1, parent.ID, "Grade 1")
	c, err := svc.Campaigns.CreateCampaign(ctx, staff, checkupDraft(nil))
	require.NoError(t, err)
	rec, err := svc.Consents.IssueConsent(ctx, nurse, c.ID, 1)
	require.NoError(t, err)
	res, err := svc.Results.SubmitResult(ctx, nurse, c.ID, 1, checkupMetrics(150, 40))
	require.NoError(t, err)

	for _, s := range []models.CampaignStatus{models.CampaignInProgress, models.CampaignCompleted} {
		_, err = svc.Campaigns.UpdateCampaign(ctx, staff, c.ID, models.CampaignPatch{Status: statusPtr(s)})
		require.NoError(t, err)
	}

	_, err = svc.Consents.IssueConsent(ctx, nurse, c.ID, 2)
	assert.Equal(t, apperrors.KindCampaignClosed, apperrors.KindOf(err))
	_, err = svc.Consents.DecideConsent(ctx, parent, rec.ID, ConsentDecision{ConsentGiven: false})
	assert.Equal(t, apperrors.KindCampaignClosed, apperrors.KindOf(err))
	_, err = svc.Results.SubmitResult(ctx, nurse, c.ID, 2, checkupMetrics(150, 40))
	assert.Equal(t, apperrors.KindCampaignClosed, apperrors.KindOf(err))
	_, err = svc.Results.UpdateResult(ctx, nurse, res.ID, models.ResultPatch{GeneralHealth: strPtr("fine")})
	assert.Equal(t, apperrors.KindCampaignClosed, apperrors.KindOf(err))
}

func TestSubmitValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newEngine(t)
	c, err := svc.Campaigns.CreateCampaign(ctx, staff, checkupDraft(nil))
	require.NoError(t, err)

	m := checkupMetrics(150, 40)
	m.HearingTest = ""
	_, err = svc.Results.SubmitResult(ctx, nurse, c.ID, 1, m)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	var custom *apperrors.CustomError
	require.True(t, errors.As(err, &custom))
	assert.Equal(t, []string{"hearingTest"}, custom.Details["fields"])

	_, err = svc.Results.SubmitResult(ctx, nurse, c.ID, 1, checkupMetrics(-1, 40))
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	_, err = svc.Results.SubmitResult(ctx, parent, c.ID, 1, checkupMetrics(150, 40))
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))
}

func TestVaccinationResults(t *testing.T) {
	ctx := context.Background()
	svc, _ := newEngine(t)
	draft := models.CampaignDraft{
		Family:        models.FamilyVaccination,
		Name:          "Measles",
		ScheduledDate: time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC),
		TargetGrades:  "Grade 1",
		VaccineType:   "MMR",
		TotalStudents: intPtr(30),
	}
	c, err := svc.Campaigns.CreateCampaign(ctx, staff, draft)
	require.NoError(t, err)

	res, err := svc.Results.SubmitResult(ctx, nurse, c.ID, 1, models.ResultMetrics{
		VaccinationDetails: models.VaccinationDetails{BatchNumber: "B-17", Outcome: "no reaction"},
		RequiresFollowup:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "MMR", res.VaccineType)
	assert.False(t, res.RequiresFollowup)
	assert.Nil(t, res.BMI)

	got := mustGetCampaign(t, svc, c.ID)
	assert.Equal(t, 1, got.CheckupsCompleted)
	assert.Equal(t, 0, got.RequiringFollowup)
}

func TestUpdateResultFollowup(t *testing.T) {
	ctx := context.Background()
	svc, _ := newEngine(t)
	c, err := svc.Campaigns.CreateCampaign(ctx, staff, checkupDraft(intPtr(10)))
	require.NoError(t, err)
	res, err := svc.Results.SubmitResult(ctx, nurse, c.ID, 1, checkupMetrics(170, 59))
	require.NoError(t, err)
	require.NotNil(t, res.BMI)
	assert.InDelta(t, 20.42, *res.BMI, 0.01)

	updated, err := svc.Results.UpdateResult(ctx, nurse, res.ID, models.ResultPatch{RequiresFollowup: boolPtr(true), Weight: floatPtr(35), Height: floatPtr(140)})
	require.NoError(t, err)
	assert.InDelta(t, 17.86, *updated.BMI, 0.01)
	assert.Equal(t, 1, mustGetCampaign(t, svc, c.ID).RequiringFollowup)

	_, err = svc.Results.UpdateResult(ctx, nurse, res.ID, models.ResultPatch{VisionTest: strPtr(" ")})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	err = svc.Results.DeleteResult(ctx, nurse, res.ID)
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))
}

func TestConcurrentResultEditsKeepBothFields(t *testing.T) {
	ctx := context.Background()
	svc, _ := newEngine(t)
	c, err := svc.Campaigns.CreateCampaign(ctx, staff, checkupDraft(intPtr(10)))
	require.NoError(t, err)
	res, err := svc.Results.SubmitResult(ctx, nurse, c.ID, 1, checkupMetrics(150, 40))
	require.NoError(t, err)

	patches := []models.ResultPatch{
		{Recommendations: strPtr("drink more water")},
		{BloodPressure: strPtr("120/80")},
		{HearingTest: strPtr("mild loss, left ear")},
		{RequiresFollowup: boolPtr(true)},
	}
	var wg sync.WaitGroup
	errs := make([]error, len(patches))
	for i, patch := range patches {
		wg.Add(1)
		go func(i int, patch models.ResultPatch) {
			defer wg.Done()
			_, errs[i] = svc.Results.UpdateResult(ctx, nurse, res.ID, patch)
		}(i, patch)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}

	final, err := svc.Results.GetResult(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "drink more water", final.Recommendations)
	assert.Equal(t, "120/80", final.BloodPressure)
	assert.Equal(t, "mild loss, left ear", final.HearingTest)
	assert.True(t, final.RequiresFollowup)
	assert.Equal(t, res.Version+int64(len(patches)), final.Version)
	assert.Equal(t, 1, mustGetCampaign(t, svc, c.ID).RequiringFollowup)
}

// closingResults completes the owning campaign right before the next result write lands
type closingResults struct {
	repositories.ResultStore
	campaigns repositories.CampaignStore
	armed     atomic.Bool
}

func (r *closingResults) UpdateResult(ctx context.Context, rec *models.ResultRecord, expectedVersion int64) (*models.ResultRecord, error) {
	if r.armed.CompareAndSwap(true, false) {
		c, err := r.campaigns.GetCampaign(ctx, rec.CampaignID)
		if err != nil {
			return nil, err
		}
		c.Status = models.CampaignCompleted
		if _, err := r.campaigns.UpdateCampaign(ctx, c, c.Version); err != nil {
			return nil, err
		}
	}
	return r.ResultStore.UpdateResult(ctx, rec, expectedVersion)
}

func TestUpdateResultRacingCampaignCompletion(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewRepositories(memory.Open())
	closing := &closingResults{ResultStore: repos.Results, campaigns: repos.Campaigns}
	repos.Results = closing
	svc := NewServices(repos, fastRetries, zerolog.Nop())

	c, err := svc.Campaigns.CreateCampaign(ctx, staff, checkupDraft(intPtr(10)))
	require.NoError(t, err)
	_, err = svc.Campaigns.UpdateCampaign(ctx, staff, c.ID, models.CampaignPatch{Status: statusPtr(models.CampaignInProgress)})
	require.NoError(t, err)
	res, err := svc.Results.SubmitResult(ctx, nurse, c.ID, 1, checkupMetrics(150, 40))
	require.NoError(t, err)

	closing.armed.Store(true)
	_, err = svc.Results.UpdateResult(ctx, nurse, res.ID, models.ResultPatch{GeneralHealth: strPtr("tired")})
	assert.Equal(t, apperrors.KindCampaignClosed, apperrors.KindOf(err))
	assert.Equal(t, models.CampaignCompleted, mustGetCampaign(t, svc, c.ID).Status)

	stored, err := svc.Results.GetResult(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "good", stored.GeneralHealth)
	assert.Equal(t, res.Version, stored.Version)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newEngine(t)
	c, err := svc.Campaigns.CreateCampaign(ctx, staff, checkupDraft(intPtr(10)))
	require.NoError(t, err)
	_, err = svc.Results.SubmitResult(ctx, nurse, c.ID, 1, checkupMetrics(150, 40))
	require.NoError(t, err)

	first, err := svc.Aggregator.Recompute(ctx, c.ID)
	require.NoError(t, err)
	second, err := svc.Aggregator.Recompute(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, first.CampaignCounters, second.CampaignCounters)
	assert.Equal(t, first.Version, second.Version)

	_, err = svc.Aggregator.Recompute(ctx, 999)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestTotalStudentsNeverBelowRecords(t *testing.T) {
	ctx := context.Background()
	svc, _ := newEngine(t)
	c, err := svc.Campaigns.CreateCampaign(ctx, staff, checkupDraft(intPtr(1)))
	require.NoError(t, err)
	for student := int64(1); student <= 3; student++ {
		_, err := svc.Consents.IssueConsent(ctx, nurse, c.ID, student)
		require.NoError(t, err)
	}
	got := mustGetCampaign(t, svc, c.ID)
	assert.Equal(t, 3, got.TotalStudents)
	assertCounterBounds(t, got)
}

// flakyCampaigns fails counter writes while failing is set
type flakyCampaigns struct {
	repositories.CampaignStore
	failing atomic.Bool
	calls   atomic.Int32
}

func (f *flakyCampaigns) ApplyCounters(ctx context.Context, id, expectedVersion int64, counters models.CampaignCounters) (*models.Campaign, error) {
	f.calls.Add(1)
	if f.failing.Load() {
		return nil, fmt.Errorf("apply counters: %w", apperrors.ErrTransientIO)
	}
	return f.CampaignStore.ApplyCounters(ctx, id, expectedVersion, counters)
}

func TestScheduleFlagsStaleAndReconcileRepairs(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewRepositories(memory.Open())
	flaky := &flakyCampaigns{CampaignStore: repos.Campaigns}
	repos.Campaigns = flaky
	svc := NewServices(repos, fastRetries, zerolog.Nop())

	c, err := svc.Campaigns.CreateCampaign(ctx, staff, checkupDraft(intPtr(10)))
	require.NoError(t, err)

	flaky.failing.Store(true)
	res, err := svc.Results.SubmitResult(ctx, nurse, c.ID, 1, checkupMetrics(150, 40))
	require.NoError(t, err, "the write stands when the recompute fails")
	require.NotNil(t, res)
	// first attempt plus MaxRetries
	assert.Equal(t, int32(fastRetries.MaxRetries+1), flaky.calls.Load())

	stale := mustGetCampaign(t, svc, c.ID)
	assert.True(t, stale.CountersStale)
	assert.Equal(t, 0, stale.CheckupsCompleted)

	_, err = svc.Aggregator.Reconcile(ctx, nurse, false)
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))

	report, err := svc.Aggregator.Reconcile(ctx, staff, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Checked)
	assert.Len(t, report.Failed, 1)
	assert.Empty(t, report.Repaired)

	flaky.failing.Store(false)
	report, err = svc.Aggregator.Reconcile(ctx, staff, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{c.ID}, report.Repaired)

	repaired := mustGetCampaign(t, svc, c.ID)
	assert.False(t, repaired.CountersStale)
	assert.Equal(t, 1, repaired.CheckupsCompleted)

	report, err = svc.Aggregator.Reconcile(ctx, staff, false)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Checked)
}

func TestNotificationFeed(t *testing.T) {
	ctx := context.Background()
	svc, repos := newEngine(t)
	addStudent(t, repos, 1, parent.ID, "Grade 1")
	addStudent(t, repos, 2, parent.ID, "Grade 2")
	addStudent(t, repos, 3, other.ID, "Grade 1")

	checkup, err := svc.Campaigns.CreateCampaign(ctx, staff, checkupDraft(nil))
	require.NoError(t, err)
	vacc, err := svc.Campaigns.CreateCampaign(ctx, staff, models.CampaignDraft{
		Family: models.FamilyVaccination, Name: "Flu shot", VaccineType: "Influenza",
		ScheduledDate: time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC), TargetGrades: "Grade 1, Grade 2",
	})
	require.NoError(t, err)
	_, err = svc.Consents.IssueForRoster(ctx, nurse, checkup.ID)
	require.NoError(t, err)
	_, err = svc.Consents.IssueForRoster(ctx, nurse, vacc.ID)
	require.NoError(t, err)

	items, err := svc.Notifications.BuildFeed(ctx, parent, parent.ID)
	require.NoError(t, err)
	require.Len(t, items, 4)
	// newest campaign first
	assert.Equal(t, vacc.ID, items[0].CampaignID)
	assert.Equal(t, "Influenza vaccination for Grade 1, Grade 2", items[0].Description)
	assert.NotEmpty(t, items[0].Requirements)
	assert.Equal(t, 3, items[0].MaxParticipants)

	feed := PartitionByFamily(items)
	assert.Len(t, feed.Examinations, 2)
	assert.Len(t, feed.Vaccinations, 2)

	_, err = svc.Notifications.BuildFeed(ctx, other, parent.ID)
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))

	nurseView, err := svc.Notifications.BuildFeed(ctx, nurse, other.ID)
	require.NoError(t, err)
	assert.Len(t, nurseView, 2)
}

func TestFeedDropsConsentOfUnknownCampaign(t *testing.T) {
	ctx := context.Background()
	svc, repos := newEngine(t)
	addStudent(t, repos, 1, parent.ID, "Grade 1")

	// a consent whose campaign no longer resolves
	_, created, err := repos.Consents.IssueConsent(ctx, &models.ConsentRecord{
		CampaignID:  999,
		StudentID:   1,
		ConsentType: models.FamilyHealthCheckup,
		Status:      models.ConsentPending,
	})
	require.NoError(t, err)
	require.True(t, created)

	items, err := svc.Notifications.BuildFeed(ctx, parent, parent.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	// resolvable siblings of the same guardian still show up
	c, err := svc.Campaigns.CreateCampaign(ctx, staff, checkupDraft(nil))
	require.NoError(t, err)
	_, err = svc.Consents.IssueConsent(ctx, nurse, c.ID, 1)
	require.NoError(t, err)
	items, err = svc.Notifications.BuildFeed(ctx, parent, parent.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, c.ID, items[0].CampaignID)
}
