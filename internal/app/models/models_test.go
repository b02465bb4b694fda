package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/schoolhealth/internal/pkg/apperrors"
)

func TestCampaignStatusTransitions(t *testing.T) {
	allowed := map[CampaignStatus][]CampaignStatus{
		CampaignPlanned:    {CampaignInProgress, CampaignCancelled},
		CampaignInProgress: {CampaignCompleted, CampaignCancelled},
		CampaignCompleted:  {},
		CampaignCancelled:  {},
	}
	for from, targets := range allowed {
		for _, to := range CampaignStatuses {
			want := false
			for _, target := range targets {
				if target == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}

	assert.True(t, CampaignCompleted.Terminal())
	assert.True(t, CampaignCancelled.Terminal())
	assert.True(t, CampaignPlanned.Active())
	assert.True(t, CampaignInProgress.Active())
	assert.False(t, CampaignStatus("archived").Active())
}

func TestConsentStatusProjection(t *testing.T) {
	assert.Equal(t, FeedPending, ConsentPending.FeedStatus())
	assert.Equal(t, FeedPending, ConsentRejected.FeedStatus())
	assert.Equal(t, FeedApproved, ConsentApproved.FeedStatus())
	assert.Equal(t, FeedCompleted, ConsentCompleted.FeedStatus())

	assert.True(t, ConsentPending.Decidable())
	assert.True(t, ConsentRejected.Decidable())
	assert.False(t, ConsentApproved.Decidable())
	assert.False(t, ConsentCompleted.Decidable())

	assert.True(t, ConsentApproved.Counted())
	assert.True(t, ConsentCompleted.Counted())
	assert.False(t, ConsentRejected.Counted())
}

func TestParseVocabulary(t *testing.T) {
	f, err := ParseFamily(" Health-Checkup ")
	require.NoError(t, err)
	assert.Equal(t, FamilyHealthCheckup, f)

	s, err := ParseCampaignStatus("IN_PROGRESS")
	require.NoError(t, err)
	assert.Equal(t, CampaignInProgress, s)

	_, err = ParseConsentStatus("maybe")
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	_, err = ParseRole("teacher")
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestBMI(t *testing.T) {
	bmi, ok := BMI(170, 59)
	require.True(t, ok)
	assert.InDelta(t, 20.42, bmi, 0.01)

	bmi, ok = BMI(140, 35)
	require.True(t, ok)
	assert.InDelta(t, 17.86, bmi, 0.01)

	_, ok = BMI(0, 40)
	assert.False(t, ok)
	_, ok = BMI(150, -1)
	assert.False(t, ok)
}

func TestRefreshBMI(t *testing.T) {
	h, w := 170.0, 59.0
	r := &ResultRecord{CheckupMetrics: CheckupMetrics{Height: &h, Weight: &w}}
	r.RefreshBMI()
	require.NotNil(t, r.BMI)
	assert.InDelta(t, 20.42, *r.BMI, 0.01)

	r.Weight = nil
	r.RefreshBMI()
	assert.Nil(t, r.BMI)
}

func TestResultPatchRefreshesBMI(t *testing.T) {
	h, w := 170.0, 59.0
	r := &ResultRecord{CheckupMetrics: CheckupMetrics{Height: &h, Weight: &w}}
	r.RefreshBMI()

	newHeight := 140.0
	newWeight := 35.0
	ResultPatch{Height: &newHeight, Weight: &newWeight}.Apply(r)
	require.NotNil(t, r.BMI)
	assert.InDelta(t, 17.86, *r.BMI, 0.01)
	// the patch copies, it never aliases the caller's values
	newHeight = 1
	assert.Equal(t, 140.0, *r.Height)
}

func TestRate(t *testing.T) {
	assert.Equal(t, 0.0, Rate(3, 0))
	assert.Equal(t, 0.0, Rate(0, 10))
	assert.Equal(t, 33.33, Rate(1, 3))
	assert.Equal(t, 66.66, Rate(2, 3))
	assert.Equal(t, 100.0, Rate(4, 4))

	c := &Campaign{CampaignCounters: CampaignCounters{TotalStudents: 4, ConsentReceived: 3, CheckupsCompleted: 1}}
	assert.Equal(t, 75.0, c.ConsentRate())
	assert.Equal(t, 25.0, c.CompletionRate())
}

func TestParseTargetGrades(t *testing.T) {
	assert.Equal(t, []string{"1", "2", "3a"}, ParseTargetGrades("Grade 1, grade 2; 3A, 1"))
	assert.Empty(t, ParseTargetGrades("  "))
	assert.Equal(t, NormalizeGrade("Grade 1"), NormalizeGrade("1"))
}

func TestMissingFields(t *testing.T) {
	h, w := 150.0, 40.0
	complete := ResultMetrics{CheckupMetrics: CheckupMetrics{
		Height: &h, Weight: &w, BloodPressure: "110/70", VisionTest: "20/20", HearingTest: "normal", GeneralHealth: "good",
	}}
	assert.Empty(t, complete.MissingFields(FamilyHealthCheckup))
	assert.Equal(t, []string{"height", "weight", "bloodPressure", "visionTest", "hearingTest", "generalHealth"},
		ResultMetrics{}.MissingFields(FamilyHealthCheckup))
	assert.Equal(t, []string{"vaccineType", "batchNumber", "outcome"}, ResultMetrics{}.MissingFields(FamilyVaccination))
}

func TestCampaignFilter(t *testing.T) {
	c := &Campaign{Family: FamilyVaccination, Status: CampaignCompleted, CountersStale: true}
	assert.True(t, CampaignFilter{}.Matches(c))
	assert.True(t, CampaignFilter{Family: FamilyVaccination, StaleOnly: true}.Matches(c))
	assert.False(t, CampaignFilter{ActiveOnly: true}.Matches(c))
	assert.False(t, CampaignFilter{Family: FamilyHealthCheckup}.Matches(c))
}

func TestLabels(t *testing.T) {
	assert.Equal(t, LocaleVI, ParseLocale("vi-VN"))
	assert.Equal(t, LocaleEN, ParseLocale("fr"))
	assert.Equal(t, LocaleEN, ParseLocale(""))

	assert.Equal(t, "Tiêm chủng", DisplayLabel(LabelFamily, string(FamilyVaccination), LocaleVI))
	assert.Equal(t, "Declined", DisplayLabel(LabelConsentStatus, string(ConsentRejected), Locale("de")))
	assert.Equal(t, "unknown_value", DisplayLabel(LabelConsentStatus, "unknown_value", LocaleEN))

	table := LabelTable(LocaleEN)
	assert.Len(t, table[LabelCampaignStatus], len(CampaignStatuses))
	assert.Equal(t, "Follow-up required", table[LabelFollowup][string(FollowupRequired)])
}
