package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yigit/schoolhealth/internal/app/models"
)

// CampaignStore persists campaigns. UpdateCampaign and ApplyCounters are optimistic:
// they succeed only while the stored version equals the expected one and bump it.
type CampaignStore interface {
	CreateCampaign(ctx context.Context, campaign *models.Campaign) (*models.Campaign, error)
	GetCampaign(ctx context.Context, id int64) (*models.Campaign, error)
	ListCampaigns(ctx context.Context, filter models.CampaignFilter) ([]*models.Campaign, error)
	UpdateCampaign(ctx context.Context, campaign *models.Campaign, expectedVersion int64) (*models.Campaign, error)
	ApplyCounters(ctx context.Context, id int64, expectedVersion int64, counters models.CampaignCounters) (*models.Campaign, error)
	SetCountersStale(ctx context.Context, id int64, stale bool) error
}

// ConsentStore persists consent records with a unique (campaign, student) key.
type ConsentStore interface {
	// IssueConsent inserts rec unless the pair exists; created reports which happened.
	IssueConsent(ctx context.Context, rec *models.ConsentRecord) (stored *models.ConsentRecord, created bool, err error)
	GetConsent(ctx context.Context, id int64) (*models.ConsentRecord, error)
	GetConsentByPair(ctx context.Context, campaignID, studentID int64) (*models.ConsentRecord, error)
	// TransitionConsent applies change only while the current status is one of from,
	// otherwise it returns apperrors.ErrStateConflict together with the current record.
	TransitionConsent(ctx context.Context, id int64, from []models.ConsentStatus, change models.ConsentTransition) (*models.ConsentRecord, error)
	ListConsentsByStudent(ctx context.Context, studentID int64) ([]*models.ConsentRecord, error)
	ListConsentsByCampaign(ctx context.Context, campaignID int64) ([]*models.ConsentRecord, error)
}

// ResultStore persists result records with a unique (campaign, student) key.
type ResultStore interface {
	CreateResult(ctx context.Context, rec *models.ResultRecord) (*models.ResultRecord, error)
	GetResult(ctx context.Context, id int64) (*models.ResultRecord, error)
	GetResultByPair(ctx context.Context, campaignID, studentID int64) (*models.ResultRecord, error)
	// UpdateResult is optimistic like CampaignStore.UpdateCampaign. It also refuses the write with
	// apperrors.ErrCampaignClosed once the owning campaign is completed.
	UpdateResult(ctx context.Context, rec *models.ResultRecord, expectedVersion int64) (*models.ResultRecord, error)
	DeleteResult(ctx context.Context, id int64) error
	ListResultsByCampaign(ctx context.Context, campaignID int64) ([]*models.ResultRecord, error)
}

// RosterService is the roster collaborator: which students exist and who their guardians are.
type RosterService interface {
	StudentsInGrades(ctx context.Context, grades []string) ([]models.RosterEntry, error)
	StudentsOfGuardian(ctx context.Context, guardianID int64) ([]models.RosterEntry, error)
	AddStudent(ctx context.Context, entry models.RosterEntry) (models.RosterEntry, error)
}

// Repositories holds all the repository instances
type Repositories struct {
	Campaigns CampaignStore
	Consents  ConsentStore
	Results   ResultStore
	Roster    RosterService
}

// NewRepositories initializes all postgres-backed repositories
func NewRepositories(db *pgxpool.Pool) *Repositories {
	return &Repositories{
		Campaigns: NewCampaignRepository(db),
		Consents:  NewConsentRepository(db),
		Results:   NewResultRepository(db),
		Roster:    NewRosterRepository(db),
	}
}
