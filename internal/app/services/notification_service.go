package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/yigit/schoolhealth/internal/app/auth"
	"github.com/yigit/schoolhealth/internal/app/models"
	"github.com/yigit/schoolhealth/internal/app/repositories"
	"github.com/yigit/schoolhealth/internal/pkg/apperrors"
)

// familyRequirements are the static preparation notes shown on every item of a family
var familyRequirements = map[models.Family][]string{
	models.FamilyHealthCheckup: {
		"Parental consent form signed",
		"Student attends school on the checkup day",
		"Bring glasses or hearing aids if used",
	},
	models.FamilyVaccination: {
		"Parental consent form signed",
		"Vaccination record book",
		"Inform the school nurse of allergies or recent illness",
	},
}

// Feed is the notification list split into display tabs
type Feed struct {
	Examinations []models.NotificationItem `json:"examinations"`
	Vaccinations []models.NotificationItem `json:"vaccinations"`
}

// NotificationService builds the guardian-facing notification feed
type NotificationService interface {
	BuildFeed(ctx context.Context, actor models.Actor, guardianID int64) ([]models.NotificationItem, error)
}

type notificationServiceImpl struct {
	campaigns repositories.CampaignStore
	consents  repositories.ConsentStore
	roster    repositories.RosterService
	authz     *auth.AuthorizationService
	logger    zerolog.Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(repos *repositories.Repositories, authz *auth.AuthorizationService, logger zerolog.Logger) NotificationService {
	return &notificationServiceImpl{
		campaigns: repos.Campaigns,
		consents:  repos.Consents,
		roster:    repos.Roster,
		authz:     authz,
		logger:    logger,
	}
}

func describe(c *models.Campaign) string {
	if c.Description != "" {
		return c.Description
	}
	switch c.Family {
	case models.FamilyVaccination:
		if c.VaccineType != "" {
			return fmt.Sprintf("%s vaccination for %s", c.VaccineType, c.TargetGrades)
		}
		return fmt.Sprintf("Vaccination for %s", c.TargetGrades)
	default:
		if c.CheckupTypes != "" {
			return fmt.Sprintf("Health checkup (%s) for %s", c.CheckupTypes, c.TargetGrades)
		}
		return fmt.Sprintf("Health checkup for %s", c.TargetGrades)
	}
}

// toItem projects one consent record onto its campaign
func toItem(rec *models.ConsentRecord, c *models.Campaign) models.NotificationItem {
	requirements := append([]string(nil), familyRequirements[c.Family]...)
	return models.NotificationItem{
		ID:              rec.ID,
		Family:          c.Family,
		Title:           c.Name,
		Description:     describe(c),
		Date:            c.ScheduledDate,
		Status:          rec.Status.FeedStatus(),
		Participants:    c.ConsentReceived,
		MaxParticipants: c.TotalStudents,
		Requirements:    requirements,
		CampaignID:      c.ID,
		ConsentRecordID: rec.ID,
		StudentID:       rec.StudentID,
	}
}

func (s *notificationServiceImpl) BuildFeed(ctx context.Context, actor models.Actor, guardianID int64) ([]models.NotificationItem, error) {
	if guardianID <= 0 {
		return nil, apperrors.NewValidationError("id", "guardian ID must be positive")
	}
	if err := s.authz.ValidateFeedAccess(actor, guardianID); err != nil {
		return nil, err
	}

	students, err := s.roster.StudentsOfGuardian(ctx, guardianID)
	if err != nil {
		return nil, err
	}

	// campaigns are shared between siblings; nil marks one that could not be resolved
	campaigns := make(map[int64]*models.Campaign)
	items := []models.NotificationItem{}
	for _, st := range students {
		records, err := s.consents.ListConsentsByStudent(ctx, st.StudentID)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			c, seen := campaigns[rec.CampaignID]
			if !seen {
				c, err = s.campaigns.GetCampaign(ctx, rec.CampaignID)
				if errors.Is(err, apperrors.ErrNotFound) {
					c = nil
				} else if err != nil {
					return nil, err
				}
				campaigns[rec.CampaignID] = c
			}
			if c == nil {
				s.logger.Warn().
					Int64("consentID", rec.ID).
					Int64("campaignID", rec.CampaignID).
					Int64("guardianID", guardianID).
					Msg("Dropping notification for unresolved campaign")
				continue
			}
			items = append(items, toItem(rec, c))
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].Date.Equal(items[j].Date) {
			return items[i].Date.After(items[j].Date)
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

// PartitionByFamily splits items into the examination and vaccination tabs, keeping order
func PartitionByFamily(items []models.NotificationItem) Feed {
	feed := Feed{Examinations: []models.NotificationItem{}, Vaccinations: []models.NotificationItem{}}
	for _, it := range items {
		switch it.Family {
		case models.FamilyHealthCheckup:
			feed.Examinations = append(feed.Examinations, it)
		case models.FamilyVaccination:
			feed.Vaccinations = append(feed.Vaccinations, it)
		}
	}
	return feed
}

// FilterByStatus keeps the items shown under one feed status
func FilterByStatus(items []models.NotificationItem, status models.FeedStatus) []models.NotificationItem {
	out := []models.NotificationItem{}
	for _, it := range items {
		if it.Status == status {
			out = append(out, it)
		}
	}
	return out
}
