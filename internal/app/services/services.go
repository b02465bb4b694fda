package services

import (
	"github.com/rs/zerolog"
	"github.com/yigit/schoolhealth/internal/app/auth"
	"github.com/yigit/schoolhealth/internal/app/repositories"
)

// Services defined in this package:
// - CampaignService: campaign registry and its status state machine
// - ConsentService: per-student consent ledger
// - ResultService: checkup and vaccination results
// - AggregatorService: derived campaign counters
// - NotificationService: guardian notification feed
type Services struct {
	Campaigns     CampaignService
	Consents      ConsentService
	Results       ResultService
	Aggregator    AggregatorService
	Notifications NotificationService
	Authz         *auth.AuthorizationService
}

// NewServices wires every service over repos
func NewServices(repos *repositories.Repositories, aggCfg AggregatorConfig, logger zerolog.Logger) *Services {
	authz := auth.NewAuthorizationService(repos.Roster)
	aggregator := NewAggregatorService(repos, aggCfg, logger)
	consents := NewConsentService(repos, aggregator, authz, logger.With().Str("service", "consent").Logger())
	return &Services{
		Campaigns:     NewCampaignService(repos.Campaigns, aggregator, logger.With().Str("service", "campaign").Logger()),
		Consents:      consents,
		Results:       NewResultService(repos, consents, aggregator, logger.With().Str("service", "result").Logger()),
		Aggregator:    aggregator,
		Notifications: NewNotificationService(repos, authz, logger.With().Str("service", "notification").Logger()),
		Authz:         authz,
	}
}
