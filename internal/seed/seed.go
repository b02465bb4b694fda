package seed

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	appModels "github.com/yigit/schoolhealth/internal/app/models"
	appRepos "github.com/yigit/schoolhealth/internal/app/repositories"
	pkgAuth "github.com/yigit/schoolhealth/internal/pkg/auth"
)

// Demo identities. Authentication is external, so these only exist as token subjects.
var (
	DemoStaff  = appModels.Actor{ID: 1, Role: appModels.RoleStaff}
	DemoNurse  = appModels.Actor{ID: 2, Role: appModels.RoleNurse}
	DemoParent = appModels.Actor{ID: 100, Role: appModels.RoleParent}
)

// DemoRoster is loaded into an empty roster
var DemoRoster = []appModels.RosterEntry{
	{GuardianID: 100, Grade: "Grade 1", FullName: "An Nguyen"},
	{GuardianID: 100, Grade: "Grade 3", FullName: "Binh Nguyen"},
	{GuardianID: 101, Grade: "Grade 1", FullName: "Chi Tran"},
	{GuardianID: 101, Grade: "Grade 2", FullName: "Dung Tran"},
	{GuardianID: 102, Grade: "Grade 2", FullName: "Em Le"},
	{GuardianID: 102, Grade: "Grade 3", FullName: "Giang Le"},
	{GuardianID: 103, Grade: "Grade 4", FullName: "Hoa Pham"},
	{GuardianID: 104, Grade: "Grade 5", FullName: "Khanh Vo"},
}

// CreateDefaultData loads the demo roster unless the first demo guardian already has students
func CreateDefaultData(ctx context.Context, roster appRepos.RosterService, lgr zerolog.Logger) error {
	lgr.Info().Msg("Checking/Creating default roster...")

	existing, err := roster.StudentsOfGuardian(ctx, DemoRoster[0].GuardianID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		lgr.Info().Int("students", len(existing)).Msg("Roster already seeded, skipping")
		return nil
	}

	var finalErr error
	added := 0
	for _, entry := range DemoRoster {
		if _, err := roster.AddStudent(ctx, entry); err != nil {
			lgr.Error().Err(err).Str("student", entry.FullName).Msg("Error creating demo student")
			finalErr = errors.Join(finalErr, err)
			continue
		}
		added++
	}
	lgr.Info().Int("students", added).Msg("Default roster created")
	return finalErr
}

// LogDemoTokens prints bearer tokens for the demo identities. Development only.
func LogDemoTokens(jwtService *pkgAuth.JWTService, lgr zerolog.Logger) {
	for _, actor := range []appModels.Actor{DemoStaff, DemoNurse, DemoParent} {
		token, expiresIn, err := jwtService.GenerateAccessToken(actor)
		if err != nil {
			lgr.Error().Err(err).Str("role", string(actor.Role)).Msg("Failed to mint demo token")
			continue
		}
		lgr.Info().
			Int64("actorID", actor.ID).
			Str("role", string(actor.Role)).
			Int("expiresIn", expiresIn).
			Str("token", token).
			Msg("Demo bearer token")
	}
}
