package helpers

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/yigit/schoolhealth/internal/pkg/apperrors"
)

// DateLayout is the date-only wire format accepted next to RFC3339.
const DateLayout = "2006-01-02"

// ParseDuration parses a duration string, returns default duration on error.
func ParseDuration(durationStr string, defaultDuration time.Duration) time.Duration {
	duration, err := time.ParseDuration(durationStr)
	if err != nil {
		// Use the global logger here, assuming logger might not be configured when this is called.
		log.Warn().Err(err).Str("durationStr", durationStr).Dur("defaultDuration", defaultDuration).Msg("Failed to parse duration string, using default")
		return defaultDuration
	}
	return duration
}

// ParseDate accepts RFC3339 timestamps and plain dates, returning UTC.
func ParseDate(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(DateLayout, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, apperrors.NewValidationError(field, fmt.Sprintf("%s must be a date (YYYY-MM-DD) or RFC3339 timestamp", field))
}

// ParseOptionalDate is ParseDate for optional fields; nil and blank stay nil.
func ParseOptionalDate(field string, raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	t, err := ParseDate(field, *raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
