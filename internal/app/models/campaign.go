package models

import (
	"math"
	"strings"
	"time"
)

// CampaignCounters are the derived per-campaign statistics. Only the Aggregator writes them.
type CampaignCounters struct {
	TotalStudents     int `json:"totalStudents"`
	ConsentReceived   int `json:"consentReceived"`
	CheckupsCompleted int `json:"checkupsCompleted"`
	RequiringFollowup int `json:"requiringFollowup"`
}

// Campaign is a scheduled medical program targeting a set of grades.
type Campaign struct {
	ID            int64          `db:"id" json:"id"`
	Family        Family         `db:"family" json:"family"`
	Name          string         `db:"name" json:"name"`
	Description   string         `db:"description" json:"description,omitempty"`
	ScheduledDate time.Time      `db:"scheduled_date" json:"scheduledDate"`
	TargetGrades  string         `db:"target_grades" json:"targetGrades"`
	CheckupTypes  string         `db:"checkup_types" json:"checkupTypes,omitempty"`
	VaccineType   string         `db:"vaccine_type" json:"vaccineType,omitempty"`
	Status        CampaignStatus `db:"status" json:"status"`
	// DeclaredTotal is the roster size given by staff at creation; nil when unknown.
	DeclaredTotal *int `db:"declared_total" json:"declaredTotal,omitempty"`
	CampaignCounters
	CountersStale bool      `db:"counters_stale" json:"countersStale"`
	Version       int64     `db:"version" json:"version"`
	CreatedBy     int64     `db:"created_by" json:"createdBy"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// Descriptor returns the family-specific descriptor (checkup types or vaccine type).
func (c *Campaign) Descriptor() string {
	if c.Family == FamilyVaccination {
		return c.VaccineType
	}
	return c.CheckupTypes
}

// ConsentRate is consentReceived as a percentage of totalStudents.
func (c *Campaign) ConsentRate() float64 {
	return Rate(c.ConsentReceived, c.TotalStudents)
}

// CompletionRate is checkupsCompleted as a percentage of totalStudents.
func (c *Campaign) CompletionRate() float64 {
	return Rate(c.CheckupsCompleted, c.TotalStudents)
}

// Rate returns part/total*100 floored to two decimals, and 0 when total is not positive.
func Rate(part, total int) float64 {
	if total <= 0 || part <= 0 {
		return 0
	}
	return math.Floor(float64(part)*10000/float64(total)) / 100
}

// CampaignDraft is the staff input for creating a campaign.
type CampaignDraft struct {
	Family        Family
	Name          string
	Description   string
	ScheduledDate time.Time
	TargetGrades  string
	CheckupTypes  string
	VaccineType   string
	TotalStudents *int
}

// CampaignPatch lists every field staff may edit. Nil fields are left untouched.
type CampaignPatch struct {
	Name          *string
	Description   *string
	ScheduledDate *time.Time
	TargetGrades  *string
	CheckupTypes  *string
	VaccineType   *string
	Status        *CampaignStatus
}

// Empty reports whether the patch changes nothing.
func (p CampaignPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.ScheduledDate == nil && p.TargetGrades == nil &&
		p.CheckupTypes == nil && p.VaccineType == nil && p.Status == nil
}

// CampaignFilter narrows campaign listings. Zero values match everything.
type CampaignFilter struct {
	Family     Family
	Status     CampaignStatus
	ActiveOnly bool
	StaleOnly  bool
}

// Matches reports whether c passes the filter.
func (f CampaignFilter) Matches(c *Campaign) bool {
	if f.Family != "" && c.Family != f.Family {
		return false
	}
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.ActiveOnly && !c.Status.Active() {
		return false
	}
	if f.StaleOnly && !c.CountersStale {
		return false
	}
	return true
}

// ParseTargetGrades splits a free-text grade list such as "Grade 1, Grade 2; 3A" into
// normalized grade identifiers. Empty input yields no grades.
func ParseTargetGrades(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' || r == '|' })
	grades := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		g := NormalizeGrade(f)
		if g == "" || seen[g] {
			continue
		}
		seen[g] = true
		grades = append(grades, g)
	}
	return grades
}

// NormalizeGrade lowercases a grade and drops a leading "grade"/"lớp" word, so "Grade 1" and "1" match.
func NormalizeGrade(raw string) string {
	g := strings.ToLower(strings.TrimSpace(raw))
	for _, prefix := range []string{"grade", "lớp", "class"} {
		g = strings.TrimSpace(strings.TrimPrefix(g, prefix))
	}
	return g
}
