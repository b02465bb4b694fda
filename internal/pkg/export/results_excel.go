package export

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
	"github.com/yigit/schoolhealth/internal/app/models"
)

// SheetSpec is one worksheet: a bold, filterable header row followed by string rows
type SheetSpec struct {
	Title  string
	Header []string
	Rows   [][]string
}

var (
	checkupHeader     = []string{"Result ID", "Student ID", "Nurse ID", "Height (cm)", "Weight (kg)", "BMI", "Blood pressure", "Vision", "Hearing", "General health", "Recommendations", "Checkup date", "Follow-up"}
	vaccinationHeader = []string{"Result ID", "Student ID", "Nurse ID", "Vaccine", "Batch", "Outcome", "Side effects", "Vaccination date"}
)

// ResultsWorkbook builds the export of one campaign: a summary sheet and a results sheet
func ResultsWorkbook(c *models.Campaign, results []*models.ResultRecord, locale models.Locale) (*excelize.File, error) {
	summary := SheetSpec{
		Title:  "Summary",
		Header: []string{"Field", "Value"},
		Rows: [][]string{
			{"Campaign", c.Name},
			{"Family", models.DisplayLabel(models.LabelFamily, string(c.Family), locale)},
			{"Status", models.DisplayLabel(models.LabelCampaignStatus, string(c.Status), locale)},
			{"Scheduled date", c.ScheduledDate.Format("2006-01-02")},
			{"Target grades", c.TargetGrades},
			{"Total students", strconv.Itoa(c.TotalStudents)},
			{"Consent received", strconv.Itoa(c.ConsentReceived)},
			{"Consent rate (%)", formatFloat(c.ConsentRate())},
			{"Completed", strconv.Itoa(c.CheckupsCompleted)},
			{"Completion rate (%)", formatFloat(c.CompletionRate())},
			{"Requiring follow-up", strconv.Itoa(c.RequiringFollowup)},
		},
	}

	detail := SheetSpec{Title: "Results"}
	if c.Family == models.FamilyVaccination {
		detail.Header = vaccinationHeader
		for _, r := range results {
			detail.Rows = append(detail.Rows, []string{
				strconv.FormatInt(r.ID, 10), strconv.FormatInt(r.StudentID, 10), strconv.FormatInt(r.NurseID, 10),
				r.VaccineType, r.BatchNumber, r.Outcome, r.SideEffects, formatDate(r.VaccinationDate),
			})
		}
	} else {
		detail.Header = checkupHeader
		for _, r := range results {
			detail.Rows = append(detail.Rows, []string{
				strconv.FormatInt(r.ID, 10), strconv.FormatInt(r.StudentID, 10), strconv.FormatInt(r.NurseID, 10),
				formatOptional(r.Height), formatOptional(r.Weight), formatOptional(r.BMI),
				r.BloodPressure, r.VisionTest, r.HearingTest, r.GeneralHealth, r.Recommendations,
				formatDate(r.CheckupDate),
				models.DisplayLabel(models.LabelFollowup, string(models.FollowupFlagOf(r.RequiresFollowup)), locale),
			})
		}
	}

	return NewWorkbook([]SheetSpec{summary, detail})
}

// NewWorkbook renders sheets into a new file. The first sheet replaces the default Sheet1.
func NewWorkbook(sheets []SheetSpec) (*excelize.File, error) {
	f := excelize.NewFile()
	bold, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})

	for i, s := range sheets {
		name := s.Title
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("new sheet: %w", err)
		}

		for col, h := range s.Header {
			cell := fmt.Sprintf("%s1", colName(col+1))
			if err := f.SetCellStr(name, cell, h); err != nil {
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
		if len(s.Header) > 0 {
			end := colName(len(s.Header)) + "1"
			_ = f.SetCellStyle(name, "A1", end, bold)
			_ = f.AutoFilter(name, "A1:"+end, nil)
		}

		for r, row := range s.Rows {
			for c, val := range row {
				cell := fmt.Sprintf("%s%d", colName(c+1), r+2)
				if err := f.SetCellStr(name, cell, val); err != nil {
					return nil, fmt.Errorf("set cell %s: %w", cell, err)
				}
			}
		}

		// heuristic width from the header and the first rows
		for c := 1; c <= len(s.Header); c++ {
			widest := len(s.Header[c-1])
			for r := 0; r < min(50, len(s.Rows)); r++ {
				if c-1 < len(s.Rows[r]) && len(s.Rows[r][c-1]) > widest {
					widest = len(s.Rows[r][c-1])
				}
			}
			w := float64(widest) * 0.9
			if w < 12 {
				w = 12
			}
			if w > 40 {
				w = 40
			}
			_ = f.SetColWidth(name, colName(c), colName(c), w)
		}
	}
	return f, nil
}

// WriteResults streams the campaign export as xlsx
func WriteResults(w io.Writer, c *models.Campaign, results []*models.ResultRecord, locale models.Locale) error {
	f, err := ResultsWorkbook(c, results, locale)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// FileName is the download name of a campaign export
func FileName(c *models.Campaign, at time.Time) string {
	return fmt.Sprintf("campaign_%d_results_%s.xlsx", c.ID, at.Format("2006-01-02"))
}

func colName(n int) string {
	s := ""
	for n > 0 {
		n--
		s = string(rune('A'+(n%26))) + s
		n /= 26
	}
	return s
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
