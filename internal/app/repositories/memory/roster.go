package memory

import (
	"context"
	"sort"

	"github.com/yigit/schoolhealth/internal/app/models"
)

// RosterRepository is the memory-backed roster.
type RosterRepository struct {
	db *DB
}

// NewRosterRepository creates a roster over db.
func NewRosterRepository(db *DB) *RosterRepository {
	return &RosterRepository{db: db}
}

func (r *RosterRepository) filter(match func(*models.RosterEntry) bool) []models.RosterEntry {
	t := r.db.students
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	res := []models.RosterEntry{}
	for _, s := range t.t {
		if match(s) {
			res = append(res, *s)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].StudentID < res[j].StudentID })
	return res
}

func (r *RosterRepository) StudentsInGrades(_ context.Context, grades []string) ([]models.RosterEntry, error) {
	wanted := make(map[string]bool, len(grades))
	for _, g := range grades {
		wanted[g] = true
	}
	return r.filter(func(s *models.RosterEntry) bool { return wanted[models.NormalizeGrade(s.Grade)] }), nil
}

func (r *RosterRepository) StudentsOfGuardian(_ context.Context, guardianID int64) ([]models.RosterEntry, error) {
	return r.filter(func(s *models.RosterEntry) bool { return s.GuardianID == guardianID }), nil
}

// AddStudent stores entry and assigns the next id unless one is already set.
func (r *RosterRepository) AddStudent(_ context.Context, entry models.RosterEntry) (models.RosterEntry, error) {
	t := r.db.students
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if entry.StudentID == 0 {
		t.seq++
		entry.StudentID = t.seq
	} else if entry.StudentID > t.seq {
		t.seq = entry.StudentID
	}
	stored := entry
	t.t[entry.StudentID] = &stored
	return entry, nil
}
