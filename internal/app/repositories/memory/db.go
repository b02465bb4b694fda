// Package memory is a process-local backend implementing the repository interfaces.
// Each table is guarded by its own RWMutex; pair uniqueness and version checks run under the write lock.
package memory

import (
	"sync"
	"time"

	"github.com/yigit/schoolhealth/internal/app/models"
	"github.com/yigit/schoolhealth/internal/app/repositories"
)

type (
	// DB holds every in-memory table.
	DB struct {
		campaigns *campaignTable
		consents  *consentTable
		results   *resultTable
		students  *studentTable
		now       func() time.Time
	}

	campaignTable struct {
		t     map[int64]*models.Campaign
		seq   int64
		mutex sync.RWMutex
	}

	pairKey struct {
		campaignID int64
		studentID  int64
	}

	consentTable struct {
		t      map[int64]*models.ConsentRecord
		byPair map[pairKey]int64
		seq    int64
		mutex  sync.RWMutex
	}

	resultTable struct {
		t      map[int64]*models.ResultRecord
		byPair map[pairKey]int64
		seq    int64
		mutex  sync.RWMutex
	}

	studentTable struct {
		t     map[int64]*models.RosterEntry
		seq   int64
		mutex sync.RWMutex
	}
)

// Open creates an empty database.
func Open() *DB {
	return &DB{
		campaigns: &campaignTable{t: make(map[int64]*models.Campaign)},
		consents:  &consentTable{t: make(map[int64]*models.ConsentRecord), byPair: make(map[pairKey]int64)},
		results:   &resultTable{t: make(map[int64]*models.ResultRecord), byPair: make(map[pairKey]int64)},
		students:  &studentTable{t: make(map[int64]*models.RosterEntry)},
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// NewRepositories wires every memory-backed repository around db.
func NewRepositories(db *DB) *repositories.Repositories {
	return &repositories.Repositories{
		Campaigns: NewCampaignRepository(db),
		Consents:  NewConsentRepository(db),
		Results:   NewResultRepository(db),
		Roster:    NewRosterRepository(db),
	}
}
