package testutil

import (
	"testing"

	"bounty-platform/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateUser inserts u, filling ID, Name, Level and Tier when empty.
func CreateUser(t *testing.T, db *gorm.DB, u models.User) *models.User {
	t.Helper()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Name == "" {
		u.Name = "user-" + u.ID[:8]
	}
	if u.Role == "" {
		u.Role = models.RoleHacker
	}
	if u.Level == 0 {
		u.Level = 1
	}
	if u.Tier == "" {
		u.Tier = models.TierBronze
	}
	require.NoError(t, db.Omit(clause.Associations).Create(&u).Error)
	return &u
}

func CreateHacker(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	return CreateUser(t, db, models.User{Name: name, Role: models.RoleHacker})
}

func CreateCompany(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	return CreateUser(t, db, models.User{Name: name, Role: models.RoleCompany})
}

func CreateAdmin(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return CreateUser(t, db, models.User{Name: "admin", Role: models.RoleAdmin})
}

// CreateProgram inserts an active program owned by companyID. With no severities
// given it allows all four.
func CreateProgram(t *testing.T, db *gorm.DB, companyID string, sevs ...models.Severity) *models.Program {
	t.Helper()
	if len(sevs) == 0 {
		sevs = []models.Severity{
			models.SeverityLow, models.SeverityMedium, models.SeverityHigh, models.SeverityCritical,
		}
	}
	p := models.Program{
		ID:                uuid.NewString(),
		Title:             "Program " + companyID[:8],
		CompanyID:         companyID,
		AllowedSeverities: sevs,
		RewardMin:         100,
		RewardMax:         10000,
		Status:            models.ProgramActive,
	}
	require.NoError(t, db.Omit(clause.Associations).Create(&p).Error)
	return &p
}

// CreateReport inserts r, filling ID, text fields and a pending status when empty.
func CreateReport(t *testing.T, db *gorm.DB, r models.Report) *models.Report {
	t.Helper()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Title == "" {
		r.Title = "Finding " + r.ID[:8]
	}
	if r.Description == "" {
		r.Description = "steps to reproduce"
	}
	if r.Severity == "" {
		r.Severity = models.SeverityMedium
	}
	if r.Status == "" {
		r.Status = models.ReportPending
	}
	if r.FileURL == "" {
		r.FileURL = "/uploads/" + r.ID + ".pdf"
		r.FileName = r.ID + ".pdf"
	}
	require.NoError(t, db.Omit(clause.Associations).Create(&r).Error)
	return &r
}
