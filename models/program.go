package models

import (
	"slices"
	"time"
)

type ProgramStatus string

const (
	ProgramActive   ProgramStatus = "active"
	ProgramInactive ProgramStatus = "inactive"
)

// Program is a company's bounty scope, mirrored from the program service.
type Program struct {
	ID                string        `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title             string        `gorm:"not null" json:"title"`
	CompanyID         string        `gorm:"type:varchar(36);index;not null" json:"company_id"`
	AllowedSeverities []Severity    `gorm:"serializer:json;type:text" json:"severity_levels"`
	RewardMin         float64       `json:"reward_min"`
	RewardMax         float64       `json:"reward_max"`
	Status            ProgramStatus `gorm:"type:varchar(16);not null;default:'active';index" json:"status"`

	// Reports are never deleted, so this holds every report ever submitted here.
	Reports []Report `gorm:"foreignKey:ProgramID" json:"reports,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (p *Program) IsActive() bool {
	return p.Status == ProgramActive
}

func (p *Program) AllowsSeverity(s Severity) bool {
	return slices.Contains(p.AllowedSeverities, s)
}
