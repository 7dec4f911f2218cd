package models

import (
	"strings"
	"time"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity lowercases s. The result may be unknown; check Valid.
func ParseSeverity(s string) Severity {
	return Severity(strings.ToLower(strings.TrimSpace(s)))
}

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

type ReportStatus string

const (
	ReportPending   ReportStatus = "pending"
	ReportTriaged   ReportStatus = "triaged"
	ReportAccepted  ReportStatus = "accepted"
	ReportRejected  ReportStatus = "rejected"
	ReportDuplicate ReportStatus = "duplicate"
)

func ParseReportStatus(s string) ReportStatus {
	return ReportStatus(strings.ToLower(strings.TrimSpace(s)))
}

// Terminal reports whether no further review transition is allowed out of s.
func (s ReportStatus) Terminal() bool {
	return s == ReportAccepted || s == ReportRejected || s == ReportDuplicate
}

// Report is a hacker's submission against a program.
type Report struct {
	ID          string   `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ProgramID   string   `gorm:"type:varchar(36);index;not null" json:"program_id"`
	Program     *Program `gorm:"foreignKey:ProgramID" json:"program,omitempty"`
	SubmittedBy string   `gorm:"type:varchar(36);index;not null" json:"submitted_by"`
	Submitter   *User    `gorm:"foreignKey:SubmittedBy" json:"submitter,omitempty"`

	Title       string   `gorm:"not null" json:"title"`
	Description string   `gorm:"type:text;not null" json:"description"`
	Severity    Severity `gorm:"type:varchar(16);not null" json:"severity"`
	FileURL     string   `gorm:"not null" json:"file_url"`
	FileName    string   `gorm:"not null" json:"file_name"`

	Status      ReportStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	Reward      float64      `gorm:"not null;default:0" json:"reward"`
	RewardGiven bool         `gorm:"not null;default:false" json:"reward_given"`

	// XPAwarded is written once, on entry into accepted.
	XPAwarded   *int64  `json:"xp_awarded,omitempty"`
	ReviewedBy  *string `gorm:"type:varchar(36)" json:"reviewed_by,omitempty"`
	ReviewNotes string  `gorm:"type:text" json:"review_notes"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
