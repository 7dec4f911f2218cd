package models

import (
	"strings"
	"time"
)

// Role is the closed set of platform roles.
type Role string

const (
	RoleHacker  Role = "hacker"
	RoleCompany Role = "company"
	RoleAdmin   Role = "admin"
)

// ParseRole normalizes s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleHacker, RoleCompany, RoleAdmin:
		return r, true
	default:
		return "", false
	}
}

// User is the local record of a platform account. Identity columns (name, email,
// role, country) are mirrored from the profile service by the user sync worker;
// the progression columns are owned here and written only by the progression
// engine (xp, level, tier, streak, last_active_at) or the legacy points/rank flows.
type User struct {
	ID      string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name    string `gorm:"not null" json:"name"`
	Email   string `gorm:"index" json:"email,omitempty"`
	Role    Role   `gorm:"type:varchar(16);index;not null" json:"role"`
	Country string `gorm:"type:varchar(64);index" json:"country,omitempty"`
	Avatar  string `json:"avatar,omitempty"`

	// Gamification
	XP           int64      `gorm:"not null;default:0;index" json:"xp"`
	Level        int        `gorm:"not null;default:1" json:"level"`
	Tier         Tier       `gorm:"type:varchar(16);not null;default:'Bronze'" json:"tier"`
	Streak       int        `gorm:"not null;default:0" json:"streak"`
	LastActiveAt *time.Time `json:"last_active_at,omitempty"`

	// Legacy scoring
	Points int64 `gorm:"not null;default:0;index" json:"points"`
	Rank   int   `gorm:"not null;default:0" json:"rank"`

	Badges []UserBadge `gorm:"foreignKey:UserID" json:"badges,omitempty"`

	// Version is bumped on every progression write and used as a compare-and-swap guard.
	Version int64 `gorm:"not null;default:0" json:"-"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// BadgeCodes returns the codes of the badges loaded on u.
func (u *User) BadgeCodes() []string {
	codes := make([]string, 0, len(u.Badges))
	for _, b := range u.Badges {
		codes = append(codes, b.Code)
	}
	return codes
}

// RemoteUser mirrors the profile service's public profile payload (read-only).
type RemoteUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Country   string    `json:"country"`
	Avatar    string    `json:"avatar"`
	UpdatedAt time.Time `json:"updated_at"`
}
