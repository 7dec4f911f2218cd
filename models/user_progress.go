package models

import (
	"slices"
	"time"
)

// Tier is the coarse bucket derived from a user's level.
type Tier string

const (
	TierBronze   Tier = "Bronze"
	TierSilver   Tier = "Silver"
	TierGold     Tier = "Gold"
	TierPlatinum Tier = "Platinum"
	TierDiamond  Tier = "Diamond"
)

// Progress is the progression state the engine reads and produces.
// It is a value type; callers persist it back onto the User explicitly.
type Progress struct {
	XP           int64      `json:"xp"`
	Level        int        `json:"level"`
	Tier         Tier       `json:"tier"`
	Streak       int        `json:"streak"`
	LastActiveAt *time.Time `json:"last_active_at,omitempty"`
	Badges       []string   `json:"badges"`
}

func (p Progress) HasBadge(code string) bool {
	return slices.Contains(p.Badges, code)
}

// Progress snapshots the progression columns of u. Badges must be preloaded.
func (u *User) Progress() Progress {
	p := Progress{
		XP:     u.XP,
		Level:  u.Level,
		Tier:   u.Tier,
		Streak: u.Streak,
		Badges: u.BadgeCodes(),
	}
	if u.LastActiveAt != nil {
		t := *u.LastActiveAt
		p.LastActiveAt = &t
	}
	return p
}

// ProgressColumns is the column map written back for a progression update.
func (p Progress) ProgressColumns() map[string]any {
	return map[string]any{
		"xp":             p.XP,
		"level":          p.Level,
		"tier":           p.Tier,
		"streak":         p.Streak,
		"last_active_at": p.LastActiveAt,
	}
}
