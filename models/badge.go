package models

import (
	"time"
)

const (
	BadgeCriticalFinder = "Critical Finder"

	BadgeBeginner     = "Beginner"
	BadgeProfessional = "Professional"
	BadgeExpert       = "Expert"
	BadgeAdvanced     = "Advanced"
	BadgeMaster       = "Master"
	BadgeElite        = "Elite"
)

// BadgeType is static badge metadata.
type BadgeType struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Rarity      string `json:"rarity"` // common, rare, epic, legendary
}

// UserBadge is an awarded badge. Badges are append-only: one row per (user, code).
type UserBadge struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"-"`
	UserID    string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_user_badge" json:"-"`
	Code      string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_user_badge" json:"code"`
	AwardedAt time.Time `gorm:"autoCreateTime" json:"awarded_at"`
}

// BadgeView is an awarded badge with its catalog metadata.
type BadgeView struct {
	BadgeType
	AwardedAt time.Time `json:"awarded_at"`
}

// View joins b with BadgeCatalog. Codes missing from the catalog keep only the code.
func (b UserBadge) View() BadgeView {
	meta, ok := BadgeCatalog[b.Code]
	if !ok {
		meta = BadgeType{Code: b.Code}
	}
	return BadgeView{BadgeType: meta, AwardedAt: b.AwardedAt}
}

// BadgeViews describes every badge in awarded order.
func BadgeViews(badges []UserBadge) []BadgeView {
	views := make([]BadgeView, 0, len(badges))
	for _, b := range badges {
		views = append(views, b.View())
	}
	return views
}

var BadgeCatalog = map[string]BadgeType{
	BadgeCriticalFinder: {Code: BadgeCriticalFinder, Description: "Landed a finding worth 500 XP or more", Rarity: "epic"},
	BadgeBeginner:       {Code: BadgeBeginner, Description: "First accepted report", Rarity: "common"},
	BadgeProfessional:   {Code: BadgeProfessional, Description: "5 accepted reports", Rarity: "rare"},
	BadgeExpert:         {Code: BadgeExpert, Description: "10 accepted reports", Rarity: "epic"},
	BadgeAdvanced:       {Code: BadgeAdvanced, Description: "100 points", Rarity: "common"},
	BadgeMaster:         {Code: BadgeMaster, Description: "200 points", Rarity: "rare"},
	BadgeElite:          {Code: BadgeElite, Description: "500 points", Rarity: "legendary"},
}
