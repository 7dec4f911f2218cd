package services

import (
	"bounty-platform/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// milestone is a badge earned by crossing a counter threshold.
type milestone struct {
	code      string
	accepted  int64
	minPoints int64
}

var milestones = []milestone{
	{code: models.BadgeExpert, accepted: 10},
	{code: models.BadgeProfessional, accepted: 5},
	{code: models.BadgeBeginner, accepted: 1},
	{code: models.BadgeElite, minPoints: 500},
	{code: models.BadgeMaster, minPoints: 200},
	{code: models.BadgeAdvanced, minPoints: 100},
}

// MilestoneBadges returns every milestone badge earned by the given totals.
func MilestoneBadges(acceptedReports, points int64) []string {
	var earned []string
	for _, m := range milestones {
		switch {
		case m.accepted > 0 && acceptedReports >= m.accepted:
			earned = append(earned, m.code)
		case m.minPoints > 0 && points >= m.minPoints:
			earned = append(earned, m.code)
		}
	}
	return earned
}

// awardBadges appends codes to the user's badge set. Already-held badges are skipped,
// so the call is safe to repeat.
func awardBadges(tx *gorm.DB, userID string, codes []string) error {
	if len(codes) == 0 {
		return nil
	}
	rows := make([]models.UserBadge, 0, len(codes))
	for _, code := range codes {
		rows = append(rows, models.UserBadge{
			ID:     uuid.NewString(),
			UserID: userID,
			Code:   code,
		})
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "code"}},
		DoNothing: true,
	}).Create(&rows).Error
}
