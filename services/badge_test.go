package services

import (
	"testing"

	"bounty-platform/models"
	"bounty-platform/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMilestoneBadges(t *testing.T) {
	tests := []struct {
		accepted, points int64
		want             []string
	}{
		{0, 0, nil},
		{1, 0, []string{models.BadgeBeginner}},
		{5, 100, []string{models.BadgeProfessional, models.BadgeBeginner, models.BadgeAdvanced}},
		{12, 650, []string{
			models.BadgeExpert, models.BadgeProfessional, models.BadgeBeginner,
			models.BadgeElite, models.BadgeMaster, models.BadgeAdvanced,
		}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MilestoneBadges(tt.accepted, tt.points), "accepted=%d points=%d", tt.accepted, tt.points)
	}
}

func TestAwardBadges_AppendOnly(t *testing.T) {
	db := testutil.NewDB(t)
	u := testutil.CreateHacker(t, db, "neo")

	require.NoError(t, awardBadges(db, u.ID, []string{models.BadgeBeginner}))
	require.NoError(t, awardBadges(db, u.ID, []string{models.BadgeBeginner, models.BadgeMaster}))
	require.NoError(t, awardBadges(db, u.ID, nil))

	var codes []string
	require.NoError(t, db.Model(&models.UserBadge{}).Where("user_id = ?", u.ID).Order("code").Pluck("code", &codes).Error)
	assert.Equal(t, []string{models.BadgeBeginner, models.BadgeMaster}, codes)
}
