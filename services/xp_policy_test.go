package services

import (
	"math"
	"testing"

	"bounty-platform/models"

	"github.com/stretchr/testify/assert"
)

func TestXPForSeverity_Defaults(t *testing.T) {
	p := NewXPPolicy(SeverityWeights{})

	tests := []struct {
		sev  models.Severity
		want int64
	}{
		{"critical", 500},
		{"high", 300},
		{"medium", 150},
		{"low", 50},
		{"CRITICAL", 500},
		{" High ", 300},
		{"informational", 0},
		{"", 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.sev), func(t *testing.T) {
			got := p.XPForSeverity(tt.sev)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, int64(0))
		})
	}
}

func TestNewXPPolicy_Overrides(t *testing.T) {
	p := NewXPPolicy(SeverityWeights{Critical: 1000, Low: -5})

	assert.Equal(t, int64(1000), p.XPForSeverity(models.SeverityCritical))
	assert.Equal(t, int64(300), p.XPForSeverity(models.SeverityHigh))
	assert.Equal(t, int64(50), p.XPForSeverity(models.SeverityLow), "non-positive override keeps default")
}

func TestPointsForSeverity(t *testing.T) {
	p := NewXPPolicy(SeverityWeights{Critical: 9999})

	assert.Equal(t, int64(100), p.PointsForSeverity(models.SeverityCritical), "points ignore xp overrides")
	assert.Equal(t, int64(50), p.PointsForSeverity(models.SeverityHigh))
	assert.Equal(t, int64(25), p.PointsForSeverity(models.SeverityMedium))
	assert.Equal(t, int64(10), p.PointsForSeverity(models.SeverityLow))
	assert.Equal(t, int64(0), p.PointsForSeverity("bogus"))
}

func TestLevelFromXP(t *testing.T) {
	tests := []struct {
		xp   int64
		want int
	}{
		{-10, 1},
		{0, 1},
		{50, 1},
		{399, 1},
		{400, 2},
		{899, 2},
		{900, 3},
		{1600, 4},
		{16900, 13},
		{math.MaxInt64, 303700049},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelFromXP(tt.xp), "xp=%d", tt.xp)
	}
}

func TestLevelFromXP_Monotonic(t *testing.T) {
	prev := LevelFromXP(0)
	for xp := int64(0); xp <= 200_000; xp += 37 {
		lvl := LevelFromXP(xp)
		assert.GreaterOrEqual(t, lvl, 1)
		if lvl < prev {
			t.Fatalf("level decreased at xp=%d: %d < %d", xp, lvl, prev)
		}
		prev = lvl
	}
}

func TestRequiredXPForLevel_RoundTrips(t *testing.T) {
	for lvl := 1; lvl <= 50; lvl++ {
		need := RequiredXPForLevel(lvl)
		assert.Equal(t, lvl, LevelFromXP(need))
		if lvl > 1 {
			assert.Equal(t, lvl-1, LevelFromXP(need-1))
		}
	}
}

func TestTierFromLevel(t *testing.T) {
	tests := []struct {
		level int
		want  models.Tier
	}{
		{1, models.TierBronze},
		{3, models.TierBronze},
		{4, models.TierSilver},
		{6, models.TierSilver},
		{7, models.TierGold},
		{10, models.TierPlatinum},
		{12, models.TierPlatinum},
		{13, models.TierDiamond},
		{100, models.TierDiamond},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TierFromLevel(tt.level), "level=%d", tt.level)
	}
}

func TestTierFromLevel_Monotonic(t *testing.T) {
	order := map[models.Tier]int{
		models.TierBronze: 0, models.TierSilver: 1, models.TierGold: 2, models.TierPlatinum: 3, models.TierDiamond: 4,
	}
	prev := 0
	for lvl := 1; lvl <= 30; lvl++ {
		cur := order[TierFromLevel(lvl)]
		assert.GreaterOrEqual(t, cur, prev, "level=%d", lvl)
		prev = cur
	}
}

func TestProgressForXP(t *testing.T) {
	lp := ProgressForXP(650)
	assert.Equal(t, 2, lp.CurrentLevel)
	assert.Equal(t, int64(400), lp.CurrentLevelXP)
	assert.Equal(t, int64(900), lp.NextLevelXP)
	assert.InDelta(t, 0.5, lp.Progress, 1e-9)

	low := ProgressForXP(50)
	assert.Equal(t, 1, low.CurrentLevel)
	assert.Equal(t, 0.0, low.Progress, "below the level 1 bound clamps to 0")
}
