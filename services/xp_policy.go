package services

import (
	"math"

	"bounty-platform/models"
)

// SeverityWeights maps each known severity to a score.
type SeverityWeights struct {
	Critical int64
	High     int64
	Medium   int64
	Low      int64
}

var DefaultSeverityXP = SeverityWeights{
	Critical: 500,
	High:     300,
	Medium:   150,
	Low:      50,
}

// LegacySeverityPoints feeds the points leaderboard; it is independent of XP.
var LegacySeverityPoints = SeverityWeights{
	Critical: 100,
	High:     50,
	Medium:   25,
	Low:      10,
}

func (w SeverityWeights) For(s models.Severity) int64 {
	switch models.ParseSeverity(string(s)) {
	case models.SeverityCritical:
		return w.Critical
	case models.SeverityHigh:
		return w.High
	case models.SeverityMedium:
		return w.Medium
	case models.SeverityLow:
		return w.Low
	default:
		return 0
	}
}

// withDefaults replaces non-positive weights by the matching entry of def.
func (w SeverityWeights) withDefaults(def SeverityWeights) SeverityWeights {
	pick := func(v, d int64) int64 {
		if v <= 0 {
			return d
		}
		return v
	}
	return SeverityWeights{
		Critical: pick(w.Critical, def.Critical),
		High:     pick(w.High, def.High),
		Medium:   pick(w.Medium, def.Medium),
		Low:      pick(w.Low, def.Low),
	}
}

// XPPolicy is the single place severities turn into XP and points.
type XPPolicy struct {
	xp     SeverityWeights
	points SeverityWeights
}

// NewXPPolicy builds a policy from optional overrides; zero fields keep the defaults.
func NewXPPolicy(overrides SeverityWeights) *XPPolicy {
	return &XPPolicy{
		xp:     overrides.withDefaults(DefaultSeverityXP),
		points: LegacySeverityPoints,
	}
}

// XPForSeverity never returns a negative value; unknown severities earn 0.
func (p *XPPolicy) XPForSeverity(s models.Severity) int64 {
	return p.xp.For(s)
}

func (p *XPPolicy) PointsForSeverity(s models.Severity) int64 {
	return p.points.For(s)
}

// BaseXPPerLevel: level n requires BaseXPPerLevel·n² cumulative XP.
const BaseXPPerLevel = 100

func RequiredXPForLevel(level int) int64 {
	n := int64(level)
	return BaseXPPerLevel * n * n
}

// LevelFromXP returns max(1, floor(sqrt(xp/100))).
func LevelFromXP(xp int64) int {
	q := xp / BaseXPPerLevel
	if q <= 0 {
		return 1
	}
	r := int64(math.Sqrt(float64(q)))
	for r*r > q {
		r--
	}
	for (r+1)*(r+1) <= q {
		r++
	}
	if r < 1 {
		return 1
	}
	return int(r)
}

var tierThresholds = []struct {
	minLevel int
	tier     models.Tier
}{
	{13, models.TierDiamond},
	{10, models.TierPlatinum},
	{7, models.TierGold},
	{4, models.TierSilver},
}

func TierFromLevel(level int) models.Tier {
	for _, t := range tierThresholds {
		if level >= t.minLevel {
			return t.tier
		}
	}
	return models.TierBronze
}

// LevelProgress describes how far a user is between two levels.
type LevelProgress struct {
	CurrentLevel   int     `json:"current_level"`
	Progress       float64 `json:"progress"` // 0..1
	CurrentLevelXP int64   `json:"current_level_xp"`
	NextLevelXP    int64   `json:"next_level_xp"`
}

func ProgressForXP(xp int64) LevelProgress {
	level := LevelFromXP(xp)
	cur := RequiredXPForLevel(level)
	next := RequiredXPForLevel(level + 1)

	frac := float64(xp-cur) / float64(next-cur)
	frac = math.Max(0, math.Min(1, frac))

	return LevelProgress{
		CurrentLevel:   level,
		Progress:       frac,
		CurrentLevelXP: cur,
		NextLevelXP:    next,
	}
}
