package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"bounty-platform/logging"
	"bounty-platform/models"

	"gorm.io/gorm"
)

const (
	GlobalLeaderboardLimit   = 100
	SeasonalLeaderboardLimit = 50
	CountryLeaderboardLimit  = 50
	PointsLeaderboardLimit   = 100

	// SeasonMonths is the trailing window of the seasonal board.
	SeasonMonths = 3
)

type LeaderboardService struct {
	DB  *gorm.DB
	Log logging.Logger
	Now func() time.Time
}

func NewLeaderboardService(db *gorm.DB, log logging.Logger) *LeaderboardService {
	return &LeaderboardService{DB: db, Log: log, Now: time.Now}
}

// LeaderboardEntry is one row of the XP and points boards.
type LeaderboardEntry struct {
	Rank    int         `json:"rank"`
	UserID  string      `json:"user_id"`
	Name    string      `json:"name"`
	Country string      `json:"country,omitempty"`
	Avatar  string      `json:"avatar,omitempty"`
	XP      int64       `json:"xp"`
	Level   int         `json:"level"`
	Tier    models.Tier `json:"tier"`
	Points  int64       `json:"points"`
	Badges  []string    `json:"badges"`
}

func entryFor(rank int, u *models.User) LeaderboardEntry {
	return LeaderboardEntry{
		Rank:    rank,
		UserID:  u.ID,
		Name:    u.Name,
		Country: u.Country,
		Avatar:  u.Avatar,
		XP:      u.XP,
		Level:   u.Level,
		Tier:    u.Tier,
		Points:  u.Points,
		Badges:  u.BadgeCodes(),
	}
}

func (s *LeaderboardService) hackers(ctx context.Context) *gorm.DB {
	return s.DB.WithContext(ctx).
		Model(&models.User{}).
		Preload("Badges").
		Where("role = ?", models.RoleHacker)
}

func (s *LeaderboardService) rankByXP(q *gorm.DB, limit int) ([]LeaderboardEntry, error) {
	var users []models.User
	if err := q.Order("xp DESC").Order("id ASC").Limit(limit).Find(&users).Error; err != nil {
		return nil, err
	}
	entries := make([]LeaderboardEntry, 0, len(users))
	for i := range users {
		entries = append(entries, entryFor(i+1, &users[i]))
	}
	return entries, nil
}

// Global returns the top hackers by xp.
func (s *LeaderboardService) Global(ctx context.Context) ([]LeaderboardEntry, error) {
	return s.rankByXP(s.hackers(ctx), GlobalLeaderboardLimit)
}

// Country returns the top hackers by xp for one country.
func (s *LeaderboardService) Country(ctx context.Context, country string) ([]LeaderboardEntry, error) {
	country = strings.TrimSpace(country)
	if country == "" {
		return nil, validationError("country is required")
	}
	return s.rankByXP(s.hackers(ctx).Where("country = ?", country), CountryLeaderboardLimit)
}

// SeasonalEntry ranks a hacker by the reward earned on accepted reports this season.
type SeasonalEntry struct {
	Rank          int         `json:"rank"`
	UserID        string      `json:"user_id"`
	Name          string      `json:"name"`
	TotalReward   float64     `json:"total_reward"`
	AcceptedCount int64       `json:"accepted_reports"`
	XP            int64       `json:"xp"`
	Level         int         `json:"level"`
	Tier          models.Tier `json:"tier"`
	Badges        []string    `json:"badges"`
}

type seasonalRow struct {
	SubmittedBy   string
	TotalReward   float64
	AcceptedCount int64
}

// Seasonal aggregates accepted reports created within the trailing season.
func (s *LeaderboardService) Seasonal(ctx context.Context) ([]SeasonalEntry, error) {
	since := s.now().UTC().AddDate(0, -SeasonMonths, 0)

	var rows []seasonalRow
	err := s.DB.WithContext(ctx).
		Model(&models.Report{}).
		Select("reports.submitted_by AS submitted_by, COALESCE(SUM(reports.reward), 0) AS total_reward, COUNT(*) AS accepted_count").
		Joins("JOIN users ON users.id = reports.submitted_by AND users.role = ?", models.RoleHacker).
		Where("reports.status = ? AND reports.created_at >= ?", models.ReportAccepted, since).
		Group("reports.submitted_by").
		Order("total_reward DESC").
		Order("submitted_by ASC").
		Limit(SeasonalLeaderboardLimit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []SeasonalEntry{}, nil
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.SubmittedBy)
	}
	var users []models.User
	if err := s.DB.WithContext(ctx).Preload("Badges").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]*models.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	entries := make([]SeasonalEntry, 0, len(rows))
	for i, r := range rows {
		e := SeasonalEntry{
			Rank:          i + 1,
			UserID:        r.SubmittedBy,
			TotalReward:   r.TotalReward,
			AcceptedCount: r.AcceptedCount,
			Badges:        []string{},
		}
		if u, ok := byID[r.SubmittedBy]; ok {
			e.Name = u.Name
			e.XP = u.XP
			e.Level = u.Level
			e.Tier = u.Tier
			e.Badges = u.BadgeCodes()
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Points returns the legacy points board and persists each listed hacker's rank.
func (s *LeaderboardService) Points(ctx context.Context) ([]LeaderboardEntry, error) {
	var entries []LeaderboardEntry
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var users []models.User
		if err := tx.Preload("Badges").
			Where("role = ?", models.RoleHacker).
			Order("points DESC").
			Order("id ASC").
			Limit(PointsLeaderboardLimit).
			Find(&users).Error; err != nil {
			return err
		}

		entries = make([]LeaderboardEntry, 0, len(users))
		for i := range users {
			rank := i + 1
			if err := tx.Model(&models.User{}).
				Where("id = ?", users[i].ID).
				Update("rank", rank).Error; err != nil {
				return err
			}
			users[i].Rank = rank
			entries = append(entries, entryFor(rank, &users[i]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// RefreshRanks recomputes the points board for the scheduler.
func (s *LeaderboardService) RefreshRanks(ctx context.Context) (int, error) {
	entries, err := s.Points(ctx)
	return len(entries), err
}

// HackerStats is the read model behind GET /leaderboard/my-stats.
type HackerStats struct {
	UserID          string   `json:"user_id"`
	TotalReports    int64    `json:"total_reports"`
	AcceptedReports int64    `json:"accepted_reports"`
	PendingReports  int64    `json:"pending_reports"`
	TotalRewards    float64  `json:"total_rewards"`
	Points          int64    `json:"points"`
	Rank            int      `json:"rank"`
	Badges          []string `json:"badges"`

	BadgeDetails []models.BadgeView `json:"badge_details"`
}

// HackerStats summarizes the caller's reports and awards any milestone badges
// the totals now qualify for. Badges are never removed.
func (s *LeaderboardService) HackerStats(ctx context.Context, actor Actor) (*HackerStats, error) {
	if actor.Role != models.RoleHacker || actor.UserID == "" {
		return nil, forbiddenError("only hackers have report stats")
	}

	var stats HackerStats
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, "id = ?", actor.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundError("user not found")
			}
			return err
		}

		var agg struct {
			Total    int64
			Accepted int64
			Pending  int64
			Rewards  float64
		}
		if err := tx.Model(&models.Report{}).
			Select(`COUNT(*) AS total,
				COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS accepted,
				COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS pending,
				COALESCE(SUM(reward), 0) AS rewards`,
				models.ReportAccepted, models.ReportPending).
			Where("submitted_by = ?", user.ID).
			Scan(&agg).Error; err != nil {
			return err
		}

		if err := awardBadges(tx, user.ID, MilestoneBadges(agg.Accepted, user.Points)); err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Order("awarded_at ASC").Order("code ASC").Find(&user.Badges).Error; err != nil {
			return err
		}

		stats = HackerStats{
			UserID:          user.ID,
			TotalReports:    agg.Total,
			AcceptedReports: agg.Accepted,
			PendingReports:  agg.Pending,
			TotalRewards:    agg.Rewards,
			Points:          user.Points,
			Rank:            user.Rank,
			Badges:          user.BadgeCodes(),
			BadgeDetails:    models.BadgeViews(user.Badges),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *LeaderboardService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
