package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"bounty-platform/logging"
	"bounty-platform/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StreakWindow is the largest gap between two XP-awarding events that keeps a streak alive.
const StreakWindow = 48 * time.Hour

// CriticalFinderXP is the single-award XP that earns the Critical Finder badge.
const CriticalFinderXP = 500

// ProgressionEngine is the only code path that derives xp, level, tier and streak.
type ProgressionEngine struct {
	Policy *XPPolicy
}

func NewProgressionEngine(policy *XPPolicy) *ProgressionEngine {
	if policy == nil {
		policy = NewXPPolicy(SeverityWeights{})
	}
	return &ProgressionEngine{Policy: policy}
}

// Award is the outcome of one AwardProgress call.
type Award struct {
	Progress  models.Progress
	XPDelta   int64
	NewBadges []string
}

// AwardProgress applies one accepted report of the given severity at time now.
// Callers must invoke it at most once per report entering accepted.
// A zero-XP severity still counts as activity for the streak.
func (e *ProgressionEngine) AwardProgress(cur models.Progress, severity models.Severity, now time.Time) Award {
	delta := e.Policy.XPForSeverity(severity)

	next := cur
	next.Badges = append([]string(nil), cur.Badges...)
	next.XP = saturatingAdd(max(cur.XP, 0), delta)
	next.Level = LevelFromXP(next.XP)
	next.Tier = TierFromLevel(next.Level)

	if cur.LastActiveAt == nil || now.Sub(*cur.LastActiveAt) > StreakWindow {
		next.Streak = 1
	} else {
		next.Streak = cur.Streak + 1
	}
	at := now
	next.LastActiveAt = &at

	var newBadges []string
	if delta >= CriticalFinderXP && !cur.HasBadge(models.BadgeCriticalFinder) {
		newBadges = append(newBadges, models.BadgeCriticalFinder)
		next.Badges = append(next.Badges, models.BadgeCriticalFinder)
	}

	return Award{Progress: next, XPDelta: delta, NewBadges: newBadges}
}

// RecalculateFromHistory rebuilds xp as the sum of xp_awarded over the accepted
// reports, then rederives level and tier. Streak and badges are left alone.
func (e *ProgressionEngine) RecalculateFromHistory(cur models.Progress, reports []models.Report) models.Progress {
	var total int64
	for _, r := range reports {
		if r.Status != models.ReportAccepted || r.XPAwarded == nil {
			continue
		}
		total = saturatingAdd(total, max(*r.XPAwarded, 0))
	}

	next := cur
	next.XP = total
	next.Level = LevelFromXP(total)
	next.Tier = TierFromLevel(next.Level)
	return next
}

func saturatingAdd(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

type ProgressionService struct {
	DB     *gorm.DB
	Engine *ProgressionEngine
	Log    logging.Logger
}

func NewProgressionService(db *gorm.DB, engine *ProgressionEngine, log logging.Logger) *ProgressionService {
	return &ProgressionService{DB: db, Engine: engine, Log: log}
}

// RecalculateFromHistory repairs one user's xp/level/tier from their accepted reports.
func (s *ProgressionService) RecalculateFromHistory(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundError("user not found")
			}
			return err
		}

		var accepted []models.Report
		if err := tx.Where("submitted_by = ? AND status = ?", userID, models.ReportAccepted).
			Find(&accepted).Error; err != nil {
			return err
		}

		before := user.XP
		next := s.Engine.RecalculateFromHistory(user.Progress(), accepted)

		cols := next.ProgressColumns()
		cols["version"] = user.Version + 1
		res := tx.Model(&models.User{}).
			Where("id = ? AND version = ?", user.ID, user.Version).
			Updates(cols)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return conflictError("user progression changed concurrently, retry")
		}

		if before != next.XP {
			s.Log.Info(ctx, "xp reconciled", "user_id", userID, "from", before, "to", next.XP)
		}
		return tx.Preload("Badges").First(&user, "id = ?", userID).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// RecalculateAll reconciles every hacker and returns how many were processed.
// Per-user failures do not stop the batch; they are joined into the error.
func (s *ProgressionService) RecalculateAll(ctx context.Context) (int, error) {
	var ids []string
	if err := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("role = ?", models.RoleHacker).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}

	var errs []error
	done := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := s.RecalculateFromHistory(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", id, err))
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}

// ProgressView is the read model behind GET /user/progress.
type ProgressView struct {
	UserID       string             `json:"user_id"`
	XP           int64              `json:"xp"`
	Level        int                `json:"level"`
	Tier         models.Tier        `json:"tier"`
	Streak       int                `json:"streak"`
	LastActiveAt *time.Time         `json:"last_active_at,omitempty"`
	Points       int64              `json:"points"`
	Rank         int                `json:"rank"`
	Badges       []models.BadgeView `json:"badges"`
	LevelInfo    LevelProgress      `json:"level_progress"`
}

func (s *ProgressionService) GetProgress(ctx context.Context, userID string) (*ProgressView, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Preload("Badges").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("user not found")
		}
		return nil, err
	}

	return &ProgressView{
		UserID:       user.ID,
		XP:           user.XP,
		Level:        user.Level,
		Tier:         user.Tier,
		Streak:       user.Streak,
		LastActiveAt: user.LastActiveAt,
		Points:       user.Points,
		Rank:         user.Rank,
		Badges:       models.BadgeViews(user.Badges),
		LevelInfo:    ProgressForXP(user.XP),
	}, nil
}
