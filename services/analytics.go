package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"bounty-platform/logging"
	"bounty-platform/models"

	"gorm.io/gorm"
)

const (
	// AbuseMinReports is the report count below which nobody is flagged.
	AbuseMinReports = 5
	// AbuseBadRatio is the share of rejected or duplicate reports that flags a hacker.
	AbuseBadRatio = 0.5
)

// ImpactWeights score accepted findings by severity for the impact metric.
var ImpactWeights = map[models.Severity]int64{
	models.SeverityCritical: 50,
	models.SeverityHigh:     30,
	models.SeverityMedium:   15,
	models.SeverityLow:      5,
}

// AnalyticsService serves read-only projections over reports and users.
type AnalyticsService struct {
	DB  *gorm.DB
	Log logging.Logger
	Now func() time.Time
}

func NewAnalyticsService(db *gorm.DB, log logging.Logger) *AnalyticsService {
	return &AnalyticsService{DB: db, Log: log, Now: time.Now}
}

type SeverityCount struct {
	Severity models.Severity `json:"severity"`
	Count    int64           `json:"count"`
}

type StatusCount struct {
	Status models.ReportStatus `json:"status"`
	Count  int64               `json:"count"`
}

type MonthlyCount struct {
	Year  int   `json:"year"`
	Month int   `json:"month"`
	Count int64 `json:"count"`
}

func requireHacker(a Actor) error {
	if a.UserID == "" || a.Role != models.RoleHacker {
		return forbiddenError("only hackers have report analytics")
	}
	return nil
}

func (s *AnalyticsService) hackerReports(ctx context.Context, hackerID string) *gorm.DB {
	return s.DB.WithContext(ctx).Model(&models.Report{}).Where("submitted_by = ?", hackerID)
}

// companyReports scopes to the company's programs. Admins see every report.
func (s *AnalyticsService) companyReports(ctx context.Context, a Actor) (*gorm.DB, error) {
	if !CanListCompanyReports(a) {
		return nil, forbiddenError("company or admin role required")
	}
	q := s.DB.WithContext(ctx).Model(&models.Report{})
	if !a.IsAdmin() {
		q = q.Where("reports.program_id IN (?)",
			s.DB.WithContext(ctx).Model(&models.Program{}).Select("id").Where("company_id = ?", a.UserID))
	}
	return q, nil
}

func statusCounts(q *gorm.DB) ([]StatusCount, error) {
	counts := []StatusCount{}
	err := q.Select("reports.status AS status, COUNT(*) AS count").
		Group("reports.status").
		Order("count DESC").
		Order("status ASC").
		Scan(&counts).Error
	return counts, err
}

// SeverityBreakdown counts the hacker's reports per severity, any status.
func (s *AnalyticsService) SeverityBreakdown(ctx context.Context, a Actor) ([]SeverityCount, error) {
	if err := requireHacker(a); err != nil {
		return nil, err
	}
	counts := []SeverityCount{}
	err := s.hackerReports(ctx, a.UserID).
		Select("severity, COUNT(*) AS count").
		Group("severity").
		Order("count DESC").
		Order("severity ASC").
		Scan(&counts).Error
	return counts, err
}

// AcceptanceBreakdown counts the hacker's reports per status.
func (s *AnalyticsService) AcceptanceBreakdown(ctx context.Context, a Actor) ([]StatusCount, error) {
	if err := requireHacker(a); err != nil {
		return nil, err
	}
	return statusCounts(s.hackerReports(ctx, a.UserID))
}

// MonthlyActivity buckets the hacker's submissions by UTC calendar month, oldest first.
func (s *AnalyticsService) MonthlyActivity(ctx context.Context, a Actor) ([]MonthlyCount, error) {
	if err := requireHacker(a); err != nil {
		return nil, err
	}
	var created []time.Time
	if err := s.hackerReports(ctx, a.UserID).Pluck("created_at", &created).Error; err != nil {
		return nil, err
	}

	type month struct{ year, month int }
	buckets := make(map[month]int64)
	for _, t := range created {
		t = t.UTC()
		buckets[month{t.Year(), int(t.Month())}]++
	}
	out := make([]MonthlyCount, 0, len(buckets))
	for m, n := range buckets {
		out = append(out, MonthlyCount{Year: m.year, Month: m.month, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}

func (s *AnalyticsService) impactScore(ctx context.Context, hackerID string) (int64, error) {
	var counts []SeverityCount
	err := s.hackerReports(ctx, hackerID).
		Where("status = ?", models.ReportAccepted).
		Select("severity, COUNT(*) AS count").
		Group("severity").
		Scan(&counts).Error
	if err != nil {
		return 0, err
	}
	var score int64
	for _, c := range counts {
		score += ImpactWeights[c.Severity] * c.Count
	}
	return score, nil
}

type ImpactScore struct {
	ImpactScore int64 `json:"impact_score"`
}

// Impact weighs the hacker's accepted reports by severity.
func (s *AnalyticsService) Impact(ctx context.Context, a Actor) (*ImpactScore, error) {
	if err := requireHacker(a); err != nil {
		return nil, err
	}
	score, err := s.impactScore(ctx, a.UserID)
	if err != nil {
		return nil, err
	}
	return &ImpactScore{ImpactScore: score}, nil
}

type HackerSnapshot struct {
	XP          int64       `json:"xp"`
	Level       int         `json:"level"`
	Tier        models.Tier `json:"tier"`
	Streak      int         `json:"streak"`
	Badges      []string    `json:"badges"`
	ImpactScore int64       `json:"impact_score"`
}

type HackerSummary struct {
	Accepted            int64          `json:"accepted"`
	Total               int64          `json:"total"`
	TotalRewards        float64        `json:"total_rewards"`
	ProgramsContributed int64          `json:"programs_contributed"`
	User                HackerSnapshot `json:"user"`
}

// Summary combines the hacker's report totals with their progression snapshot.
func (s *AnalyticsService) Summary(ctx context.Context, a Actor) (*HackerSummary, error) {
	if err := requireHacker(a); err != nil {
		return nil, err
	}
	var user models.User
	if err := s.DB.WithContext(ctx).Preload("Badges").First(&user, "id = ?", a.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("user not found")
		}
		return nil, err
	}

	var agg struct {
		Total    int64
		Accepted int64
		Rewards  float64
		Programs int64
	}
	err := s.hackerReports(ctx, a.UserID).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS accepted,
			COALESCE(SUM(CASE WHEN status = ? THEN reward ELSE 0 END), 0) AS rewards,
			COUNT(DISTINCT program_id) AS programs`,
			models.ReportAccepted, models.ReportAccepted).
		Scan(&agg).Error
	if err != nil {
		return nil, err
	}
	impact, err := s.impactScore(ctx, a.UserID)
	if err != nil {
		return nil, err
	}

	return &HackerSummary{
		Accepted:            agg.Accepted,
		Total:               agg.Total,
		TotalRewards:        agg.Rewards,
		ProgramsContributed: agg.Programs,
		User: HackerSnapshot{
			XP:          user.XP,
			Level:       user.Level,
			Tier:        user.Tier,
			Streak:      user.Streak,
			Badges:      user.BadgeCodes(),
			ImpactScore: impact,
		},
	}, nil
}

// Funnel counts the company's reports per status.
func (s *AnalyticsService) Funnel(ctx context.Context, a Actor) ([]StatusCount, error) {
	q, err := s.companyReports(ctx, a)
	if err != nil {
		return nil, err
	}
	return statusCounts(q)
}

type RewardSummary struct {
	TotalRewards float64 `json:"total_rewards"`
	AvgReward    float64 `json:"avg_reward"`
}

// Rewards totals and averages the reward over the company's accepted reports.
func (s *AnalyticsService) Rewards(ctx context.Context, a Actor) (*RewardSummary, error) {
	q, err := s.companyReports(ctx, a)
	if err != nil {
		return nil, err
	}
	var out RewardSummary
	err = q.Where("reports.status = ?", models.ReportAccepted).
		Select("COALESCE(SUM(reports.reward), 0) AS total_rewards, COALESCE(AVG(reports.reward), 0) AS avg_reward").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type TimeToResolve struct {
	AvgDays  float64 `json:"avg_days"`
	Resolved int     `json:"resolved"`
}

// TimeToResolve averages the days between submission and the last update of
// the company's accepted reports.
func (s *AnalyticsService) TimeToResolve(ctx context.Context, a Actor) (*TimeToResolve, error) {
	q, err := s.companyReports(ctx, a)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		CreatedAt time.Time
		UpdatedAt time.Time
	}
	err = q.Where("reports.status = ?", models.ReportAccepted).
		Select("reports.created_at, reports.updated_at").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := &TimeToResolve{Resolved: len(rows)}
	if len(rows) == 0 {
		return out, nil
	}
	var total time.Duration
	for _, r := range rows {
		total += r.UpdatedAt.Sub(r.CreatedAt)
	}
	out.AvgDays = total.Hours() / 24 / float64(len(rows))
	return out, nil
}

type ProgramInsight struct {
	ProgramID string  `json:"program_id"`
	Title     string  `json:"title"`
	Total     int64   `json:"total"`
	Accepted  int64   `json:"accepted"`
	AvgReward float64 `json:"avg_reward"`
}

// ProgramInsights summarizes reports per program, busiest first.
func (s *AnalyticsService) ProgramInsights(ctx context.Context, a Actor) ([]ProgramInsight, error) {
	q, err := s.companyReports(ctx, a)
	if err != nil {
		return nil, err
	}
	out := []ProgramInsight{}
	err = q.Select(`reports.program_id AS program_id, programs.title AS title, COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN reports.status = ? THEN 1 ELSE 0 END), 0) AS accepted,
			COALESCE(AVG(reports.reward), 0) AS avg_reward`, models.ReportAccepted).
		Joins("JOIN programs ON programs.id = reports.program_id").
		Group("reports.program_id, programs.title").
		Order("total DESC").
		Order("program_id ASC").
		Scan(&out).Error
	return out, err
}

type PlatformOverview struct {
	Hackers   int64 `json:"hackers"`
	Companies int64 `json:"companies"`
	Programs  int64 `json:"programs"`
	Reports   int64 `json:"reports"`
	// DAU and MAU count distinct submitters over the last 24 hours and 30 days.
	DAU int64 `json:"dau"`
	MAU int64 `json:"mau"`
}

func requireAdmin(a Actor) error {
	if a.UserID == "" || !a.IsAdmin() {
		return forbiddenError("admin role required")
	}
	return nil
}

// Overview counts platform entities and recently active submitters.
func (s *AnalyticsService) Overview(ctx context.Context, a Actor) (*PlatformOverview, error) {
	if err := requireAdmin(a); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)
	now := s.now().UTC()

	var out PlatformOverview
	counts := []struct {
		dst *int64
		q   *gorm.DB
	}{
		{&out.Hackers, db.Model(&models.User{}).Where("role = ?", models.RoleHacker)},
		{&out.Companies, db.Model(&models.User{}).Where("role = ?", models.RoleCompany)},
		{&out.Programs, db.Model(&models.Program{})},
		{&out.Reports, db.Model(&models.Report{})},
		{&out.DAU, db.Model(&models.Report{}).Where("created_at >= ?", now.Add(-24*time.Hour)).Distinct("submitted_by")},
		{&out.MAU, db.Model(&models.Report{}).Where("created_at >= ?", now.Add(-30*24*time.Hour)).Distinct("submitted_by")},
	}
	for _, c := range counts {
		if err := c.q.Count(c.dst).Error; err != nil {
			return nil, err
		}
	}
	return &out, nil
}

type AbuseCandidate struct {
	UserID   string  `json:"user_id"`
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Total    int64   `json:"total"`
	Bad      int64   `json:"bad"`
	BadRatio float64 `json:"bad_ratio"`
}

// AbuseCandidates flags submitters with at least AbuseMinReports reports of
// which at least AbuseBadRatio were rejected or duplicates.
func (s *AnalyticsService) AbuseCandidates(ctx context.Context, a Actor) ([]AbuseCandidate, error) {
	if err := requireAdmin(a); err != nil {
		return nil, err
	}
	bad := []models.ReportStatus{models.ReportRejected, models.ReportDuplicate}

	out := []AbuseCandidate{}
	err := s.DB.WithContext(ctx).
		Model(&models.Report{}).
		Select(`reports.submitted_by AS user_id, users.name AS name, users.email AS email,
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN reports.status IN ? THEN 1 ELSE 0 END), 0) AS bad`, bad).
		Joins("JOIN users ON users.id = reports.submitted_by").
		Group("reports.submitted_by, users.name, users.email").
		Having("COUNT(*) >= ? AND SUM(CASE WHEN reports.status IN ? THEN 1 ELSE 0 END) >= COUNT(*) * ?",
			AbuseMinReports, bad, AbuseBadRatio).
		Order("bad DESC").
		Order("user_id ASC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].BadRatio = float64(out[i].Bad) / float64(out[i].Total)
	}
	return out, nil
}

func (s *AnalyticsService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
