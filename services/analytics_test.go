package services

import (
	"context"
	"testing"
	"time"

	"bounty-platform/logging"
	"bounty-platform/models"
	"bounty-platform/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnalytics(t *testing.T) *AnalyticsService {
	t.Helper()
	svc := NewAnalyticsService(testutil.NewDB(t), logging.Discard())
	svc.Now = func() time.Time { return t0 }
	return svc
}

func TestAnalytics_HackerViews(t *testing.T) {
	svc := newAnalytics(t)
	ctx := context.Background()
	company := testutil.CreateCompany(t, svc.DB, "acme")
	web := testutil.CreateProgram(t, svc.DB, company.ID)
	api := testutil.CreateProgram(t, svc.DB, company.ID)
	hacker := testutil.CreateUser(t, svc.DB, models.User{XP: 550, Level: 2, Streak: 3})
	other := testutil.CreateHacker(t, svc.DB, "other")

	jan := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	for _, r := range []models.Report{
		{ProgramID: web.ID, Severity: models.SeverityCritical, Status: models.ReportAccepted, Reward: 1000, CreatedAt: jan},
		{ProgramID: web.ID, Severity: models.SeverityLow, Status: models.ReportAccepted, Reward: 50, CreatedAt: feb},
		{ProgramID: api.ID, Severity: models.SeverityHigh, Status: models.ReportRejected, Reward: 10, CreatedAt: feb.Add(time.Hour)},
		{ProgramID: api.ID, Severity: models.SeverityMedium, CreatedAt: t0},
	} {
		r.SubmittedBy = hacker.ID
		testutil.CreateReport(t, svc.DB, r)
	}
	testutil.CreateReport(t, svc.DB, models.Report{ProgramID: web.ID, SubmittedBy: other.ID, Status: models.ReportAccepted, Severity: models.SeverityCritical})
	require.NoError(t, awardBadges(svc.DB, hacker.ID, []string{models.BadgeCriticalFinder}))
	actor := Actor{UserID: hacker.ID, Role: models.RoleHacker}

	sev, err := svc.SeverityBreakdown(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, []SeverityCount{
		{models.SeverityCritical, 1}, {models.SeverityHigh, 1}, {models.SeverityLow, 1}, {models.SeverityMedium, 1},
	}, sev)

	statuses, err := svc.AcceptanceBreakdown(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, []StatusCount{
		{models.ReportAccepted, 2}, {models.ReportPending, 1}, {models.ReportRejected, 1},
	}, statuses)

	monthly, err := svc.MonthlyActivity(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, []MonthlyCount{{2026, 1, 1}, {2026, 2, 2}, {2026, 3, 1}}, monthly)

	impact, err := svc.Impact(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, int64(55), impact.ImpactScore)

	summary, err := svc.Summary(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Accepted)
	assert.Equal(t, int64(4), summary.Total)
	assert.Equal(t, 1050.0, summary.TotalRewards, "only accepted rewards")
	assert.Equal(t, int64(2), summary.ProgramsContributed)
	assert.Equal(t, int64(550), summary.User.XP)
	assert.Equal(t, 3, summary.User.Streak)
	assert.Equal(t, int64(55), summary.User.ImpactScore)
	assert.Equal(t, []string{models.BadgeCriticalFinder}, summary.User.Badges)

	companyActor := Actor{UserID: company.ID, Role: models.RoleCompany}
	_, err = svc.SeverityBreakdown(ctx, companyActor)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Summary(ctx, companyActor)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAnalytics_EmptyHacker(t *testing.T) {
	svc := newAnalytics(t)
	ctx := context.Background()
	hacker := testutil.CreateHacker(t, svc.DB, "fresh")
	actor := Actor{UserID: hacker.ID, Role: models.RoleHacker}

	sev, err := svc.SeverityBreakdown(ctx, actor)
	require.NoError(t, err)
	assert.NotNil(t, sev)
	assert.Empty(t, sev)

	monthly, err := svc.MonthlyActivity(ctx, actor)
	require.NoError(t, err)
	assert.Empty(t, monthly)

	summary, err := svc.Summary(ctx, actor)
	require.NoError(t, err)
	assert.Zero(t, summary.Total)
	assert.Zero(t, summary.TotalRewards)

	_, err = svc.Summary(ctx, Actor{UserID: "ghost", Role: models.RoleHacker})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAnalytics_CompanyViews(t *testing.T) {
	svc := newAnalytics(t)
	ctx := context.Background()
	acme := testutil.CreateCompany(t, svc.DB, "acme")
	rival := testutil.CreateCompany(t, svc.DB, "rival")
	web := testutil.CreateProgram(t, svc.DB, acme.ID)
	api := testutil.CreateProgram(t, svc.DB, acme.ID)
	foreign := testutil.CreateProgram(t, svc.DB, rival.ID)
	hacker := testutil.CreateHacker(t, svc.DB, "neo")

	day := 24 * time.Hour
	for _, r := range []models.Report{
		{ProgramID: web.ID, Status: models.ReportAccepted, Reward: 100, CreatedAt: t0.Add(-2 * day), UpdatedAt: t0},
		{ProgramID: web.ID, Status: models.ReportAccepted, Reward: 300, CreatedAt: t0.Add(-4 * day), UpdatedAt: t0},
		{ProgramID: web.ID},
		{ProgramID: api.ID, Status: models.ReportRejected},
		{ProgramID: foreign.ID, Status: models.ReportAccepted, Reward: 999},
	} {
		r.SubmittedBy = hacker.ID
		testutil.CreateReport(t, svc.DB, r)
	}
	actor := Actor{UserID: acme.ID, Role: models.RoleCompany}

	funnel, err := svc.Funnel(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, []StatusCount{
		{models.ReportAccepted, 2}, {models.ReportPending, 1}, {models.ReportRejected, 1},
	}, funnel)

	rewards, err := svc.Rewards(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, 400.0, rewards.TotalRewards)
	assert.InDelta(t, 200.0, rewards.AvgReward, 1e-9)

	ttr, err := svc.TimeToResolve(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, 2, ttr.Resolved)
	assert.InDelta(t, 3.0, ttr.AvgDays, 1e-6)

	insights, err := svc.ProgramInsights(ctx, actor)
	require.NoError(t, err)
	require.Len(t, insights, 2)
	assert.Equal(t, web.ID, insights[0].ProgramID)
	assert.Equal(t, web.Title, insights[0].Title)
	assert.Equal(t, int64(3), insights[0].Total)
	assert.Equal(t, int64(2), insights[0].Accepted)
	assert.InDelta(t, 400.0/3, insights[0].AvgReward, 1e-6)
	assert.Equal(t, api.ID, insights[1].ProgramID)
	assert.Zero(t, insights[1].Accepted)

	admin := testutil.CreateAdmin(t, svc.DB)
	all, err := svc.Funnel(ctx, Actor{UserID: admin.ID, Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, int64(3), all[0].Count, "admins see every program")

	_, err = svc.Rewards(ctx, Actor{UserID: hacker.ID, Role: models.RoleHacker})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAnalytics_CompanyWithoutResolvedReports(t *testing.T) {
	svc := newAnalytics(t)
	acme := testutil.CreateCompany(t, svc.DB, "acme")
	actor := Actor{UserID: acme.ID, Role: models.RoleCompany}

	ttr, err := svc.TimeToResolve(context.Background(), actor)
	require.NoError(t, err)
	assert.Zero(t, ttr.Resolved)
	assert.Zero(t, ttr.AvgDays)

	rewards, err := svc.Rewards(context.Background(), actor)
	require.NoError(t, err)
	assert.Zero(t, rewards.TotalRewards)
	assert.Zero(t, rewards.AvgReward)
}

func TestAnalytics_Overview(t *testing.T) {
	svc := newAnalytics(t)
	ctx := context.Background()
	company := testutil.CreateCompany(t, svc.DB, "acme")
	program := testutil.CreateProgram(t, svc.DB, company.ID)
	recent := testutil.CreateHacker(t, svc.DB, "recent")
	monthly := testutil.CreateHacker(t, svc.DB, "monthly")
	admin := testutil.CreateAdmin(t, svc.DB)

	testutil.CreateReport(t, svc.DB, models.Report{ProgramID: program.ID, SubmittedBy: recent.ID, CreatedAt: t0.Add(-time.Hour)})
	testutil.CreateReport(t, svc.DB, models.Report{ProgramID: program.ID, SubmittedBy: recent.ID, CreatedAt: t0.Add(-2 * time.Hour)})
	testutil.CreateReport(t, svc.DB, models.Report{ProgramID: program.ID, SubmittedBy: monthly.ID, CreatedAt: t0.Add(-10 * 24 * time.Hour)})
	testutil.CreateReport(t, svc.DB, models.Report{ProgramID: program.ID, SubmittedBy: monthly.ID, CreatedAt: t0.Add(-40 * 24 * time.Hour)})

	out, err := svc.Overview(ctx, Actor{UserID: admin.ID, Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, PlatformOverview{Hackers: 2, Companies: 1, Programs: 1, Reports: 4, DAU: 1, MAU: 2}, *out)

	_, err = svc.Overview(ctx, Actor{UserID: company.ID, Role: models.RoleCompany})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAnalytics_AbuseCandidates(t *testing.T) {
	svc := newAnalytics(t)
	ctx := context.Background()
	company := testutil.CreateCompany(t, svc.DB, "acme")
	program := testutil.CreateProgram(t, svc.DB, company.ID)
	admin := testutil.CreateAdmin(t, svc.DB)

	seed := func(name string, statuses ...models.ReportStatus) *models.User {
		u := testutil.CreateHacker(t, svc.DB, name)
		for _, st := range statuses {
			testutil.CreateReport(t, svc.DB, models.Report{ProgramID: program.ID, SubmittedBy: u.ID, Status: st})
		}
		return u
	}
	acc, rej, dup := models.ReportAccepted, models.ReportRejected, models.ReportDuplicate
	spammer := seed("spammer", rej, rej, dup, dup, acc)
	boundary := seed("boundary", rej, dup, rej, acc, acc, acc)
	seed("careful", rej, dup, acc, acc, acc)
	seed("few", rej, rej, rej, rej)

	out, err := svc.AbuseCandidates(ctx, Actor{UserID: admin.ID, Role: models.RoleAdmin})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, spammer.ID, out[0].UserID)
	assert.Equal(t, "spammer", out[0].Name)
	assert.Equal(t, int64(5), out[0].Total)
	assert.Equal(t, int64(4), out[0].Bad)
	assert.InDelta(t, 0.8, out[0].BadRatio, 1e-9)
	assert.Equal(t, boundary.ID, out[1].UserID, "exactly half is flagged")
	assert.InDelta(t, 0.5, out[1].BadRatio, 1e-9)

	_, err = svc.AbuseCandidates(ctx, Actor{UserID: spammer.ID, Role: models.RoleHacker})
	assert.ErrorIs(t, err, ErrForbidden)
}
