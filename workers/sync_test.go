package workers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"bounty-platform/logging"
	"bounty-platform/models"
	"bounty-platform/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func serveJSON(t *testing.T, path string, payload any, sinces *[]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("X-Service-Token") != "svc-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if sinces != nil {
			*sinces = append(*sinces, r.URL.Query().Get("since"))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestUserSync_UpsertsIdentityOnly(t *testing.T) {
	db := testutil.NewDB(t)
	existing := testutil.CreateUser(t, db, models.User{
		Name: "old name", XP: 900, Level: 3, Streak: 2, Points: 40,
	})
	updated := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	var sinces []string
	srv := serveJSON(t, ProfilesPath, userChangesResponse{Users: []models.RemoteUser{
		{ID: existing.ID, Name: "new name", Email: "neo@example.com", Role: "hacker", Country: "KE", UpdatedAt: updated},
		{ID: "c-1", Name: "acme", Role: "Company", UpdatedAt: updated.Add(-time.Hour)},
		{ID: "x-1", Name: "ghost", Role: "superuser"},
	}}, &sinces)

	w := NewUserSyncWorker(db, srv.URL, "svc-token", time.Minute, logging.Discard())
	n, err := w.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var u models.User
	require.NoError(t, db.First(&u, "id = ?", existing.ID).Error)
	assert.Equal(t, "new name", u.Name)
	assert.Equal(t, "KE", u.Country)
	assert.Equal(t, int64(900), u.XP)
	assert.Equal(t, 3, u.Level)
	assert.Equal(t, 2, u.Streak)
	assert.Equal(t, int64(40), u.Points)

	var company models.User
	require.NoError(t, db.First(&company, "id = ?", "c-1").Error)
	assert.Equal(t, models.RoleCompany, company.Role)
	assert.Equal(t, 1, company.Level)

	var ghosts int64
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", "x-1").Count(&ghosts).Error)
	assert.Zero(t, ghosts)

	_, err = w.SyncOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, sinces, 2)
	assert.Equal(t, time.Time{}.Format(time.RFC3339), sinces[0])
	assert.Equal(t, updated.Format(time.RFC3339), sinces[1], "cursor advances to the newest change")
}

func TestProgramSync_Upserts(t *testing.T) {
	db := testutil.NewDB(t)
	srv := serveJSON(t, ProgramsPath, programChangesResponse{Programs: []RemoteProgram{
		{ID: "p-1", Title: "Web", CompanyID: "c-1", SeverityLevels: []string{"LOW", "critical", "bogus"}, Status: "active"},
		{ID: "p-2", Title: "Paused", CompanyID: "c-1", Status: "paused"},
		{ID: "p-3", Title: "Orphan"},
	}}, nil)

	w := NewProgramSyncWorker(db, srv.URL, "svc-token", time.Minute, logging.Discard())
	n, err := w.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var p models.Program
	require.NoError(t, db.First(&p, "id = ?", "p-1").Error)
	assert.True(t, p.IsActive())
	assert.Equal(t, []models.Severity{models.SeverityLow, models.SeverityCritical}, p.AllowedSeverities)

	var paused models.Program
	require.NoError(t, db.First(&paused, "id = ?", "p-2").Error)
	assert.False(t, paused.IsActive())

	srv2 := serveJSON(t, ProgramsPath, programChangesResponse{Programs: []RemoteProgram{
		{ID: "p-1", Title: "Web v2", CompanyID: "c-1", SeverityLevels: []string{"high"}, Status: "inactive"},
	}}, nil)
	w2 := NewProgramSyncWorker(db, srv2.URL, "svc-token", time.Minute, logging.Discard())
	_, err = w2.SyncOnce(context.Background())
	require.NoError(t, err)

	require.NoError(t, db.First(&p, "id = ?", "p-1").Error)
	assert.Equal(t, "Web v2", p.Title)
	assert.False(t, p.IsActive())
	assert.Equal(t, []models.Severity{models.SeverityHigh}, p.AllowedSeverities)
}

func TestProgramSync_FailedRowHoldsCursor(t *testing.T) {
	db := testutil.NewDB(t)
	var failing atomic.Bool
	failing.Store(true)
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:fail_p2", func(tx *gorm.DB) {
		if p, ok := tx.Statement.Dest.(*models.Program); ok && p.ID == "p-2" && failing.Load() {
			_ = tx.AddError(errors.New("disk full"))
		}
	}))

	t1 := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	var sinces []string
	srv := serveJSON(t, ProgramsPath, programChangesResponse{Programs: []RemoteProgram{
		{ID: "p-1", Title: "Web", CompanyID: "c-1", Status: "active", UpdatedAt: t1},
		{ID: "p-2", Title: "API", CompanyID: "c-1", Status: "active", UpdatedAt: t1.Add(time.Hour)},
		{ID: "p-3", Title: "Mobile", CompanyID: "c-1", Status: "active", UpdatedAt: t1.Add(2 * time.Hour)},
	}}, &sinces)

	w := NewProgramSyncWorker(db, srv.URL, "svc-token", time.Minute, logging.Discard())
	n, err := w.SyncOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "p-2")
	assert.Equal(t, 2, n)

	failing.Store(false)
	n, err = w.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	var p models.Program
	require.NoError(t, db.First(&p, "id = ?", "p-2").Error)
	assert.Equal(t, "API", p.Title)

	_, err = w.SyncOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, sinces, 3)
	assert.Equal(t, t1.Format(time.RFC3339), sinces[1], "cursor stops before the failed row")
	assert.Equal(t, t1.Add(2*time.Hour).Format(time.RFC3339), sinces[2])
}

func TestBatch_CommitStopsAtOldestFailure(t *testing.T) {
	t1 := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	var (
		b batch
		c cursor
	)
	b.ok(t1.Add(3 * time.Hour))
	b.fail(t1.Add(2*time.Hour), errors.New("a"))
	b.ok(t1)
	b.fail(t1.Add(time.Hour), errors.New("b"))

	err := b.commit(&c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a")
	assert.Contains(t, err.Error(), "b")
	assert.Equal(t, t1, c.get())
}

func TestSync_ServiceErrors(t *testing.T) {
	db := testutil.NewDB(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewUserSyncWorker(db, srv.URL, "svc-token", 0, logging.Discard()).SyncOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")

	_, err = NewProgramSyncWorker(db, "://bad", "svc-token", 0, logging.Discard()).SyncOnce(context.Background())
	assert.Error(t, err)
}

func TestPoll_RunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	done := make(chan struct{})

	go func() {
		poll(ctx, logging.Discard(), "test", 5*time.Millisecond, func(context.Context) (int, error) {
			calls.Add(1)
			return 0, nil
		})
		close(done)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poll did not stop")
	}
}
