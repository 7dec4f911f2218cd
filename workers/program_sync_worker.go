package workers

import (
	"context"
	"fmt"
	"time"

	"bounty-platform/logging"
	"bounty-platform/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RemoteProgram is the program service's public payload.
type RemoteProgram struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	CompanyID      string    `json:"company_id"`
	SeverityLevels []string  `json:"severity_levels"`
	RewardMin      float64   `json:"reward_min"`
	RewardMax      float64   `json:"reward_max"`
	Status         string    `json:"status"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type programChangesResponse struct {
	Programs []RemoteProgram `json:"programs"`
}

var programColumns = []string{
	"title", "company_id", "allowed_severities", "reward_min", "reward_max", "status", "updated_at",
}

// toLocal drops unknown severities. Anything but "active" is mirrored as inactive.
func (p RemoteProgram) toLocal() models.Program {
	sevs := make([]models.Severity, 0, len(p.SeverityLevels))
	for _, s := range p.SeverityLevels {
		if sev := models.ParseSeverity(s); sev.Valid() {
			sevs = append(sevs, sev)
		}
	}
	status := models.ProgramInactive
	if models.ProgramStatus(p.Status) == models.ProgramActive {
		status = models.ProgramActive
	}
	prog := models.Program{
		ID:                p.ID,
		Title:             p.Title,
		CompanyID:         p.CompanyID,
		AllowedSeverities: sevs,
		RewardMin:         p.RewardMin,
		RewardMax:         p.RewardMax,
		Status:            status,
	}
	if !p.UpdatedAt.IsZero() {
		prog.UpdatedAt = p.UpdatedAt
	}
	return prog
}

// ProgramSyncWorker mirrors bounty programs from the program service.
type ProgramSyncWorker struct {
	db       *gorm.DB
	client   *syncClient
	interval time.Duration
	log      logging.Logger
	since    cursor
}

func NewProgramSyncWorker(db *gorm.DB, baseURL, serviceToken string, interval time.Duration, log logging.Logger) *ProgramSyncWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ProgramSyncWorker{
		db:       db,
		client:   newSyncClient(baseURL, serviceToken),
		interval: interval,
		log:      log.With("worker", "program-sync"),
	}
}

func (w *ProgramSyncWorker) Start(ctx context.Context) {
	go poll(ctx, w.log, "program-sync", w.interval, w.SyncOnce)
}

// SyncOnce upserts every program changed since the last applied change.
func (w *ProgramSyncWorker) SyncOnce(ctx context.Context) (int, error) {
	var resp programChangesResponse
	if err := w.client.fetch(ctx, ProgramsPath, w.since.get(), &resp); err != nil {
		return 0, err
	}

	var (
		upserted int
		pass     batch
	)
	for _, remote := range resp.Programs {
		if remote.ID == "" || remote.CompanyID == "" {
			w.log.Warn(ctx, "skipping program without id or owner", "program_id", remote.ID)
			continue
		}
		local := remote.toLocal()
		err := w.db.WithContext(ctx).
			Omit(clause.Associations).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns(programColumns),
			}).
			Create(&local).Error
		if err != nil {
			w.log.Warn(ctx, "failed to upsert program", "program_id", remote.ID, "error", err)
			pass.fail(remote.UpdatedAt, fmt.Errorf("program %s: %w", remote.ID, err))
			continue
		}
		upserted++
		pass.ok(remote.UpdatedAt)
	}
	return upserted, pass.commit(&w.since)
}
