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

type userChangesResponse struct {
	Users []models.RemoteUser `json:"users"`
}

// identityColumns are the only user columns the profile service owns.
var identityColumns = []string{"name", "email", "role", "country", "avatar", "updated_at"}

// UserSyncWorker mirrors identities from the profile service. It never writes
// progression columns.
type UserSyncWorker struct {
	db       *gorm.DB
	client   *syncClient
	interval time.Duration
	log      logging.Logger
	since    cursor
}

func NewUserSyncWorker(db *gorm.DB, baseURL, serviceToken string, interval time.Duration, log logging.Logger) *UserSyncWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &UserSyncWorker{
		db:       db,
		client:   newSyncClient(baseURL, serviceToken),
		interval: interval,
		log:      log.With("worker", "user-sync"),
	}
}

func (w *UserSyncWorker) Start(ctx context.Context) {
	go poll(ctx, w.log, "user-sync", w.interval, w.SyncOnce)
}

// SyncOnce applies every profile change since the last applied one and returns
// how many users were upserted.
func (w *UserSyncWorker) SyncOnce(ctx context.Context) (int, error) {
	var resp userChangesResponse
	if err := w.client.fetch(ctx, ProfilesPath, w.since.get(), &resp); err != nil {
		return 0, err
	}

	var (
		upserted int
		pass     batch
	)
	for _, remote := range resp.Users {
		role, ok := models.ParseRole(remote.Role)
		if remote.ID == "" || !ok {
			w.log.Warn(ctx, "skipping profile", "user_id", remote.ID, "role", remote.Role)
			continue
		}
		local := models.User{
			ID:      remote.ID,
			Name:    remote.Name,
			Email:   remote.Email,
			Role:    role,
			Country: remote.Country,
			Avatar:  remote.Avatar,
			Level:   1,
			Tier:    models.TierBronze,
		}
		if !remote.UpdatedAt.IsZero() {
			local.UpdatedAt = remote.UpdatedAt
		}

		err := w.db.WithContext(ctx).
			Omit(clause.Associations).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns(identityColumns),
			}).
			Create(&local).Error
		if err != nil {
			w.log.Warn(ctx, "failed to upsert user", "user_id", remote.ID, "error", err)
			pass.fail(remote.UpdatedAt, fmt.Errorf("user %s: %w", remote.ID, err))
			continue
		}
		upserted++
		pass.ok(remote.UpdatedAt)
	}
	return upserted, pass.commit(&w.since)
}
