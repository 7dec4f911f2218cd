package services

import (
	"context"
	"time"

	"bounty-platform/logging"

	"github.com/go-co-op/gocron/v2"
)

// ScheduleConfig sets the period of each background job. A zero period disables the job.
type ScheduleConfig struct {
	ReconcileInterval   time.Duration
	RankRefreshInterval time.Duration
}

// StartScheduler runs progression reconciliation and the points rank refresh
// off the request path. The caller owns the returned scheduler and must Shutdown it.
func StartScheduler(ctx context.Context, cfg ScheduleConfig, progression *ProgressionService, board *LeaderboardService, log logging.Logger) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	if cfg.ReconcileInterval > 0 {
		_, err = sched.NewJob(
			gocron.DurationJob(cfg.ReconcileInterval),
			gocron.NewTask(func() {
				start := time.Now()
				n, err := progression.RecalculateAll(ctx)
				if err != nil {
					log.Error(ctx, "xp reconciliation finished with errors", "users", n, "error", err)
					return
				}
				log.Info(ctx, "xp reconciliation finished", "users", n, "took", time.Since(start))
			}),
			gocron.WithName("xp-reconcile"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, err
		}
	}

	if cfg.RankRefreshInterval > 0 {
		_, err = sched.NewJob(
			gocron.DurationJob(cfg.RankRefreshInterval),
			gocron.NewTask(func() {
				n, err := board.RefreshRanks(ctx)
				if err != nil {
					log.Error(ctx, "rank refresh failed", "error", err)
					return
				}
				log.Debug(ctx, "ranks refreshed", "users", n)
			}),
			gocron.WithName("rank-refresh"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, err
		}
	}

	sched.Start()
	return sched, nil
}
