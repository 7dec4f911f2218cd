package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"bounty-platform/logging"
	"bounty-platform/models"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// errUserContended marks a lost compare-and-swap on the submitter's progression row.
// The whole transition was rolled back and may be retried as is.
var errUserContended = errors.New("user progression changed concurrently")

type ReportService struct {
	DB       *gorm.DB
	Engine   *ProgressionEngine
	Notifier NotificationGateway
	Log      logging.Logger

	// Now is the clock used for streaks. Defaults to time.Now.
	Now func() time.Time
	// NotifyTimeout bounds a single notification dispatch.
	NotifyTimeout time.Duration
	// MaxRetries bounds retries after a lost progression compare-and-swap.
	MaxRetries uint64

	startOnce sync.Once
	outbox    chan dispatchJob
	inflight  sync.WaitGroup
}

// outboxSize bounds queued notifications. Dispatch blocks once it is full.
const outboxSize = 256

type dispatchJob struct {
	ctx context.Context
	ev  NotificationEvent
}

func NewReportService(db *gorm.DB, engine *ProgressionEngine, notifier NotificationGateway, log logging.Logger) *ReportService {
	return &ReportService{
		DB:            db,
		Engine:        engine,
		Notifier:      notifier,
		Log:           log,
		Now:           time.Now,
		NotifyTimeout: 5 * time.Second,
		MaxRetries:    3,
	}
}

type SubmitReportInput struct {
	ProgramID   string
	Title       string
	Description string
	Severity    models.Severity
	FileURL     string
	FileName    string
}

func (in *SubmitReportInput) normalize() {
	in.ProgramID = strings.TrimSpace(in.ProgramID)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Severity = models.ParseSeverity(string(in.Severity))
}

func (in *SubmitReportInput) validate() error {
	if in.ProgramID == "" || in.Title == "" || in.Description == "" || in.Severity == "" {
		return validationError("program, title, description and severity are required")
	}
	if in.FileURL == "" || in.FileName == "" {
		return validationError("a report attachment is required")
	}
	if !in.Severity.Valid() {
		return validationError(fmt.Sprintf("unknown severity %q", in.Severity))
	}
	return nil
}

// Submit creates a pending report and notifies the program owner.
// Nothing is written unless every precondition holds.
func (s *ReportService) Submit(ctx context.Context, actor Actor, in SubmitReportInput) (*models.Report, error) {
	if !CanSubmitReport(actor) {
		return nil, forbiddenError("only hackers can submit reports")
	}
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	var (
		program   models.Program
		submitter models.User
		report    models.Report
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&program, "id = ?", in.ProgramID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundError("program not found")
			}
			return err
		}
		if !program.IsActive() {
			return validationError("program is not active")
		}
		if !program.AllowsSeverity(in.Severity) {
			return validationError("severity not allowed for this program")
		}
		if err := tx.Select("id", "name").First(&submitter, "id = ?", actor.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundError("user not found")
			}
			return err
		}

		report = models.Report{
			ID:          uuid.NewString(),
			ProgramID:   program.ID,
			SubmittedBy: actor.UserID,
			Title:       in.Title,
			Description: in.Description,
			Severity:    in.Severity,
			FileURL:     in.FileURL,
			FileName:    in.FileName,
			Status:      models.ReportPending,
		}
		if err := tx.Omit(clause.Associations).Create(&report).Error; err != nil {
			return err
		}
		return tx.Preload("Program").First(&report, "id = ?", report.ID).Error
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info(ctx, "report submitted",
		"report_id", report.ID, "program_id", program.ID, "severity", report.Severity, "user_id", actor.UserID)

	s.dispatch(ctx, NotificationEvent{
		RecipientID: program.CompanyID,
		Title:       fmt.Sprintf("New report for %s", program.Title),
		Body:        fmt.Sprintf("%s submitted a report.", submitter.Name),
		DeepLink:    reportLink(report.ID),
		Metadata:    map[string]any{"reportId": report.ID, "programId": program.ID},
	})
	return &report, nil
}

// StatusUpdate is a reviewer's decision on a report.
type StatusUpdate struct {
	Status      models.ReportStatus
	Reward      float64
	ReviewNotes string
}

// TransitionResult reports what UpdateStatus did.
type TransitionResult struct {
	Report *models.Report `json:"report"`
	// XPAwarded is set only when this call awarded XP.
	XPAwarded *int64 `json:"xp_awarded"`
	// Applied is false when the request re-issued the report's current status.
	Applied bool `json:"applied"`
}

type transitionKind int

const (
	transitionApply transitionKind = iota
	transitionNoop
	transitionRejected
)

// decideTransition is the review state machine:
// pending → triaged | accepted | rejected | duplicate
// triaged → accepted | rejected | duplicate
// accepted, rejected, duplicate are terminal.
// Re-issuing the current status is a no-op.
func decideTransition(from, to models.ReportStatus) transitionKind {
	if from == to {
		return transitionNoop
	}
	if from.Terminal() || to == models.ReportPending {
		return transitionRejected
	}
	return transitionApply
}

func isReviewTarget(s models.ReportStatus) bool {
	switch s {
	case models.ReportTriaged, models.ReportAccepted, models.ReportRejected, models.ReportDuplicate:
		return true
	}
	return false
}

// UpdateStatus moves a report through review. Entry into accepted awards XP (and
// legacy points when a reward is given) exactly once, in the same transaction as
// the status change.
func (s *ReportService) UpdateStatus(ctx context.Context, actor Actor, reportID string, upd StatusUpdate) (*TransitionResult, error) {
	upd.Status = models.ParseReportStatus(string(upd.Status))
	if !isReviewTarget(upd.Status) {
		return nil, validationError(fmt.Sprintf("invalid status %q", upd.Status))
	}
	if upd.Reward < 0 || math.IsNaN(upd.Reward) || math.IsInf(upd.Reward, 0) {
		return nil, validationError("reward must be a non-negative amount")
	}

	var (
		result *TransitionResult
		event  *NotificationEvent
	)
	backoff := retry.WithMaxRetries(s.MaxRetries, retry.NewExponential(10*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		r, ev, err := s.transition(ctx, actor, reportID, upd)
		if errors.Is(err, errUserContended) {
			s.Log.Debug(ctx, "progression write contended, retrying", "report_id", reportID)
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		result, event = r, ev
		return nil
	})
	if errors.Is(err, errUserContended) {
		return nil, conflictError("user progression changed concurrently, retry")
	}
	if err != nil {
		return nil, err
	}

	if result.Applied {
		attrs := []any{"report_id", reportID, "status", upd.Status, "reviewer", actor.UserID}
		if result.XPAwarded != nil {
			attrs = append(attrs, "xp_awarded", *result.XPAwarded)
		}
		s.Log.Info(ctx, "report status updated", attrs...)
	}
	if event != nil {
		s.dispatch(ctx, *event)
	}
	return result, nil
}

func (s *ReportService) transition(ctx context.Context, actor Actor, reportID string, upd StatusUpdate) (*TransitionResult, *NotificationEvent, error) {
	var (
		result TransitionResult
		event  *NotificationEvent
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var report models.Report
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&report, "id = ?", reportID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundError("report not found")
			}
			return err
		}
		var program models.Program
		if err := tx.First(&program, "id = ?", report.ProgramID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundError("program not found")
			}
			return err
		}
		report.Program = &program

		if !CanReviewReport(actor, &program) {
			return forbiddenError("not authorized")
		}

		prev := report.Status
		switch decideTransition(prev, upd.Status) {
		case transitionNoop:
			result = TransitionResult{Report: &report, Applied: false}
			return nil
		case transitionRejected:
			return conflictError(fmt.Sprintf("report is already %s", prev))
		}

		updates := map[string]any{
			"status":      upd.Status,
			"reviewed_by": actor.UserID,
		}
		if notes := strings.TrimSpace(upd.ReviewNotes); notes != "" {
			updates["review_notes"] = notes
		}
		if upd.Reward > 0 {
			updates["reward"] = upd.Reward
		}

		if upd.Status == models.ReportAccepted && report.XPAwarded == nil {
			delta, err := s.awardAcceptance(tx, &report, upd.Reward > 0)
			if err != nil {
				return err
			}
			updates["xp_awarded"] = delta
			if upd.Reward > 0 {
				updates["reward_given"] = true
			}
			result.XPAwarded = &delta
		}

		res := tx.Model(&models.Report{}).
			Where("id = ? AND status = ?", report.ID, prev).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return conflictError("report status changed concurrently")
		}

		if err := tx.First(&report, "id = ?", report.ID).Error; err != nil {
			return err
		}
		report.Program = &program
		result.Report = &report
		result.Applied = true

		event = &NotificationEvent{
			RecipientID: report.SubmittedBy,
			Title:       fmt.Sprintf("Report %s", report.Status),
			Body:        fmt.Sprintf("Your report %q was marked as %s.", report.Title, report.Status),
			DeepLink:    reportLink(report.ID),
			Metadata:    map[string]any{"reportId": report.ID, "status": string(report.Status)},
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &result, event, nil
}

// awardAcceptance runs the progression engine for the report's submitter and
// persists the result with a version compare-and-swap. The user row is read
// without a lock; a concurrent writer makes the swap miss and the caller retries.
// It returns the XP delta.
func (s *ReportService) awardAcceptance(tx *gorm.DB, report *models.Report, withReward bool) (int64, error) {
	var user models.User
	if err := tx.First(&user, "id = ?", report.SubmittedBy).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, notFoundError("submitter not found")
		}
		return 0, err
	}
	if err := tx.Where("user_id = ?", user.ID).Find(&user.Badges).Error; err != nil {
		return 0, err
	}

	award := s.Engine.AwardProgress(user.Progress(), report.Severity, s.now())

	cols := award.Progress.ProgressColumns()
	cols["version"] = user.Version + 1
	if withReward {
		cols["points"] = saturatingAdd(user.Points, s.Engine.Policy.PointsForSeverity(report.Severity))
	}

	res := tx.Model(&models.User{}).
		Where("id = ? AND version = ?", user.ID, user.Version).
		Updates(cols)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, errUserContended
	}

	if err := awardBadges(tx, user.ID, award.NewBadges); err != nil {
		return 0, err
	}
	return award.XPDelta, nil
}

// Get returns a report the actor is allowed to see.
func (s *ReportService) Get(ctx context.Context, actor Actor, reportID string) (*models.Report, error) {
	var report models.Report
	err := s.DB.WithContext(ctx).
		Preload("Program").
		Preload("Submitter").
		First(&report, "id = ?", reportID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("report not found")
		}
		return nil, err
	}
	if !CanViewReport(actor, &report) {
		return nil, forbiddenError("not authorized")
	}
	return &report, nil
}

// ListMine returns the hacker's own reports, newest first.
func (s *ReportService) ListMine(ctx context.Context, actor Actor) ([]models.Report, error) {
	if actor.Role != models.RoleHacker || actor.UserID == "" {
		return nil, forbiddenError("only hackers have their own reports")
	}
	reports := []models.Report{}
	err := s.DB.WithContext(ctx).
		Preload("Program").
		Where("submitted_by = ?", actor.UserID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&reports).Error
	return reports, err
}

// ListForCompany returns reports on the company's programs (every report for admins).
func (s *ReportService) ListForCompany(ctx context.Context, actor Actor) ([]models.Report, error) {
	if !CanListCompanyReports(actor) {
		return nil, forbiddenError("company or admin role required")
	}
	q := s.DB.WithContext(ctx).
		Preload("Program").
		Preload("Submitter")
	if !actor.IsAdmin() {
		q = q.Where("program_id IN (?)",
			s.DB.WithContext(ctx).Model(&models.Program{}).Select("id").Where("company_id = ?", actor.UserID))
	}

	reports := []models.Report{}
	err := q.Order("created_at DESC").Order("id DESC").Find(&reports).Error
	return reports, err
}

// Drain blocks until every queued notification has been handed to the gateway.
func (s *ReportService) Drain() {
	s.inflight.Wait()
}

// dispatch queues ev for the gateway without waiting for delivery. A single
// sender drains the queue, so events reach the gateway in dispatch order.
func (s *ReportService) dispatch(ctx context.Context, ev NotificationEvent) {
	if s.Notifier == nil {
		return
	}
	s.startOnce.Do(func() {
		s.outbox = make(chan dispatchJob, outboxSize)
		go s.sendLoop()
	})
	s.inflight.Add(1)
	s.outbox <- dispatchJob{ctx: context.WithoutCancel(ctx), ev: ev}
}

func (s *ReportService) sendLoop() {
	for job := range s.outbox {
		s.send(job)
	}
}

func (s *ReportService) send(job dispatchJob) {
	defer s.inflight.Done()
	ctx, cancel := context.WithTimeout(job.ctx, s.notifyTimeout())
	defer cancel()

	if err := s.Notifier.Notify(ctx, job.ev); err != nil {
		s.Log.Warn(ctx, "notification dispatch failed",
			"recipient_id", job.ev.RecipientID, "title", job.ev.Title, "error", err)
	}
}

func (s *ReportService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *ReportService) notifyTimeout() time.Duration {
	if s.NotifyTimeout > 0 {
		return s.NotifyTimeout
	}
	return 5 * time.Second
}

func reportLink(id string) string {
	return "/reports/" + id
}
