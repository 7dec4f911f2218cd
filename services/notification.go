package services

import (
	"context"
	"errors"
	"sync"

	"bounty-platform/logging"
	"bounty-platform/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NotificationEvent is what the report lifecycle hands to the notification gateway.
type NotificationEvent struct {
	RecipientID string
	Title       string
	Body        string
	DeepLink    string
	Metadata    map[string]any
}

// NotificationGateway delivers events. Delivery is best-effort: callers log
// failures and never roll back on them.
type NotificationGateway interface {
	Notify(ctx context.Context, ev NotificationEvent) error
}

// Hub fans persisted notifications out to live subscribers (SSE streams).
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[chan models.Notification]struct{}
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: make(map[string]map[chan models.Notification]struct{}), buffer: buffer}
}

// Subscribe registers a stream for userID. The returned cancel func must be called
// once the stream ends; it closes the channel.
func (h *Hub) Subscribe(userID string) (<-chan models.Notification, func()) {
	ch := make(chan models.Notification, h.buffer)

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan models.Notification]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[userID], ch)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers n to every subscriber of its user without blocking.
// It returns how many subscribers were skipped because their buffer was full.
func (h *Hub) Publish(n models.Notification) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for ch := range h.subs[n.UserID] {
		select {
		case ch <- n:
		default:
			dropped++
		}
	}
	return dropped
}

func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// NotificationService persists notifications and pushes them to the hub.
// It implements NotificationGateway.
type NotificationService struct {
	DB  *gorm.DB
	Hub *Hub
	Log logging.Logger
}

func NewNotificationService(db *gorm.DB, hub *Hub, log logging.Logger) *NotificationService {
	return &NotificationService{DB: db, Hub: hub, Log: log}
}

// NotificationListLimit caps GET /notifications.
const NotificationListLimit = 100

func (s *NotificationService) Notify(ctx context.Context, ev NotificationEvent) error {
	if ev.RecipientID == "" {
		return errors.New("notification has no recipient")
	}
	n := models.Notification{
		ID:     uuid.NewString(),
		UserID: ev.RecipientID,
		Title:  ev.Title,
		Body:   ev.Body,
		Link:   ev.DeepLink,
		Data:   datatypes.JSONMap(ev.Metadata),
	}
	if n.Data == nil {
		n.Data = datatypes.JSONMap{}
	}
	if err := s.DB.WithContext(ctx).Create(&n).Error; err != nil {
		return err
	}

	if s.Hub != nil {
		if dropped := s.Hub.Publish(n); dropped > 0 {
			s.Log.Warn(ctx, "slow notification subscribers skipped", "user_id", n.UserID, "dropped", dropped)
		}
	}
	return nil
}

// List returns the caller's newest notifications.
func (s *NotificationService) List(ctx context.Context, userID string) ([]models.Notification, error) {
	notes := []models.Notification{}
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(NotificationListLimit).
		Find(&notes).Error
	return notes, err
}

// MarkRead flags one of the caller's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	res := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFoundError("notification not found")
	}
	return nil
}

// MarkAllRead flags every unread notification of the caller and returns the count.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true)
	return res.RowsAffected, res.Error
}
