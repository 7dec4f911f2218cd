package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is a persisted, user-facing event.
type Notification struct {
	ID        string            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string            `gorm:"type:varchar(36);index;not null" json:"user_id"`
	Title     string            `gorm:"not null" json:"title"`
	Body      string            `json:"body"`
	Link      string            `json:"link,omitempty"`
	Data      datatypes.JSONMap `json:"data"`
	Read      bool              `gorm:"not null;default:false;index" json:"read"`
	CreatedAt time.Time         `gorm:"autoCreateTime;index" json:"created_at"`
}
