package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChatMessage is a community chat room message posted by staff or the system.
type ChatMessage struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Type      string    `gorm:"size:16;not null" json:"type"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	UserID    *string   `gorm:"size:36;index" json:"user_id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
