package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DailyActivity marks which activities a user completed on a UTC calendar day.
type DailyActivity struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	UserID         string    `gorm:"size:36;not null;uniqueIndex:idx_activity_user_date" json:"user_id"`
	Date           string    `gorm:"size:10;not null;uniqueIndex:idx_activity_user_date" json:"date"`
	MoodLogDone    bool      `gorm:"not null;default:false" json:"mood_log_done"`
	JournalDone    bool      `gorm:"not null;default:false" json:"journal_done"`
	MeditationDone bool      `gorm:"not null;default:false" json:"meditation_done"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (d *DailyActivity) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}
