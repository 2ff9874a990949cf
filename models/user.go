package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a wallet-identified member. Points and streaks are the local mirror of the points contract.
type User struct {
	ID                 string    `gorm:"primaryKey;size:36" json:"id"`
	WalletAddress      string    `gorm:"size:42;uniqueIndex;not null" json:"wallet_address"`
	Username           string    `gorm:"size:64" json:"username"`
	ProfileImage       string    `gorm:"size:512" json:"profile_image"`
	FarcasterFID       string    `gorm:"size:32" json:"farcaster_fid"`
	Points             int64     `gorm:"not null;default:0" json:"points"`
	JournalStreak      int       `gorm:"not null;default:0" json:"journal_streak"`
	MeditationStreak   int       `gorm:"not null;default:0" json:"meditation_streak"`
	LastJournalDate    string    `gorm:"size:10;not null;default:''" json:"last_journal_date"`
	LastMeditationDate string    `gorm:"size:10;not null;default:''" json:"last_meditation_date"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// BeforeCreate assigns a random id when none is set.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
