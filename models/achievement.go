package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Mint states of an achievement record. A missing record is the implicit NONE state.
const (
	MintStatePending = "pending"
	MintStateMinted  = "minted"
	MintStateFailed  = "failed"
)

// Achievement is the local cache of an NFT mint for (user, type). The minting contract is the source of truth.
type Achievement struct {
	ID                string     `gorm:"primaryKey;size:36" json:"id"`
	UserID            string     `gorm:"size:36;not null;uniqueIndex:idx_achievement_user_type" json:"user_id"`
	Type              string     `gorm:"size:32;not null;uniqueIndex:idx_achievement_user_type" json:"type"`
	Days              int        `gorm:"not null" json:"days"`
	ImprovementRating int        `gorm:"not null" json:"improvement_rating"`
	State             string     `gorm:"size:16;not null;index" json:"state"`
	Minted            bool       `gorm:"not null;default:false" json:"minted"`
	TokenID           string     `gorm:"size:80" json:"token_id"`
	ContractAddress   string     `gorm:"size:42" json:"contract_address"`
	TransactionHash   string     `gorm:"size:66" json:"transaction_hash"`
	LastError         string     `gorm:"size:512" json:"last_error,omitempty"`
	MintedAt          *time.Time `json:"minted_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `gorm:"index" json:"updated_at"`
}

func (a *Achievement) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
