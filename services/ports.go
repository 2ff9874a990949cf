package services

import (
	"context"
	"time"
)

// MintingAuthority is the external contract that records and mints achievement NFTs.
// It is the system of record for whether a user already minted an achievement type.
type MintingAuthority interface {
	// Address is the contract address that emits mint logs.
	Address() string
	HasMinted(ctx context.Context, owner string, code uint8) (bool, error)
	// Mint blocks until the mint transaction is confirmed.
	Mint(ctx context.Context, owner string, code uint8, rating int, metadataURI string) (*MintResult, error)
}

// MintResult is the confirmed outcome of a mint transaction.
type MintResult struct {
	TxHash string
	Logs   []ReceiptLog
}

// ReceiptLog is one event log of a transaction receipt. Topics are 0x-prefixed hex words.
type ReceiptLog struct {
	Address string
	Topics  []string
}

// PointsReader reads the on-chain counterpart of the points and streak ledgers.
type PointsReader interface {
	GetUserData(ctx context.Context, owner string) (*ChainUserData, error)
	CanMeditateToday(ctx context.Context, owner string) (bool, error)
}

// ChainUserData mirrors the points contract's getUserData tuple.
type ChainUserData struct {
	TotalPoints        int64 `json:"total_points"`
	JournalStreak      int   `json:"journal_streak"`
	MeditationStreak   int   `json:"meditation_streak"`
	LastJournalDate    int64 `json:"last_journal_date"`
	LastMeditationDate int64 `json:"last_meditation_date"`
}

// Cache stores short-lived serialized values.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// Locker provides best-effort mutual exclusion across service instances.
type Locker interface {
	// TryLock acquires key for ttl. ok is false when somebody else holds it.
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), ok bool, err error)
}
