package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/isyourdayok/backend/metrics"
	"github.com/isyourdayok/backend/models"
)

// Improvement rating bounds accepted by the minting contract.
const (
	MinImprovementRating = 1
	MaxImprovementRating = 100
)

const (
	defaultMintLockTTL = 5 * time.Minute
	maxLastErrorLength = 512
)

// MetadataURI returns the token metadata location for an achievement type.
func MetadataURI(baseURL, typeID string) string {
	return fmt.Sprintf("%s/nft-metadata/%s.json", strings.TrimRight(baseURL, "/"), typeID)
}

// TokenIDFromLogs returns the token id carried as the second topic of the first log emitted by
// contract. It returns "0" when no such log or topic exists.
func TokenIDFromLogs(logs []ReceiptLog, contract string) string {
	for _, l := range logs {
		if !strings.EqualFold(l.Address, contract) {
			continue
		}
		if len(l.Topics) < 2 {
			return "0"
		}
		n, ok := new(big.Int).SetString(strings.TrimPrefix(strings.ToLower(l.Topics[1]), "0x"), 16)
		if !ok {
			return "0"
		}
		return n.String()
	}
	return "0"
}

// MintCoordinator turns an unlocked achievement into a minted NFT exactly once per (user, type).
type MintCoordinator struct {
	db        *gorm.DB
	authority MintingAuthority
	stats     *StatsService
	locker    Locker
	chat      *ChatService
	baseURL   string
	lockTTL   time.Duration
	log       *zap.Logger
	now       func() time.Time
}

// MintConfig carries the coordinator collaborators. Authority may be nil when minting is disabled.
type MintConfig struct {
	Authority MintingAuthority
	Stats     *StatsService
	Locker    Locker
	Chat      *ChatService
	BaseURL   string
	LockTTL   time.Duration
	Logger    *zap.Logger
}

func NewMintCoordinator(db *gorm.DB, cfg MintConfig) *MintCoordinator {
	m := &MintCoordinator{
		db:        db,
		authority: cfg.Authority,
		stats:     cfg.Stats,
		locker:    cfg.Locker,
		chat:      cfg.Chat,
		baseURL:   cfg.BaseURL,
		lockTTL:   cfg.LockTTL,
		log:       cfg.Logger,
		now:       time.Now,
	}
	if m.stats == nil {
		m.stats = NewStatsService(db)
	}
	if m.lockTTL <= 0 {
		m.lockTTL = defaultMintLockTTL
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	return m
}

// Enabled reports whether a minting authority is configured.
func (m *MintCoordinator) Enabled() bool { return m.authority != nil }

// Mint mints typeID for user with the self-reported improvement rating.
func (m *MintCoordinator) Mint(ctx context.Context, user *models.User, typeID string, rating int) (*models.Achievement, error) {
	if rating < MinImprovementRating || rating > MaxImprovementRating {
		return nil, invalid("improvement rating must be between %d and %d", MinImprovementRating, MaxImprovementRating)
	}
	t, ok := LookupAchievement(typeID)
	if !ok {
		return nil, invalid("unknown achievement type %q", typeID)
	}
	if m.authority == nil {
		return nil, ErrChainDisabled
	}

	minted, err := m.authority.HasMinted(ctx, user.WalletAddress, t.Code)
	if err != nil {
		metrics.RecordMint(t.ID, "failed", 0)
		return nil, fmt.Errorf("hasUserMinted: %w: %v", ErrExternal, err)
	}
	if minted {
		metrics.RecordMint(t.ID, "already_minted", 0)
		return nil, fmt.Errorf("%s: %w", t.ID, ErrAlreadyMinted)
	}

	stats, err := m.stats.Effective(ctx, user)
	if err != nil {
		return nil, err
	}
	if ev := Evaluate(stats.Streak(t.Kind), t, false); ev.Status != StatusUnlocked {
		metrics.RecordMint(t.ID, "not_eligible", 0)
		return nil, fmt.Errorf("%s streak %d of %d: %w", t.Kind, ev.Current, ev.Target, ErrNotEligible)
	}

	unlock, ok, err := m.locker.TryLock(ctx, "mint:lock:"+user.ID+":"+t.ID, m.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire mint lock: %w", err)
	}
	if !ok {
		metrics.RecordMint(t.ID, "in_progress", 0)
		return nil, fmt.Errorf("%s: %w", t.ID, ErrMintInProgress)
	}
	defer unlock()

	// A concurrent request may have minted between the first check and the lock.
	if minted, err = m.authority.HasMinted(ctx, user.WalletAddress, t.Code); err != nil {
		metrics.RecordMint(t.ID, "failed", 0)
		return nil, fmt.Errorf("hasUserMinted: %w: %v", ErrExternal, err)
	}
	if minted {
		metrics.RecordMint(t.ID, "already_minted", 0)
		return nil, fmt.Errorf("%s: %w", t.ID, ErrAlreadyMinted)
	}

	rec, err := m.markPending(ctx, user.ID, t, rating)
	if err != nil {
		return nil, err
	}

	start := m.now()
	res, err := m.authority.Mint(ctx, user.WalletAddress, t.Code, rating, MetadataURI(m.baseURL, t.ID))
	if err != nil {
		metrics.RecordMint(t.ID, "failed", time.Since(start))
		m.recordError(ctx, rec.ID, err)
		m.log.Error("mint failed",
			zap.String("user_id", user.ID), zap.String("type", t.ID), zap.Error(err))
		return nil, fmt.Errorf("mintAchievement: %w: %v", ErrExternal, err)
	}
	metrics.RecordMint(t.ID, "minted", time.Since(start))

	mintedAt := m.now()
	rec.State = models.MintStateMinted
	rec.Minted = true
	rec.TokenID = TokenIDFromLogs(res.Logs, m.authority.Address())
	rec.ContractAddress = m.authority.Address()
	rec.TransactionHash = res.TxHash
	rec.LastError = ""
	rec.MintedAt = &mintedAt
	err = m.db.WithContext(ctx).Model(&models.Achievement{}).Where("id = ?", rec.ID).Updates(map[string]interface{}{
		"state":            rec.State,
		"minted":           true,
		"token_id":         rec.TokenID,
		"contract_address": rec.ContractAddress,
		"transaction_hash": rec.TransactionHash,
		"last_error":       "",
		"minted_at":        mintedAt,
		"updated_at":       mintedAt,
	}).Error
	if err != nil {
		// The chain already holds the mint; reconciliation repairs the local record.
		m.log.Error("persist minted achievement",
			zap.String("achievement_id", rec.ID), zap.String("tx", res.TxHash), zap.Error(err))
		return nil, fmt.Errorf("persist minted achievement: %w", err)
	}

	m.log.Info("achievement minted",
		zap.String("user_id", user.ID),
		zap.String("type", t.ID),
		zap.String("token_id", rec.TokenID),
		zap.String("tx", rec.TransactionHash))
	m.announce(ctx, user, t)
	return rec, nil
}

// markPending creates or resets the (user, type) record to PENDING.
func (m *MintCoordinator) markPending(ctx context.Context, userID string, t AchievementType, rating int) (*models.Achievement, error) {
	var rec models.Achievement
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND type = ?", userID, t.ID).First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			rec = models.Achievement{
				UserID:            userID,
				Type:              t.ID,
				Days:              t.Days,
				ImprovementRating: rating,
				State:             models.MintStatePending,
			}
			return tx.Create(&rec).Error
		}
		if err != nil {
			return err
		}
		if rec.State == models.MintStateMinted {
			m.log.Warn("local record minted but authority disagrees, minting again",
				zap.String("achievement_id", rec.ID))
		}
		rec.State = models.MintStatePending
		rec.Minted = false
		rec.ImprovementRating = rating
		rec.LastError = ""
		return tx.Model(&models.Achievement{}).Where("id = ?", rec.ID).Updates(map[string]interface{}{
			"state":              rec.State,
			"minted":             false,
			"improvement_rating": rating,
			"last_error":         "",
			"updated_at":         m.now(),
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("mark mint pending: %w", err)
	}
	return &rec, nil
}

func (m *MintCoordinator) recordError(ctx context.Context, id string, cause error) {
	msg := truncate(cause.Error(), maxLastErrorLength)
	err := m.db.WithContext(ctx).Model(&models.Achievement{}).Where("id = ?", id).
		Updates(map[string]interface{}{"last_error": msg, "updated_at": m.now()}).Error
	if err != nil {
		m.log.Warn("record mint error", zap.String("achievement_id", id), zap.Error(err))
	}
}

func (m *MintCoordinator) announce(ctx context.Context, user *models.User, t AchievementType) {
	if m.chat == nil {
		return
	}
	name := user.Username
	if name == "" {
		name = shortAddress(user.WalletAddress)
	}
	uid := user.ID
	_, err := m.chat.Post(ctx, ChatMilestone, fmt.Sprintf("%s just minted the %s achievement!", name, t.Title), &uid)
	if err != nil {
		m.log.Warn("post milestone message", zap.String("user_id", user.ID), zap.Error(err))
	}
}

// Records returns the user's local achievement records keyed by type.
func (m *MintCoordinator) Records(ctx context.Context, userID string) (map[string]models.Achievement, error) {
	var rows []models.Achievement
	if err := m.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	out := make(map[string]models.Achievement, len(rows))
	for _, r := range rows {
		out[r.Type] = r
	}
	return out, nil
}

// AchievementView pairs an evaluation with the local mint record, if any.
type AchievementView struct {
	Evaluation
	Record *models.Achievement `json:"record,omitempty"`
}

// Overview evaluates every achievement type for user against effective stats.
func (m *MintCoordinator) Overview(ctx context.Context, user *models.User) ([]AchievementView, Stats, error) {
	stats, err := m.stats.Effective(ctx, user)
	if err != nil {
		return nil, stats, err
	}
	records, err := m.Records(ctx, user.ID)
	if err != nil {
		return nil, stats, err
	}
	types := AchievementTypes()
	out := make([]AchievementView, 0, len(types))
	for _, t := range types {
		view := AchievementView{}
		rec, ok := records[t.ID]
		view.Evaluation = Evaluate(stats.Streak(t.Kind), t, ok && rec.State == models.MintStateMinted)
		if ok {
			r := rec
			view.Record = &r
		}
		out = append(out, view)
	}
	return out, stats, nil
}

func shortAddress(addr string) string {
	if len(addr) < 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
