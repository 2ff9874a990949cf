package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/isyourdayok/backend/metrics"
	"github.com/isyourdayok/backend/models"
)

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	MintsConfirmed int `json:"mints_confirmed"`
	MintsFailed    int `json:"mints_failed"`
	UsersUpdated   int `json:"users_updated"`
	Errors         int `json:"errors"`
}

// Reconciler aligns local records with the minting authority and the points contract.
type Reconciler struct {
	db        *gorm.DB
	authority MintingAuthority
	stats     *StatsService
	grace     time.Duration
	batch     int
	log       *zap.Logger
	now       func() time.Time
}

func NewReconciler(db *gorm.DB, authority MintingAuthority, stats *StatsService, grace time.Duration, batch int, log *zap.Logger) *Reconciler {
	if batch <= 0 {
		batch = 100
	}
	if log == nil {
		log = zap.NewNop()
	}
	if stats == nil {
		stats = NewStatsService(db)
	}
	return &Reconciler{db: db, authority: authority, stats: stats, grace: grace, batch: batch, log: log, now: time.Now}
}

// ReconcileMints resolves PENDING records older than the grace period against the authority.
func (r *Reconciler) ReconcileMints(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	if r.authority == nil {
		return report, nil
	}
	var pending []models.Achievement
	err := r.db.WithContext(ctx).
		Where("state = ? AND updated_at < ?", models.MintStatePending, r.now().Add(-r.grace)).
		Order("updated_at ASC").
		Limit(r.batch).
		Find(&pending).Error
	if err != nil {
		return report, fmt.Errorf("load pending mints: %w", err)
	}
	for i := range pending {
		state, err := r.resolve(ctx, &pending[i])
		if err != nil {
			report.Errors++
			r.log.Warn("reconcile mint", zap.String("achievement_id", pending[i].ID), zap.Error(err))
			continue
		}
		switch state {
		case models.MintStateMinted:
			report.MintsConfirmed++
		case models.MintStateFailed:
			report.MintsFailed++
		}
	}
	metrics.RecordReconcile("mint_confirmed", report.MintsConfirmed)
	metrics.RecordReconcile("mint_failed", report.MintsFailed)
	return report, nil
}

// ReconcileUserMints resolves the user's stale PENDING records. It is used on access.
func (r *Reconciler) ReconcileUserMints(ctx context.Context, userID string) error {
	if r.authority == nil {
		return nil
	}
	var pending []models.Achievement
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND state = ? AND updated_at < ?", userID, models.MintStatePending, r.now().Add(-r.grace)).
		Find(&pending).Error
	if err != nil {
		return fmt.Errorf("load pending mints: %w", err)
	}
	for i := range pending {
		if _, err := r.resolve(ctx, &pending[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) resolve(ctx context.Context, rec *models.Achievement) (string, error) {
	t, ok := LookupAchievement(rec.Type)
	if !ok {
		return "", fmt.Errorf("unknown achievement type %q", rec.Type)
	}
	var user models.User
	if err := r.db.WithContext(ctx).Select("id", "wallet_address").Where("id = ?", rec.UserID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("user %s: %w", rec.UserID, ErrNotFound)
		}
		return "", err
	}
	minted, err := r.authority.HasMinted(ctx, user.WalletAddress, t.Code)
	if err != nil {
		return "", fmt.Errorf("hasUserMinted: %w: %v", ErrExternal, err)
	}

	now := r.now()
	updates := map[string]interface{}{"updated_at": now}
	if minted {
		updates["state"] = models.MintStateMinted
		updates["minted"] = true
		updates["contract_address"] = r.authority.Address()
		updates["last_error"] = ""
		if rec.TokenID == "" {
			updates["token_id"] = "0"
		}
		if rec.MintedAt == nil {
			updates["minted_at"] = now
		}
	} else {
		updates["state"] = models.MintStateFailed
		updates["minted"] = false
	}
	// Only transition records still pending; a concurrent retry owns anything else.
	res := r.db.WithContext(ctx).Model(&models.Achievement{}).
		Where("id = ? AND state = ?", rec.ID, models.MintStatePending).
		Updates(updates)
	if res.Error != nil {
		return "", fmt.Errorf("update achievement: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return rec.State, nil
	}
	r.log.Info("mint reconciled", zap.String("achievement_id", rec.ID), zap.Any("state", updates["state"]))
	return updates["state"].(string), nil
}

// ReconcileUser overwrites the local points and streak mirror with the points contract values.
// It returns whether the local row changed.
func (r *Reconciler) ReconcileUser(ctx context.Context, user *models.User) (bool, error) {
	data, err := r.stats.Chain(ctx, user.WalletAddress, false)
	if errors.Is(err, ErrChainDisabled) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	lastJournal := chainDay(data.LastJournalDate)
	lastMeditation := chainDay(data.LastMeditationDate)
	if data.TotalPoints == user.Points &&
		data.JournalStreak == user.JournalStreak &&
		data.MeditationStreak == user.MeditationStreak &&
		lastJournal == user.LastJournalDate &&
		lastMeditation == user.LastMeditationDate {
		return false, nil
	}
	// The last streak days travel with the counters so the next bump continues the chain's streak.
	err = r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"points":               data.TotalPoints,
		"journal_streak":       data.JournalStreak,
		"meditation_streak":    data.MeditationStreak,
		"last_journal_date":    lastJournal,
		"last_meditation_date": lastMeditation,
		"updated_at":           r.now(),
	}).Error
	if err != nil {
		return false, fmt.Errorf("overwrite local stats: %w", err)
	}
	r.log.Info("local stats replaced by chain values",
		zap.String("user_id", user.ID),
		zap.Int64("local_points", user.Points),
		zap.Int64("chain_points", data.TotalPoints))
	return true, nil
}

// ReconcileUsers runs ReconcileUser over the most recently active users.
func (r *Reconciler) ReconcileUsers(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	if r.stats.reader == nil {
		return report, nil
	}
	var users []models.User
	if err := r.db.WithContext(ctx).Order("updated_at DESC").Limit(r.batch).Find(&users).Error; err != nil {
		return report, fmt.Errorf("load users: %w", err)
	}
	for i := range users {
		changed, err := r.ReconcileUser(ctx, &users[i])
		if err != nil {
			report.Errors++
			r.log.Warn("reconcile user", zap.String("user_id", users[i].ID), zap.Error(err))
			continue
		}
		if changed {
			report.UsersUpdated++
		}
	}
	metrics.RecordReconcile("user_stats", report.UsersUpdated)
	return report, nil
}

// Run executes a full reconciliation pass.
func (r *Reconciler) Run(ctx context.Context) (ReconcileReport, error) {
	mints, err := r.ReconcileMints(ctx)
	if err != nil {
		return mints, err
	}
	users, err := r.ReconcileUsers(ctx)
	mints.UsersUpdated = users.UsersUpdated
	mints.Errors += users.Errors
	if err != nil {
		return mints, err
	}
	r.log.Info("reconciliation finished",
		zap.Int("mints_confirmed", mints.MintsConfirmed),
		zap.Int("mints_failed", mints.MintsFailed),
		zap.Int("users_updated", mints.UsersUpdated),
		zap.Int("errors", mints.Errors))
	return mints, nil
}

// chainDay converts a points contract date to a UTC calendar day. The contract stores either a unix
// timestamp or a day number since the epoch; zero means never.
func chainDay(v int64) string {
	switch {
	case v <= 0:
		return ""
	case v < 1_000_000:
		return Day(time.Unix(v*86400, 0))
	default:
		return Day(time.Unix(v, 0))
	}
}
