package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/isyourdayok/backend/models"
)

// PointsLedger keeps each user's cumulative score.
type PointsLedger struct {
	db *gorm.DB
}

func NewPointsLedger(db *gorm.DB) *PointsLedger {
	return &PointsLedger{db: db}
}

// Award adds amount to the user's total with a single atomic increment and returns the new total.
// Calls are not idempotent: awarding twice counts twice.
func (p *PointsLedger) Award(ctx context.Context, userID string, amount int) (int64, error) {
	tx := p.db.WithContext(ctx)
	res := tx.Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumns(map[string]interface{}{
			"points":     gorm.Expr("points + ?", amount),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("award points: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}

	var user models.User
	if err := tx.Select("id", "points").Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("user %s: %w", userID, ErrNotFound)
		}
		return 0, fmt.Errorf("load points: %w", err)
	}
	return user.Points, nil
}
