package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/isyourdayok/backend/models"
	"github.com/isyourdayok/backend/utils"
)

// Profile holds the optional display fields supplied on wallet connection.
type Profile struct {
	Username     string
	ProfileImage string
	FarcasterFID string
}

// NormalizeAddress validates a hex wallet address and returns its checksummed form.
func NormalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) || !strings.HasPrefix(strings.ToLower(address), "0x") {
		return "", invalid("invalid wallet address")
	}
	return common.HexToAddress(address).Hex(), nil
}

// UserService manages wallet-identified users.
type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

func (p Profile) updates() map[string]interface{} {
	out := map[string]interface{}{}
	if v := utils.SanitizeText(p.Username); v != "" {
		out["username"] = truncate(v, 64)
	}
	if v := strings.TrimSpace(p.ProfileImage); v != "" {
		out["profile_image"] = truncate(v, 512)
	}
	if v := strings.TrimSpace(p.FarcasterFID); v != "" {
		out["farcaster_fid"] = truncate(v, 32)
	}
	return out
}

// GetOrCreate returns the user owning address, creating it on first connection. Provided profile
// fields overwrite stored ones; empty fields are left untouched.
func (s *UserService) GetOrCreate(ctx context.Context, address string, p Profile) (*models.User, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	tx := s.db.WithContext(ctx)
	fields := p.updates()

	user := models.User{WalletAddress: addr}
	if v, ok := fields["username"].(string); ok {
		user.Username = v
	}
	if v, ok := fields["profile_image"].(string); ok {
		user.ProfileImage = v
	}
	if v, ok := fields["farcaster_fid"].(string); ok {
		user.FarcasterFID = v
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if len(fields) > 0 {
		fields["updated_at"] = time.Now()
		if err := tx.Model(&models.User{}).Where("wallet_address = ?", addr).Updates(fields).Error; err != nil {
			return nil, fmt.Errorf("update user profile: %w", err)
		}
	}
	return s.GetByAddress(ctx, addr)
}

// Get loads a user by id.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}

// GetByAddress loads a user by wallet address.
func (s *UserService) GetByAddress(ctx context.Context, address string) (*models.User, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := s.db.WithContext(ctx).Where("wallet_address = ?", addr).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s: %w", addr, ErrNotFound)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}

// UpdateProfile changes display fields only. Points and streaks are never client writable.
func (s *UserService) UpdateProfile(ctx context.Context, id string, p Profile) (*models.User, error) {
	fields := p.updates()
	if len(fields) > 0 {
		fields["updated_at"] = time.Now()
		res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return nil, fmt.Errorf("update profile: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
	}
	return s.Get(ctx, id)
}

// UserSummary is a user with per-activity record counts.
type UserSummary struct {
	models.User
	JournalCount     int64 `json:"journal_count"`
	MoodCount        int64 `json:"mood_count"`
	MeditationCount  int64 `json:"meditation_count"`
	AchievementCount int64 `json:"achievement_count"`
}

// ListWithCounts pages through users newest first, including their record counts.
func (s *UserService) ListWithCounts(ctx context.Context, page, pageSize int) ([]UserSummary, int64, error) {
	tx := s.db.WithContext(ctx)
	var total int64
	if err := tx.Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	var rows []UserSummary
	err := tx.Model(&models.User{}).
		Select("users.*, " +
			"(SELECT COUNT(*) FROM journals WHERE journals.user_id = users.id) AS journal_count, " +
			"(SELECT COUNT(*) FROM mood_logs WHERE mood_logs.user_id = users.id) AS mood_count, " +
			"(SELECT COUNT(*) FROM meditations WHERE meditations.user_id = users.id) AS meditation_count, " +
			"(SELECT COUNT(*) FROM achievements WHERE achievements.user_id = users.id) AS achievement_count").
		Order("users.created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return rows, total, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
