package services

import (
	"context"
	"fmt"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/isyourdayok/backend/models"
	"github.com/isyourdayok/backend/utils"
)

// Chat message types.
const (
	ChatAdmin     = "admin"
	ChatSystem    = "system"
	ChatMilestone = "milestone"
)

const (
	DefaultChatLimit = 50
	MaxChatLimit     = 200
	maxChatLength    = 1000
)

// ChatService stores community room messages.
type ChatService struct {
	db *gorm.DB
}

func NewChatService(db *gorm.DB) *ChatService {
	return &ChatService{db: db}
}

// List returns the latest limit messages in chronological order.
func (s *ChatService) List(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	var out []models.ChatMessage
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(clampLimit(limit, DefaultChatLimit, MaxChatLimit)).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list chat: %w", err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Post stores a message. userID may be nil for system messages.
func (s *ChatService) Post(ctx context.Context, msgType, content string, userID *string) (*models.ChatMessage, error) {
	switch msgType {
	case ChatAdmin, ChatSystem, ChatMilestone:
	default:
		return nil, invalid("message type must be one of admin, system, milestone")
	}
	content = utils.SanitizeText(content)
	if content == "" {
		return nil, invalid("message content is required")
	}
	if utf8.RuneCountInString(content) > maxChatLength {
		return nil, invalid("message must be at most %d characters", maxChatLength)
	}
	msg := models.ChatMessage{Type: msgType, Content: content, UserID: userID}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("create chat message: %w", err)
	}
	return &msg, nil
}

// Delete removes a message.
func (s *ChatService) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ChatMessage{})
	if res.Error != nil {
		return fmt.Errorf("delete chat message: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("chat message %s: %w", id, ErrNotFound)
	}
	return nil
}
