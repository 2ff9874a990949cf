package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/isyourdayok/backend/services"
	"github.com/isyourdayok/backend/utils"
)

// StatsController exposes effective points and streaks.
type StatsController struct {
	users *services.UserService
	stats *services.StatsService
}

func NewStatsController(users *services.UserService, stats *services.StatsService) *StatsController {
	return &StatsController{users: users, stats: stats}
}

// Me returns the caller's stats, preferring the points contract over the database.
func (s *StatsController) Me(ctx *gin.Context) {
	user, ok := currentUser(ctx, s.users)
	if !ok {
		return
	}
	stats, err := s.stats.Effective(ctx.Request.Context(), user)
	if err != nil {
		respondError(ctx, err)
		return
	}
	canMeditate, err := s.stats.CanMeditateToday(ctx.Request.Context(), user)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{
		"stats":                stats,
		"can_meditate_today":   canMeditate,
		"last_journal_date":    user.LastJournalDate,
		"last_meditation_date": user.LastMeditationDate,
	})
}
