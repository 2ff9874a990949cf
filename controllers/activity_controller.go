package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/isyourdayok/backend/services"
	"github.com/isyourdayok/backend/utils"
)

// ActivityController handles journal, mood and meditation submissions.
type ActivityController struct {
	activities *services.ActivityService
}

func NewActivityController(activities *services.ActivityService) *ActivityController {
	return &ActivityController{activities: activities}
}

func (a *ActivityController) CreateJournal(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}
	entry, done, err := a.activities.SubmitJournal(ctx.Request.Context(), userID, req.Content)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Created(ctx, gin.H{"journal": entry, "completion": done})
}

func (a *ActivityController) ListJournals(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	items, err := a.activities.ListJournals(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, items)
}

func (a *ActivityController) CreateMood(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	var req struct {
		Mood   string `json:"mood"`
		Rating int    `json:"rating"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}
	entry, done, err := a.activities.LogMood(ctx.Request.Context(), userID, req.Mood, req.Rating)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Created(ctx, gin.H{"mood": entry, "completion": done})
}

func (a *ActivityController) ListMoods(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	items, err := a.activities.ListMoods(ctx.Request.Context(), userID, queryInt(ctx, "limit", 0))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, items)
}

// CreateMeditation records a session; completed defaults to true.
func (a *ActivityController) CreateMeditation(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	var req struct {
		Duration  int   `json:"duration"`
		Completed *bool `json:"completed"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}
	completed := req.Completed == nil || *req.Completed
	session, done, err := a.activities.RecordMeditation(ctx.Request.Context(), userID, req.Duration, completed)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Created(ctx, gin.H{"meditation": session, "completion": done})
}

// CompleteMeditation marks a stored session completed.
func (a *ActivityController) CompleteMeditation(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	session, done, err := a.activities.CompleteMeditation(ctx.Request.Context(), userID, ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"meditation": session, "completion": done})
}

func (a *ActivityController) ListMeditations(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	items, err := a.activities.ListMeditations(ctx.Request.Context(), userID, queryInt(ctx, "limit", 0))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, items)
}

// DailyActivity returns the completion flags for ?date= (default today, UTC).
func (a *ActivityController) DailyActivity(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	day, err := a.activities.Today(ctx.Request.Context(), userID, ctx.Query("date"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, day)
}
