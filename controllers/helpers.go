package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/isyourdayok/backend/middleware"
	"github.com/isyourdayok/backend/models"
	"github.com/isyourdayok/backend/services"
	"github.com/isyourdayok/backend/utils"
)

func getUserID(ctx *gin.Context) (string, bool) {
	id := ctx.GetString(middleware.ContextUserIDKey)
	return id, id != ""
}

// currentUser loads the authenticated user, writing an error response when it cannot.
func currentUser(ctx *gin.Context, users *services.UserService) (*models.User, bool) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return nil, false
	}
	user, err := users.Get(ctx.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			utils.Error(ctx, http.StatusUnauthorized, 40110, "unknown user")
			return nil, false
		}
		respondError(ctx, err)
		return nil, false
	}
	return user, true
}

// respondError maps service errors onto the response envelope.
func respondError(ctx *gin.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		utils.Error(ctx, http.StatusBadRequest, 40001, verr.Message)
	case errors.Is(err, services.ErrNotEligible):
		utils.Error(ctx, http.StatusBadRequest, 40002, "achievement not unlocked yet")
	case errors.Is(err, services.ErrForbidden):
		utils.Error(ctx, http.StatusForbidden, 40301, "forbidden")
	case errors.Is(err, services.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40401, "not found")
	case errors.Is(err, services.ErrAlreadyCompleted):
		utils.Conflict(ctx, 40901, "already completed today")
	case errors.Is(err, services.ErrAlreadyMinted):
		utils.Conflict(ctx, 40902, "achievement already minted")
	case errors.Is(err, services.ErrMintInProgress):
		utils.Conflict(ctx, 40903, "mint already in progress")
	case errors.Is(err, services.ErrExternal):
		utils.L().Sugar().Warnf("%s %s: %v", ctx.Request.Method, ctx.FullPath(), err)
		utils.Unavailable(ctx, true, 50201, "minting authority unavailable")
	case errors.Is(err, services.ErrChainDisabled):
		utils.Unavailable(ctx, false, 50301, "minting is not configured")
	default:
		utils.L().Sugar().Errorf("%s %s: %v", ctx.Request.Method, ctx.FullPath(), err)
		utils.Error(ctx, http.StatusInternalServerError, 50000, "internal error")
	}
}

func queryInt(ctx *gin.Context, key string, def int) int {
	v := ctx.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
