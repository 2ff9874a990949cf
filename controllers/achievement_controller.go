package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/isyourdayok/backend/services"
	"github.com/isyourdayok/backend/utils"
)

// AchievementController lists achievements, mints them and serves token metadata.
type AchievementController struct {
	users      *services.UserService
	mints      *services.MintCoordinator
	reconciler *services.Reconciler
	baseURL    string
}

func NewAchievementController(users *services.UserService, mints *services.MintCoordinator, reconciler *services.Reconciler, baseURL string) *AchievementController {
	return &AchievementController{users: users, mints: mints, reconciler: reconciler, baseURL: strings.TrimRight(baseURL, "/")}
}

// List evaluates every achievement type for the caller.
func (a *AchievementController) List(ctx *gin.Context) {
	user, ok := currentUser(ctx, a.users)
	if !ok {
		return
	}
	a.settlePending(ctx.Request.Context(), user.ID)
	views, stats, err := a.mints.Overview(ctx.Request.Context(), user)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"achievements": views, "stats": stats})
}

// Mint mints an unlocked achievement as an NFT and blocks until the transaction is confirmed.
func (a *AchievementController) Mint(ctx *gin.Context) {
	user, ok := currentUser(ctx, a.users)
	if !ok {
		return
	}
	var req struct {
		Type              string `json:"type" binding:"required"`
		ImprovementRating int    `json:"improvement_rating"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	// A dropped client must not abandon a transaction that is already in flight.
	mintCtx := context.WithoutCancel(ctx.Request.Context())
	if a.mints.Enabled() {
		a.settlePending(mintCtx, user.ID)
	}
	rec, err := a.mints.Mint(mintCtx, user, req.Type, req.ImprovementRating)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{
		"achievement":      rec,
		"token_id":         rec.TokenID,
		"transaction_hash": rec.TransactionHash,
		"contract_address": rec.ContractAddress,
	})
}

func (a *AchievementController) settlePending(ctx context.Context, userID string) {
	if a.reconciler == nil {
		return
	}
	if err := a.reconciler.ReconcileUserMints(ctx, userID); err != nil {
		utils.L().Sugar().Warnf("settle pending mints user=%s: %v", userID, err)
	}
}

// Types lists the achievement catalogue.
func (a *AchievementController) Types(ctx *gin.Context) {
	utils.Success(ctx, services.AchievementTypes())
}

type metadataAttribute struct {
	TraitType string      `json:"trait_type"`
	Value     interface{} `json:"value"`
}

type tokenMetadata struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Image       string              `json:"image"`
	ExternalURL string              `json:"external_url"`
	Attributes  []metadataAttribute `json:"attributes"`
}

// Metadata serves the ERC-721 metadata document referenced by minted tokens.
func (a *AchievementController) Metadata(ctx *gin.Context) {
	id := strings.TrimSuffix(ctx.Param("file"), ".json")
	t, ok := services.LookupAchievement(id)
	if !ok {
		utils.Error(ctx, http.StatusNotFound, 40401, "unknown achievement type")
		return
	}
	ctx.Header("Cache-Control", "public, max-age=86400")
	ctx.JSON(http.StatusOK, tokenMetadata{
		Name:        t.Title,
		Description: t.Description,
		Image:       a.baseURL + "/nft-images/" + t.ID + ".png",
		ExternalURL: a.baseURL,
		Attributes: []metadataAttribute{
			{TraitType: "Activity", Value: string(t.Kind)},
			{TraitType: "Streak Days", Value: t.Days},
		},
	})
}
