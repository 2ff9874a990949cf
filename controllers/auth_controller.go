package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/isyourdayok/backend/middleware"
	"github.com/isyourdayok/backend/services"
	"github.com/isyourdayok/backend/utils"
)

// AuthController handles wallet login and profile endpoints.
type AuthController struct {
	users   *services.UserService
	authz   *services.Authorizer
	nonces  *utils.NonceStore
	revoked *utils.Revocations
	ttl     time.Duration
}

// NewAuthController creates a new controller instance.
func NewAuthController(users *services.UserService, authz *services.Authorizer, nonces *utils.NonceStore, revoked *utils.Revocations, ttl time.Duration) *AuthController {
	return &AuthController{users: users, authz: authz, nonces: nonces, revoked: revoked, ttl: ttl}
}

// Nonce issues the message a wallet must sign to log in.
func (a *AuthController) Nonce(ctx *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}
	addr, err := services.NormalizeAddress(req.Address)
	if err != nil {
		respondError(ctx, err)
		return
	}
	msg, err := a.nonces.Issue(ctx.Request.Context(), addr)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"address": addr, "message": msg})
}

// WalletLogin verifies a signed login message and returns a session token.
func (a *AuthController) WalletLogin(ctx *gin.Context) {
	var req struct {
		Address      string `json:"address" binding:"required"`
		Signature    string `json:"signature" binding:"required"`
		Username     string `json:"username"`
		ProfileImage string `json:"profile_image"`
		FarcasterFID string `json:"farcaster_fid"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}
	addr, err := services.NormalizeAddress(req.Address)
	if err != nil {
		respondError(ctx, err)
		return
	}
	msg, ok := a.nonces.Consume(ctx.Request.Context(), addr)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "login nonce missing or expired")
		return
	}
	if err := utils.VerifyWalletSignature(addr, msg, req.Signature); err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40107, "invalid signature")
		return
	}

	user, err := a.users.GetOrCreate(ctx.Request.Context(), addr, services.Profile{
		Username:     req.Username,
		ProfileImage: req.ProfileImage,
		FarcasterFID: req.FarcasterFID,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	token, err := utils.GenerateToken(user.ID, user.WalletAddress, a.ttl)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.L().Sugar().Infof("wallet login user=%s address=%s", user.ID, user.WalletAddress)
	utils.Success(ctx, gin.H{"token": token, "user": user})
}

// Me returns the authenticated user and their roles.
func (a *AuthController) Me(ctx *gin.Context) {
	user, ok := currentUser(ctx, a.users)
	if !ok {
		return
	}
	roles, err := a.authz.Roles(ctx.Request.Context(), user.WalletAddress)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"user": user, "roles": roles})
}

// UpdateProfile changes display fields of the authenticated user.
func (a *AuthController) UpdateProfile(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	var req struct {
		Username     string `json:"username"`
		ProfileImage string `json:"profile_image"`
		FarcasterFID string `json:"farcaster_fid"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}
	user, err := a.users.UpdateProfile(ctx.Request.Context(), userID, services.Profile{
		Username:     req.Username,
		ProfileImage: req.ProfileImage,
		FarcasterFID: req.FarcasterFID,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, user)
}

// Logout revokes the current session token until it expires.
func (a *AuthController) Logout(ctx *gin.Context) {
	value, _ := ctx.Get(middleware.ContextClaimsKey)
	claims, ok := value.(*utils.Claims)
	if !ok || claims.ExpiresAt == nil {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	if a.revoked != nil {
		a.revoked.Revoke(ctx.Request.Context(), claims.ID, claims.ExpiresAt.Time)
	}
	utils.Success(ctx, gin.H{"logged_out": true})
}
