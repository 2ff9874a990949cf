package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/isyourdayok/backend/services"
	"github.com/isyourdayok/backend/utils"
)

// AdminController exposes operator endpoints guarded by capabilities.
type AdminController struct {
	users      *services.UserService
	authz      *services.Authorizer
	reconciler *services.Reconciler
}

func NewAdminController(users *services.UserService, authz *services.Authorizer, reconciler *services.Reconciler) *AdminController {
	return &AdminController{users: users, authz: authz, reconciler: reconciler}
}

// ListUsers pages through users with their activity counts.
func (a *AdminController) ListUsers(ctx *gin.Context) {
	page := queryInt(ctx, "page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := queryInt(ctx, "page_size", 50)
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	rows, total, err := a.users.ListWithCounts(ctx.Request.Context(), page, pageSize)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"items": rows, "total": total, "page": page, "page_size": pageSize})
}

// Reconcile runs a reconciliation pass immediately.
func (a *AdminController) Reconcile(ctx *gin.Context) {
	report, err := a.reconciler.Run(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, report)
}

// GrantRole grants a role to a wallet address.
func (a *AdminController) GrantRole(ctx *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
		Role    string `json:"role" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}
	if err := a.authz.Grant(ctx.Request.Context(), req.Address, req.Role); err != nil {
		respondError(ctx, err)
		return
	}
	roles, err := a.authz.Roles(ctx.Request.Context(), req.Address)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"address": req.Address, "roles": roles})
}

// RevokeRole removes a role from a wallet address.
func (a *AdminController) RevokeRole(ctx *gin.Context) {
	if err := a.authz.Revoke(ctx.Request.Context(), ctx.Param("address"), ctx.Param("role")); err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"address": ctx.Param("address"), "revoked": ctx.Param("role")})
}
