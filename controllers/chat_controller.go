package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/isyourdayok/backend/services"
	"github.com/isyourdayok/backend/utils"
)

// ChatController serves the community room.
type ChatController struct {
	chat *services.ChatService
}

func NewChatController(chat *services.ChatService) *ChatController {
	return &ChatController{chat: chat}
}

// List returns the latest messages, oldest first.
func (c *ChatController) List(ctx *gin.Context) {
	msgs, err := c.chat.List(ctx.Request.Context(), queryInt(ctx, "limit", services.DefaultChatLimit))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, msgs)
}

// Post broadcasts a message. Requires chat:broadcast.
func (c *ChatController) Post(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	var req struct {
		Type    string `json:"type"`
		Content string `json:"content"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}
	if req.Type == "" {
		req.Type = services.ChatAdmin
	}
	msg, err := c.chat.Post(ctx.Request.Context(), req.Type, req.Content, &userID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Created(ctx, msg)
}

// Delete removes a message. Requires chat:moderate.
func (c *ChatController) Delete(ctx *gin.Context) {
	if err := c.chat.Delete(ctx.Request.Context(), ctx.Param("id")); err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"deleted": ctx.Param("id")})
}
