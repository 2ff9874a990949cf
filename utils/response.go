package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// JSONResponse is the envelope every endpoint answers with. Code is 0 on success, otherwise an
// HTTP status followed by a two digit reason, e.g. 40901 for an activity already completed today.
type JSONResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Respond writes a JSON response with the given status code.
func Respond(ctx *gin.Context, status int, code int, message string, data interface{}) {
	ctx.JSON(status, JSONResponse{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// Success answers 200.
func Success(ctx *gin.Context, data interface{}) {
	Respond(ctx, http.StatusOK, 0, "success", data)
}

// Created answers 201 for a stored journal, mood, meditation or chat message.
func Created(ctx *gin.Context, data interface{}) {
	Respond(ctx, http.StatusCreated, 0, "success", data)
}

// Error returns a standard error response.
func Error(ctx *gin.Context, status int, code int, message string) {
	Respond(ctx, status, code, message, nil)
}

// Conflict answers 409: the daily activity or the achievement mint already happened, or is in flight.
func Conflict(ctx *gin.Context, code int, message string) {
	Error(ctx, http.StatusConflict, code, message)
}

// Unavailable answers with the status of an unusable chain dependency: 502 when the minting authority
// failed, 503 when minting is not configured.
func Unavailable(ctx *gin.Context, configured bool, code int, message string) {
	status := http.StatusServiceUnavailable
	if configured {
		status = http.StatusBadGateway
	}
	Error(ctx, status, code, message)
}
