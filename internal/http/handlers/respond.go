package handlers

import (
	"fmt"
	"net/http"

	"github.com/geocoder89/authgate/internal/actorctx"
	"github.com/gin-gonic/gin"
)

// APIError is the body of every error response, wrapped as {"error": ...}.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
	Details   any    `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error APIError `json:"error"`
}

const bearerRealm = "authgate"

// bearerErrors maps our codes onto the RFC 6750 error attribute.
var bearerErrors = map[string]string{
	"invalid_token": "invalid_token",
	"token_expired": "invalid_token",
}

func requestIDFrom(ctx *gin.Context) string {
	if id, ok := actorctx.RequestIDFrom(ctx.Request.Context()); ok {
		return id
	}

	return ctx.Writer.Header().Get("X-Request-Id")
}

// RespondError writes the error envelope and aborts the chain.
func RespondError(ctx *gin.Context, status int, code, message string, details any) {
	ctx.AbortWithStatusJSON(status, errorEnvelope{Error: APIError{
		Code:      code,
		Message:   message,
		RequestID: requestIDFrom(ctx),
		Details:   details,
	}})
}

func RespondBadRequest(ctx *gin.Context, message string, details any) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

// RespondUnauthorized also sets the Bearer challenge so clients can tell a
// missing credential from a rejected one.
func RespondUnauthorized(ctx *gin.Context, code, message string) {
	challenge := fmt.Sprintf("Bearer realm=%q", bearerRealm)
	if e, ok := bearerErrors[code]; ok {
		challenge += fmt.Sprintf(", error=%q", e)
	}
	ctx.Header("WWW-Authenticate", challenge)

	RespondError(ctx, http.StatusUnauthorized, code, message, nil)
}

func RespondConflict(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusConflict, code, message, nil)
}

func RespondTooManyRequests(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusTooManyRequests, "rate_limited", message, nil)
}

func RespondUnsupportedMediaType(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusUnsupportedMediaType, "unsupported_media_type", message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}
