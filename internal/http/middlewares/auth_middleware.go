package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/geocoder89/authgate/internal/actorctx"
	"github.com/geocoder89/authgate/internal/auth"
	"github.com/geocoder89/authgate/internal/http/handlers"
	"github.com/geocoder89/authgate/internal/service"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (service.Session, error)
}

type AuthMiddleware struct {
	sessions SessionValidator
	log      *slog.Logger
}

func NewAuthMiddleware(sessions SessionValidator, log *slog.Logger) *AuthMiddleware {
	if log == nil {
		log = slog.Default()
	}

	return &AuthMiddleware{sessions: sessions, log: log}
}

const validateTimeout = 2 * time.Second

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			handlers.RespondUnauthorized(c, "unauthorized", "Missing or invalid Authorization header")
			return
		}

		cctx, cancel := context.WithTimeout(c.Request.Context(), validateTimeout)
		defer cancel()

		s, err := m.sessions.ValidateSession(cctx, raw)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				handlers.RespondUnauthorized(c, "token_expired", "Token expired")
			case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, service.ErrTokenRevoked):
				handlers.RespondUnauthorized(c, "invalid_token", "Invalid token")
			case errors.Is(err, service.ErrUnauthorized):
				handlers.RespondUnauthorized(c, "unauthorized", "Unauthorized")
			default:
				m.log.ErrorContext(cctx, "session validation failed", "err", err)
				handlers.RespondInternal(c, "Could not validate session")
			}
			return
		}

		c.Set(CtxSession, s)
		c.Request = c.Request.WithContext(actorctx.WithUserID(c.Request.Context(), s.User.ID))

		c.Next()
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}

	return token, true
}

// Optional helpers so handlers don't need to know the magic keys.

func SessionFromContext(c *gin.Context) (service.Session, bool) {
	v, ok := c.Get(CtxSession)
	if !ok {
		return service.Session{}, false
	}
	s, ok := v.(service.Session)
	return s, ok
}

func UserIDFromContext(c *gin.Context) (string, bool) {
	s, ok := SessionFromContext(c)
	if !ok || s.User.ID == "" {
		return "", false
	}
	return s.User.ID, true
}
