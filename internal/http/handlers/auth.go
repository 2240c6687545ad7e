package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/authgate/internal/service"
	"github.com/gin-gonic/gin"
)

// AuthService is the slice of service.Auth the handlers drive.
type AuthService interface {
	SignUp(ctx context.Context, in service.SignUpInput) (service.AuthResult, error)
	SignIn(ctx context.Context, in service.SignInInput) (service.AuthResult, error)
	SignOut(ctx context.Context, s service.Session) error
}

// SessionFrom reads the session RequireAuth stored on the gin context.
type SessionFrom func(ctx *gin.Context) (service.Session, bool)

type AuthHandler struct {
	svc     AuthService
	session SessionFrom
	log     *slog.Logger
}

func NewAuthHandler(svc AuthService, session SessionFrom, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}

	return &AuthHandler{svc: svc, session: session, log: log}
}

type SignUpRequest struct {
	Name     string `json:"name" binding:"required,min=3"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,maxbytes=72,password"`
}

type SignInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

const (
	// bcrypt at the configured cost plus one or two store round trips
	credentialTimeout = 5 * time.Second
	signOutTimeout    = 2 * time.Second
)

func (h *AuthHandler) SignUp(ctx *gin.Context) {
	var req SignUpRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), credentialTimeout)
	defer cancel()

	res, err := h.svc.SignUp(cctx, service.SignUpInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})

	if err != nil {
		if errors.Is(err, service.ErrEmailAlreadyExists) {
			RespondConflict(ctx, "email_taken", "Email already exists")
			return
		}

		h.log.ErrorContext(cctx, "signup failed", "err", err)
		RespondInternal(ctx, "Could not create user")
		return
	}

	ctx.JSON(http.StatusCreated, res)
}

func (h *AuthHandler) SignIn(ctx *gin.Context) {
	var req SignInRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), credentialTimeout)
	defer cancel()

	res, err := h.svc.SignIn(cctx, service.SignInInput{
		Email:    req.Email,
		Password: req.Password,
	})

	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			RespondUnauthorized(ctx, "invalid_credentials", "Invalid email or password")
			return
		}

		h.log.ErrorContext(cctx, "signin failed", "err", err)
		RespondInternal(ctx, "Could not sign in")
		return
	}

	ctx.JSON(http.StatusOK, res)
}

func (h *AuthHandler) Profile(ctx *gin.Context) {
	s, ok := h.session(ctx)

	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, s.User.Profile())
}

func (h *AuthHandler) SignOut(ctx *gin.Context) {
	s, ok := h.session(ctx)

	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), signOutTimeout)
	defer cancel()

	if err := h.svc.SignOut(cctx, s); err != nil {
		h.log.ErrorContext(cctx, "signout failed", "err", err)
		RespondInternal(ctx, "Could not sign out")
		return
	}

	ctx.Status(http.StatusNoContent)
}
