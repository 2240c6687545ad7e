package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/authgate/internal/auth"
	"github.com/geocoder89/authgate/internal/domain/user"
	"github.com/geocoder89/authgate/internal/revocation"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/geocoder89/authgate/internal/service")

var (
	ErrEmailAlreadyExists = user.ErrEmailAlreadyExists
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrTokenRevoked       = errors.New("token revoked")
)

type UserStore interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) bool
	VerifyDummy(plain string)
}

type TokenIssuer interface {
	Issue(subjectID string) (string, error)
	Validate(token string) (*auth.Claims, error)
}

// OutcomeRecorder counts auth operations by result.
type OutcomeRecorder interface {
	AuthOutcome(op, result string)
}

type noopRecorder struct{}

func (noopRecorder) AuthOutcome(string, string) {}

type SignUpInput struct {
	Name     string
	Email    string
	Password string
}

type SignInInput struct {
	Email    string
	Password string
}

type AuthResult struct {
	User  user.Profile `json:"user"`
	Token string       `json:"token"`
}

// Session is the resolved identity behind a valid bearer token.
type Session struct {
	User   user.User
	Claims *auth.Claims
}

type Auth struct {
	users   UserStore
	hasher  PasswordHasher
	tokens  TokenIssuer
	revoked revocation.Store
	log     *slog.Logger
	metrics OutcomeRecorder
	now     func() time.Time
}

type Option func(*Auth)

func WithRevocation(store revocation.Store) Option {
	return func(a *Auth) { a.revoked = store }
}

func WithRecorder(r OutcomeRecorder) Option {
	return func(a *Auth) {
		if r != nil {
			a.metrics = r
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Auth) { a.now = now }
}

func NewAuth(users UserStore, hasher PasswordHasher, tokens TokenIssuer, log *slog.Logger, opts ...Option) *Auth {
	if log == nil {
		log = slog.Default()
	}

	a := &Auth{
		users:   users,
		hasher:  hasher,
		tokens:  tokens,
		log:     log,
		metrics: noopRecorder{},
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

func (a *Auth) SignUp(ctx context.Context, in SignUpInput) (AuthResult, error) {
	ctx, span := tracer.Start(ctx, "auth.SignUp")
	defer span.End()

	a.log.InfoContext(ctx, "signup attempt", "email", in.Email)

	_, err := a.users.GetByEmail(ctx, in.Email)

	if err == nil {
		a.log.InfoContext(ctx, "signup rejected, email taken", "email", in.Email)
		a.outcome(span, "signup", "email_taken")
		return AuthResult{}, ErrEmailAlreadyExists
	}

	if !errors.Is(err, user.ErrNotFound) {
		a.outcome(span, "signup", "error")
		return AuthResult{}, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := a.hasher.Hash(in.Password)

	if err != nil {
		a.outcome(span, "signup", "error")
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	now := a.now().UTC()

	created, err := a.users.Create(ctx, user.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		PasswordHash: hash,
		Name:         in.Name,
		CreatedAt:    now,
		UpdatedAt:    now,
	})

	if err != nil {
		// lost a race with a concurrent signup for the same email
		if errors.Is(err, user.ErrEmailAlreadyExists) {
			a.outcome(span, "signup", "email_taken")
			return AuthResult{}, ErrEmailAlreadyExists
		}

		a.outcome(span, "signup", "error")
		return AuthResult{}, fmt.Errorf("create user: %w", err)
	}

	token, err := a.tokens.Issue(created.ID)

	if err != nil {
		a.outcome(span, "signup", "error")
		return AuthResult{}, fmt.Errorf("issue token: %w", err)
	}

	a.log.InfoContext(ctx, "user created", "user_id", created.ID, "email", created.Email)
	a.outcome(span, "signup", "success")

	return AuthResult{User: created.Profile(), Token: token}, nil
}

func (a *Auth) SignIn(ctx context.Context, in SignInInput) (AuthResult, error) {
	ctx, span := tracer.Start(ctx, "auth.SignIn")
	defer span.End()

	a.log.InfoContext(ctx, "signin attempt", "email", in.Email)

	found, err := a.users.GetByEmail(ctx, in.Email)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// same bcrypt cost as a real mismatch
			a.hasher.VerifyDummy(in.Password)
			a.log.WarnContext(ctx, "signin failed", "email", in.Email)
			a.outcome(span, "signin", "invalid_credentials")
			return AuthResult{}, ErrInvalidCredentials
		}

		a.outcome(span, "signin", "error")
		return AuthResult{}, fmt.Errorf("lookup email: %w", err)
	}

	if !a.hasher.Verify(in.Password, found.PasswordHash) {
		a.log.WarnContext(ctx, "signin failed", "email", in.Email)
		a.outcome(span, "signin", "invalid_credentials")
		return AuthResult{}, ErrInvalidCredentials
	}

	token, err := a.tokens.Issue(found.ID)

	if err != nil {
		a.outcome(span, "signin", "error")
		return AuthResult{}, fmt.Errorf("issue token: %w", err)
	}

	a.log.InfoContext(ctx, "user signed in", "user_id", found.ID)
	a.outcome(span, "signin", "success")

	return AuthResult{User: found.Profile(), Token: token}, nil
}

// ValidateSession resolves a bearer token to its user. Every rejection
// matches ErrUnauthorized; the underlying cause (auth.ErrExpiredToken,
// auth.ErrInvalidToken, ErrTokenRevoked, user.ErrNotFound) is wrapped too.
// Store failures are returned unwrapped by ErrUnauthorized.
func (a *Auth) ValidateSession(ctx context.Context, token string) (Session, error) {
	ctx, span := tracer.Start(ctx, "auth.ValidateSession")
	defer span.End()

	claims, err := a.tokens.Validate(token)

	if err != nil {
		return a.rejectSession(span, err)
	}

	if a.revoked != nil && claims.ID != "" {
		revoked, err := a.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			a.outcome(span, "validate", "error")
			return Session{}, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return a.rejectSession(span, ErrTokenRevoked)
		}
	}

	if uuid.Validate(claims.UserID()) != nil {
		return a.rejectSession(span, fmt.Errorf("%w: subject is not a user id", auth.ErrInvalidToken))
	}

	u, err := a.users.GetByID(ctx, claims.UserID())

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			a.log.WarnContext(ctx, "token subject no longer exists", "user_id", claims.UserID())
			return a.rejectSession(span, err)
		}

		a.outcome(span, "validate", "error")
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}

	a.outcome(span, "validate", "success")
	return Session{User: u, Claims: claims}, nil
}

func (a *Auth) rejectSession(span trace.Span, cause error) (Session, error) {
	a.outcome(span, "validate", "unauthorized")
	return Session{}, fmt.Errorf("%w: %w", ErrUnauthorized, cause)
}

// outcome counts the result and tags the operation's span with it.
func (a *Auth) outcome(span trace.Span, op, result string) {
	a.metrics.AuthOutcome(op, result)
	span.SetAttributes(attribute.String("auth.result", result))

	if result == "error" {
		span.SetStatus(codes.Error, op+" failed")
	}
}

// SignOut denies the session's token until it expires. Without a
// revocation store it is a no-op and the token stays valid until expiry.
func (a *Auth) SignOut(ctx context.Context, s Session) error {
	ctx, span := tracer.Start(ctx, "auth.SignOut")
	defer span.End()

	if a.revoked == nil || s.Claims == nil || s.Claims.ID == "" {
		return nil
	}

	var until time.Time
	if s.Claims.ExpiresAt != nil {
		until = s.Claims.ExpiresAt.Time
	}

	if err := a.revoked.Revoke(ctx, s.Claims.ID, until); err != nil {
		a.outcome(span, "signout", "error")
		return fmt.Errorf("revoke token: %w", err)
	}

	a.log.InfoContext(ctx, "user signed out", "user_id", s.User.ID)
	a.outcome(span, "signout", "success")

	return nil
}
