package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/geocoder89/authgate/internal/client"
)

const (
	bootstrapFailedMessage = "Authentication failed. Please log in again."
	signUpFailedMessage    = "Sign up failed. Please try again."
	signInFailedMessage    = "Sign in failed. Please try again."
)

type API interface {
	SignUp(ctx context.Context, req client.SignUpRequest) (client.AuthResponse, error)
	SignIn(ctx context.Context, req client.SignInRequest) (client.AuthResponse, error)
	Profile(ctx context.Context, token string) (client.User, error)
	SignOut(ctx context.Context, token string) error
}

// TokenStore persists the token between runs.
type TokenStore interface {
	Token(ctx context.Context) (string, error)
	SaveToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

// Store owns the session State. Transitions are serialized and subscribers
// are called after each one, outside the lock, with the new state.
type Store struct {
	api    API
	tokens TokenStore

	mu    sync.Mutex
	state State

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(State)
}

func NewStore(api API, tokens TokenStore) *Store {
	return &Store{
		api:    api,
		tokens: tokens,
		state:  State{Status: StatusAnonymous},
		subs:   make(map[int]func(State)),
	}
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn for state changes and returns its cancel func.
func (s *Store) Subscribe(fn func(State)) (cancel func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) dispatch(a Action) State {
	s.mu.Lock()
	next := Reduce(s.state, a)
	s.state = next
	s.mu.Unlock()

	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(next)
	}

	return next
}

// Bootstrap resumes a persisted session. Without a persisted token it
// leaves the store anonymous.
func (s *Store) Bootstrap(ctx context.Context) error {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}

	if token == "" {
		return nil
	}

	s.dispatch(Start{})

	u, err := s.api.Profile(ctx, token)
	if err != nil {
		clearErr := s.tokens.ClearToken(context.WithoutCancel(ctx))
		s.dispatch(Failure{Message: bootstrapFailedMessage, ClearToken: true})
		return errors.Join(err, clearErr)
	}

	s.dispatch(Success{User: u, Token: token})
	return nil
}

func (s *Store) SignUp(ctx context.Context, req client.SignUpRequest) error {
	return s.authenticate(ctx, signUpFailedMessage, func() (client.AuthResponse, error) {
		return s.api.SignUp(ctx, req)
	})
}

func (s *Store) SignIn(ctx context.Context, req client.SignInRequest) error {
	return s.authenticate(ctx, signInFailedMessage, func() (client.AuthResponse, error) {
		return s.api.SignIn(ctx, req)
	})
}

func (s *Store) authenticate(ctx context.Context, fallback string, call func() (client.AuthResponse, error)) error {
	s.dispatch(Start{})

	res, err := call()
	if err != nil {
		s.dispatch(Failure{Message: failureMessage(err, fallback)})
		return err
	}

	if err := s.tokens.SaveToken(ctx, res.Token); err != nil {
		s.dispatch(Failure{Message: fallback})
		return fmt.Errorf("save token: %w", err)
	}

	s.dispatch(Success{User: res.User, Token: res.Token})
	return nil
}

// SignOut asks the server to revoke the token, then forgets it locally
// whatever the server said.
func (s *Store) SignOut(ctx context.Context) error {
	token := s.State().Token
	if token == "" {
		token, _ = s.tokens.Token(ctx)
	}

	var serverErr error
	if token != "" {
		serverErr = s.api.SignOut(ctx, token)
	}

	// the local token goes even if the server call used up ctx
	clearErr := s.tokens.ClearToken(context.WithoutCancel(ctx))
	s.dispatch(Logout{})

	if clearErr != nil {
		return fmt.Errorf("clear token: %w", clearErr)
	}

	return serverErr
}

func (s *Store) ClearError() {
	s.dispatch(Dismiss{})
}

func failureMessage(err error, fallback string) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}

	if errors.Is(err, client.ErrNoResponse) {
		return client.NoResponseMessage
	}

	return fallback
}
