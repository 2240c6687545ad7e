package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/geocoder89/authgate/internal/client"
	"github.com/geocoder89/authgate/internal/client/session"
	"github.com/geocoder89/authgate/internal/client/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	signUpFn  func(ctx context.Context, req client.SignUpRequest) (client.AuthResponse, error)
	signInFn  func(ctx context.Context, req client.SignInRequest) (client.AuthResponse, error)
	profileFn func(ctx context.Context, token string) (client.User, error)
	signOutFn func(ctx context.Context, token string) error
}

func (f *fakeAPI) SignUp(ctx context.Context, req client.SignUpRequest) (client.AuthResponse, error) {
	return f.signUpFn(ctx, req)
}

func (f *fakeAPI) SignIn(ctx context.Context, req client.SignInRequest) (client.AuthResponse, error) {
	return f.signInFn(ctx, req)
}

func (f *fakeAPI) Profile(ctx context.Context, token string) (client.User, error) {
	return f.profileFn(ctx, token)
}

func (f *fakeAPI) SignOut(ctx context.Context, token string) error {
	if f.signOutFn == nil {
		return nil
	}
	return f.signOutFn(ctx, token)
}

var testUser = client.User{ID: "u-1", Email: "test@example.com", Name: "Test User"}

type statusLog struct {
	mu       sync.Mutex
	statuses []session.Status
}

func (l *statusLog) record(s session.State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.statuses = append(l.statuses, s.Status)
}

func TestStore_BootstrapWithoutToken(t *testing.T) {
	store := session.NewStore(&fakeAPI{}, &storage.MemoryStore{})

	require.NoError(t, store.Bootstrap(context.Background()))
	assert.Equal(t, session.StatusAnonymous, store.State().Status)
}

func TestStore_BootstrapResumesSession(t *testing.T) {
	tokens := &storage.MemoryStore{}
	require.NoError(t, tokens.SaveToken(context.Background(), "persisted"))

	var seen string
	api := &fakeAPI{profileFn: func(_ context.Context, token string) (client.User, error) {
		seen = token
		return testUser, nil
	}}

	store := session.NewStore(api, tokens)
	log := &statusLog{}
	store.Subscribe(log.record)

	require.NoError(t, store.Bootstrap(context.Background()))

	st := store.State()
	assert.Equal(t, "persisted", seen)
	assert.True(t, st.IsAuthenticated())
	assert.Equal(t, "persisted", st.Token)
	assert.Equal(t, testUser, *st.User)
	assert.Equal(t, []session.Status{session.StatusLoading, session.StatusAuthenticated}, log.statuses)
}

func TestStore_BootstrapRejectedTokenIsCleared(t *testing.T) {
	tokens := &storage.MemoryStore{}
	require.NoError(t, tokens.SaveToken(context.Background(), "stale"))

	api := &fakeAPI{profileFn: func(context.Context, string) (client.User, error) {
		return client.User{}, &client.APIError{StatusCode: 401, Message: "Token expired"}
	}}

	store := session.NewStore(api, tokens)
	err := store.Bootstrap(context.Background())
	require.Error(t, err)

	st := store.State()
	assert.Equal(t, session.StatusError, st.Status)
	assert.Equal(t, "Authentication failed. Please log in again.", st.Error)
	assert.Empty(t, st.Token)
	assert.Nil(t, st.User)

	tok, _ := tokens.Token(context.Background())
	assert.Empty(t, tok)
}

func TestStore_SignInPersistsToken(t *testing.T) {
	tokens := &storage.MemoryStore{}
	api := &fakeAPI{signInFn: func(_ context.Context, req client.SignInRequest) (client.AuthResponse, error) {
		return client.AuthResponse{User: testUser, Token: "fresh"}, nil
	}}

	store := session.NewStore(api, tokens)
	require.NoError(t, store.SignIn(context.Background(), client.SignInRequest{Email: "test@example.com", Password: "pw"}))

	assert.True(t, store.State().IsAuthenticated())
	tok, _ := tokens.Token(context.Background())
	assert.Equal(t, "fresh", tok)
}

func TestStore_FailureMessages(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"server message", &client.APIError{StatusCode: 409, Message: "Email already exists"}, "Email already exists"},
		{"no response", fmt.Errorf("%w: dial tcp: refused", client.ErrNoResponse), client.NoResponseMessage},
		{"other", errors.New("decode response: EOF"), "Sign up failed. Please try again."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tokens := &storage.MemoryStore{}
			require.NoError(t, tokens.SaveToken(context.Background(), "keep-me"))

			api := &fakeAPI{signUpFn: func(context.Context, client.SignUpRequest) (client.AuthResponse, error) {
				return client.AuthResponse{}, tc.err
			}}

			store := session.NewStore(api, tokens)
			err := store.SignUp(context.Background(), client.SignUpRequest{})
			require.ErrorIs(t, err, tc.err)

			st := store.State()
			assert.Equal(t, session.StatusError, st.Status)
			assert.Equal(t, tc.want, st.Error)

			tok, _ := tokens.Token(context.Background())
			assert.Equal(t, "keep-me", tok)

			store.ClearError()
			assert.Equal(t, session.StatusAnonymous, store.State().Status)
			assert.Empty(t, store.State().Error)
		})
	}
}

func TestStore_SignOutIsBestEffort(t *testing.T) {
	tokens := &storage.MemoryStore{}
	var revoked string
	api := &fakeAPI{
		signInFn: func(context.Context, client.SignInRequest) (client.AuthResponse, error) {
			return client.AuthResponse{User: testUser, Token: "tok"}, nil
		},
		signOutFn: func(_ context.Context, token string) error {
			revoked = token
			return client.ErrNoResponse
		},
	}

	store := session.NewStore(api, tokens)
	require.NoError(t, store.SignIn(context.Background(), client.SignInRequest{}))

	err := store.SignOut(context.Background())
	require.ErrorIs(t, err, client.ErrNoResponse)

	assert.Equal(t, "tok", revoked)
	assert.Equal(t, session.State{Status: session.StatusAnonymous}, store.State())
	tok, _ := tokens.Token(context.Background())
	assert.Empty(t, tok)
}

func TestStore_Unsubscribe(t *testing.T) {
	store := session.NewStore(&fakeAPI{}, &storage.MemoryStore{})

	calls := 0
	cancel := store.Subscribe(func(session.State) { calls++ })
	store.ClearError()
	cancel()
	store.ClearError()

	assert.Equal(t, 1, calls)
}
