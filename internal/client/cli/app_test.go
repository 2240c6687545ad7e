package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/authgate/internal/auth"
	"github.com/geocoder89/authgate/internal/client"
	"github.com/geocoder89/authgate/internal/client/session"
	"github.com/geocoder89/authgate/internal/client/storage"
	apphttp "github.com/geocoder89/authgate/internal/http"
	"github.com/geocoder89/authgate/internal/repo/memory"
	"github.com/geocoder89/authgate/internal/revocation"
	"github.com/geocoder89/authgate/internal/security"
	"github.com/geocoder89/authgate/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type harness struct {
	url  string
	path string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	hasher, err := security.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	tokens, err := auth.NewManager(auth.TokenConfig{Secret: []byte("cli-test-secret"), TTL: time.Hour})
	require.NoError(t, err)

	svc := service.NewAuth(memory.NewUsersRepo(), hasher, tokens, log,
		service.WithRevocation(revocation.NewMemoryStore(time.Hour)))

	srv := httptest.NewServer(apphttp.NewRouter(apphttp.Deps{Log: log, Env: "test", Auth: svc}))
	t.Cleanup(srv.Close)

	return &harness{url: srv.URL, path: filepath.Join(t.TempDir(), "session.db")}
}

// run executes one command as a fresh process would: new store, same session file.
func (h *harness) run(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()

	api, err := client.New(h.url)
	require.NoError(t, err)

	db, err := storage.Open(context.Background(), h.path)
	require.NoError(t, err)
	defer db.Close()

	var out bytes.Buffer
	app := New(session.NewStore(api, db), strings.NewReader(input), &out)
	err = app.Run(context.Background(), args)
	return out.String(), err
}

const signUpInput = "Test User\ntest@example.com\nwassup-easygenerator1@\n"

func TestApp_SignUpProfileSignOut(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, signUpInput, "signup")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Welcome, Test User!")

	out, err = h.run(t, "", "profile")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Name:  Test User")
	assert.Contains(t, out, "Email: test@example.com")

	out, err = h.run(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as Test User <test@example.com>")

	out, err = h.run(t, "", "signout")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out.")
	assert.NotContains(t, out, "did not confirm")

	out, err = h.run(t, "", "profile")
	require.ErrorIs(t, err, ErrNotSignedIn)
	assert.Contains(t, out, "Not signed in")
}

func TestApp_SignInErrorsShowServerMessage(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, signUpInput, "signup")
	require.NoError(t, err)

	out, err := h.run(t, "test@example.com\nwrong-password1!\n", "signin")
	require.Error(t, err)
	assert.Contains(t, out, "Invalid email or password")

	out, err = h.run(t, "Other User\ntest@example.com\nanother-pass1!\n", "signup")
	require.Error(t, err)
	assert.Contains(t, out, "Email already exists")
}

func TestApp_SignUpValidatesLocally(t *testing.T) {
	h := newHarness(t)

	cases := map[string]string{
		"Al\na@b.co\nwassup-easygenerator1@\n":              "Name must be at least 3 characters",
		"Test User\nnot-an-email\nwassup-easygenerator1@\n": "Enter a valid email address",
		"Test User\na@b.co\nshort1!\n":                      "at least 8 characters",
		"Test User\na@b.co\nnosymbols123\n":                 security.PasswordSymbols,
	}

	for input, want := range cases {
		out, err := h.run(t, input, "signup")
		require.ErrorIs(t, err, ErrInvalidInput)
		assert.Contains(t, out, want)
	}
}

func TestApp_RejectedTokenIsForgotten(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	db, err := storage.Open(ctx, h.path)
	require.NoError(t, err)
	require.NoError(t, db.SaveToken(ctx, "not-a-real-token"))
	require.NoError(t, db.Close())

	out, err := h.run(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Authentication failed. Please log in again.")

	db, err = storage.Open(ctx, h.path)
	require.NoError(t, err)
	defer db.Close()

	tok, err := db.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestApp_ServerDown(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(nil)
	h.url = srv.URL
	srv.Close()

	out, err := h.run(t, "test@example.com\nwassup-easygenerator1@\n", "signin")
	require.ErrorIs(t, err, client.ErrNoResponse)
	assert.Contains(t, out, client.NoResponseMessage)
}

func TestApp_PasswordFromTerminal(t *testing.T) {
	h := newHarness(t)

	orig := readPassword
	t.Cleanup(func() { readPassword = orig })

	var gotFd int
	readPassword = func(fd int) ([]byte, error) {
		gotFd = fd
		return []byte("wassup-easygenerator1@"), nil
	}

	api, err := client.New(h.url)
	require.NoError(t, err)

	var out bytes.Buffer
	app := New(session.NewStore(api, &storage.MemoryStore{}),
		strings.NewReader("Test User\ntest@example.com\n"), &out, WithTerminal(7))

	require.NoError(t, app.Run(context.Background(), []string{"signup"}))
	assert.Equal(t, 7, gotFd)
	assert.NotContains(t, out.String(), "wassup")

	readPassword = func(int) ([]byte, error) { return nil, errors.New("not a tty") }
	err = app.Run(context.Background(), []string{"signin"})
	require.Error(t, err)
}

func TestApp_Usage(t *testing.T) {
	var out bytes.Buffer
	app := New(nil, strings.NewReader(""), &out)

	require.ErrorIs(t, app.Run(context.Background(), nil), ErrUsage)
	require.ErrorIs(t, app.Run(context.Background(), []string{"bogus"}), ErrUsage)
	require.NoError(t, app.Run(context.Background(), []string{"help"}))
	assert.Contains(t, out.String(), "signup")
}
