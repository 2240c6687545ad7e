package middlewares_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/authgate/internal/actorctx"
	"github.com/geocoder89/authgate/internal/auth"
	"github.com/geocoder89/authgate/internal/domain/user"
	"github.com/geocoder89/authgate/internal/http/middlewares"
	"github.com/geocoder89/authgate/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeValidator struct {
	validateFn func(ctx context.Context, token string) (service.Session, error)
}

func (f *fakeValidator) ValidateSession(ctx context.Context, token string) (service.Session, error) {
	return f.validateFn(ctx, token)
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env.Error.Code
}

func newProtected(v middlewares.SessionValidator) *gin.Engine {
	m := middlewares.NewAuthMiddleware(v, nil)

	r := gin.New()
	r.GET("/me", m.RequireAuth(), func(c *gin.Context) {
		s, ok := middlewares.SessionFromContext(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		ctxID, _ := actorctx.UserIDFrom(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"id": s.User.ID, "ctx": ctxID})
	})

	return r
}

func TestRequireAuth_PassesSessionThrough(t *testing.T) {
	var seen string
	v := &fakeValidator{validateFn: func(_ context.Context, token string) (service.Session, error) {
		seen = token
		return service.Session{User: user.User{ID: "u-1"}}, nil
	}}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer abc.def.ghi")
	w := httptest.NewRecorder()
	newProtected(v).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc.def.ghi", seen)
	assert.JSONEq(t, `{"id":"u-1","ctx":"u-1"}`, w.Body.String())
}

func TestRequireAuth_HeaderShapes(t *testing.T) {
	v := &fakeValidator{validateFn: func(context.Context, string) (service.Session, error) {
		return service.Session{User: user.User{ID: "u-1"}}, nil
	}}
	r := newProtected(v)

	cases := map[string]struct {
		header string
		want   int
	}{
		"missing":        {"", http.StatusUnauthorized},
		"no scheme":      {"abc.def.ghi", http.StatusUnauthorized},
		"basic":          {"Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		"empty token":    {"Bearer ", http.StatusUnauthorized},
		"lowercase ok":   {"bearer abc.def.ghi", http.StatusOK},
		"extra space ok": {"Bearer   abc.def.ghi ", http.StatusOK},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.want, w.Code)
			if tc.want == http.StatusUnauthorized {
				assert.Equal(t, "unauthorized", errorCode(t, w))
				assert.Equal(t, `Bearer realm="authgate"`, w.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestRequireAuth_MapsValidationErrors(t *testing.T) {
	cases := map[string]struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		"expired":   {fmt.Errorf("%w: %w", service.ErrUnauthorized, auth.ErrExpiredToken), http.StatusUnauthorized, "token_expired"},
		"invalid":   {fmt.Errorf("%w: %w", service.ErrUnauthorized, auth.ErrInvalidToken), http.StatusUnauthorized, "invalid_token"},
		"revoked":   {fmt.Errorf("%w: %w", service.ErrUnauthorized, service.ErrTokenRevoked), http.StatusUnauthorized, "invalid_token"},
		"no user":   {fmt.Errorf("%w: %w", service.ErrUnauthorized, user.ErrNotFound), http.StatusUnauthorized, "unauthorized"},
		"store err": {errors.New("connection refused"), http.StatusInternalServerError, "internal_error"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			v := &fakeValidator{validateFn: func(context.Context, string) (service.Session, error) {
				return service.Session{}, tc.err
			}}

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			req.Header.Set("Authorization", "Bearer tok")
			w := httptest.NewRecorder()
			newProtected(v).ServeHTTP(w, req)

			assert.Equal(t, tc.wantStatus, w.Code)
			assert.Equal(t, tc.wantCode, errorCode(t, w))
			if tc.wantCode == "invalid_token" || tc.wantCode == "token_expired" {
				assert.Contains(t, w.Header().Get("WWW-Authenticate"), `error="invalid_token"`)
			}
		})
	}
}
