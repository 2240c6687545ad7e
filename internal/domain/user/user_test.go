package user_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/geocoder89/authgate/internal/domain/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_JSONNeverCarriesDigest(t *testing.T) {
	u := user.User{
		ID:           "8c5d0d2e-8f1c-4c84-9d0a-46f3b5b8a7b1",
		Email:        "test@example.com",
		PasswordHash: "$2a$10$secretdigest",
		Name:         "Test User",
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	raw, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secretdigest")
	assert.NotContains(t, string(raw), "password")

	raw, err = json.Marshal(u.Profile())
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"8c5d0d2e-8f1c-4c84-9d0a-46f3b5b8a7b1","email":"test@example.com","name":"Test User"}`, string(raw))
}
