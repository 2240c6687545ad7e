package db

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/authgate/internal/config"
	"github.com/geocoder89/authgate/internal/domain/user"
	"github.com/google/uuid"
)

type SeedStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	Create(ctx context.Context, u user.User) (user.User, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
}

// EnsureSeedUser creates the configured seed account when it does not exist yet.
// It reports whether a user was created.
func EnsureSeedUser(ctx context.Context, store SeedStore, hasher PasswordHasher, seed config.Seed) (bool, error) {
	if seed.Email == "" || seed.Password == "" {
		return false, nil
	}

	// check if the user exists

	_, err := store.GetByEmail(ctx, seed.Email)

	if err == nil {
		return false, nil
	}

	if !errors.Is(err, user.ErrNotFound) {
		return false, err
	}

	hash, err := hasher.Hash(seed.Password)

	if err != nil {
		return false, err
	}

	now := time.Now().UTC()

	_, err = store.Create(ctx, user.User{
		ID:           uuid.NewString(),
		Email:        seed.Email,
		PasswordHash: hash,
		Name:         seed.Name,
		CreatedAt:    now,
		UpdatedAt:    now,
	})

	// another instance seeded concurrently
	if errors.Is(err, user.ErrEmailAlreadyExists) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, nil
}
