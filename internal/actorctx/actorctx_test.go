package actorctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserID(t *testing.T) {
	_, ok := UserIDFrom(context.Background())
	assert.False(t, ok)

	_, ok = UserIDFrom(WithUserID(context.Background(), ""))
	assert.False(t, ok, "empty id is treated as absent")

	id, ok := UserIDFrom(WithUserID(context.Background(), "u-1"))
	assert.True(t, ok)
	assert.Equal(t, "u-1", id)
}

func TestRequestIDDoesNotCollideWithUserID(t *testing.T) {
	ctx := WithRequestID(WithUserID(context.Background(), "u-1"), "req-9")

	uid, _ := UserIDFrom(ctx)
	rid, ok := RequestIDFrom(ctx)

	assert.True(t, ok)
	assert.Equal(t, "u-1", uid)
	assert.Equal(t, "req-9", rid)
}
