package userstore

import (
	"context"
	"testing"

	"github.com/MrEthical07/sensorgate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Create(ctx, &sensorgate.User{ID: "u-1", UserName: "bob_01", PasswordHash: "old"}))
	assert.ErrorIs(t, m.Create(ctx, &sensorgate.User{ID: "u-2", UserName: "bob_01"}), sensorgate.ErrUsernameTaken)

	n, err := m.CountByName(ctx, "bob_01")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, m.UpdatePasswordHash(ctx, "u-1", "new"))
	u, found, err := m.FindByName(ctx, "bob_01")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "new", u.PasswordHash)

	u.PasswordHash = "mutated"
	again, _, _ := m.FindByName(ctx, "bob_01")
	assert.Equal(t, "new", again.PasswordHash)

	_, found, err = m.FindByName(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Error(t, m.UpdatePasswordHash(ctx, "u-9", "x"))
}

var _ sensorgate.UserStore = (*Memory)(nil)
var _ sensorgate.UserStore = (*Postgres)(nil)
