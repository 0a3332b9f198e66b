package infrastructure

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUserDirectory_Lifecycle(t *testing.T) {
	directory := NewMemoryUserDirectory()
	ctx := context.Background()

	exists, err := directory.EmailExists(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.False(t, exists)

	account, err := directory.Create(ctx, "ada@example.com", "Ada Lovelace", "digest")
	require.NoError(t, err)
	assert.Equal(t, "active", account.Status)
	assert.Equal(t, []string{"user"}, account.Roles)

	// Lookup is case insensitive.
	exists, err = directory.EmailExists(ctx, "ADA@Example.COM")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = directory.Create(ctx, "Ada@example.com", "Ada", "digest")
	assert.ErrorContains(t, err, "already registered")

	require.NoError(t, directory.Delete(ctx, account.UserID))

	exists, err = directory.EmailExists(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorContains(t, directory.Delete(ctx, account.UserID), "unknown user")
}
