package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewOmitsCredentials(t *testing.T) {
	u := &User{
		Email:            "alice@example.com",
		Password:         "$2a$08$hash",
		FirstName:        "Alice",
		LastName:         "Liddell",
		IsActive:         true,
		CountLoginFailed: 3,
	}

	view := u.View()
	assert.Equal(t, "alice@example.com", view.Email)
	assert.Equal(t, "Alice Liddell", view.FullName)
	assert.True(t, view.IsActive)
}

func TestFullName(t *testing.T) {
	assert.Equal(t, "Alice Liddell", (&User{FirstName: "Alice", LastName: "Liddell"}).FullName())
	assert.Equal(t, "Alice", (&User{FirstName: "Alice"}).FullName())
	assert.Equal(t, "", (&User{}).FullName())
}

func TestInMemoryRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateNormalizesEmail", func(t *testing.T) {
		repo := NewInMemoryRepository()
		u := &User{Email: " Alice@Example.COM ", Password: "hash"}
		require.NoError(t, repo.Create(ctx, u))
		assert.Equal(t, "alice@example.com", u.Email)

		found, err := repo.FindByEmail(ctx, "ALICE@example.com")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, u.ID, found.ID)
	})

	t.Run("CreateRejectsDuplicateEmail", func(t *testing.T) {
		repo := NewInMemoryRepository()
		require.NoError(t, repo.Create(ctx, &User{Email: "alice@example.com", Password: "hash"}))
		assert.Error(t, repo.Create(ctx, &User{Email: "alice@example.com", Password: "hash"}))
	})

	t.Run("MissLookupsReturnNil", func(t *testing.T) {
		repo := NewInMemoryRepository()

		found, err := repo.FindByEmail(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("SaveMovesEmailIndex", func(t *testing.T) {
		repo := NewInMemoryRepository()
		u := &User{Email: "alice@example.com", Password: "hash"}
		require.NoError(t, repo.Create(ctx, u))

		u.Email = "alice.new@example.com"
		require.NoError(t, repo.Save(ctx, u))

		old, err := repo.FindByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Nil(t, old)

		moved, err := repo.FindByEmail(ctx, "alice.new@example.com")
		require.NoError(t, err)
		require.NotNil(t, moved)
		assert.Equal(t, u.ID, moved.ID)
	})

	t.Run("SaveRejectsTakenEmail", func(t *testing.T) {
		repo := NewInMemoryRepository()
		u := &User{Email: "alice@example.com", Password: "hash"}
		require.NoError(t, repo.Create(ctx, u))
		require.NoError(t, repo.Create(ctx, &User{Email: "bob@example.com", Password: "hash"}))

		u.Email = "bob@example.com"
		assert.Error(t, repo.Save(ctx, u))
	})
}
