package memory

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/models"
)

func ptr(s string) *string { return &s }

func TestUserRepo(t *testing.T) {
	params := models.CreateUserParams{
		Username:       "alice",
		Email:          "alice@x.com",
		Fullname:       "Alice",
		HashedPassword: "hash",
		Avatar:         "https://cdn/avatar.png",
	}

	t.Run("create and get", func(t *testing.T) {
		r := NewStorage().User()

		created, err := r.CreateUser(t.Context(), params)
		require.NoError(t, err)
		require.NotEqual(t, uuid.Nil, created.ID)
		require.Nil(t, created.RefreshToken)

		byID, err := r.GetUserByID(t.Context(), created.ID)
		require.NoError(t, err)
		require.Equal(t, created, byID)

		byEmail, err := r.GetUserByIdentity(t.Context(), "", "alice@x.com")
		require.NoError(t, err)
		require.Equal(t, created.ID, byEmail.ID)

		byUsername, err := r.GetUserByIdentity(t.Context(), "alice", "")
		require.NoError(t, err)
		require.Equal(t, created.ID, byUsername.ID)

		_, err = r.GetUserByIdentity(t.Context(), "", "")
		require.ErrorIs(t, err, apperrors.ErrUserNotFound, "empty identity must match nobody")
	})

	t.Run("duplicate username or email", func(t *testing.T) {
		r := NewStorage().User()
		_, err := r.CreateUser(t.Context(), params)
		require.NoError(t, err)

		sameEmail := params
		sameEmail.Username = "bob"
		_, err = r.CreateUser(t.Context(), sameEmail)
		require.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)

		sameUsername := params
		sameUsername.Email = "bob@x.com"
		_, err = r.CreateUser(t.Context(), sameUsername)
		require.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
	})

	t.Run("refresh token compare and set", func(t *testing.T) {
		r := NewStorage().User()
		user, err := r.CreateUser(t.Context(), params)
		require.NoError(t, err)

		ok, err := r.UpdateRefreshToken(t.Context(), user.ID, ptr("nothing-stored"), "r1")
		require.NoError(t, err)
		require.False(t, ok, "conditional update must fail when no token stored")

		ok, err = r.UpdateRefreshToken(t.Context(), user.ID, nil, "r1")
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = r.UpdateRefreshToken(t.Context(), user.ID, ptr("r0"), "r2")
		require.NoError(t, err)
		require.False(t, ok, "stale expected token must not update")

		ok, err = r.UpdateRefreshToken(t.Context(), user.ID, ptr("r1"), "r2")
		require.NoError(t, err)
		require.True(t, ok)

		got, err := r.GetUserByID(t.Context(), user.ID)
		require.NoError(t, err)
		require.Equal(t, "r2", *got.RefreshToken)
	})

	t.Run("concurrent swaps with same token only one wins", func(t *testing.T) {
		r := NewStorage().User()
		user, err := r.CreateUser(t.Context(), params)
		require.NoError(t, err)
		_, err = r.UpdateRefreshToken(t.Context(), user.ID, nil, "r1")
		require.NoError(t, err)

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := r.UpdateRefreshToken(t.Context(), user.ID, ptr("r1"), uuid.NewString()+string(rune('a'+i)))
				if err == nil && ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		require.Equal(t, int32(1), wins.Load())
	})

	t.Run("clear refresh token idempotent", func(t *testing.T) {
		r := NewStorage().User()
		user, err := r.CreateUser(t.Context(), params)
		require.NoError(t, err)
		_, err = r.UpdateRefreshToken(t.Context(), user.ID, nil, "r1")
		require.NoError(t, err)

		require.NoError(t, r.ClearRefreshToken(t.Context(), user.ID))
		require.NoError(t, r.ClearRefreshToken(t.Context(), user.ID))
		require.NoError(t, r.ClearRefreshToken(t.Context(), uuid.New()))

		got, err := r.GetUserByID(t.Context(), user.ID)
		require.NoError(t, err)
		require.Nil(t, got.RefreshToken)
	})

	t.Run("update profile", func(t *testing.T) {
		r := NewStorage().User()
		alice, err := r.CreateUser(t.Context(), params)
		require.NoError(t, err)
		bob := params
		bob.Username, bob.Email = "bob", "bob@x.com"
		_, err = r.CreateUser(t.Context(), bob)
		require.NoError(t, err)

		got, err := r.UpdateProfile(t.Context(), alice.ID, models.ProfilePatch{Fullname: ptr("Alice L.")})
		require.NoError(t, err)
		require.Equal(t, "Alice L.", got.Fullname)
		require.Equal(t, "alice@x.com", got.Email, "nil fields stay unchanged")

		_, err = r.UpdateProfile(t.Context(), alice.ID, models.ProfilePatch{Email: ptr("bob@x.com")})
		require.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)

		_, err = r.UpdateProfile(t.Context(), uuid.New(), models.ProfilePatch{})
		require.ErrorIs(t, err, apperrors.ErrUserNotFound)
	})

	t.Run("update password hash", func(t *testing.T) {
		r := NewStorage().User()
		user, err := r.CreateUser(t.Context(), params)
		require.NoError(t, err)

		require.NoError(t, r.UpdatePasswordHash(t.Context(), user.ID, "new-hash"))
		got, err := r.GetUserByID(t.Context(), user.ID)
		require.NoError(t, err)
		require.Equal(t, "new-hash", got.HashedPassword)

		require.ErrorIs(t, r.UpdatePasswordHash(t.Context(), uuid.New(), "x"), apperrors.ErrUserNotFound)
	})
}
