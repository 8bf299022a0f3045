package postgres

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/models"
)

func TestUserRepo_UpdateRefreshToken_Mock(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name      string
		expected  *string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantOK    bool
		wantErr   error
	}{
		{
			name:     "unconditional set",
			expected: nil,
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE users SET refresh_token = \$2`).
					WithArgs(id, "new").
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
			wantOK: true,
		},
		{
			name:     "swap matched",
			expected: strPtr("old"),
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`(?s)UPDATE users SET refresh_token = \$3.*AND refresh_token = \$2`).
					WithArgs(id, "old", "new").
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
			wantOK: true,
		},
		{
			name:     "swap lost the race",
			expected: strPtr("old"),
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`AND refresh_token = \$2`).
					WithArgs(id, "old", "new").
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			},
			wantOK: false,
		},
		{
			name:     "serialization failure is conflict",
			expected: strPtr("old"),
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`AND refresh_token = \$2`).
					WithArgs(id, "old", "new").
					WillReturnError(&pgconn.PgError{Code: pgerrcode.SerializationFailure})
			},
			wantErr: apperrors.ErrConflict,
		},
		{
			name:     "deadlock is conflict",
			expected: nil,
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE users SET refresh_token`).
					WithArgs(id, "new").
					WillReturnError(&pgconn.PgError{Code: pgerrcode.DeadlockDetected})
			},
			wantErr: apperrors.ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			r := UserRepo{DB: mock}
			ok, err := r.UpdateRefreshToken(t.Context(), id, tt.expected, "new")

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantOK, ok)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepo_ErrorMapping_Mock(t *testing.T) {
	t.Run("other db errors are not conflicts", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT .* FROM users`).
			WillReturnError(errors.New("connection refused"))

		r := UserRepo{DB: mock}
		_, err = r.GetUserByID(t.Context(), uuid.New())

		require.Error(t, err)
		assert.NotErrorIs(t, err, apperrors.ErrConflict)
		assert.NotErrorIs(t, err, apperrors.ErrUserNotFound)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("unique violation on profile update", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`UPDATE users SET`).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

		r := UserRepo{DB: mock}
		_, err = r.UpdateProfile(t.Context(), uuid.New(), models.ProfilePatch{Email: strPtr("taken@example.com")})

		assert.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
	})

	t.Run("lock timeout while clearing token is conflict", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`UPDATE users SET refresh_token = NULL`).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.LockNotAvailable})

		r := UserRepo{DB: mock}
		err = r.ClearRefreshToken(t.Context(), uuid.New())

		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})
}
