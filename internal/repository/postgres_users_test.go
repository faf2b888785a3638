package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"bptrack/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresUsers_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresUsersRepository(db)

	userID := uuid.NewString()
	now := time.Now()
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("alice", "alice@example.com", "", "hash").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "created_at", "updated_at"}).AddRow(userID, now, now))

	u := &domain.User{Username: "alice", Email: "Alice@Example.com", PasswordHash: "hash"}
	require.NoError(t, repo.Create(context.Background(), u))
	assert.Equal(t, userID, u.ID)
	assert.Equal(t, "alice@example.com", u.Email)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUsers_Create_Duplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresUsersRepository(db)

	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})

	err = repo.Create(context.Background(), &domain.User{Username: "bob", Email: "bob@example.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUsers_GetByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresUsersRepository(db)

	userID := uuid.NewString()
	now := time.Now()
	mock.ExpectQuery(`WHERE lower\(email\) = lower\(\$1\)`).
		WithArgs("carol@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "username", "email", "profile_image", "password_hash", "created_at", "updated_at"}).
			AddRow(userID, "carol", "carol@example.com", "", "hash", now, now))

	u, err := repo.GetByEmail(context.Background(), "carol@example.com")
	require.NoError(t, err)
	assert.Equal(t, userID, u.ID)
	assert.Equal(t, "hash", u.PasswordHash)

	mock.ExpectQuery(`FROM users`).WithArgs("nobody@example.com").WillReturnError(sql.ErrNoRows)
	_, err = repo.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUsers_GetByID_Malformed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewPostgresUsersRepository(db).GetByID(context.Background(), "42")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
