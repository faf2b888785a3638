package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"bptrack/internal/domain"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresUsersRepository users on PostgreSQL
type PostgresUsersRepository struct {
	db *sql.DB
}

func NewPostgresUsersRepository(db *sql.DB) *PostgresUsersRepository {
	return &PostgresUsersRepository{db: db}
}

var _ UsersRepository = (*PostgresUsersRepository)(nil)

const userColumns = `user_id::text, username, email, profile_image, password_hash, created_at, updated_at`

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.ProfileImage, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *PostgresUsersRepository) Create(ctx context.Context, user *domain.User) error {
	if user == nil || user.Email == "" {
		return fmt.Errorf("email is required")
	}

	query := `
		INSERT INTO users (username, email, profile_image, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING user_id::text, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		user.Username,
		strings.ToLower(user.Email),
		user.ProfileImage,
		user.PasswordHash,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	user.Email = strings.ToLower(user.Email)
	return nil
}

func (r *PostgresUsersRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return r.getOne(ctx, query, email)
}

func (r *PostgresUsersRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1::uuid`
	return r.getOne(ctx, query, id)
}

func (r *PostgresUsersRepository) getOne(ctx context.Context, query string, arg string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}
