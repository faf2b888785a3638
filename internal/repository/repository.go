package repository

import (
	"context"
	"errors"
	"math"

	"bptrack/internal/domain"
)

var (
	// ErrNotFound the requested row does not exist
	ErrNotFound = errors.New("not found")
	// ErrDuplicate a unique constraint was violated
	ErrDuplicate = errors.New("duplicate")
)

// Page size limits shared by every List implementation.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100

	// MaxPage highest page number a caller may request
	MaxPage = 1_000_000
)

// BPStatsRepository persistence for blood-pressure readings.
type BPStatsRepository interface {
	// Create inserts stat and fills ID, CreatedAt and UpdatedAt.
	Create(ctx context.Context, stat *domain.BPStat) error

	// Get returns ErrNotFound when id does not exist.
	Get(ctx context.Context, id string) (*domain.BPStat, error)

	// List returns one page of a user's readings, newest first, plus the total
	// number of readings matching filter.
	List(ctx context.Context, userID string, filter domain.BPStatFilter, page, size int) ([]*domain.BPStat, int, error)

	// Delete returns ErrNotFound when id does not exist.
	Delete(ctx context.Context, id string) error

	Summary(ctx context.Context, userID string) (*domain.BPStatSummary, error)
}

// UsersRepository persistence for accounts. Emails are unique ignoring case.
type UsersRepository interface {
	// Create returns ErrDuplicate when the email is taken.
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// normalizePage applies the default and maximum page size and returns the row offset.
// page is clamped so the offset never overflows.
func normalizePage(page, size int) (int, int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	if page > math.MaxInt/size {
		page = math.MaxInt / size
	}
	return page, size, (page - 1) * size
}
