package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"bptrack/internal/bpcategory"
	"bptrack/internal/domain"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresBPStatsRepository bp_stats on PostgreSQL
type PostgresBPStatsRepository struct {
	db *sql.DB
}

func NewPostgresBPStatsRepository(db *sql.DB) *PostgresBPStatsRepository {
	return &PostgresBPStatsRepository{db: db}
}

var _ BPStatsRepository = (*PostgresBPStatsRepository)(nil)

const bpStatColumns = `
	bpstat_id::text,
	user_id::text,
	systolic,
	diastolic,
	heart_rate,
	category,
	source,
	device_id,
	created_at,
	updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBPStat(row rowScanner) (*domain.BPStat, error) {
	var (
		stat     domain.BPStat
		category string
	)
	err := row.Scan(
		&stat.ID,
		&stat.UserID,
		&stat.Systolic,
		&stat.Diastolic,
		&stat.HeartRate,
		&category,
		&stat.Source,
		&stat.DeviceID,
		&stat.CreatedAt,
		&stat.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	stat.Category = bpcategory.Category(category)
	return &stat, nil
}

func (r *PostgresBPStatsRepository) Create(ctx context.Context, stat *domain.BPStat) error {
	if stat == nil || stat.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if stat.Source == "" {
		stat.Source = domain.SourceManual
	}

	// created_at is only supplied by imports of historic readings
	var createdAt sql.NullTime
	if !stat.CreatedAt.IsZero() {
		createdAt = sql.NullTime{Time: stat.CreatedAt, Valid: true}
	}

	query := `
		INSERT INTO bp_stats (user_id, systolic, diastolic, heart_rate, category, source, device_id, created_at, updated_at)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, COALESCE($8, now()), COALESCE($8, now()))
		RETURNING bpstat_id::text, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		stat.UserID,
		stat.Systolic,
		stat.Diastolic,
		stat.HeartRate,
		string(stat.Category),
		stat.Source,
		stat.DeviceID,
		createdAt,
	).Scan(&stat.ID, &stat.CreatedAt, &stat.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert bp_stat: %w", err)
	}
	return nil
}

func (r *PostgresBPStatsRepository) Get(ctx context.Context, id string) (*domain.BPStat, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	query := `SELECT ` + bpStatColumns + ` FROM bp_stats WHERE bpstat_id = $1::uuid`
	stat, err := scanBPStat(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get bp_stat: %w", err)
	}
	return stat, nil
}

// buildWhere returns the WHERE clause and its args for a user's filtered readings.
func buildWhere(userID string, filter domain.BPStatFilter) (string, []any) {
	conds := []string{"user_id = $1::uuid"}
	args := []any{userID}

	if len(filter.Categories) > 0 {
		cats := make([]string, 0, len(filter.Categories))
		for _, c := range filter.Categories {
			cats = append(cats, string(c))
		}
		args = append(args, pq.Array(cats))
		conds = append(conds, fmt.Sprintf("category = ANY($%d)", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		conds = append(conds, fmt.Sprintf("created_at < $%d", len(args)))
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *PostgresBPStatsRepository) List(ctx context.Context, userID string, filter domain.BPStatFilter, page, size int) ([]*domain.BPStat, int, error) {
	if userID == "" {
		return nil, 0, fmt.Errorf("user_id is required")
	}
	_, size, offset := normalizePage(page, size)
	where, args := buildWhere(userID, filter)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bp_stats`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count bp_stats: %w", err)
	}

	query := `SELECT ` + bpStatColumns + ` FROM bp_stats` + where +
		fmt.Sprintf(` ORDER BY created_at DESC, seq DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, size, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bp_stats: %w", err)
	}
	defer rows.Close()

	items := make([]*domain.BPStat, 0, size)
	for rows.Next() {
		stat, err := scanBPStat(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan bp_stat: %w", err)
		}
		items = append(items, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate bp_stats: %w", err)
	}

	return items, total, nil
}

func (r *PostgresBPStatsRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM bp_stats WHERE bpstat_id = $1::uuid`, id)
	if err != nil {
		return fmt.Errorf("failed to delete bp_stat: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete bp_stat: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresBPStatsRepository) Summary(ctx context.Context, userID string) (*domain.BPStatSummary, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	query := `
		SELECT category,
		       COUNT(*),
		       COALESCE(SUM(systolic), 0),
		       COALESCE(SUM(diastolic), 0),
		       COALESCE(SUM(heart_rate), 0)
		FROM bp_stats
		WHERE user_id = $1::uuid
		GROUP BY category
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize bp_stats: %w", err)
	}
	defer rows.Close()

	acc := newSummaryAccumulator()
	for rows.Next() {
		var (
			category          string
			count             int
			sys, dia, heartRt int64
		)
		if err := rows.Scan(&category, &count, &sys, &dia, &heartRt); err != nil {
			return nil, fmt.Errorf("failed to scan bp_stats summary: %w", err)
		}
		acc.add(bpcategory.Category(category), count, sys, dia, heartRt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bp_stats summary: %w", err)
	}

	summary := acc.summary()
	if summary.Total > 0 {
		latest, _, err := r.List(ctx, userID, domain.BPStatFilter{}, 1, 1)
		if err != nil {
			return nil, err
		}
		if len(latest) > 0 {
			summary.Latest = latest[0]
		}
	}
	return summary, nil
}

type summaryAccumulator struct {
	total              int
	byCategory         map[bpcategory.Category]int
	sumSys, sumDia, hr int64
}

func newSummaryAccumulator() *summaryAccumulator {
	return &summaryAccumulator{byCategory: map[bpcategory.Category]int{}}
}

func (a *summaryAccumulator) add(c bpcategory.Category, count int, sys, dia, hr int64) {
	a.total += count
	a.byCategory[c] += count
	a.sumSys += sys
	a.sumDia += dia
	a.hr += hr
}

func (a *summaryAccumulator) summary() *domain.BPStatSummary {
	s := &domain.BPStatSummary{Total: a.total, ByCategory: a.byCategory}
	if a.total > 0 {
		n := float64(a.total)
		s.AvgSystolic = float64(a.sumSys) / n
		s.AvgDiastolic = float64(a.sumDia) / n
		s.AvgHeartRate = float64(a.hr) / n
	}
	return s
}
