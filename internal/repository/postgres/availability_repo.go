package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mstanic/courtside/internal/domain"
)

type PatternRepo struct {
	pool *pgxpool.Pool
}

func NewPatternRepo(pool *pgxpool.Pool) *PatternRepo {
	return &PatternRepo{pool: pool}
}

func (r *PatternRepo) Create(ctx context.Context, p *domain.RecurringPattern) error {
	query := `
		INSERT INTO recurring_availability (id, user_id, day_of_week, start_minute, end_minute, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.pool.Exec(ctx, query,
		p.ID, p.UserID, p.DayOfWeek, p.StartLocal, p.EndLocal, p.Enabled, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *PatternRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.RecurringPattern, error) {
	query := `
		SELECT id, user_id, day_of_week, start_minute, end_minute, enabled, created_at, updated_at
		FROM recurring_availability
		WHERE id = $1`
	var p domain.RecurringPattern
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.UserID, &p.DayOfWeek, &p.StartLocal, &p.EndLocal, &p.Enabled, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &p, err
}

func (r *PatternRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.RecurringPattern, error) {
	query := `
		SELECT id, user_id, day_of_week, start_minute, end_minute, enabled, created_at, updated_at
		FROM recurring_availability
		WHERE user_id = $1
		ORDER BY day_of_week, start_minute`
	return r.list(ctx, query, userID)
}

func (r *PatternRepo) ListEnabled(ctx context.Context) ([]domain.RecurringPattern, error) {
	query := `
		SELECT id, user_id, day_of_week, start_minute, end_minute, enabled, created_at, updated_at
		FROM recurring_availability
		WHERE enabled = TRUE
		ORDER BY user_id, day_of_week, start_minute`
	return r.list(ctx, query)
}

func (r *PatternRepo) list(ctx context.Context, query string, args ...any) ([]domain.RecurringPattern, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patterns []domain.RecurringPattern
	for rows.Next() {
		var p domain.RecurringPattern
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.DayOfWeek, &p.StartLocal, &p.EndLocal, &p.Enabled, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

func (r *PatternRepo) Update(ctx context.Context, p *domain.RecurringPattern) error {
	query := `
		UPDATE recurring_availability
		SET day_of_week = $2, start_minute = $3, end_minute = $4, enabled = $5, updated_at = $6
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, p.ID, p.DayOfWeek, p.StartLocal, p.EndLocal, p.Enabled, p.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PatternRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM recurring_availability WHERE id = $1`, id)
	return err
}

type BlockRepo struct {
	pool *pgxpool.Pool
}

func NewBlockRepo(pool *pgxpool.Pool) *BlockRepo {
	return &BlockRepo{pool: pool}
}

// Insert relies on the (user_id, start_time) uniqueness constraint for
// idempotent generation: a conflicting row means the slot is already
// covered, which is not an error.
func (r *BlockRepo) Insert(ctx context.Context, b *domain.AvailabilityBlock) (bool, error) {
	query := `
		INSERT INTO availability_blocks (id, user_id, start_time, end_time, pattern_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT ON CONSTRAINT unique_user_time_slot DO NOTHING`
	tag, err := r.pool.Exec(ctx, query, b.ID, b.UserID, b.StartTime, b.EndTime, b.PatternID, b.CreatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *BlockRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.AvailabilityBlock, error) {
	query := `
		SELECT id, user_id, start_time, end_time, pattern_id, created_at
		FROM availability_blocks
		WHERE id = $1`
	var b domain.AvailabilityBlock
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&b.ID, &b.UserID, &b.StartTime, &b.EndTime, &b.PatternID, &b.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &b, err
}

func (r *BlockRepo) ListByUserRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]domain.AvailabilityBlock, error) {
	query := `
		SELECT id, user_id, start_time, end_time, pattern_id, created_at
		FROM availability_blocks
		WHERE user_id = $1 AND start_time >= $2 AND start_time < $3
		ORDER BY start_time`
	rows, err := r.pool.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []domain.AvailabilityBlock
	for rows.Next() {
		var b domain.AvailabilityBlock
		if err := rows.Scan(&b.ID, &b.UserID, &b.StartTime, &b.EndTime, &b.PatternID, &b.CreatedAt); err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

func (r *BlockRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM availability_blocks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *BlockRepo) DeleteFutureByPattern(ctx context.Context, patternID uuid.UUID, after time.Time) (int64, error) {
	query := `DELETE FROM availability_blocks WHERE pattern_id = $1 AND start_time > $2`
	tag, err := r.pool.Exec(ctx, query, patternID, after)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *BlockRepo) DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM availability_blocks WHERE end_time < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
