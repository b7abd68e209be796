package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mstanic/courtside/internal/domain"
	"github.com/mstanic/courtside/internal/repository"
)

type MatchRepo struct {
	pool *pgxpool.Pool
}

func NewMatchRepo(pool *pgxpool.Pool) *MatchRepo {
	return &MatchRepo{pool: pool}
}

const matchColumns = `id, player_a_id, player_b_id, start_time, end_time, status, created_by,
	canceled_by, cancellation_reason, created_at, confirmed_at, declined_at, canceled_at, updated_at`

func scanMatch(row pgx.Row) (*domain.Match, error) {
	var m domain.Match
	err := row.Scan(
		&m.ID, &m.PlayerAID, &m.PlayerBID, &m.StartTime, &m.EndTime, &m.Status, &m.CreatedBy,
		&m.CanceledBy, &m.CancellationReason, &m.CreatedAt, &m.ConfirmedAt, &m.DeclinedAt,
		&m.CanceledAt, &m.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &m, err
}

// lockConflicts locks and counts pending/confirmed matches of the given
// player overlapping [start, end), inside the caller's transaction.
func lockConflicts(ctx context.Context, tx pgx.Tx, playerID uuid.UUID, start, end time.Time, exclude *uuid.UUID) (bool, error) {
	query := `
		SELECT id FROM matches
		WHERE (player_a_id = $1 OR player_b_id = $1)
			AND status IN ('pending', 'confirmed')
			AND start_time < $3 AND end_time > $2
			AND ($4::uuid IS NULL OR id != $4)
		LIMIT 1
		FOR UPDATE`
	var id uuid.UUID
	err := tx.QueryRow(ctx, query, playerID, start, end, exclude).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *MatchRepo) CreateChallenge(ctx context.Context, m *domain.Match) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, player := range []uuid.UUID{m.PlayerAID, m.PlayerBID} {
		conflict, err := lockConflicts(ctx, tx, player, m.StartTime, m.EndTime, nil)
		if err != nil {
			return err
		}
		if conflict {
			return repository.ErrConflict
		}
	}

	query := `
		INSERT INTO matches (id, player_a_id, player_b_id, start_time, end_time, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := tx.Exec(ctx, query,
		m.ID, m.PlayerAID, m.PlayerBID, m.StartTime, m.EndTime, m.Status, m.CreatedBy, m.CreatedAt, m.UpdatedAt,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *MatchRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	return scanMatch(r.pool.QueryRow(ctx, query, id))
}

func (r *MatchRepo) ListByUser(ctx context.Context, userID uuid.UUID, status *domain.MatchStatus, upcoming *bool, limit int) ([]domain.Match, error) {
	query := `
		SELECT ` + matchColumns + `
		FROM matches
		WHERE (player_a_id = $1 OR player_b_id = $1)
			AND ($2::varchar IS NULL OR status = $2)
			AND ($3::boolean IS NULL OR ($3 AND start_time > NOW()) OR (NOT $3 AND start_time <= NOW()))
		ORDER BY start_time DESC
		LIMIT $4`
	rows, err := r.pool.Query(ctx, query, userID, status, upcoming, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMatches(rows)
}

func (r *MatchRepo) ListActiveInRange(ctx context.Context, userIDs []uuid.UUID, from, to time.Time) ([]domain.Match, error) {
	query := `
		SELECT ` + matchColumns + `
		FROM matches
		WHERE (player_a_id = ANY($1) OR player_b_id = ANY($1))
			AND status IN ('pending', 'confirmed')
			AND start_time < $3 AND end_time > $2
		ORDER BY start_time`
	rows, err := r.pool.Query(ctx, query, userIDs, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMatches(rows)
}

func collectMatches(rows pgx.Rows) ([]domain.Match, error) {
	var matches []domain.Match
	for rows.Next() {
		var m domain.Match
		if err := rows.Scan(
			&m.ID, &m.PlayerAID, &m.PlayerBID, &m.StartTime, &m.EndTime, &m.Status, &m.CreatedBy,
			&m.CanceledBy, &m.CancellationReason, &m.CreatedAt, &m.ConfirmedAt, &m.DeclinedAt,
			&m.CanceledAt, &m.UpdatedAt,
		); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (r *MatchRepo) Confirm(ctx context.Context, id uuid.UUID, playerB uuid.UUID, at time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Re-read the row under lock so a concurrent accept or sweep loses
	// cleanly instead of double-transitioning.
	m, err := scanMatch(tx.QueryRow(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return err
	}
	if m == nil {
		return repository.ErrNotFound
	}
	if m.Status != domain.MatchPending {
		return repository.ErrStaleStatus
	}

	conflict, err := lockConflicts(ctx, tx, playerB, m.StartTime, m.EndTime, &id)
	if err != nil {
		return err
	}
	if conflict {
		return repository.ErrConflict
	}

	if _, err := tx.Exec(ctx,
		`UPDATE matches SET status = $2, confirmed_at = $3, updated_at = $3 WHERE id = $1`,
		id, domain.MatchConfirmed, at,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *MatchRepo) Decline(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.transition(ctx, id, domain.MatchPending,
		`UPDATE matches SET status = $2, declined_at = $3, updated_at = $3 WHERE id = $1 AND status = $4`,
		id, domain.MatchDeclined, at, domain.MatchPending)
}

func (r *MatchRepo) Expire(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.transition(ctx, id, domain.MatchPending,
		`UPDATE matches SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`,
		id, domain.MatchExpired, at, domain.MatchPending)
}

func (r *MatchRepo) Cancel(ctx context.Context, id uuid.UUID, from domain.MatchStatus, by uuid.UUID, reason *string, at time.Time) error {
	return r.transition(ctx, id, from,
		`UPDATE matches SET status = $2, canceled_by = $3, cancellation_reason = $4, canceled_at = $5, updated_at = $5
		 WHERE id = $1 AND status = $6`,
		id, domain.MatchCanceled, by, reason, at, from)
}

// transition runs a compare-and-set status update: the WHERE clause carries
// the expected current status, so exactly one concurrent caller wins.
func (r *MatchRepo) transition(ctx context.Context, id uuid.UUID, from domain.MatchStatus, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		m, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if m == nil {
			return repository.ErrNotFound
		}
		return fmt.Errorf("%w: expected %s, found %s", repository.ErrStaleStatus, from, m.Status)
	}
	return nil
}

func (r *MatchRepo) ListExpirable(ctx context.Context, now time.Time, limit int) ([]domain.Match, error) {
	query := `
		SELECT ` + matchColumns + `
		FROM matches
		WHERE status = 'pending'
			AND (created_at <= $1 OR start_time <= $2)
		ORDER BY created_at
		LIMIT $3`
	rows, err := r.pool.Query(ctx, query,
		now.Add(-domain.ChallengeTTL), now.Add(domain.AcceptCutoff), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMatches(rows)
}
