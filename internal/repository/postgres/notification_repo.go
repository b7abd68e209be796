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

type NotificationRepo struct {
	pool *pgxpool.Pool
}

func NewNotificationRepo(pool *pgxpool.Pool) *NotificationRepo {
	return &NotificationRepo{pool: pool}
}

func (r *NotificationRepo) GetPreferences(ctx context.Context, userID uuid.UUID) (*domain.Preferences, error) {
	query := `
		SELECT user_id, email_enabled, sms_opt_in, sms_opt_in_at,
			notify_requests, notify_responses, notify_reminders, notify_cancellations,
			quiet_hours_enabled, quiet_start_minute, quiet_end_minute,
			sms_consecutive_failures, last_sms_failure_at, last_email_failure_at,
			created_at, updated_at
		FROM notification_preferences
		WHERE user_id = $1`
	var p domain.Preferences
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&p.UserID, &p.EmailEnabled, &p.SMSOptIn, &p.SMSOptInAt,
		&p.NotifyRequests, &p.NotifyResponses, &p.NotifyReminders, &p.NotifyCancellations,
		&p.QuietHoursEnabled, &p.QuietStart, &p.QuietEnd,
		&p.SMSConsecutiveFailures, &p.LastSMSFailureAt, &p.LastEmailFailureAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return &p, err
}

func (r *NotificationRepo) SavePreferences(ctx context.Context, p *domain.Preferences) error {
	query := `
		INSERT INTO notification_preferences (
			user_id, email_enabled, sms_opt_in, sms_opt_in_at,
			notify_requests, notify_responses, notify_reminders, notify_cancellations,
			quiet_hours_enabled, quiet_start_minute, quiet_end_minute,
			sms_consecutive_failures, last_sms_failure_at, last_email_failure_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			email_enabled = EXCLUDED.email_enabled,
			sms_opt_in = EXCLUDED.sms_opt_in,
			sms_opt_in_at = EXCLUDED.sms_opt_in_at,
			notify_requests = EXCLUDED.notify_requests,
			notify_responses = EXCLUDED.notify_responses,
			notify_reminders = EXCLUDED.notify_reminders,
			notify_cancellations = EXCLUDED.notify_cancellations,
			quiet_hours_enabled = EXCLUDED.quiet_hours_enabled,
			quiet_start_minute = EXCLUDED.quiet_start_minute,
			quiet_end_minute = EXCLUDED.quiet_end_minute,
			sms_consecutive_failures = EXCLUDED.sms_consecutive_failures,
			last_sms_failure_at = EXCLUDED.last_sms_failure_at,
			last_email_failure_at = EXCLUDED.last_email_failure_at,
			updated_at = NOW()`
	_, err := r.pool.Exec(ctx, query,
		p.UserID, p.EmailEnabled, p.SMSOptIn, p.SMSOptInAt,
		p.NotifyRequests, p.NotifyResponses, p.NotifyReminders, p.NotifyCancellations,
		p.QuietHoursEnabled, p.QuietStart, p.QuietEnd,
		p.SMSConsecutiveFailures, p.LastSMSFailureAt, p.LastEmailFailureAt,
	)
	return err
}

func (r *NotificationRepo) Enqueue(ctx context.Context, n *domain.QueuedNotification) error {
	query := `
		INSERT INTO notification_queue (id, user_id, category, priority, channel, subject, body, match_id, scheduled_for, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.pool.Exec(ctx, query,
		n.ID, n.UserID, n.Category, n.Priority, n.Channel, n.Subject, n.Body, n.MatchID, n.ScheduledFor, n.CreatedAt)
	return err
}

func (r *NotificationRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.QueuedNotification, error) {
	query := `
		SELECT id, user_id, category, priority, channel, subject, body, match_id,
			scheduled_for, sent_at, failed_at, failure_reason, fallback_used, delivered_via, created_at
		FROM notification_queue
		WHERE scheduled_for <= $1 AND sent_at IS NULL AND failed_at IS NULL
		ORDER BY scheduled_for
		LIMIT $2`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []domain.QueuedNotification
	for rows.Next() {
		var n domain.QueuedNotification
		if err := rows.Scan(
			&n.ID, &n.UserID, &n.Category, &n.Priority, &n.Channel, &n.Subject, &n.Body, &n.MatchID,
			&n.ScheduledFor, &n.SentAt, &n.FailedAt, &n.FailureReason, &n.FallbackUsed, &n.DeliveredVia, &n.CreatedAt,
		); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (r *NotificationRepo) MarkSent(ctx context.Context, id uuid.UUID, at time.Time, via domain.Channel, fallbackUsed bool) error {
	query := `
		UPDATE notification_queue
		SET sent_at = $2, delivered_via = $3, fallback_used = $4
		WHERE id = $1 AND sent_at IS NULL AND failed_at IS NULL`
	_, err := r.pool.Exec(ctx, query, id, at, via, fallbackUsed)
	return err
}

func (r *NotificationRepo) MarkFailed(ctx context.Context, id uuid.UUID, at time.Time, reason string) error {
	query := `
		UPDATE notification_queue
		SET failed_at = $2, failure_reason = $3
		WHERE id = $1 AND sent_at IS NULL AND failed_at IS NULL`
	_, err := r.pool.Exec(ctx, query, id, at, reason)
	return err
}

func (r *NotificationRepo) DeletePendingForMatch(ctx context.Context, matchID uuid.UUID, categories []domain.Category) (int64, error) {
	query := `
		DELETE FROM notification_queue
		WHERE match_id = $1 AND category = ANY($2) AND sent_at IS NULL AND failed_at IS NULL`
	cats := make([]string, len(categories))
	for i, c := range categories {
		cats[i] = string(c)
	}
	tag, err := r.pool.Exec(ctx, query, matchID, cats)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *NotificationRepo) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM notification_queue
		WHERE scheduled_for < $1 AND (sent_at IS NOT NULL OR failed_at IS NOT NULL)`
	tag, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
