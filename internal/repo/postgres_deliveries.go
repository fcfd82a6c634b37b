package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/haneulsoft/reserve-notify/internal/model"
)

// PostgresDeliveryRepo owns the message_logs table. There is deliberately no
// update or delete: the ledger is an audit trail.
type PostgresDeliveryRepo struct {
	db *sql.DB
}

func NewPostgresDeliveryRepo(db *sql.DB) *PostgresDeliveryRepo {
	return &PostgresDeliveryRepo{db: db}
}

func (r *PostgresDeliveryRepo) Append(ctx context.Context, d *model.DeliveryLog) error {
	if d.SentAt.IsZero() {
		d.SentAt = time.Now().UTC()
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO message_logs
			(owner_id, scheduled_message_id, batch_id, channel, recipient,
			 recipient_name, rendered_content, status, provider_message_id,
			 error_message, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`,
		d.OwnerID,
		nullInt64(d.ScheduledMessageID),
		nullStrPtr(d.BatchID),
		d.Channel,
		d.Recipient,
		d.RecipientName,
		d.RenderedContent,
		d.Status,
		nullStrPtr(d.ProviderMessageID),
		nullStrPtr(d.ErrorMessage),
		d.SentAt,
	).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("append delivery log: %w", err)
	}
	return nil
}

func (r *PostgresDeliveryRepo) List(ctx context.Context, ownerID int64, f DeliveryFilter) ([]model.DeliveryLog, int, error) {
	if f.Limit <= 0 {
		f.Limit = 10
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	where := `WHERE owner_id = $1`
	args := []any{ownerID}

	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.Channel != "" {
		args = append(args, f.Channel)
		where += fmt.Sprintf(" AND channel = $%d", len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where += fmt.Sprintf(" AND (recipient_name ILIKE $%d OR recipient ILIKE $%d)", len(args), len(args))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM message_logs `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count delivery logs: %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`
		SELECT id, owner_id, scheduled_message_id, batch_id, channel, recipient,
		       recipient_name, rendered_content, status, provider_message_id,
		       error_message, sent_at
		FROM message_logs
		%s
		ORDER BY sent_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list delivery logs: %w", err)
	}
	defer rows.Close()

	var out []model.DeliveryLog
	for rows.Next() {
		var (
			d          model.DeliveryLog
			schedID    sql.NullInt64
			batchID    sql.NullString
			providerID sql.NullString
			errMsg     sql.NullString
		)
		if err := rows.Scan(
			&d.ID,
			&d.OwnerID,
			&schedID,
			&batchID,
			&d.Channel,
			&d.Recipient,
			&d.RecipientName,
			&d.RenderedContent,
			&d.Status,
			&providerID,
			&errMsg,
			&d.SentAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan delivery log: %w", err)
		}

		if schedID.Valid {
			v := schedID.Int64
			d.ScheduledMessageID = &v
		}
		if batchID.Valid {
			s := batchID.String
			d.BatchID = &s
		}
		if providerID.Valid {
			s := providerID.String
			d.ProviderMessageID = &s
		}
		if errMsg.Valid {
			s := errMsg.String
			d.ErrorMessage = &s
		}

		out = append(out, d)
	}
	return out, total, rows.Err()
}

func (r *PostgresDeliveryRepo) Stats(ctx context.Context, ownerID int64) (*model.DeliveryStats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, channel, COUNT(*)
		FROM message_logs
		WHERE owner_id = $1
		GROUP BY status, channel
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("delivery stats: %w", err)
	}
	defer rows.Close()

	stats := &model.DeliveryStats{}
	for rows.Next() {
		var (
			status  model.DeliveryStatus
			channel model.Channel
			count   int
		)
		if err := rows.Scan(&status, &channel, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}

		stats.Total += count
		switch status {
		case model.DeliverySent:
			stats.Sent += count
		case model.DeliveryFailed:
			stats.Failed += count
		}
		switch channel {
		case model.ChannelSMS:
			stats.SMS += count
		case model.ChannelLMS:
			stats.LMS += count
		case model.ChannelMMS:
			stats.MMS += count
		}
	}
	return stats, rows.Err()
}

func nullStrPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
