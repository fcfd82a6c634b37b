package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/haneulsoft/reserve-notify/internal/apperr"
	"github.com/haneulsoft/reserve-notify/internal/model"
)

type PostgresScheduleRepo struct {
	db *sql.DB
}

func NewPostgresScheduleRepo(db *sql.DB) *PostgresScheduleRepo {
	return &PostgresScheduleRepo{db: db}
}

const scheduleColumns = `id, owner_id, rule_id, reservation_id, template_id, recipient,
	recipient_name, send_at, status, locked_at, created_at, updated_at`

// Upsert relies on the unique (rule_id, reservation_id) constraint. The
// DO UPDATE clause is guarded on pending-and-unclaimed, so a terminal or
// claimed row swallows the write: zero rows returned, no error.
func (r *PostgresScheduleRepo) Upsert(ctx context.Context, m *model.ScheduledMessage) error {
	now := time.Now().UTC()

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO scheduled_messages
			(owner_id, rule_id, reservation_id, template_id, recipient,
			 recipient_name, send_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', $8, $8)
		ON CONFLICT (rule_id, reservation_id) DO UPDATE
		SET send_at = EXCLUDED.send_at,
		    recipient = EXCLUDED.recipient,
		    recipient_name = EXCLUDED.recipient_name,
		    template_id = EXCLUDED.template_id,
		    updated_at = EXCLUDED.updated_at
		WHERE scheduled_messages.status = 'pending'
		  AND scheduled_messages.locked_at IS NULL
		RETURNING id, created_at
	`,
		m.OwnerID,
		m.RuleID,
		m.ReservationID,
		m.TemplateID,
		m.Recipient,
		m.RecipientName,
		m.SendAt.UTC(),
		now,
	).Scan(&m.ID, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// Existing row is terminal or claimed; idempotent no-op.
		return nil
	}
	if err != nil {
		return fmt.Errorf("upsert schedule: %w", err)
	}

	m.Status = model.SchedulePending
	m.UpdatedAt = now
	return nil
}

func (r *PostgresScheduleRepo) GetByID(ctx context.Context, ownerID, id int64) (*model.ScheduledMessage, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+scheduleColumns+`
		FROM scheduled_messages
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID)

	m, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NewNotFound("scheduled message", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return m, nil
}

func (r *PostgresScheduleRepo) ListPendingByOwner(ctx context.Context, ownerID int64, sortBy string, limit, offset int) ([]model.ScheduledMessage, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	order := `send_at ASC`
	if sortBy == "created_at" {
		order = `created_at DESC`
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+scheduleColumns+`
		FROM scheduled_messages
		WHERE owner_id = $1 AND status = 'pending'
		ORDER BY `+order+`
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list pending schedules: %w", err)
	}
	defer rows.Close()

	var out []model.ScheduledMessage
	for rows.Next() {
		m, err := scanSchedule(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan schedule: %w", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM scheduled_messages WHERE owner_id = $1 AND status = 'pending'
	`, ownerID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count pending schedules: %w", err)
	}

	return out, total, nil
}

func (r *PostgresScheduleRepo) ListPendingByRule(ctx context.Context, ruleID int64) ([]model.ScheduledMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+scheduleColumns+`
		FROM scheduled_messages
		WHERE rule_id = $1 AND status = 'pending'
		ORDER BY id ASC
	`, ruleID)
	if err != nil {
		return nil, fmt.Errorf("list schedules by rule: %w", err)
	}
	defer rows.Close()

	var out []model.ScheduledMessage
	for rows.Next() {
		m, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// ClaimDue selects due pending rows with FOR UPDATE SKIP LOCKED and stamps
// locked_at inside the same transaction. A concurrent dispatcher skips rows
// this transaction holds, and the locked_at guard keeps them claimed after
// commit.
func (r *PostgresScheduleRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]model.ScheduledMessage, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT `+scheduleColumns+`
		FROM scheduled_messages
		WHERE status = 'pending'
		  AND locked_at IS NULL
		  AND send_at <= $1
		ORDER BY send_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT $2
	`, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []model.ScheduledMessage
	for rows.Next() {
		m, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(msgs) == 0 {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	claimedAt := now.UTC()
	for _, m := range msgs {
		if _, err := tx.ExecContext(ctx, `
			UPDATE scheduled_messages
			SET locked_at = $2, updated_at = $2
			WHERE id = $1
		`, m.ID, claimedAt); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	for i := range msgs {
		t := claimedAt
		msgs[i].LockedAt = &t
		msgs[i].UpdatedAt = claimedAt
	}
	return msgs, nil
}

func (r *PostgresScheduleRepo) ListStaleClaims(ctx context.Context, before time.Time) ([]model.ScheduledMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+scheduleColumns+`
		FROM scheduled_messages
		WHERE status = 'pending'
		  AND locked_at IS NOT NULL
		  AND locked_at < $1
		ORDER BY locked_at ASC
	`, before.UTC())
	if err != nil {
		return nil, fmt.Errorf("list stale claims: %w", err)
	}
	defer rows.Close()

	var out []model.ScheduledMessage
	for rows.Next() {
		m, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *PostgresScheduleRepo) Finalize(ctx context.Context, id int64, status model.ScheduleStatus) error {
	if !status.Terminal() {
		return fmt.Errorf("finalize to non-terminal status %q", status)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_messages
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id, status)
	if err != nil {
		return fmt.Errorf("finalize schedule: %w", err)
	}
	return requireRow(res, "scheduled message", id)
}

func (r *PostgresScheduleRepo) Release(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_messages
		SET locked_at = NULL, updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return fmt.Errorf("release schedule: %w", err)
	}
	return nil
}

// Cancel races against ClaimDue; the locked_at guard decides the winner.
func (r *PostgresScheduleRepo) Cancel(ctx context.Context, ownerID, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_messages
		SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND owner_id = $2 AND status = 'pending' AND locked_at IS NULL
	`, id, ownerID)
	if err != nil {
		return fmt.Errorf("cancel schedule: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	// Distinguish a missing row from a lost race / terminal state.
	if _, err := r.GetByID(ctx, ownerID, id); err != nil {
		return err
	}
	return apperr.NewConflict("scheduled message is no longer pending")
}

func scanSchedule(row rowScanner) (*model.ScheduledMessage, error) {
	var (
		m        model.ScheduledMessage
		lockedAt sql.NullTime
	)

	err := row.Scan(
		&m.ID,
		&m.OwnerID,
		&m.RuleID,
		&m.ReservationID,
		&m.TemplateID,
		&m.Recipient,
		&m.RecipientName,
		&m.SendAt,
		&m.Status,
		&lockedAt,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lockedAt.Valid {
		t := lockedAt.Time
		m.LockedAt = &t
	}
	return &m, nil
}
