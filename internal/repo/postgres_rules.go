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

type PostgresRuleRepo struct {
	db *sql.DB
}

func NewPostgresRuleRepo(db *sql.DB) *PostgresRuleRepo {
	return &PostgresRuleRepo{db: db}
}

const ruleColumns = `id, owner_id, name, space_id, template_id, trigger_type, time_type,
	offset_value, offset_unit, direction, anchor, absolute_time, active, created_at, updated_at`

func (r *PostgresRuleRepo) Create(ctx context.Context, rule *model.Rule) error {
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO auto_message_rules
			(owner_id, name, space_id, template_id, trigger_type, time_type,
			 offset_value, offset_unit, direction, anchor, absolute_time, active,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`,
		rule.OwnerID,
		rule.Name,
		nullInt64(rule.SpaceID),
		rule.TemplateID,
		rule.TriggerType,
		rule.TimeType,
		rule.OffsetValue,
		nullStr(string(rule.OffsetUnit)),
		nullStr(string(rule.Direction)),
		nullStr(string(rule.Anchor)),
		nullStr(rule.AbsoluteTime),
		rule.Active,
		rule.CreatedAt,
		rule.UpdatedAt,
	).Scan(&rule.ID)
	if err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}
	return nil
}

func (r *PostgresRuleRepo) Update(ctx context.Context, rule *model.Rule) error {
	rule.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
		UPDATE auto_message_rules
		SET name = $3, space_id = $4, template_id = $5, trigger_type = $6,
		    time_type = $7, offset_value = $8, offset_unit = $9, direction = $10,
		    anchor = $11, absolute_time = $12, active = $13, updated_at = $14
		WHERE id = $1 AND owner_id = $2
	`,
		rule.ID,
		rule.OwnerID,
		rule.Name,
		nullInt64(rule.SpaceID),
		rule.TemplateID,
		rule.TriggerType,
		rule.TimeType,
		rule.OffsetValue,
		nullStr(string(rule.OffsetUnit)),
		nullStr(string(rule.Direction)),
		nullStr(string(rule.Anchor)),
		nullStr(rule.AbsoluteTime),
		rule.Active,
		rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	return requireRow(res, "rule", rule.ID)
}

func (r *PostgresRuleRepo) Delete(ctx context.Context, ownerID, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM auto_message_rules WHERE id = $1 AND owner_id = $2
	`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	return requireRow(res, "rule", id)
}

func (r *PostgresRuleRepo) GetByID(ctx context.Context, ownerID, id int64) (*model.Rule, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+ruleColumns+`
		FROM auto_message_rules
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID)

	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NewNotFound("rule", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get rule: %w", err)
	}
	return rule, nil
}

func (r *PostgresRuleRepo) ListByOwner(ctx context.Context, ownerID int64) ([]model.Rule, error) {
	return r.list(ctx, `WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
}

func (r *PostgresRuleRepo) ListActive(ctx context.Context) ([]model.Rule, error) {
	return r.list(ctx, `WHERE active ORDER BY id ASC`)
}

func (r *PostgresRuleRepo) ListActiveByOwner(ctx context.Context, ownerID int64) ([]model.Rule, error) {
	return r.list(ctx, `WHERE active AND owner_id = $1 ORDER BY id ASC`, ownerID)
}

func (r *PostgresRuleRepo) list(ctx context.Context, clause string, args ...any) ([]model.Rule, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+ruleColumns+` FROM auto_message_rules `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []model.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, *rule)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*model.Rule, error) {
	var (
		rule    model.Rule
		spaceID sql.NullInt64
		unit    sql.NullString
		dir     sql.NullString
		anchor  sql.NullString
		absTime sql.NullString
	)

	err := row.Scan(
		&rule.ID,
		&rule.OwnerID,
		&rule.Name,
		&spaceID,
		&rule.TemplateID,
		&rule.TriggerType,
		&rule.TimeType,
		&rule.OffsetValue,
		&unit,
		&dir,
		&anchor,
		&absTime,
		&rule.Active,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if spaceID.Valid {
		v := spaceID.Int64
		rule.SpaceID = &v
	}
	rule.OffsetUnit = model.OffsetUnit(unit.String)
	rule.Direction = model.Direction(dir.String)
	rule.Anchor = model.Anchor(anchor.String)
	rule.AbsoluteTime = absTime.String

	return &rule, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func requireRow(res sql.Result, resource string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NewNotFound(resource, id)
	}
	return nil
}
