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

type PostgresTemplateRepo struct {
	db *sql.DB
}

func NewPostgresTemplateRepo(db *sql.DB) *PostgresTemplateRepo {
	return &PostgresTemplateRepo{db: db}
}

func (r *PostgresTemplateRepo) Create(ctx context.Context, t *model.Template) error {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO message_templates (owner_id, name, content, category, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, t.OwnerID, t.Name, t.Content, t.Category, t.Active, t.CreatedAt, t.UpdatedAt).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (r *PostgresTemplateRepo) Update(ctx context.Context, t *model.Template) error {
	t.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
		UPDATE message_templates
		SET name = $3, content = $4, category = $5, active = $6, updated_at = $7
		WHERE id = $1 AND owner_id = $2
	`, t.ID, t.OwnerID, t.Name, t.Content, t.Category, t.Active, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	return requireRow(res, "template", t.ID)
}

func (r *PostgresTemplateRepo) Delete(ctx context.Context, ownerID, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM message_templates WHERE id = $1 AND owner_id = $2
	`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return requireRow(res, "template", id)
}

func (r *PostgresTemplateRepo) GetByID(ctx context.Context, ownerID, id int64) (*model.Template, error) {
	var t model.Template
	err := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, content, category, active, created_at, updated_at
		FROM message_templates
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID).Scan(&t.ID, &t.OwnerID, &t.Name, &t.Content, &t.Category, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NewNotFound("template", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return &t, nil
}

func (r *PostgresTemplateRepo) ListByOwner(ctx context.Context, ownerID int64) ([]model.Template, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, name, content, category, active, created_at, updated_at
		FROM message_templates
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []model.Template
	for rows.Next() {
		var t model.Template
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Name, &t.Content, &t.Category, &t.Active, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
