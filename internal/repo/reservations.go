package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/haneulsoft/reserve-notify/internal/apperr"
	"github.com/haneulsoft/reserve-notify/internal/model"
)

// SQLReservationSource reads reservation and owner snapshots from the
// shared database. The tables belong to the reservation and account
// systems; this adapter is strictly read-only.
type SQLReservationSource struct {
	db *sqlx.DB
}

func NewSQLReservationSource(db *sql.DB, driverName string) *SQLReservationSource {
	return &SQLReservationSource{db: sqlx.NewDb(db, driverName)}
}

func (s *SQLReservationSource) GetByID(ctx context.Context, id int64) (*model.Reservation, error) {
	var r model.Reservation
	err := s.db.GetContext(ctx, &r, `
		SELECT id, user_id, space_id, customer_name, customer_phone,
		       start_datetime, end_datetime, status
		FROM reservations
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NewNotFound("reservation", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return &r, nil
}

// ListConfirmedUpcoming returns confirmed reservations that have not ended
// yet. The evaluator rescans these against the active rules each pass.
func (s *SQLReservationSource) ListConfirmedUpcoming(ctx context.Context) ([]model.Reservation, error) {
	var out []model.Reservation
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, user_id, space_id, customer_name, customer_phone,
		       start_datetime, end_datetime, status
		FROM reservations
		WHERE status = 'confirmed' AND end_datetime >= now()
		ORDER BY start_datetime ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list upcoming reservations: %w", err)
	}
	return out, nil
}

func (s *SQLReservationSource) OwnerProfile(ctx context.Context, ownerID int64) (*model.OwnerProfile, error) {
	var p model.OwnerProfile
	err := s.db.GetContext(ctx, &p, `
		SELECT id, phone_number, company_name, name
		FROM users
		WHERE id = $1
	`, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NewNotFound("owner", ownerID)
	}
	if err != nil {
		return nil, fmt.Errorf("get owner profile: %w", err)
	}
	return &p, nil
}
