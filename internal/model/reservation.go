package model

import "time"

type ReservationStatus string

const (
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
)

// Reservation is a read-only snapshot from the reservation system. Only
// confirmed reservations are evaluated for automation.
type Reservation struct {
	ID            int64             `db:"id" json:"id"`
	OwnerID       int64             `db:"user_id" json:"user_id"`
	SpaceID       int64             `db:"space_id" json:"space_id"`
	CustomerName  string            `db:"customer_name" json:"customer_name"`
	CustomerPhone string            `db:"customer_phone" json:"customer_phone"`
	StartAt       time.Time         `db:"start_datetime" json:"start_datetime"`
	EndAt         time.Time         `db:"end_datetime" json:"end_datetime"`
	Status        ReservationStatus `db:"status" json:"status"`
}

// AnchorTime returns the reservation timestamp a rule's timing is computed
// from.
func (r *Reservation) AnchorTime(a Anchor) time.Time {
	if a == AnchorEnd {
		return r.EndAt
	}
	return r.StartAt
}

type ReservationEventType string

const (
	ReservationCreated ReservationEventType = "created"
	ReservationUpdated ReservationEventType = "updated"
)

// ReservationEvent is the payload emitted by the reservation system on
// create/update, consumed by the trigger evaluator.
type ReservationEvent struct {
	Type        ReservationEventType `json:"type"`
	Reservation Reservation          `json:"reservation"`
	OccurredAt  time.Time            `json:"occurred_at"`
}
