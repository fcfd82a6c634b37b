package model

import "time"

type ScheduleStatus string

const (
	SchedulePending   ScheduleStatus = "pending"
	ScheduleSent      ScheduleStatus = "sent"
	ScheduleFailed    ScheduleStatus = "failed"
	ScheduleCancelled ScheduleStatus = "cancelled"
)

// Terminal reports whether the status permits no further transitions.
func (s ScheduleStatus) Terminal() bool {
	return s == ScheduleSent || s == ScheduleFailed || s == ScheduleCancelled
}

// ScheduledMessage is one concrete, materialized future send tied to
// exactly one (rule, reservation) pair. Rows are never deleted; terminal
// statuses preserve the audit history.
type ScheduledMessage struct {
	ID            int64 `json:"id"`
	OwnerID       int64 `json:"owner_id"`
	RuleID        int64 `json:"rule_id"`
	ReservationID int64 `json:"reservation_id"`
	TemplateID    int64 `json:"template_id"`

	// Recipient contact is denormalized at materialization time so a later
	// reservation edit cannot change an already-sent message's history.
	Recipient     string `json:"recipient"`
	RecipientName string `json:"recipient_name"`

	SendAt    time.Time      `json:"send_at"`
	Status    ScheduleStatus `json:"status"`
	LockedAt  *time.Time     `json:"locked_at,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
