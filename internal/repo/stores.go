// Package repo defines the storage boundary. Every operation that takes an
// ownerID is owner-filtered at the query level; cross-owner access is not
// representable above this package.
package repo

import (
	"context"
	"time"

	"github.com/haneulsoft/reserve-notify/internal/model"
)

type RuleRepository interface {
	Create(ctx context.Context, r *model.Rule) error
	Update(ctx context.Context, r *model.Rule) error
	Delete(ctx context.Context, ownerID, id int64) error
	GetByID(ctx context.Context, ownerID, id int64) (*model.Rule, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]model.Rule, error)

	// ListActive crosses owners; it feeds the evaluator passes only and is
	// never exposed through the API.
	ListActive(ctx context.Context) ([]model.Rule, error)
	ListActiveByOwner(ctx context.Context, ownerID int64) ([]model.Rule, error)
}

type TemplateRepository interface {
	Create(ctx context.Context, t *model.Template) error
	Update(ctx context.Context, t *model.Template) error
	Delete(ctx context.Context, ownerID, id int64) error
	GetByID(ctx context.Context, ownerID, id int64) (*model.Template, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]model.Template, error)
}

type ScheduleRepository interface {
	// Upsert inserts a pending schedule or, when a row for the same
	// (rule, reservation) pair already exists and is still pending and
	// unclaimed, updates its send time and recipient in place. A conflicting
	// terminal or claimed row makes the call a no-op, not an error.
	Upsert(ctx context.Context, m *model.ScheduledMessage) error

	GetByID(ctx context.Context, ownerID, id int64) (*model.ScheduledMessage, error)
	ListPendingByOwner(ctx context.Context, ownerID int64, sortBy string, limit, offset int) ([]model.ScheduledMessage, int, error)
	ListPendingByRule(ctx context.Context, ruleID int64) ([]model.ScheduledMessage, error)

	// ClaimDue atomically marks up to limit due pending rows as claimed
	// (locked_at set) and returns them. Two concurrent dispatchers never
	// receive the same row.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]model.ScheduledMessage, error)

	// Finalize moves a claimed row to its terminal sent/failed status.
	Finalize(ctx context.Context, id int64, status model.ScheduleStatus) error

	// Release clears the claim on a row the dispatcher could not process,
	// leaving it pending for a later pass.
	Release(ctx context.Context, id int64) error

	// ListStaleClaims returns pending rows whose claim is older than
	// before: the claiming dispatcher died between ClaimDue and
	// Finalize/Release. Recovery policy lives in the dispatcher.
	ListStaleClaims(ctx context.Context, before time.Time) ([]model.ScheduledMessage, error)

	// Cancel is a compare-and-set pending→cancelled; it fails with a
	// ConflictError once the row is claimed or terminal.
	Cancel(ctx context.Context, ownerID, id int64) error
}

type DeliveryFilter struct {
	Status  string
	Channel string
	Search  string
	Limit   int
	Offset  int
}

type DeliveryRepository interface {
	Append(ctx context.Context, d *model.DeliveryLog) error
	List(ctx context.Context, ownerID int64, f DeliveryFilter) ([]model.DeliveryLog, int, error)
	Stats(ctx context.Context, ownerID int64) (*model.DeliveryStats, error)
}

// ReservationSource reads reservation snapshots and owner profiles owned by
// external systems. This service never writes through it.
type ReservationSource interface {
	GetByID(ctx context.Context, id int64) (*model.Reservation, error)
	ListConfirmedUpcoming(ctx context.Context) ([]model.Reservation, error)
	OwnerProfile(ctx context.Context, ownerID int64) (*model.OwnerProfile, error)
}
