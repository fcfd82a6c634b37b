package service

import (
	"context"
	"time"

	"github.com/haneulsoft/reserve-notify/internal/apperr"
	"github.com/haneulsoft/reserve-notify/internal/model"
	"github.com/haneulsoft/reserve-notify/internal/repo"
)

// CancelLockWindow is how close to its send time a scheduled message may
// still be cancelled. Inside the window the dispatcher owns the row.
const CancelLockWindow = 15 * time.Minute

// ScheduleService exposes the pending queue to callers and guards manual
// cancellation with the lock window.
type ScheduleService struct {
	schedules repo.ScheduleRepository
	now       func() time.Time
}

func NewScheduleService(schedules repo.ScheduleRepository) *ScheduleService {
	return &ScheduleService{schedules: schedules, now: time.Now}
}

// WithClock overrides the time source. Tests only.
func (s *ScheduleService) WithClock(now func() time.Time) *ScheduleService {
	s.now = now
	return s
}

func (s *ScheduleService) Get(ctx context.Context, ownerID, id int64) (*model.ScheduledMessage, error) {
	return s.schedules.GetByID(ctx, ownerID, id)
}

func (s *ScheduleService) ListPending(ctx context.Context, ownerID int64, sortBy string, limit, offset int) ([]model.ScheduledMessage, int, error) {
	return s.schedules.ListPendingByOwner(ctx, ownerID, sortBy, limit, offset)
}

// Cancel marks a pending schedule cancelled. It refuses once the send time
// is less than CancelLockWindow away, even if the dispatcher has not
// claimed the row yet.
func (s *ScheduleService) Cancel(ctx context.Context, ownerID, id int64) error {
	m, err := s.schedules.GetByID(ctx, ownerID, id)
	if err != nil {
		return err
	}

	if m.Status != model.SchedulePending {
		return apperr.NewConflict("scheduled message is no longer pending")
	}
	if !s.now().Before(m.SendAt.Add(-CancelLockWindow)) {
		return apperr.NewConflict("scheduled message is inside the send lock window")
	}

	return s.schedules.Cancel(ctx, ownerID, id)
}
