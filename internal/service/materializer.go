package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/haneulsoft/reserve-notify/internal/apperr"
	"github.com/haneulsoft/reserve-notify/internal/metrics"
	"github.com/haneulsoft/reserve-notify/internal/model"
	"github.com/haneulsoft/reserve-notify/internal/repo"
)

// Materializer turns a rule plus a reservation snapshot into at most one
// pending ScheduledMessage. Materialization is idempotent: the schedule
// store's (rule, reservation) uniqueness absorbs repeats and races.
type Materializer struct {
	schedules repo.ScheduleRepository
	metrics   *metrics.Metrics
	logger    *slog.Logger
	loc       *time.Location
	now       func() time.Time
}

func NewMaterializer(schedules repo.ScheduleRepository, m *metrics.Metrics, logger *slog.Logger) *Materializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Materializer{
		schedules: schedules,
		metrics:   m,
		logger:    logger,
		loc:       time.Local,
		now:       time.Now,
	}
}

// WithClock overrides the wall clock; tests use it to pin "now".
func (m *Materializer) WithClock(now func() time.Time) *Materializer {
	m.now = now
	return m
}

// WithLocation sets the location absolute send times are interpreted in.
func (m *Materializer) WithLocation(loc *time.Location) *Materializer {
	m.loc = loc
	return m
}

// Materialize computes the send time and upserts the schedule. It returns
// false without error when the computed time is already in the past: lost
// triggers are not back-filled.
func (m *Materializer) Materialize(ctx context.Context, rule *model.Rule, resv *model.Reservation) (bool, error) {
	if !rule.Active {
		return false, nil
	}
	if resv.Status != model.ReservationConfirmed {
		return false, nil
	}

	sendAt, err := m.SendTime(rule, resv)
	if err != nil {
		return false, err
	}

	if !sendAt.After(m.now()) {
		return false, nil
	}

	sched := &model.ScheduledMessage{
		OwnerID:       rule.OwnerID,
		RuleID:        rule.ID,
		ReservationID: resv.ID,
		TemplateID:    rule.TemplateID,
		Recipient:     resv.CustomerPhone,
		RecipientName: resv.CustomerName,
		SendAt:        sendAt,
	}

	if err := m.schedules.Upsert(ctx, sched); err != nil {
		return false, fmt.Errorf("materialize rule %d reservation %d: %w", rule.ID, resv.ID, err)
	}

	m.metrics.IncMaterialized()
	return true, nil
}

// SendTime resolves the rule's timing configuration against the
// reservation's anchor timestamp.
func (m *Materializer) SendTime(rule *model.Rule, resv *model.Reservation) (time.Time, error) {
	anchor := resv.AnchorTime(rule.Anchor)

	switch rule.TimeType {
	case model.TimeRelative:
		offset := rule.OffsetDuration()
		if rule.Direction == model.Before {
			return anchor.Add(-offset), nil
		}
		return anchor.Add(offset), nil

	case model.TimeAbsolute:
		tod, err := time.Parse("15:04", rule.AbsoluteTime)
		if err != nil {
			return time.Time{}, apperr.NewValidation("absolute_time", fmt.Sprintf("not a HH:MM time: %q", rule.AbsoluteTime))
		}
		local := anchor.In(m.loc)
		return time.Date(local.Year(), local.Month(), local.Day(),
			tod.Hour(), tod.Minute(), 0, 0, m.loc), nil

	default:
		return time.Time{}, apperr.NewValidation("time_type", fmt.Sprintf("unknown time type %q", rule.TimeType))
	}
}
