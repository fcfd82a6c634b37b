package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/haneulsoft/reserve-notify/internal/apperr"
	"github.com/haneulsoft/reserve-notify/internal/model"
	"github.com/haneulsoft/reserve-notify/internal/repo"
)

// RuleService owns rule validation and the recompute side effect of rule
// edits.
type RuleService struct {
	rules        repo.RuleRepository
	templates    repo.TemplateRepository
	schedules    repo.ScheduleRepository
	reservations repo.ReservationSource
	materializer *Materializer
	logger       *slog.Logger
}

func NewRuleService(
	rules repo.RuleRepository,
	templates repo.TemplateRepository,
	schedules repo.ScheduleRepository,
	reservations repo.ReservationSource,
	materializer *Materializer,
	logger *slog.Logger,
) *RuleService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleService{
		rules:        rules,
		templates:    templates,
		schedules:    schedules,
		reservations: reservations,
		materializer: materializer,
		logger:       logger,
	}
}

func (s *RuleService) Create(ctx context.Context, rule *model.Rule) error {
	if err := validateRule(rule); err != nil {
		return err
	}
	if err := s.checkTemplateRef(ctx, rule); err != nil {
		return err
	}
	return s.rules.Create(ctx, rule)
}

// Update persists the rule and, when the timing configuration or template
// changed, recomputes every still-pending schedule of the rule. Terminal
// schedules are never touched.
func (s *RuleService) Update(ctx context.Context, rule *model.Rule) error {
	existing, err := s.rules.GetByID(ctx, rule.OwnerID, rule.ID)
	if err != nil {
		return err
	}

	if err := validateRule(rule); err != nil {
		return err
	}
	if err := s.checkTemplateRef(ctx, rule); err != nil {
		return err
	}

	if err := s.rules.Update(ctx, rule); err != nil {
		return err
	}

	if timingChanged(existing, rule) {
		s.recomputePending(ctx, rule)
	}
	return nil
}

// Delete removes the rule only. Pending schedules stay orphaned-but-valid:
// in-flight automations complete unless explicitly cancelled.
func (s *RuleService) Delete(ctx context.Context, ownerID, id int64) error {
	return s.rules.Delete(ctx, ownerID, id)
}

func (s *RuleService) Get(ctx context.Context, ownerID, id int64) (*model.Rule, error) {
	return s.rules.GetByID(ctx, ownerID, id)
}

func (s *RuleService) List(ctx context.Context, ownerID int64) ([]model.Rule, error) {
	return s.rules.ListByOwner(ctx, ownerID)
}

func (s *RuleService) checkTemplateRef(ctx context.Context, rule *model.Rule) error {
	if _, err := s.templates.GetByID(ctx, rule.OwnerID, rule.TemplateID); err != nil {
		if apperr.IsNotFound(err) {
			return apperr.NewValidation("template_id", fmt.Sprintf("template %d does not exist", rule.TemplateID))
		}
		return err
	}
	return nil
}

// recomputePending reapplies the edited rule to its not-yet-sent schedules.
// A recomputed time in the past cancels the row: a stale fire time no
// longer reflects any rule, and lost triggers are not back-filled.
func (s *RuleService) recomputePending(ctx context.Context, rule *model.Rule) {
	pending, err := s.schedules.ListPendingByRule(ctx, rule.ID)
	if err != nil {
		s.logger.Error("recompute: listing pending schedules failed", "rule_id", rule.ID, "error", err)
		return
	}

	for i := range pending {
		m := &pending[i]

		resv, err := s.reservations.GetByID(ctx, m.ReservationID)
		if err != nil {
			if apperr.IsNotFound(err) {
				s.cancelQuiet(ctx, rule.OwnerID, m.ID)
				continue
			}
			s.logger.Error("recompute: loading reservation failed",
				"scheduled_message_id", m.ID, "reservation_id", m.ReservationID, "error", err)
			continue
		}

		created, err := s.materializer.Materialize(ctx, rule, resv)
		if err != nil {
			s.logger.Error("recompute: materialization failed",
				"scheduled_message_id", m.ID, "rule_id", rule.ID, "error", err)
			continue
		}
		if !created {
			// New send time is already in the past.
			s.cancelQuiet(ctx, rule.OwnerID, m.ID)
		}
	}
}

func (s *RuleService) cancelQuiet(ctx context.Context, ownerID, id int64) {
	err := s.schedules.Cancel(ctx, ownerID, id)
	if err != nil && !apperr.IsConflict(err) {
		s.logger.Error("recompute: cancelling schedule failed", "scheduled_message_id", id, "error", err)
	}
}

func timingChanged(before, after *model.Rule) bool {
	return before.TemplateID != after.TemplateID ||
		before.TimeType != after.TimeType ||
		before.OffsetValue != after.OffsetValue ||
		before.OffsetUnit != after.OffsetUnit ||
		before.Direction != after.Direction ||
		before.Anchor != after.Anchor ||
		before.AbsoluteTime != after.AbsoluteTime
}

// validateRule enforces the timing invariant: exactly one of the two
// configurations is populated, consistently with time_type.
func validateRule(r *model.Rule) error {
	if r.Name == "" {
		return apperr.NewValidation("name", "must not be empty")
	}
	if r.TemplateID == 0 {
		return apperr.NewValidation("template_id", "must be set")
	}

	switch r.TriggerType {
	case model.TriggerReservationCreated, model.TriggerCheckIn, model.TriggerCheckOut:
	default:
		return apperr.NewValidation("trigger_type", fmt.Sprintf("unknown trigger %q", r.TriggerType))
	}

	switch r.Anchor {
	case model.AnchorStart, model.AnchorEnd:
	default:
		return apperr.NewValidation("anchor", fmt.Sprintf("unknown anchor %q", r.Anchor))
	}

	switch r.TimeType {
	case model.TimeRelative:
		if r.AbsoluteTime != "" {
			return apperr.NewValidation("absolute_time", "must be empty for relative timing")
		}
		if r.OffsetValue < 0 {
			return apperr.NewValidation("offset_value", "must be >= 0")
		}
		switch r.OffsetUnit {
		case model.UnitMinutes, model.UnitHours, model.UnitDays:
		default:
			return apperr.NewValidation("offset_unit", fmt.Sprintf("unknown unit %q", r.OffsetUnit))
		}
		switch r.Direction {
		case model.Before, model.After:
		default:
			return apperr.NewValidation("direction", fmt.Sprintf("unknown direction %q", r.Direction))
		}

	case model.TimeAbsolute:
		if r.OffsetValue != 0 || r.OffsetUnit != "" || r.Direction != "" {
			return apperr.NewValidation("time_type", "relative fields must be empty for absolute timing")
		}
		if _, err := time.Parse("15:04", r.AbsoluteTime); err != nil {
			return apperr.NewValidation("absolute_time", fmt.Sprintf("not a HH:MM time: %q", r.AbsoluteTime))
		}

	default:
		return apperr.NewValidation("time_type", fmt.Sprintf("unknown time type %q", r.TimeType))
	}

	return nil
}
