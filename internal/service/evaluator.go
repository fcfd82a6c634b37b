package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/haneulsoft/reserve-notify/internal/metrics"
	"github.com/haneulsoft/reserve-notify/internal/model"
	"github.com/haneulsoft/reserve-notify/internal/repo"
)

// Evaluator decides when the materializer runs. Two paths feed it: broker
// events for reservation create/update, and a periodic rescan that catches
// rules created or edited after their reservations already existed. Both
// paths are safe to overlap because materialization is idempotent.
type Evaluator struct {
	rules        repo.RuleRepository
	reservations repo.ReservationSource
	materializer *Materializer
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

func NewEvaluator(rules repo.RuleRepository, reservations repo.ReservationSource, materializer *Materializer, m *metrics.Metrics, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		rules:        rules,
		reservations: reservations,
		materializer: materializer,
		metrics:      m,
		logger:       logger,
	}
}

// HandleEvent evaluates every active rule of the reservation's owner whose
// scope matches the reservation. TriggerType is deliberately not filtered
// on: check-in/check-out rules have no reservation event of their own and
// their schedules must exist as soon as the reservation does, while the
// idempotent upsert makes re-running the other rules a no-op. Rule
// failures are logged per item and never abort the remaining rules.
func (e *Evaluator) HandleEvent(ctx context.Context, ev model.ReservationEvent) error {
	resv := ev.Reservation

	rules, err := e.rules.ListActiveByOwner(ctx, resv.OwnerID)
	if err != nil {
		return err
	}

	for i := range rules {
		rule := &rules[i]
		if !rule.MatchesSpace(resv.SpaceID) {
			continue
		}
		if _, err := e.materializer.Materialize(ctx, rule, &resv); err != nil {
			e.logger.Error("materialization failed",
				"rule_id", rule.ID,
				"reservation_id", resv.ID,
				"event", string(ev.Type),
				"error", err,
			)
		}
	}
	return nil
}

// RescanPass walks active rules against confirmed upcoming reservations.
// One pass is a full cross product; the per-pair uniqueness constraint
// makes repeated passes cheap no-ops.
func (e *Evaluator) RescanPass(ctx context.Context) {
	start := time.Now()

	rules, err := e.rules.ListActive(ctx)
	if err != nil {
		e.logger.Error("rescan: listing active rules failed", "error", err)
		return
	}
	if len(rules) == 0 {
		return
	}

	reservations, err := e.reservations.ListConfirmedUpcoming(ctx)
	if err != nil {
		e.logger.Error("rescan: listing reservations failed", "error", err)
		return
	}

	var materialized int
	for i := range rules {
		rule := &rules[i]
		for j := range reservations {
			resv := &reservations[j]
			if resv.OwnerID != rule.OwnerID || !rule.MatchesSpace(resv.SpaceID) {
				continue
			}

			created, err := e.materializer.Materialize(ctx, rule, resv)
			if err != nil {
				e.logger.Error("rescan: materialization failed",
					"rule_id", rule.ID,
					"reservation_id", resv.ID,
					"error", err,
				)
				continue
			}
			if created {
				materialized++
			}
		}
	}

	elapsed := time.Since(start)
	e.metrics.ObserveEvaluatorPass(elapsed.Seconds())
	if materialized > 0 {
		e.logger.Info("rescan pass completed",
			"rules", len(rules),
			"reservations", len(reservations),
			"materialized", materialized,
			"duration_ms", elapsed.Milliseconds(),
		)
	}
}
