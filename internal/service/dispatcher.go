package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/haneulsoft/reserve-notify/internal/apperr"
	"github.com/haneulsoft/reserve-notify/internal/cache"
	"github.com/haneulsoft/reserve-notify/internal/metrics"
	"github.com/haneulsoft/reserve-notify/internal/model"
	"github.com/haneulsoft/reserve-notify/internal/render"
	"github.com/haneulsoft/reserve-notify/internal/repo"
)

// MessageProvider is the outbound channel contract. Implementations return
// the provider's message reference on acceptance and *apperr.ProviderError
// on rejection.
type MessageProvider interface {
	Send(ctx context.Context, to, from, content string, channel model.Channel, attachments []string) (string, error)
}

// Dispatcher claims due scheduled messages, renders and sends them, and
// records every attempt in the delivery ledger. It also serves ad-hoc
// multi-recipient sends, which share the render/send/log path but skip the
// schedule store.
type Dispatcher struct {
	schedules  repo.ScheduleRepository
	templates  repo.TemplateRepository
	deliveries repo.DeliveryRepository
	source     repo.ReservationSource
	provider   MessageProvider
	receipts   cache.ReceiptCache
	metrics    *metrics.Metrics
	logger     *slog.Logger

	batchSize int
	workers   int
	now       func() time.Time
}

type DispatcherDeps struct {
	Schedules  repo.ScheduleRepository
	Templates  repo.TemplateRepository
	Deliveries repo.DeliveryRepository
	Source     repo.ReservationSource
	Provider   MessageProvider
	Receipts   cache.ReceiptCache
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	BatchSize  int
	Workers    int
}

func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.BatchSize <= 0 {
		deps.BatchSize = 100
	}
	if deps.Workers <= 0 {
		deps.Workers = 8
	}
	return &Dispatcher{
		schedules:  deps.Schedules,
		templates:  deps.Templates,
		deliveries: deps.Deliveries,
		source:     deps.Source,
		provider:   deps.Provider,
		receipts:   deps.Receipts,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		batchSize:  deps.BatchSize,
		workers:    deps.Workers,
		now:        time.Now,
	}
}

// WithClock overrides the wall clock; tests use it to pin "now".
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// staleClaimAfter is how old a claim must be before the dispatcher treats
// the claiming process as dead. Sends finish in seconds; a claim this old
// means a crash between ClaimDue and Finalize/Release.
const staleClaimAfter = 10 * time.Minute

// DrainDue claims and dispatches every due pending message, up to the
// configured batch size. One bad message never stops the rest of the batch.
func (d *Dispatcher) DrainDue(ctx context.Context) (sent, failed int) {
	d.expireStaleClaims(ctx)

	msgs, err := d.schedules.ClaimDue(ctx, d.now(), d.batchSize)
	if err != nil {
		d.logger.Error("claiming due messages failed", "error", err)
		return 0, 0
	}

	for i := range msgs {
		ok := d.dispatchScheduled(ctx, &msgs[i])
		if ok {
			sent++
		} else {
			failed++
		}
	}

	if sent+failed > 0 {
		d.logger.Info("dispatch pass completed", "sent", sent, "failed", failed)
	}
	return sent, failed
}

// dispatchScheduled finalizes the claimed message to sent or failed. Load
// errors for template or owner profile release the claim instead, so a
// later pass can retry; only provider-level failures are terminal.
func (d *Dispatcher) dispatchScheduled(ctx context.Context, m *model.ScheduledMessage) bool {
	tmpl, err := d.templates.GetByID(ctx, m.OwnerID, m.TemplateID)
	if err != nil {
		if apperr.IsNotFound(err) {
			// Template removed since materialization; nothing to render,
			// nothing to retry.
			d.finalize(ctx, m, "", model.ChannelSMS, "", err)
			return false
		}
		d.release(ctx, m, err)
		return false
	}

	profile, err := d.source.OwnerProfile(ctx, m.OwnerID)
	if err != nil {
		d.release(ctx, m, err)
		return false
	}

	rendered := render.RenderAt(tmpl.Content,
		render.Recipient{Name: m.RecipientName, Phone: m.Recipient},
		render.Sender{Phone: profile.PhoneNumber, Company: profile.CompanyName, Manager: profile.ManagerName},
		d.now(),
	)
	channel := render.PickChannel(rendered, 0)

	if tokens := render.UnresolvedTokens(rendered); len(tokens) > 0 {
		err := fmt.Errorf("unresolved tokens: %s", strings.Join(tokens, ", "))
		d.finalize(ctx, m, rendered, channel, "", err)
		return false
	}

	to := normalizePhone(m.Recipient)
	if !validMobile(to) {
		err := fmt.Errorf("invalid recipient number: %q", m.Recipient)
		d.finalize(ctx, m, rendered, channel, "", err)
		return false
	}

	providerID, err := d.provider.Send(ctx, to, profile.PhoneNumber, rendered, channel, nil)
	d.finalize(ctx, m, rendered, channel, providerID, err)
	return err == nil
}

// finalize writes exactly one ledger row and moves the schedule to its
// terminal status.
func (d *Dispatcher) finalize(ctx context.Context, m *model.ScheduledMessage, rendered string, channel model.Channel, providerID string, sendErr error) {
	status := model.DeliverySent
	schedStatus := model.ScheduleSent
	if sendErr != nil {
		status = model.DeliveryFailed
		schedStatus = model.ScheduleFailed
	}

	entry := &model.DeliveryLog{
		OwnerID:            m.OwnerID,
		ScheduledMessageID: &m.ID,
		Channel:            channel,
		Recipient:          normalizePhone(m.Recipient),
		RecipientName:      m.RecipientName,
		RenderedContent:    rendered,
		Status:             status,
		SentAt:             d.now().UTC(),
	}
	if providerID != "" {
		entry.ProviderMessageID = &providerID
	}
	if sendErr != nil {
		msg := sendErr.Error()
		entry.ErrorMessage = &msg
	}

	if err := d.deliveries.Append(ctx, entry); err != nil {
		d.logger.Error("appending delivery log failed", "scheduled_message_id", m.ID, "error", err)
	}

	if err := d.schedules.Finalize(ctx, m.ID, schedStatus); err != nil {
		d.logger.Error("finalizing schedule failed", "scheduled_message_id", m.ID, "error", err)
	}

	d.metrics.IncDispatch(string(status), string(channel))
	d.storeReceipt(ctx, entry)
}

// expireStaleClaims fails rows stuck mid-claim after a dispatcher crash:
// claimed, never finalized, invisible to ClaimDue and Cancel. They are
// finalized as failed rather than released, because the crash may have
// happened after the provider accepted the send; failing the row keeps
// at-most-once at the cost of recording an unknown outcome as failed.
func (d *Dispatcher) expireStaleClaims(ctx context.Context) {
	stale, err := d.schedules.ListStaleClaims(ctx, d.now().Add(-staleClaimAfter))
	if err != nil {
		d.logger.Error("listing stale claims failed", "error", err)
		return
	}

	for i := range stale {
		m := &stale[i]
		d.logger.Error("expiring stale claim", "scheduled_message_id", m.ID, "locked_at", m.LockedAt)
		d.finalize(ctx, m, "", model.ChannelSMS, "", errors.New("dispatch interrupted: claim expired before completion"))
	}
}

func (d *Dispatcher) release(ctx context.Context, m *model.ScheduledMessage, cause error) {
	d.logger.Error("dispatch deferred, releasing claim", "scheduled_message_id", m.ID, "error", cause)
	if err := d.schedules.Release(ctx, m.ID); err != nil {
		d.logger.Error("releasing claim failed", "scheduled_message_id", m.ID, "error", err)
	}
}

func (d *Dispatcher) storeReceipt(ctx context.Context, entry *model.DeliveryLog) {
	if d.receipts == nil || entry.Status != model.DeliverySent || entry.ProviderMessageID == nil {
		return
	}

	rc := cache.Receipt{
		ProviderMessageID: *entry.ProviderMessageID,
		Channel:           entry.Channel,
		Status:            entry.Status,
		SentAt:            entry.SentAt,
	}
	if entry.BatchID != nil {
		rc.BatchID = *entry.BatchID
	}

	if err := d.receipts.StoreReceipt(ctx, entry.OwnerID, entry.ID, rc); err != nil {
		d.logger.Warn("storing receipt failed", "delivery_log_id", entry.ID, "error", err)
	}
}

// BatchRecipient is one target of an ad-hoc send.
type BatchRecipient struct {
	Phone string `json:"phone"`
	Name  string `json:"name"`
}

// SendBatchRequest is an ad-hoc multi-recipient send. Content is rendered
// per recipient, so templates with recipient tokens personalize each copy.
type SendBatchRequest struct {
	OwnerID     int64
	Content     string
	Recipients  []BatchRecipient
	Attachments []string
}

// RecipientResult is the per-recipient outcome inside a batch result.
type RecipientResult struct {
	Recipient         string        `json:"recipient"`
	Name              string        `json:"name,omitempty"`
	Channel           model.Channel `json:"channel"`
	Success           bool          `json:"success"`
	ProviderMessageID string        `json:"provider_message_id,omitempty"`
	Error             string        `json:"error,omitempty"`
}

// BatchResult aggregates a fan-out. Success is true only with zero
// failures; partial success is a reportable outcome, not an error.
type BatchResult struct {
	BatchID   string            `json:"batch_id"`
	Total     int               `json:"total"`
	Succeeded int               `json:"success"`
	Failed    int               `json:"failed"`
	Results   []RecipientResult `json:"results"`
}

func (r *BatchResult) Success() bool { return r.Failed == 0 }

// SendBatch fans out one logical message to every recipient. Recipients are
// independent units of work: each failure is recorded and counted, never
// raised, and never aborts the rest. The returned error covers request
// validation only.
func (d *Dispatcher) SendBatch(ctx context.Context, req SendBatchRequest) (*BatchResult, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, apperr.NewValidation("content", "must not be empty")
	}
	if len(req.Recipients) == 0 {
		return nil, apperr.NewValidation("recipients", "must not be empty")
	}

	profile, err := d.source.OwnerProfile(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}
	sender := render.Sender{
		Phone:   profile.PhoneNumber,
		Company: profile.CompanyName,
		Manager: profile.ManagerName,
	}

	batchID := uuid.NewString()
	results := make([]RecipientResult, len(req.Recipients))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	for i, rcpt := range req.Recipients {
		i, rcpt := i, rcpt
		g.Go(func() error {
			results[i] = d.sendOne(gctx, req, rcpt, sender, batchID)
			return nil
		})
	}
	_ = g.Wait()

	res := &BatchResult{
		BatchID: batchID,
		Total:   len(req.Recipients),
		Results: results,
	}
	for _, r := range results {
		if r.Success {
			res.Succeeded++
		} else {
			res.Failed++
		}
	}

	d.logger.Info("batch send completed",
		"batch_id", batchID,
		"total", res.Total,
		"success", res.Succeeded,
		"failed", res.Failed,
	)
	return res, nil
}

func (d *Dispatcher) sendOne(ctx context.Context, req SendBatchRequest, rcpt BatchRecipient, sender render.Sender, batchID string) RecipientResult {
	rendered := render.RenderAt(req.Content,
		render.Recipient{Name: rcpt.Name, Phone: rcpt.Phone},
		sender,
		d.now(),
	)
	channel := render.PickChannel(rendered, len(req.Attachments))

	out := RecipientResult{
		Recipient: normalizePhone(rcpt.Phone),
		Name:      rcpt.Name,
		Channel:   channel,
	}

	var providerID string
	var sendErr error

	switch {
	case len(render.UnresolvedTokens(rendered)) > 0:
		sendErr = fmt.Errorf("unresolved tokens: %s", strings.Join(render.UnresolvedTokens(rendered), ", "))
	case !validMobile(out.Recipient):
		sendErr = fmt.Errorf("invalid recipient number: %q", rcpt.Phone)
	default:
		providerID, sendErr = d.provider.Send(ctx, out.Recipient, sender.Phone, rendered, channel, req.Attachments)
	}

	status := model.DeliverySent
	if sendErr != nil {
		status = model.DeliveryFailed
		out.Error = sendErr.Error()
	} else {
		out.Success = true
		out.ProviderMessageID = providerID
	}

	entry := &model.DeliveryLog{
		OwnerID:         req.OwnerID,
		BatchID:         &batchID,
		Channel:         channel,
		Recipient:       out.Recipient,
		RecipientName:   rcpt.Name,
		RenderedContent: rendered,
		Status:          status,
		SentAt:          d.now().UTC(),
	}
	if providerID != "" {
		entry.ProviderMessageID = &providerID
	}
	if sendErr != nil {
		msg := sendErr.Error()
		entry.ErrorMessage = &msg
	}

	if err := d.deliveries.Append(ctx, entry); err != nil {
		d.logger.Error("appending delivery log failed", "batch_id", batchID, "recipient", out.Recipient, "error", err)
	}

	d.metrics.IncDispatch(string(status), string(channel))
	d.storeReceipt(ctx, entry)
	return out
}
