package service_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/haneulsoft/reserve-notify/internal/apperr"
	"github.com/haneulsoft/reserve-notify/internal/cache"
	"github.com/haneulsoft/reserve-notify/internal/model"
	"github.com/haneulsoft/reserve-notify/internal/repo"
)

// In-memory stand-ins for the storage interfaces. They implement just
// enough semantics (pending guards, locked_at claims, the per-pair
// uniqueness) for the services under test to behave like production.

type fakeScheduleRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*model.ScheduledMessage

	upsertErr error
	claimErr  error
}

func newFakeScheduleRepo() *fakeScheduleRepo {
	return &fakeScheduleRepo{nextID: 1, rows: make(map[int64]*model.ScheduledMessage)}
}

func (f *fakeScheduleRepo) Upsert(_ context.Context, m *model.ScheduledMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.upsertErr != nil {
		return f.upsertErr
	}

	for _, row := range f.rows {
		if row.RuleID == m.RuleID && row.ReservationID == m.ReservationID {
			if row.Status != model.SchedulePending || row.LockedAt != nil {
				return nil
			}
			row.SendAt = m.SendAt
			row.Recipient = m.Recipient
			row.RecipientName = m.RecipientName
			row.TemplateID = m.TemplateID
			m.ID = row.ID
			return nil
		}
	}

	m.ID = f.nextID
	f.nextID++
	m.Status = model.SchedulePending
	cp := *m
	f.rows[cp.ID] = &cp
	return nil
}

func (f *fakeScheduleRepo) GetByID(_ context.Context, ownerID, id int64) (*model.ScheduledMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	row, ok := f.rows[id]
	if !ok || row.OwnerID != ownerID {
		return nil, apperr.NewNotFound("scheduled message", id)
	}
	cp := *row
	return &cp, nil
}

func (f *fakeScheduleRepo) ListPendingByOwner(_ context.Context, ownerID int64, _ string, _, _ int) ([]model.ScheduledMessage, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []model.ScheduledMessage
	for _, row := range f.rows {
		if row.OwnerID == ownerID && row.Status == model.SchedulePending {
			out = append(out, *row)
		}
	}
	return out, len(out), nil
}

func (f *fakeScheduleRepo) ListPendingByRule(_ context.Context, ruleID int64) ([]model.ScheduledMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []model.ScheduledMessage
	for _, row := range f.rows {
		if row.RuleID == ruleID && row.Status == model.SchedulePending {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeScheduleRepo) ClaimDue(_ context.Context, now time.Time, limit int) ([]model.ScheduledMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.claimErr != nil {
		return nil, f.claimErr
	}

	var out []model.ScheduledMessage
	for _, row := range f.rows {
		if len(out) >= limit {
			break
		}
		if row.Status == model.SchedulePending && row.LockedAt == nil && !row.SendAt.After(now) {
			t := now
			row.LockedAt = &t
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeScheduleRepo) ListStaleClaims(_ context.Context, before time.Time) ([]model.ScheduledMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []model.ScheduledMessage
	for _, row := range f.rows {
		if row.Status == model.SchedulePending && row.LockedAt != nil && row.LockedAt.Before(before) {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeScheduleRepo) Finalize(_ context.Context, id int64, status model.ScheduleStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	row, ok := f.rows[id]
	if !ok || row.Status != model.SchedulePending {
		return apperr.NewNotFound("scheduled message", id)
	}
	if !status.Terminal() {
		return fmt.Errorf("finalize to non-terminal status %q", status)
	}
	row.Status = status
	return nil
}

func (f *fakeScheduleRepo) Release(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if row, ok := f.rows[id]; ok {
		row.LockedAt = nil
	}
	return nil
}

func (f *fakeScheduleRepo) Cancel(_ context.Context, ownerID, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	row, ok := f.rows[id]
	if !ok || row.OwnerID != ownerID {
		return apperr.NewNotFound("scheduled message", id)
	}
	if row.Status != model.SchedulePending || row.LockedAt != nil {
		return apperr.NewConflict("scheduled message is no longer pending")
	}
	row.Status = model.ScheduleCancelled
	return nil
}

func (f *fakeScheduleRepo) get(id int64) model.ScheduledMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.rows[id]
}

func (f *fakeScheduleRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func (f *fakeScheduleRepo) add(m model.ScheduledMessage) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.ID = f.nextID
	f.nextID++
	if m.Status == "" {
		m.Status = model.SchedulePending
	}
	f.rows[m.ID] = &m
	return m.ID
}

type fakeRuleRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*model.Rule

	listErr error
}

func newFakeRuleRepo() *fakeRuleRepo {
	return &fakeRuleRepo{nextID: 1, rows: make(map[int64]*model.Rule)}
}

func (f *fakeRuleRepo) Create(_ context.Context, r *model.Rule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r.ID = f.nextID
	f.nextID++
	cp := *r
	f.rows[cp.ID] = &cp
	return nil
}

func (f *fakeRuleRepo) Update(_ context.Context, r *model.Rule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[r.ID]
	if !ok || row.OwnerID != r.OwnerID {
		return apperr.NewNotFound("rule", r.ID)
	}
	cp := *r
	f.rows[cp.ID] = &cp
	return nil
}

func (f *fakeRuleRepo) Delete(_ context.Context, ownerID, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || row.OwnerID != ownerID {
		return apperr.NewNotFound("rule", id)
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeRuleRepo) GetByID(_ context.Context, ownerID, id int64) (*model.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || row.OwnerID != ownerID {
		return nil, apperr.NewNotFound("rule", id)
	}
	cp := *row
	return &cp, nil
}

func (f *fakeRuleRepo) ListByOwner(_ context.Context, ownerID int64) ([]model.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Rule
	for _, row := range f.rows {
		if row.OwnerID == ownerID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeRuleRepo) ListActive(_ context.Context) ([]model.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []model.Rule
	for _, row := range f.rows {
		if row.Active {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeRuleRepo) ListActiveByOwner(_ context.Context, ownerID int64) ([]model.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []model.Rule
	for _, row := range f.rows {
		if row.Active && row.OwnerID == ownerID {
			out = append(out, *row)
		}
	}
	return out, nil
}

type fakeTemplateRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*model.Template
}

func newFakeTemplateRepo() *fakeTemplateRepo {
	return &fakeTemplateRepo{nextID: 1, rows: make(map[int64]*model.Template)}
}

func (f *fakeTemplateRepo) Create(_ context.Context, t *model.Template) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.ID = f.nextID
	f.nextID++
	cp := *t
	f.rows[cp.ID] = &cp
	return nil
}

func (f *fakeTemplateRepo) Update(_ context.Context, t *model.Template) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[t.ID]
	if !ok || row.OwnerID != t.OwnerID {
		return apperr.NewNotFound("template", t.ID)
	}
	cp := *t
	f.rows[cp.ID] = &cp
	return nil
}

func (f *fakeTemplateRepo) Delete(_ context.Context, ownerID, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || row.OwnerID != ownerID {
		return apperr.NewNotFound("template", id)
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeTemplateRepo) GetByID(_ context.Context, ownerID, id int64) (*model.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || row.OwnerID != ownerID {
		return nil, apperr.NewNotFound("template", id)
	}
	cp := *row
	return &cp, nil
}

func (f *fakeTemplateRepo) ListByOwner(_ context.Context, ownerID int64) ([]model.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Template
	for _, row := range f.rows {
		if row.OwnerID == ownerID {
			out = append(out, *row)
		}
	}
	return out, nil
}

type fakeDeliveryRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   []model.DeliveryLog
}

func newFakeDeliveryRepo() *fakeDeliveryRepo {
	return &fakeDeliveryRepo{nextID: 1}
}

func (f *fakeDeliveryRepo) Append(_ context.Context, d *model.DeliveryLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d.ID = f.nextID
	f.nextID++
	f.rows = append(f.rows, *d)
	return nil
}

func (f *fakeDeliveryRepo) List(_ context.Context, ownerID int64, _ repo.DeliveryFilter) ([]model.DeliveryLog, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.DeliveryLog
	for _, row := range f.rows {
		if row.OwnerID == ownerID {
			out = append(out, row)
		}
	}
	return out, len(out), nil
}

func (f *fakeDeliveryRepo) Stats(_ context.Context, ownerID int64) (*model.DeliveryStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &model.DeliveryStats{}
	for _, row := range f.rows {
		if row.OwnerID != ownerID {
			continue
		}
		stats.Total++
		if row.Status == model.DeliverySent {
			stats.Sent++
		} else {
			stats.Failed++
		}
		switch row.Channel {
		case model.ChannelSMS:
			stats.SMS++
		case model.ChannelLMS:
			stats.LMS++
		case model.ChannelMMS:
			stats.MMS++
		}
	}
	return stats, nil
}

func (f *fakeDeliveryRepo) all() []model.DeliveryLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.DeliveryLog(nil), f.rows...)
}

type fakeReservationSource struct {
	mu           sync.Mutex
	reservations map[int64]*model.Reservation
	profiles     map[int64]*model.OwnerProfile

	profileErr error
}

func newFakeReservationSource() *fakeReservationSource {
	return &fakeReservationSource{
		reservations: make(map[int64]*model.Reservation),
		profiles:     make(map[int64]*model.OwnerProfile),
	}
}

func (f *fakeReservationSource) GetByID(_ context.Context, id int64) (*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.reservations[id]
	if !ok {
		return nil, apperr.NewNotFound("reservation", id)
	}
	cp := *row
	return &cp, nil
}

func (f *fakeReservationSource) ListConfirmedUpcoming(_ context.Context) ([]model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Reservation
	for _, row := range f.reservations {
		if row.Status == model.ReservationConfirmed {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeReservationSource) OwnerProfile(_ context.Context, ownerID int64) (*model.OwnerProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	row, ok := f.profiles[ownerID]
	if !ok {
		return nil, apperr.NewNotFound("owner profile", ownerID)
	}
	cp := *row
	return &cp, nil
}

func (f *fakeReservationSource) addReservation(r model.Reservation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := r
	f.reservations[cp.ID] = &cp
}

func (f *fakeReservationSource) addProfile(p model.OwnerProfile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := p
	f.profiles[cp.ID] = &cp
}

type fakeReceiptCache struct {
	mu   sync.Mutex
	rows map[string]cache.Receipt
}

func newFakeReceiptCache() *fakeReceiptCache {
	return &fakeReceiptCache{rows: make(map[string]cache.Receipt)}
}

func (f *fakeReceiptCache) StoreReceipt(_ context.Context, ownerID, logID int64, r cache.Receipt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[fmt.Sprintf("%d:%d", ownerID, logID)] = r
	return nil
}

func (f *fakeReceiptCache) GetReceipt(_ context.Context, ownerID, logID int64) (*cache.Receipt, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[fmt.Sprintf("%d:%d", ownerID, logID)]
	if !ok {
		return nil, false, nil
	}
	cp := r
	return &cp, true, nil
}

func (f *fakeReceiptCache) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

// fakeProvider records outbound calls and fails numbers on its deny list.
type fakeProvider struct {
	mu     sync.Mutex
	calls  []providerCall
	reject map[string]error
	nextID int
}

type providerCall struct {
	To          string
	From        string
	Content     string
	Channel     model.Channel
	Attachments []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{reject: make(map[string]error)}
}

func (f *fakeProvider) Send(_ context.Context, to, from, content string, channel model.Channel, attachments []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, providerCall{To: to, From: from, Content: content, Channel: channel, Attachments: attachments})
	if err, ok := f.reject[to]; ok {
		return "", err
	}
	f.nextID++
	return fmt.Sprintf("msg-%d", f.nextID), nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
