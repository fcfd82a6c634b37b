package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/haneulsoft/reserve-notify/internal/apperr"
	"github.com/haneulsoft/reserve-notify/internal/model"
	"github.com/haneulsoft/reserve-notify/internal/service"
)

func newDispatcher(schedules *fakeScheduleRepo, templates *fakeTemplateRepo, deliveries *fakeDeliveryRepo, source *fakeReservationSource, provider *fakeProvider) *service.Dispatcher {
	return service.NewDispatcher(service.DispatcherDeps{
		Schedules:  schedules,
		Templates:  templates,
		Deliveries: deliveries,
		Source:     source,
		Provider:   provider,
		Workers:    4,
	}).WithClock(clock)
}

func seedOwner(source *fakeReservationSource) {
	source.addProfile(model.OwnerProfile{
		ID:          1,
		PhoneNumber: "0212345678",
		CompanyName: "스페이스온",
		ManagerName: "박영희",
	})
}

func TestDrainDue_SendsDueMessage(t *testing.T) {
	t.Parallel()

	schedules := newFakeScheduleRepo()
	templates := newFakeTemplateRepo()
	deliveries := newFakeDeliveryRepo()
	source := newFakeReservationSource()
	provider := newFakeProvider()
	seedOwner(source)

	tpl := &model.Template{OwnerID: 1, Name: "reminder", Content: "#{이름}님, 예약 안내드립니다.", Active: true}
	if err := templates.Create(context.Background(), tpl); err != nil {
		t.Fatal(err)
	}

	id := schedules.add(model.ScheduledMessage{
		OwnerID: 1, RuleID: 5, ReservationID: 7, TemplateID: tpl.ID,
		Recipient: "010-1234-5678", RecipientName: "김철수",
		SendAt: now.Add(-time.Minute),
	})

	d := newDispatcher(schedules, templates, deliveries, source, provider)
	sent, failed := d.DrainDue(context.Background())

	if sent != 1 || failed != 0 {
		t.Fatalf("expected sent=1 failed=0, got sent=%d failed=%d", sent, failed)
	}
	if got := schedules.get(id).Status; got != model.ScheduleSent {
		t.Fatalf("expected schedule sent, got %s", got)
	}

	logs := deliveries.all()
	if len(logs) != 1 {
		t.Fatalf("expected one ledger row, got %d", len(logs))
	}
	entry := logs[0]
	if entry.Status != model.DeliverySent {
		t.Fatalf("expected ledger sent, got %s", entry.Status)
	}
	if entry.Recipient != "01012345678" {
		t.Fatalf("expected normalized recipient, got %q", entry.Recipient)
	}
	if entry.RenderedContent != "김철수님, 예약 안내드립니다." {
		t.Fatalf("unexpected rendered content: %q", entry.RenderedContent)
	}
	if entry.ScheduledMessageID == nil || *entry.ScheduledMessageID != id {
		t.Fatalf("ledger row not linked to schedule: %+v", entry)
	}
	if entry.Channel != model.ChannelSMS {
		t.Fatalf("expected SMS, got %s", entry.Channel)
	}
	if entry.ProviderMessageID == nil || *entry.ProviderMessageID == "" {
		t.Fatal("expected a provider message id")
	}
}

func TestDrainDue_LeavesFutureMessagesAlone(t *testing.T) {
	t.Parallel()

	schedules := newFakeScheduleRepo()
	provider := newFakeProvider()
	source := newFakeReservationSource()
	seedOwner(source)

	id := schedules.add(model.ScheduledMessage{
		OwnerID: 1, RuleID: 5, ReservationID: 7, TemplateID: 1,
		Recipient: "01012345678",
		SendAt:    now.Add(time.Hour),
	})

	d := newDispatcher(schedules, newFakeTemplateRepo(), newFakeDeliveryRepo(), source, provider)
	sent, failed := d.DrainDue(context.Background())

	if sent != 0 || failed != 0 {
		t.Fatalf("expected nothing processed, got sent=%d failed=%d", sent, failed)
	}
	if got := schedules.get(id).Status; got != model.SchedulePending {
		t.Fatalf("expected still pending, got %s", got)
	}
	if provider.callCount() != 0 {
		t.Fatalf("expected no provider calls, got %d", provider.callCount())
	}
}

func TestDrainDue_MissingTemplateFailsTerminally(t *testing.T) {
	t.Parallel()

	schedules := newFakeScheduleRepo()
	deliveries := newFakeDeliveryRepo()
	source := newFakeReservationSource()
	seedOwner(source)

	id := schedules.add(model.ScheduledMessage{
		OwnerID: 1, RuleID: 5, ReservationID: 7, TemplateID: 99,
		Recipient: "01012345678",
		SendAt:    now.Add(-time.Minute),
	})

	d := newDispatcher(schedules, newFakeTemplateRepo(), deliveries, source, newFakeProvider())
	sent, failed := d.DrainDue(context.Background())

	if sent != 0 || failed != 1 {
		t.Fatalf("expected sent=0 failed=1, got sent=%d failed=%d", sent, failed)
	}
	if got := schedules.get(id).Status; got != model.ScheduleFailed {
		t.Fatalf("expected failed, got %s", got)
	}

	logs := deliveries.all()
	if len(logs) != 1 || logs[0].ErrorMessage == nil {
		t.Fatalf("expected one ledger row with an error message, got %+v", logs)
	}
}

func TestDrainDue_ProfileErrorReleasesClaim(t *testing.T) {
	t.Parallel()

	schedules := newFakeScheduleRepo()
	templates := newFakeTemplateRepo()
	deliveries := newFakeDeliveryRepo()
	source := newFakeReservationSource()
	source.profileErr = context.DeadlineExceeded

	tpl := &model.Template{OwnerID: 1, Name: "r", Content: "예약 안내", Active: true}
	if err := templates.Create(context.Background(), tpl); err != nil {
		t.Fatal(err)
	}

	id := schedules.add(model.ScheduledMessage{
		OwnerID: 1, RuleID: 5, ReservationID: 7, TemplateID: tpl.ID,
		Recipient: "01012345678",
		SendAt:    now.Add(-time.Minute),
	})

	d := newDispatcher(schedules, templates, deliveries, source, newFakeProvider())
	d.DrainDue(context.Background())

	row := schedules.get(id)
	if row.Status != model.SchedulePending {
		t.Fatalf("expected still pending after release, got %s", row.Status)
	}
	if row.LockedAt != nil {
		t.Fatal("expected claim released")
	}
	if len(deliveries.all()) != 0 {
		t.Fatal("expected no ledger row for a released claim")
	}
}

func TestDrainDue_InvalidRecipientFails(t *testing.T) {
	t.Parallel()

	schedules := newFakeScheduleRepo()
	templates := newFakeTemplateRepo()
	deliveries := newFakeDeliveryRepo()
	source := newFakeReservationSource()
	provider := newFakeProvider()
	seedOwner(source)

	tpl := &model.Template{OwnerID: 1, Name: "r", Content: "예약 안내", Active: true}
	if err := templates.Create(context.Background(), tpl); err != nil {
		t.Fatal(err)
	}

	id := schedules.add(model.ScheduledMessage{
		OwnerID: 1, RuleID: 5, ReservationID: 7, TemplateID: tpl.ID,
		Recipient: "021234", // not a mobile number
		SendAt:    now.Add(-time.Minute),
	})

	d := newDispatcher(schedules, templates, deliveries, source, provider)
	sent, failed := d.DrainDue(context.Background())

	if sent != 0 || failed != 1 {
		t.Fatalf("expected sent=0 failed=1, got sent=%d failed=%d", sent, failed)
	}
	if got := schedules.get(id).Status; got != model.ScheduleFailed {
		t.Fatalf("expected failed, got %s", got)
	}
	if provider.callCount() != 0 {
		t.Fatalf("expected no provider call for invalid number, got %d", provider.callCount())
	}
}

func TestDrainDue_ExpiresStaleClaims(t *testing.T) {
	t.Parallel()

	schedules := newFakeScheduleRepo()
	templates := newFakeTemplateRepo()
	deliveries := newFakeDeliveryRepo()
	source := newFakeReservationSource()
	provider := newFakeProvider()
	seedOwner(source)

	tpl := &model.Template{OwnerID: 1, Name: "r", Content: "예약 안내", Active: true}
	if err := templates.Create(context.Background(), tpl); err != nil {
		t.Fatal(err)
	}

	// Claimed half an hour ago and never finalized: the claiming process
	// died. Without recovery this row is unreachable for ClaimDue and
	// Cancel alike.
	staleLock := now.Add(-30 * time.Minute)
	staleID := schedules.add(model.ScheduledMessage{
		OwnerID: 1, RuleID: 5, ReservationID: 7, TemplateID: tpl.ID,
		Recipient: "01012345678",
		SendAt:    now.Add(-35 * time.Minute),
		LockedAt:  &staleLock,
	})

	// A claim from the current pass stays untouched.
	freshLock := now.Add(-time.Minute)
	freshID := schedules.add(model.ScheduledMessage{
		OwnerID: 1, RuleID: 5, ReservationID: 8, TemplateID: tpl.ID,
		Recipient: "01011112222",
		SendAt:    now.Add(-2 * time.Minute),
		LockedAt:  &freshLock,
	})

	d := newDispatcher(schedules, templates, deliveries, source, provider)
	sent, failed := d.DrainDue(context.Background())

	// Both rows are already claimed, so the pass itself claims nothing.
	if sent != 0 || failed != 0 {
		t.Fatalf("expected sent=0 failed=0, got sent=%d failed=%d", sent, failed)
	}

	if got := schedules.get(staleID).Status; got != model.ScheduleFailed {
		t.Fatalf("expected stale claim failed, got %s", got)
	}
	fresh := schedules.get(freshID)
	if fresh.Status != model.SchedulePending || fresh.LockedAt == nil {
		t.Fatalf("expected fresh claim untouched, got %+v", fresh)
	}
	if provider.callCount() != 0 {
		t.Fatalf("expired claims must not be resent, got %d provider calls", provider.callCount())
	}

	logs := deliveries.all()
	if len(logs) != 1 {
		t.Fatalf("expected one ledger row for the expired claim, got %d", len(logs))
	}
	entry := logs[0]
	if entry.Status != model.DeliveryFailed || entry.ErrorMessage == nil {
		t.Fatalf("expected failed ledger row with an error message, got %+v", entry)
	}
	if !strings.Contains(*entry.ErrorMessage, "claim expired") {
		t.Fatalf("unexpected error message: %q", *entry.ErrorMessage)
	}
	if entry.ScheduledMessageID == nil || *entry.ScheduledMessageID != staleID {
		t.Fatalf("ledger row not linked to the expired schedule: %+v", entry)
	}
}

func TestDrainDue_StaleRowBecomesCancellableHistory(t *testing.T) {
	t.Parallel()

	schedules := newFakeScheduleRepo()
	templates := newFakeTemplateRepo()
	source := newFakeReservationSource()
	seedOwner(source)

	staleLock := now.Add(-staleAge)
	id := schedules.add(model.ScheduledMessage{
		OwnerID: 1, RuleID: 5, ReservationID: 7, TemplateID: 99,
		Recipient: "01012345678",
		SendAt:    now.Add(-staleAge),
		LockedAt:  &staleLock,
	})

	d := newDispatcher(schedules, templates, newFakeDeliveryRepo(), source, newFakeProvider())
	d.DrainDue(context.Background())

	// Terminal now: the owner sees a failed message instead of an
	// eternally pending one that rejects every cancel.
	if got := schedules.get(id).Status; !got.Terminal() {
		t.Fatalf("expected terminal status after recovery, got %s", got)
	}
}

// staleAge is comfortably past the dispatcher's recovery threshold.
const staleAge = time.Hour

func TestSendBatch_PartialFailureAggregates(t *testing.T) {
	t.Parallel()

	deliveries := newFakeDeliveryRepo()
	source := newFakeReservationSource()
	provider := newFakeProvider()
	seedOwner(source)
	provider.reject["01022222222"] = apperr.NewProvider("G-407", "insufficient balance")

	d := newDispatcher(newFakeScheduleRepo(), newFakeTemplateRepo(), deliveries, source, provider)

	res, err := d.SendBatch(context.Background(), service.SendBatchRequest{
		OwnerID: 1,
		Content: "#{이름}님, 공지드립니다.",
		Recipients: []service.BatchRecipient{
			{Phone: "010-1111-1111", Name: "가"},
			{Phone: "010-2222-2222", Name: "나"},
			{Phone: "010-3333-3333", Name: "다"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Total != 3 || res.Succeeded != 2 || res.Failed != 1 {
		t.Fatalf("expected total=3 success=2 failed=1, got %+v", res)
	}
	if res.Success() {
		t.Fatal("expected Success()=false with one failure")
	}
	if res.BatchID == "" {
		t.Fatal("expected a batch id")
	}
	if len(res.Results) != 3 {
		t.Fatalf("expected 3 per-recipient results, got %d", len(res.Results))
	}

	// Results keep request order regardless of worker scheduling.
	if res.Results[1].Recipient != "01022222222" || res.Results[1].Success {
		t.Fatalf("expected recipient 2 to fail, got %+v", res.Results[1])
	}
	if res.Results[1].Error == "" {
		t.Fatal("expected an error string on the failed result")
	}

	logs := deliveries.all()
	if len(logs) != 3 {
		t.Fatalf("expected 3 ledger rows, got %d", len(logs))
	}
	for _, entry := range logs {
		if entry.BatchID == nil || *entry.BatchID != res.BatchID {
			t.Fatalf("ledger row missing batch id: %+v", entry)
		}
		if entry.ScheduledMessageID != nil {
			t.Fatalf("ad-hoc row must not reference a schedule: %+v", entry)
		}
		if !strings.Contains(entry.RenderedContent, "님, 공지드립니다.") {
			t.Fatalf("unexpected rendered content: %q", entry.RenderedContent)
		}
	}
}

func TestDispatch_StoresReceiptsForAcceptedSendsOnly(t *testing.T) {
	t.Parallel()

	schedules := newFakeScheduleRepo()
	templates := newFakeTemplateRepo()
	deliveries := newFakeDeliveryRepo()
	source := newFakeReservationSource()
	provider := newFakeProvider()
	receipts := newFakeReceiptCache()
	seedOwner(source)

	tpl := &model.Template{OwnerID: 1, Name: "r", Content: "예약 안내", Active: true}
	if err := templates.Create(context.Background(), tpl); err != nil {
		t.Fatal(err)
	}

	schedules.add(model.ScheduledMessage{
		OwnerID: 1, RuleID: 5, ReservationID: 7, TemplateID: tpl.ID,
		Recipient: "01012345678",
		SendAt:    now.Add(-time.Minute),
	})
	schedules.add(model.ScheduledMessage{
		OwnerID: 1, RuleID: 5, ReservationID: 8, TemplateID: tpl.ID,
		Recipient: "021234", // fails before the provider
		SendAt:    now.Add(-time.Minute),
	})

	d := service.NewDispatcher(service.DispatcherDeps{
		Schedules:  schedules,
		Templates:  templates,
		Deliveries: deliveries,
		Source:     source,
		Provider:   provider,
		Receipts:   receipts,
		Workers:    2,
	}).WithClock(clock)

	if sent, failed := d.DrainDue(context.Background()); sent != 1 || failed != 1 {
		t.Fatalf("expected sent=1 failed=1, got sent=%d failed=%d", sent, failed)
	}

	if receipts.size() != 1 {
		t.Fatalf("expected one receipt (accepted send only), got %d", receipts.size())
	}

	var sentEntry *model.DeliveryLog
	for _, entry := range deliveries.all() {
		if entry.Status == model.DeliverySent {
			e := entry
			sentEntry = &e
		}
	}
	if sentEntry == nil {
		t.Fatal("expected a sent ledger row")
	}

	rc, ok, err := receipts.GetReceipt(context.Background(), 1, sentEntry.ID)
	if err != nil || !ok {
		t.Fatalf("expected receipt for delivery log %d, ok=%v err=%v", sentEntry.ID, ok, err)
	}
	if rc.ProviderMessageID != *sentEntry.ProviderMessageID {
		t.Fatalf("expected provider id %q, got %q", *sentEntry.ProviderMessageID, rc.ProviderMessageID)
	}
	if rc.Channel != model.ChannelSMS || rc.Status != model.DeliverySent {
		t.Fatalf("unexpected receipt payload: %+v", rc)
	}
	if rc.BatchID != "" {
		t.Fatalf("scheduled sends carry no batch id, got %q", rc.BatchID)
	}
}

func TestSendBatch_ReceiptsCarryBatchID(t *testing.T) {
	t.Parallel()

	deliveries := newFakeDeliveryRepo()
	source := newFakeReservationSource()
	receipts := newFakeReceiptCache()
	seedOwner(source)

	d := service.NewDispatcher(service.DispatcherDeps{
		Schedules:  newFakeScheduleRepo(),
		Templates:  newFakeTemplateRepo(),
		Deliveries: deliveries,
		Source:     source,
		Provider:   newFakeProvider(),
		Receipts:   receipts,
		Workers:    2,
	}).WithClock(clock)

	res, err := d.SendBatch(context.Background(), service.SendBatchRequest{
		OwnerID:    1,
		Content:    "공지드립니다.",
		Recipients: []service.BatchRecipient{{Phone: "01011111111"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rc, ok, err := receipts.GetReceipt(context.Background(), 1, deliveries.all()[0].ID)
	if err != nil || !ok {
		t.Fatalf("expected a receipt, ok=%v err=%v", ok, err)
	}
	if rc.BatchID != res.BatchID {
		t.Fatalf("expected receipt batch id %q, got %q", res.BatchID, rc.BatchID)
	}
}

func TestSendBatch_RejectsEmptyRequest(t *testing.T) {
	t.Parallel()

	source := newFakeReservationSource()
	seedOwner(source)
	d := newDispatcher(newFakeScheduleRepo(), newFakeTemplateRepo(), newFakeDeliveryRepo(), source, newFakeProvider())

	if _, err := d.SendBatch(context.Background(), service.SendBatchRequest{OwnerID: 1, Content: " "}); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error for empty content, got %v", err)
	}
	if _, err := d.SendBatch(context.Background(), service.SendBatchRequest{OwnerID: 1, Content: "내용"}); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error for no recipients, got %v", err)
	}
}

func TestSendBatch_AttachmentsGoOutAsMMS(t *testing.T) {
	t.Parallel()

	deliveries := newFakeDeliveryRepo()
	source := newFakeReservationSource()
	seedOwner(source)
	d := newDispatcher(newFakeScheduleRepo(), newFakeTemplateRepo(), deliveries, source, newFakeProvider())

	res, err := d.SendBatch(context.Background(), service.SendBatchRequest{
		OwnerID:     1,
		Content:     "사진 안내",
		Recipients:  []service.BatchRecipient{{Phone: "01011111111"}},
		Attachments: []string{"https://cdn.example.com/map.png"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Results[0].Channel != model.ChannelMMS {
		t.Fatalf("expected MMS, got %s", res.Results[0].Channel)
	}
}
