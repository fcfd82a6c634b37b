package model

import "time"

type Channel string

const (
	ChannelSMS Channel = "SMS"
	ChannelLMS Channel = "LMS"
	ChannelMMS Channel = "MMS"
)

type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

// DeliveryLog is one append-only ledger row per recipient per send attempt.
// ScheduledMessageID is nil for ad-hoc sends; BatchID groups the rows of a
// single multi-recipient request.
type DeliveryLog struct {
	ID                 int64          `json:"id"`
	OwnerID            int64          `json:"owner_id"`
	ScheduledMessageID *int64         `json:"scheduled_message_id,omitempty"`
	BatchID            *string        `json:"batch_id,omitempty"`
	Channel            Channel        `json:"channel"`
	Recipient          string         `json:"recipient"`
	RecipientName      string         `json:"recipient_name,omitempty"`
	RenderedContent    string         `json:"content"`
	Status             DeliveryStatus `json:"status"`
	ProviderMessageID  *string        `json:"provider_message_id,omitempty"`
	ErrorMessage       *string        `json:"error_message,omitempty"`
	SentAt             time.Time      `json:"sent_at"`
}

// DeliveryStats is the aggregate block returned alongside ledger queries.
type DeliveryStats struct {
	Total  int `json:"total"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
	SMS    int `json:"sms"`
	LMS    int `json:"lms"`
	MMS    int `json:"mms"`
}
