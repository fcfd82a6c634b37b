// Package cache keeps provider delivery receipts hot for the message-log
// API. The Postgres ledger row is the durable record; a cached receipt
// expires with the configured TTL and losing one costs a cache miss,
// never data.
package cache

import (
	"context"
	"time"

	"github.com/haneulsoft/reserve-notify/internal/model"
)

// Receipt is the provider acknowledgement for one delivery ledger row.
type Receipt struct {
	ProviderMessageID string               `json:"provider_message_id"`
	Channel           model.Channel        `json:"channel"`
	Status            model.DeliveryStatus `json:"status"`
	BatchID           string               `json:"batch_id,omitempty"`
	SentAt            time.Time            `json:"sent_at"`
}

// ReceiptCache stores receipts keyed by owner and delivery log id, so a
// lookup can never cross tenants.
type ReceiptCache interface {
	StoreReceipt(ctx context.Context, ownerID, logID int64, r Receipt) error
	GetReceipt(ctx context.Context, ownerID, logID int64) (*Receipt, bool, error)
}
