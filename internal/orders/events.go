package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventProofAttached      = "OrderProofAttached"
	EventStockReserved      = "StockReserved"
	EventStockRejected      = "StockRejected"
	EventStockReleased      = "StockReleased"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"` // e.g. "storefront-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID       int64           `json:"order_id"`
	ExternalID    string          `json:"external_id,omitempty"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Items         []Line          `json:"items"`
	Total         decimal.Decimal `json:"total"`
}

// StatusChangedPayload carries the order lines so consumers can act on them
// without reading the order back.
type StatusChangedPayload struct {
	OrderID int64  `json:"order_id"`
	From    Status `json:"from"`
	To      Status `json:"to"`
	Items   []Line `json:"items,omitempty"`
}

type ProofAttachedPayload struct {
	OrderID  int64  `json:"order_id"`
	ProofRef string `json:"proof_ref"`
}

// StockShortage describes one line the inventory could not cover.
type StockShortage struct {
	ProductID int64  `json:"product_id"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size"`
	Required  int    `json:"required"`
	Available int    `json:"available"`
}

type StockReservedPayload struct {
	OrderID int64  `json:"order_id"`
	Items   []Line `json:"items"`
}

type StockRejectedPayload struct {
	OrderID int64           `json:"order_id"`
	Reason  string          `json:"reason"` // OUT_OF_STOCK
	Details []StockShortage `json:"details,omitempty"`
}

type StockReleasedPayload struct {
	OrderID int64 `json:"order_id"`
}
