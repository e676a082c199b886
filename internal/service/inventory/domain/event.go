// internal/service/inventory/domain/event.go
package domain

import "time"

// EventType 标识预占生命周期事件的种类。
type EventType string

const (
	EventReserved  EventType = "RESERVED"
	EventCommitted EventType = "COMMITTED"
	EventReleased  EventType = "RELEASED"
	EventSwept     EventType = "SWEPT" // 清扫事件，Quantity 字段为本次过期的预占条数
)

// ReservationEvent 是发往下游（订单流程、报表）的集成事件。
type ReservationEvent struct {
	Type          EventType `json:"type"`
	ReservationID string    `json:"reservation_id,omitempty"`
	ProductID     string    `json:"product_id,omitempty"`
	VariantID     string    `json:"variant_id,omitempty"`
	Quantity      int64     `json:"quantity"`
	OrderID       string    `json:"order_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
