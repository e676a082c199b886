// internal/service/inventory/application/dto.go
package application

// ReserveRequest 是创建预占的请求体
type ReserveRequest struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Quantity  int64  `json:"quantity"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// ReserveResponse 是创建预占的响应体
type ReserveResponse struct {
	ReservationID  string `json:"reservation_id"`
	AvailableStock int64  `json:"available_stock"` // 本次占用之后的剩余可售量
}

// CommitRequest 是提交预占的请求体
type CommitRequest struct {
	ReservationID string `json:"reservation_id"`
	OrderID       string `json:"order_id"`
}

// ReleaseRequest 是释放预占的请求体
type ReleaseRequest struct {
	ReservationID string `json:"reservation_id"`
}

// ExtendRequest 是预占续期的请求体
type ExtendRequest struct {
	ReservationID     string `json:"reservation_id"`
	AdditionalMinutes int    `json:"additional_minutes"`
}

// AvailableStockResponse 是可售量查询的响应体
type AvailableStockResponse struct {
	ProductID      string `json:"product_id"`
	VariantID      string `json:"variant_id,omitempty"`
	AvailableStock int64  `json:"available_stock"`
}
