// internal/service/inventory/interfaces/http_handler.go
package interfaces

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"stockpile/internal/service/inventory/application"
	"stockpile/internal/service/inventory/domain"
)

// InventoryHandler 封装了 inventory 服务的 HTTP 处理器
type InventoryHandler struct {
	service *application.ReservationService
}

// NewInventoryHandler 创建一个新的 HTTP 处理器实例
func NewInventoryHandler(service *application.ReservationService) *InventoryHandler {
	return &InventoryHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *InventoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/reserve", h.handleReserve)
	mux.HandleFunc("/commit", h.handleCommit)
	mux.HandleFunc("/release", h.handleRelease)
	mux.HandleFunc("/extend", h.handleExtend)
	mux.HandleFunc("/available_stock", h.handleAvailableStock)
}

func (h *InventoryHandler) handleReserve(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var req application.ReserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.Reserve(ctx, &req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *InventoryHandler) handleCommit(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var req application.CommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ReservationID == "" || req.OrderID == "" {
		http.Error(w, "reservation_id and order_id are required", http.StatusBadRequest)
		return
	}

	if err := h.service.Commit(ctx, req.ReservationID, req.OrderID); err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
}

func (h *InventoryHandler) handleRelease(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var req application.ReleaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ReservationID == "" {
		http.Error(w, "reservation_id is required", http.StatusBadRequest)
		return
	}

	if err := h.service.Release(ctx, req.ReservationID); err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
}

func (h *InventoryHandler) handleExtend(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var req application.ExtendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ReservationID == "" {
		http.Error(w, "reservation_id is required", http.StatusBadRequest)
		return
	}

	additional := time.Duration(req.AdditionalMinutes) * time.Minute
	if err := h.service.Extend(ctx, req.ReservationID, additional); err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
}

func (h *InventoryHandler) handleAvailableStock(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	productID := r.URL.Query().Get("product_id")
	variantID := r.URL.Query().Get("variant_id")
	if productID == "" {
		http.Error(w, "product_id is required", http.StatusBadRequest)
		return
	}

	available, err := h.service.GetAvailableStock(ctx, productID, variantID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(application.AvailableStockResponse{
		ProductID:      productID,
		VariantID:      variantID,
		AvailableStock: available,
	})
}

// writeDomainError 根据错误类型返回不同的 HTTP 状态码。
// 容量类错误是预期内的业务结果，用 409 表达"刚刚售罄"；
// 基础设施错误统一 500，对用户表现为"稍后重试"。
func writeDomainError(w http.ResponseWriter, err error) {
	var insufficient *domain.InsufficientStockError
	var statusCode int
	switch {
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrMissingHolder):
		statusCode = http.StatusBadRequest
	case errors.Is(err, domain.ErrReservationNotFound),
		errors.Is(err, domain.ErrStockItemNotFound):
		statusCode = http.StatusNotFound
	case errors.As(err, &insufficient):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error":           err.Error(),
			"available_stock": insufficient.Available,
		})
		return
	case errors.Is(err, domain.ErrInsufficientStockAtCommit),
		errors.Is(err, domain.ErrReservationNotActive):
		statusCode = http.StatusConflict
	case errors.Is(err, domain.ErrReservationRejected):
		statusCode = http.StatusForbidden
	default:
		statusCode = http.StatusInternalServerError
	}
	http.Error(w, err.Error(), statusCode)
}
