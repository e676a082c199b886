// internal/service/inventory/interfaces/ws_handler.go
package interfaces

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"stockpile/internal/pkg/logger"
	"stockpile/internal/service/inventory/application"
)

// 推送间隔与可售量缓存的 TTL 同量级，客户端看到的数字最多滞后几秒。
const availabilityPushInterval = 3 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool { // 简化处理，允许所有跨域
		return true
	},
}

// AvailabilityWSHandler 通过 WebSocket 向商品详情页推送可售量。
// 走的是软读取路径，和 GET /available_stock 同一数据源。
type AvailabilityWSHandler struct {
	service *application.ReservationService
}

// NewAvailabilityWSHandler 创建一个新的 WebSocket 处理器实例
func NewAvailabilityWSHandler(service *application.ReservationService) *AvailabilityWSHandler {
	return &AvailabilityWSHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册 WebSocket 路由
func (h *AvailabilityWSHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/available_stock", h.serveAvailability)
}

func (h *AvailabilityWSHandler) serveAvailability(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("product_id")
	variantID := r.URL.Query().Get("variant_id")
	if productID == "" {
		http.Error(w, "product_id is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Ctx(r.Context()).Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	go h.pushLoop(conn, productID, variantID)
}

// pushLoop 周期性地把可售量写给客户端，直到连接断开。
func (h *AvailabilityWSHandler) pushLoop(conn *websocket.Conn, productID, variantID string) {
	defer conn.Close()

	// 丢弃客户端的入站消息，同时借助读错误感知断连
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(availabilityPushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			available, err := h.service.GetAvailableStock(context.Background(), productID, variantID)
			if err != nil {
				// 商品可能被下架，结束推送
				return
			}
			payload := application.AvailableStockResponse{
				ProductID:      productID,
				VariantID:      variantID,
				AvailableStock: available,
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(payload); err != nil {
				return
			}
		}
	}
}
