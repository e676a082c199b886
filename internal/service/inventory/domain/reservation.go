// internal/service/inventory/domain/reservation.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status 定义了库存预占的生命周期状态
type Status string

const (
	StatusActive    Status = "ACTIVE"    // 占用中，计入已预占量
	StatusCommitted Status = "COMMITTED" // 已提交，实体库存已扣减并关联订单
	StatusReleased  Status = "RELEASED"  // 已主动释放（结账取消）
	StatusExpired   Status = "EXPIRED"   // 已超时，由清扫任务批量置为此状态
)

// IsTerminal 判断状态是否为终态。终态之间以及终态回到 ACTIVE 的流转都是非法的。
func (s Status) IsTerminal() bool {
	return s == StatusCommitted || s == StatusReleased || s == StatusExpired
}

// Holder 标识预占的持有者：登录用户或匿名会话，至少要有其一。
// 两者同时存在时视为已登录的会话，一并保留。
type Holder struct {
	UserID    string
	SessionID string
}

// Validate 校验持有者信息是否完整。
func (h Holder) Validate() error {
	if h.UserID == "" && h.SessionID == "" {
		return ErrMissingHolder
	}
	return nil
}

// Reservation 是库存预占聚合的根实体。
// 它对某个 StockItem 持有一段限时的数量占用，在提交前不扣减实体库存。
type Reservation struct {
	ID        string
	ProductID string
	VariantID string // 为空表示对商品本体而非某个变体的预占
	Quantity  int64
	Holder    Holder
	Status    Status
	OrderID   string // 提交时关联的订单号
	CreatedAt time.Time
	ExpiresAt time.Time
}

// NewReservation 创建一个新的 ACTIVE 预占，有效期为 now + ttl。
// 调用方负责先完成数量和持有者的校验。
func NewReservation(productID, variantID string, quantity int64, holder Holder, ttl time.Duration) *Reservation {
	now := time.Now().UTC()
	return &Reservation{
		ID:        uuid.New().String(),
		ProductID: productID,
		VariantID: variantID,
		Quantity:  quantity,
		Holder:    holder,
		Status:    StatusActive,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// IsActive 判断预占在 now 时刻是否仍然占用库存。
// 只有 ACTIVE 且未过期的预占才计入已预占量。
func (r *Reservation) IsActive(now time.Time) bool {
	return r.Status == StatusActive && r.ExpiresAt.After(now)
}

// Commit 将预占置为已提交并关联订单。
// 只允许从 ACTIVE 流转，重复提交会失败。
func (r *Reservation) Commit(orderID string) error {
	if r.Status != StatusActive {
		return ErrReservationNotActive
	}
	r.Status = StatusCommitted
	r.OrderID = orderID
	return nil
}

// Release 主动释放预占。对终态预占是失败而不是静默成功，
// 调用方据此得知该预占已被其他路径处理过。
func (r *Reservation) Release() error {
	if r.Status != StatusActive {
		return ErrReservationNotActive
	}
	r.Status = StatusReleased
	return nil
}

// Expire 将预占置为已过期，只由清扫任务调用。
func (r *Reservation) Expire() error {
	if r.Status != StatusActive {
		return ErrReservationNotActive
	}
	r.Status = StatusExpired
	return nil
}

// Extend 把过期时间向后推移，用于用户仍在结账流程中时的续期。
func (r *Reservation) Extend(d time.Duration) error {
	if r.Status != StatusActive {
		return ErrReservationNotActive
	}
	r.ExpiresAt = r.ExpiresAt.Add(d)
	return nil
}
