// internal/service/inventory/domain/repository.go
package domain

import (
	"context"
	"time"
)

// ReservationRepository 定义了预占聚合的持久化接口。
// 它位于领域层，但由基础设施层实现。
//
// 不超卖的核心约束由实现保证：CreateReservation 的 "读库存-算已占-写入"
// 必须在同一个隔离的事务里完成（行锁或可串行化隔离），多个进程实例
// 并发调用时依然成立——正确性托付给事务型存储，而不是进程内的锁。
type ReservationRepository interface {
	// CreateReservation 原子地完成可售检查并写入一条 ACTIVE 预占。
	// 返回写入后的剩余可售量；可售不足时返回 *InsufficientStockError，
	// 不产生任何部分写入。
	CreateReservation(ctx context.Context, r *Reservation) (available int64, err error)

	// CommitReservation 原子地完成：校验预占仍为 ACTIVE、
	// 条件扣减实体库存（仅当 physical_stock >= quantity）、
	// 将预占置为 COMMITTED 并关联订单。每条预占最多扣减一次。
	CommitReservation(ctx context.Context, reservationID, orderID string) error

	// ReleaseReservation 将 ACTIVE 预占置为 RELEASED。不动实体库存。
	ReleaseReservation(ctx context.Context, reservationID string) error

	// ExtendReservation 将 ACTIVE 预占的过期时间向后推移 extendBy。
	ExtendReservation(ctx context.Context, reservationID string, extendBy time.Duration) error

	// ExpireDue 把所有过期的 ACTIVE 预占批量置为 EXPIRED，返回条数。
	// 幂等：重复执行找不到可过期的行，返回 0。
	ExpireDue(ctx context.Context, now time.Time) (int64, error)

	// AvailableStock 计算当前可售量（钳到零）。展示用途的软读取，
	// 允许轻微滞后，不要求与 CreateReservation 的检查同一隔离级别。
	AvailableStock(ctx context.Context, productID, variantID string) (int64, error)

	// FindByID 按 ID 查找预占。
	FindByID(ctx context.Context, reservationID string) (*Reservation, error)
}
