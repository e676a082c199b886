// internal/service/inventory/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

// 预占模块的错误分类：
//   - 校验类（参数非法），调用前就能发现，不会发起事务；
//   - 容量类（库存不足），是预期内的业务结果，由结账流程转达给用户；
//   - 状态类（预占不存在/已终态），通常意味着调用方 bug 或竞态已被另一路径解决。
var (
	ErrInvalidQuantity = errors.New("reservation quantity must be positive")
	ErrMissingHolder   = errors.New("reservation requires a user id or a session id")

	ErrStockItemNotFound    = errors.New("stock item not found")
	ErrReservationNotFound  = errors.New("reservation not found")
	ErrReservationNotActive = errors.New("reservation is not active")

	// ErrInsufficientStockAtCommit 表示预占到提交之间实体库存被其他路径扣减，
	// 条件扣减未命中任何行。
	ErrInsufficientStockAtCommit = errors.New("insufficient physical stock at commit")

	// ErrReservationRejected 表示请求被预占策略拒绝（例如单次限购）。
	ErrReservationRejected = errors.New("reservation rejected by policy")
)

// InsufficientStockError 表示创建预占时可售量不足。
// 携带当前实际可售量，供结账流程展示给用户。
type InsufficientStockError struct {
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: only %d available", e.Available)
}
