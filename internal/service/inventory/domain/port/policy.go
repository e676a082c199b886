// internal/service/inventory/domain/port/policy.go
package port

import "context"

// ReservationPolicy 在创建预占前做业务准入判断，例如单次限购数量。
// 规则的具体表达方式（CEL 表达式等）由基础设施层适配。
type ReservationPolicy interface {
	// Allow 返回 false 表示请求被策略拒绝。
	Allow(ctx context.Context, productID string, quantity int64) (bool, error)
}
