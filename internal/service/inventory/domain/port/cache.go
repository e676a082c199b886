// internal/service/inventory/domain/port/cache.go
package port

import "context"

// AvailabilityCache 缓存对外展示的可售量。
// 只服务于软读取路径；创建预占时的硬检查永远直达事务型存储。
type AvailabilityCache interface {
	// GetAvailable 读取缓存的可售量，未命中时 ok 为 false。
	GetAvailable(ctx context.Context, productID, variantID string) (available int64, ok bool, err error)

	// SetAvailable 写入可售量，TTL 由实现决定（秒级，保证滞后有界）。
	SetAvailable(ctx context.Context, productID, variantID string, available int64) error

	// Invalidate 在预占发生变化后删除对应的缓存项。
	Invalidate(ctx context.Context, productID, variantID string) error
}
