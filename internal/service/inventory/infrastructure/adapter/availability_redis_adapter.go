// internal/service/inventory/infrastructure/adapter/availability_redis_adapter.go
package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"stockpile/internal/pkg/redis"
)

// 缓存 TTL 故意很短：软读取允许轻微滞后，但滞后必须有界。
// 清扫释放的容量最迟在一个 TTL 之后反映到展示层。
const availabilityTTL = 5 * time.Second

// AvailabilityRedisAdapter 是 port.AvailabilityCache 接口的 Redis 实现。
type AvailabilityRedisAdapter struct {
	redisClient *redis.Client
}

// NewAvailabilityRedisAdapter 创建一个新的可售量缓存适配器。
func NewAvailabilityRedisAdapter(redisClient *redis.Client) *AvailabilityRedisAdapter {
	return &AvailabilityRedisAdapter{redisClient: redisClient}
}

// GetAvailable 读取缓存的可售量。
func (a *AvailabilityRedisAdapter) GetAvailable(ctx context.Context, productID, variantID string) (int64, bool, error) {
	val, err := a.redisClient.GetClient().Get(ctx, availabilityKey(productID, variantID)).Int64()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return val, true, nil
}

// SetAvailable 写入可售量。
func (a *AvailabilityRedisAdapter) SetAvailable(ctx context.Context, productID, variantID string, available int64) error {
	return a.redisClient.GetClient().Set(ctx, availabilityKey(productID, variantID), available, availabilityTTL).Err()
}

// Invalidate 在预占变化后删除缓存项，下次读取回源数据库。
func (a *AvailabilityRedisAdapter) Invalidate(ctx context.Context, productID, variantID string) error {
	return a.redisClient.GetClient().Del(ctx, availabilityKey(productID, variantID)).Err()
}

func availabilityKey(productID, variantID string) string {
	return fmt.Sprintf("inventory:available:{%s/%s}", productID, variantID)
}
