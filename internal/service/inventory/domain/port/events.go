// internal/service/inventory/domain/port/events.go
package port

import (
	"context"

	"stockpile/internal/service/inventory/domain"
)

// EventPublisher 是预占生命周期事件的出站端口。
// 发布是尽力而为的：失败只记日志，绝不影响预占操作本身的结果。
type EventPublisher interface {
	PublishReservationEvent(ctx context.Context, event *domain.ReservationEvent) error
}
