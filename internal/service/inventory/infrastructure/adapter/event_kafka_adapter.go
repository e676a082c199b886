// internal/service/inventory/infrastructure/adapter/event_kafka_adapter.go
package adapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"stockpile/internal/pkg/mq"
	"stockpile/internal/service/inventory/domain"
)

// EventKafkaAdapter 是 port.EventPublisher 接口的 Kafka 实现。
// 事件以 productID 作为分区 Key，保证同一商品的事件进入同一分区。
type EventKafkaAdapter struct {
	writer *kafka.Writer
}

// NewEventKafkaAdapter 创建一个新的事件生产者适配器。
func NewEventKafkaAdapter(writer *kafka.Writer) *EventKafkaAdapter {
	return &EventKafkaAdapter{writer: writer}
}

// PublishReservationEvent 发布一条预占生命周期事件。
// 调用通用的 mq.ProduceMessage，它会自动处理追踪上下文注入。
func (a *EventKafkaAdapter) PublishReservationEvent(ctx context.Context, event *domain.ReservationEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal reservation event: %w", err)
	}

	key := []byte(event.ProductID)
	if len(key) == 0 {
		// 清扫汇总事件没有具体商品，用事件类型做 Key
		key = []byte(event.Type)
	}
	return mq.ProduceMessage(ctx, a.writer, key, eventBytes)
}

// Close 关闭底层的 Kafka writer。
func (a *EventKafkaAdapter) Close() error {
	return a.writer.Close()
}
