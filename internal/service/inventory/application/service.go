// internal/service/inventory/application/service.go
package application

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"stockpile/internal/pkg/logger"
	"stockpile/internal/service/inventory/domain"
	"stockpile/internal/service/inventory/domain/port"
)

// ReservationService 编排库存预占的所有用例。
// 并发正确性完全托付给仓储实现的事务边界；这一层只做
// 参数校验、策略准入、追踪、指标和事件发布。
type ReservationService struct {
	repo    domain.ReservationRepository
	tracer  trace.Tracer
	timeout time.Duration // 预占有效期

	// 以下依赖均可为 nil：缓存、事件、策略都是可选的外围能力
	cache  port.AvailabilityCache
	events port.EventPublisher
	policy port.ReservationPolicy
}

// NewReservationService 创建一个新的预占服务实例。
func NewReservationService(repo domain.ReservationRepository, tracer trace.Tracer, timeout time.Duration,
	cache port.AvailabilityCache, events port.EventPublisher, policy port.ReservationPolicy) *ReservationService {
	return &ReservationService{
		repo: repo, tracer: tracer, timeout: timeout,
		cache: cache, events: events, policy: policy,
	}
}

// Reserve 为结账流程创建一条限时预占。
func (s *ReservationService) Reserve(ctx context.Context, req *ReserveRequest) (*ReserveResponse, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.Reserve")
	defer span.End()

	span.SetAttributes(
		attribute.String("product.id", req.ProductID),
		attribute.String("product.variant_id", req.VariantID),
		attribute.Int64("reservation.quantity", req.Quantity),
	)

	// 1. 校验类错误在发起事务之前就返回
	if req.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	holder := domain.Holder{UserID: req.UserID, SessionID: req.SessionID}
	if err := holder.Validate(); err != nil {
		return nil, err
	}

	// 2. 策略准入（可选）
	if s.policy != nil {
		allowed, err := s.policy.Allow(ctx, req.ProductID, req.Quantity)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if !allowed {
			span.AddEvent("Reservation rejected by policy")
			return nil, domain.ErrReservationRejected
		}
	}

	// 3. 原子的检查-写入，由仓储在事务内完成
	reservation := domain.NewReservation(req.ProductID, req.VariantID, req.Quantity, holder, s.timeout)
	available, err := s.repo.CreateReservation(ctx, reservation)
	if err != nil {
		var insufficient *domain.InsufficientStockError
		if errors.As(err, &insufficient) {
			// 预期内的业务结果，不记为系统错误
			insufficientStockHits.Inc()
			span.AddEvent("Insufficient stock", trace.WithAttributes(
				attribute.Int64("stock.available", insufficient.Available)))
			return nil, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Reservation creation failed")
		return nil, err
	}

	reservationsCreated.Inc()
	span.SetAttributes(attribute.String("reservation.id", reservation.ID))
	s.publishEvent(ctx, &domain.ReservationEvent{
		Type:          domain.EventReserved,
		ReservationID: reservation.ID,
		ProductID:     reservation.ProductID,
		VariantID:     reservation.VariantID,
		Quantity:      reservation.Quantity,
		OccurredAt:    time.Now().UTC(),
	})
	s.invalidateCache(ctx, reservation.ProductID, reservation.VariantID)

	return &ReserveResponse{ReservationID: reservation.ID, AvailableStock: available}, nil
}

// Commit 在支付成功后把预占落实为一次实体库存扣减，并关联订单。
func (s *ReservationService) Commit(ctx context.Context, reservationID, orderID string) error {
	ctx, span := s.tracer.Start(ctx, "inventory.Commit")
	defer span.End()

	span.SetAttributes(
		attribute.String("reservation.id", reservationID),
		attribute.String("order.id", orderID),
	)

	if err := s.repo.CommitReservation(ctx, reservationID, orderID); err != nil {
		span.RecordError(err)
		return err
	}

	reservationsCommitted.Inc()
	reservation, err := s.repo.FindByID(ctx, reservationID)
	if err != nil {
		// 提交已经成功，这里只是取不到事件载荷，记日志即可
		logger.Ctx(ctx).Warn().Err(err).Str("reservation_id", reservationID).
			Msg("committed reservation could not be reloaded for event publishing")
		return nil
	}
	s.publishEvent(ctx, &domain.ReservationEvent{
		Type:          domain.EventCommitted,
		ReservationID: reservation.ID,
		ProductID:     reservation.ProductID,
		VariantID:     reservation.VariantID,
		Quantity:      reservation.Quantity,
		OrderID:       orderID,
		OccurredAt:    time.Now().UTC(),
	})
	s.invalidateCache(ctx, reservation.ProductID, reservation.VariantID)
	return nil
}

// Release 在结账被明确放弃时释放预占。对已终态的预占返回
// ErrReservationNotActive，且不产生任何副作用。
func (s *ReservationService) Release(ctx context.Context, reservationID string) error {
	ctx, span := s.tracer.Start(ctx, "inventory.Release")
	defer span.End()

	span.SetAttributes(attribute.String("reservation.id", reservationID))

	if err := s.repo.ReleaseReservation(ctx, reservationID); err != nil {
		span.RecordError(err)
		return err
	}

	reservationsReleased.Inc()
	if reservation, err := s.repo.FindByID(ctx, reservationID); err == nil {
		s.publishEvent(ctx, &domain.ReservationEvent{
			Type:          domain.EventReleased,
			ReservationID: reservation.ID,
			ProductID:     reservation.ProductID,
			VariantID:     reservation.VariantID,
			Quantity:      reservation.Quantity,
			OccurredAt:    time.Now().UTC(),
		})
		s.invalidateCache(ctx, reservation.ProductID, reservation.VariantID)
	}
	return nil
}

// Extend 在用户仍在结账流程中时延长预占有效期。
func (s *ReservationService) Extend(ctx context.Context, reservationID string, additional time.Duration) error {
	ctx, span := s.tracer.Start(ctx, "inventory.Extend")
	defer span.End()

	span.SetAttributes(
		attribute.String("reservation.id", reservationID),
		attribute.String("reservation.extend_by", additional.String()),
	)

	if additional <= 0 {
		return domain.ErrInvalidQuantity
	}

	if err := s.repo.ExtendReservation(ctx, reservationID, additional); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// ExpireSweep 把所有到期的 ACTIVE 预占批量置为过期，返回条数。
// 由外部调度器周期性调用；失败记日志等下一个周期重试，不是致命错误。
func (s *ReservationService) ExpireSweep(ctx context.Context) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.ExpireSweep")
	defer span.End()

	count, err := s.repo.ExpireDue(ctx, time.Now().UTC())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Expiration sweep failed")
		return 0, err
	}

	span.SetAttributes(attribute.Int64("sweep.expired_count", count))
	if count > 0 {
		reservationsExpired.Add(float64(count))
		logger.Ctx(ctx).Info().Int64("expired", count).Msg("expired stale reservations")
		s.publishEvent(ctx, &domain.ReservationEvent{
			Type:       domain.EventSwept,
			Quantity:   count,
			OccurredAt: time.Now().UTC(),
		})
	}
	return count, nil
}

// GetAvailableStock 查询当前可售量。展示用途的软读取：
// 优先走短 TTL 缓存，允许轻微滞后。
func (s *ReservationService) GetAvailableStock(ctx context.Context, productID, variantID string) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.GetAvailableStock")
	defer span.End()

	span.SetAttributes(
		attribute.String("product.id", productID),
		attribute.String("product.variant_id", variantID),
	)

	if s.cache != nil {
		if available, ok, err := s.cache.GetAvailable(ctx, productID, variantID); err == nil && ok {
			span.AddEvent("Availability served from cache")
			return available, nil
		} else if err != nil {
			// 缓存故障降级为直读数据库
			logger.Ctx(ctx).Warn().Err(err).Msg("availability cache read failed")
		}
	}

	available, err := s.repo.AvailableStock(ctx, productID, variantID)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	if s.cache != nil {
		if err := s.cache.SetAvailable(ctx, productID, variantID, available); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("availability cache write failed")
		}
	}
	return available, nil
}

// publishEvent 尽力而为地发布事件，失败只记日志。
func (s *ReservationService) publishEvent(ctx context.Context, event *domain.ReservationEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishReservationEvent(ctx, event); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("event_type", string(event.Type)).
			Msg("failed to publish reservation event")
	}
}

// invalidateCache 删除可售量缓存，失败只记日志（TTL 会兜底）。
func (s *ReservationService) invalidateCache(ctx context.Context, productID, variantID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, productID, variantID); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("failed to invalidate availability cache")
	}
}
