package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"stockpile/internal/service/inventory/domain"
	"stockpile/internal/service/inventory/infrastructure"
)

// recordingPublisher 把事件收进内存，供测试断言。
type recordingPublisher struct {
	mu     sync.Mutex
	events []*domain.ReservationEvent
}

func (p *recordingPublisher) PublishReservationEvent(ctx context.Context, event *domain.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// denyAbovePolicy 是一个简单的策略桩：数量超过上限即拒绝。
type denyAbovePolicy struct{ max int64 }

func (p denyAbovePolicy) Allow(ctx context.Context, productID string, quantity int64) (bool, error) {
	return quantity <= p.max, nil
}

func newTestService(t *testing.T) (*ReservationService, *infrastructure.MemoryReservationRepository, *recordingPublisher) {
	t.Helper()
	repo := infrastructure.NewMemoryReservationRepository()
	events := &recordingPublisher{}
	service := NewReservationService(repo, otel.Tracer("test"), 15*time.Minute, nil, events, nil)
	return service, repo, events
}

func reserveOne(t *testing.T, service *ReservationService, productID string, quantity int64) *ReserveResponse {
	t.Helper()
	resp, err := service.Reserve(context.Background(), &ReserveRequest{
		ProductID: productID,
		Quantity:  quantity,
		UserID:    "u1",
	})
	require.NoError(t, err)
	return resp
}

func TestReserveValidation(t *testing.T) {
	service, repo, _ := newTestService(t)
	repo.SetStock("p1", "", 5)

	_, err := service.Reserve(context.Background(), &ReserveRequest{ProductID: "p1", Quantity: 0, UserID: "u1"})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = service.Reserve(context.Background(), &ReserveRequest{ProductID: "p1", Quantity: -3, UserID: "u1"})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = service.Reserve(context.Background(), &ReserveRequest{ProductID: "p1", Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrMissingHolder)

	// 校验失败不应产生任何预占
	available, err := service.GetAvailableStock(context.Background(), "p1", "")
	require.NoError(t, err)
	assert.Equal(t, int64(5), available)
}

func TestReserveUnknownStockItem(t *testing.T) {
	service, _, _ := newTestService(t)

	_, err := service.Reserve(context.Background(), &ReserveRequest{ProductID: "ghost", Quantity: 1, UserID: "u1"})
	assert.ErrorIs(t, err, domain.ErrStockItemNotFound)
}

// 场景：实体库存 5。A 占 3 成功（剩 2），B 要 3 失败并得知只剩 2，
// A 提交关联订单 O1 后实体库存变为 2，C 再占 2 成功。
func TestReserveCommitScenario(t *testing.T) {
	service, repo, _ := newTestService(t)
	repo.SetStock("p1", "", 5)

	respA := reserveOne(t, service, "p1", 3)
	assert.Equal(t, int64(2), respA.AvailableStock)

	_, err := service.Reserve(context.Background(), &ReserveRequest{ProductID: "p1", Quantity: 3, SessionID: "s-b"})
	var insufficient *domain.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(2), insufficient.Available)

	require.NoError(t, service.Commit(context.Background(), respA.ReservationID, "O1"))
	assert.Equal(t, int64(5-3), repo.PhysicalStock("p1", ""))

	respC := reserveOne(t, service, "p1", 2)
	assert.Equal(t, int64(0), respC.AvailableStock)
}

// 不超卖：并发创建时，成功的预占数量之和不能超过实体库存。
func TestNoOvercommitUnderConcurrency(t *testing.T) {
	service, repo, _ := newTestService(t)
	const physical = 10
	repo.SetStock("p1", "", physical)

	const workers = 30
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.Reserve(context.Background(), &ReserveRequest{
				ProductID: "p1",
				Quantity:  1,
				SessionID: "s-concurrent",
			})
		}(i)
	}
	wg.Wait()

	var succeeded int64
	var insufficientCount int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var insufficient *domain.InsufficientStockError
		require.ErrorAs(t, err, &insufficient)
		insufficientCount++
	}
	assert.Equal(t, int64(physical), succeeded)
	assert.Equal(t, workers-physical, insufficientCount)

	available, err := service.GetAvailableStock(context.Background(), "p1", "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), available)
}

// 提交只扣一次：同一预占第二次提交必须失败且不再扣库存。
func TestCommitDecrementsExactlyOnce(t *testing.T) {
	service, repo, _ := newTestService(t)
	repo.SetStock("p1", "", 5)

	resp := reserveOne(t, service, "p1", 3)
	require.NoError(t, service.Commit(context.Background(), resp.ReservationID, "O1"))
	assert.Equal(t, int64(2), repo.PhysicalStock("p1", ""))

	err := service.Commit(context.Background(), resp.ReservationID, "O2")
	assert.ErrorIs(t, err, domain.ErrReservationNotActive)
	assert.Equal(t, int64(2), repo.PhysicalStock("p1", ""))
}

// 预占到提交之间实体库存被外部路径扣减：条件扣减必须失败，预占保持 ACTIVE。
func TestCommitAfterExternalStockDrop(t *testing.T) {
	service, repo, _ := newTestService(t)
	repo.SetStock("p1", "", 5)

	resp := reserveOne(t, service, "p1", 3)

	// 模拟外部退款/盘点路径直接改库存
	repo.SetStock("p1", "", 2)

	err := service.Commit(context.Background(), resp.ReservationID, "O1")
	assert.ErrorIs(t, err, domain.ErrInsufficientStockAtCommit)
	assert.Equal(t, int64(2), repo.PhysicalStock("p1", ""))

	reservation, err := repo.FindByID(context.Background(), resp.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, reservation.Status)
}

// 过期释放容量：到期的预占被清扫后不再计入已预占量。
func TestExpiryFreesCapacity(t *testing.T) {
	service, repo, _ := newTestService(t)
	repo.SetStock("p1", "", 5)

	resp := reserveOne(t, service, "p1", 4)

	available, err := service.GetAvailableStock(context.Background(), "p1", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), available)

	// 把过期时间倒拨到过去，模拟时间前进越过 expiresAt
	require.NoError(t, repo.ExtendReservation(context.Background(), resp.ReservationID, -time.Hour))

	count, err := service.ExpireSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	reservation, err := repo.FindByID(context.Background(), resp.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, reservation.Status)

	available, err = service.GetAvailableStock(context.Background(), "p1", "")
	require.NoError(t, err)
	assert.Equal(t, int64(5), available)
}

// 清扫幂等：紧接着的第二轮找不到可过期的预占，返回 0。
func TestExpireSweepIsIdempotent(t *testing.T) {
	service, repo, _ := newTestService(t)
	repo.SetStock("p1", "", 5)

	respA := reserveOne(t, service, "p1", 2)
	respB := reserveOne(t, service, "p1", 1)
	require.NoError(t, repo.ExtendReservation(context.Background(), respA.ReservationID, -time.Hour))
	require.NoError(t, repo.ExtendReservation(context.Background(), respB.ReservationID, -time.Hour))

	count, err := service.ExpireSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = service.ExpireSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

// 过期的预占不能再提交：清扫已经解决了这场竞态。
func TestCommitAfterSweepFails(t *testing.T) {
	service, repo, _ := newTestService(t)
	repo.SetStock("p1", "", 5)

	resp := reserveOne(t, service, "p1", 2)
	require.NoError(t, repo.ExtendReservation(context.Background(), resp.ReservationID, -time.Hour))
	_, err := service.ExpireSweep(context.Background())
	require.NoError(t, err)

	err = service.Commit(context.Background(), resp.ReservationID, "O1")
	assert.ErrorIs(t, err, domain.ErrReservationNotActive)
	assert.Equal(t, int64(5), repo.PhysicalStock("p1", ""))
}

func TestReleaseFreesCapacity(t *testing.T) {
	service, repo, _ := newTestService(t)
	repo.SetStock("p1", "", 5)

	resp := reserveOne(t, service, "p1", 4)
	require.NoError(t, service.Release(context.Background(), resp.ReservationID))

	// 释放不动实体库存，只是不再计入已预占量
	assert.Equal(t, int64(5), repo.PhysicalStock("p1", ""))
	available, err := service.GetAvailableStock(context.Background(), "p1", "")
	require.NoError(t, err)
	assert.Equal(t, int64(5), available)

	// 重复释放是失败而不是静默成功
	assert.ErrorIs(t, service.Release(context.Background(), resp.ReservationID), domain.ErrReservationNotActive)
}

func TestReleaseUnknownReservation(t *testing.T) {
	service, _, _ := newTestService(t)
	assert.ErrorIs(t, service.Release(context.Background(), "missing"), domain.ErrReservationNotFound)
}

func TestExtendPushesDeadlineForward(t *testing.T) {
	service, repo, _ := newTestService(t)
	repo.SetStock("p1", "", 5)

	resp := reserveOne(t, service, "p1", 1)
	before, err := repo.FindByID(context.Background(), resp.ReservationID)
	require.NoError(t, err)

	require.NoError(t, service.Extend(context.Background(), resp.ReservationID, 10*time.Minute))

	after, err := repo.FindByID(context.Background(), resp.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, before.ExpiresAt.Add(10*time.Minute), after.ExpiresAt)

	// 非正的续期时长是调用方错误
	assert.ErrorIs(t, service.Extend(context.Background(), resp.ReservationID, 0), domain.ErrInvalidQuantity)
}

func TestReservationPolicyRejects(t *testing.T) {
	repo := infrastructure.NewMemoryReservationRepository()
	repo.SetStock("p1", "", 100)
	service := NewReservationService(repo, otel.Tracer("test"), 15*time.Minute, nil, nil, denyAbovePolicy{max: 10})

	_, err := service.Reserve(context.Background(), &ReserveRequest{ProductID: "p1", Quantity: 11, UserID: "u1"})
	assert.ErrorIs(t, err, domain.ErrReservationRejected)

	// 策略拒绝不应产生任何预占
	available, err := service.GetAvailableStock(context.Background(), "p1", "")
	require.NoError(t, err)
	assert.Equal(t, int64(100), available)

	_, err = service.Reserve(context.Background(), &ReserveRequest{ProductID: "p1", Quantity: 10, UserID: "u1"})
	assert.NoError(t, err)
}

func TestLifecycleEventsPublished(t *testing.T) {
	service, repo, events := newTestService(t)
	repo.SetStock("p1", "", 5)

	respA := reserveOne(t, service, "p1", 2)
	respB := reserveOne(t, service, "p1", 1)
	require.NoError(t, service.Commit(context.Background(), respA.ReservationID, "O1"))
	require.NoError(t, service.Release(context.Background(), respB.ReservationID))

	respC := reserveOne(t, service, "p1", 1)
	require.NoError(t, repo.ExtendReservation(context.Background(), respC.ReservationID, -time.Hour))
	_, err := service.ExpireSweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.EventType{
		domain.EventReserved,
		domain.EventReserved,
		domain.EventCommitted,
		domain.EventReleased,
		domain.EventReserved,
		domain.EventSwept,
	}, events.types())
}

// 不同 StockItem 互不竞争：变体与商品本体是两个独立的库存单元。
func TestVariantsAreIndependentStockItems(t *testing.T) {
	service, repo, _ := newTestService(t)
	repo.SetStock("p1", "", 1)
	repo.SetStock("p1", "red", 3)

	reserveOne(t, service, "p1", 1)

	resp, err := service.Reserve(context.Background(), &ReserveRequest{
		ProductID: "p1", VariantID: "red", Quantity: 3, UserID: "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), resp.AvailableStock)
}
