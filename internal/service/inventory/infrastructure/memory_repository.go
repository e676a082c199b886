// internal/service/inventory/infrastructure/memory_repository.go
package infrastructure

import (
	"context"
	"sync"
	"time"

	"stockpile/internal/service/inventory/domain"
)

// MemoryReservationRepository 是 domain.ReservationRepository 的内存实现，
// 供单元测试和本地运行使用。用一把互斥锁代替数据库事务，
// 对外语义与 GORM 实现保持一致。
type MemoryReservationRepository struct {
	mu           sync.Mutex
	stock        map[string]int64 // key: productID + "/" + variantID
	reservations map[string]*domain.Reservation
}

// NewMemoryReservationRepository 创建一个空的内存仓储。
func NewMemoryReservationRepository() *MemoryReservationRepository {
	return &MemoryReservationRepository{
		stock:        make(map[string]int64),
		reservations: make(map[string]*domain.Reservation),
	}
}

// SetStock 写入实体库存，模拟商品目录模块的补货操作。
func (m *MemoryReservationRepository) SetStock(productID, variantID string, physical int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[stockKey(productID, variantID)] = physical
}

// PhysicalStock 读取当前实体库存，供测试断言。
func (m *MemoryReservationRepository) PhysicalStock(productID, variantID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[stockKey(productID, variantID)]
}

func (m *MemoryReservationRepository) CreateReservation(ctx context.Context, r *domain.Reservation) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	physical, exists := m.stock[stockKey(r.ProductID, r.VariantID)]
	if !exists {
		return 0, domain.ErrStockItemNotFound
	}

	reserved := m.reservedLocked(r.ProductID, r.VariantID, time.Now().UTC())
	free := physical - reserved
	if free < r.Quantity {
		if free < 0 {
			free = 0
		}
		return 0, &domain.InsufficientStockError{Available: free}
	}

	clone := *r
	m.reservations[r.ID] = &clone
	return free - r.Quantity, nil
}

func (m *MemoryReservationRepository) CommitReservation(ctx context.Context, reservationID, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[reservationID]
	if !ok {
		return domain.ErrReservationNotFound
	}
	if r.Status != domain.StatusActive {
		return domain.ErrReservationNotActive
	}

	key := stockKey(r.ProductID, r.VariantID)
	if m.stock[key] < r.Quantity {
		return domain.ErrInsufficientStockAtCommit
	}

	if err := r.Commit(orderID); err != nil {
		return err
	}
	m.stock[key] -= r.Quantity
	return nil
}

func (m *MemoryReservationRepository) ReleaseReservation(ctx context.Context, reservationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[reservationID]
	if !ok {
		return domain.ErrReservationNotFound
	}
	return r.Release()
}

func (m *MemoryReservationRepository) ExtendReservation(ctx context.Context, reservationID string, extendBy time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[reservationID]
	if !ok {
		return domain.ErrReservationNotFound
	}
	return r.Extend(extendBy)
}

func (m *MemoryReservationRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for _, r := range m.reservations {
		if r.Status == domain.StatusActive && !r.ExpiresAt.After(now) {
			if err := r.Expire(); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

func (m *MemoryReservationRepository) AvailableStock(ctx context.Context, productID, variantID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	physical, exists := m.stock[stockKey(productID, variantID)]
	if !exists {
		return 0, domain.ErrStockItemNotFound
	}
	item := domain.StockItem{ProductID: productID, VariantID: variantID, PhysicalStock: physical}
	return item.Available(m.reservedLocked(productID, variantID, time.Now().UTC())), nil
}

func (m *MemoryReservationRepository) FindByID(ctx context.Context, reservationID string) (*domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[reservationID]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}
	clone := *r
	return &clone, nil
}

// reservedLocked 统计占用中的预占总量，调用方必须持有 m.mu。
func (m *MemoryReservationRepository) reservedLocked(productID, variantID string, now time.Time) int64 {
	var reserved int64
	for _, r := range m.reservations {
		if r.ProductID == productID && r.VariantID == variantID && r.IsActive(now) {
			reserved += r.Quantity
		}
	}
	return reserved
}

func stockKey(productID, variantID string) string {
	return productID + "/" + variantID
}
