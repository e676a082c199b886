// internal/service/inventory/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stockpile/internal/service/inventory/domain"
)

// MySQL 的事务冲突错误码：1213 死锁、1205 锁等待超时。
// 这类错误是瞬时的，整个事务重试一次即可。
const (
	mysqlErrDeadlock    = 1213
	mysqlErrLockTimeout = 1205
)

// GormReservationRepository 是 domain.ReservationRepository 的 GORM 实现。
//
// 不超卖约束的实现方式：CreateReservation 在一个事务里先对 stock_item 行
// 加排他锁（SELECT ... FOR UPDATE），再统计占用中的预占量，最后插入新预占。
// 同一 StockItem 上的并发创建会在行锁上串行化；不同 StockItem 互不竞争。
type GormReservationRepository struct {
	db *gorm.DB
}

// NewGormReservationRepository 创建一个新的 GORM 仓储实例
func NewGormReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

// AutoMigrate 建表。库存表由商品目录模块维护，这里一并声明只是方便本地环境。
func (r *GormReservationRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&StockItemModel{}, &ReservationModel{})
}

// CreateReservation 原子地完成可售检查并写入预占。
func (r *GormReservationRepository) CreateReservation(ctx context.Context, res *domain.Reservation) (int64, error) {
	var available int64
	err := r.withRetry(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			// 1. 锁定目标库存行，串行化同一 StockItem 上的检查-写入
			var stock StockItemModel
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("product_id = ? AND variant_id = ?", res.ProductID, res.VariantID).
				First(&stock).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return domain.ErrStockItemNotFound
				}
				return err
			}

			// 2. 统计仍在占用中的预占量
			reserved, err := reservedAmount(tx, res.ProductID, res.VariantID, time.Now().UTC())
			if err != nil {
				return err
			}

			// 3. 可售不足则整个事务回滚，不产生部分写入
			free := stock.PhysicalStock - reserved
			if free < res.Quantity {
				if free < 0 {
					free = 0
				}
				return &domain.InsufficientStockError{Available: free}
			}

			// 4. 写入新预占，返回占用之后的剩余可售量
			if err := tx.Create(ToReservationModel(res)).Error; err != nil {
				return err
			}
			available = free - res.Quantity
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	return available, nil
}

// CommitReservation 校验状态、条件扣减实体库存并标记预占为已提交。
func (r *GormReservationRepository) CommitReservation(ctx context.Context, reservationID, orderID string) error {
	return r.withRetry(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			// 1. 锁定并重新校验预占状态，防御并发的过期/释放
			var m ReservationModel
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("reservation_id = ?", reservationID).
				First(&m).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return domain.ErrReservationNotFound
				}
				return err
			}
			if m.Status != domain.StatusActive {
				return domain.ErrReservationNotActive
			}

			// 2. 条件扣减实体库存。预占之后库存可能已被其他路径扣减，
			//    所以必须带 physical_stock >= quantity 的条件，命中 0 行即失败
			result := tx.Model(&StockItemModel{}).
				Where("product_id = ? AND variant_id = ? AND physical_stock >= ?",
					m.ProductID, m.VariantID, m.Quantity).
				UpdateColumn("physical_stock", gorm.Expr("physical_stock - ?", m.Quantity))
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return domain.ErrInsufficientStockAtCommit
			}

			// 3. 标记预占为已提交并关联订单
			return tx.Model(&ReservationModel{}).
				Where("reservation_id = ?", reservationID).
				Updates(map[string]interface{}{
					"status":   domain.StatusCommitted,
					"order_id": orderID,
				}).Error
		})
	})
}

// ReleaseReservation 将 ACTIVE 预占置为 RELEASED。不动实体库存：
// 释放后的预占只是不再计入已预占量。
func (r *GormReservationRepository) ReleaseReservation(ctx context.Context, reservationID string) error {
	result := r.db.WithContext(ctx).Model(&ReservationModel{}).
		Where("reservation_id = ? AND status = ?", reservationID, domain.StatusActive).
		Update("status", domain.StatusReleased)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.classifyMiss(ctx, reservationID)
	}
	return nil
}

// ExtendReservation 将 ACTIVE 预占的过期时间向后推移。
func (r *GormReservationRepository) ExtendReservation(ctx context.Context, reservationID string, extendBy time.Duration) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m ReservationModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("reservation_id = ?", reservationID).
			First(&m).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrReservationNotFound
			}
			return err
		}
		if m.Status != domain.StatusActive {
			return domain.ErrReservationNotActive
		}
		return tx.Model(&ReservationModel{}).
			Where("reservation_id = ?", reservationID).
			Update("expires_at", m.ExpiresAt.Add(extendBy)).Error
	})
}

// ExpireDue 把所有到期的 ACTIVE 预占批量置为 EXPIRED。
// 单条 UPDATE，天然幂等，并发执行也只会有一个事务命中每一行。
func (r *GormReservationRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&ReservationModel{}).
		Where("status = ? AND expires_at <= ?", domain.StatusActive, now).
		Update("status", domain.StatusExpired)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// AvailableStock 计算当前可售量。展示用途，普通读即可。
func (r *GormReservationRepository) AvailableStock(ctx context.Context, productID, variantID string) (int64, error) {
	var stock StockItemModel
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND variant_id = ?", productID, variantID).
		First(&stock).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, domain.ErrStockItemNotFound
		}
		return 0, err
	}

	reserved, err := reservedAmount(r.db.WithContext(ctx), productID, variantID, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	item := domain.StockItem{ProductID: productID, VariantID: variantID, PhysicalStock: stock.PhysicalStock}
	return item.Available(reserved), nil
}

// FindByID 按预占 ID 查找。
func (r *GormReservationRepository) FindByID(ctx context.Context, reservationID string) (*domain.Reservation, error) {
	var m ReservationModel
	err := r.db.WithContext(ctx).
		Where("reservation_id = ?", reservationID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrReservationNotFound
		}
		return nil, err
	}
	return ToDomainReservation(&m), nil
}

// reservedAmount 统计某个 StockItem 上仍在占用中的预占总量。
func reservedAmount(tx *gorm.DB, productID, variantID string, now time.Time) (int64, error) {
	var reserved int64
	err := tx.Model(&ReservationModel{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("product_id = ? AND variant_id = ? AND status = ? AND expires_at > ?",
			productID, variantID, domain.StatusActive, now).
		Scan(&reserved).Error
	return reserved, err
}

// classifyMiss 区分条件更新未命中的两种原因：预占不存在，还是已进入终态。
func (r *GormReservationRepository) classifyMiss(ctx context.Context, reservationID string) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&ReservationModel{}).
		Where("reservation_id = ?", reservationID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrReservationNotFound
	}
	return domain.ErrReservationNotActive
}

// withRetry 对瞬时的事务冲突重试一次，仍失败则向上返回。
// 事务要么整体提交要么整体回滚，重试不会造成部分写入。
func (r *GormReservationRepository) withRetry(op func() error) error {
	err := op()
	if isSerializationFailure(err) {
		err = op()
	}
	return err
}

// isSerializationFailure 判断是否为 MySQL 的瞬时事务冲突。
func isSerializationFailure(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlErrDeadlock || mysqlErr.Number == mysqlErrLockTimeout
	}
	return false
}
