// internal/service/inventory/infrastructure/gorm_model.go
package infrastructure

import (
	"database/sql"
	"time"

	"gorm.io/gorm"

	"stockpile/internal/service/inventory/domain"
)

// StockItemModel 对应数据库中的 stock_item 表。
// 该表由商品目录模块写入；本模块只在提交预占时条件扣减 physical_stock。
type StockItemModel struct {
	gorm.Model
	ProductID     string `gorm:"size:64;not null;uniqueIndex:uk_stock_product_variant"`
	VariantID     string `gorm:"size:64;not null;default:'';uniqueIndex:uk_stock_product_variant"`
	PhysicalStock int64  `gorm:"not null"`
}

// TableName 指定 GORM 应该使用的表名
func (StockItemModel) TableName() string {
	return "stock_item"
}

// ReservationModel 对应数据库中的 inventory_reservation 表
type ReservationModel struct {
	gorm.Model
	ReservationID string `gorm:"size:64;not null;uniqueIndex"`
	ProductID     string `gorm:"size:64;not null;index:idx_resv_stock"`
	VariantID     string `gorm:"size:64;not null;default:'';index:idx_resv_stock"`
	Quantity      int64  `gorm:"not null"`
	UserID        sql.NullString
	SessionID     sql.NullString
	Status        domain.Status `gorm:"type:varchar(16);not null;index"`
	OrderID       sql.NullString
	ExpiresAt     time.Time `gorm:"not null;index"`
}

// TableName 指定 GORM 应该使用的表名
func (ReservationModel) TableName() string {
	return "inventory_reservation"
}
