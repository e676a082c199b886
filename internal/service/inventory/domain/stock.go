// internal/service/inventory/domain/stock.go
package domain

// StockItem 是按商品（或商品变体）跟踪的库存单元。
// 它由商品目录模块创建和维护；预占模块只读取 PhysicalStock，
// 并在预占提交时对其做条件扣减，从不创建或删除库存行。
type StockItem struct {
	ProductID     string
	VariantID     string // 为空表示商品本体
	PhysicalStock int64  // 实体库存，只能被提交扣减或外部补货增减
}

// Available 计算对外可售数量：实体库存减去仍在占用中的预占总量，
// 负数一律钳到零（实体库存可能被外部路径扣减到低于已预占量）。
func (s *StockItem) Available(reserved int64) int64 {
	available := s.PhysicalStock - reserved
	if available < 0 {
		return 0
	}
	return available
}
