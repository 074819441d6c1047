package domain

// LineItem 是调用方提交的一行订单明细。
type LineItem struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

// ReservationRequest 是"为订单预留库存"操作的入参。
// OrderID 是调用方的关联标识，本服务不解释其内容。
type ReservationRequest struct {
	OrderID string     `json:"order_id"`
	Items   []LineItem `json:"items"`
}

// AggregatedDemand 是按 SKU 归并后的需求量，所有值均 > 0。
type AggregatedDemand map[string]int

// AggregateItems 将订单明细归并为每个 SKU 的总需求量。
// 数量 <= 0 的明细被静默丢弃；结果可能为空，由调用方判定是否合法。
// 归并结果与明细顺序无关。
func AggregateItems(items []LineItem) AggregatedDemand {
	aggregated := make(AggregatedDemand)
	for _, entry := range items {
		if entry.Qty <= 0 {
			continue
		}
		aggregated[entry.SKU] += entry.Qty
	}
	return aggregated
}
