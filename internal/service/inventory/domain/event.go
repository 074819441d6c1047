package domain

import "time"

// 预留结果对外呈现的两种终态。
const (
	StatusInventoryUpdated = "inventory.updated"
	StatusInventoryFailed  = "inventory.failed"
)

const ReasonOutOfStock = "out_of_stock"

// ReservationEvent 是预留结束后发布到事件总线的出站事件。
// Items 保留调用方提交的原始明细（归并前），让下游能看到完整请求。
type ReservationEvent struct {
	EventID string     `json:"event_id"`
	OrderID string     `json:"order_id"`
	Status  string     `json:"status"`
	Items   []LineItem `json:"items"`
	Reason  string     `json:"reason,omitempty"`
	At      time.Time  `json:"at"`
}
