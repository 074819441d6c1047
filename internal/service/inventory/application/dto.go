package application

// ReserveResult 是 Reserve 操作的应用层出参。
// Status 取值为 inventory.updated / inventory.failed。
type ReserveResult struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}
