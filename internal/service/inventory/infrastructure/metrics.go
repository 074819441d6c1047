package infrastructure

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// reservationConflictRetries 记录条件写冲突触发的重试次数。
// 重试耗尽对外表现为 out_of_stock，这个计数器是区分
// 热点竞争与真实缺货的唯一运维信号。
var reservationConflictRetries = promauto.NewCounter(prometheus.CounterOpts{
	Name: "inventory_reservation_conflict_retries_total",
	Help: "Number of transactional write retries caused by conditional check conflicts.",
})
