package domain

import "context"

// ApplyStatus 是一次 Apply 调用的成功类结果。
type ApplyStatus string

const (
	StatusUpdated ApplyStatus = "updated"
	StatusNoop    ApplyStatus = "noop"
)

// ApplyResult 由 Store.Apply 在成功路径上返回一次，不做持久化。
// ConsumedCapacity 是后端特有的消耗信息（仅 dynamodb 填充），按原样透传。
type ApplyResult struct {
	Status           ApplyStatus
	ConsumedCapacity interface{}
}

// Store 是所有库存后端必须实现的能力契约。
// 实现必须支持多个互不相关的请求并发调用 Apply（memory 后端除外，见其文档）。
type Store interface {
	// Backend 返回后端标识，如 "dynamodb"、"redis"、"memory"。
	Backend() string

	// Ping 做一次轻量可达性探测，不得修改任何状态。
	// 探测权限被有意收紧的情况（如 DescribeTable 被拒）应降级为告警并视为健康。
	Ping(ctx context.Context) error

	// Apply 原子地为 demand 中的每个 SKU 扣减库存。
	// 任一 SKU 库存不足时整体失败（ErrOutOfStock），不留下部分扣减。
	Apply(ctx context.Context, demand AggregatedDemand) (*ApplyResult, error)

	// Close 释放持有的连接资源，尽力而为。
	Close() error
}
