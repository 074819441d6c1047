package port

import (
	"context"

	"nexus-inventory/internal/service/inventory/domain"
)

// EventPublisher 是出站事件发布的端口。
// 实现负责自己的失败策略（禁用 / 宽松 / 严格），
// 宽松模式下的发布失败不会从 Publish 返回。
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.ReservationEvent) error
	Close() error
}
