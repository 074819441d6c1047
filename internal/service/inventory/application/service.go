// internal/service/inventory/application/service.go
package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nexus-inventory/internal/pkg/logger"
	"nexus-inventory/internal/service/inventory/domain"
	"nexus-inventory/internal/service/inventory/port"
)

// ReservationService 把归并、store 调用和结果归类编排成
// 对外唯一可见的操作："为订单 X 预留库存"。
// store 在启动时选定并注入，调用点不感知具体后端。
type ReservationService struct {
	store    domain.Store
	notifier port.EventPublisher
	tracer   trace.Tracer
}

func NewReservationService(store domain.Store, notifier port.EventPublisher, tracer trace.Tracer) *ReservationService {
	return &ReservationService{store: store, notifier: notifier, tracer: tracer}
}

// Reserve 为一个订单预留库存。
// 缺货是正常业务结果：请求照常完成，结果状态为 inventory.failed；
// 只有 store 本身的故障才作为错误返回。
// 无论成功与否，都会用归并前的原始明细构造事件交给 notifier。
func (s *ReservationService) Reserve(ctx context.Context, orderID string, items []domain.LineItem) (*ReserveResult, error) {
	ctx, span := s.tracer.Start(ctx, "app.ReserveInventory")
	defer span.End()

	span.SetAttributes(
		attribute.String("order.id", orderID),
		attribute.Int("order.line_items", len(items)),
	)

	demand := domain.AggregateItems(items)
	if len(demand) == 0 {
		span.SetStatus(codes.Error, "no positive-quantity items")
		return nil, errors.Wrap(domain.ErrValidation, "items required")
	}
	span.SetAttributes(attribute.Int("order.unique_skus", len(demand)))

	var (
		status = domain.StatusInventoryUpdated
		reason string
	)

	result, err := s.store.Apply(ctx, demand)
	switch {
	case err == nil:
		logger.Ctx(ctx).Info().
			Str("order_id", orderID).
			Str("backend", s.store.Backend()).
			Str("result", string(result.Status)).
			Msg("reserved stock")
		if result.ConsumedCapacity != nil {
			logger.Ctx(ctx).Debug().
				Str("order_id", orderID).
				Interface("consumed_capacity", result.ConsumedCapacity).
				Msg("transaction capacity report")
		}
	case errors.Is(err, domain.ErrOutOfStock):
		status = domain.StatusInventoryFailed
		reason = domain.ReasonOutOfStock
		span.AddEvent("reservation failed: out of stock")
		logger.Ctx(ctx).Warn().Err(err).Str("order_id", orderID).Msg("out of stock processing order")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "inventory store failure")
		logger.Ctx(ctx).Error().Err(err).Str("order_id", orderID).Msg("inventory store failure")
		return nil, err
	}

	event := &domain.ReservationEvent{
		EventID: uuid.New().String(),
		OrderID: orderID,
		Status:  status,
		Items:   items,
		Reason:  reason,
		At:      time.Now().UTC(),
	}
	if err := s.notifier.Publish(ctx, event); err != nil {
		// 只有严格模式下 Publish 才返回错误，此时发布失败是请求级故障
		span.RecordError(err)
		span.SetStatus(codes.Error, "reservation event publish failed")
		return nil, err
	}

	return &ReserveResult{OrderID: orderID, Status: status}, nil
}

// Ping 透传到选定 store 的健康探测。
func (s *ReservationService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Backend 返回当前选定后端的标识。
func (s *ReservationService) Backend() string {
	return s.store.Backend()
}
