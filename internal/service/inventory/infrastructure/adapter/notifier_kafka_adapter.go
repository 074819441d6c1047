package adapter

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"nexus-inventory/internal/pkg/logger"
	"nexus-inventory/internal/pkg/mq"
	"nexus-inventory/internal/service/inventory/domain"
)

// ReservationKafkaNotifier 实现了 port.EventPublisher 接口，
// 把预留结果事件发布到 Kafka 的 inventory.updated topic。
//
// 三种运行模式在启动时确定：
//   - 禁用：什么都不发，debug 日志记录一次跳过
//   - 宽松：发布失败只记日志，不影响预留结果
//   - 严格：发布失败作为故障向上传播
type ReservationKafkaNotifier struct {
	writer  mq.Writer
	enabled bool
	strict  bool
}

func NewReservationKafkaNotifier(writer mq.Writer, enabled, strict bool) *ReservationKafkaNotifier {
	return &ReservationKafkaNotifier{writer: writer, enabled: enabled, strict: strict}
}

func (n *ReservationKafkaNotifier) Publish(ctx context.Context, event *domain.ReservationEvent) error {
	if !n.enabled {
		logger.Ctx(ctx).Debug().Str("order_id", event.OrderID).Msg("publish disabled, skipping reservation event")
		return nil
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		// 序列化失败不依赖外部系统，无论宽严都应当暴露
		return errors.Wrap(err, "failed to marshal reservation event")
	}

	if err := mq.ProduceMessage(ctx, n.writer, []byte(event.OrderID), eventBytes); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order_id", event.OrderID).Msg("failed to publish reservation event")
		if n.strict {
			return errors.Wrap(err, "publish reservation event")
		}
		return nil
	}

	logger.Ctx(ctx).Info().Str("order_id", event.OrderID).Str("status", event.Status).Msg("published reservation event")
	return nil
}

// Close 关闭底层的 Kafka writer。
func (n *ReservationKafkaNotifier) Close() error {
	if closer, ok := n.writer.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
