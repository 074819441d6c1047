package infrastructure

import (
	"context"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"nexus-inventory/internal/pkg/logger"
	"nexus-inventory/internal/service/inventory/domain"
)

const (
	backendRedis = "redis"

	redisKeyPrefix = "inventory:sku:"
	maxTxAttempts  = 3
)

// RedisStore 是远端后端的 Redis 变体，语义与 dynamodb 后端一致：
// WATCH 被读取的库存 key 实现乐观并发控制，EXEC 失败即条件冲突，
// 有限次重试后按库存不可得处理。
//
// 每个 SKU 存为一个 hash：stock 与 updated_at 两个字段。
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Backend() string { return backendRedis }

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return domain.NewStoreError(backendRedis, "ping", err)
	}
	return nil
}

func (s *RedisStore) Apply(ctx context.Context, demand domain.AggregatedDemand) (*domain.ApplyResult, error) {
	if len(demand) == 0 {
		return &domain.ApplyResult{Status: domain.StatusNoop}, nil
	}

	keys := make([]string, 0, len(demand))
	for sku := range demand {
		keys = append(keys, stockKey(sku))
	}

	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			// 第一段：在 WATCH 保护下读取全部 SKU 并校验
			newStock := make(map[string]int, len(demand))
			for sku, qty := range demand {
				raw, err := tx.HGet(ctx, stockKey(sku), "stock").Result()
				if err == redis.Nil {
					return pkgerrors.Wrapf(domain.ErrOutOfStock, "sku %s not found in inventory", sku)
				}
				if err != nil {
					return domain.NewStoreError(backendRedis, "hget "+sku, err)
				}
				available, convErr := strconv.Atoi(strings.TrimSpace(raw))
				if convErr != nil {
					return domain.NewStoreError(backendRedis, "hget "+sku,
						pkgerrors.Errorf("invalid stock value %q", raw))
				}
				if qty > available {
					return pkgerrors.Wrapf(domain.ErrOutOfStock,
						"requested quantity exceeds available stock for %s", sku)
				}
				newStock[sku] = available - qty
			}

			// 第二段：MULTI/EXEC 一次性提交全部扣减
			timestamp := time.Now().UTC().Format(time.RFC3339Nano)
			_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for sku, remaining := range newStock {
					pipe.HSet(ctx, stockKey(sku), "stock", remaining, "updated_at", timestamp)
				}
				return nil
			})
			return err
		}, keys...)

		if err == nil {
			return &domain.ApplyResult{Status: domain.StatusUpdated}, nil
		}
		if err == redis.TxFailedErr {
			reservationConflictRetries.Inc()
			if attempt < maxTxAttempts {
				logger.Ctx(ctx).Info().
					Int("attempt", attempt).
					Int("max_attempts", maxTxAttempts).
					Msg("retrying redis transaction after watch conflict")
				continue
			}
			return nil, pkgerrors.Wrap(domain.ErrOutOfStock,
				"transaction conflict persisted: requested quantity exceeds available stock")
		}
		if pkgerrors.Is(err, domain.ErrOutOfStock) || pkgerrors.Is(err, domain.ErrStoreUnavailable) {
			return nil, err
		}
		return nil, domain.NewStoreError(backendRedis, "watch", err)
	}

	return nil, domain.NewStoreError(backendRedis, "apply", pkgerrors.New("attempt budget exhausted"))
}

func (s *RedisStore) Close() error { return s.client.Close() }

// SeedStock 设置某个 SKU 的库存，用于本地初始化和测试。
func (s *RedisStore) SeedStock(ctx context.Context, sku string, qty int) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.client.HSet(ctx, stockKey(sku), "stock", qty, "updated_at", timestamp).Err(); err != nil {
		return domain.NewStoreError(backendRedis, "hset "+sku, err)
	}
	return nil
}

func stockKey(sku string) string { return redisKeyPrefix + sku }
