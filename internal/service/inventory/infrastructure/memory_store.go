package infrastructure

import (
	"context"

	"github.com/pkg/errors"

	"nexus-inventory/internal/service/inventory/domain"
)

const backendMemory = "memory"

// MemoryStore 是非持久化的参考后端，供本地运行和测试使用。
//
// 已知约束：内部没有任何锁，不支持真正的并发调用。
// 它只用于单线程或测试场景，这里刻意不加锁以保持与远端后端
// "唯一串行化点在后端本身"的模型一致。
type MemoryStore struct {
	data map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]int)}
}

func (s *MemoryStore) Backend() string { return backendMemory }

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// Apply 采用两段式 check-then-commit：先校验全部 SKU，
// 任一不足则整体失败且不产生任何扣减；全部通过后再一次性提交。
func (s *MemoryStore) Apply(ctx context.Context, demand domain.AggregatedDemand) (*domain.ApplyResult, error) {
	if len(demand) == 0 {
		return &domain.ApplyResult{Status: domain.StatusNoop}, nil
	}

	for sku, qty := range demand {
		if s.data[sku] < qty {
			return nil, errors.Wrapf(domain.ErrOutOfStock, "insufficient stock for %s", sku)
		}
	}
	for sku, qty := range demand {
		s.data[sku] -= qty
	}
	return &domain.ApplyResult{Status: domain.StatusUpdated}, nil
}

func (s *MemoryStore) Close() error { return nil }

// SetStock 设置某个 SKU 的库存，用于测试和本地初始化。
func (s *MemoryStore) SetStock(sku string, qty int) {
	s.data[sku] = qty
}

// Stock 返回某个 SKU 当前的库存，未知 SKU 视为 0。
func (s *MemoryStore) Stock(sku string) int {
	return s.data[sku]
}
