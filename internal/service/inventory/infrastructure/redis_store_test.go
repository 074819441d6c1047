package infrastructure

import (
	"context"
	"testing"

	"nexus-inventory/internal/service/inventory/domain"
)

func TestRedisStore_EmptyDemandIsNoopWithoutClient(t *testing.T) {
	// 空需求在触达客户端之前就应返回 noop
	store := NewRedisStore(nil)

	result, err := store.Apply(context.Background(), domain.AggregatedDemand{})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if result.Status != domain.StatusNoop {
		t.Errorf("expected noop, got %s", result.Status)
	}
}

func TestRedisStore_Backend(t *testing.T) {
	store := NewRedisStore(nil)
	if store.Backend() != "redis" {
		t.Errorf("expected backend redis, got %s", store.Backend())
	}
}

func TestStockKey(t *testing.T) {
	if got := stockKey("SKU-1"); got != "inventory:sku:SKU-1" {
		t.Errorf("unexpected stock key: %s", got)
	}
}
