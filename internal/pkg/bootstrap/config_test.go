package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	loadConfig()
	cfg := GetCurrentConfig()

	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, "dynamodb", cfg.Inventory.Backend)
	assert.Equal(t, "inventory.updated", cfg.Inventory.Topic)
	assert.False(t, cfg.Inventory.PublishEnabled)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("INVENTORY_BACKEND", "Memory")
	t.Setenv("DDB_TABLE", "stock-table")
	t.Setenv("INVENTORY_PUBLISH_ENABLED", "yes")
	t.Setenv("INVENTORY_PUBLISH_STRICT", "off")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	loadConfig()
	cfg := GetCurrentConfig()

	assert.Equal(t, 9090, cfg.App.Port)
	// backend 名字统一为小写
	assert.Equal(t, "memory", cfg.Inventory.Backend)
	assert.Equal(t, "stock-table", cfg.Inventory.Table)
	assert.True(t, cfg.Inventory.PublishEnabled)
	assert.False(t, cfg.Inventory.PublishStrict)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Infra.Kafka.Brokers)
}

func TestLoadConfig_YamlOverlayThenEnvWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
app:
  port: 7070
inventory:
  backend: redis
infra:
  redis:
    addr: redis:6379
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("PORT", "7171")

	loadConfig()
	cfg := GetCurrentConfig()

	// 环境变量覆盖 YAML，YAML 覆盖默认值
	assert.Equal(t, 7171, cfg.App.Port)
	assert.Equal(t, "redis", cfg.Inventory.Backend)
	assert.Equal(t, "redis:6379", cfg.Infra.Redis.Addr)
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("FLAG", "On")
	assert.True(t, getEnvBool("FLAG", false))

	t.Setenv("FLAG", "0")
	assert.False(t, getEnvBool("FLAG", true))

	os.Unsetenv("FLAG")
	assert.True(t, getEnvBool("FLAG", true))
}
