// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config 是进程启动时一次性解析的全量配置。
// 解析顺序：内置默认值 -> CONFIG_PATH 指向的 YAML 文件 -> 环境变量。
// 环境变量优先级最高，方便在容器环境中覆盖。
type Config struct {
	App struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"app"`

	Inventory struct {
		// Backend 是一个封闭集合: dynamodb | redis | memory
		Backend        string `yaml:"backend"`
		Table          string `yaml:"table"`
		EndpointURL    string `yaml:"endpoint_url"`
		Topic          string `yaml:"topic"`
		PublishEnabled bool   `yaml:"publish_enabled"`
		PublishStrict  bool   `yaml:"publish_strict"`
	} `yaml:"inventory"`

	Infra struct {
		Jaeger struct {
			Endpoint string `yaml:"endpoint"`
		} `yaml:"jaeger"`
		Kafka struct {
			Brokers []string `yaml:"brokers"`
		} `yaml:"kafka"`
		Redis struct {
			Addr string `yaml:"addr"`
		} `yaml:"redis"`
	} `yaml:"infra"`
}

var currentConfig Config

// GetCurrentConfig 返回进程当前生效的配置。
func GetCurrentConfig() *Config {
	return &currentConfig
}

func loadConfig() {
	cfg := defaultConfig()

	// YAML 文件是可选的，仅在 CONFIG_PATH 显式指定时加载
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("FATAL: cannot read config file %s: %v", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			log.Fatalf("FATAL: cannot parse config file %s: %v", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	currentConfig = cfg
}

func defaultConfig() Config {
	var cfg Config
	cfg.App.Host = "0.0.0.0"
	cfg.App.Port = 8080
	cfg.Inventory.Backend = "dynamodb"
	cfg.Inventory.Topic = "inventory.updated"
	cfg.Infra.Jaeger.Endpoint = "http://localhost:14268/api/traces"
	cfg.Infra.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Infra.Redis.Addr = ""
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	cfg.App.Host = getEnv("HOST", cfg.App.Host)
	cfg.App.Port = getEnvInt("PORT", cfg.App.Port)

	cfg.Inventory.Backend = strings.ToLower(getEnv("INVENTORY_BACKEND", cfg.Inventory.Backend))
	cfg.Inventory.Table = getEnv("DDB_TABLE", cfg.Inventory.Table)
	cfg.Inventory.EndpointURL = getEnv("DDB_ENDPOINT_URL", cfg.Inventory.EndpointURL)
	cfg.Inventory.Topic = getEnv("INVENTORY_TOPIC", cfg.Inventory.Topic)
	cfg.Inventory.PublishEnabled = getEnvBool("INVENTORY_PUBLISH_ENABLED", cfg.Inventory.PublishEnabled)
	cfg.Inventory.PublishStrict = getEnvBool("INVENTORY_PUBLISH_STRICT", cfg.Inventory.PublishStrict)

	cfg.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", cfg.Infra.Jaeger.Endpoint)
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Infra.Kafka.Brokers = strings.Split(brokers, ",")
	}
	cfg.Infra.Redis.Addr = getEnv("REDIS_ADDR", cfg.Infra.Redis.Addr)
}

func getEnvInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Fatalf("FATAL: invalid integer for %s: %q", key, raw)
	}
	return value
}

// getEnvBool 与原有部署保持一致，接受 1/true/yes/on（大小写不敏感）。
func getEnvBool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
