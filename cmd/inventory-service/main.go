// cmd/inventory-service/main.go
package main

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"nexus-inventory/internal/pkg/awsutil"
	"nexus-inventory/internal/pkg/bootstrap"
	"nexus-inventory/internal/pkg/logger"
	"nexus-inventory/internal/pkg/mq"
	"nexus-inventory/internal/service/inventory/application"
	"nexus-inventory/internal/service/inventory/domain"
	"nexus-inventory/internal/service/inventory/infrastructure"
	"nexus-inventory/internal/service/inventory/infrastructure/adapter"
	"nexus-inventory/internal/service/inventory/interfaces"
	"nexus-inventory/internal/service/inventory/port"
)

const serviceName = "inventory-service"

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	bootstrap.Init(serviceName)
	cfg := bootstrap.GetCurrentConfig()
	ctx := context.Background()

	// 后端是编译期已知的封闭集合，由配置一次性选定。
	// 远端后端缺少必要配置是致命错误，绝不静默降级到 memory。
	store, err := buildStore(ctx, cfg)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to build inventory store")
	}
	logger.Logger.Info().Str("backend", store.Backend()).Msg("inventory store selected")

	notifier := buildNotifier(cfg)

	svc := application.NewReservationService(store, notifier, otel.Tracer(serviceName))
	handler := interfaces.NewInventoryHandler(svc)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.App.Port,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			handler.RegisterRoutes(appCtx.Mux)
		},
		OnShutdown: func(ctx context.Context) {
			// 资源释放只在进程关停时做一次，不在请求级别做
			if err := notifier.Close(); err != nil {
				logger.Logger.Warn().Err(err).Msg("error closing notifier")
			}
			if err := store.Close(); err != nil {
				logger.Logger.Warn().Err(err).Msg("error closing inventory store")
			}
		},
	})
}

func buildStore(ctx context.Context, cfg *bootstrap.Config) (domain.Store, error) {
	switch cfg.Inventory.Backend {
	case "memory":
		// 必须显式配置才会启用：非持久化，不适合真实部署
		logger.Logger.Warn().Msg("using in-memory inventory store; stock is not durable")
		return infrastructure.NewMemoryStore(), nil

	case "redis":
		addr := cfg.Infra.Redis.Addr
		if addr == "" {
			return nil, errors.Wrap(domain.ErrConfiguration, "REDIS_ADDR must be set for redis inventory store")
		}
		return infrastructure.NewRedisStore(redis.NewClient(&redis.Options{Addr: addr})), nil

	case "dynamodb":
		table := cfg.Inventory.Table
		if table == "" {
			return nil, errors.Wrap(domain.ErrConfiguration, "DDB_TABLE must be set for dynamodb inventory store")
		}
		region := awsutil.ResolveRegion(ctx)
		if region == "" {
			return nil, errors.Wrap(domain.ErrConfiguration,
				"AWS region could not be determined; set AWS_REGION or AWS_DEFAULT_REGION")
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
		if err != nil {
			return nil, errors.Wrap(err, "failed to load AWS configuration")
		}
		endpoint := cfg.Inventory.EndpointURL
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		})

		if err := infrastructure.EnsureTable(ctx, client, table, endpoint != ""); err != nil {
			return nil, err
		}

		store := infrastructure.NewDynamoStore(client, table)
		if err := store.Ping(ctx); err != nil {
			return nil, err
		}
		logger.Logger.Info().Str("table", table).Str("region", region).Msg("using dynamodb inventory store")
		return store, nil

	default:
		return nil, errors.Wrapf(domain.ErrConfiguration, "unknown inventory backend %q", cfg.Inventory.Backend)
	}
}

func buildNotifier(cfg *bootstrap.Config) port.EventPublisher {
	if !cfg.Inventory.PublishEnabled {
		return adapter.NewReservationKafkaNotifier(nil, false, false)
	}
	writer := mq.NewWriter(cfg.Infra.Kafka.Brokers, cfg.Inventory.Topic)
	return adapter.NewReservationKafkaNotifier(writer, true, cfg.Inventory.PublishStrict)
}
