package infrastructure

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	pkgerrors "github.com/pkg/errors"

	"nexus-inventory/internal/pkg/logger"
	"nexus-inventory/internal/service/inventory/domain"
)

// EnsureTable 在启动时确认库存表可用。
//
// 库存记录本身由外部流程预置，这里只处理一个本地开发的便利场景：
// 配置了自定义 endpoint（如 dynamodb-local）且表不存在时自动建表。
// 没有自定义 endpoint 时，表缺失是致命的配置错误。
func EnsureTable(ctx context.Context, client *dynamodb.Client, table string, endpointConfigured bool) error {
	_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) &&
		apiErr.ErrorCode() == "AccessDeniedException" &&
		strings.Contains(apiErr.ErrorMessage(), "dynamodb:DescribeTable") {
		// 与 Ping 一致：探测权限受限不阻止启动
		logger.Ctx(ctx).Warn().Msg("DescribeTable access denied; skipping startup table check")
		return nil
	}

	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return domain.NewStoreError(backendDynamo, "describe_table", err)
	}
	if !endpointConfigured {
		return pkgerrors.Wrapf(domain.ErrConfiguration, "dynamodb table %s not found", table)
	}

	logger.Ctx(ctx).Info().Str("table", table).Msg("dynamodb table not found; creating it against the configured endpoint")
	_, err = client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(table),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(partitionKey), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(partitionKey), KeyType: types.KeyTypeHash},
		},
	})
	if err != nil {
		return domain.NewStoreError(backendDynamo, "create_table", err)
	}

	waiter := dynamodb.NewTableExistsWaiter(client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)}, 2*time.Minute); err != nil {
		return domain.NewStoreError(backendDynamo, "wait_table_exists", err)
	}
	logger.Ctx(ctx).Info().Str("table", table).Msg("dynamodb table created")
	return nil
}
