package infrastructure

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	pkgerrors "github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"nexus-inventory/internal/pkg/logger"
	"nexus-inventory/internal/service/inventory/domain"
)

const (
	backendDynamo = "dynamodb"

	stockAttrName       = "stock"
	updatedAtName       = "updated_at"
	partitionKey        = "sku"
	maxTransactItems    = 25 // DynamoDB 单事务条目数硬上限
	maxTransactAttempts = 3
)

// dynamoAPI 收窄了 *dynamodb.Client 的接口面，便于测试注入。
type dynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoStore 用读取-条件写的乐观并发控制（OCC）扣减库存：
// 每个 SKU 先做强一致读并保留后端返回的原始属性值，
// 再以"该属性仍等于读到的原始值"为条件构造更新，
// 所有 SKU 的更新打包成一个 all-or-nothing 事务提交，冲突时有限次重试。
//
// 保留原始属性值（而不是解码后的整数）作为条件期望值，
// 避免数值重新编码带来的格式漂移导致条件误判。
type DynamoStore struct {
	client dynamoAPI
	table  string

	// 探测权限告警只在首个实例首次出现时用 warn 级别，之后降为 debug。
	// 状态归属于 store 实例而非包级变量，多实例/测试下行为确定。
	describeDenied atomic.Bool
}

func NewDynamoStore(client dynamoAPI, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

func (s *DynamoStore) Backend() string { return backendDynamo }

// Ping 用 DescribeTable 做可达性探测。
// DescribeTable 权限被拒不算不健康：探测权限可能被有意收紧而不影响写权限。
func (s *DynamoStore) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.table),
	})
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) &&
		apiErr.ErrorCode() == "AccessDeniedException" &&
		strings.Contains(apiErr.ErrorMessage(), "dynamodb:DescribeTable") {
		if s.describeDenied.CompareAndSwap(false, true) {
			logger.Ctx(ctx).Warn().Msg("DescribeTable access denied; skipping table health check")
		} else {
			logger.Ctx(ctx).Debug().Msg("DescribeTable access denied; skipping table health check")
		}
		return nil
	}

	return domain.NewStoreError(backendDynamo, "describe_table", err)
}

func (s *DynamoStore) Apply(ctx context.Context, demand domain.AggregatedDemand) (*domain.ApplyResult, error) {
	if len(demand) == 0 {
		return &domain.ApplyResult{Status: domain.StatusNoop}, nil
	}
	if len(demand) > maxTransactItems {
		// 后端硬上限，不可重试
		return nil, domain.NewStoreError(backendDynamo, "apply",
			pkgerrors.Errorf("transaction limit exceeded (max %d unique SKUs per order)", maxTransactItems))
	}

	for attempt := 1; attempt <= maxTransactAttempts; attempt++ {
		timestamp := time.Now().UTC().Format(time.RFC3339Nano)
		transactItems, err := s.prepareTransactItems(ctx, demand, timestamp)
		if err != nil {
			return nil, err
		}
		if len(transactItems) == 0 {
			return &domain.ApplyResult{Status: domain.StatusNoop}, nil
		}

		out, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems:          transactItems,
			ReturnConsumedCapacity: types.ReturnConsumedCapacityTotal,
		})
		if err == nil {
			return &domain.ApplyResult{
				Status:           domain.StatusUpdated,
				ConsumedCapacity: out.ConsumedCapacity,
			}, nil
		}

		if isConditionalCancellation(err) {
			reservationConflictRetries.Inc()
			if attempt < maxTransactAttempts {
				logger.Ctx(ctx).Info().
					Int("attempt", attempt).
					Int("max_attempts", maxTransactAttempts).
					Str("skus", joinSKUs(demand)).
					Msg("retrying transaction after conditional failure")
				continue
			}
			// 重试耗尽的条件冲突按库存不可得处理，不算基础设施故障。
			// 消息保留冲突语义，配合 conflict 计数器区分热点竞争与真实缺货。
			return nil, pkgerrors.Wrap(domain.ErrOutOfStock,
				"transaction conflict persisted: requested quantity exceeds available stock")
		}

		// 其他后端故障（网络、限流、请求格式）立即失败，不在 OCC 循环内重试
		return nil, domain.NewStoreError(backendDynamo, "transact_write_items", err)
	}

	// 不可达：循环要么返回要么 continue 到最后一次
	return nil, domain.NewStoreError(backendDynamo, "apply", pkgerrors.New("attempt budget exhausted"))
}

func (s *DynamoStore) Close() error { return nil }

// prepareTransactItems 为 demand 中的每个 SKU 读取当前库存并构造条件更新。
// 读取并发执行，条目按 SKU 排序组装，保证事务内容确定。
func (s *DynamoStore) prepareTransactItems(ctx context.Context, demand domain.AggregatedDemand, timestamp string) ([]types.TransactWriteItem, error) {
	skus := make([]string, 0, len(demand))
	for sku, qty := range demand {
		if qty <= 0 {
			continue
		}
		skus = append(skus, sku)
	}
	sort.Strings(skus)

	available := make([]int, len(skus))
	expected := make([]types.AttributeValue, len(skus))

	g, gctx := errgroup.WithContext(ctx)
	for i, sku := range skus {
		i, sku := i, sku
		g.Go(func() error {
			avail, rawAttr, err := s.fetchCurrentStock(gctx, sku)
			if err != nil {
				return err
			}
			if demand[sku] > avail {
				return pkgerrors.Wrapf(domain.ErrOutOfStock,
					"requested quantity exceeds available stock for %s", sku)
			}
			available[i] = avail
			expected[i] = rawAttr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	operations := make([]types.TransactWriteItem, 0, len(skus))
	for i, sku := range skus {
		newStock := available[i] - demand[sku]
		operations = append(operations, types.TransactWriteItem{
			Update: &types.Update{
				TableName: aws.String(s.table),
				Key: map[string]types.AttributeValue{
					partitionKey: &types.AttributeValueMemberS{Value: sku},
				},
				UpdateExpression:    aws.String("SET #stock = :new_stock, " + updatedAtName + " = :ts"),
				ConditionExpression: aws.String("#stock = :expected"),
				ExpressionAttributeNames: map[string]string{
					"#stock": stockAttrName,
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":new_stock": &types.AttributeValueMemberN{Value: strconv.Itoa(newStock)},
					":expected":  expected[i],
					":ts":        &types.AttributeValueMemberS{Value: timestamp},
				},
			},
		})
	}
	return operations, nil
}

// fetchCurrentStock 做一次强一致读，同时返回解码后的库存和原始属性值。
// SKU 不存在按零库存处理（ErrOutOfStock），不是基础设施错误。
func (s *DynamoStore) fetchCurrentStock(ctx context.Context, sku string) (int, types.AttributeValue, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			partitionKey: &types.AttributeValueMemberS{Value: sku},
		},
		ProjectionExpression:     aws.String("#stock"),
		ExpressionAttributeNames: map[string]string{"#stock": stockAttrName},
		ConsistentRead:           aws.Bool(true),
	})
	if err != nil {
		return 0, nil, domain.NewStoreError(backendDynamo, "get_item "+sku, err)
	}

	attr, ok := out.Item[stockAttrName]
	if !ok {
		return 0, nil, pkgerrors.Wrapf(domain.ErrOutOfStock, "sku %s not found in inventory", sku)
	}

	avail, ok := resolveNumeric(attr)
	if !ok {
		// 解码失败与缺货是两个不同的故障类别，这里必须是 store 级错误
		return 0, nil, domain.NewStoreError(backendDynamo, "get_item "+sku,
			pkgerrors.Errorf("sku %s has invalid stock attribute", sku))
	}
	return avail, attr, nil
}

// resolveNumeric 对 DynamoDB 属性做深度优先的宽容解码：
// 标量 N/S 直接转换；复合结构优先走约定的 "N" 子字段，其次 "S"、"M"、"L"，
// 再退化为遍历剩余子值，返回第一个解码成功的叶子。
func resolveNumeric(attr types.AttributeValue) (int, bool) {
	switch v := attr.(type) {
	case *types.AttributeValueMemberN:
		return coerceNumeric(v.Value)
	case *types.AttributeValueMemberS:
		return coerceNumeric(v.Value)
	case *types.AttributeValueMemberM:
		for _, key := range []string{"N", "S", "M", "L"} {
			if nested, ok := v.Value[key]; ok {
				if n, ok := resolveNumeric(nested); ok {
					return n, true
				}
			}
		}
		for key, nested := range v.Value {
			switch key {
			case "N", "S", "M", "L":
				continue
			}
			if n, ok := resolveNumeric(nested); ok {
				return n, true
			}
		}
		return 0, false
	case *types.AttributeValueMemberL:
		for _, nested := range v.Value {
			if n, ok := resolveNumeric(nested); ok {
				return n, true
			}
		}
		return 0, false
	default:
		return 0, false
	}
}

func coerceNumeric(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		return n, true
	}
	// DynamoDB 的 N 可能带小数表示，向零截断
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return int(f), true
	}
	return 0, false
}

// isConditionalCancellation 判断事务失败是否由条件检查不通过引起，
// 即另一个写入者抢先改掉了我们读到的值。只有这种失败才值得重试。
func isConditionalCancellation(err error) bool {
	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		for _, reason := range canceled.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				return true
			}
		}
		return false
	}
	var conditional *types.ConditionalCheckFailedException
	return errors.As(err, &conditional)
}

func joinSKUs(demand domain.AggregatedDemand) string {
	skus := make([]string, 0, len(demand))
	for sku := range demand {
		skus = append(skus, sku)
	}
	sort.Strings(skus)
	return strings.Join(skus, ",")
}
