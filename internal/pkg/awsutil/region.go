// internal/pkg/awsutil/region.go
package awsutil

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"

	"nexus-inventory/internal/pkg/logger"
)

// ResolveRegion 按以下优先级解析 AWS region：
//  1. AWS_REGION / AWS_DEFAULT_REGION 环境变量
//  2. SDK 默认配置链（shared config、profile 等）
//  3. EC2 实例元数据（IMDSv2），除非被 AWS_EC2_METADATA_DISABLED 禁用
//
// 全部失败时返回空字符串，由调用方决定是否致命。
func ResolveRegion(ctx context.Context) string {
	if region := os.Getenv("AWS_REGION"); region != "" {
		return region
	}
	if region := os.Getenv("AWS_DEFAULT_REGION"); region != "" {
		return region
	}

	if cfg, err := config.LoadDefaultConfig(ctx); err == nil && cfg.Region != "" {
		return cfg.Region
	}

	if metadataDisabled() {
		return ""
	}

	imdsCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	out, err := imds.New(imds.Options{}).GetRegion(imdsCtx, &imds.GetRegionInput{})
	if err != nil {
		logger.Logger.Warn().Err(err).Msg("unable to determine AWS region automatically; set AWS_REGION env var")
		return ""
	}
	return out.Region
}

func metadataDisabled() bool {
	switch strings.ToLower(os.Getenv("AWS_EC2_METADATA_DISABLED")) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
