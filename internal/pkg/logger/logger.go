// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Logger 是进程级别的根 logger，由 Init 在启动时初始化。
var Logger zerolog.Logger

func init() {
	// 在 Init 被调用前也能安全使用（例如测试代码）
	Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// Init 根据 LOG_LEVEL 环境变量初始化全局 logger。
func Init(serviceName string) {
	level := zerolog.InfoLevel
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(raw)); err == nil {
			level = parsed
		}
	}

	Logger = zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

// Ctx 返回一个绑定了当前 trace_id 的 logger，方便日志与链路关联。
func Ctx(ctx context.Context) *zerolog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return &Logger
	}
	l := Logger.With().Str("trace_id", sc.TraceID().String()).Logger()
	return &l
}
