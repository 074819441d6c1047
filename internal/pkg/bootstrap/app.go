// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"nexus-inventory/internal/pkg/logger"
	"nexus-inventory/internal/pkg/tracing"
)

type AppCtx struct {
	Mux *http.ServeMux
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName      string
	Port             int
	RegisterHandlers func(appCtx AppCtx) // 一个函数，允许每个服务注册自己独特的 HTTP 路由
	OnShutdown       func(ctx context.Context)
}

// Init 加载配置并初始化全局 logger，必须在 StartService 之前调用。
func Init(serviceName string) {
	loadConfig()
	logger.Init(serviceName)
}

// StartService 封装了所有微服务的通用启动和优雅关停逻辑。
func StartService(info AppInfo) {
	// 1. 初始化核心组件：Tracer
	tp, err := tracing.InitTracerProvider(info.ServiceName, GetCurrentConfig().Infra.Jaeger.Endpoint)
	if err != nil {
		log.Fatalf("failed to initialize tracer provider: %v", err)
	}

	// 2. 创建并启动 HTTP Server
	mux := http.NewServeMux()
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Mux: mux})
	}
	addr := GetCurrentConfig().App.Host + ":" + strconv.Itoa(info.Port)
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Printf("%s listening on %s", info.ServiceName, addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("could not listen on %s: %v\n", server.Addr, err)
		}
	}()

	// 3. 优雅关停
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// 阻塞主 goroutine，直到接收到退出信号
	<-quit
	log.Printf("Shutting down service %s...", info.ServiceName)

	// 创建一个有超时的 context，用于关停流程
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 按顺序执行清理操作 (后进先出)
	// a. 业务层资源（store、notifier 等）
	if info.OnShutdown != nil {
		info.OnShutdown(ctx)
	}

	// b. 关闭 Tracer Provider，确保所有缓冲的 trace 都被发送出去
	if err := tp.Shutdown(ctx); err != nil {
		log.Printf("Error shutting down tracer provider: %v", err)
	} else {
		log.Println("Tracer provider shut down.")
	}

	// c. 关闭 HTTP 服务器
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Error shutting down http server: %v", err)
	} else {
		log.Println("HTTP server shut down.")
	}

	log.Printf("Service %s gracefully shut down.", info.ServiceName)
}

// getEnv 是一个内部辅助函数，从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
