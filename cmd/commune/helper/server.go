package helper

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"k8s.io/klog/v2"

	"github.com/commune-hq/commune/internal"
	"github.com/commune-hq/commune/internal/handler"
	"github.com/commune-hq/commune/pkg/config"
	"github.com/commune-hq/commune/pkg/cronjob"
	"github.com/commune-hq/commune/pkg/events"
)

// ServerRunner 封装服务器运行逻辑
type ServerRunner struct {
	backendConfig *config.Config
}

// NewServerRunner 创建新的ServerRunner实例
func NewServerRunner(backendConfig *config.Config) *ServerRunner {
	return &ServerRunner{
		backendConfig: backendConfig,
	}
}

var (
	readHeaderTimeout = 10 * time.Second // 设置读取头部的超时时间
	cancelTimeout     = 10 * time.Second // 设置取消操作的超时时间
)

// StartBackgroundJobs 启动后台任务（outbox 投递与过期邀请清理）
func (sr *ServerRunner) StartBackgroundJobs(registerConfig *handler.RegisterConfig) (*cronjob.Manager, error) {
	publisher := events.NewPublisher(registerConfig.DB)
	cronMgr := cronjob.NewManager(registerConfig.DB, publisher, registerConfig.Members)
	if err := cronMgr.Start(); err != nil {
		return nil, err
	}
	return cronMgr, nil
}

// StartServer 启动HTTP服务器
func (sr *ServerRunner) StartServer(registerConfig *handler.RegisterConfig) {
	klog.Info("starting server")
	backend := internal.Register(registerConfig)

	// reference: https://gin-gonic.com/en/docs/examples/graceful-restart-or-stop
	srv := &http.Server{
		Addr:              sr.backendConfig.ServerAddr,
		Handler:           backend.R,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		// service connections
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			klog.Fatalf("listen: %s\n", err)
		}
	}()

	// 独立的 metrics 监听端口，供 Prometheus 抓取
	metricsSrv := &http.Server{
		Addr:              sr.backendConfig.MetricsAddr,
		Handler:           handler.MetricsHandler(registerConfig.DB),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			klog.Errorf("metrics listen: %s\n", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with
	// a timeout of 5 seconds.
	quit := make(chan os.Signal, 1)
	// kill (no params) by default sends syscall.SIGTERM
	// kill -2 is syscall.SIGINT
	// kill -9 is syscall.SIGKILL but can't be caught, so don't need add it
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	klog.Info("Shutdown Gin Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
	defer cancel()
	if err := metricsSrv.Shutdown(ctx); err != nil {
		klog.Info("Metrics Server Shutdown:", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		klog.Info("Gin Server Shutdown:", err)
	}
	klog.Info("Gin Server exiting")
}
