// Package app 提供了应用程序的生命周期管理：按序启动组件、等待退出信号、逆序关闭并执行清理。
package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// App 是应用程序的核心容器，负责管理应用程序的生命周期。
type App struct {
	name            string
	logger          *slog.Logger
	lifecycle       *Lifecycle
	opts            options
	shutdownTimeout time.Duration
}

// New 创建一个新的应用程序实例。
// name: 应用程序的唯一标识名称。
// logger: 应用程序使用的日志记录器。
func New(name string, logger *slog.Logger, opts ...Option) *App {
	o := options{shutdownTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	lc := NewLifecycle(logger)
	for _, hook := range o.hooks {
		lc.Append(hook)
	}
	return &App{
		name:            name,
		logger:          logger,
		lifecycle:       lc,
		opts:            o,
		shutdownTimeout: o.shutdownTimeout,
	}
}

// Run 启动所有组件并阻塞，直到收到 SIGINT/SIGTERM 或 ctx 被取消，随后优雅关闭。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application starting", "name", a.name, "pid", os.Getpid())

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.lifecycle.Start(ctx); err != nil {
		a.cleanup()
		return err
	}

	<-ctx.Done()
	a.logger.Info("shutting down application", "name", a.name)

	// 关闭阶段使用独立的超时上下文，父上下文此时已取消。
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	err := a.lifecycle.Stop(shutdownCtx)
	a.cleanup()
	if err != nil {
		return err
	}

	a.logger.Info("application shut down gracefully")
	return nil
}

func (a *App) cleanup() {
	for _, cleanup := range a.opts.cleanups {
		cleanup()
	}
}
