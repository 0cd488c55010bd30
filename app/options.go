package app

import "time"

// Option 是一个函数类型，用于配置应用程序选项。
type Option func(*options)

type options struct {
	hooks           []Hook   // 按注册顺序启动、逆序停止的组件
	cleanups        []func() // 所有组件停止后执行的清理函数（如关闭缓存、刷新追踪数据）
	shutdownTimeout time.Duration
}

// WithHook 注册一个生命周期组件。
func WithHook(hooks ...Hook) Option {
	return func(o *options) {
		o.hooks = append(o.hooks, hooks...)
	}
}

// WithCleanup 是一个Option函数，用于向应用程序添加一个清理函数。
func WithCleanup(cleanup func()) Option {
	return func(o *options) {
		if cleanup != nil {
			o.cleanups = append(o.cleanups, cleanup)
		}
	}
}

// WithShutdownTimeout 设置关闭阶段的超时时间。
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}
