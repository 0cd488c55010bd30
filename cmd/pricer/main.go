package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"
	"github.com/wyfcoding/optionpricing/app"
	"github.com/wyfcoding/optionpricing/cache"
	"github.com/wyfcoding/optionpricing/config"
	"github.com/wyfcoding/optionpricing/logging"
	"github.com/wyfcoding/optionpricing/metrics"
	"github.com/wyfcoding/optionpricing/quote"
	"github.com/wyfcoding/optionpricing/report"
	"github.com/wyfcoding/optionpricing/tracing"
	"github.com/wyfcoding/optionpricing/xerrors"
)

const serviceName = "pricer"

// version 由构建时 -ldflags "-X main.version=..." 注入，未注入时使用配置中的 version。
var version = ""

func main() {
	fs := pflag.NewFlagSet(serviceName, pflag.ExitOnError)
	configPath := fs.String("config", "configs/pricer.toml", "path to config file (empty for defaults)")
	serve := fs.Bool("serve", false, "keep running after the first report: expose metrics and reprice on config change")
	ov := registerOverrides(fs)
	_ = fs.Parse(os.Args[1:])

	if err := run(context.Background(), *configPath, *serve, ov); err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		os.Exit(1)
	}
}

// describeError 输出错误信息，带链路 ID 时一并输出。
func describeError(err error) string {
	msg := "pricer: " + err.Error()
	if xe, ok := xerrors.FromError(err); ok {
		if id, ok := xe.Context["trace_id"].(string); ok && id != "" {
			msg += " trace_id=" + id
		}
	}
	return msg
}

func run(ctx context.Context, configPath string, serve bool, ov *overrides) error {
	var live config.Config
	if err := config.Load(configPath, &live); err != nil {
		return err
	}
	// live 会被热更新改写，这里只使用启动时的副本。
	cfg := config.Snapshot(&live)
	if version != "" {
		cfg.Version = version
	}

	logger := logging.InitFromConfig(cfg.LoggingConfig(serviceName, "cli"))
	config.PrintWithMask(&cfg)

	job, err := newJob(&cfg, ov)
	if err != nil {
		return err
	}

	shutdownTracer, err := tracing.InitTracer(cfg.Tracing)
	if err != nil {
		return err
	}

	opts := []quote.Option{
		quote.WithLogger(logger.Logger),
		quote.WithArbitrageMode(job.mode),
		quote.WithPrecision(cfg.Pricing.Precision),
		quote.WithConcurrency(cfg.Pricing.Concurrency),
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics(serviceName)
		m.RegisterBuildInfo(serviceName, cfg.Version)
		opts = append(opts, quote.WithMetrics(m))
	}

	var quoteCache *cache.BigCache
	if cfg.Cache.Enabled {
		quoteCache, err = cache.NewBigCache(cfg.Cache.TTL, cfg.Cache.MaxMB)
		if err != nil {
			return err
		}
		opts = append(opts, quote.WithCache(quoteCache, cfg.Cache.TTL))
	}

	cleanup := func() {
		if quoteCache != nil {
			_ = quoteCache.Close()
		}
		if err := shutdownTracer(context.Background()); err != nil {
			slog.Error("failed to shutdown tracer", "error", err)
		}
	}

	svc := quote.NewService(opts...)
	renderer := report.NewRenderer(cfg.Pricing.Precision)

	if err := job.execute(ctx, svc, renderer, os.Stdout); err != nil {
		cleanup()
		return err
	}
	if !serve {
		cleanup()
		return nil
	}

	// 配置热更新：刷新引擎设置后按新配置重新定价，命令行覆盖项继续生效。
	config.RegisterReloadHook(func(next *config.Config) {
		reloaded, err := newJob(next, ov)
		if err != nil {
			logger.Error("reloaded config rejected", "error", err)
			return
		}
		svc.Reconfigure(ctx, reloaded.mode, next.Pricing.Precision)
		if err := reloaded.execute(ctx, svc, report.NewRenderer(next.Pricing.Precision), os.Stdout); err != nil {
			logger.Error("repricing after reload failed", "error", err)
		}
	})

	var hooks []app.Hook
	if m != nil {
		var stopMetrics func()
		hooks = append(hooks, app.Hook{
			Name: "metrics",
			OnStart: func(context.Context) error {
				stopMetrics = m.ExposeHttp(cfg.Metrics.Port, cfg.Metrics.Path)
				return nil
			},
			OnStop: func(context.Context) error {
				stopMetrics()
				return nil
			},
		})
	}

	return app.New(serviceName, logger.Logger, app.WithHook(hooks...), app.WithCleanup(cleanup)).Run(ctx)
}
