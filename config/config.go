// Package config 提供了统一的配置加载与管理能力.
// 配置文件为 TOML，环境变量以 PRICER_ 为前缀覆盖同名键（如 PRICER_PRICING_CONTRACT_SPOT）。
package config

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"github.com/wyfcoding/optionpricing/algorithm/finance"
	"github.com/wyfcoding/optionpricing/algorithm/types"
	"github.com/wyfcoding/optionpricing/logging"
	"github.com/wyfcoding/optionpricing/xerrors"
)

// EnvPrefix 环境变量覆盖前缀。
const EnvPrefix = "PRICER"

// Config 全局顶级配置结构.
type Config struct {
	Version string        `mapstructure:"version" toml:"version"`
	Log     LogConfig     `mapstructure:"log"     toml:"log"`
	Metrics MetricsConfig `mapstructure:"metrics" toml:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing" toml:"tracing"`
	Cache   CacheConfig   `mapstructure:"cache"   toml:"cache"`
	Pricing PricingConfig `mapstructure:"pricing" toml:"pricing"`
}

// LogConfig 定义日志输出、级别与切割策略.
type LogConfig struct {
	Level      string `mapstructure:"level"       toml:"level"       validate:"omitempty,oneof=debug info warn error"` // 日志级别。
	File       string `mapstructure:"file"        toml:"file"`                                                         // 日志文件路径。
	Console    bool   `mapstructure:"console"     toml:"console"`                                                      // 写文件时是否同时输出到 stdout。
	MaxSize    int    `mapstructure:"max_size"    toml:"max_size"    validate:"gte=0"`                                 // 单个文件最大大小 (MB)。
	MaxBackups int    `mapstructure:"max_backups" toml:"max_backups" validate:"gte=0"`                                 // 最大备份数。
	MaxAge     int    `mapstructure:"max_age"     toml:"max_age"     validate:"gte=0"`                                 // 最大保留天数。
	Compress   bool   `mapstructure:"compress"    toml:"compress"`                                                     // 是否启用压缩。
}

// MetricsConfig 普罗米修斯监控指标暴露配置.
type MetricsConfig struct {
	Port    string `mapstructure:"port"    toml:"port"    validate:"required_if=Enabled true"`
	Path    string `mapstructure:"path"    toml:"path"`
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
}

// TracingConfig 分布式链路追踪（OpenTelemetry）配置.
type TracingConfig struct {
	ServiceName  string  `mapstructure:"service_name"  toml:"service_name"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" toml:"otlp_endpoint" validate:"required_if=Enabled true"`
	SamplerRatio float64 `mapstructure:"sampler_ratio" toml:"sampler_ratio" validate:"gte=0,lte=1"`
	Enabled      bool    `mapstructure:"enabled"       toml:"enabled"`
}

// CacheConfig 报价缓存配置.
type CacheConfig struct {
	TTL     time.Duration `mapstructure:"ttl"     toml:"ttl"     validate:"required_if=Enabled true"`
	MaxMB   int           `mapstructure:"max_mb"  toml:"max_mb"  validate:"gte=0"`
	Enabled bool          `mapstructure:"enabled" toml:"enabled"`
}

// PricingConfig 定价任务配置.
type PricingConfig struct {
	Instruments      []string       `mapstructure:"instruments"       toml:"instruments"       validate:"dive,instrument"`
	ArbitrageMode    string         `mapstructure:"arbitrage_mode"    toml:"arbitrage_mode"    validate:"omitempty,oneof=reject warn ignore"`
	Precision        int32          `mapstructure:"precision"         toml:"precision"         validate:"gte=0,lte=12"`
	Concurrency      int            `mapstructure:"concurrency"       toml:"concurrency"       validate:"gte=0"`
	ConvergenceSteps []int          `mapstructure:"convergence_steps" toml:"convergence_steps" validate:"dive,gte=1"`
	Contract         ContractConfig `mapstructure:"contract"          toml:"contract"`
}

// ContractConfig 默认合约参数，命令行参数可以逐项覆盖.
type ContractConfig struct {
	Spot       float64 `mapstructure:"spot"       toml:"spot"`
	Strike     float64 `mapstructure:"strike"     toml:"strike"`
	Rate       float64 `mapstructure:"rate"       toml:"rate"`
	Yield      float64 `mapstructure:"yield"      toml:"yield"`
	Volatility float64 `mapstructure:"volatility" toml:"volatility"`
	Maturity   float64 `mapstructure:"maturity"   toml:"maturity"`
	Steps      int     `mapstructure:"steps"      toml:"steps"`
}

// Params 将配置转换为经过校验的合约参数。
func (c ContractConfig) Params() (finance.ContractParams, error) {
	return finance.NewContractParams(c.Spot, c.Strike, c.Rate, c.Yield, c.Volatility, c.Maturity, c.Steps)
}

// InstrumentList 解析配置中的品种名，为空时返回全部品种。
func (c PricingConfig) InstrumentList() ([]types.Instrument, error) {
	if len(c.Instruments) == 0 {
		return types.AllInstruments(), nil
	}
	out := make([]types.Instrument, 0, len(c.Instruments))
	for _, name := range c.Instruments {
		inst, ok := types.ParseInstrument(name)
		if !ok {
			return nil, xerrors.ErrUnknownInstrument.WithDetail("instrument %q", name)
		}
		out = append(out, inst)
	}
	return out, nil
}

// LoggingConfig 转换为 logging 包的配置。
func (c *Config) LoggingConfig(service, module string) logging.Config {
	return logging.Config{
		Service:    service,
		Module:     module,
		Level:      c.Log.Level,
		File:       c.Log.File,
		Console:    c.Log.Console,
		MaxSize:    c.Log.MaxSize,
		MaxBackups: c.Log.MaxBackups,
		MaxAge:     c.Log.MaxAge,
		Compress:   c.Log.Compress,
	}
}

// SetDefaults 写入默认值，配置文件与环境变量都可以覆盖它们。
func SetDefaults(v *viper.Viper) {
	v.SetDefault("version", "dev")
	v.SetDefault("log.level", "info")
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("tracing.service_name", "pricer")
	v.SetDefault("tracing.sampler_ratio", 1.0)
	v.SetDefault("cache.ttl", time.Minute)
	v.SetDefault("cache.max_mb", 64)
	v.SetDefault("pricing.arbitrage_mode", string(finance.ArbitrageReject))
	v.SetDefault("pricing.precision", 6)
	v.SetDefault("pricing.contract.spot", 100.0)
	v.SetDefault("pricing.contract.strike", 95.0)
	v.SetDefault("pricing.contract.rate", 0.1)
	v.SetDefault("pricing.contract.yield", 0.06)
	v.SetDefault("pricing.contract.volatility", 0.25)
	v.SetDefault("pricing.contract.maturity", 1.0)
	v.SetDefault("pricing.contract.steps", 100)
}

var (
	vInstance = viper.New()
	validate  = newValidator()

	hooksMu  sync.RWMutex
	onReload []func(*Config)

	// confMu 保护 Load 传入的配置，热更新在 fsnotify 的 goroutine 上写入它。
	confMu sync.RWMutex
)

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("instrument", func(fl validator.FieldLevel) bool {
		_, ok := types.ParseInstrument(fl.Field().String())
		return ok
	}); err != nil {
		panic(err)
	}
	return v
}

// RegisterReloadHook 注册配置热更新回调。
func RegisterReloadHook(hook func(*Config)) {
	if hook == nil {
		return
	}
	hooksMu.Lock()
	defer hooksMu.Unlock()
	onReload = append(onReload, hook)
}

// Validate 校验配置结构及合约默认值。
func Validate(conf *Config) error {
	if err := validate.Struct(conf); err != nil {
		return xerrors.ErrInvalidConfig.WithCause(err).WithDetail("%v", err)
	}
	if _, err := conf.Pricing.Contract.Params(); err != nil {
		return xerrors.ErrInvalidConfig.WithCause(err).WithDetail("pricing.contract: %v", err)
	}
	return nil
}

// Load 读取配置文件、应用环境变量覆盖并校验，随后监听文件变化热更新。
// path 为空时只使用默认值与环境变量。
func Load(path string, conf *Config) error {
	if err := readInto(vInstance, path, conf); err != nil {
		return err
	}
	if path == "" {
		return nil
	}

	vInstance.OnConfigChange(func(event fsnotify.Event) {
		slog.Info("detecting config change", "file", event.Name)
		const debounceTimeout = 500 * time.Millisecond
		time.Sleep(debounceTimeout)
		reload(vInstance, conf)
	})
	vInstance.WatchConfig()

	return nil
}

func readInto(v *viper.Viper, path string, conf *Config) error {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return xerrors.ErrInvalidConfig.WithCause(err).WithDetail("read %s: %v", path, err)
		}
	}

	if err := v.Unmarshal(conf); err != nil {
		return xerrors.ErrInvalidConfig.WithCause(err).WithDetail("unmarshal: %v", err)
	}
	return Validate(conf)
}

// reload 重新解析配置；新配置无效时保留旧值。
func reload(v *viper.Viper, conf *Config) {
	var next Config
	if err := v.Unmarshal(&next); err != nil {
		slog.Error("reload config unmarshal failed", "error", err)
		return
	}
	if err := Validate(&next); err != nil {
		slog.Error("reload config validation failed", "error", err)
		return
	}

	confMu.Lock()
	*conf = next
	confMu.Unlock()
	logging.SetLevel(next.Log.Level)
	slog.Info("config hot-reloaded and validated successfully")

	hooksMu.RLock()
	hooks := append([]func(*Config){}, onReload...)
	hooksMu.RUnlock()
	for _, hook := range hooks {
		// 每个回调拿到独立副本，不与 conf 共享内存。
		snapshot := next
		hook(&snapshot)
	}
}

// Snapshot 返回 Load 所加载配置的一致副本。启用热更新后读取配置应通过它进行。
func Snapshot(conf *Config) Config {
	confMu.RLock()
	defer confMu.RUnlock()
	return *conf
}

// PrintWithMask 脱敏打印当前配置.
func PrintWithMask(conf any) {
	data, err := json.Marshal(conf)
	if err != nil {
		slog.Error("failed to marshal config for printing", "error", err)
		return
	}

	var configMap map[string]any
	if unmarshalErr := json.Unmarshal(data, &configMap); unmarshalErr != nil {
		slog.Error("failed to unmarshal config for masking", "error", unmarshalErr)
		return
	}

	mask(configMap)

	maskedJSON, marshalErr := json.Marshal(configMap)
	if marshalErr != nil {
		slog.Error("failed to marshal masked config", "error", marshalErr)
		return
	}

	slog.Info("Current effective configuration", "config", string(maskedJSON))
}

func mask(configMap map[string]any) {
	sensitiveKeys := []string{"password", "secret", "token", "endpoint"}

	for key, val := range configMap {
		if subMap, ok := val.(map[string]any); ok {
			mask(subMap)
			continue
		}
		for _, sensitiveKey := range sensitiveKeys {
			if strings.Contains(strings.ToLower(key), sensitiveKey) {
				configMap[key] = "******"
				break
			}
		}
	}
}

// IsInvalid 判断错误是否为配置错误。
func IsInvalid(err error) bool {
	return errors.Is(err, xerrors.ErrInvalidConfig)
}
