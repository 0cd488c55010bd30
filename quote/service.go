// Package quote 定价应用服务：校验请求、查询缓存、调用二叉树与解析解引擎，并记录指标与链路。
package quote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"
	"github.com/wyfcoding/optionpricing/algorithm/finance"
	"github.com/wyfcoding/optionpricing/algorithm/types"
	"github.com/wyfcoding/optionpricing/cache"
	"github.com/wyfcoding/optionpricing/metrics"
	"github.com/wyfcoding/optionpricing/tracing"
	"github.com/wyfcoding/optionpricing/xerrors"
)

// DefaultPrecision 报价默认保留的小数位数。
const DefaultPrecision int32 = 6

// Request 单个品种的报价请求。
type Request struct {
	Instrument types.Instrument      `json:"instrument"`
	Params     finance.ContractParams `json:"params"`
}

// Quote 二叉树报价结果。Price 按服务精度四舍五入，Raw 保留原始浮点值。
type Quote struct {
	Instrument         types.Instrument      `json:"instrument"`
	Params             finance.ContractParams `json:"params"`
	Price              decimal.Decimal        `json:"price"`
	Raw                float64                `json:"raw"`
	EarlyExerciseNodes int                    `json:"early_exercise_nodes"`
	Cached             bool                   `json:"cached"`
}

// Reference 某个期权类型与持有成本口径下的解析解及希腊字母。
type Reference struct {
	OptionType types.OptionType           `json:"option_type"`
	Carry      types.CarryModel           `json:"carry"`
	Result     finance.BlackScholesResult `json:"result"`
}

// CrossCheck 欧式品种的二叉树价格与解析解对比。
type CrossCheck struct {
	Instrument types.Instrument `json:"instrument"`
	Lattice    float64          `json:"lattice"`
	ClosedForm float64          `json:"closed_form"`
	Difference float64          `json:"difference"`
}

// settings 可热更新的部分，整体替换。
type settings struct {
	pricer    *finance.BinomialPricer
	precision int32
}

// Service 报价服务，可安全并发使用。
type Service struct {
	current     atomic.Pointer[settings]
	bs          *finance.BlackScholesCalculator
	cache       cache.Cache
	cacheTTL    time.Duration
	metrics     *metrics.Metrics
	logger      *slog.Logger
	concurrency int
}

// Option 服务配置项。
type Option func(*Service)

// WithCache 启用报价缓存。
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithMetrics 记录定价指标。
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithConcurrency 限制批量报价的并行度。
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithArbitrageMode 设置二叉树引擎的无套利检查模式。
func WithArbitrageMode(mode finance.ArbitrageMode) Option {
	return func(s *Service) {
		cur := s.current.Load()
		s.current.Store(&settings{pricer: finance.NewBinomialPricer(finance.WithArbitrageMode(mode)), precision: cur.precision})
	}
}

// WithPrecision 设置报价保留的小数位数。
func WithPrecision(places int32) Option {
	return func(s *Service) {
		cur := s.current.Load()
		s.current.Store(&settings{pricer: cur.pricer, precision: places})
	}
}

// NewService 创建报价服务。
func NewService(opts ...Option) *Service {
	s := &Service{
		bs:          finance.NewBlackScholesCalculator(),
		logger:      slog.Default(),
		concurrency: runtime.GOMAXPROCS(0),
	}
	s.current.Store(&settings{pricer: finance.NewBinomialPricer(), precision: DefaultPrecision})
	for _, opt := range opts {
		opt(s)
	}
	// 引擎的告警日志与服务共用同一个 logger。
	cur := s.current.Load()
	s.current.Store(&settings{
		pricer:    finance.NewBinomialPricer(finance.WithArbitrageMode(cur.pricer.Mode()), finance.WithLogger(s.logger)),
		precision: cur.precision,
	})
	return s
}

// Reconfigure 替换无套利模式与精度，并清空缓存。正在进行的报价不受影响。
func (s *Service) Reconfigure(ctx context.Context, mode finance.ArbitrageMode, precision int32) {
	s.current.Store(&settings{
		pricer:    finance.NewBinomialPricer(finance.WithArbitrageMode(mode), finance.WithLogger(s.logger)),
		precision: precision,
	})
	if r, ok := s.cache.(interface{ Reset() error }); ok {
		if err := r.Reset(); err != nil {
			s.logger.WarnContext(ctx, "failed to reset quote cache", "error", err)
		}
	}
	s.logger.InfoContext(ctx, "quote service reconfigured", "arbitrage_mode", mode, "precision", precision)
}

// ArbitrageMode 返回当前生效的无套利检查模式。
func (s *Service) ArbitrageMode() finance.ArbitrageMode {
	return s.current.Load().pricer.Mode()
}

// Quote 对单个品种做二叉树定价。
func (s *Service) Quote(ctx context.Context, req Request) (_ *Quote, err error) {
	ctx, span := tracing.StartSpan(ctx, "quote.Quote")
	defer span.End()
	tracing.AddTag(ctx, "instrument", string(req.Instrument))
	tracing.AddTag(ctx, "steps", req.Params.Steps)
	defer func() { tracing.SetError(ctx, err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !req.Instrument.Valid() {
		return nil, xerrors.ErrUnknownInstrument.WithDetail("instrument %q", string(req.Instrument))
	}

	cur := s.current.Load()
	key := cacheKey(req, cur.pricer.Mode())

	if s.cache != nil {
		var cached Quote
		getErr := s.cache.Get(ctx, key, &cached)
		switch {
		case getErr == nil && isFinite(cached.Raw):
			s.metrics.ObserveCache(true)
			tracing.AddTag(ctx, "cache", "hit")
			cached.Cached = true
			cached.Price = decimal.NewFromFloat(cached.Raw).Round(cur.precision)
			return &cached, nil
		case getErr == nil, errors.Is(getErr, xerrors.ErrCacheMiss):
			s.metrics.ObserveCache(false)
		default:
			s.logger.WarnContext(ctx, "quote cache read failed", "key", key, "error", getErr)
		}
	}

	start := time.Now()
	res, err := cur.pricer.Evaluate(req.Instrument, req.Params)
	if err == nil && !isFinite(res.Price) {
		err = xerrors.ErrNonFinitePrice.WithDetail("%s price %v", req.Instrument, res.Price)
	}
	s.metrics.ObservePricing(string(req.Instrument), metrics.MethodLattice, time.Since(start), err)
	if err != nil {
		s.logger.DebugContext(ctx, "lattice pricing failed", "instrument", req.Instrument, "params", req.Params.String(), "error", err)
		return nil, withTraceID(ctx, err)
	}
	if s.metrics != nil && req.Instrument.IsAmerican() {
		s.metrics.EarlyExerciseNodes.WithLabelValues(string(req.Instrument)).Observe(float64(res.EarlyExerciseNodes))
	}

	q := &Quote{
		Instrument:         req.Instrument,
		Params:             req.Params,
		Price:              decimal.NewFromFloat(res.Price).Round(cur.precision),
		Raw:                res.Price,
		EarlyExerciseNodes: res.EarlyExerciseNodes,
	}
	tracing.AddTag(ctx, "price", res.Price)

	if s.cache != nil {
		if setErr := s.cache.Set(ctx, key, q, s.cacheTTL); setErr != nil {
			s.logger.WarnContext(ctx, "quote cache write failed", "key", key, "error", setErr)
		}
	}
	return q, nil
}

// QuoteAll 并行为多个品种定价，结果顺序与 instruments 一致。
// 任一品种失败时取消尚未开始的报价并返回第一个错误。
func (s *Service) QuoteAll(ctx context.Context, params finance.ContractParams, instruments []types.Instrument) ([]*Quote, error) {
	ctx, span := tracing.StartSpan(ctx, "quote.QuoteAll")
	defer span.End()
	tracing.AddTag(ctx, "instruments", len(instruments))

	out := make([]*Quote, len(instruments))
	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError().WithMaxGoroutines(s.concurrency)
	for i, inst := range instruments {
		p.Go(func(ctx context.Context) error {
			q, err := s.Quote(ctx, Request{Instrument: inst, Params: params})
			if err != nil {
				return err
			}
			out[i] = q
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		tracing.SetError(ctx, err)
		return nil, err
	}
	return out, nil
}

// References 计算看涨、看跌在股票与期货口径下的解析解及希腊字母。
func (s *Service) References(ctx context.Context, params finance.ContractParams) ([]Reference, error) {
	ctx, span := tracing.StartSpan(ctx, "quote.References")
	defer span.End()

	var refs []Reference
	for _, carry := range []types.CarryModel{types.CarryEquity, types.CarryFutures} {
		for _, ot := range []types.OptionType{types.OptionTypeCall, types.OptionTypePut} {
			// 指标按解析解对应的欧式品种名记录，与二叉树报价共用同一组 instrument 取值。
			inst, _ := types.FindInstrument(types.InstrumentSpec{OptionType: ot, Exercise: types.ExerciseEuropean, Carry: carry})
			start := time.Now()
			res, err := s.bs.Calculate(ot, carry, params)
			s.metrics.ObservePricing(string(inst), metrics.MethodClosedForm, time.Since(start), err)
			if err != nil {
				tracing.SetError(ctx, err)
				return nil, err
			}
			refs = append(refs, Reference{OptionType: ot, Carry: carry, Result: *res})
		}
	}
	return refs, nil
}

// CrossCheck 对 instruments 中的欧式品种比较二叉树价格与解析解，美式品种跳过。
func (s *Service) CrossCheck(ctx context.Context, params finance.ContractParams, instruments []types.Instrument) ([]CrossCheck, error) {
	var european []types.Instrument
	for _, inst := range instruments {
		if spec, ok := inst.Spec(); ok && spec.Exercise == types.ExerciseEuropean {
			european = append(european, inst)
		}
	}

	quotes, err := s.QuoteAll(ctx, params, european)
	if err != nil {
		return nil, err
	}

	checks := make([]CrossCheck, 0, len(quotes))
	for _, q := range quotes {
		ref, err := s.bs.PriceInstrument(q.Instrument, params)
		if err != nil {
			return nil, err
		}
		checks = append(checks, CrossCheck{
			Instrument: q.Instrument,
			Lattice:    q.Raw,
			ClosedForm: ref,
			Difference: q.Raw - ref,
		})
	}
	return checks, nil
}

// Convergence 对欧式品种做步数收敛性对比。
func (s *Service) Convergence(ctx context.Context, inst types.Instrument, params finance.ContractParams, steps []int) (*finance.ConvergenceReport, error) {
	ctx, span := tracing.StartSpan(ctx, "quote.Convergence")
	defer span.End()
	tracing.AddTag(ctx, "instrument", string(inst))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report, err := finance.ConvergenceStudy(inst, params, steps,
		finance.WithPricer(s.current.Load().pricer),
		finance.WithConcurrency(s.concurrency),
	)
	if err != nil {
		tracing.SetError(ctx, err)
		return nil, err
	}
	return report, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// withTraceID 把当前链路 ID 挂到错误上下文，便于从命令行输出回查链路。
func withTraceID(ctx context.Context, err error) error {
	xe, ok := xerrors.FromError(err)
	if !ok {
		return err
	}
	if id := tracing.GetTraceID(ctx); id != "" {
		return xe.WithContext("trace_id", id)
	}
	return err
}

// cacheKey 以品种、模式和参数的精确表示作为缓存键。
func cacheKey(req Request, mode finance.ArbitrageMode) string {
	p := req.Params
	var b strings.Builder
	b.WriteString(string(req.Instrument))
	b.WriteByte('|')
	b.WriteString(string(mode))
	for _, v := range []float64{p.Spot, p.Strike, p.Rate, p.Yield, p.Volatility, p.Maturity} {
		b.WriteByte('|')
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	fmt.Fprintf(&b, "|%d", p.Steps)
	return b.String()
}
