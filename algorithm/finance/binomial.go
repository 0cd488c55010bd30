package finance

import (
	"log/slog"
	"math"
	"strings"

	"github.com/wyfcoding/optionpricing/algorithm/types"
	"github.com/wyfcoding/optionpricing/xerrors"
)

// ArbitrageMode 决定风险中性概率越界（p_up ∉ (0,1)）时的处理方式。
type ArbitrageMode string

const (
	ArbitrageReject ArbitrageMode = "reject" // 返回 ErrArbitrageViolation，默认
	ArbitrageWarn   ArbitrageMode = "warn"   // 记录告警后照常计算
	ArbitrageIgnore ArbitrageMode = "ignore" // 静默计算
)

// ParseArbitrageMode 解析配置中的模式名，空串视为 reject。
func ParseArbitrageMode(s string) (ArbitrageMode, bool) {
	switch ArbitrageMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ArbitrageReject:
		return ArbitrageReject, true
	case ArbitrageWarn:
		return ArbitrageWarn, true
	case ArbitrageIgnore:
		return ArbitrageIgnore, true
	default:
		return "", false
	}
}

// intrinsicFunc 计算立即行权价值（未取 0 下限）。
type intrinsicFunc func(price, strike float64) float64

func callIntrinsic(price, strike float64) float64 { return price - strike }

func putIntrinsic(price, strike float64) float64 { return strike - price }

func intrinsicFor(t types.OptionType) intrinsicFunc {
	if t == types.OptionTypePut {
		return putIntrinsic
	}
	return callIntrinsic
}

// LatticeResult 一次二叉树定价的结果。
type LatticeResult struct {
	Instrument         types.Instrument
	Price              float64
	Steps              int
	Factors            LatticeFactors
	EarlyExerciseNodes int // 提前行权价值高于持有价值的节点数，欧式恒为 0
}

// BinomialPricer CRR 二叉树定价引擎。
// 无内部状态，每次调用自行分配两条长度为 steps+1 的缓冲区，可安全并发使用。
type BinomialPricer struct {
	logger *slog.Logger
	mode   ArbitrageMode
}

// BinomialOption 定价引擎配置项。
type BinomialOption func(*BinomialPricer)

// WithArbitrageMode 设置无套利检查模式。
func WithArbitrageMode(mode ArbitrageMode) BinomialOption {
	return func(bp *BinomialPricer) {
		bp.mode = mode
	}
}

// WithLogger 设置告警日志输出。
func WithLogger(logger *slog.Logger) BinomialOption {
	return func(bp *BinomialPricer) {
		if logger != nil {
			bp.logger = logger
		}
	}
}

// NewBinomialPricer 创建二叉树定价引擎。
func NewBinomialPricer(opts ...BinomialOption) *BinomialPricer {
	bp := &BinomialPricer{
		logger: slog.Default(),
		mode:   ArbitrageReject,
	}
	for _, opt := range opts {
		opt(bp)
	}
	return bp
}

// Mode 返回当前的无套利检查模式。
func (bp *BinomialPricer) Mode() ArbitrageMode {
	return bp.mode
}

// Price 返回品种在给定参数下的现值。
func (bp *BinomialPricer) Price(inst types.Instrument, p ContractParams) (float64, error) {
	res, err := bp.Evaluate(inst, p)
	if err != nil {
		return 0, err
	}
	return res.Price, nil
}

// Evaluate 构建二叉树并逆向归纳，返回现值及格点信息。
func (bp *BinomialPricer) Evaluate(inst types.Instrument, p ContractParams) (*LatticeResult, error) {
	spec, ok := inst.Spec()
	if !ok {
		return nil, xerrors.ErrUnknownInstrument.WithDetail("instrument %q", string(inst))
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	f := NewLatticeFactors(p, spec.Carry)
	if err := bp.checkArbitrage(inst, f); err != nil {
		return nil, err
	}

	prices := make([]float64, p.Steps+1)
	values := make([]float64, p.Steps+1)
	fillTerminalPrices(prices, p.Spot, f, p.Steps)

	intrinsic := intrinsicFor(spec.OptionType)
	for i, price := range prices {
		values[i] = math.Max(0, intrinsic(price, p.Strike))
	}

	exercised := backwardInduce(f, prices, values, p.Strike, p.Steps, intrinsic, spec.Exercise == types.ExerciseAmerican)

	return &LatticeResult{
		Instrument:         inst,
		Price:              values[0],
		Steps:              p.Steps,
		Factors:            f,
		EarlyExerciseNodes: exercised,
	}, nil
}

func (bp *BinomialPricer) checkArbitrage(inst types.Instrument, f LatticeFactors) error {
	if f.ArbitrageFree() {
		return nil
	}
	switch bp.mode {
	case ArbitrageIgnore:
		return nil
	case ArbitrageWarn:
		bp.logger.Warn("lattice is not arbitrage free",
			"instrument", inst, "p_up", f.PUp, "up", f.Up, "down", f.Down, "drift", f.Drift)
		return nil
	default:
		return xerrors.ErrArbitrageViolation.
			WithDetail("p_up=%g u=%g d=%g drift=%g", f.PUp, f.Up, f.Down, f.Drift).
			WithContext("instrument", string(inst))
	}
}

// backwardInduce 从到期日逐层回推到根节点，结果留在 values[0]。
// 第 step 层有 step+1 个节点，节点 i 的子节点为 i（下行）与 i+1（上行）。
// early 为真时在每个节点比较持有价值与立即行权价值，prices[i] 同步回推为 d·prices[i+1]。
// 返回提前行权生效的节点数。
func backwardInduce(f LatticeFactors, prices, values []float64, strike float64, steps int, intrinsic intrinsicFunc, early bool) int {
	exercised := 0
	for step := steps - 1; step >= 0; step-- {
		for i := 0; i <= step; i++ {
			values[i] = (f.PUp*values[i+1] + f.PDown*values[i]) * f.Discount
			if !early {
				continue
			}
			prices[i] = f.Down * prices[i+1]
			if ex := intrinsic(prices[i], strike); ex > values[i] {
				values[i] = ex
				exercised++
			}
		}
	}
	return exercised
}
