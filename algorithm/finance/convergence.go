package finance

import (
	"math"
	"runtime"
	"slices"

	"github.com/sourcegraph/conc/pool"
	"github.com/wyfcoding/optionpricing/algorithm/types"
	"github.com/wyfcoding/optionpricing/xerrors"
)

// ConvergencePoint 某一步数下二叉树价格与解析解的偏差。
type ConvergencePoint struct {
	Steps    int     `json:"steps"`
	Price    float64 `json:"price"`
	AbsError float64 `json:"abs_error"`
}

// ConvergenceReport 收敛性对比报告，Points 按步数升序。
type ConvergenceReport struct {
	Instrument types.Instrument   `json:"instrument"`
	Reference  float64            `json:"reference"`
	Points     []ConvergencePoint `json:"points"`
}

// MaxError 返回所有点中的最大绝对误差。
func (r *ConvergenceReport) MaxError() float64 {
	maxErr := 0.0
	for _, pt := range r.Points {
		maxErr = math.Max(maxErr, pt.AbsError)
	}
	return maxErr
}

type convergenceOptions struct {
	pricer      *BinomialPricer
	concurrency int
}

// ConvergenceOption 收敛性对比配置项。
type ConvergenceOption func(*convergenceOptions)

// WithConcurrency 限制并行定价的 goroutine 数。
func WithConcurrency(n int) ConvergenceOption {
	return func(o *convergenceOptions) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithPricer 指定使用的二叉树引擎。
func WithPricer(bp *BinomialPricer) ConvergenceOption {
	return func(o *convergenceOptions) {
		if bp != nil {
			o.pricer = bp
		}
	}
}

// ConvergenceStudy 在多个步数下为欧式品种定价，并与解析解比较。
// 每个步数是独立的定价调用，各自持有缓冲区，因此可以并行执行。
func ConvergenceStudy(inst types.Instrument, p ContractParams, steps []int, opts ...ConvergenceOption) (*ConvergenceReport, error) {
	o := &convergenceOptions{
		pricer:      NewBinomialPricer(),
		concurrency: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(o)
	}
	if len(steps) == 0 {
		return nil, xerrors.ErrInvalidParameter.WithDetail("convergence study needs at least one step count")
	}

	reference, err := NewBlackScholesCalculator().PriceInstrument(inst, p)
	if err != nil {
		return nil, err
	}

	workers := pool.NewWithResults[ConvergencePoint]().WithErrors().WithMaxGoroutines(o.concurrency)
	for _, n := range steps {
		workers.Go(func() (ConvergencePoint, error) {
			price, err := o.pricer.Price(inst, p.WithSteps(n))
			if err != nil {
				return ConvergencePoint{}, err
			}
			return ConvergencePoint{Steps: n, Price: price, AbsError: math.Abs(price - reference)}, nil
		})
	}
	points, err := workers.Wait()
	if err != nil {
		return nil, err
	}

	slices.SortFunc(points, func(a, b ConvergencePoint) int { return a.Steps - b.Steps })
	return &ConvergenceReport{Instrument: inst, Reference: reference, Points: points}, nil
}
