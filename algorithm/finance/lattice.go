package finance

import (
	"math"

	"github.com/wyfcoding/optionpricing/algorithm/types"
)

// LatticeFactors 二叉树每一步的乘数与风险中性概率。
// 六个品种共用同一套推导，保证无套利关系处处一致。
type LatticeFactors struct {
	Dt       float64 // 步长 t/steps
	Up       float64 // 上行因子 u = exp(σ√Δt)
	Down     float64 // 下行因子 d = 1/u
	Drift    float64 // 单步漂移：股票 exp((r-q)Δt)，期货 1
	Discount float64 // 单步贴现 exp(-rΔt)；股票口径同样按 r 而非 r-q 贴现，q 只进入 Drift
	PUp      float64 // 上行概率 (Drift-d)/(u-d)
	PDown    float64 // 下行概率 1-PUp
}

// NewLatticeFactors 根据持有成本口径推导格点因子。不做任何校验。
func NewLatticeFactors(p ContractParams, carry types.CarryModel) LatticeFactors {
	dt := p.Maturity / float64(p.Steps)
	up := math.Exp(p.Volatility * math.Sqrt(dt))
	down := 1.0 / up

	drift := 1.0 // 期货在风险中性测度下无漂移
	if carry != types.CarryFutures {
		drift = math.Exp((p.Rate - p.Yield) * dt)
	}

	pUp := (drift - down) / (up - down)
	return LatticeFactors{
		Dt:       dt,
		Up:       up,
		Down:     down,
		Drift:    drift,
		Discount: math.Exp(-p.Rate * dt),
		PUp:      pUp,
		PDown:    1.0 - pUp,
	}
}

// ArbitrageFree 判断 d < 1 < u 且 0 < p_up < 1。
func (f LatticeFactors) ArbitrageFree() bool {
	return f.Down < 1 && 1 < f.Up && f.PUp > 0 && f.PUp < 1
}

// fillTerminalPrices 写入到期日的 steps+1 个标的价格，自低向高排列：
// 第 0 个为连续 steps 次下行 S·d^steps，之后每个乘以 u²。
func fillTerminalPrices(prices []float64, spot float64, f LatticeFactors, steps int) {
	prices[0] = spot * math.Pow(f.Down, float64(steps))
	for i := 1; i <= steps; i++ {
		prices[i] = prices[i-1] * f.Up * f.Up
	}
}

// TerminalPrices 返回到期日的标的价格序列（升序，共 steps+1 个）。
// 漂移不影响价格格点，因此与品种无关。
func TerminalPrices(p ContractParams) ([]float64, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	f := NewLatticeFactors(p, types.CarryEquity)
	prices := make([]float64, p.Steps+1)
	fillTerminalPrices(prices, p.Spot, f, p.Steps)
	return prices, nil
}
