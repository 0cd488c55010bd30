package finance

import (
	"math"

	"github.com/wyfcoding/optionpricing/algorithm/types"
	"github.com/wyfcoding/optionpricing/xerrors"
	"gonum.org/v1/gonum/stat/distuv"
)

// BlackScholesCalculator Black-Scholes 期权定价计算器（欧式，解析解）。
// 采用带持有成本 b 的广义形式：股票口径 b=r-q，期货口径 b=0（即 Black-76）。
type BlackScholesCalculator struct{}

// NewBlackScholesCalculator 创建 Black-Scholes 计算器。
func NewBlackScholesCalculator() *BlackScholesCalculator {
	return &BlackScholesCalculator{}
}

// BlackScholesResult 包含计算出的期权价格及其希腊字母。
// Vega、Rho 为对单位波动率/单位利率的敏感度，Theta 为按年计的日历时间衰减。
type BlackScholesResult struct {
	Price float64 `json:"price"`
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Vega  float64 `json:"vega"`
	Theta float64 `json:"theta"`
	Rho   float64 `json:"rho"`
}

// Price 只计算价格。
func (bsc *BlackScholesCalculator) Price(optionType types.OptionType, carry types.CarryModel, p ContractParams) (float64, error) {
	res, err := bsc.Calculate(optionType, carry, p)
	if err != nil {
		return 0, err
	}
	return res.Price, nil
}

// PriceInstrument 计算欧式品种的解析价，美式品种返回 ErrNoClosedForm。
func (bsc *BlackScholesCalculator) PriceInstrument(inst types.Instrument, p ContractParams) (float64, error) {
	spec, ok := inst.Spec()
	if !ok {
		return 0, xerrors.ErrUnknownInstrument.WithDetail("instrument %q", string(inst))
	}
	if spec.Exercise != types.ExerciseEuropean {
		return 0, xerrors.ErrNoClosedForm.WithContext("instrument", string(inst))
	}
	return bsc.Price(spec.OptionType, spec.Carry, p)
}

// Calculate 一次性计算期权价格及所有希腊字母。
func (bsc *BlackScholesCalculator) Calculate(optionType types.OptionType, carry types.CarryModel, p ContractParams) (*BlackScholesResult, error) {
	if optionType != types.OptionTypeCall && optionType != types.OptionTypePut {
		return nil, xerrors.ErrUnknownInstrument.WithDetail("option type %q", string(optionType))
	}
	if carry != types.CarryEquity && carry != types.CarryFutures {
		return nil, xerrors.ErrUnknownInstrument.WithDetail("carry model %q", string(carry))
	}
	if err := p.ClosedForm().Validate(); err != nil {
		return nil, err
	}

	s := p.Spot
	k := p.Strike
	t := p.Maturity
	r := p.Rate
	sigma := p.Volatility

	b := 0.0
	if carry == types.CarryEquity {
		b = r - p.Yield
	}

	sqrtT := math.Sqrt(t)
	d1 := (math.Log(s/k) + (b+0.5*sigma*sigma)*t) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT

	expCarry := math.Exp((b - r) * t) // 股票口径即 e^{-qt}，期货口径即 e^{-rt}
	expRate := math.Exp(-r * t)
	phiD1 := normPDF(d1)

	res := &BlackScholesResult{
		Gamma: expCarry * phiD1 / (s * sigma * sqrtT),
		Vega:  s * expCarry * phiD1 * sqrtT,
	}
	decay := -s * expCarry * phiD1 * sigma / (2 * sqrtT)

	if optionType == types.OptionTypeCall {
		nD1, nD2 := normCDF(d1), normCDF(d2)
		res.Price = s*expCarry*nD1 - k*expRate*nD2
		res.Delta = expCarry * nD1
		res.Theta = decay - (b-r)*s*expCarry*nD1 - r*k*expRate*nD2
		res.Rho = k * t * expRate * nD2
	} else {
		nD1, nD2 := normCDF(-d1), normCDF(-d2)
		res.Price = k*expRate*nD2 - s*expCarry*nD1
		res.Delta = -expCarry * nD1
		res.Theta = decay + (b-r)*s*expCarry*nD1 + r*k*expRate*nD2
		res.Rho = -k * t * expRate * nD2
	}

	// 期货价格本身不随 r 变化，利率只通过贴现因子起作用。
	if carry == types.CarryFutures {
		res.Rho = -t * res.Price
	}

	return res, nil
}

// normCDF 标准正态分布累积分布函数（distuv 内部基于 erfc，左尾精度足够）。
func normCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

func normPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}
