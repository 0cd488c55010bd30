// Package finance - 期权定价：二叉树（CRR）格点定价引擎与 Black-Scholes 解析解。
package finance

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/wyfcoding/optionpricing/xerrors"
)

// ContractParams 一次定价所需的合约参数。
// 值语义、构造后只读；需要调整某个字段时使用 WithXxx 生成新值，
// 因此同一份参数可以被多个并发定价调用共享。
type ContractParams struct {
	Spot       float64 `json:"spot"       validate:"finite,gt=0"`  // 标的价格 S
	Strike     float64 `json:"strike"     validate:"finite,gt=0"`  // 执行价 K
	Rate       float64 `json:"rate"       validate:"finite"`       // 连续复利无风险利率 r
	Yield      float64 `json:"yield"      validate:"finite,gte=0"` // 连续股息率 q，期货口径下忽略
	Volatility float64 `json:"volatility" validate:"finite,gt=0"`  // 年化波动率 σ
	Maturity   float64 `json:"maturity"   validate:"finite,gt=0"`  // 剩余期限（年）
	Steps      int     `json:"steps"      validate:"gte=1"`        // 二叉树步数
}

var paramValidator = newParamValidator()

func newParamValidator() *validator.Validate {
	v := validator.New()
	// 内置的 gt/gte 无法拦截 +Inf，NaN 也需要给出明确的字段名。
	if err := v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	}); err != nil {
		panic(err)
	}
	return v
}

// NewContractParams 创建并校验合约参数。
func NewContractParams(spot, strike, rate, yield, vol, maturity float64, steps int) (ContractParams, error) {
	p := ContractParams{
		Spot:       spot,
		Strike:     strike,
		Rate:       rate,
		Yield:      yield,
		Volatility: vol,
		Maturity:   maturity,
		Steps:      steps,
	}
	if err := p.Validate(); err != nil {
		return ContractParams{}, err
	}
	return p, nil
}

// Validate 校验全部字段，失败时返回 xerrors.ErrInvalidParameter 的派生错误。
func (p ContractParams) Validate() error {
	err := paramValidator.Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		return xerrors.ErrInvalidParameter.
			WithDetail("%s must satisfy %s (got %v)", fe.Field(), rule, fe.Value()).
			WithContext("field", fe.Field())
	}
	return xerrors.ErrInvalidParameter.WithCause(err)
}

// ClosedForm 返回解析解使用的参数视图（步数无意义，置为 1 以保持可校验）。
func (p ContractParams) ClosedForm() ContractParams {
	p.Steps = 1
	return p
}

// WithSpot 返回替换标的价格后的新参数。
func (p ContractParams) WithSpot(spot float64) ContractParams {
	p.Spot = spot
	return p
}

func (p ContractParams) WithStrike(strike float64) ContractParams {
	p.Strike = strike
	return p
}

func (p ContractParams) WithRate(rate float64) ContractParams {
	p.Rate = rate
	return p
}

func (p ContractParams) WithYield(yield float64) ContractParams {
	p.Yield = yield
	return p
}

// WithVolatility 返回替换波动率后的新参数。
func (p ContractParams) WithVolatility(vol float64) ContractParams {
	p.Volatility = vol
	return p
}

func (p ContractParams) WithMaturity(maturity float64) ContractParams {
	p.Maturity = maturity
	return p
}

// WithSteps 返回替换步数后的新参数。
func (p ContractParams) WithSteps(steps int) ContractParams {
	p.Steps = steps
	return p
}

func (p ContractParams) String() string {
	return fmt.Sprintf("S=%g K=%g r=%g q=%g sigma=%g t=%g steps=%d",
		p.Spot, p.Strike, p.Rate, p.Yield, p.Volatility, p.Maturity, p.Steps)
}
