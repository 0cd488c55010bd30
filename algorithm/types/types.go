// Package types 定义期权定价使用的品种分类：期权方向、行权方式与持有成本口径。
package types

import (
	"strings"
)

// OptionType 定义期权类型。
type OptionType string

const (
	OptionTypeCall OptionType = "CALL"
	OptionTypePut  OptionType = "PUT"
)

// ExerciseStyle 定义行权方式。
type ExerciseStyle string

const (
	ExerciseEuropean ExerciseStyle = "EUROPEAN" // 仅到期日可行权
	ExerciseAmerican ExerciseStyle = "AMERICAN" // 到期前任一节点可提前行权
)

// CarryModel 定义标的的持有成本口径。
type CarryModel string

const (
	// CarryEquity 股票口径，漂移为 r-q。
	CarryEquity CarryModel = "EQUITY"
	// CarryFutures 期货口径，漂移为 0，仅按 r 贴现。
	CarryFutures CarryModel = "FUTURES"
)

// Instrument 是定价品种的封闭枚举，每个取值对应一组固定的 {方向, 行权方式, 持有成本}。
type Instrument string

const (
	EuroCall           Instrument = "EURO_CALL"
	EuroPut            Instrument = "EURO_PUT"
	AmericanCall       Instrument = "AMERICAN_CALL"
	AmericanPut        Instrument = "AMERICAN_PUT"
	AmericanFutureCall Instrument = "AMERICAN_FUTURE_CALL"
	AmericanFuturePut  Instrument = "AMERICAN_FUTURE_PUT"
	EuroFutureCall     Instrument = "EURO_FUTURE_CALL"
	EuroFuturePut      Instrument = "EURO_FUTURE_PUT"
)

// InstrumentSpec 描述一个品种的定价配置。
type InstrumentSpec struct {
	OptionType OptionType
	Exercise   ExerciseStyle
	Carry      CarryModel
}

// instrumentOrder 固定输出顺序，报表与批量定价按此顺序排列。
var instrumentOrder = []Instrument{
	EuroCall, EuroPut,
	AmericanCall, AmericanPut,
	AmericanFutureCall, AmericanFuturePut,
	EuroFutureCall, EuroFuturePut,
}

var instrumentSpecs = map[Instrument]InstrumentSpec{
	EuroCall:           {OptionTypeCall, ExerciseEuropean, CarryEquity},
	EuroPut:            {OptionTypePut, ExerciseEuropean, CarryEquity},
	AmericanCall:       {OptionTypeCall, ExerciseAmerican, CarryEquity},
	AmericanPut:        {OptionTypePut, ExerciseAmerican, CarryEquity},
	AmericanFutureCall: {OptionTypeCall, ExerciseAmerican, CarryFutures},
	AmericanFuturePut:  {OptionTypePut, ExerciseAmerican, CarryFutures},
	EuroFutureCall:     {OptionTypeCall, ExerciseEuropean, CarryFutures},
	EuroFuturePut:      {OptionTypePut, ExerciseEuropean, CarryFutures},
}

// AllInstruments 返回全部受支持的品种（按固定顺序）。
func AllInstruments() []Instrument {
	out := make([]Instrument, len(instrumentOrder))
	copy(out, instrumentOrder)
	return out
}

// Spec 返回品种配置，第二个返回值表示品种是否受支持。
func (i Instrument) Spec() (InstrumentSpec, bool) {
	s, ok := instrumentSpecs[i]
	return s, ok
}

// Valid 判断是否为受支持的品种。
func (i Instrument) Valid() bool {
	_, ok := instrumentSpecs[i]
	return ok
}

// IsAmerican 判断是否允许提前行权。
func (i Instrument) IsAmerican() bool {
	return instrumentSpecs[i].Exercise == ExerciseAmerican
}

func (i Instrument) String() string {
	return string(i)
}

// ParseInstrument 解析品种名称，忽略大小写，并允许 '-' 或空格代替 '_'。
func ParseInstrument(name string) (Instrument, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(name))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	inst := Instrument(normalized)
	if !inst.Valid() {
		return "", false
	}
	return inst, true
}

// FindInstrument 根据配置反查品种。
func FindInstrument(spec InstrumentSpec) (Instrument, bool) {
	for _, inst := range instrumentOrder {
		if instrumentSpecs[inst] == spec {
			return inst, true
		}
	}
	return "", false
}
