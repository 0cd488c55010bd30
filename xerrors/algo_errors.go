package xerrors

var (
	// ErrInvalidParameter 合约参数非法（非正、非有限或步数小于 1）。
	ErrInvalidParameter = New(ErrInvalidArg, 400101, "invalid parameter", "spot, strike, volatility, maturity must be positive and finite; steps >= 1", nil)
	// ErrUnknownInstrument 不支持的期权品种。
	ErrUnknownInstrument = New(ErrInvalidArg, 400102, "unknown instrument", "see types.AllInstruments for supported instruments", nil)
	// ErrNoClosedForm 品种没有解析解（美式期权）。
	ErrNoClosedForm = New(ErrInvalidArg, 400103, "no closed-form reference", "only European instruments have an analytic price", nil)
	// ErrInvalidConfig 配置错误。
	ErrInvalidConfig = New(ErrInvalidArg, 400104, "invalid config", "check the pricing configuration", nil)
	// ErrArbitrageViolation 风险中性概率落在 (0,1) 之外，或不满足 d < 1 < u。
	ErrArbitrageViolation = New(ErrUnprocessable, 422101, "arbitrage violation", "risk-neutral up probability must lie in (0, 1)", nil)
	// ErrNonFinitePrice 参数合法但结果溢出或退化为 NaN/Inf（如 u→1 或极大的标的价格）。
	ErrNonFinitePrice = New(ErrUnprocessable, 422102, "non-finite price", "lattice produced NaN or Inf", nil)
	// ErrCacheMiss 缓存未命中。
	ErrCacheMiss = New(ErrNotFound, 404101, "cache miss", "", nil)
)
