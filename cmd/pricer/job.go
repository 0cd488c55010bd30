package main

import (
	"context"
	"io"

	"github.com/spf13/pflag"
	"github.com/wyfcoding/optionpricing/algorithm/finance"
	"github.com/wyfcoding/optionpricing/algorithm/types"
	"github.com/wyfcoding/optionpricing/config"
	"github.com/wyfcoding/optionpricing/logging"
	"github.com/wyfcoding/optionpricing/quote"
	"github.com/wyfcoding/optionpricing/report"
	"github.com/wyfcoding/optionpricing/xerrors"
)

// overrides 命令行对配置的逐项覆盖，只有显式给出的参数才生效。
type overrides struct {
	fs          *pflag.FlagSet
	spot        float64
	strike      float64
	rate        float64
	yield       float64
	vol         float64
	maturity    float64
	steps       int
	instruments []string
	format      string
	convergence []int
}

func registerOverrides(fs *pflag.FlagSet) *overrides {
	ov := &overrides{fs: fs}
	fs.Float64Var(&ov.spot, "spot", 0, "spot price S")
	fs.Float64Var(&ov.strike, "strike", 0, "strike price K")
	fs.Float64Var(&ov.rate, "rate", 0, "continuously compounded risk free rate r")
	fs.Float64Var(&ov.yield, "yield", 0, "continuous dividend yield q (ignored for futures)")
	fs.Float64Var(&ov.vol, "vol", 0, "annualised volatility sigma")
	fs.Float64Var(&ov.maturity, "maturity", 0, "time to expiry in years")
	fs.IntVar(&ov.steps, "steps", 0, "number of lattice steps")
	fs.StringSliceVar(&ov.instruments, "instruments", nil, "instruments to price, e.g. EURO_CALL,AMERICAN_PUT")
	fs.StringVar(&ov.format, "format", "table", "output format: table, json or yaml")
	fs.IntSliceVar(&ov.convergence, "convergence", nil, "step counts for the convergence study, e.g. 50,200,1000")
	return ov
}

func (ov *overrides) changed(name string) bool {
	return ov != nil && ov.fs != nil && ov.fs.Changed(name)
}

// apply 将显式给出的命令行参数写入配置副本。
func (ov *overrides) apply(pc config.PricingConfig) config.PricingConfig {
	c := &pc.Contract
	if ov.changed("spot") {
		c.Spot = ov.spot
	}
	if ov.changed("strike") {
		c.Strike = ov.strike
	}
	if ov.changed("rate") {
		c.Rate = ov.rate
	}
	if ov.changed("yield") {
		c.Yield = ov.yield
	}
	if ov.changed("vol") {
		c.Volatility = ov.vol
	}
	if ov.changed("maturity") {
		c.Maturity = ov.maturity
	}
	if ov.changed("steps") {
		c.Steps = ov.steps
	}
	if ov.changed("instruments") {
		pc.Instruments = ov.instruments
	}
	if ov.changed("convergence") {
		pc.ConvergenceSteps = ov.convergence
	}
	return pc
}

// job 一次完整的定价任务。
type job struct {
	params           finance.ContractParams
	instruments      []types.Instrument
	convergenceSteps []int
	mode             finance.ArbitrageMode
	format           report.Format
}

func newJob(cfg *config.Config, ov *overrides) (*job, error) {
	pc := cfg.Pricing
	format := "table"
	if ov != nil {
		pc = ov.apply(pc)
		format = ov.format
	}

	params, err := pc.Contract.Params()
	if err != nil {
		return nil, err
	}
	insts, err := pc.InstrumentList()
	if err != nil {
		return nil, err
	}
	mode, ok := finance.ParseArbitrageMode(pc.ArbitrageMode)
	if !ok {
		return nil, xerrors.ErrInvalidConfig.WithDetail("arbitrage_mode %q", pc.ArbitrageMode)
	}
	f, err := report.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	return &job{
		params:           params,
		instruments:      insts,
		convergenceSteps: pc.ConvergenceSteps,
		mode:             mode,
		format:           f,
	}, nil
}

// document 计算报价、解析解参考值、欧式品种交叉校验与收敛性对比。
func (j *job) document(ctx context.Context, svc *quote.Service) (report.Document, error) {
	doc := report.Document{Params: j.params}

	quotes, err := svc.QuoteAll(ctx, j.params, j.instruments)
	if err != nil {
		return doc, err
	}
	doc.Quotes = quotes

	if doc.References, err = svc.References(ctx, j.params); err != nil {
		return doc, err
	}
	if doc.CrossChecks, err = svc.CrossCheck(ctx, j.params, j.instruments); err != nil {
		return doc, err
	}

	if len(j.convergenceSteps) == 0 {
		return doc, nil
	}
	for _, inst := range j.instruments {
		if inst.IsAmerican() {
			continue
		}
		rep, err := svc.Convergence(ctx, inst, j.params, j.convergenceSteps)
		if err != nil {
			return doc, err
		}
		doc.Convergence = append(doc.Convergence, rep)
	}
	return doc, nil
}

func (j *job) execute(ctx context.Context, svc *quote.Service, r *report.Renderer, w io.Writer) error {
	defer logging.LogDuration(ctx, "pricing job", "instruments", len(j.instruments), "steps", j.params.Steps)()

	doc, err := j.document(ctx, svc)
	if err != nil {
		return err
	}
	return r.Render(w, j.format, doc)
}
