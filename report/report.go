// Package report 将报价、解析解与收敛性结果渲染为文本表格、JSON 或 YAML。
// 数值统一经 decimal 按固定小数位输出，计算结果本身不受影响。
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/optionpricing/algorithm/finance"
	"github.com/wyfcoding/optionpricing/quote"
	"github.com/wyfcoding/optionpricing/xerrors"
	"gopkg.in/yaml.v2"
)

// Format 输出格式。
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat 解析格式名，空串视为 table。
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", xerrors.ErrInvalidParameter.WithDetail("unknown output format %q", s)
	}
}

// Document 一次运行需要展示的全部结果，为空的部分不输出。
type Document struct {
	Params      finance.ContractParams
	Quotes      []*quote.Quote
	References  []quote.Reference
	CrossChecks []quote.CrossCheck
	Convergence []*finance.ConvergenceReport
}

// Renderer 按固定精度渲染 Document。
type Renderer struct {
	precision int32
}

// NewRenderer 创建渲染器，precision 为小数位数。
func NewRenderer(precision int32) *Renderer {
	if precision < 0 {
		precision = 0
	}
	return &Renderer{precision: precision}
}

// Render 以指定格式写出 doc。
func (r *Renderer) Render(w io.Writer, format Format, doc Document) error {
	v := r.view(doc)
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case FormatTable, "":
		return r.table(w, v)
	default:
		return xerrors.ErrInvalidParameter.WithDetail("unknown output format %q", string(format))
	}
}

type paramsView struct {
	Spot       string `json:"spot"       yaml:"spot"`
	Strike     string `json:"strike"     yaml:"strike"`
	Rate       string `json:"rate"       yaml:"rate"`
	Yield      string `json:"yield"      yaml:"yield"`
	Volatility string `json:"volatility" yaml:"volatility"`
	Maturity   string `json:"maturity"   yaml:"maturity"`
	Steps      int    `json:"steps"      yaml:"steps"`
}

type quoteView struct {
	Instrument         string `json:"instrument"           yaml:"instrument"`
	Price              string `json:"price"                yaml:"price"`
	EarlyExerciseNodes int    `json:"early_exercise_nodes" yaml:"early_exercise_nodes"`
	Cached             bool   `json:"cached"               yaml:"cached"`
}

type referenceView struct {
	OptionType string `json:"option_type" yaml:"option_type"`
	Carry      string `json:"carry"       yaml:"carry"`
	Price      string `json:"price"       yaml:"price"`
	Delta      string `json:"delta"       yaml:"delta"`
	Gamma      string `json:"gamma"       yaml:"gamma"`
	Vega       string `json:"vega"        yaml:"vega"`
	Theta      string `json:"theta"       yaml:"theta"`
	Rho        string `json:"rho"         yaml:"rho"`
}

type crossCheckView struct {
	Instrument string `json:"instrument"  yaml:"instrument"`
	Lattice    string `json:"lattice"     yaml:"lattice"`
	ClosedForm string `json:"closed_form" yaml:"closed_form"`
	Difference string `json:"difference"  yaml:"difference"`
}

type convergencePointView struct {
	Steps    int    `json:"steps"     yaml:"steps"`
	Price    string `json:"price"     yaml:"price"`
	AbsError string `json:"abs_error" yaml:"abs_error"`
}

type convergenceView struct {
	Instrument string                 `json:"instrument" yaml:"instrument"`
	Reference  string                 `json:"reference"  yaml:"reference"`
	Points     []convergencePointView `json:"points"     yaml:"points"`
}

type documentView struct {
	Params      paramsView        `json:"params"                 yaml:"params"`
	Quotes      []quoteView       `json:"quotes,omitempty"       yaml:"quotes,omitempty"`
	References  []referenceView   `json:"references,omitempty"   yaml:"references,omitempty"`
	CrossChecks []crossCheckView  `json:"cross_checks,omitempty" yaml:"cross_checks,omitempty"`
	Convergence []convergenceView `json:"convergence,omitempty"  yaml:"convergence,omitempty"`
}

// fixed 按渲染精度输出定点小数。
func (r *Renderer) fixed(v float64) string {
	return fixedPlaces(v, r.precision)
}

// fixedPlaces 输出定点小数；decimal 不接受 NaN/Inf，这两类值按 strconv 的写法输出。
func fixedPlaces(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

// plain 输出参数原值，不补零。
func plain(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return decimal.NewFromFloat(v).String()
}

func (r *Renderer) view(doc Document) documentView {
	p := doc.Params
	v := documentView{
		Params: paramsView{
			Spot:       plain(p.Spot),
			Strike:     plain(p.Strike),
			Rate:       plain(p.Rate),
			Yield:      plain(p.Yield),
			Volatility: plain(p.Volatility),
			Maturity:   plain(p.Maturity),
			Steps:      p.Steps,
		},
	}
	for _, q := range doc.Quotes {
		v.Quotes = append(v.Quotes, quoteView{
			Instrument:         string(q.Instrument),
			Price:              q.Price.StringFixed(r.precision),
			EarlyExerciseNodes: q.EarlyExerciseNodes,
			Cached:             q.Cached,
		})
	}
	for _, ref := range doc.References {
		res := ref.Result
		v.References = append(v.References, referenceView{
			OptionType: string(ref.OptionType),
			Carry:      string(ref.Carry),
			Price:      r.fixed(res.Price),
			Delta:      r.fixed(res.Delta),
			Gamma:      r.fixed(res.Gamma),
			Vega:       r.fixed(res.Vega),
			Theta:      r.fixed(res.Theta),
			Rho:        r.fixed(res.Rho),
		})
	}
	for _, c := range doc.CrossChecks {
		v.CrossChecks = append(v.CrossChecks, crossCheckView{
			Instrument: string(c.Instrument),
			Lattice:    r.fixed(c.Lattice),
			ClosedForm: r.fixed(c.ClosedForm),
			Difference: r.fixed(c.Difference),
		})
	}
	for _, rep := range doc.Convergence {
		cv := convergenceView{Instrument: string(rep.Instrument), Reference: r.fixed(rep.Reference)}
		for _, pt := range rep.Points {
			cv.Points = append(cv.Points, convergencePointView{
				Steps:    pt.Steps,
				Price:    r.fixed(pt.Price),
				AbsError: fixedPlaces(pt.AbsError, r.precision+2),
			})
		}
		v.Convergence = append(v.Convergence, cv)
	}
	return v
}

func (r *Renderer) table(w io.Writer, v documentView) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	p := v.Params
	fmt.Fprintf(tw, "S=%s\tK=%s\tr=%s\tq=%s\tsigma=%s\tt=%s\tsteps=%d\n",
		p.Spot, p.Strike, p.Rate, p.Yield, p.Volatility, p.Maturity, p.Steps)

	if len(v.Quotes) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "INSTRUMENT\tPRICE\tEARLY EXERCISE NODES\tCACHED")
		for _, q := range v.Quotes {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%t\n", q.Instrument, q.Price, q.EarlyExerciseNodes, q.Cached)
		}
	}
	if len(v.References) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "TYPE\tCARRY\tPRICE\tDELTA\tGAMMA\tVEGA\tTHETA\tRHO")
		for _, ref := range v.References {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				ref.OptionType, ref.Carry, ref.Price, ref.Delta, ref.Gamma, ref.Vega, ref.Theta, ref.Rho)
		}
	}
	if len(v.CrossChecks) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "INSTRUMENT\tLATTICE\tCLOSED FORM\tDIFFERENCE")
		for _, c := range v.CrossChecks {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Instrument, c.Lattice, c.ClosedForm, c.Difference)
		}
	}
	for _, cv := range v.Convergence {
		fmt.Fprintln(tw)
		fmt.Fprintf(tw, "CONVERGENCE %s\treference=%s\n", cv.Instrument, cv.Reference)
		fmt.Fprintln(tw, "STEPS\tPRICE\tABS ERROR")
		for _, pt := range cv.Points {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", pt.Steps, pt.Price, pt.AbsError)
		}
	}
	return tw.Flush()
}
