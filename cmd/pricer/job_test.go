package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/wyfcoding/optionpricing/algorithm/finance"
	"github.com/wyfcoding/optionpricing/algorithm/types"
	"github.com/wyfcoding/optionpricing/config"
	"github.com/wyfcoding/optionpricing/quote"
	"github.com/wyfcoding/optionpricing/report"
	"github.com/wyfcoding/optionpricing/xerrors"
)

func baseConfig() *config.Config {
	return &config.Config{
		Pricing: config.PricingConfig{
			ArbitrageMode: "reject",
			Precision:     6,
			Contract: config.ContractConfig{
				Spot: 100, Strike: 95, Rate: 0.1, Yield: 0.06, Volatility: 0.25, Maturity: 1, Steps: 100,
			},
		},
	}
}

func parseOverrides(t *testing.T, args ...string) *overrides {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	ov := registerOverrides(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatal(err)
	}
	return ov
}

func TestNewJobAppliesOnlyChangedFlags(t *testing.T) {
	ov := parseOverrides(t, "--spot=110", "--steps=50", "--instruments=euro_put,AMERICAN-CALL", "--format=json", "--convergence=20,40")
	j, err := newJob(baseConfig(), ov)
	if err != nil {
		t.Fatal(err)
	}
	if j.params.Spot != 110 || j.params.Steps != 50 || j.params.Strike != 95 || j.params.Yield != 0.06 {
		t.Errorf("unexpected params: %+v", j.params)
	}
	if len(j.instruments) != 2 || j.instruments[0] != types.EuroPut || j.instruments[1] != types.AmericanCall {
		t.Errorf("unexpected instruments: %v", j.instruments)
	}
	if j.format != report.FormatJSON || j.mode != finance.ArbitrageReject {
		t.Errorf("unexpected format/mode: %s %s", j.format, j.mode)
	}
	if len(j.convergenceSteps) != 2 || j.convergenceSteps[1] != 40 {
		t.Errorf("unexpected convergence steps: %v", j.convergenceSteps)
	}

	// 未显式给出的参数不覆盖配置，即使其零值与配置不同。
	plain, err := newJob(baseConfig(), parseOverrides(t))
	if err != nil {
		t.Fatal(err)
	}
	if plain.params.Rate != 0.1 || len(plain.instruments) != len(types.AllInstruments()) || plain.format != report.FormatTable {
		t.Errorf("defaults not preserved: %+v", plain)
	}
}

func TestNewJobRejectsBadInput(t *testing.T) {
	if _, err := newJob(baseConfig(), parseOverrides(t, "--vol=-0.1")); !errors.Is(err, xerrors.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
	if _, err := newJob(baseConfig(), parseOverrides(t, "--instruments=ASIAN_CALL")); !errors.Is(err, xerrors.ErrUnknownInstrument) {
		t.Errorf("expected ErrUnknownInstrument, got %v", err)
	}
	if _, err := newJob(baseConfig(), parseOverrides(t, "--format=xml")); !errors.Is(err, xerrors.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter for format, got %v", err)
	}
	cfg := baseConfig()
	cfg.Pricing.ArbitrageMode = "loud"
	if _, err := newJob(cfg, nil); !errors.Is(err, xerrors.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestJobExecute(t *testing.T) {
	ov := parseOverrides(t, "--instruments=EURO_CALL,AMERICAN_PUT,EURO_FUTURE_PUT", "--format=json", "--convergence=50,200")
	j, err := newJob(baseConfig(), ov)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := j.execute(context.Background(), quote.NewService(), report.NewRenderer(6), &buf); err != nil {
		t.Fatal(err)
	}

	var out struct {
		Quotes []struct {
			Instrument string `json:"instrument"`
			Price      string `json:"price"`
		} `json:"quotes"`
		References  []json.RawMessage `json:"references"`
		CrossChecks []json.RawMessage `json:"cross_checks"`
		Convergence []struct {
			Instrument string            `json:"instrument"`
			Points     []json.RawMessage `json:"points"`
		} `json:"convergence"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid json output: %v\n%s", err, buf.String())
	}

	if len(out.Quotes) != 3 || out.Quotes[0].Price != "13.638174" || out.Quotes[1].Price != "5.793840" {
		t.Errorf("unexpected quotes: %+v", out.Quotes)
	}
	if len(out.References) != 4 || len(out.CrossChecks) != 2 {
		t.Errorf("expected 4 references and 2 cross checks, got %d and %d", len(out.References), len(out.CrossChecks))
	}
	if len(out.Convergence) != 2 || out.Convergence[1].Instrument != "EURO_FUTURE_PUT" || len(out.Convergence[0].Points) != 2 {
		t.Errorf("unexpected convergence section: %+v", out.Convergence)
	}
}

func TestDescribeError(t *testing.T) {
	plain := describeError(errors.New("boom"))
	if plain != "pricer: boom" {
		t.Errorf("unexpected message %q", plain)
	}

	traced := describeError(xerrors.ErrNonFinitePrice.WithContext("trace_id", "4bf92f3577b34da6a3ce929d0e0e4736"))
	if !strings.HasSuffix(traced, " trace_id=4bf92f3577b34da6a3ce929d0e0e4736") || !strings.Contains(traced, "422102") {
		t.Errorf("unexpected message %q", traced)
	}
}
