package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/wyfcoding/optionpricing/algorithm/types"
	"github.com/wyfcoding/optionpricing/xerrors"
)

const sampleConfig = `
version = "1.2.3"

[log]
level = "debug"

[cache]
enabled = true
ttl = "30s"
max_mb = 16

[pricing]
instruments = ["euro-call", "AMERICAN_PUT"]
arbitrage_mode = "warn"
precision = 4
convergence_steps = [50, 200]

[pricing.contract]
spot = 110.0
strike = 100.0
rate = 0.05
yield = 0.0
volatility = 0.3
maturity = 0.5
steps = 200
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pricer.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadConfigFile(t *testing.T) {
	var conf Config
	if err := readInto(viper.New(), writeConfig(t, sampleConfig), &conf); err != nil {
		t.Fatalf("load: %v", err)
	}

	if conf.Version != "1.2.3" || conf.Log.Level != "debug" {
		t.Errorf("unexpected top level: %+v", conf)
	}
	if !conf.Cache.Enabled || conf.Cache.TTL != 30*time.Second || conf.Cache.MaxMB != 16 {
		t.Errorf("unexpected cache section: %+v", conf.Cache)
	}
	if conf.Pricing.ArbitrageMode != "warn" || conf.Pricing.Precision != 4 {
		t.Errorf("unexpected pricing section: %+v", conf.Pricing)
	}
	if len(conf.Pricing.ConvergenceSteps) != 2 || conf.Pricing.ConvergenceSteps[1] != 200 {
		t.Errorf("unexpected convergence steps: %v", conf.Pricing.ConvergenceSteps)
	}

	insts, err := conf.Pricing.InstrumentList()
	if err != nil {
		t.Fatal(err)
	}
	if len(insts) != 2 || insts[0] != types.EuroCall || insts[1] != types.AmericanPut {
		t.Errorf("unexpected instruments: %v", insts)
	}

	p, err := conf.Pricing.Contract.Params()
	if err != nil {
		t.Fatal(err)
	}
	if p.Spot != 110 || p.Steps != 200 || p.Yield != 0 {
		t.Errorf("unexpected contract: %+v", p)
	}
	// 未出现在文件中的键使用默认值。
	if conf.Metrics.Path != "/metrics" || conf.Tracing.SamplerRatio != 1 {
		t.Errorf("defaults not applied: %+v %+v", conf.Metrics, conf.Tracing)
	}
}

func TestDefaultsWithoutFile(t *testing.T) {
	var conf Config
	if err := readInto(viper.New(), "", &conf); err != nil {
		t.Fatal(err)
	}
	p, err := conf.Pricing.Contract.Params()
	if err != nil {
		t.Fatal(err)
	}
	if p.Spot != 100 || p.Strike != 95 || p.Rate != 0.1 || p.Yield != 0.06 || p.Volatility != 0.25 || p.Maturity != 1 || p.Steps != 100 {
		t.Errorf("unexpected default contract: %+v", p)
	}
	insts, _ := conf.Pricing.InstrumentList()
	if len(insts) != len(types.AllInstruments()) {
		t.Errorf("empty instrument list should expand to all instruments, got %v", insts)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("PRICER_PRICING_CONTRACT_SPOT", "120")
	t.Setenv("PRICER_LOG_LEVEL", "warn")

	var conf Config
	if err := readInto(viper.New(), writeConfig(t, sampleConfig), &conf); err != nil {
		t.Fatal(err)
	}
	if conf.Pricing.Contract.Spot != 120 {
		t.Errorf("env override not applied: %v", conf.Pricing.Contract.Spot)
	}
	if conf.Log.Level != "warn" {
		t.Errorf("env override not applied to log level: %v", conf.Log.Level)
	}
}

func TestValidationFailures(t *testing.T) {
	cases := map[string]string{
		"unknown instrument": "[pricing]\ninstruments = [\"BARRIER_CALL\"]\n",
		"bad mode":           "[pricing]\narbitrage_mode = \"panic\"\n",
		"bad contract":       "[pricing.contract]\nvolatility = -0.2\n",
		"bad ratio":          "[tracing]\nsampler_ratio = 2.0\n",
		"bad level":          "[log]\nlevel = \"loud\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			var conf Config
			err := readInto(viper.New(), writeConfig(t, body), &conf)
			if !errors.Is(err, xerrors.ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			if !IsInvalid(err) {
				t.Errorf("IsInvalid should report true")
			}
		})
	}

	var conf Config
	if err := readInto(viper.New(), filepath.Join(t.TempDir(), "missing.toml"), &conf); !IsInvalid(err) {
		t.Errorf("missing file should be a config error, got %v", err)
	}
}

func TestReloadKeepsPreviousOnError(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	v := viper.New()
	var conf Config
	if err := readInto(v, path, &conf); err != nil {
		t.Fatal(err)
	}

	var called []string
	RegisterReloadHook(func(c *Config) { called = append(called, c.Version) })

	if err := os.WriteFile(path, []byte("[pricing.contract]\nspot = -1.0\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := v.ReadInConfig(); err != nil {
		t.Fatal(err)
	}
	reload(v, &conf)
	if conf.Pricing.Contract.Spot != 110 || len(called) != 0 {
		t.Fatalf("invalid reload should keep previous config: %+v, hooks=%v", conf.Pricing.Contract, called)
	}

	if err := os.WriteFile(path, []byte("version = \"2.0.0\"\n[log]\nlevel = \"info\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := v.ReadInConfig(); err != nil {
		t.Fatal(err)
	}
	reload(v, &conf)
	if conf.Version != "2.0.0" || conf.Pricing.Contract.Spot != 100 {
		t.Errorf("reload not applied: version=%s spot=%v", conf.Version, conf.Pricing.Contract.Spot)
	}
	if len(called) != 1 || called[0] != "2.0.0" {
		t.Errorf("reload hook not called: %v", called)
	}
}

func TestReloadConcurrentWithSnapshot(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	v := viper.New()
	var conf Config
	if err := readInto(v, path, &conf); err != nil {
		t.Fatal(err)
	}

	var hooked *Config
	RegisterReloadHook(func(c *Config) { hooked = c })

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 20 {
			reload(v, &conf)
		}
	}()
	for range 20 {
		if snap := Snapshot(&conf); snap.Pricing.Contract.Spot != 110 || snap.Version != "1.2.3" {
			t.Errorf("inconsistent snapshot: %+v", snap.Pricing.Contract)
		}
	}
	wg.Wait()

	if hooked == nil || hooked == &conf {
		t.Fatalf("hooks must receive a private copy, got %p (conf at %p)", hooked, &conf)
	}
	hooked.Version = "mutated"
	if Snapshot(&conf).Version != "1.2.3" {
		t.Errorf("hook copy shares memory with the loaded config")
	}
}
