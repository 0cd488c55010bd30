package finance

import (
	"errors"
	"math"
	"testing"

	"github.com/wyfcoding/optionpricing/algorithm/types"
	"github.com/wyfcoding/optionpricing/xerrors"
)

func TestBlackScholesPrice(t *testing.T) {
	bsc := NewBlackScholesCalculator()
	p := referenceParams(t, 1)

	tests := []struct {
		optionType types.OptionType
		carry      types.CarryModel
		want       float64
	}{
		{types.OptionTypeCall, types.CarryEquity, 13.65535427766541},
		{types.OptionTypePut, types.CarryEquity, 5.4384556326567015},
		{types.OptionTypeCall, types.CarryFutures, 11.22113466028897},
		{types.OptionTypePut, types.CarryFutures, 6.696947570109171},
	}
	for _, tt := range tests {
		got, err := bsc.Price(tt.optionType, tt.carry, p)
		if err != nil {
			t.Fatal(err)
		}
		if !almostEqual(got, tt.want, 1e-9) {
			t.Errorf("%s/%s: got %.15f, want %.15f", tt.optionType, tt.carry, got, tt.want)
		}
	}
}

func TestBlackScholesParity(t *testing.T) {
	bsc := NewBlackScholesCalculator()
	p := referenceParams(t, 1)

	call, _ := bsc.Price(types.OptionTypeCall, types.CarryEquity, p)
	put, _ := bsc.Price(types.OptionTypePut, types.CarryEquity, p)
	rhs := p.Spot*math.Exp(-p.Yield*p.Maturity) - p.Strike*math.Exp(-p.Rate*p.Maturity)
	if !almostEqual(call-put, rhs, 1e-9) {
		t.Errorf("equity parity: %v vs %v", call-put, rhs)
	}

	fcall, _ := bsc.Price(types.OptionTypeCall, types.CarryFutures, p)
	fput, _ := bsc.Price(types.OptionTypePut, types.CarryFutures, p)
	frhs := (p.Spot - p.Strike) * math.Exp(-p.Rate*p.Maturity)
	if !almostEqual(fcall-fput, frhs, 1e-9) {
		t.Errorf("futures parity: %v vs %v", fcall-fput, frhs)
	}
}

func TestBlackScholesGreeks(t *testing.T) {
	bsc := NewBlackScholesCalculator()
	p := referenceParams(t, 1)

	price := func(ot types.OptionType, c types.CarryModel, q ContractParams) float64 {
		v, err := bsc.Price(ot, c, q)
		if err != nil {
			t.Fatal(err)
		}
		return v
	}

	const h = 1e-4
	for _, carry := range []types.CarryModel{types.CarryEquity, types.CarryFutures} {
		for _, ot := range []types.OptionType{types.OptionTypeCall, types.OptionTypePut} {
			res, err := bsc.Calculate(ot, carry, p)
			if err != nil {
				t.Fatal(err)
			}

			up := price(ot, carry, p.WithSpot(p.Spot+h))
			dn := price(ot, carry, p.WithSpot(p.Spot-h))
			delta := (up - dn) / (2 * h)
			gamma := (up - 2*res.Price + dn) / (h * h)
			vega := (price(ot, carry, p.WithVolatility(p.Volatility+h)) - price(ot, carry, p.WithVolatility(p.Volatility-h))) / (2 * h)
			rho := (price(ot, carry, p.WithRate(p.Rate+h)) - price(ot, carry, p.WithRate(p.Rate-h))) / (2 * h)
			// Theta 为日历时间衰减：剩余期限缩短时的价格变化。
			theta := -(price(ot, carry, p.WithMaturity(p.Maturity+h)) - price(ot, carry, p.WithMaturity(p.Maturity-h))) / (2 * h)

			checks := []struct {
				name      string
				got, want float64
				tol       float64
			}{
				{"delta", res.Delta, delta, 1e-6},
				{"gamma", res.Gamma, gamma, 1e-3},
				{"vega", res.Vega, vega, 1e-5},
				{"rho", res.Rho, rho, 1e-5},
				{"theta", res.Theta, theta, 1e-5},
			}
			for _, c := range checks {
				if !almostEqual(c.got, c.want, c.tol) {
					t.Errorf("%s/%s %s: got %v, finite difference %v", ot, carry, c.name, c.got, c.want)
				}
			}
		}
	}
}

func TestBlackScholesPriceInstrument(t *testing.T) {
	bsc := NewBlackScholesCalculator()
	p := referenceParams(t, 1)

	got, err := bsc.PriceInstrument(types.EuroFutureCall, p)
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(got, 11.22113466028897, 1e-9) {
		t.Errorf("unexpected Black-76 call: %v", got)
	}

	for _, inst := range []types.Instrument{types.AmericanCall, types.AmericanFuturePut} {
		if _, err := bsc.PriceInstrument(inst, p); !errors.Is(err, xerrors.ErrNoClosedForm) {
			t.Errorf("%s: expected ErrNoClosedForm, got %v", inst, err)
		}
	}
	if _, err := bsc.PriceInstrument("ASIAN_CALL", p); !errors.Is(err, xerrors.ErrUnknownInstrument) {
		t.Errorf("expected ErrUnknownInstrument, got %v", err)
	}
	if _, err := bsc.Price(types.OptionTypeCall, types.CarryEquity, p.WithVolatility(math.NaN())); !errors.Is(err, xerrors.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
}
