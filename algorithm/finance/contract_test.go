package finance

import (
	"errors"
	"math"
	"testing"

	"github.com/wyfcoding/optionpricing/xerrors"
)

func TestContractParamsValidate(t *testing.T) {
	base := ContractParams{Spot: 100, Strike: 95, Rate: 0.1, Yield: 0.06, Volatility: 0.25, Maturity: 1, Steps: 10}

	tests := []struct {
		name  string
		p     ContractParams
		field string
	}{
		{"zero spot", base.WithSpot(0), "Spot"},
		{"negative strike", base.WithStrike(-1), "Strike"},
		{"nan rate", base.WithRate(math.NaN()), "Rate"},
		{"inf spot", base.WithSpot(math.Inf(1)), "Spot"},
		{"negative yield", base.WithYield(-0.01), "Yield"},
		{"zero volatility", base.WithVolatility(0), "Volatility"},
		{"zero maturity", base.WithMaturity(0), "Maturity"},
		{"zero steps", base.WithSteps(0), "Steps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if !errors.Is(err, xerrors.ErrInvalidParameter) {
				t.Fatalf("expected ErrInvalidParameter, got %v", err)
			}
			var xe *xerrors.Error
			if !errors.As(err, &xe) {
				t.Fatalf("expected *xerrors.Error, got %T", err)
			}
			if xe.Context["field"] != tt.field {
				t.Errorf("expected field %s, got %v", tt.field, xe.Context["field"])
			}
		})
	}

	if err := base.Validate(); err != nil {
		t.Errorf("base params should be valid: %v", err)
	}
	// 负利率是合法输入。
	if err := base.WithRate(-0.01).Validate(); err != nil {
		t.Errorf("negative rate should be valid: %v", err)
	}
}

func TestNewContractParams(t *testing.T) {
	p, err := NewContractParams(100, 95, 0.1, 0.06, 0.25, 1, 100)
	if err != nil {
		t.Fatal(err)
	}
	if p.Spot != 100 || p.Strike != 95 || p.Steps != 100 {
		t.Errorf("unexpected params: %+v", p)
	}

	if _, err := NewContractParams(100, 95, 0.1, 0.06, 0.25, 1, 0); err == nil {
		t.Error("expected error for zero steps")
	}
}

func TestContractParamsCopySemantics(t *testing.T) {
	p, _ := NewContractParams(100, 95, 0.1, 0.06, 0.25, 1, 100)
	q := p.WithVolatility(0.4).WithSteps(5)

	if p.Volatility != 0.25 || p.Steps != 100 {
		t.Errorf("receiver was modified: %+v", p)
	}
	if q.Volatility != 0.4 || q.Steps != 5 || q.Spot != p.Spot {
		t.Errorf("unexpected copy: %+v", q)
	}
	if cf := p.WithSteps(0).ClosedForm(); cf.Validate() != nil {
		t.Errorf("closed form view should ignore steps: %+v", cf)
	}
}
