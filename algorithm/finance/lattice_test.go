package finance

import (
	"math"
	"testing"

	"github.com/wyfcoding/optionpricing/algorithm/types"
)

func TestTerminalPrices(t *testing.T) {
	for _, steps := range []int{1, 2, 17, 100} {
		p := referenceParams(t, steps)
		prices, err := TerminalPrices(p)
		if err != nil {
			t.Fatal(err)
		}
		if len(prices) != steps+1 {
			t.Fatalf("steps=%d: expected %d prices, got %d", steps, steps+1, len(prices))
		}

		f := NewLatticeFactors(p, types.CarryEquity)
		lo := p.Spot * math.Pow(f.Down, float64(steps))
		hi := p.Spot * math.Pow(f.Up, float64(steps))
		if !almostEqual(prices[0], lo, 1e-9*lo) {
			t.Errorf("steps=%d: lowest price %v, want %v", steps, prices[0], lo)
		}
		if !almostEqual(prices[steps], hi, 1e-9*hi) {
			t.Errorf("steps=%d: highest price %v, want %v", steps, prices[steps], hi)
		}
		for i := 1; i <= steps; i++ {
			if prices[i] <= prices[i-1] {
				t.Fatalf("steps=%d: prices not ascending at %d", steps, i)
			}
		}
	}
}

func TestTerminalPricesSymmetric(t *testing.T) {
	// 偶数步时中间节点回到初始价格。
	p := referenceParams(t, 4)
	prices, err := TerminalPrices(p)
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(prices[2], p.Spot, 1e-9) {
		t.Errorf("middle node %v, want %v", prices[2], p.Spot)
	}
}

func TestLatticeFactors(t *testing.T) {
	p := referenceParams(t, 1)

	eq := NewLatticeFactors(p, types.CarryEquity)
	if !almostEqual(eq.Up, 1.2840254166877414, 1e-15) || !almostEqual(eq.Down, 0.7788007830714049, 1e-15) {
		t.Errorf("unexpected u/d: %+v", eq)
	}
	if !almostEqual(eq.PUp, 0.5186009819939849, 1e-12) {
		t.Errorf("unexpected p_up: %v", eq.PUp)
	}
	if !almostEqual(eq.Discount, math.Exp(-0.1), 1e-15) {
		t.Errorf("discount must use the risk free rate only: %v", eq.Discount)
	}
	if !almostEqual(eq.PUp+eq.PDown, 1, 1e-15) || !eq.ArbitrageFree() {
		t.Errorf("equity factors inconsistent: %+v", eq)
	}

	fut := NewLatticeFactors(p, types.CarryFutures)
	if fut.Drift != 1 {
		t.Errorf("futures drift must be 1, got %v", fut.Drift)
	}
	if fut.Up != eq.Up || fut.Discount != eq.Discount {
		t.Errorf("carry must only change drift: %+v vs %+v", fut, eq)
	}
	if !almostEqual(fut.PUp, (1-fut.Down)/(fut.Up-fut.Down), 1e-15) {
		t.Errorf("unexpected futures p_up: %v", fut.PUp)
	}
}

func TestLatticeArbitrageBounds(t *testing.T) {
	f := NewLatticeFactors(arbitrageParams(t), types.CarryEquity)
	if f.ArbitrageFree() {
		t.Errorf("expected p_up > 1, got %+v", f)
	}
	if f.PUp <= 1 {
		t.Errorf("expected p_up > 1, got %v", f.PUp)
	}
}
