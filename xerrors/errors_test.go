package xerrors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestDerivedErrorsMatchSentinel(t *testing.T) {
	err := ErrInvalidParameter.WithDetail("spot=%v", -1.0).WithContext("field", "Spot")

	if !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("derived error should match its sentinel")
	}
	if errors.Is(err, ErrArbitrageViolation) {
		t.Fatalf("derived error must not match an unrelated sentinel")
	}
	if err.Context["field"] != "Spot" {
		t.Errorf("context lost: %v", err.Context)
	}
	if len(ErrInvalidParameter.Context) != 0 {
		t.Errorf("sentinel context was mutated: %v", ErrInvalidParameter.Context)
	}
	if !strings.Contains(err.Error(), "spot=-1") {
		t.Errorf("detail missing from message: %s", err.Error())
	}
	if len(err.Stack) == 0 {
		t.Errorf("expected captured stack")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, ErrInternal, "noop") != nil {
		t.Fatalf("wrapping nil must return nil")
	}

	base := fmt.Errorf("disk full")
	wrapped := WrapInternal(base, "write failed")
	if !errors.Is(wrapped, base) {
		t.Errorf("wrapped error should unwrap to its cause")
	}
	if wrapped.Type != ErrInternal {
		t.Errorf("unexpected type %s", wrapped.Type)
	}

	rewrapped := Wrap(ErrCacheMiss.WithContext("key", "k"), ErrInternal, "lookup failed")
	if !errors.Is(rewrapped, ErrCacheMiss) {
		t.Errorf("rewrapped *Error should keep its code")
	}
	if rewrapped.Type != ErrNotFound {
		t.Errorf("rewrapped *Error should keep its type, got %s", rewrapped.Type)
	}
}
