package strategy

import (
	"math/big"
	"testing"
)

func TestComputeNAV(t *testing.T) {
	cases := []struct {
		name   string
		value  int64
		supply int64
		want   int64
	}{
		{name: "worked example", value: 1_250_000, supply: 14_760_000, want: 84_688},
		{name: "one to one", value: 1_000_000, supply: 1_000_000, want: 1_000_000},
		{name: "zero supply", value: 1_250_000, supply: 0, want: 0},
		{name: "zero value", value: 0, supply: 14_760_000, want: 0},
		{name: "truncates", value: 10, supply: 3, want: 3_333_333},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeNAV(big.NewInt(tc.value), big.NewInt(tc.supply))
			if got.Int64() != tc.want {
				t.Fatalf("expected nav %d, got %s", tc.want, got)
			}
		})
	}
}

func TestRedemptionAmount(t *testing.T) {
	nav := ComputeNAV(big.NewInt(1_250_000), big.NewInt(14_760_000))
	released := RedemptionAmount(big.NewInt(500_000), nav)
	if released.Int64() != 42_344 {
		t.Fatalf("expected 42344 released, got %s", released)
	}
	if got := RedemptionAmount(big.NewInt(500_000), big.NewInt(0)); got.Sign() != 0 {
		t.Fatalf("expected zero release at zero nav, got %s", got)
	}
}

func TestComputeBackingRatio(t *testing.T) {
	if got := ComputeBackingRatio(big.NewInt(1_250_000), big.NewInt(1_000_000)); got.Int64() != 125 {
		t.Fatalf("expected backing ratio 125, got %s", got)
	}
	if got := ComputeBackingRatio(big.NewInt(500_000), big.NewInt(1_000_000)); got.Int64() != 50 {
		t.Fatalf("expected backing ratio 50, got %s", got)
	}
	if got := ComputeBackingRatio(big.NewInt(1_250_000), big.NewInt(0)); got.Sign() != 0 {
		t.Fatalf("expected zero backing ratio at zero supply, got %s", got)
	}
}

func TestPremiumDiscount(t *testing.T) {
	cases := []struct {
		name   string
		market int64
		nav    int64
		want   int64
	}{
		{name: "premium", market: 1_100_000, nav: 1_000_000, want: 10},
		{name: "discount", market: 900_000, nav: 1_000_000, want: -10},
		{name: "at par", market: 1_000_000, nav: 1_000_000, want: 0},
		{name: "small discount truncates toward zero", market: 999_999, nav: 1_000_000, want: 0},
		{name: "zero nav", market: 1_000_000, nav: 0, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := PremiumDiscount(big.NewInt(tc.market), big.NewInt(tc.nav))
			if got.Int64() != tc.want {
				t.Fatalf("expected %d, got %s", tc.want, got)
			}
		})
	}
}

func TestAllocationWithinLimit(t *testing.T) {
	if !allocationWithinLimit(big.NewInt(450), big.NewInt(1_000), 50) {
		t.Fatalf("expected 45%% allocation to pass a 50%% cap")
	}
	if !allocationWithinLimit(big.NewInt(500), big.NewInt(1_000), 50) {
		t.Fatalf("expected allocation exactly at the cap to pass")
	}
	if allocationWithinLimit(big.NewInt(550), big.NewInt(1_000), 50) {
		t.Fatalf("expected 55%% allocation to exceed a 50%% cap")
	}
	if !allocationWithinLimit(big.NewInt(0), big.NewInt(0), 50) {
		t.Fatalf("expected a zero position to pass regardless of treasury value")
	}
	if allocationWithinLimit(big.NewInt(1), big.NewInt(0), 50) {
		t.Fatalf("expected a non-zero position in an empty treasury to fail")
	}
}
