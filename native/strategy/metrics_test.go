package strategy

import (
	"errors"
	"math/big"
	"testing"
)

func TestMetricsProjection(t *testing.T) {
	engine, _ := newTestEngine(t)
	mustInitialize(t, engine, 1_000_000, 400)
	mustInitializeTreasury(t, engine, 0)
	mustSetRule(t, engine, "QQQ", 100, true)
	mustSetRule(t, engine, "NDX", 100, true)
	mustCollect(t, engine, 25_000)
	if _, err := engine.ExecutePurchase("QQQ", big.NewInt(400)); err != nil {
		t.Fatalf("purchase QQQ: %v", err)
	}
	if _, err := engine.ExecutePurchase("NDX", big.NewInt(100)); err != nil {
		t.Fatalf("purchase NDX: %v", err)
	}

	// NAV per token is 1000*1e6/1e6 = 1000; a market price of 1100 trades at
	// a 10% premium.
	metrics, err := engine.Metrics(big.NewInt(1_100))
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if metrics.TotalUsdcAccumulated.Int64() != 500 {
		t.Fatalf("expected 500 liquid USDC, got %s", metrics.TotalUsdcAccumulated)
	}
	if metrics.TreasuryValueUsd.Int64() != 1_000 {
		t.Fatalf("expected treasury value 1000, got %s", metrics.TreasuryValueUsd)
	}
	if metrics.NavPerToken.Int64() != 1_000 {
		t.Fatalf("expected nav 1000, got %s", metrics.NavPerToken)
	}
	if metrics.PremiumDiscount.Int64() != 10 {
		t.Fatalf("expected 10%% premium, got %s", metrics.PremiumDiscount)
	}
	if len(metrics.TreasuryComposition) != 2 {
		t.Fatalf("expected 2 composition entries, got %d", len(metrics.TreasuryComposition))
	}
	byAsset := map[string]int64{}
	for _, entry := range metrics.TreasuryComposition {
		byAsset[entry.Holding.Asset] = entry.AllocationPercentage.Int64()
	}
	if byAsset["QQQ"] != 40 {
		t.Fatalf("expected QQQ at 40%%, got %d", byAsset["QQQ"])
	}
	if byAsset["NDX"] != 10 {
		t.Fatalf("expected NDX at 10%%, got %d", byAsset["NDX"])
	}
}

func TestMetricsDiscount(t *testing.T) {
	engine, _ := newTestEngine(t)
	mustInitialize(t, engine, 1_000_000, 400)
	mustInitializeTreasury(t, engine, 0)
	mustCollect(t, engine, 25_000)

	metrics, err := engine.Metrics(big.NewInt(900))
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if metrics.PremiumDiscount.Int64() != -10 {
		t.Fatalf("expected -10%% discount, got %s", metrics.PremiumDiscount)
	}
}

func TestMetricsEmptyTreasury(t *testing.T) {
	engine, _ := newTestEngine(t)
	mustInitialize(t, engine, 1_000_000, 400)
	mustInitializeTreasury(t, engine, 0)

	metrics, err := engine.Metrics(big.NewInt(1_000))
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if metrics.TreasuryValueUsd.Sign() != 0 {
		t.Fatalf("expected zero treasury value, got %s", metrics.TreasuryValueUsd)
	}
	if metrics.NavPerToken.Sign() != 0 {
		t.Fatalf("expected zero nav, got %s", metrics.NavPerToken)
	}
	if metrics.PremiumDiscount.Sign() != 0 {
		t.Fatalf("expected zero premium at zero nav, got %s", metrics.PremiumDiscount)
	}
	if len(metrics.TreasuryComposition) != 0 {
		t.Fatalf("expected empty composition, got %d entries", len(metrics.TreasuryComposition))
	}
}

func TestMetricsRequiresInitialization(t *testing.T) {
	engine, _ := newTestEngine(t)
	if _, err := engine.Metrics(big.NewInt(1_000)); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}
