package strategy

import (
	"math/big"
	"testing"

	"nasdaqstrategy/core/types"
	"nasdaqstrategy/storage"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	return NewLedger(storage.NewKVStore(storage.NewMemDB()))
}

func TestLedgerConfigRoundTrip(t *testing.T) {
	ledger := newTestLedger(t)
	if _, ok, err := ledger.Config(); err != nil || ok {
		t.Fatalf("expected empty ledger, ok=%v err=%v", ok, err)
	}
	cfg := &StrategyConfig{
		Mint:          "mint-strategy",
		FeeCollector:  "fee-collector",
		Treasury:      "treasury-authority",
		TotalSupply:   big.NewInt(14_760_000),
		FeePercentage: 400,
		IsInitialized: true,
	}
	if err := ledger.PutConfig(cfg); err != nil {
		t.Fatalf("put config: %v", err)
	}
	loaded, ok, err := ledger.Config()
	if err != nil || !ok {
		t.Fatalf("load config: ok=%v err=%v", ok, err)
	}
	if loaded.Mint != cfg.Mint || loaded.FeePercentage != cfg.FeePercentage {
		t.Fatalf("config mismatch: %+v", loaded)
	}
	if loaded.TotalSupply.Cmp(cfg.TotalSupply) != 0 {
		t.Fatalf("expected supply %s, got %s", cfg.TotalSupply, loaded.TotalSupply)
	}
}

func TestLedgerTreasuryRoundTrip(t *testing.T) {
	ledger := newTestLedger(t)
	treasury := &TreasuryState{
		UsdcVault:            "usdc-vault",
		VaultAuthority:       "vault-authority",
		TotalUsdcAccumulated: big.NewInt(1_250_000),
		RebalanceFrequency:   86_400,
		MinPurchaseAmount:    big.NewInt(100),
		IsInitialized:        true,
	}
	if err := ledger.PutTreasury(treasury); err != nil {
		t.Fatalf("put treasury: %v", err)
	}
	loaded, ok, err := ledger.Treasury()
	if err != nil || !ok {
		t.Fatalf("load treasury: ok=%v err=%v", ok, err)
	}
	if loaded.TotalUsdcAccumulated.Int64() != 1_250_000 {
		t.Fatalf("expected 1250000 accumulated, got %s", loaded.TotalUsdcAccumulated)
	}
	if loaded.MinPurchaseAmount.Int64() != 100 {
		t.Fatalf("expected min purchase 100, got %s", loaded.MinPurchaseAmount)
	}
}

func TestLedgerHoldingsIndex(t *testing.T) {
	ledger := newTestLedger(t)
	assets := []string{"TQQQ", "QQQ", "NDX"}
	for _, asset := range assets {
		holding := &TreasuryHolding{
			Asset:            asset,
			AmountUsdcSpent:  big.NewInt(100),
			CurrentUsdcValue: big.NewInt(100),
			AssetAmount:      big.NewInt(0),
		}
		if err := ledger.PutHolding(holding); err != nil {
			t.Fatalf("put holding %s: %v", asset, err)
		}
	}
	// A second write of an existing asset must not duplicate the index entry.
	if err := ledger.PutHolding(&TreasuryHolding{
		Asset:            "QQQ",
		AmountUsdcSpent:  big.NewInt(250),
		CurrentUsdcValue: big.NewInt(250),
		AssetAmount:      big.NewInt(0),
	}); err != nil {
		t.Fatalf("rewrite holding: %v", err)
	}

	holdings, err := ledger.Holdings()
	if err != nil {
		t.Fatalf("holdings: %v", err)
	}
	if len(holdings) != 3 {
		t.Fatalf("expected 3 holdings, got %d", len(holdings))
	}
	want := []string{"NDX", "QQQ", "TQQQ"}
	for i, holding := range holdings {
		if holding.Asset != want[i] {
			t.Fatalf("expected sorted holdings %v, got %s at %d", want, holding.Asset, i)
		}
	}
	qqq, ok, err := ledger.Holding("QQQ")
	if err != nil || !ok {
		t.Fatalf("load QQQ: ok=%v err=%v", ok, err)
	}
	if qqq.AmountUsdcSpent.Int64() != 250 {
		t.Fatalf("expected rewritten spend 250, got %s", qqq.AmountUsdcSpent)
	}
}

func TestLedgerRuleRoundTrip(t *testing.T) {
	ledger := newTestLedger(t)
	if _, ok, err := ledger.Rule("QQQ"); err != nil || ok {
		t.Fatalf("expected no rule, ok=%v err=%v", ok, err)
	}
	rule := &StrategyRule{ApprovedAsset: "QQQ", MaxAllocationPercentage: 50, IsActive: true}
	if err := ledger.PutRule(rule); err != nil {
		t.Fatalf("put rule: %v", err)
	}
	loaded, ok, err := ledger.Rule("QQQ")
	if err != nil || !ok {
		t.Fatalf("load rule: ok=%v err=%v", ok, err)
	}
	if loaded.MaxAllocationPercentage != 50 || !loaded.IsActive {
		t.Fatalf("rule mismatch: %+v", loaded)
	}
}

func TestLedgerEventLogPagination(t *testing.T) {
	ledger := newTestLedger(t)
	for i := 0; i < 5; i++ {
		event := &types.Event{
			Type:       "treasury.holding_updated",
			Attributes: map[string]string{"asset": "QQQ"},
		}
		if err := ledger.AppendEvent(event, int64(1_700_000_000+i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	page, cursor, err := ledger.Events(0, 0, "", 2)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(page) != 2 || cursor == "" {
		t.Fatalf("expected full first page with cursor, got %d entries cursor=%q", len(page), cursor)
	}
	if page[0].Sequence != 0 || page[1].Sequence != 1 {
		t.Fatalf("expected sequences 0,1, got %d,%d", page[0].Sequence, page[1].Sequence)
	}

	page, cursor, err = ledger.Events(0, 0, cursor, 2)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(page) != 2 || page[0].Sequence != 2 {
		t.Fatalf("expected page starting at sequence 2, got %d entries starting %d", len(page), page[0].Sequence)
	}

	page, cursor, err = ledger.Events(0, 0, cursor, 2)
	if err != nil {
		t.Fatalf("final page: %v", err)
	}
	if len(page) != 1 || page[0].Sequence != 4 {
		t.Fatalf("expected final entry sequence 4, got %d entries", len(page))
	}
	if cursor != "" {
		t.Fatalf("expected exhausted cursor, got %q", cursor)
	}
}

func TestLedgerEventLogTimestampFilter(t *testing.T) {
	ledger := newTestLedger(t)
	for i := 0; i < 4; i++ {
		event := &types.Event{Type: "strategy.nav_updated", Attributes: map[string]string{}}
		if err := ledger.AppendEvent(event, int64(100+i*100)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	entries, _, err := ledger.Events(200, 300, "", 0)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries in range, got %d", len(entries))
	}
	if entries[0].Timestamp != 200 || entries[1].Timestamp != 300 {
		t.Fatalf("expected inclusive bounds, got %d and %d", entries[0].Timestamp, entries[1].Timestamp)
	}
}

func TestLedgerEventAttributesSurviveEncoding(t *testing.T) {
	ledger := newTestLedger(t)
	event := &types.Event{
		Type: "treasury.purchase_executed",
		Attributes: map[string]string{
			"exposureAsset": "QQQ",
			"amountUsdc":    "400",
			"remainingUsdc": "600",
		},
	}
	if err := ledger.AppendEvent(event, 1_700_000_000); err != nil {
		t.Fatalf("append: %v", err)
	}
	entries, _, err := ledger.Events(0, 0, "", 0)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	got := entries[0].Event
	if got.Type != event.Type {
		t.Fatalf("expected type %s, got %s", event.Type, got.Type)
	}
	for key, want := range event.Attributes {
		if got.Attributes[key] != want {
			t.Fatalf("attribute %s: expected %q, got %q", key, want, got.Attributes[key])
		}
	}
	if entries[0].ID == "" {
		t.Fatalf("expected a generated entry ID")
	}
}

func TestLedgerNAVRoundTrip(t *testing.T) {
	ledger := newTestLedger(t)
	nav := &NAVState{
		TreasuryValueUsd: big.NewInt(1_250_000),
		NavPerToken:      big.NewInt(84_688),
		BackingRatio:     big.NewInt(8),
		LastUpdate:       1_700_000_000,
	}
	if err := ledger.PutNAV(nav); err != nil {
		t.Fatalf("put nav: %v", err)
	}
	loaded, ok, err := ledger.NAV()
	if err != nil || !ok {
		t.Fatalf("load nav: ok=%v err=%v", ok, err)
	}
	if loaded.NavPerToken.Int64() != 84_688 || loaded.LastUpdate != 1_700_000_000 {
		t.Fatalf("nav mismatch: %+v", loaded)
	}
}
