package events

import (
	"math/big"
	"testing"
)

func TestFeesCollectedEvent(t *testing.T) {
	evt := FeesCollected{
		Amount:         big.NewInt(31_250_000),
		Fee:            big.NewInt(1_250_000),
		TransferAmount: big.NewInt(30_000_000),
		Timestamp:      1_700_000_000,
	}
	if evt.EventType() != TypeFeesCollected {
		t.Fatalf("unexpected event type %s", evt.EventType())
	}
	payload := evt.Event()
	if payload.Type != TypeFeesCollected {
		t.Fatalf("unexpected payload type %s", payload.Type)
	}
	if payload.Attributes["fee"] != "1250000" {
		t.Fatalf("expected fee attribute 1250000, got %q", payload.Attributes["fee"])
	}
	if payload.Attributes["transferAmount"] != "30000000" {
		t.Fatalf("expected transfer attribute 30000000, got %q", payload.Attributes["transferAmount"])
	}
}

func TestTokenRedeemedEvent(t *testing.T) {
	evt := TokenRedeemed{
		Redeemer:     " alice ",
		TokenAmount:  big.NewInt(500_000),
		UsdcReleased: big.NewInt(42_344),
		Timestamp:    1_700_000_000,
	}
	payload := evt.Event()
	if payload.Attributes["redeemer"] != "alice" {
		t.Fatalf("expected trimmed redeemer, got %q", payload.Attributes["redeemer"])
	}
	if payload.Attributes["usdcReleased"] != "42344" {
		t.Fatalf("expected usdcReleased 42344, got %q", payload.Attributes["usdcReleased"])
	}
}

func TestNilAmountsRenderAsZero(t *testing.T) {
	payload := NAVUpdated{Timestamp: 1}.Event()
	if payload.Attributes["navPerToken"] != "0" {
		t.Fatalf("expected nil amount to render as 0, got %q", payload.Attributes["navPerToken"])
	}
}
