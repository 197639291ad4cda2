package events

import (
	"math/big"
	"strconv"
	"strings"

	"nasdaqstrategy/core/types"
)

const (
	// TypeTreasuryInitialized marks the one-time bootstrap of the treasury vault.
	TypeTreasuryInitialized = "treasury.initialized"
	// TypeStrategyPurchaseExecuted records a purchase of an approved exposure asset.
	TypeStrategyPurchaseExecuted = "treasury.purchase_executed"
	// TypeTokenRedeemed records a redemption of tokens for USDC at NAV.
	TypeTokenRedeemed = "treasury.token_redeemed"
	// TypeHoldingUpdated records an external valuation refresh for a holding.
	TypeHoldingUpdated = "treasury.holding_updated"
	// TypeRuleUpdated records a governed change to a strategy rule.
	TypeRuleUpdated = "treasury.rule_updated"
)

// TreasuryInitialized is emitted once when the treasury vault is bootstrapped.
type TreasuryInitialized struct {
	UsdcVault          string
	RebalanceFrequency uint64
	MinPurchaseAmount  *big.Int
}

func (TreasuryInitialized) EventType() string { return TypeTreasuryInitialized }

func (e TreasuryInitialized) Event() *types.Event {
	return &types.Event{
		Type: TypeTreasuryInitialized,
		Attributes: map[string]string{
			"usdcVault":          strings.TrimSpace(e.UsdcVault),
			"rebalanceFrequency": strconv.FormatUint(e.RebalanceFrequency, 10),
			"minPurchaseAmount":  bigIntString(e.MinPurchaseAmount),
		},
	}
}

// StrategyPurchaseExecuted records a completed exposure asset purchase.
type StrategyPurchaseExecuted struct {
	ExposureAsset string
	AmountUsdc    *big.Int
	RemainingUsdc *big.Int
	Timestamp     int64
}

func (StrategyPurchaseExecuted) EventType() string { return TypeStrategyPurchaseExecuted }

func (e StrategyPurchaseExecuted) Event() *types.Event {
	return &types.Event{
		Type: TypeStrategyPurchaseExecuted,
		Attributes: map[string]string{
			"exposureAsset": strings.TrimSpace(e.ExposureAsset),
			"amountUsdc":    bigIntString(e.AmountUsdc),
			"remainingUsdc": bigIntString(e.RemainingUsdc),
			"timestamp":     strconv.FormatInt(e.Timestamp, 10),
		},
	}
}

// TokenRedeemed records a redemption settled against the USDC vault.
type TokenRedeemed struct {
	Redeemer     string
	TokenAmount  *big.Int
	UsdcReleased *big.Int
	Timestamp    int64
}

func (TokenRedeemed) EventType() string { return TypeTokenRedeemed }

func (e TokenRedeemed) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenRedeemed,
		Attributes: map[string]string{
			"redeemer":     strings.TrimSpace(e.Redeemer),
			"tokenAmount":  bigIntString(e.TokenAmount),
			"usdcReleased": bigIntString(e.UsdcReleased),
			"timestamp":    strconv.FormatInt(e.Timestamp, 10),
		},
	}
}

// HoldingUpdated records a valuation refresh supplied by the price feed.
type HoldingUpdated struct {
	Asset            string
	CurrentUsdcValue *big.Int
	Timestamp        int64
}

func (HoldingUpdated) EventType() string { return TypeHoldingUpdated }

func (e HoldingUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeHoldingUpdated,
		Attributes: map[string]string{
			"asset":            strings.TrimSpace(e.Asset),
			"currentUsdcValue": bigIntString(e.CurrentUsdcValue),
			"timestamp":        strconv.FormatInt(e.Timestamp, 10),
		},
	}
}

// RuleUpdated records a governed strategy rule registration or change.
type RuleUpdated struct {
	ApprovedAsset           string
	MaxAllocationPercentage uint32
	Active                  bool
	Timestamp               int64
}

func (RuleUpdated) EventType() string { return TypeRuleUpdated }

func (e RuleUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeRuleUpdated,
		Attributes: map[string]string{
			"approvedAsset":           strings.TrimSpace(e.ApprovedAsset),
			"maxAllocationPercentage": strconv.FormatUint(uint64(e.MaxAllocationPercentage), 10),
			"active":                  strconv.FormatBool(e.Active),
			"timestamp":               strconv.FormatInt(e.Timestamp, 10),
		},
	}
}
