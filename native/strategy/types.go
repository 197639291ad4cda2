package strategy

import "math/big"

// StrategyConfig captures the token-level configuration created once at
// protocol bootstrap. Amount values are expressed as big integers in base
// units to keep the arithmetic deterministic across platforms.
type StrategyConfig struct {
	// Mint identifies the strategy token.
	Mint string
	// FeeCollector identifies the account credited with collected fees.
	FeeCollector string
	// Treasury identifies the treasury account fees are routed to.
	Treasury string
	// TotalSupply is the outstanding token supply in base units. It only
	// decreases, via redemption burns.
	TotalSupply *big.Int
	// FeePercentage is the transfer fee in basis points (0-5000).
	FeePercentage uint32
	// IsInitialized gates every other operation.
	IsInitialized bool
}

// Clone returns a deep copy so callers cannot alias engine-owned state.
func (c *StrategyConfig) Clone() *StrategyConfig {
	if c == nil {
		return nil
	}
	clone := *c
	if c.TotalSupply != nil {
		clone.TotalSupply = new(big.Int).Set(c.TotalSupply)
	}
	return &clone
}

// NAVState is the net asset value snapshot written as the terminal step of
// every treasury-mutating operation.
type NAVState struct {
	// TreasuryValueUsd is the USDC balance plus the sum of holding valuations.
	TreasuryValueUsd *big.Int
	// NavPerToken is the NAV per token scaled by 1e6.
	NavPerToken *big.Int
	// BackingRatio is the treasury value per token as a truncated percentage.
	// It may exceed 100.
	BackingRatio *big.Int
	// LastUpdate is the unix timestamp of the recomputation.
	LastUpdate int64
}

// Clone returns a deep copy of the NAV snapshot.
func (n *NAVState) Clone() *NAVState {
	if n == nil {
		return nil
	}
	clone := *n
	if n.TreasuryValueUsd != nil {
		clone.TreasuryValueUsd = new(big.Int).Set(n.TreasuryValueUsd)
	}
	if n.NavPerToken != nil {
		clone.NavPerToken = new(big.Int).Set(n.NavPerToken)
	}
	if n.BackingRatio != nil {
		clone.BackingRatio = new(big.Int).Set(n.BackingRatio)
	}
	return &clone
}

// TreasuryState tracks the USDC vault accumulating fees between purchases.
type TreasuryState struct {
	UsdcVault      string
	VaultAuthority string
	// TotalUsdcAccumulated is the liquid USDC balance. Fees flow in,
	// purchases and redemptions flow out.
	TotalUsdcAccumulated *big.Int
	RebalanceFrequency   uint64
	MinPurchaseAmount    *big.Int
	IsInitialized        bool
}

// Clone returns a deep copy of the treasury state.
func (t *TreasuryState) Clone() *TreasuryState {
	if t == nil {
		return nil
	}
	clone := *t
	if t.TotalUsdcAccumulated != nil {
		clone.TotalUsdcAccumulated = new(big.Int).Set(t.TotalUsdcAccumulated)
	}
	if t.MinPurchaseAmount != nil {
		clone.MinPurchaseAmount = new(big.Int).Set(t.MinPurchaseAmount)
	}
	return &clone
}

// TreasuryHolding is the treasury's position in one approved exposure asset.
// A holding is created on first purchase and updated thereafter. Holdings are
// never deleted: a fully divested position remains at zero value for audit
// continuity.
type TreasuryHolding struct {
	Asset string
	// AmountUsdcSpent is the cumulative cost basis.
	AmountUsdcSpent *big.Int
	// CurrentUsdcValue is the latest externally supplied valuation.
	CurrentUsdcValue *big.Int
	// AssetAmount is the quantity held, reported by the external feed.
	AssetAmount *big.Int
	// PurchaseTimestamp is set on the first purchase and never changes.
	PurchaseTimestamp int64
	LastUpdate        int64
}

// Clone returns a deep copy of the holding.
func (h *TreasuryHolding) Clone() *TreasuryHolding {
	if h == nil {
		return nil
	}
	clone := *h
	if h.AmountUsdcSpent != nil {
		clone.AmountUsdcSpent = new(big.Int).Set(h.AmountUsdcSpent)
	}
	if h.CurrentUsdcValue != nil {
		clone.CurrentUsdcValue = new(big.Int).Set(h.CurrentUsdcValue)
	}
	if h.AssetAmount != nil {
		clone.AssetAmount = new(big.Int).Set(h.AssetAmount)
	}
	return &clone
}

// StrategyRule gates which exposure assets the treasury may purchase and how
// large each position may grow relative to total treasury value.
type StrategyRule struct {
	ApprovedAsset string
	// MaxAllocationPercentage caps the asset's share of treasury value,
	// expressed as a whole percentage (0-100).
	MaxAllocationPercentage uint32
	IsActive                bool
}

// Clone returns a copy of the rule.
func (r *StrategyRule) Clone() *StrategyRule {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// HoldingAllocation pairs a holding with its computed share of treasury value.
type HoldingAllocation struct {
	Holding *TreasuryHolding
	// AllocationPercentage is the holding's truncated percentage share of
	// total treasury value; zero when treasury value is zero.
	AllocationPercentage *big.Int
}

// TreasuryMetrics is a derived read-only view for external consumers. It is
// recomputed on demand and never stored.
type TreasuryMetrics struct {
	TotalUsdcAccumulated *big.Int
	TreasuryValueUsd     *big.Int
	NavPerToken          *big.Int
	BackingRatio         *big.Int
	// PremiumDiscount is the deviation of the externally supplied market
	// price from NAV, as a truncated percentage of NAV. Positive means the
	// token trades at a premium.
	PremiumDiscount     *big.Int
	TreasuryComposition []HoldingAllocation
	LastUpdated         int64
}
