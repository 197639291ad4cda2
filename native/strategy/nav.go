package strategy

import "math/big"

// NavScale is the fixed-point scale applied to NAV per token.
const NavScale = 1_000_000

var (
	navScale   = big.NewInt(NavScale)
	oneHundred = big.NewInt(100)
)

// ComputeNAV returns the NAV per token scaled by 1e6 using truncating integer
// division. A zero supply yields zero rather than a division fault.
func ComputeNAV(treasuryValueUsd, totalSupply *big.Int) *big.Int {
	if treasuryValueUsd == nil || totalSupply == nil || totalSupply.Sign() == 0 {
		return big.NewInt(0)
	}
	nav := new(big.Int).Mul(treasuryValueUsd, navScale)
	return nav.Div(nav, totalSupply)
}

// ComputeBackingRatio returns the treasury value per token as a truncated
// whole percentage. Values above 100 are legitimate once the treasury backs
// more than one USD base unit per token.
func ComputeBackingRatio(treasuryValueUsd, totalSupply *big.Int) *big.Int {
	if treasuryValueUsd == nil || totalSupply == nil || totalSupply.Sign() == 0 {
		return big.NewInt(0)
	}
	ratio := new(big.Int).Mul(treasuryValueUsd, oneHundred)
	return ratio.Div(ratio, totalSupply)
}

// RedemptionAmount returns the USDC released when redeeming tokenAmount at
// the supplied NAV per token, truncating toward zero.
func RedemptionAmount(tokenAmount, navPerToken *big.Int) *big.Int {
	if tokenAmount == nil || navPerToken == nil {
		return big.NewInt(0)
	}
	released := new(big.Int).Mul(tokenAmount, navPerToken)
	return released.Div(released, navScale)
}

// PremiumDiscount returns the deviation of the market price from NAV as a
// truncated percentage of NAV. The result is negative when the token trades
// at a discount. A zero NAV yields zero by definition.
func PremiumDiscount(currentMarketPrice, navPerToken *big.Int) *big.Int {
	if currentMarketPrice == nil || navPerToken == nil || navPerToken.Sign() == 0 {
		return big.NewInt(0)
	}
	delta := new(big.Int).Sub(currentMarketPrice, navPerToken)
	delta.Mul(delta, oneHundred)
	// Quo truncates toward zero for both premiums and discounts.
	return delta.Quo(delta, navPerToken)
}

// AllocationPercentage returns value's truncated percentage share of total.
// A zero total reports zero for every holding; this is defined behaviour, not
// an error.
func AllocationPercentage(value, total *big.Int) *big.Int {
	if value == nil || total == nil || total.Sign() == 0 {
		return big.NewInt(0)
	}
	share := new(big.Int).Mul(value, oneHundred)
	return share.Div(share, total)
}

// allocationWithinLimit reports whether a position of assetValue inside a
// treasury worth totalValue stays at or below maxPct percent. The comparison
// cross-multiplies to avoid losing precision to division.
func allocationWithinLimit(assetValue, totalValue *big.Int, maxPct uint32) bool {
	if assetValue == nil || assetValue.Sign() == 0 {
		return true
	}
	if totalValue == nil || totalValue.Sign() == 0 {
		return false
	}
	lhs := new(big.Int).Mul(assetValue, oneHundred)
	rhs := new(big.Int).Mul(totalValue, big.NewInt(int64(maxPct)))
	return lhs.Cmp(rhs) <= 0
}
