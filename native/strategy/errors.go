package strategy

import "errors"

var (
	// ErrNotInitialized indicates an operation was submitted before the
	// strategy config or treasury was bootstrapped.
	ErrNotInitialized = errors.New("strategy engine: not initialized")
	// ErrAlreadyInitialized indicates a repeated bootstrap attempt.
	ErrAlreadyInitialized = errors.New("strategy engine: already initialized")
	// ErrInvalidConfig indicates the supplied configuration is malformed.
	ErrInvalidConfig = errors.New("strategy engine: invalid config")
	// ErrInvalidFeePercentage indicates a fee outside the [0, 5000] bps range.
	ErrInvalidFeePercentage = errors.New("strategy engine: invalid fee percentage")
	// ErrAssetNotApproved indicates a purchase of an asset without an active rule.
	ErrAssetNotApproved = errors.New("strategy engine: asset not approved")
	// ErrBelowMinimumPurchase indicates a purchase below the configured minimum.
	ErrBelowMinimumPurchase = errors.New("strategy engine: below minimum purchase")
	// ErrInsufficientTreasuryFunds indicates a purchase exceeding accumulated USDC.
	ErrInsufficientTreasuryFunds = errors.New("strategy engine: insufficient treasury funds")
	// ErrAllocationLimitExceeded indicates a purchase that would breach the
	// asset's maximum allocation percentage.
	ErrAllocationLimitExceeded = errors.New("strategy engine: allocation limit exceeded")
	// ErrInsufficientLiquidity indicates a redemption larger than the liquid
	// USDC balance. Holdings are never liquidated to fund redemptions.
	ErrInsufficientLiquidity = errors.New("strategy engine: insufficient liquidity")
	// ErrInvalidAmount indicates a zero, negative, or out-of-range amount.
	ErrInvalidAmount = errors.New("strategy engine: invalid amount")
	// ErrUnknownHolding indicates a valuation refresh for an asset the
	// treasury has never purchased.
	ErrUnknownHolding = errors.New("strategy engine: unknown holding")

	errNilState = errors.New("strategy engine: state not configured")
)
