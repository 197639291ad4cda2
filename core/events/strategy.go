package events

import (
	"math/big"
	"strconv"
	"strings"

	"nasdaqstrategy/core/types"
)

const (
	// TypeConfigInitialized marks the one-time bootstrap of the strategy config.
	TypeConfigInitialized = "strategy.config_initialized"
	// TypeFeesCollected records a fee assessment on a token transfer.
	TypeFeesCollected = "strategy.fees_collected"
	// TypeNAVUpdated records a recomputation of NAV per token and backing ratio.
	TypeNAVUpdated = "strategy.nav_updated"
	// TypeFeeUpdated records a governed change to the fee percentage.
	TypeFeeUpdated = "strategy.fee_updated"
)

// ConfigInitialized is emitted once when the strategy config is bootstrapped.
type ConfigInitialized struct {
	Mint          string
	TotalSupply   *big.Int
	FeePercentage uint32
}

func (ConfigInitialized) EventType() string { return TypeConfigInitialized }

func (e ConfigInitialized) Event() *types.Event {
	return &types.Event{
		Type: TypeConfigInitialized,
		Attributes: map[string]string{
			"mint":          strings.TrimSpace(e.Mint),
			"totalSupply":   bigIntString(e.TotalSupply),
			"feePercentage": strconv.FormatUint(uint64(e.FeePercentage), 10),
		},
	}
}

// FeesCollected records the outcome of a fee evaluation on a transfer.
type FeesCollected struct {
	Amount         *big.Int
	Fee            *big.Int
	TransferAmount *big.Int
	Timestamp      int64
}

func (FeesCollected) EventType() string { return TypeFeesCollected }

func (e FeesCollected) Event() *types.Event {
	return &types.Event{
		Type: TypeFeesCollected,
		Attributes: map[string]string{
			"amount":         bigIntString(e.Amount),
			"fee":            bigIntString(e.Fee),
			"transferAmount": bigIntString(e.TransferAmount),
			"timestamp":      strconv.FormatInt(e.Timestamp, 10),
		},
	}
}

// NAVUpdated records the NAV state written after a treasury mutation.
type NAVUpdated struct {
	TreasuryValueUsd *big.Int
	NavPerToken      *big.Int
	BackingRatio     *big.Int
	Timestamp        int64
}

func (NAVUpdated) EventType() string { return TypeNAVUpdated }

func (e NAVUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeNAVUpdated,
		Attributes: map[string]string{
			"treasuryValueUsd": bigIntString(e.TreasuryValueUsd),
			"navPerToken":      bigIntString(e.NavPerToken),
			"backingRatio":     bigIntString(e.BackingRatio),
			"timestamp":        strconv.FormatInt(e.Timestamp, 10),
		},
	}
}

// FeeUpdated records a governed fee percentage change.
type FeeUpdated struct {
	PreviousBps uint32
	UpdatedBps  uint32
	Timestamp   int64
}

func (FeeUpdated) EventType() string { return TypeFeeUpdated }

func (e FeeUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeFeeUpdated,
		Attributes: map[string]string{
			"previousBps": strconv.FormatUint(uint64(e.PreviousBps), 10),
			"updatedBps":  strconv.FormatUint(uint64(e.UpdatedBps), 10),
			"timestamp":   strconv.FormatInt(e.Timestamp, 10),
		},
	}
}

func bigIntString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
