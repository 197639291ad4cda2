package strategy

import "math/big"

// Fee percentages are quoted in basis points. MaxFeeBps is the governance
// ceiling: fees above 50% are rejected at config time and re-checked on every
// collection.
const (
	BasisPointDenominator = 10_000
	MaxFeeBps             = 5_000
)

var bpsDenominator = big.NewInt(BasisPointDenominator)

// FeeBreakdown summarises the fee owed on a transaction and the net amount
// that continues to the recipient. Fee plus TransferAmount always equals the
// gross transaction amount.
type FeeBreakdown struct {
	Fee            *big.Int
	TransferAmount *big.Int
}

// ComputeFee splits a gross transaction amount according to the fee
// percentage. Division truncates, so the collected fee never exceeds the
// nominal percentage.
func ComputeFee(transactionAmount *big.Int, feeBps uint32) FeeBreakdown {
	result := FeeBreakdown{Fee: big.NewInt(0), TransferAmount: big.NewInt(0)}
	if transactionAmount == nil || transactionAmount.Sign() <= 0 {
		if transactionAmount != nil && transactionAmount.Sign() == 0 {
			result.TransferAmount = big.NewInt(0)
		}
		return result
	}
	result.TransferAmount = new(big.Int).Set(transactionAmount)
	if feeBps == 0 {
		return result
	}
	fee := new(big.Int).Mul(transactionAmount, big.NewInt(int64(feeBps)))
	fee = fee.Div(fee, bpsDenominator)
	if fee.Sign() <= 0 {
		return result
	}
	result.Fee = fee
	result.TransferAmount = new(big.Int).Sub(transactionAmount, fee)
	return result
}

// ValidFeeBps reports whether the fee percentage sits inside the accepted
// [0, 5000] basis point range.
func ValidFeeBps(feeBps uint32) bool {
	return feeBps <= MaxFeeBps
}
