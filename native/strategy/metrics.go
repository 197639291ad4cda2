package strategy

import "math/big"

// Metrics projects the current state into the derived read-only view consumed
// by UIs and explorers. The market price is supplied by the caller; the
// engine has no price oracle of its own. The projection never mutates state.
func (e *Engine) Metrics(currentMarketPrice *big.Int) (*TreasuryMetrics, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	_, treasury, err := e.loadInitialized()
	if err != nil {
		return nil, err
	}
	holdings, err := e.state.Holdings()
	if err != nil {
		return nil, err
	}
	totalValue := treasuryValue(treasury, holdings)

	navPerToken := big.NewInt(0)
	backingRatio := big.NewInt(0)
	lastUpdated := int64(0)
	if nav, ok, err := e.state.NAV(); err != nil {
		return nil, err
	} else if ok {
		navPerToken = new(big.Int).Set(nav.NavPerToken)
		backingRatio = new(big.Int).Set(nav.BackingRatio)
		lastUpdated = nav.LastUpdate
	}

	composition := make([]HoldingAllocation, 0, len(holdings))
	for _, holding := range holdings {
		composition = append(composition, HoldingAllocation{
			Holding:              holding.Clone(),
			AllocationPercentage: AllocationPercentage(holding.CurrentUsdcValue, totalValue),
		})
	}

	return &TreasuryMetrics{
		TotalUsdcAccumulated: new(big.Int).Set(treasury.TotalUsdcAccumulated),
		TreasuryValueUsd:     totalValue,
		NavPerToken:          navPerToken,
		BackingRatio:         backingRatio,
		PremiumDiscount:      PremiumDiscount(currentMarketPrice, navPerToken),
		TreasuryComposition:  composition,
		LastUpdated:          lastUpdated,
	}, nil
}
