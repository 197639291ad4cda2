package strategy

import (
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"nasdaqstrategy/core/events"
	"nasdaqstrategy/core/types"
)

type engineState interface {
	Config() (*StrategyConfig, bool, error)
	PutConfig(*StrategyConfig) error
	NAV() (*NAVState, bool, error)
	PutNAV(*NAVState) error
	Treasury() (*TreasuryState, bool, error)
	PutTreasury(*TreasuryState) error
	Holding(asset string) (*TreasuryHolding, bool, error)
	PutHolding(*TreasuryHolding) error
	Holdings() ([]*TreasuryHolding, error)
	Rule(asset string) (*StrategyRule, bool, error)
	PutRule(*StrategyRule) error
	AppendEvent(*types.Event, int64) error
	Events(startTs, endTs int64, cursor string, limit int) ([]*LogEntry, string, error)
}

type enginePayload interface {
	events.Event
	Event() *types.Event
}

// Engine orchestrates the state transitions of the strategy: fee collection,
// treasury purchases, NAV recomputation, valuation refreshes, and NAV-based
// redemption. Every mutating operation runs under a single lock so that no
// two operations ever interleave reads and writes of treasury state, and
// either fully applies together with its events or fails with no effect.
type Engine struct {
	mu      sync.Mutex
	state   engineState
	emitter events.Emitter
	clock   func() time.Time
}

// NewEngine constructs an engine. State must be wired via SetState before any
// operation is accepted.
func NewEngine() *Engine {
	return &Engine{clock: time.Now}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) {
	if e == nil {
		return
	}
	e.state = state
}

// SetEmitter configures the downstream event broadcaster.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	e.emitter = emitter
}

// SetClock overrides the time source (primarily for deterministic testing).
func (e *Engine) SetClock(clock func() time.Time) {
	if e == nil || clock == nil {
		return
	}
	e.clock = clock
}

func (e *Engine) now() int64 {
	return e.clock().UTC().Unix()
}

func (e *Engine) commitEvent(payload enginePayload, timestamp int64) error {
	if err := e.state.AppendEvent(payload.Event(), timestamp); err != nil {
		return err
	}
	if e.emitter != nil {
		e.emitter.Emit(payload)
	}
	return nil
}

// InitializeParams carries the one-time strategy config bootstrap values.
type InitializeParams struct {
	Mint          string
	FeeCollector  string
	Treasury      string
	TotalSupply   *big.Int
	FeePercentage uint32
}

// Initialize bootstraps the strategy configuration. It may run exactly once.
func (e *Engine) Initialize(params InitializeParams) (*StrategyConfig, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok, err := e.state.Config(); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrAlreadyInitialized
	}
	mint := strings.TrimSpace(params.Mint)
	if mint == "" {
		return nil, fmt.Errorf("%w: mint required", ErrInvalidConfig)
	}
	if params.TotalSupply == nil || params.TotalSupply.Sign() < 0 {
		return nil, fmt.Errorf("%w: total supply must be non-negative", ErrInvalidConfig)
	}
	if !ValidFeeBps(params.FeePercentage) {
		return nil, ErrInvalidFeePercentage
	}
	cfg := &StrategyConfig{
		Mint:          mint,
		FeeCollector:  strings.TrimSpace(params.FeeCollector),
		Treasury:      strings.TrimSpace(params.Treasury),
		TotalSupply:   new(big.Int).Set(params.TotalSupply),
		FeePercentage: params.FeePercentage,
		IsInitialized: true,
	}
	if err := e.state.PutConfig(cfg); err != nil {
		return nil, err
	}
	now := e.now()
	err := e.commitEvent(events.ConfigInitialized{
		Mint:          cfg.Mint,
		TotalSupply:   new(big.Int).Set(cfg.TotalSupply),
		FeePercentage: cfg.FeePercentage,
	}, now)
	if err != nil {
		return nil, err
	}
	return cfg.Clone(), nil
}

// TreasuryParams carries the one-time treasury vault bootstrap values.
type TreasuryParams struct {
	UsdcVault          string
	VaultAuthority     string
	RebalanceFrequency uint64
	MinPurchaseAmount  *big.Int
}

// InitializeTreasury bootstraps the treasury vault. The strategy config must
// already be initialized; the vault itself may be bootstrapped exactly once.
func (e *Engine) InitializeTreasury(params TreasuryParams) (*TreasuryState, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.loadConfig(); err != nil {
		return nil, err
	}
	if _, ok, err := e.state.Treasury(); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrAlreadyInitialized
	}
	minPurchase := big.NewInt(0)
	if params.MinPurchaseAmount != nil {
		if params.MinPurchaseAmount.Sign() < 0 {
			return nil, fmt.Errorf("%w: min purchase must be non-negative", ErrInvalidConfig)
		}
		minPurchase = new(big.Int).Set(params.MinPurchaseAmount)
	}
	treasury := &TreasuryState{
		UsdcVault:            strings.TrimSpace(params.UsdcVault),
		VaultAuthority:       strings.TrimSpace(params.VaultAuthority),
		TotalUsdcAccumulated: big.NewInt(0),
		RebalanceFrequency:   params.RebalanceFrequency,
		MinPurchaseAmount:    minPurchase,
		IsInitialized:        true,
	}
	if err := e.state.PutTreasury(treasury); err != nil {
		return nil, err
	}
	now := e.now()
	err := e.commitEvent(events.TreasuryInitialized{
		UsdcVault:          treasury.UsdcVault,
		RebalanceFrequency: treasury.RebalanceFrequency,
		MinPurchaseAmount:  new(big.Int).Set(treasury.MinPurchaseAmount),
	}, now)
	if err != nil {
		return nil, err
	}
	return treasury.Clone(), nil
}

// SetRule registers or updates the purchase rule for an exposure asset. Rules
// are a governed surface; the engine assumes the caller has already cleared
// the governance gate.
func (e *Engine) SetRule(asset string, maxAllocationPct uint32, active bool) (*StrategyRule, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.loadConfig(); err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: asset required", ErrInvalidConfig)
	}
	if maxAllocationPct > 100 {
		return nil, fmt.Errorf("%w: max allocation exceeds 100%%", ErrInvalidConfig)
	}
	rule := &StrategyRule{
		ApprovedAsset:           trimmed,
		MaxAllocationPercentage: maxAllocationPct,
		IsActive:                active,
	}
	if err := e.state.PutRule(rule); err != nil {
		return nil, err
	}
	err := e.commitEvent(events.RuleUpdated{
		ApprovedAsset:           rule.ApprovedAsset,
		MaxAllocationPercentage: rule.MaxAllocationPercentage,
		Active:                  rule.IsActive,
		Timestamp:               e.now(),
	}, e.now())
	if err != nil {
		return nil, err
	}
	return rule.Clone(), nil
}

// UpdateFeePercentage applies a governed change to the transfer fee.
func (e *Engine) UpdateFeePercentage(feeBps uint32) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if !ValidFeeBps(feeBps) {
		return ErrInvalidFeePercentage
	}
	previous := cfg.FeePercentage
	cfg.FeePercentage = feeBps
	if err := e.state.PutConfig(cfg); err != nil {
		return err
	}
	now := e.now()
	return e.commitEvent(events.FeeUpdated{
		PreviousBps: previous,
		UpdatedBps:  feeBps,
		Timestamp:   now,
	}, now)
}

// CollectFee computes the fee owed on a transaction, credits it to the
// treasury, and recomputes NAV. The transfer itself is settled externally;
// only the treasury-bound fee enters the vault here.
func (e *Engine) CollectFee(transactionAmount *big.Int) (FeeBreakdown, error) {
	var zero FeeBreakdown
	if e == nil || e.state == nil {
		return zero, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg, treasury, err := e.loadInitialized()
	if err != nil {
		return zero, err
	}
	if transactionAmount == nil || transactionAmount.Sign() < 0 {
		return zero, ErrInvalidAmount
	}
	if !ValidFeeBps(cfg.FeePercentage) {
		return zero, ErrInvalidFeePercentage
	}
	breakdown := ComputeFee(transactionAmount, cfg.FeePercentage)
	treasury.TotalUsdcAccumulated = new(big.Int).Add(treasury.TotalUsdcAccumulated, breakdown.Fee)
	if err := e.state.PutTreasury(treasury); err != nil {
		return zero, err
	}
	now := e.now()
	err = e.commitEvent(events.FeesCollected{
		Amount:         new(big.Int).Set(transactionAmount),
		Fee:            new(big.Int).Set(breakdown.Fee),
		TransferAmount: new(big.Int).Set(breakdown.TransferAmount),
		Timestamp:      now,
	}, now)
	if err != nil {
		return zero, err
	}
	if _, err := e.recomputeNAV(cfg, treasury, now); err != nil {
		return zero, err
	}
	return breakdown, nil
}

// ExecutePurchase spends accumulated USDC on an approved exposure asset. The
// operation is all-or-nothing: every precondition is checked before the first
// write. Treasury value is conserved at execution time; only later valuation
// refreshes move it.
func (e *Engine) ExecutePurchase(asset string, amountUsdc *big.Int) (*TreasuryHolding, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg, treasury, err := e.loadInitialized()
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" || amountUsdc == nil || amountUsdc.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	rule, ok, err := e.state.Rule(trimmed)
	if err != nil {
		return nil, err
	}
	if !ok || !rule.IsActive {
		return nil, ErrAssetNotApproved
	}
	if amountUsdc.Cmp(treasury.MinPurchaseAmount) < 0 {
		return nil, ErrBelowMinimumPurchase
	}
	if amountUsdc.Cmp(treasury.TotalUsdcAccumulated) > 0 {
		return nil, ErrInsufficientTreasuryFunds
	}
	holding, exists, err := e.state.Holding(trimmed)
	if err != nil {
		return nil, err
	}
	holdings, err := e.state.Holdings()
	if err != nil {
		return nil, err
	}
	// The purchase moves value from USDC into the holding, so total treasury
	// value is identical before and after; the allocation check uses the
	// post-purchase position against that conserved total.
	totalValue := treasuryValue(treasury, holdings)
	postValue := new(big.Int).Set(amountUsdc)
	if exists {
		postValue.Add(postValue, holding.CurrentUsdcValue)
	}
	if !allocationWithinLimit(postValue, totalValue, rule.MaxAllocationPercentage) {
		return nil, ErrAllocationLimitExceeded
	}

	now := e.now()
	if exists {
		holding.AmountUsdcSpent = new(big.Int).Add(holding.AmountUsdcSpent, amountUsdc)
		holding.CurrentUsdcValue = new(big.Int).Add(holding.CurrentUsdcValue, amountUsdc)
		holding.LastUpdate = now
	} else {
		holding = &TreasuryHolding{
			Asset:             trimmed,
			AmountUsdcSpent:   new(big.Int).Set(amountUsdc),
			CurrentUsdcValue:  new(big.Int).Set(amountUsdc),
			AssetAmount:       big.NewInt(0),
			PurchaseTimestamp: now,
			LastUpdate:        now,
		}
	}
	treasury.TotalUsdcAccumulated = new(big.Int).Sub(treasury.TotalUsdcAccumulated, amountUsdc)
	if err := e.state.PutTreasury(treasury); err != nil {
		return nil, err
	}
	if err := e.state.PutHolding(holding); err != nil {
		return nil, err
	}
	err = e.commitEvent(events.StrategyPurchaseExecuted{
		ExposureAsset: trimmed,
		AmountUsdc:    new(big.Int).Set(amountUsdc),
		RemainingUsdc: new(big.Int).Set(treasury.TotalUsdcAccumulated),
		Timestamp:     now,
	}, now)
	if err != nil {
		return nil, err
	}
	if _, err := e.recomputeNAV(cfg, treasury, now); err != nil {
		return nil, err
	}
	return holding.Clone(), nil
}

// Redeem burns tokens and releases USDC at the current NAV. Redemptions are
// funded from the liquid USDC balance only; holdings are never liquidated.
func (e *Engine) Redeem(redeemer string, tokenAmount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg, treasury, err := e.loadInitialized()
	if err != nil {
		return nil, err
	}
	if tokenAmount == nil || tokenAmount.Sign() <= 0 || tokenAmount.Cmp(cfg.TotalSupply) > 0 {
		return nil, ErrInvalidAmount
	}
	navPerToken := big.NewInt(0)
	if nav, ok, err := e.state.NAV(); err != nil {
		return nil, err
	} else if ok {
		navPerToken = nav.NavPerToken
	}
	released := RedemptionAmount(tokenAmount, navPerToken)
	if released.Cmp(treasury.TotalUsdcAccumulated) > 0 {
		return nil, ErrInsufficientLiquidity
	}
	cfg.TotalSupply = new(big.Int).Sub(cfg.TotalSupply, tokenAmount)
	treasury.TotalUsdcAccumulated = new(big.Int).Sub(treasury.TotalUsdcAccumulated, released)
	if err := e.state.PutConfig(cfg); err != nil {
		return nil, err
	}
	if err := e.state.PutTreasury(treasury); err != nil {
		return nil, err
	}
	now := e.now()
	err = e.commitEvent(events.TokenRedeemed{
		Redeemer:     strings.TrimSpace(redeemer),
		TokenAmount:  new(big.Int).Set(tokenAmount),
		UsdcReleased: new(big.Int).Set(released),
		Timestamp:    now,
	}, now)
	if err != nil {
		return nil, err
	}
	if _, err := e.recomputeNAV(cfg, treasury, now); err != nil {
		return nil, err
	}
	return released, nil
}

// RefreshValuation writes the externally supplied USD valuation (and
// optionally the held quantity) for an existing holding, then recomputes NAV.
// This is the only path through which market price movement reaches treasury
// value.
func (e *Engine) RefreshValuation(asset string, newUsdValue, assetAmount *big.Int) (*TreasuryHolding, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg, treasury, err := e.loadInitialized()
	if err != nil {
		return nil, err
	}
	if newUsdValue == nil || newUsdValue.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	trimmed := strings.TrimSpace(asset)
	holding, ok, err := e.state.Holding(trimmed)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownHolding
	}
	now := e.now()
	holding.CurrentUsdcValue = new(big.Int).Set(newUsdValue)
	if assetAmount != nil {
		if assetAmount.Sign() < 0 {
			return nil, ErrInvalidAmount
		}
		holding.AssetAmount = new(big.Int).Set(assetAmount)
	}
	holding.LastUpdate = now
	if err := e.state.PutHolding(holding); err != nil {
		return nil, err
	}
	err = e.commitEvent(events.HoldingUpdated{
		Asset:            trimmed,
		CurrentUsdcValue: new(big.Int).Set(holding.CurrentUsdcValue),
		Timestamp:        now,
	}, now)
	if err != nil {
		return nil, err
	}
	if _, err := e.recomputeNAV(cfg, treasury, now); err != nil {
		return nil, err
	}
	return holding.Clone(), nil
}

// recomputeNAV derives treasury value from the vault balance plus holding
// valuations, writes the snapshot, and records the NAVUpdated event. It runs
// as the terminal step of every treasury-mutating operation, under the same
// lock as the mutation.
func (e *Engine) recomputeNAV(cfg *StrategyConfig, treasury *TreasuryState, now int64) (*NAVState, error) {
	holdings, err := e.state.Holdings()
	if err != nil {
		return nil, err
	}
	value := treasuryValue(treasury, holdings)
	nav := &NAVState{
		TreasuryValueUsd: value,
		NavPerToken:      ComputeNAV(value, cfg.TotalSupply),
		BackingRatio:     ComputeBackingRatio(value, cfg.TotalSupply),
		LastUpdate:       now,
	}
	if err := e.state.PutNAV(nav); err != nil {
		return nil, err
	}
	err = e.commitEvent(events.NAVUpdated{
		TreasuryValueUsd: new(big.Int).Set(nav.TreasuryValueUsd),
		NavPerToken:      new(big.Int).Set(nav.NavPerToken),
		BackingRatio:     new(big.Int).Set(nav.BackingRatio),
		Timestamp:        now,
	}, now)
	if err != nil {
		return nil, err
	}
	return nav, nil
}

func (e *Engine) loadConfig() (*StrategyConfig, error) {
	cfg, ok, err := e.state.Config()
	if err != nil {
		return nil, err
	}
	if !ok || !cfg.IsInitialized {
		return nil, ErrNotInitialized
	}
	return cfg, nil
}

func (e *Engine) loadInitialized() (*StrategyConfig, *TreasuryState, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	treasury, ok, err := e.state.Treasury()
	if err != nil {
		return nil, nil, err
	}
	if !ok || !treasury.IsInitialized {
		return nil, nil, ErrNotInitialized
	}
	return cfg, treasury, nil
}

func treasuryValue(treasury *TreasuryState, holdings []*TreasuryHolding) *big.Int {
	value := big.NewInt(0)
	if treasury != nil && treasury.TotalUsdcAccumulated != nil {
		value.Set(treasury.TotalUsdcAccumulated)
	}
	for _, holding := range holdings {
		if holding != nil && holding.CurrentUsdcValue != nil {
			value.Add(value, holding.CurrentUsdcValue)
		}
	}
	return value
}

// Config returns a snapshot of the strategy configuration.
func (e *Engine) Config() (*StrategyConfig, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadConfig()
}

// NAV returns the latest NAV snapshot. A strategy with no treasury mutations
// yet reports a zeroed snapshot rather than an error.
func (e *Engine) NAV() (*NAVState, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.loadConfig(); err != nil {
		return nil, err
	}
	nav, ok, err := e.state.NAV()
	if err != nil {
		return nil, err
	}
	if !ok {
		return &NAVState{
			TreasuryValueUsd: big.NewInt(0),
			NavPerToken:      big.NewInt(0),
			BackingRatio:     big.NewInt(0),
		}, nil
	}
	return nav.Clone(), nil
}

// Holdings returns a consistent snapshot of all holdings.
func (e *Engine) Holdings() ([]*TreasuryHolding, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.loadConfig(); err != nil {
		return nil, err
	}
	holdings, err := e.state.Holdings()
	if err != nil {
		return nil, err
	}
	snapshot := make([]*TreasuryHolding, 0, len(holdings))
	for _, holding := range holdings {
		snapshot = append(snapshot, holding.Clone())
	}
	return snapshot, nil
}

// Events returns a page of the append-only event log.
func (e *Engine) Events(startTs, endTs int64, cursor string, limit int) ([]*LogEntry, string, error) {
	if e == nil || e.state == nil {
		return nil, "", errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Events(startTs, endTs, cursor, limit)
}
