package strategy

import (
	"fmt"
	"math"
	"math/big"
	"sort"
	"strings"

	"github.com/google/uuid"

	"nasdaqstrategy/core/types"
)

// Storage abstracts the subset of key-value functionality required by the
// strategy ledger.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

var (
	configKey        = []byte("strategy/config")
	navKey           = []byte("strategy/nav")
	treasuryKey      = []byte("strategy/treasury")
	holdingPrefix    = []byte("strategy/holding/")
	holdingIndexKey  = []byte("strategy/holding/index")
	rulePrefix       = []byte("strategy/rule/")
	eventLogKey      = []byte("strategy/events")
	eventSequenceKey = []byte("strategy/events/seq")
)

type storedConfig struct {
	Mint          string
	FeeCollector  string
	Treasury      string
	TotalSupply   string
	FeePercentage uint32
	IsInitialized bool
}

type storedNAVState struct {
	TreasuryValueUsd string
	NavPerToken      string
	BackingRatio     string
	LastUpdate       uint64
}

type storedTreasuryState struct {
	UsdcVault            string
	VaultAuthority       string
	TotalUsdcAccumulated string
	RebalanceFrequency   uint64
	MinPurchaseAmount    string
	IsInitialized        bool
}

type storedHolding struct {
	Asset             string
	AmountUsdcSpent   string
	CurrentUsdcValue  string
	AssetAmount       string
	PurchaseTimestamp uint64
	LastUpdate        uint64
}

type storedRule struct {
	ApprovedAsset           string
	MaxAllocationPercentage uint32
	IsActive                bool
}

type storedLogEntry struct {
	ID        string
	Sequence  uint64
	Timestamp uint64
	EventType string
	Keys      []string
	Values    []string
}

type storedSequence struct {
	Next uint64
}

// LogEntry is one committed record of the append-only event log.
type LogEntry struct {
	ID        string
	Sequence  uint64
	Timestamp int64
	Event     types.Event
}

// Ledger persists all strategy state and the append-only event log in the
// underlying key-value store. It is the single owner of mutable state; the
// engine reads and writes exclusively through it.
type Ledger struct {
	store Storage
}

// NewLedger constructs a ledger bound to the provided storage backend.
func NewLedger(store Storage) *Ledger {
	return &Ledger{store: store}
}

// Config retrieves the strategy configuration if it has been bootstrapped.
func (l *Ledger) Config() (*StrategyConfig, bool, error) {
	if l == nil || l.store == nil {
		return nil, false, fmt.Errorf("ledger not initialised")
	}
	var stored storedConfig
	ok, err := l.store.KVGet(configKey, &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	supply, err := parseAmount(stored.TotalSupply)
	if err != nil {
		return nil, false, fmt.Errorf("ledger: total supply: %w", err)
	}
	return &StrategyConfig{
		Mint:          stored.Mint,
		FeeCollector:  stored.FeeCollector,
		Treasury:      stored.Treasury,
		TotalSupply:   supply,
		FeePercentage: stored.FeePercentage,
		IsInitialized: stored.IsInitialized,
	}, true, nil
}

// PutConfig stores the strategy configuration.
func (l *Ledger) PutConfig(cfg *StrategyConfig) error {
	if l == nil || l.store == nil {
		return fmt.Errorf("ledger not initialised")
	}
	if cfg == nil {
		return fmt.Errorf("ledger: config must not be nil")
	}
	return l.store.KVPut(configKey, storedConfig{
		Mint:          strings.TrimSpace(cfg.Mint),
		FeeCollector:  strings.TrimSpace(cfg.FeeCollector),
		Treasury:      strings.TrimSpace(cfg.Treasury),
		TotalSupply:   amountString(cfg.TotalSupply),
		FeePercentage: cfg.FeePercentage,
		IsInitialized: cfg.IsInitialized,
	})
}

// NAV retrieves the latest NAV snapshot.
func (l *Ledger) NAV() (*NAVState, bool, error) {
	if l == nil || l.store == nil {
		return nil, false, fmt.Errorf("ledger not initialised")
	}
	var stored storedNAVState
	ok, err := l.store.KVGet(navKey, &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	value, err := parseAmount(stored.TreasuryValueUsd)
	if err != nil {
		return nil, false, fmt.Errorf("ledger: treasury value: %w", err)
	}
	nav, err := parseAmount(stored.NavPerToken)
	if err != nil {
		return nil, false, fmt.Errorf("ledger: nav per token: %w", err)
	}
	ratio, err := parseAmount(stored.BackingRatio)
	if err != nil {
		return nil, false, fmt.Errorf("ledger: backing ratio: %w", err)
	}
	lastUpdate, err := uint64ToInt64(stored.LastUpdate)
	if err != nil {
		return nil, false, fmt.Errorf("ledger: nav timestamp overflow: %w", err)
	}
	return &NAVState{
		TreasuryValueUsd: value,
		NavPerToken:      nav,
		BackingRatio:     ratio,
		LastUpdate:       lastUpdate,
	}, true, nil
}

// PutNAV stores the NAV snapshot.
func (l *Ledger) PutNAV(nav *NAVState) error {
	if l == nil || l.store == nil {
		return fmt.Errorf("ledger not initialised")
	}
	if nav == nil {
		return fmt.Errorf("ledger: nav state must not be nil")
	}
	return l.store.KVPut(navKey, storedNAVState{
		TreasuryValueUsd: amountString(nav.TreasuryValueUsd),
		NavPerToken:      amountString(nav.NavPerToken),
		BackingRatio:     amountString(nav.BackingRatio),
		LastUpdate:       int64ToUint64(nav.LastUpdate),
	})
}

// Treasury retrieves the treasury vault state.
func (l *Ledger) Treasury() (*TreasuryState, bool, error) {
	if l == nil || l.store == nil {
		return nil, false, fmt.Errorf("ledger not initialised")
	}
	var stored storedTreasuryState
	ok, err := l.store.KVGet(treasuryKey, &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	accumulated, err := parseAmount(stored.TotalUsdcAccumulated)
	if err != nil {
		return nil, false, fmt.Errorf("ledger: accumulated usdc: %w", err)
	}
	minPurchase, err := parseAmount(stored.MinPurchaseAmount)
	if err != nil {
		return nil, false, fmt.Errorf("ledger: min purchase: %w", err)
	}
	return &TreasuryState{
		UsdcVault:            stored.UsdcVault,
		VaultAuthority:       stored.VaultAuthority,
		TotalUsdcAccumulated: accumulated,
		RebalanceFrequency:   stored.RebalanceFrequency,
		MinPurchaseAmount:    minPurchase,
		IsInitialized:        stored.IsInitialized,
	}, true, nil
}

// PutTreasury stores the treasury vault state.
func (l *Ledger) PutTreasury(treasury *TreasuryState) error {
	if l == nil || l.store == nil {
		return fmt.Errorf("ledger not initialised")
	}
	if treasury == nil {
		return fmt.Errorf("ledger: treasury state must not be nil")
	}
	return l.store.KVPut(treasuryKey, storedTreasuryState{
		UsdcVault:            strings.TrimSpace(treasury.UsdcVault),
		VaultAuthority:       strings.TrimSpace(treasury.VaultAuthority),
		TotalUsdcAccumulated: amountString(treasury.TotalUsdcAccumulated),
		RebalanceFrequency:   treasury.RebalanceFrequency,
		MinPurchaseAmount:    amountString(treasury.MinPurchaseAmount),
		IsInitialized:        treasury.IsInitialized,
	})
}

// Holding retrieves the holding record for the supplied asset.
func (l *Ledger) Holding(asset string) (*TreasuryHolding, bool, error) {
	if l == nil || l.store == nil {
		return nil, false, fmt.Errorf("ledger not initialised")
	}
	key := holdingKey(asset)
	if len(key) == len(holdingPrefix) {
		return nil, false, fmt.Errorf("ledger: asset required")
	}
	var stored storedHolding
	ok, err := l.store.KVGet(key, &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	holding, err := fromStoredHolding(&stored)
	if err != nil {
		return nil, false, err
	}
	return holding, true, nil
}

// PutHolding upserts the holding record, maintaining the asset index used for
// deterministic iteration. Records are never removed.
func (l *Ledger) PutHolding(holding *TreasuryHolding) error {
	if l == nil || l.store == nil {
		return fmt.Errorf("ledger not initialised")
	}
	if holding == nil {
		return fmt.Errorf("ledger: holding must not be nil")
	}
	key := holdingKey(holding.Asset)
	if len(key) == len(holdingPrefix) {
		return fmt.Errorf("ledger: asset required")
	}
	var existing storedHolding
	ok, err := l.store.KVGet(key, &existing)
	if err != nil {
		return err
	}
	stored := storedHolding{
		Asset:             strings.TrimSpace(holding.Asset),
		AmountUsdcSpent:   amountString(holding.AmountUsdcSpent),
		CurrentUsdcValue:  amountString(holding.CurrentUsdcValue),
		AssetAmount:       amountString(holding.AssetAmount),
		PurchaseTimestamp: int64ToUint64(holding.PurchaseTimestamp),
		LastUpdate:        int64ToUint64(holding.LastUpdate),
	}
	if err := l.store.KVPut(key, stored); err != nil {
		return err
	}
	if !ok {
		return l.store.KVAppend(holdingIndexKey, []byte(stored.Asset))
	}
	return nil
}

// Holdings returns every holding sorted by asset identifier.
func (l *Ledger) Holdings() ([]*TreasuryHolding, error) {
	if l == nil || l.store == nil {
		return nil, fmt.Errorf("ledger not initialised")
	}
	var raw [][]byte
	if err := l.store.KVGetList(holdingIndexKey, &raw); err != nil {
		return nil, err
	}
	assets := make([]string, 0, len(raw))
	for _, entry := range raw {
		asset := strings.TrimSpace(string(entry))
		if asset == "" {
			continue
		}
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	holdings := make([]*TreasuryHolding, 0, len(assets))
	for _, asset := range assets {
		holding, ok, err := l.Holding(asset)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		holdings = append(holdings, holding)
	}
	return holdings, nil
}

// Rule retrieves the strategy rule for the supplied asset.
func (l *Ledger) Rule(asset string) (*StrategyRule, bool, error) {
	if l == nil || l.store == nil {
		return nil, false, fmt.Errorf("ledger not initialised")
	}
	key := ruleKey(asset)
	if len(key) == len(rulePrefix) {
		return nil, false, fmt.Errorf("ledger: asset required")
	}
	var stored storedRule
	ok, err := l.store.KVGet(key, &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &StrategyRule{
		ApprovedAsset:           stored.ApprovedAsset,
		MaxAllocationPercentage: stored.MaxAllocationPercentage,
		IsActive:                stored.IsActive,
	}, true, nil
}

// PutRule stores the strategy rule for the rule's approved asset.
func (l *Ledger) PutRule(rule *StrategyRule) error {
	if l == nil || l.store == nil {
		return fmt.Errorf("ledger not initialised")
	}
	if rule == nil {
		return fmt.Errorf("ledger: rule must not be nil")
	}
	key := ruleKey(rule.ApprovedAsset)
	if len(key) == len(rulePrefix) {
		return fmt.Errorf("ledger: asset required")
	}
	return l.store.KVPut(key, storedRule{
		ApprovedAsset:           strings.TrimSpace(rule.ApprovedAsset),
		MaxAllocationPercentage: rule.MaxAllocationPercentage,
		IsActive:                rule.IsActive,
	})
}

// AppendEvent commits the event to the append-only log with the next
// sequence number. Entries are immutable once written.
func (l *Ledger) AppendEvent(event *types.Event, timestamp int64) error {
	if l == nil || l.store == nil {
		return fmt.Errorf("ledger not initialised")
	}
	if event == nil {
		return fmt.Errorf("ledger: event must not be nil")
	}
	var seq storedSequence
	if _, err := l.store.KVGet(eventSequenceKey, &seq); err != nil {
		return err
	}
	keys := make([]string, 0, len(event.Attributes))
	for key := range event.Attributes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	values := make([]string, 0, len(keys))
	for _, key := range keys {
		values = append(values, event.Attributes[key])
	}
	entry := storedLogEntry{
		ID:        uuid.NewString(),
		Sequence:  seq.Next,
		Timestamp: int64ToUint64(timestamp),
		EventType: event.Type,
		Keys:      keys,
		Values:    values,
	}
	encoded, err := encodeLogEntry(entry)
	if err != nil {
		return err
	}
	if err := l.store.KVAppend(eventLogKey, encoded); err != nil {
		return err
	}
	return l.store.KVPut(eventSequenceKey, storedSequence{Next: seq.Next + 1})
}

// Events returns a paginated slice of log entries within the supplied
// inclusive timestamp range. The cursor is the entry ID of the last item from
// the previous page.
func (l *Ledger) Events(startTs, endTs int64, cursor string, limit int) ([]*LogEntry, string, error) {
	if l == nil || l.store == nil {
		return nil, "", fmt.Errorf("ledger not initialised")
	}
	var raw [][]byte
	if err := l.store.KVGetList(eventLogKey, &raw); err != nil {
		return nil, "", err
	}
	entries := make([]*LogEntry, 0, len(raw))
	for _, encoded := range raw {
		if len(encoded) == 0 {
			continue
		}
		entry, err := decodeLogEntry(encoded)
		if err != nil {
			return nil, "", err
		}
		if startTs != 0 && entry.Timestamp < startTs {
			continue
		}
		if endTs != 0 && entry.Timestamp > endTs {
			continue
		}
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Sequence < entries[j].Sequence
	})
	startIdx := 0
	cursorID := strings.TrimSpace(cursor)
	if cursorID != "" {
		for i, entry := range entries {
			if entry.ID == cursorID {
				startIdx = i + 1
				break
			}
		}
	}
	pageSize := limit
	if pageSize <= 0 {
		pageSize = len(entries) - startIdx
	}
	page := make([]*LogEntry, 0, minInt(pageSize, len(entries)-startIdx))
	nextCursor := ""
	for i := startIdx; i < len(entries) && len(page) < pageSize; i++ {
		page = append(page, entries[i])
		nextCursor = entries[i].ID
	}
	if startIdx+len(page) >= len(entries) {
		nextCursor = ""
	}
	return page, nextCursor, nil
}

func holdingKey(asset string) []byte {
	trimmed := strings.TrimSpace(asset)
	buf := make([]byte, len(holdingPrefix)+len(trimmed))
	copy(buf, holdingPrefix)
	copy(buf[len(holdingPrefix):], trimmed)
	return buf
}

func ruleKey(asset string) []byte {
	trimmed := strings.TrimSpace(asset)
	buf := make([]byte, len(rulePrefix)+len(trimmed))
	copy(buf, rulePrefix)
	copy(buf[len(rulePrefix):], trimmed)
	return buf
}

func fromStoredHolding(stored *storedHolding) (*TreasuryHolding, error) {
	if stored == nil {
		return nil, fmt.Errorf("ledger: nil stored holding")
	}
	spent, err := parseAmount(stored.AmountUsdcSpent)
	if err != nil {
		return nil, fmt.Errorf("ledger: amount spent: %w", err)
	}
	value, err := parseAmount(stored.CurrentUsdcValue)
	if err != nil {
		return nil, fmt.Errorf("ledger: current value: %w", err)
	}
	amount, err := parseAmount(stored.AssetAmount)
	if err != nil {
		return nil, fmt.Errorf("ledger: asset amount: %w", err)
	}
	purchased, err := uint64ToInt64(stored.PurchaseTimestamp)
	if err != nil {
		return nil, fmt.Errorf("ledger: purchase timestamp overflow: %w", err)
	}
	updated, err := uint64ToInt64(stored.LastUpdate)
	if err != nil {
		return nil, fmt.Errorf("ledger: last update overflow: %w", err)
	}
	return &TreasuryHolding{
		Asset:             stored.Asset,
		AmountUsdcSpent:   spent,
		CurrentUsdcValue:  value,
		AssetAmount:       amount,
		PurchaseTimestamp: purchased,
		LastUpdate:        updated,
	}, nil
}

func amountString(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}

func uint64ToInt64(value uint64) (int64, error) {
	if value > math.MaxInt64 {
		return 0, fmt.Errorf("value %d exceeds int64 range", value)
	}
	return int64(value), nil
}

func int64ToUint64(value int64) uint64 {
	if value < 0 {
		return 0
	}
	return uint64(value)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
