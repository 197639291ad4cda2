package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"nasdaqstrategy/native/strategy"
)

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}

func amountString(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}

type initializeParams struct {
	Mint          string `json:"mint"`
	FeeCollector  string `json:"feeCollector"`
	Treasury      string `json:"treasury"`
	TotalSupply   string `json:"totalSupply"`
	FeePercentage uint32 `json:"feePercentage"`
}

type configResult struct {
	Mint          string `json:"mint"`
	FeeCollector  string `json:"feeCollector"`
	Treasury      string `json:"treasury"`
	TotalSupply   string `json:"totalSupply"`
	FeePercentage uint32 `json:"feePercentage"`
	IsInitialized bool   `json:"isInitialized"`
}

func (s *Server) handleInitialize(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	start := time.Now()
	var params initializeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	supply, err := parseAmount(params.TotalSupply)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if supply == nil {
		supply = big.NewInt(0)
	}
	cfg, err := s.engine.Initialize(strategy.InitializeParams{
		Mint:          params.Mint,
		FeeCollector:  params.FeeCollector,
		Treasury:      params.Treasury,
		TotalSupply:   supply,
		FeePercentage: params.FeePercentage,
	})
	s.metrics.Observe("initialize", start, rejectionKind(err))
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, configResultFrom(cfg))
}

func configResultFrom(cfg *strategy.StrategyConfig) configResult {
	return configResult{
		Mint:          cfg.Mint,
		FeeCollector:  cfg.FeeCollector,
		Treasury:      cfg.Treasury,
		TotalSupply:   amountString(cfg.TotalSupply),
		FeePercentage: cfg.FeePercentage,
		IsInitialized: cfg.IsInitialized,
	}
}

type initializeTreasuryParams struct {
	UsdcVault          string `json:"usdcVault"`
	VaultAuthority     string `json:"vaultAuthority"`
	RebalanceFrequency uint64 `json:"rebalanceFrequency"`
	MinPurchaseAmount  string `json:"minPurchaseAmount"`
}

type treasuryResult struct {
	UsdcVault            string `json:"usdcVault"`
	VaultAuthority       string `json:"vaultAuthority"`
	TotalUsdcAccumulated string `json:"totalUsdcAccumulated"`
	RebalanceFrequency   uint64 `json:"rebalanceFrequency"`
	MinPurchaseAmount    string `json:"minPurchaseAmount"`
	IsInitialized        bool   `json:"isInitialized"`
}

func (s *Server) handleInitializeTreasury(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	start := time.Now()
	var params initializeTreasuryParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	minPurchase, err := parseAmount(params.MinPurchaseAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	treasury, err := s.engine.InitializeTreasury(strategy.TreasuryParams{
		UsdcVault:          params.UsdcVault,
		VaultAuthority:     params.VaultAuthority,
		RebalanceFrequency: params.RebalanceFrequency,
		MinPurchaseAmount:  minPurchase,
	})
	s.metrics.Observe("initialize_treasury", start, rejectionKind(err))
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, treasuryResult{
		UsdcVault:            treasury.UsdcVault,
		VaultAuthority:       treasury.VaultAuthority,
		TotalUsdcAccumulated: amountString(treasury.TotalUsdcAccumulated),
		RebalanceFrequency:   treasury.RebalanceFrequency,
		MinPurchaseAmount:    amountString(treasury.MinPurchaseAmount),
		IsInitialized:        treasury.IsInitialized,
	})
}

type setRuleParams struct {
	Asset                   string `json:"asset"`
	MaxAllocationPercentage uint32 `json:"maxAllocationPercentage"`
	Active                  bool   `json:"active"`
}

func (s *Server) handleSetRule(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	start := time.Now()
	var params setRuleParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	rule, err := s.engine.SetRule(params.Asset, params.MaxAllocationPercentage, params.Active)
	s.metrics.Observe("set_rule", start, rejectionKind(err))
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"approvedAsset":           rule.ApprovedAsset,
		"maxAllocationPercentage": rule.MaxAllocationPercentage,
		"isActive":                rule.IsActive,
	})
}

type updateFeeParams struct {
	FeePercentage uint32 `json:"feePercentage"`
}

func (s *Server) handleUpdateFee(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	start := time.Now()
	var params updateFeeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	err := s.engine.UpdateFeePercentage(params.FeePercentage)
	s.metrics.Observe("update_fee", start, rejectionKind(err))
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"feePercentage": params.FeePercentage})
}

type collectFeeParams struct {
	Amount string `json:"amount"`
}

type collectFeeResult struct {
	Fee            string `json:"fee"`
	TransferAmount string `json:"transferAmount"`
}

func (s *Server) handleCollectFee(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	start := time.Now()
	var params collectFeeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	breakdown, err := s.engine.CollectFee(amount)
	s.metrics.Observe("collect_fee", start, rejectionKind(err))
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, collectFeeResult{
		Fee:            amountString(breakdown.Fee),
		TransferAmount: amountString(breakdown.TransferAmount),
	})
}

type executePurchaseParams struct {
	Asset      string `json:"asset"`
	AmountUsdc string `json:"amountUsdc"`
}

type holdingResult struct {
	Asset             string `json:"asset"`
	AmountUsdcSpent   string `json:"amountUsdcSpent"`
	CurrentUsdcValue  string `json:"currentUsdcValue"`
	AssetAmount       string `json:"assetAmount"`
	PurchaseTimestamp int64  `json:"purchaseTimestamp"`
	LastUpdate        int64  `json:"lastUpdate"`
}

func holdingResultFrom(holding *strategy.TreasuryHolding) holdingResult {
	return holdingResult{
		Asset:             holding.Asset,
		AmountUsdcSpent:   amountString(holding.AmountUsdcSpent),
		CurrentUsdcValue:  amountString(holding.CurrentUsdcValue),
		AssetAmount:       amountString(holding.AssetAmount),
		PurchaseTimestamp: holding.PurchaseTimestamp,
		LastUpdate:        holding.LastUpdate,
	}
}

func (s *Server) handleExecutePurchase(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	start := time.Now()
	var params executePurchaseParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount(params.AmountUsdc)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	holding, err := s.engine.ExecutePurchase(params.Asset, amount)
	s.metrics.Observe("execute_purchase", start, rejectionKind(err))
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, holdingResultFrom(holding))
}

type redeemParams struct {
	Redeemer    string `json:"redeemer"`
	TokenAmount string `json:"tokenAmount"`
}

type redeemResult struct {
	UsdcReleased string `json:"usdcReleased"`
}

func (s *Server) handleRedeem(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	start := time.Now()
	var params redeemParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount(params.TokenAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	released, err := s.engine.Redeem(params.Redeemer, amount)
	s.metrics.Observe("redeem", start, rejectionKind(err))
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, redeemResult{UsdcReleased: amountString(released)})
}

type refreshValuationParams struct {
	Asset            string `json:"asset"`
	CurrentUsdcValue string `json:"currentUsdcValue"`
	AssetAmount      string `json:"assetAmount"`
}

func (s *Server) handleRefreshValuation(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	start := time.Now()
	var params refreshValuationParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	value, err := parseAmount(params.CurrentUsdcValue)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	assetAmount, err := parseAmount(params.AssetAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	holding, err := s.engine.RefreshValuation(params.Asset, value, assetAmount)
	s.metrics.Observe("refresh_valuation", start, rejectionKind(err))
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, holdingResultFrom(holding))
}

type navResult struct {
	TreasuryValueUsd string `json:"treasuryValueUsd"`
	NavPerToken      string `json:"navPerToken"`
	BackingRatio     string `json:"backingRatio"`
	LastUpdate       int64  `json:"lastUpdate"`
}

func (s *Server) handleGetNav(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	nav, err := s.engine.NAV()
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, navResult{
		TreasuryValueUsd: amountString(nav.TreasuryValueUsd),
		NavPerToken:      amountString(nav.NavPerToken),
		BackingRatio:     amountString(nav.BackingRatio),
		LastUpdate:       nav.LastUpdate,
	})
}

type getMetricsParams struct {
	MarketPrice string `json:"marketPrice"`
}

type allocationResult struct {
	Holding              holdingResult `json:"holding"`
	AllocationPercentage string        `json:"allocationPercentage"`
}

type metricsResult struct {
	TotalUsdcAccumulated string             `json:"totalUsdcAccumulated"`
	TreasuryValueUsd     string             `json:"treasuryValueUsd"`
	NavPerToken          string             `json:"navPerToken"`
	BackingRatio         string             `json:"backingRatio"`
	PremiumDiscount      string             `json:"premiumDiscount"`
	TreasuryComposition  []allocationResult `json:"treasuryComposition"`
	LastUpdated          int64              `json:"lastUpdated"`
}

func (s *Server) handleGetMetrics(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params getMetricsParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	marketPrice, err := parseAmount(params.MarketPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	metrics, err := s.engine.Metrics(marketPrice)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, metricsResultFrom(metrics))
}

func metricsResultFrom(metrics *strategy.TreasuryMetrics) metricsResult {
	composition := make([]allocationResult, 0, len(metrics.TreasuryComposition))
	for _, alloc := range metrics.TreasuryComposition {
		composition = append(composition, allocationResult{
			Holding:              holdingResultFrom(alloc.Holding),
			AllocationPercentage: amountString(alloc.AllocationPercentage),
		})
	}
	return metricsResult{
		TotalUsdcAccumulated: amountString(metrics.TotalUsdcAccumulated),
		TreasuryValueUsd:     amountString(metrics.TreasuryValueUsd),
		NavPerToken:          amountString(metrics.NavPerToken),
		BackingRatio:         amountString(metrics.BackingRatio),
		PremiumDiscount:      amountString(metrics.PremiumDiscount),
		TreasuryComposition:  composition,
		LastUpdated:          metrics.LastUpdated,
	}
}

func (s *Server) handleListHoldings(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	holdings, err := s.engine.Holdings()
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	results := make([]holdingResult, 0, len(holdings))
	for _, holding := range holdings {
		results = append(results, holdingResultFrom(holding))
	}
	writeResult(w, req.ID, results)
}

type listEventsParams struct {
	StartTs int64  `json:"startTs"`
	EndTs   int64  `json:"endTs"`
	Cursor  string `json:"cursor"`
	Limit   int    `json:"limit"`
}

type eventResult struct {
	ID         string            `json:"id"`
	Sequence   uint64            `json:"sequence"`
	Timestamp  int64             `json:"timestamp"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

type listEventsResult struct {
	Events     []eventResult `json:"events"`
	NextCursor string        `json:"nextCursor,omitempty"`
}

func (s *Server) handleListEvents(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params listEventsParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	entries, nextCursor, err := s.engine.Events(params.StartTs, params.EndTs, params.Cursor, params.Limit)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	results := make([]eventResult, 0, len(entries))
	for _, entry := range entries {
		results = append(results, eventResult{
			ID:         entry.ID,
			Sequence:   entry.Sequence,
			Timestamp:  entry.Timestamp,
			Type:       entry.Event.Type,
			Attributes: entry.Event.Attributes,
		})
	}
	writeResult(w, req.ID, listEventsResult{Events: results, NextCursor: nextCursor})
}
