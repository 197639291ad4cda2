// Package gateway serves the read-only view of the strategy: NAV, metrics,
// holdings, and the event log. External consumers (UIs, explorers) observe
// state through this surface and never mutate it.
package gateway

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"nasdaqstrategy/gateway/middleware"
	"nasdaqstrategy/native/strategy"
)

// Config wires the gateway router.
type Config struct {
	Engine      *strategy.Engine
	RateLimiter *middleware.RateLimiter
}

// New constructs the read-only HTTP router.
func New(cfg Config) http.Handler {
	r := chi.NewRouter()
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Middleware())
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	h := &handlers{engine: cfg.Engine}
	r.Route("/v1", func(sr chi.Router) {
		sr.Get("/nav", h.nav)
		sr.Get("/metrics", h.metrics)
		sr.Get("/holdings", h.holdings)
		sr.Get("/events", h.events)
	})
	return r
}

type handlers struct {
	engine *strategy.Engine
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeErr(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

type navPayload struct {
	TreasuryValueUsd string `json:"treasuryValueUsd"`
	NavPerToken      string `json:"navPerToken"`
	BackingRatio     string `json:"backingRatio"`
	LastUpdate       int64  `json:"lastUpdate"`
}

func (h *handlers) nav(w http.ResponseWriter, _ *http.Request) {
	nav, err := h.engine.NAV()
	if err != nil {
		writeErr(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, navPayload{
		TreasuryValueUsd: nav.TreasuryValueUsd.String(),
		NavPerToken:      nav.NavPerToken.String(),
		BackingRatio:     nav.BackingRatio.String(),
		LastUpdate:       nav.LastUpdate,
	})
}

type holdingPayload struct {
	Asset             string `json:"asset"`
	AmountUsdcSpent   string `json:"amountUsdcSpent"`
	CurrentUsdcValue  string `json:"currentUsdcValue"`
	AssetAmount       string `json:"assetAmount"`
	PurchaseTimestamp int64  `json:"purchaseTimestamp"`
	LastUpdate        int64  `json:"lastUpdate"`
}

func holdingPayloadFrom(holding *strategy.TreasuryHolding) holdingPayload {
	return holdingPayload{
		Asset:             holding.Asset,
		AmountUsdcSpent:   holding.AmountUsdcSpent.String(),
		CurrentUsdcValue:  holding.CurrentUsdcValue.String(),
		AssetAmount:       holding.AssetAmount.String(),
		PurchaseTimestamp: holding.PurchaseTimestamp,
		LastUpdate:        holding.LastUpdate,
	}
}

func (h *handlers) holdings(w http.ResponseWriter, _ *http.Request) {
	holdings, err := h.engine.Holdings()
	if err != nil {
		writeErr(w, statusFor(err), err.Error())
		return
	}
	payload := make([]holdingPayload, 0, len(holdings))
	for _, holding := range holdings {
		payload = append(payload, holdingPayloadFrom(holding))
	}
	writeJSON(w, http.StatusOK, payload)
}

type allocationPayload struct {
	Holding              holdingPayload `json:"holding"`
	AllocationPercentage string         `json:"allocationPercentage"`
}

type metricsPayload struct {
	TotalUsdcAccumulated string              `json:"totalUsdcAccumulated"`
	TreasuryValueUsd     string              `json:"treasuryValueUsd"`
	NavPerToken          string              `json:"navPerToken"`
	BackingRatio         string              `json:"backingRatio"`
	PremiumDiscount      string              `json:"premiumDiscount"`
	TreasuryComposition  []allocationPayload `json:"treasuryComposition"`
	LastUpdated          int64               `json:"lastUpdated"`
}

// metrics derives the treasury view. The market price, when known to the
// caller, is passed via the marketPrice query parameter in base units.
func (h *handlers) metrics(w http.ResponseWriter, r *http.Request) {
	var marketPrice *big.Int
	if raw := strings.TrimSpace(r.URL.Query().Get("marketPrice")); raw != "" {
		parsed, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			writeErr(w, http.StatusBadRequest, "invalid marketPrice")
			return
		}
		marketPrice = parsed
	}
	metrics, err := h.engine.Metrics(marketPrice)
	if err != nil {
		writeErr(w, statusFor(err), err.Error())
		return
	}
	composition := make([]allocationPayload, 0, len(metrics.TreasuryComposition))
	for _, alloc := range metrics.TreasuryComposition {
		composition = append(composition, allocationPayload{
			Holding:              holdingPayloadFrom(alloc.Holding),
			AllocationPercentage: alloc.AllocationPercentage.String(),
		})
	}
	writeJSON(w, http.StatusOK, metricsPayload{
		TotalUsdcAccumulated: metrics.TotalUsdcAccumulated.String(),
		TreasuryValueUsd:     metrics.TreasuryValueUsd.String(),
		NavPerToken:          metrics.NavPerToken.String(),
		BackingRatio:         metrics.BackingRatio.String(),
		PremiumDiscount:      metrics.PremiumDiscount.String(),
		TreasuryComposition:  composition,
		LastUpdated:          metrics.LastUpdated,
	})
}

type eventPayload struct {
	ID         string            `json:"id"`
	Sequence   uint64            `json:"sequence"`
	Timestamp  int64             `json:"timestamp"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

type eventsPayload struct {
	Events     []eventPayload `json:"events"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

func (h *handlers) events(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	startTs := parseInt64(query.Get("startTs"))
	endTs := parseInt64(query.Get("endTs"))
	limit := int(parseInt64(query.Get("limit")))
	cursor := strings.TrimSpace(query.Get("cursor"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	entries, nextCursor, err := h.engine.Events(startTs, endTs, cursor, limit)
	if err != nil {
		writeErr(w, statusFor(err), err.Error())
		return
	}
	payload := eventsPayload{Events: make([]eventPayload, 0, len(entries)), NextCursor: nextCursor}
	for _, entry := range entries {
		payload.Events = append(payload.Events, eventPayload{
			ID:         entry.ID,
			Sequence:   entry.Sequence,
			Timestamp:  entry.Timestamp,
			Type:       entry.Event.Type,
			Attributes: entry.Event.Attributes,
		})
	}
	writeJSON(w, http.StatusOK, payload)
}

func parseInt64(raw string) int64 {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0
	}
	value, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || value < 0 {
		return 0
	}
	return value
}

func statusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, strategy.ErrNotInitialized) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
