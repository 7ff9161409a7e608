package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/iwvelando/leverage-forecast/internal/band"
	"github.com/iwvelando/leverage-forecast/internal/lp"
	"github.com/iwvelando/leverage-forecast/internal/metrics"
	"github.com/iwvelando/leverage-forecast/internal/position"
	"github.com/iwvelando/leverage-forecast/internal/price"
	"github.com/iwvelando/leverage-forecast/pkg/constants"
	"go.uber.org/zap"
)

const (
	bandModeSeries  = "series"
	maxCandleLimit  = 1000
	defaultInterval = "1h"
)

type bandsRequest struct {
	Text      string    `json:"text"`
	Mode      string    `json:"mode"`
	Drawdowns []float64 `json:"drawdowns"`
}

type lineErrorView struct {
	Line    int    `json:"line"`
	Text    string `json:"text"`
	Message string `json:"message"`
}

type bandsResponse struct {
	Bands  []band.Band        `json:"bands,omitempty"`
	Series []band.SeriesPoint `json:"series,omitempty"`
	Errors []lineErrorView    `json:"errors,omitempty"`
}

type clustersRequest struct {
	Clusters     []lp.Cluster `json:"clusters"`
	CurrentPrice float64      `json:"currentPrice"`
}

type entriesRequest struct {
	Candles    []price.Candle  `json:"candles"`
	Symbol     string          `json:"symbol"`
	Interval   string          `json:"interval"`
	Limit      int             `json:"limit"`
	HeikinAshi bool            `json:"heikinAshi"`
	Params     *lp.EntryParams `json:"params"`
}

type ticksRequest struct {
	LowerTick    int     `json:"lowerTick"`
	UpperTick    int     `json:"upperTick"`
	Decimals0    int     `json:"decimals0"`
	Decimals1    int     `json:"decimals1"`
	Invert       bool    `json:"invert"`
	CurrentPrice float64 `json:"currentPrice"`
}

type ticksResponse struct {
	Range  position.Range `json:"range"`
	Status lp.RangeStatus `json:"status,omitempty"`
}

type lendingResponse struct {
	Position position.Result   `json:"position"`
	Price    *price.Resolution `json:"price,omitempty"`
	Drift    *driftView        `json:"drift,omitempty"`
}

type driftView struct {
	Threshold float64     `json:"threshold"`
	Computed  *float64    `json:"computed"`
	Reported  *float64    `json:"reported"`
	Delta     float64     `json:"delta"`
	Metrics   metricsView `json:"metrics"`
}

// handleBands parses pasted band text. Bands without drawdown lines get the
// requested (or default) drawdown levels below their minimum.
func (h *handler) handleBands(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleBands"

	var req bandsRequest
	if !h.decodeJSON(w, r, &req, op) {
		return
	}
	for _, pct := range req.Drawdowns {
		if !(pct > 0 && pct < 100) {
			h.respondErrorWithOp(w, r, http.StatusBadRequest, fmt.Sprintf("drawdown %v%% must be between 0 and 100", pct), op)
			return
		}
	}

	var resp bandsResponse
	var lineErrors []band.LineError
	if strings.EqualFold(req.Mode, bandModeSeries) {
		series := band.ParseSeries(req.Text)
		resp.Series = series.Points
		lineErrors = series.Errors
	} else {
		doc := band.Parse(req.Text)
		for i := range doc.Bands {
			if len(doc.Bands[i].Drawdowns) == 0 {
				doc.Bands[i].Drawdowns = band.DrawdownLevels(doc.Bands[i].Min, req.Drawdowns)
			}
		}
		resp.Bands = doc.Bands
		lineErrors = doc.Errors
	}

	for i := range lineErrors {
		resp.Errors = append(resp.Errors, lineErrorView{
			Line:    lineErrors[i].Line,
			Text:    lineErrors[i].Text,
			Message: lineErrors[i].Error(),
		})
	}
	metrics.BandLineErrorsTotal.Add(float64(len(lineErrors)))

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleLPExit(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleLPExit"

	var req lp.ExitInputs
	if !h.decodeJSON(w, r, &req, op) {
		return
	}
	plan, err := lp.PlanExit(req)
	if err != nil {
		h.respondErrorWithOp(w, r, http.StatusBadRequest, err.Error(), op)
		return
	}
	h.writeJSON(w, http.StatusOK, plan)
}

func (h *handler) handleLPClusters(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleLPClusters"

	var req clustersRequest
	if !h.decodeJSON(w, r, &req, op) {
		return
	}
	scored, err := lp.FlushScores(req.Clusters, req.CurrentPrice)
	if err != nil {
		h.respondErrorWithOp(w, r, http.StatusBadRequest, err.Error(), op)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"clusters": scored})
}

// handleLPEntries scans candles for entry signals. Candles come from the
// request or, when a symbol is given instead, from the candle source.
func (h *handler) handleLPEntries(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleLPEntries"

	var req entriesRequest
	if !h.decodeJSON(w, r, &req, op) {
		return
	}

	candles := req.Candles
	if len(candles) == 0 && req.Symbol != "" {
		if h.candles == nil {
			h.respondErrorWithOp(w, r, http.StatusServiceUnavailable, "no candle source configured", op)
			return
		}
		interval := req.Interval
		if interval == "" {
			interval = defaultInterval
		}
		limit := req.Limit
		if limit <= 0 || limit > maxCandleLimit {
			limit = maxCandleLimit
		}
		fetched, err := h.candles.Candles(r.Context(), strings.ToUpper(req.Symbol), interval, limit)
		if err != nil {
			h.respondErrorWithOp(w, r, http.StatusBadGateway, fmt.Sprintf("failed to fetch candles: %v", err), op)
			return
		}
		candles = fetched
	}
	if req.HeikinAshi {
		candles = price.HeikinAshi(candles)
	}

	params := lp.DefaultEntryParams()
	if req.Params != nil {
		params = *req.Params
	}

	signals, err := lp.EntrySignals(candles, params)
	if err != nil {
		h.respondErrorWithOp(w, r, http.StatusBadRequest, err.Error(), op)
		return
	}
	h.writeJSON(w, http.StatusOK, signals)
}

// handleLending looks up a wallet's lending position. A failed lookup is
// not an error: the response says the position is unavailable so the user
// can continue with manual inputs.
func (h *handler) handleLending(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleLending"
	query := r.URL.Query()

	address := strings.TrimSpace(query.Get("address"))
	if address == "" {
		h.respondErrorWithOp(w, r, http.StatusBadRequest, "address is required", op)
		return
	}
	if err := position.ValidateAddress(address); err != nil {
		h.respondErrorWithOp(w, r, http.StatusBadRequest, err.Error(), op)
		return
	}

	threshold := constants.DefaultLiquidationThreshold
	if raw := query.Get("threshold"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || !(parsed > 0 && parsed <= 1) {
			h.respondErrorWithOp(w, r, http.StatusBadRequest, fmt.Sprintf("invalid threshold %q", raw), op)
			return
		}
		threshold = parsed
	}

	resp := lendingResponse{Position: position.Lookup(r.Context(), h.positions, address, h.logger)}
	if !resp.Position.Available {
		h.writeJSON(w, http.StatusOK, resp)
		return
	}

	var resolution price.Resolution
	if raw := query.Get("price"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || !(parsed > 0) {
			h.respondErrorWithOp(w, r, http.StatusBadRequest, fmt.Sprintf("invalid price %q", raw), op)
			return
		}
		resolution = price.Manual(h.conf.Price.Asset, parsed)
	} else {
		resolution = h.prices.Resolve(r.Context(), h.conf.Price.Asset)
	}
	resp.Price = &resolution

	drift := position.Reconcile(*resp.Position.Lending, resolution.Quote.Price, threshold)
	resp.Drift = &driftView{
		Threshold: threshold,
		Computed:  finite(drift.Computed),
		Reported:  finite(drift.Reported),
		Delta:     drift.Delta,
		Metrics:   buildMetrics(drift.Metrics),
	}
	h.logger.Debug("lending position reconciled",
		zap.String("op", op),
		zap.Float64("computed", drift.Computed),
		zap.Float64("reported", drift.Reported),
		zap.Float64("delta", drift.Delta),
	)
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleTicks(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleTicks"

	var req ticksRequest
	if !h.decodeJSON(w, r, &req, op) {
		return
	}
	rng, err := position.RangeFromTicks(req.LowerTick, req.UpperTick, req.Decimals0, req.Decimals1, req.Invert)
	if err != nil {
		h.respondErrorWithOp(w, r, http.StatusBadRequest, err.Error(), op)
		return
	}

	resp := ticksResponse{Range: rng}
	if req.CurrentPrice > 0 {
		resp.Status = lp.Status(req.CurrentPrice, rng.Low, rng.High)
	}
	h.writeJSON(w, http.StatusOK, resp)
}
