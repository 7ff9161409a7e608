package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/iwvelando/leverage-forecast/internal/config"
	"github.com/iwvelando/leverage-forecast/internal/forecast"
	"github.com/iwvelando/leverage-forecast/internal/loop"
	"github.com/iwvelando/leverage-forecast/internal/optimizer"
	"github.com/iwvelando/leverage-forecast/internal/price"
	"github.com/iwvelando/leverage-forecast/pkg/constants"
	"github.com/iwvelando/leverage-forecast/pkg/output"
	"github.com/iwvelando/leverage-forecast/pkg/validation"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// manualScenario names the scenario built from an interactive request.
const manualScenario = "Interactive"

type rangeRequest struct {
	Start float64 `json:"start"`
	Stop  float64 `json:"stop"`
	Step  float64 `json:"step"`
}

type weightsRequest struct {
	Health      float64 `json:"health"`
	Liquidation float64 `json:"liquidation"`
	Gain        float64 `json:"gain"`
	Debt        float64 `json:"debt"`
}

// sweepRequest holds the interactive inputs. Zero values fall back to the
// server configuration; a zero spot price resolves the live price.
type sweepRequest struct {
	Asset                string          `json:"asset"`
	SpotPrice            float64         `json:"spotPrice"`
	InitialCollateral    float64         `json:"initialCollateral"`
	FirstLTV             float64         `json:"firstLtv"`
	LiquidationThreshold float64         `json:"liquidationThreshold"`
	LPProceeds           float64         `json:"lpProceeds"`
	ResupplySecondLoop   bool            `json:"resupplySecondLoop"`
	SecondLTV            *rangeRequest   `json:"secondLtv"`
	FirstLTVSweep        *rangeRequest   `json:"firstLtvSweep"`
	Start                *loop.Position  `json:"start"`
	TargetHealth         float64         `json:"targetHealth"`
	MinHealth            *float64        `json:"minHealth"`
	Weights              *weightsRequest `json:"weights"`
}

type sweepResponse struct {
	Scenario scenarioResult `json:"scenario"`
	CSV      string         `json:"csv"`
	Pretty   string         `json:"pretty"`
	Warnings []string       `json:"warnings,omitempty"`
	Duration string         `json:"duration"`
}

type optimizeResponse struct {
	Price        price.Resolution `json:"price"`
	Optimization optimizationView `json:"optimization"`
	Warnings     []string         `json:"warnings,omitempty"`
}

type forecastResponse struct {
	Scenarios  []scenarioResult `json:"scenarios"`
	Warnings   []string         `json:"warnings,omitempty"`
	Duration   string           `json:"duration"`
	ConfigYAML string           `json:"configYaml,omitempty"`
}

func (h *handler) handlePrice(w http.ResponseWriter, r *http.Request) {
	asset := r.URL.Query().Get("asset")
	if asset == "" {
		asset = h.conf.Price.Asset
	}

	if manual := strings.TrimSpace(r.URL.Query().Get("manual")); manual != "" {
		value, err := strconv.ParseFloat(manual, 64)
		if err != nil || !(value > 0) {
			h.respondErrorWithOp(w, r, http.StatusBadRequest, fmt.Sprintf("invalid manual price %q", manual), "server.handlePrice")
			return
		}
		h.writeJSON(w, http.StatusOK, price.Manual(asset, value))
		return
	}

	h.writeJSON(w, http.StatusOK, h.prices.Resolve(r.Context(), asset))
}

func (h *handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSweep"
	start := time.Now()

	var req sweepRequest
	if !h.decodeJSON(w, r, &req, op) {
		return
	}

	result, warnings, err := h.compute(r.Context(), req)
	if err != nil {
		h.respondComputeError(w, r, err, op)
		return
	}

	elapsed := time.Since(start)
	h.logger.Info("sweep computed",
		zap.String("op", op),
		zap.Int("rows", len(result.Rows)),
		zap.Int("ranked", len(result.Ranked)),
		zap.Bool("fallbackPrice", result.Price.Fallback),
		zap.Duration("duration", elapsed),
		zap.String("requestId", requestID(r)),
	)

	h.writeJSON(w, http.StatusOK, sweepResponse{
		Scenario: buildScenario(result),
		CSV:      output.CsvString(result.Rows),
		Pretty:   output.PrettyString(result.Rows),
		Warnings: warnings,
		Duration: elapsed.String(),
	})
}

func (h *handler) handleOptimize(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleOptimize"

	var req sweepRequest
	if !h.decodeJSON(w, r, &req, op) {
		return
	}
	if req.TargetHealth == 0 {
		h.respondErrorWithOp(w, r, http.StatusBadRequest, "targetHealth is required", op)
		return
	}

	result, warnings, err := h.compute(r.Context(), req)
	if err != nil {
		h.respondComputeError(w, r, err, op)
		return
	}
	if len(result.Optimizations) == 0 {
		h.respondErrorWithOp(w, r, http.StatusInternalServerError, "optimizer produced no result", op)
		return
	}

	h.writeJSON(w, http.StatusOK, optimizeResponse{
		Price:        result.Price,
		Optimization: buildOptimization(result.Optimizations[0]),
		Warnings:     warnings,
	})
}

// compute runs req as a single scenario against the server configuration.
// Configuration warnings come first, then price and ranking warnings.
func (h *handler) compute(ctx context.Context, req sweepRequest) (forecast.Forecast, []string, error) {
	conf := h.configFor(req)
	warnings := conf.ValidateConfiguration()

	results, err := forecast.GetForecast(ctx, h.logger, conf, h.prices)
	if err != nil {
		return forecast.Forecast{}, warnings, err
	}
	if len(results) != 1 {
		return forecast.Forecast{}, warnings, fmt.Errorf("expected one scenario result, got %d", len(results))
	}

	if err := h.optimize(results); err != nil {
		return forecast.Forecast{}, warnings, err
	}
	return results[0], append(warnings, results[0].Warnings...), nil
}

func (h *handler) optimize(results []forecast.Forecast) error {
	runner := optimizer.NewRunner(h.logger)
	optimized, err := runner.Run(results)
	if err != nil {
		return err
	}
	if !optimized.Empty() {
		optimized.Apply(results)
	}
	return nil
}

func (h *handler) configFor(req sweepRequest) config.Configuration {
	conf := h.conf
	if req.Asset != "" {
		conf.Price.Asset = req.Asset
	}
	if req.MinHealth != nil {
		conf.Ranking.MinHealth = *req.MinHealth
	}
	if req.Weights != nil {
		conf.Ranking.Weights = config.WeightsConfig(*req.Weights)
	}

	scenario := config.Scenario{
		Name:                 manualScenario,
		Active:               true,
		SpotPrice:            req.SpotPrice,
		InitialCollateral:    req.InitialCollateral,
		FirstLTV:             req.FirstLTV,
		LiquidationThreshold: req.LiquidationThreshold,
		LPProceeds:           req.LPProceeds,
		ResupplySecondLoop:   req.ResupplySecondLoop,
		TargetHealth:         req.TargetHealth,
	}
	if req.SecondLTV != nil {
		scenario.SecondLTV = config.SweepRange(*req.SecondLTV)
	}
	if req.FirstLTVSweep != nil {
		sweep := config.SweepRange(*req.FirstLTVSweep)
		scenario.FirstLTVSweep = &sweep
	}
	if req.Start != nil {
		scenario.Start = &config.StartPosition{Collateral: req.Start.Collateral, Debt: req.Start.Debt}
	}

	conf.Scenarios = []config.Scenario{scenario}
	conf.ApplyDefaults()
	return conf
}

// handleForecast runs configured scenarios. The body is an optional YAML
// configuration; an empty body runs the server configuration. The format
// query parameter selects pretty or csv text instead of JSON.
func (h *handler) handleForecast(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleForecast"
	start := time.Now()

	outputFormat := r.URL.Query().Get("format")
	if err := validation.ValidateResponseFormat(outputFormat); err != nil {
		h.respondErrorWithOp(w, r, http.StatusBadRequest, err.Error(), op)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.respondErrorWithOp(w, r, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("upload exceeds limit of %d bytes", h.maxUploadSize), op)
		return
	}

	conf := h.conf
	if len(bytes.TrimSpace(body)) > 0 {
		loaded, err := config.LoadConfigurationFromReader(bytes.NewReader(body))
		if err != nil {
			h.respondErrorWithOp(w, r, http.StatusBadRequest, err.Error(), op)
			return
		}
		conf = *loaded
	}
	if len(conf.ActiveScenarios()) == 0 {
		h.respondErrorWithOp(w, r, http.StatusBadRequest, "configuration has no active scenarios", op)
		return
	}
	warnings := conf.ValidateConfiguration()

	results, err := forecast.GetForecast(r.Context(), h.logger, conf, h.prices)
	if err != nil {
		h.respondComputeError(w, r, err, op)
		return
	}

	if optimize, _ := strconv.ParseBool(r.URL.Query().Get("optimize")); optimize {
		if err := h.optimize(results); err != nil {
			h.respondComputeError(w, r, err, op)
			return
		}
	}

	for _, result := range results {
		for _, warning := range result.Warnings {
			warnings = append(warnings, fmt.Sprintf("%s: %s", result.Name, warning))
		}
	}

	elapsed := time.Since(start)
	h.logger.Info("forecast computed",
		zap.String("op", op),
		zap.Int("scenarios", len(results)),
		zap.Duration("duration", elapsed),
		zap.String("requestId", requestID(r)),
	)

	if outputFormat == constants.OutputFormatPretty || outputFormat == constants.OutputFormatCSV {
		contentType := "text/plain; charset=utf-8"
		if outputFormat == constants.OutputFormatCSV {
			contentType = "text/csv; charset=utf-8"
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		if err := output.Write(w, outputFormat, results); err != nil {
			h.logger.Error("failed to write forecast output", zap.String("op", op), zap.Error(err))
		}
		return
	}

	configYAML, err := yaml.Marshal(conf)
	if err != nil {
		h.logger.Warn("failed to marshal configuration",
			zap.String("op", op),
			zap.Error(err),
		)
	}

	h.writeJSON(w, http.StatusOK, forecastResponse{
		Scenarios:  buildScenarios(results),
		Warnings:   warnings,
		Duration:   elapsed.String(),
		ConfigYAML: string(configYAML),
	})
}
