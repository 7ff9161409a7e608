package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/iwvelando/leverage-forecast/internal/config"
	"github.com/iwvelando/leverage-forecast/internal/forecast"
	"github.com/iwvelando/leverage-forecast/internal/loop"
	"github.com/iwvelando/leverage-forecast/internal/metrics"
	"github.com/iwvelando/leverage-forecast/internal/position"
	"github.com/iwvelando/leverage-forecast/internal/price"
	"github.com/iwvelando/leverage-forecast/pkg/constants"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

//go:embed static/*
var staticFiles embed.FS

// CandleSource returns recent candles for a market symbol.
type CandleSource interface {
	Candles(ctx context.Context, symbol, interval string, limit int) ([]price.Candle, error)
}

// Options wires the handler to its collaborators. A nil Config uses the
// defaults. A nil Prices resolver always falls back to the configured price.
// A nil Positions source reports lookups as unavailable, and a nil Registry
// leaves /metrics unrouted.
type Options struct {
	Logger        *zap.Logger
	MaxUploadSize int64
	Version       string
	Config        *config.Configuration
	Prices        forecast.PriceResolver
	Positions     position.Source
	Candles       CandleSource
	Registry      *prometheus.Registry
}

type handler struct {
	logger        *zap.Logger
	maxUploadSize int64
	version       string
	conf          config.Configuration
	prices        forecast.PriceResolver
	positions     position.Source
	candles       CandleSource
	allowed       map[string]string
}

type apiRoute struct {
	path    string
	method  string
	handler http.HandlerFunc
}

// NewHandler constructs the HTTP handler that serves the web UI and the
// leverage API.
func NewHandler(opts Options) (http.Handler, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	maxUploadSize := opts.MaxUploadSize
	if maxUploadSize <= 0 {
		maxUploadSize = constants.DefaultMaxUploadSizeBytes
	}

	version := strings.TrimSpace(opts.Version)
	if version == "" {
		version = "dev"
	}

	conf := opts.Config
	if conf == nil {
		defaults, err := config.Default()
		if err != nil {
			return nil, fmt.Errorf("failed to load default configuration: %w", err)
		}
		conf = defaults
	}

	prices := opts.Prices
	if prices == nil {
		resolver, err := price.NewResolver(nil, price.ResolverOptions{FallbackPrice: conf.Price.FallbackPrice}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to build fallback price resolver: %w", err)
		}
		prices = resolver
	}

	h := &handler{
		logger:        logger,
		maxUploadSize: maxUploadSize,
		version:       version,
		conf:          *conf,
		prices:        prices,
		positions:     opts.Positions,
		candles:       opts.Candles,
	}

	router := mux.NewRouter()
	router.Use(requestIDMiddleware)
	router.Use(h.instrumentMiddleware)
	router.Use(h.recoverMiddleware)

	api := router.PathPrefix("/api").Subrouter()
	routes := []apiRoute{
		{"/version", http.MethodGet, h.handleVersion},
		{"/price", http.MethodGet, h.handlePrice},
		{"/sweep", http.MethodPost, h.handleSweep},
		{"/optimize", http.MethodPost, h.handleOptimize},
		{"/forecast", http.MethodPost, h.handleForecast},
		{"/bands/parse", http.MethodPost, h.handleBands},
		{"/lp/exit", http.MethodPost, h.handleLPExit},
		{"/lp/clusters", http.MethodPost, h.handleLPClusters},
		{"/lp/entries", http.MethodPost, h.handleLPEntries},
		{"/position/lending", http.MethodGet, h.handleLending},
		{"/position/ticks", http.MethodPost, h.handleTicks},
	}
	h.allowed = make(map[string]string, len(routes))
	for _, route := range routes {
		api.HandleFunc(route.path, route.handler).Methods(route.method)
		h.allowed["/api"+route.path] = route.method
	}
	// Anything the table above does not claim ends here instead of falling
	// through to the static file server.
	api.PathPrefix("/").HandlerFunc(h.handleUnmatchedAPI)
	api.MethodNotAllowedHandler = http.HandlerFunc(h.handleMethodNotAllowed)
	router.MethodNotAllowedHandler = http.HandlerFunc(h.handleMethodNotAllowed)

	if opts.Registry != nil {
		router.Handle("/metrics", metrics.Handler(opts.Registry)).Methods(http.MethodGet)
	}

	// Static assets (web UI)
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare embedded static files: %w", err)
	}
	router.PathPrefix("/").
		MatcherFunc(func(r *http.Request, _ *mux.RouteMatch) bool { return !isAPIPath(r.URL.Path) }).
		Methods(http.MethodGet, http.MethodHead).
		Handler(http.FileServer(http.FS(sub)))

	return router, nil
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

func (h *handler) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	if method, ok := h.allowed[r.URL.Path]; ok {
		w.Header().Set("Allow", method)
	}
	h.writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": http.StatusText(http.StatusMethodNotAllowed)})
}

// handleUnmatchedAPI answers API requests no route accepted: 405 with an
// Allow header for a known path, 404 otherwise.
func (h *handler) handleUnmatchedAPI(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.allowed[r.URL.Path]; ok {
		h.handleMethodNotAllowed(w, r)
		return
	}
	h.writeJSON(w, http.StatusNotFound, map[string]string{"error": http.StatusText(http.StatusNotFound)})
}

func isAPIPath(path string) bool {
	return path == "/api" || strings.HasPrefix(path, "/api/")
}

// decodeJSON reads a size limited JSON body into dst. It writes the error
// response itself and reports whether decoding succeeded.
func (h *handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}, op string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondErrorWithOp(w, r, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request exceeds limit of %d bytes", h.maxUploadSize), op)
			return false
		}
		h.respondErrorWithOp(w, r, http.StatusBadRequest, fmt.Sprintf("failed to decode request: %v", err), op)
		return false
	}
	return true
}

// respondComputeError maps input validation failures to 400 and everything
// else to 500.
func (h *handler) respondComputeError(w http.ResponseWriter, r *http.Request, err error, op string) {
	status := http.StatusInternalServerError
	if errors.Is(err, loop.ErrInvalidInput) {
		status = http.StatusBadRequest
	}
	h.respondErrorWithOp(w, r, status, err.Error(), op)
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, r *http.Request, status int, msg string, op string) {
	fields := []zap.Field{
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
		zap.String("requestId", requestID(r)),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields...)
	} else {
		h.logger.Info("request rejected", fields...)
	}

	h.writeJSON(w, status, map[string]string{"error": msg})
}

// writeJSON encodes payload before touching the response so an encoding
// failure still reaches the client as a 500.
func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		h.logger.Error("failed to encode JSON response", zap.String("op", "server.writeJSON"), zap.Error(err))
		status = http.StatusInternalServerError
		buf.Reset()
		buf.WriteString(`{"error":"failed to encode response"}` + "\n")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("failed to write JSON response", zap.String("op", "server.writeJSON"), zap.Error(err))
	}
}
