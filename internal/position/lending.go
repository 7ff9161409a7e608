// Package position looks up lending and concentrated liquidity positions.
package position

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/iwvelando/leverage-forecast/internal/loop"
	"github.com/iwvelando/leverage-forecast/pkg/constants"
	"github.com/iwvelando/leverage-forecast/pkg/mathutil"
	"go.uber.org/zap"
)

// ErrInvalidAddress is returned for addresses that are not 20 byte hex.
var ErrInvalidAddress = errors.New("invalid wallet address")

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// LendingPosition is a protocol reported lending position: supplied
// collateral in asset units, debt in the debt currency and the protocol's
// own health factor.
type LendingPosition struct {
	Address      string    `json:"address"`
	Collateral   float64   `json:"collateral"`
	Debt         float64   `json:"debt"`
	HealthFactor float64   `json:"healthFactor"`
	At           time.Time `json:"at"`
}

// Position returns the loop position equivalent.
func (p LendingPosition) Position() loop.Position {
	return loop.Position{Collateral: p.Collateral, Debt: p.Debt}
}

// Source returns the lending position of an address.
type Source interface {
	Lending(ctx context.Context, address string) (LendingPosition, error)
}

// HTTPSource queries a JSON endpoint. URLTemplate must contain "{address}".
// The response body is {"collateral": n, "debt": n, "healthFactor": n} with
// numbers or numeric strings.
type HTTPSource struct {
	URLTemplate string
	Client      *http.Client
}

// NewHTTPSource returns a source for urlTemplate.
func NewHTTPSource(urlTemplate string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: constants.DefaultPriceTimeoutSeconds * time.Second}
	}
	return &HTTPSource{URLTemplate: urlTemplate, Client: client}
}

type lendingBody struct {
	Collateral   json.RawMessage `json:"collateral"`
	Debt         json.RawMessage `json:"debt"`
	HealthFactor json.RawMessage `json:"healthFactor"`
}

// ValidateAddress rejects anything but a 0x prefixed 20 byte hex address.
func ValidateAddress(address string) error {
	if !addressPattern.MatchString(address) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return nil
}

// Lending implements Source.
func (s *HTTPSource) Lending(ctx context.Context, address string) (LendingPosition, error) {
	if err := ValidateAddress(address); err != nil {
		return LendingPosition{}, err
	}
	if !strings.Contains(s.URLTemplate, "{address}") {
		return LendingPosition{}, fmt.Errorf("position URL template %q has no {address} placeholder", s.URLTemplate)
	}
	url := strings.ReplaceAll(s.URLTemplate, "{address}", address)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return LendingPosition{}, fmt.Errorf("failed to build position request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return LendingPosition{}, fmt.Errorf("position request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return LendingPosition{}, fmt.Errorf("position request returned status %d", resp.StatusCode)
	}

	var body lendingBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return LendingPosition{}, fmt.Errorf("failed to decode position: %w", err)
	}

	pos := LendingPosition{Address: address, At: time.Now().UTC()}
	fields := []struct {
		raw  json.RawMessage
		dst  *float64
		name string
	}{
		{body.Collateral, &pos.Collateral, "collateral"},
		{body.Debt, &pos.Debt, "debt"},
		{body.HealthFactor, &pos.HealthFactor, "healthFactor"},
	}
	for _, f := range fields {
		v, err := decodeNumber(f.raw)
		if err != nil {
			return LendingPosition{}, fmt.Errorf("position field %s: %w", f.name, err)
		}
		if v < 0 {
			return LendingPosition{}, fmt.Errorf("position field %s: %v is negative", f.name, v)
		}
		*f.dst = v
	}
	return pos, nil
}

func decodeNumber(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, errors.New("missing")
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("not a number: %s", string(raw))
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return v, nil
}

// Result is the outcome of Lookup. When Available is false Lending is nil
// and Warning explains why; the caller continues with manual inputs.
type Result struct {
	Lending   *LendingPosition `json:"lending,omitempty"`
	Available bool             `json:"available"`
	Warning   string           `json:"warning,omitempty"`
}

// Lookup queries src and converts every failure into an unavailable Result.
func Lookup(ctx context.Context, src Source, address string, logger *zap.Logger) Result {
	if logger == nil {
		logger = zap.NewNop()
	}
	if src == nil {
		return Result{Warning: "No position source configured; enter the position manually."}
	}

	pos, err := src.Lending(ctx, strings.TrimSpace(address))
	if err != nil {
		logger.Warn("position lookup failed",
			zap.String("op", "position.Lookup"),
			zap.String("address", address),
			zap.Error(err),
		)
		return Result{Warning: fmt.Sprintf("Position unavailable (%v); enter the position manually.", err)}
	}
	return Result{Lending: &pos, Available: true}
}

// Drift compares a recomputed health factor with the protocol figure.
type Drift struct {
	Metrics  loop.Metrics `json:"-"`
	Computed float64      `json:"computed"`
	Reported float64      `json:"reported"`
	Delta    float64      `json:"delta"`
}

// Reconcile recomputes the health factor of pos at price under threshold.
// Delta is Computed minus Reported and is zero when either is infinite.
func Reconcile(pos LendingPosition, price, threshold float64) Drift {
	m := loop.Evaluate(pos.Position(), price, threshold)
	d := Drift{Metrics: m, Computed: m.HealthScore, Reported: pos.HealthFactor}
	if mathutil.IsFinite(d.Computed) && mathutil.IsFinite(d.Reported) {
		d.Delta = d.Computed - d.Reported
	}
	return d
}
