// Package price looks up spot prices and candles from public market data
// APIs. Sources are wrapped with bounded retries and a Resolver that always
// produces a usable price, falling back to the last known or a configured
// default when every source is down.
package price

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/iwvelando/leverage-forecast/internal/metrics"
	"github.com/iwvelando/leverage-forecast/pkg/mathutil"
)

// ErrUnavailable is returned when no attempt produced a price.
var ErrUnavailable = errors.New("price unavailable")

// Quote is a spot price observation.
type Quote struct {
	Asset  string    `json:"asset"`
	Price  float64   `json:"price"`
	Source string    `json:"source"`
	At     time.Time `json:"at"`
}

// Source returns the current spot price of an asset.
type Source interface {
	Spot(ctx context.Context, asset string) (Quote, error)
}

// Kind classifies a FetchError.
type Kind string

const (
	KindTimeout   Kind = "timeout"
	KindTransport Kind = "transport"
	KindStatus    Kind = "status"
	KindDecode    Kind = "decode"
	KindInvalid   Kind = "invalid"
)

// FetchError describes a failed request to a price API.
type FetchError struct {
	Kind   Kind
	Source string
	Asset  string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Source, e.Asset, e.Status)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Source, e.Asset, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt may succeed: timeouts,
// transport failures, rate limiting and server errors.
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindTransport:
		return true
	case KindStatus:
		return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
	default:
		return false
	}
}

// NewHTTPClient returns a client with bounded dial, handshake and overall
// timeouts.
func NewHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: tr, Timeout: timeout}
}

// getJSON issues a GET and decodes a JSON body into out, classifying every
// failure as a FetchError.
func getJSON(ctx context.Context, client *http.Client, url, source, asset string, out any) error {
	start := time.Now()
	defer func() {
		metrics.PriceFetchLatencySeconds.WithLabelValues(source).Observe(time.Since(start).Seconds())
	}()

	fail := func(fe *FetchError) error {
		metrics.PriceFetchesTotal.WithLabelValues(source, string(fe.Kind)).Inc()
		return fe
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fail(&FetchError{Kind: KindInvalid, Source: source, Asset: asset, Err: err})
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		kind := KindTransport
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			kind = KindTimeout
		}
		return fail(&FetchError{Kind: kind, Source: source, Asset: asset, Err: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fail(&FetchError{Kind: KindStatus, Source: source, Asset: asset, Status: resp.StatusCode})
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fail(&FetchError{Kind: KindDecode, Source: source, Asset: asset, Status: resp.StatusCode, Err: err})
	}
	metrics.PriceFetchesTotal.WithLabelValues(source, "ok").Inc()
	return nil
}

func validPrice(v float64) bool {
	return mathutil.IsFinite(v) && v > 0
}
