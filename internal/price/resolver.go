package price

import (
	"context"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/iwvelando/leverage-forecast/internal/metrics"
	"github.com/iwvelando/leverage-forecast/pkg/constants"
	"github.com/iwvelando/leverage-forecast/pkg/format"
	"go.uber.org/zap"
)

// ManualName labels quotes entered by hand.
const ManualName = "manual"

// Resolution is the outcome of resolving a price. Exactly one of Live or
// Fallback is set. Cached marks a live quote served from the fresh cache.
type Resolution struct {
	Quote    Quote  `json:"quote"`
	Live     bool   `json:"live"`
	Cached   bool   `json:"cached"`
	Fallback bool   `json:"fallback"`
	Warning  string `json:"warning,omitempty"`
}

// ResolverOptions tune a Resolver.
type ResolverOptions struct {
	TTL           time.Duration
	Size          int
	FallbackPrice float64
}

// Resolver fronts a Source with a short lived cache and remembers the last
// price it saw per asset so a failed lookup degrades to a usable figure.
type Resolver struct {
	source    Source
	fresh     *expirable.LRU[string, Quote]
	lastKnown *lru.Cache[string, Quote]
	fallback  float64
	logger    *zap.Logger
}

// NewResolver returns a Resolver over source. A nil source always falls back.
func NewResolver(source Source, opts ResolverOptions, logger *zap.Logger) (*Resolver, error) {
	if opts.TTL <= 0 {
		opts.TTL = constants.DefaultPriceCacheSeconds * time.Second
	}
	if opts.Size <= 0 {
		opts.Size = constants.PriceCacheSize
	}
	if !validPrice(opts.FallbackPrice) {
		opts.FallbackPrice = constants.DefaultFallbackPrice
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	lastKnown, err := lru.New[string, Quote](opts.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to create last known price cache: %w", err)
	}
	return &Resolver{
		source:    source,
		fresh:     expirable.NewLRU[string, Quote](opts.Size, nil, opts.TTL),
		lastKnown: lastKnown,
		fallback:  opts.FallbackPrice,
		logger:    logger,
	}, nil
}

// Resolve returns the price of asset. It never fails: when the source errors
// the result is flagged Fallback and carries the last known price, or the
// configured default, with a warning for display.
func (r *Resolver) Resolve(ctx context.Context, asset string) Resolution {
	asset = normalizeAsset(asset)

	if q, ok := r.fresh.Get(asset); ok {
		metrics.PriceResolutionsTotal.WithLabelValues("cached").Inc()
		return Resolution{Quote: q, Live: true, Cached: true}
	}

	if r.source != nil {
		q, err := r.source.Spot(ctx, asset)
		if err == nil {
			r.Remember(q)
			metrics.PriceResolutionsTotal.WithLabelValues("live").Inc()
			return Resolution{Quote: q, Live: true}
		}
		r.logger.Warn("price lookup failed, falling back",
			zap.String("op", "price.Resolver.Resolve"),
			zap.String("asset", asset),
			zap.Error(err),
		)
		return r.fallbackResolution(asset, fmt.Sprintf("Failed to fetch %s price (%v).", asset, err))
	}
	return r.fallbackResolution(asset, fmt.Sprintf("No live price source configured for %s.", asset))
}

// Remember records a successfully fetched quote in both caches.
func (r *Resolver) Remember(q Quote) {
	q.Asset = normalizeAsset(q.Asset)
	r.fresh.Add(q.Asset, q)
	r.lastKnown.Add(q.Asset, q)
}

// LastKnown returns the most recent quote seen for asset.
func (r *Resolver) LastKnown(asset string) (Quote, bool) {
	return r.lastKnown.Get(normalizeAsset(asset))
}

// Manual wraps a hand entered price as a Resolution.
func Manual(asset string, price float64) Resolution {
	return Resolution{Quote: Quote{Asset: normalizeAsset(asset), Price: price, Source: ManualName, At: time.Now().UTC()}}
}

func (r *Resolver) fallbackResolution(asset, reason string) Resolution {
	metrics.PriceResolutionsTotal.WithLabelValues("fallback").Inc()
	if q, ok := r.lastKnown.Get(asset); ok {
		return Resolution{
			Quote:    q,
			Fallback: true,
			Warning:  fmt.Sprintf("%s Using last known price %s from %s.", reason, format.Currency(q.Price), q.At.Format(time.RFC3339)),
		}
	}
	return Resolution{
		Quote:    Quote{Asset: asset, Price: r.fallback, Source: ManualName},
		Fallback: true,
		Warning:  fmt.Sprintf("%s Enter a price manually; defaulting to %s.", reason, format.Currency(r.fallback)),
	}
}

func normalizeAsset(asset string) string {
	asset = strings.ToLower(strings.TrimSpace(asset))
	if asset == "" {
		return constants.DefaultAsset
	}
	return asset
}
