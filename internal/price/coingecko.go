package price

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iwvelando/leverage-forecast/pkg/constants"
	"go.uber.org/zap"
)

// CoinGeckoName labels quotes and metrics from the simple price API.
const CoinGeckoName = "coingecko"

// CoinGecko reads spot prices from /simple/price. The response body is
// {"<asset>": {"usd": <number>}}.
type CoinGecko struct {
	BaseURL string
	Client  *http.Client
	Logger  *zap.Logger
}

// NewCoinGecko returns a client for baseURL, or the public API when empty.
func NewCoinGecko(baseURL string, client *http.Client, logger *zap.Logger) *CoinGecko {
	if baseURL == "" {
		baseURL = constants.DefaultCoinGeckoURL
	}
	if client == nil {
		client = NewHTTPClient(constants.DefaultPriceTimeoutSeconds * time.Second)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CoinGecko{BaseURL: strings.TrimRight(baseURL, "/"), Client: client, Logger: logger}
}

// Spot returns the USD price of asset, a CoinGecko id such as "ethereum".
func (c *CoinGecko) Spot(ctx context.Context, asset string) (Quote, error) {
	endpoint := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", c.BaseURL, url.QueryEscape(asset))

	var body map[string]map[string]float64
	if err := getJSON(ctx, c.Client, endpoint, CoinGeckoName, asset, &body); err != nil {
		return Quote{}, err
	}

	usd, ok := body[asset]["usd"]
	if !ok {
		return Quote{}, &FetchError{Kind: KindDecode, Source: CoinGeckoName, Asset: asset, Status: http.StatusOK,
			Err: fmt.Errorf("no usd price for %q in response", asset)}
	}
	if !validPrice(usd) {
		return Quote{}, &FetchError{Kind: KindInvalid, Source: CoinGeckoName, Asset: asset, Status: http.StatusOK,
			Err: fmt.Errorf("price %v is not positive", usd)}
	}

	c.Logger.Debug("fetched spot price",
		zap.String("op", "price.CoinGecko.Spot"),
		zap.String("asset", asset),
		zap.Float64("price", usd),
	)
	return Quote{Asset: asset, Price: usd, Source: CoinGeckoName, At: time.Now().UTC()}, nil
}
