package price

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/iwvelando/leverage-forecast/pkg/constants"
	"github.com/iwvelando/leverage-forecast/pkg/datetime"
	"go.uber.org/zap"
)

// KlinesName labels quotes and metrics from the candle API.
const KlinesName = "klines"

// DefaultSymbols maps asset ids to candle API trading pairs.
var DefaultSymbols = map[string]string{
	"ethereum": "ETHUSDT",
	"bitcoin":  "BTCUSDT",
}

// Klines reads candles from a /klines endpoint returning
// [[openTime, open, high, low, close, volume, ...], ...]. Prices may be JSON
// numbers or numeric strings.
type Klines struct {
	BaseURL string
	Client  *http.Client
	Symbols map[string]string
	Logger  *zap.Logger
}

// NewKlines returns a client for baseURL, or the public API when empty.
func NewKlines(baseURL string, client *http.Client, logger *zap.Logger) *Klines {
	if baseURL == "" {
		baseURL = constants.DefaultKlinesURL
	}
	if client == nil {
		client = NewHTTPClient(constants.DefaultPriceTimeoutSeconds * time.Second)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Klines{BaseURL: strings.TrimRight(baseURL, "/"), Client: client, Symbols: DefaultSymbols, Logger: logger}
}

// Symbol returns the trading pair for asset. Unknown assets are assumed to
// already be a pair.
func (k *Klines) Symbol(asset string) string {
	if s, ok := k.Symbols[strings.ToLower(asset)]; ok {
		return s
	}
	return strings.ToUpper(asset)
}

// Candles returns up to limit validated candles, oldest first.
func (k *Klines) Candles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))
	endpoint := k.BaseURL + "/klines?" + q.Encode()

	var rows [][]json.RawMessage
	if err := getJSON(ctx, k.Client, endpoint, KlinesName, symbol, &rows); err != nil {
		return nil, err
	}

	candles := make([]Candle, 0, len(rows))
	for i, row := range rows {
		c, err := decodeCandle(row)
		if err != nil {
			return nil, &FetchError{Kind: KindDecode, Source: KlinesName, Asset: symbol, Status: http.StatusOK,
				Err: fmt.Errorf("candle %d: %w", i, err)}
		}
		if err := ValidateCandle(c); err != nil {
			return nil, &FetchError{Kind: KindInvalid, Source: KlinesName, Asset: symbol, Status: http.StatusOK,
				Err: fmt.Errorf("candle %d: %w", i, err)}
		}
		candles = append(candles, c)
	}

	k.Logger.Debug("fetched candles",
		zap.String("op", "price.Klines.Candles"),
		zap.String("symbol", symbol),
		zap.String("interval", interval),
		zap.Int("count", len(candles)),
	)
	return candles, nil
}

// Spot returns the close of the latest one minute candle.
func (k *Klines) Spot(ctx context.Context, asset string) (Quote, error) {
	symbol := k.Symbol(asset)
	candles, err := k.Candles(ctx, symbol, "1m", 1)
	if err != nil {
		return Quote{}, err
	}
	if len(candles) == 0 {
		return Quote{}, &FetchError{Kind: KindDecode, Source: KlinesName, Asset: symbol, Status: http.StatusOK,
			Err: fmt.Errorf("empty candle list")}
	}
	last := candles[len(candles)-1]
	return Quote{Asset: asset, Price: last.Close, Source: KlinesName, At: time.Now().UTC()}, nil
}

func decodeCandle(row []json.RawMessage) (Candle, error) {
	if len(row) < 6 {
		return Candle{}, fmt.Errorf("expected at least 6 fields, got %d", len(row))
	}
	openTime, err := flexFloat(row[0])
	if err != nil {
		return Candle{}, fmt.Errorf("open time: %w", err)
	}

	values := make([]float64, 5)
	for i := range values {
		v, err := flexFloat(row[i+1])
		if err != nil {
			return Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		values[i] = v
	}
	return Candle{
		OpenTime: datetime.FromUnixMilli(int64(openTime)),
		Open:     values[0],
		High:     values[1],
		Low:      values[2],
		Close:    values[3],
		Volume:   values[4],
	}, nil
}

// flexFloat decodes a JSON number or a string holding one.
func flexFloat(raw json.RawMessage) (float64, error) {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("not a number: %s", string(raw))
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
