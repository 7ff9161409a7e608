// Package constants provides shared constants for the leverage-forecast application.
package constants

// Protocol constants
const (
	// DefaultLiquidationThreshold is the ETH liquidation threshold used when a
	// scenario does not name one (Aave v3 mainnet WETH).
	DefaultLiquidationThreshold = 0.83

	// HealthyBoundary is the health score at which a position becomes liquidatable.
	HealthyBoundary = 1.0

	// PriceBasis is the base of the concentrated-liquidity tick to price conversion.
	PriceBasis = 1.0001
)

// KnownLiquidationThresholds lists the thresholds that appear across lending
// deployments; any other value produces a configuration warning.
var KnownLiquidationThresholds = []float64{0.80, 0.825, 0.83, 0.85, 0.90}

// Sweep defaults
const (
	// DefaultFirstLTV is the first loop borrow ratio.
	DefaultFirstLTV = 0.40

	// DefaultSecondLTVStart is the first swept second loop borrow ratio.
	DefaultSecondLTVStart = 0.30

	// DefaultSecondLTVStop is the last swept second loop borrow ratio.
	DefaultSecondLTVStop = 0.51

	// DefaultSecondLTVStep is the distance between swept second loop ratios.
	DefaultSecondLTVStep = 0.01

	// MaxSweepPoints bounds the number of rows a single sweep may produce.
	MaxSweepPoints = 500

	// DefaultMinHealthScore filters ranked rows.
	DefaultMinHealthScore = 1.6
)

// Ranking weights applied to the composite score.
const (
	DefaultHealthWeight      = 40.0
	DefaultLiquidationWeight = 0.4
	DefaultGainWeight        = 0.2
	DefaultDebtWeight        = 0.015
)

// Price lookup defaults
const (
	// DefaultAsset is the asset identifier used for spot price lookups.
	DefaultAsset = "ethereum"

	// DefaultFallbackPrice is presented for manual entry when no price was
	// ever fetched successfully.
	DefaultFallbackPrice = 2660.00

	// DefaultCoinGeckoURL is the base URL of the simple price API.
	DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

	// DefaultKlinesURL is the base URL of the candle API.
	DefaultKlinesURL = "https://api.binance.com/api/v3"

	// DefaultPriceTimeoutSeconds bounds each price request attempt.
	DefaultPriceTimeoutSeconds = 5

	// DefaultPriceRetries is the total number of attempts per lookup.
	DefaultPriceRetries = 3

	// DefaultPriceCacheSeconds is how long a fetched quote is reused.
	DefaultPriceCacheSeconds = 60

	// PriceCacheSize bounds the number of assets kept in the price caches.
	PriceCacheSize = 64
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatJSON is the API response format; the CLI writers do not
	// produce it.
	OutputFormatJSON = "json"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// ExampleConfigFile is the example configuration file name
	ExampleConfigFile = "config.yaml.example"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// EnvPrefix namespaces environment overrides, e.g. LEVERAGE_PRICE_ASSET.
	EnvPrefix = "LEVERAGE"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address for the web UI
	DefaultServerAddress = ":8080"

	// DefaultMaxUploadSizeBytes is the default maximum request body size (256 KB)
	DefaultMaxUploadSizeBytes int64 = 256 * 1024

	// DefaultReadTimeout bounds reading a request, headers included.
	DefaultReadTimeout = "15s"

	// DefaultWriteTimeout bounds writing a response. It must cover a full
	// price lookup with retries.
	DefaultWriteTimeout = "30s"

	// DefaultIdleTimeout bounds keep-alive connections.
	DefaultIdleTimeout = "60s"

	// DefaultShutdownTimeout bounds draining in-flight requests on exit.
	DefaultShutdownTimeout = "10s"

	// RequestIDHeader carries the per-request correlation ID.
	RequestIDHeader = "X-Request-ID"
)

// Validation constants
const (
	// DecimalPrecision is the precision for currency rounding (2 decimal places)
	DecimalPrecision = 100

	// CurrencyTolerance is the tolerance for currency comparisons (1 cent)
	CurrencyTolerance = 0.01

	// RatioTolerance is the tolerance for health score comparisons
	RatioTolerance = 1e-6

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0
)
