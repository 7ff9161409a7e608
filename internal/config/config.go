// Package config defines the data structures related to configuration and
// includes functions for loading and validating it.
package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/iwvelando/leverage-forecast/pkg/configprocessor"
	"github.com/iwvelando/leverage-forecast/pkg/constants"
	"github.com/spf13/viper"
)

// Configuration holds all configuration for leverage-forecast.
type Configuration struct {
	Logging   LoggingConfig  `yaml:"logging,omitempty"`
	Output    OutputConfig   `yaml:"output,omitempty"`
	Price     PriceConfig    `yaml:"price,omitempty"`
	Position  PositionConfig `yaml:"position,omitempty"`
	Ranking   RankingConfig  `yaml:"ranking,omitempty"`
	Scenarios []Scenario     `yaml:"scenarios"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty"` // pretty, csv
}

// PriceConfig configures the spot price lookup.
type PriceConfig struct {
	Asset          string  `yaml:"asset,omitempty"`
	Source         string  `yaml:"source,omitempty"` // coingecko, klines
	CoinGeckoURL   string  `yaml:"coinGeckoURL,omitempty"`
	KlinesURL      string  `yaml:"klinesURL,omitempty"`
	TimeoutSeconds int     `yaml:"timeoutSeconds,omitempty"`
	Retries        int     `yaml:"retries,omitempty"`
	CacheSeconds   int     `yaml:"cacheSeconds,omitempty"`
	FallbackPrice  float64 `yaml:"fallbackPrice,omitempty"`
}

// PositionConfig configures the optional lending position lookup.
type PositionConfig struct {
	URLTemplate string `yaml:"urlTemplate,omitempty"` // must contain {address}
}

// RankingConfig holds the row filter and composite score weights.
type RankingConfig struct {
	MinHealth float64       `yaml:"minHealth,omitempty"`
	Weights   WeightsConfig `yaml:"weights,omitempty"`
}

// WeightsConfig holds the composite score weights.
type WeightsConfig struct {
	Health      float64 `yaml:"health,omitempty"`
	Liquidation float64 `yaml:"liquidation,omitempty"`
	Gain        float64 `yaml:"gain,omitempty"`
	Debt        float64 `yaml:"debt,omitempty"`
}

// Scenario is one leverage setup to sweep.
type Scenario struct {
	Name   string `yaml:"name"`
	Active bool   `yaml:"active"`

	// SpotPrice pins the price. Zero resolves it from the price source.
	SpotPrice            float64 `yaml:"spotPrice,omitempty"`
	InitialCollateral    float64 `yaml:"initialCollateral"`
	FirstLTV             float64 `yaml:"firstLTV"`
	LiquidationThreshold float64 `yaml:"liquidationThreshold,omitempty"`
	LPProceeds           float64 `yaml:"lpProceeds,omitempty"`
	ResupplySecondLoop   bool    `yaml:"resupplySecondLoop,omitempty"`
	TargetHealth         float64 `yaml:"targetHealth,omitempty"`

	SecondLTV     SweepRange     `yaml:"secondLTV,omitempty"`
	FirstLTVSweep *SweepRange    `yaml:"firstLTVSweep,omitempty"`
	Start         *StartPosition `yaml:"start,omitempty"`
}

// SweepRange is an inclusive start/stop/step range.
type SweepRange struct {
	Start float64 `yaml:"start"`
	Stop  float64 `yaml:"stop"`
	Step  float64 `yaml:"step"`
}

// IsZero reports whether no field was set.
func (r SweepRange) IsZero() bool {
	return r.Start == 0 && r.Stop == 0 && r.Step == 0
}

// StartPosition is a known position after the first loop.
type StartPosition struct {
	Collateral float64 `yaml:"collateral"`
	Debt       float64 `yaml:"debt"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yml")
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("output.format", constants.OutputFormatPretty)
	v.SetDefault("price.asset", constants.DefaultAsset)
	v.SetDefault("price.source", "coingecko")
	v.SetDefault("price.coinGeckoURL", constants.DefaultCoinGeckoURL)
	v.SetDefault("price.klinesURL", constants.DefaultKlinesURL)
	v.SetDefault("price.timeoutSeconds", constants.DefaultPriceTimeoutSeconds)
	v.SetDefault("price.retries", constants.DefaultPriceRetries)
	v.SetDefault("price.cacheSeconds", constants.DefaultPriceCacheSeconds)
	v.SetDefault("price.fallbackPrice", constants.DefaultFallbackPrice)
	v.SetDefault("position.urlTemplate", "")
	v.SetDefault("ranking.minHealth", constants.DefaultMinHealthScore)
	v.SetDefault("ranking.weights.health", constants.DefaultHealthWeight)
	v.SetDefault("ranking.weights.liquidation", constants.DefaultLiquidationWeight)
	v.SetDefault("ranking.weights.gain", constants.DefaultGainWeight)
	v.SetDefault("ranking.weights.debt", constants.DefaultDebtWeight)
	return v
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. LEVERAGE_* environment variables override scalar
// settings, e.g. LEVERAGE_PRICE_ASSET.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %s", err)
	}
	return decode(v)
}

// LoadConfigurationFromReader loads a YAML-formatted configuration from r.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	v := newViper()
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config data, %s", err)
	}
	return decode(v)
}

// Default returns the configuration implied by the defaults and LEVERAGE_*
// environment variables alone. It carries no scenarios.
func Default() (*Configuration, error) {
	return decode(newViper())
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}
	configuration.ApplyDefaults()
	return &configuration, nil
}

// ApplyDefaults fills scenario fields left unset.
func (c *Configuration) ApplyDefaults() {
	for i := range c.Scenarios {
		s := &c.Scenarios[i]
		if s.LiquidationThreshold == 0 {
			s.LiquidationThreshold = constants.DefaultLiquidationThreshold
		}
		if s.SecondLTV.IsZero() {
			s.SecondLTV = SweepRange{
				Start: constants.DefaultSecondLTVStart,
				Stop:  constants.DefaultSecondLTVStop,
				Step:  constants.DefaultSecondLTVStep,
			}
		}
	}
}

// ActiveScenarios returns the scenarios flagged active, in order.
func (c *Configuration) ActiveScenarios() []Scenario {
	var active []Scenario
	for _, s := range c.Scenarios {
		if s.Active {
			active = append(active, s)
		}
	}
	return active
}

// ValidateConfiguration performs general validation of the configuration and returns warnings
func (c *Configuration) ValidateConfiguration() []string {
	var scenarios []configprocessor.ScenarioInfo
	for _, s := range c.Scenarios {
		info := configprocessor.ScenarioInfo{
			Name:                 s.Name,
			Active:               s.Active,
			FirstLTV:             s.FirstLTV,
			LiquidationThreshold: s.LiquidationThreshold,
			SecondLTV:            configprocessor.RangeInfo(s.SecondLTV),
			TargetHealth:         s.TargetHealth,
			HasStart:             s.Start != nil,
		}
		if s.FirstLTVSweep != nil {
			r := configprocessor.RangeInfo(*s.FirstLTVSweep)
			info.FirstLTVSweep = &r
		}
		scenarios = append(scenarios, info)
	}

	processor := configprocessor.NewProcessor()
	return processor.ValidateConfiguration(c.Ranking.MinHealth, scenarios)
}
