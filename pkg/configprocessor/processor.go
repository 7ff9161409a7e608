// Package configprocessor provides shared configuration processing utilities.
package configprocessor

import (
	"fmt"

	"github.com/iwvelando/leverage-forecast/pkg/constants"
	"github.com/iwvelando/leverage-forecast/pkg/mathutil"
)

// RangeInfo represents an inclusive sweep range
type RangeInfo struct {
	Start float64
	Stop  float64
	Step  float64
}

// ScenarioInfo represents scenario configuration information
type ScenarioInfo struct {
	Name                 string
	Active               bool
	FirstLTV             float64
	LiquidationThreshold float64
	SecondLTV            RangeInfo
	FirstLTVSweep        *RangeInfo
	TargetHealth         float64
	HasStart             bool
}

// Processor handles configuration processing and validation
type Processor struct{}

// NewProcessor creates a new configuration processor
func NewProcessor() *Processor {
	return &Processor{}
}

// ValidateConfiguration validates the configuration and returns warnings.
// Hard input errors surface later when the scenario is computed; warnings
// flag settings that compute but are probably not what was meant.
func (p *Processor) ValidateConfiguration(minHealth float64, scenarios []ScenarioInfo) []string {
	var warnings []string

	active := 0
	names := make(map[string]int)
	for _, scenario := range scenarios {
		names[scenario.Name]++
		if !scenario.Active {
			continue // Skip inactive scenarios
		}
		active++
		warnings = append(warnings, p.validateScenario(minHealth, scenario)...)
	}

	if len(scenarios) > 0 && active == 0 {
		warnings = append(warnings, "No active scenarios; nothing will be computed")
	}
	for name, count := range names {
		if count > 1 {
			warnings = append(warnings, fmt.Sprintf("Scenario name '%s' is used %d times", name, count))
		}
	}

	if len(warnings) == 0 {
		return nil
	}
	return warnings
}

func (p *Processor) validateScenario(minHealth float64, s ScenarioInfo) []string {
	var warnings []string
	label := fmt.Sprintf("Scenario '%s'", s.Name)

	if !IsKnownThreshold(s.LiquidationThreshold) {
		warnings = append(warnings, fmt.Sprintf("%s liquidation threshold %.4g is not a known protocol value %v",
			label, s.LiquidationThreshold, constants.KnownLiquidationThresholds))
	}
	if s.FirstLTV >= s.LiquidationThreshold && !s.HasStart {
		warnings = append(warnings, fmt.Sprintf("%s first LTV %.2f is at or above the liquidation threshold %.2f",
			label, s.FirstLTV, s.LiquidationThreshold))
	}
	if s.SecondLTV.Stop >= s.LiquidationThreshold {
		warnings = append(warnings, fmt.Sprintf("%s second LTV sweep reaches %.2f, at or above the liquidation threshold %.2f",
			label, s.SecondLTV.Stop, s.LiquidationThreshold))
	}
	if s.SecondLTV.Stop < s.SecondLTV.Start {
		warnings = append(warnings, fmt.Sprintf("%s second LTV sweep is empty (stop %.2f below start %.2f)",
			label, s.SecondLTV.Stop, s.SecondLTV.Start))
	}
	if s.FirstLTVSweep != nil && s.HasStart {
		warnings = append(warnings, fmt.Sprintf("%s sets both a first LTV sweep and a manual start; the start position wins", label))
	}
	if s.TargetHealth != 0 && s.TargetHealth <= constants.HealthyBoundary {
		warnings = append(warnings, fmt.Sprintf("%s target health %.2f leaves no margin above liquidation", label, s.TargetHealth))
	}
	if s.TargetHealth != 0 && minHealth > 0 && s.TargetHealth < minHealth {
		warnings = append(warnings, fmt.Sprintf("%s target health %.2f is below the ranking minimum %.2f",
			label, s.TargetHealth, minHealth))
	}
	return warnings
}

// IsKnownThreshold reports whether lt matches a liquidation threshold used by
// a known lending deployment.
func IsKnownThreshold(lt float64) bool {
	for _, known := range constants.KnownLiquidationThresholds {
		if mathutil.WithinTolerance(lt, known, constants.RatioTolerance) {
			return true
		}
	}
	return false
}
