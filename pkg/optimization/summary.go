// Package optimization provides shared data structures for optimization results.
package optimization

// Summary captures the result of solving one scenario for a target health score.
type Summary struct {
	Scope            string   `json:"scope"`
	TargetName       string   `json:"targetName"`
	Field            string   `json:"field"`
	Original         float64  `json:"original"`
	Value            float64  `json:"value"`
	TargetHealth     float64  `json:"targetHealth"`
	HealthScore      float64  `json:"healthScore"`
	LiquidationPrice float64  `json:"liquidationPrice"`
	Headroom         float64  `json:"headroom"`
	Iterations       int      `json:"iterations"`
	Converged        bool     `json:"converged"`
	Notes            []string `json:"notes,omitempty"`
	OriginalDisplay  string   `json:"originalDisplay,omitempty"`
	ValueDisplay     string   `json:"valueDisplay,omitempty"`
}
