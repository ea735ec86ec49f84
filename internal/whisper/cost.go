package whisper

import "github.com/shopspring/decimal"

// costPerMinute is the published whisper-1 price in USD.
var costPerMinute = decimal.NewFromFloat(0.006)

// CostEstimate is a pre-run price estimate for a transcription.
type CostEstimate struct {
	DurationSeconds float64         `json:"duration_seconds"`
	DurationMinutes decimal.Decimal `json:"duration_minutes"`
	CostPerMinute   decimal.Decimal `json:"cost_per_minute"`
	EstimatedUSD    decimal.Decimal `json:"estimated_cost_usd"`
}

// EstimateCost prices a transcription by audio duration. The estimate is
// informational only; billing is done by the provider.
func EstimateCost(durationSeconds float64) CostEstimate {
	minutes := decimal.NewFromFloat(durationSeconds).Div(decimal.NewFromInt(60))
	return CostEstimate{
		DurationSeconds: durationSeconds,
		DurationMinutes: minutes.Round(2),
		CostPerMinute:   costPerMinute,
		EstimatedUSD:    minutes.Mul(costPerMinute).Round(4),
	}
}
