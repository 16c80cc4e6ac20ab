package domain

import "github.com/shopspring/decimal"

// VenueFeatures summarizes recent price behaviour of one venue.
type VenueFeatures struct {
	TargetID      string          `json:"target_id"`
	Samples       int             `json:"samples"`
	LastPrice     decimal.Decimal `json:"last_price"`
	VolatilityBps decimal.Decimal `json:"volatility_bps"`
}

// FeatureSnapshot is the feature input the scorer receives alongside an
// opportunity.
type FeatureSnapshot struct {
	Buy  VenueFeatures `json:"buy"`
	Sell VenueFeatures `json:"sell"`
}

// Score is a scorer answer.
type Score struct {
	Confidence decimal.Decimal
	Version    string
}

var maxConfidence = decimal.NewFromInt(100)

// ValidConfidence reports whether c lies within [0,100].
func ValidConfidence(c decimal.Decimal) bool {
	return !c.IsNegative() && c.LessThanOrEqual(maxConfidence)
}
