package domain

import "strings"

// RiskLevel is the relative enforcement risk of a nearby location.
type RiskLevel string

const (
	RiskLow     RiskLevel = "Low"
	RiskMedium  RiskLevel = "Medium"
	RiskHigh    RiskLevel = "High"
	RiskUnknown RiskLevel = "Unknown"
)

// Accent colors for risk levels.
const (
	AccentLow     = "#2ecc71"
	AccentMedium  = "#f1c40f"
	AccentHigh    = "#e74c3c"
	AccentDefault = "#4fbdba"
)

// Normalize maps any casing of low/medium/high onto the canonical level.
// Anything else, including the empty string, is Unknown.
func (r RiskLevel) Normalize() RiskLevel {
	switch strings.ToLower(strings.TrimSpace(string(r))) {
	case "low":
		return RiskLow
	case "medium":
		return RiskMedium
	case "high":
		return RiskHigh
	default:
		return RiskUnknown
	}
}

// Label is the level as the service sent it, or "Unknown" when empty.
func (r RiskLevel) Label() string {
	if strings.TrimSpace(string(r)) == "" {
		return string(RiskUnknown)
	}
	return string(r)
}

// Class is the CSS-style class for a result row, e.g. "high-risk".
func (r RiskLevel) Class() string {
	return strings.ToLower(r.Label()) + "-risk"
}

// Accent returns the display color for the level, compared case-insensitively.
func (r RiskLevel) Accent() string {
	switch r.Normalize() {
	case RiskLow:
		return AccentLow
	case RiskMedium:
		return AccentMedium
	case RiskHigh:
		return AccentHigh
	default:
		return AccentDefault
	}
}

// ClassifyPercentile assigns a tier to a min-max percentile in [0,1].
func ClassifyPercentile(p float64) RiskLevel {
	switch {
	case p <= 0.33:
		return RiskLow
	case p <= 0.66:
		return RiskMedium
	default:
		return RiskHigh
	}
}
