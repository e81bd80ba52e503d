package models

import "time"

// CalculationDetails represents the intermediate figures behind a risk
// calculation, preserved so every dollar amount in a proposal can be
// traced back to its inputs.
type CalculationDetails struct {
	AssetValue            float64 `json:"assetValue"`
	ExposureFactor        float64 `json:"exposureFactor"`
	BreachProbability     float64 `json:"breachProbability"`
	IndustryCostPerRecord float64 `json:"industryCostPerRecord"`
}

// RiskCalculation represents the quantified risk of a single vulnerability
// against a single client context. Created once per vulnerability per run
// and never mutated afterwards.
//
// The invariant AnnualizedLossExpectancy == SingleLossExpectancy *
// AnnualRateOfOccurrence holds for every instance the calculator emits.
type RiskCalculation struct {
	VulnerabilityID          string             `json:"vulnerabilityId"`
	VulnerabilityName        string             `json:"vulnerabilityName"`
	SingleLossExpectancy     float64            `json:"singleLossExpectancy"`
	AnnualRateOfOccurrence   float64            `json:"annualRateOfOccurrence"`
	AnnualizedLossExpectancy float64            `json:"annualizedLossExpectancy"`
	Confidence               ConfidenceLevel    `json:"confidence"`
	Details                  CalculationDetails `json:"calculationDetails"`
}

// RiskByCategory represents ALE totals bucketed by the severity tag the
// scanner declared on each vulnerability. Bucketing deliberately trusts the
// declared tag even though the calculator re-derives bands from the numeric
// score; the two can disagree for findings tagged near a band boundary.
type RiskByCategory struct {
	Critical float64 `json:"critical"`
	High     float64 `json:"high"`
	Medium   float64 `json:"medium"`
	Low      float64 `json:"low"`
}

// Add accumulates an ALE figure into the bucket for the given severity.
func (r *RiskByCategory) Add(severity Severity, ale float64) {
	switch severity {
	case SeverityCritical:
		r.Critical += ale
	case SeverityHigh:
		r.High += ale
	case SeverityMedium:
		r.Medium += ale
	case SeverityLow:
		r.Low += ale
	}
}

// Total returns the sum across all four buckets.
func (r RiskByCategory) Total() float64 {
	return r.Critical + r.High + r.Medium + r.Low
}

// SkippedVulnerability represents a vulnerability that failed per-item
// calculation and was excluded from the profile. Skips are diagnostics,
// not errors: a batch with at least one success still yields a profile.
type SkippedVulnerability struct {
	VulnerabilityID string `json:"vulnerabilityId"`
	Reason          string `json:"reason"`
}

// TotalRiskProfile represents the terminal artifact of a portfolio
// assessment: every per-vulnerability calculation plus the aggregate view.
// Created once, read-only afterwards; downstream consumers (proposal
// generation, display) never mutate it.
type TotalRiskProfile struct {
	ClientID        string            `json:"clientId"`
	CompanyName     string            `json:"companyName"`
	Industry        Industry          `json:"industry"`
	CalculatedAt    time.Time         `json:"calculatedAt"`
	IndividualRisks []RiskCalculation `json:"individualRisks"`
	TotalALE        float64           `json:"totalALE"`
	RiskByCategory  RiskByCategory    `json:"riskByCategory"`
	TopRisks        []RiskCalculation `json:"topRisks"`
}
