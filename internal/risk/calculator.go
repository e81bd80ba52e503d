package risk

import (
	"math"

	"github.com/GrayITguy/msp-risk-proposal/internal/breachcost"
	"github.com/GrayITguy/msp-risk-proposal/internal/coefficients"
	"github.com/GrayITguy/msp-risk-proposal/pkg/models"
)

// Calculator turns one vulnerability plus one client context into a
// dollar-denominated risk calculation. It is pure computation: every
// coefficient comes from the injected tables, so identical inputs and
// identical tables always produce identical output.
type Calculator struct {
	coefficients coefficients.Table
	breachCosts  *breachcost.Dataset
}

// NewCalculator creates a calculator bound to a coefficient table and a
// breach-cost dataset.
func NewCalculator(table coefficients.Table, dataset *breachcost.Dataset) *Calculator {
	return &Calculator{
		coefficients: table,
		breachCosts:  dataset,
	}
}

// CalculateRisk computes SLE, ARO, ALE and a confidence rating for a single
// vulnerability. The only failure modes are a missing or out-of-range CVSS
// score; everything else about the inputs is treated as already validated.
func (c *Calculator) CalculateRisk(vuln models.Vulnerability, client models.ClientContext) (models.RiskCalculation, error) {
	if vuln.CVSSScore == nil {
		return models.RiskCalculation{}, &MissingScoreError{VulnerabilityID: vuln.ID}
	}
	score := *vuln.CVSSScore
	if math.IsNaN(score) || score < 0.0 || score > 10.0 {
		return models.RiskCalculation{}, &InvalidScoreError{VulnerabilityID: vuln.ID, Score: score}
	}

	industry := models.NormalizeIndustry(string(client.Industry))

	// Asset value: records the client plausibly holds, priced at the
	// industry's cost per compromised record.
	costPerRecord := c.breachCosts.CostPerRecord(industry)
	recordsAtRisk := float64(client.EmployeeCount) * float64(c.coefficients.RecordsPerEmployeeFor(industry))
	assetValue := recordsAtRisk * costPerRecord

	// Classic quantitative risk chain: SLE = AV x EF, ALE = SLE x ARO.
	exposureFactor := c.coefficients.ExposureFactor(score)
	sle := assetValue * exposureFactor
	aro := c.coefficients.AnnualRateOfOccurrence(score)
	ale := sle * aro

	return models.RiskCalculation{
		VulnerabilityID:          vuln.ID,
		VulnerabilityName:        vuln.Name,
		SingleLossExpectancy:     sle,
		AnnualRateOfOccurrence:   aro,
		AnnualizedLossExpectancy: ale,
		Confidence:               c.confidenceFor(vuln, industry, score),
		Details: models.CalculationDetails{
			AssetValue:            assetValue,
			ExposureFactor:        exposureFactor,
			BreachProbability:     aro,
			IndustryCostPerRecord: costPerRecord,
		},
	}, nil
}

// confidenceFor rates how much supporting evidence backs the calculation.
// Each satisfied signal adds its configured weight; the summed points land
// in a band via the configured thresholds.
func (c *Calculator) confidenceFor(vuln models.Vulnerability, industry models.Industry, score float64) models.ConfidenceLevel {
	weights := c.coefficients.Confidence

	points := 0
	if vuln.HasCVE() {
		points += weights.HasCVE
	}
	// The score was already range-checked, but the signal is evaluated
	// like the others so the audit trail reads uniformly.
	if score >= 0.0 && score <= 10.0 {
		points += weights.ValidCVSS
	}
	if industry != models.IndustryOther {
		points += weights.IndustrySpecific
	}
	if band := models.SeverityFromScore(score); band == models.SeverityCritical || band == models.SeverityHigh {
		if len(vuln.AffectedAssets) > 0 {
			points += weights.HighSeverityWithAssets
		}
	}

	switch {
	case points >= weights.HighThreshold:
		return models.ConfidenceHigh
	case points >= weights.MediumThreshold:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}
