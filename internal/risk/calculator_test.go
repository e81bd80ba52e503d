package risk

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GrayITguy/msp-risk-proposal/internal/breachcost"
	"github.com/GrayITguy/msp-risk-proposal/internal/coefficients"
	"github.com/GrayITguy/msp-risk-proposal/pkg/models"
)

func newTestCalculator() *Calculator {
	return NewCalculator(coefficients.DefaultTable(), breachcost.DefaultDataset())
}

func scoreOf(f float64) *float64 {
	return &f
}

func healthcareClient() models.ClientContext {
	return models.ClientContext{
		CompanyName:   "Mercy Family Practice",
		Industry:      models.IndustryHealthcare,
		AnnualRevenue: 8500000,
		EmployeeCount: 50,
		CriticalSystems: []string{
			"EHR",
			"Patient portal",
		},
		Contact: models.ContactInfo{Name: "Dana Whitfield", Email: "dana@mercyfp.example"},
	}
}

func TestCalculateRiskWorkedExample(t *testing.T) {
	// healthcare, 50 employees: 50 x 2000 records = 100,000 records at
	// risk, priced at 408 per record = 40,800,000 asset value. CVSS 9.8
	// puts exposure at 1.00 and occurrence at 0.40.
	calc := newTestCalculator()

	vuln := models.Vulnerability{
		ID:             "vuln-001",
		Name:           "Unpatched EHR server",
		CVSSScore:      scoreOf(9.8),
		Severity:       models.SeverityCritical,
		AffectedAssets: []string{"ehr-prod-01"},
		CVEID:          "CVE-2024-21413",
	}

	result, err := calc.CalculateRisk(vuln, healthcareClient())
	require.NoError(t, err)

	assert.Equal(t, "vuln-001", result.VulnerabilityID)
	assert.Equal(t, "Unpatched EHR server", result.VulnerabilityName)
	assert.Equal(t, 40800000.0, result.Details.AssetValue)
	assert.Equal(t, 1.00, result.Details.ExposureFactor)
	assert.Equal(t, 408.0, result.Details.IndustryCostPerRecord)
	assert.Equal(t, 40800000.0, result.SingleLossExpectancy)
	assert.Equal(t, 0.40, result.AnnualRateOfOccurrence)
	assert.InEpsilon(t, 16320000.0, result.AnnualizedLossExpectancy, 1e-9)
}

func TestCalculateRiskALEIsProductOfSLEAndARO(t *testing.T) {
	calc := newTestCalculator()
	client := healthcareClient()

	for _, score := range []float64{0.0, 2.2, 4.0, 6.9, 7.0, 8.8, 9.0, 10.0} {
		vuln := models.Vulnerability{ID: "v", Name: "v", CVSSScore: scoreOf(score)}
		result, err := calc.CalculateRisk(vuln, client)
		require.NoError(t, err)

		assert.Equal(t, result.SingleLossExpectancy*result.AnnualRateOfOccurrence,
			result.AnnualizedLossExpectancy, "score %.1f", score)
		assert.Equal(t, result.AnnualRateOfOccurrence, result.Details.BreachProbability)
	}
}

func TestCalculateRiskMissingScore(t *testing.T) {
	calc := newTestCalculator()

	vuln := models.Vulnerability{ID: "vuln-noscore", Name: "Unscored finding"}
	_, err := calc.CalculateRisk(vuln, healthcareClient())

	var missing *MissingScoreError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "vuln-noscore", missing.VulnerabilityID)
}

func TestCalculateRiskInvalidScore(t *testing.T) {
	calc := newTestCalculator()
	client := healthcareClient()

	for _, score := range []float64{-0.1, 10.1, 15.0, math.NaN()} {
		vuln := models.Vulnerability{ID: "vuln-bad", Name: "Bad score", CVSSScore: scoreOf(score)}
		_, err := calc.CalculateRisk(vuln, client)

		var invalid *InvalidScoreError
		require.ErrorAs(t, err, &invalid, "score %v", score)
		assert.Equal(t, "vuln-bad", invalid.VulnerabilityID)
	}
}

func TestCalculateRiskBoundaryScoresAreValid(t *testing.T) {
	calc := newTestCalculator()
	client := healthcareClient()

	for _, score := range []float64{0.0, 10.0} {
		vuln := models.Vulnerability{ID: "vuln-edge", Name: "Edge", CVSSScore: scoreOf(score)}
		_, err := calc.CalculateRisk(vuln, client)
		assert.NoError(t, err, "score %v", score)
	}
}

func TestCalculateRiskUnknownIndustryUsesFallbacks(t *testing.T) {
	calc := newTestCalculator()

	client := healthcareClient()
	client.Industry = models.Industry("Space Mining")

	vuln := models.Vulnerability{ID: "v", Name: "v", CVSSScore: scoreOf(5.0)}
	result, err := calc.CalculateRisk(vuln, client)
	require.NoError(t, err)

	table := coefficients.DefaultTable()
	dataset := breachcost.DefaultDataset()
	wantAssetValue := float64(client.EmployeeCount) *
		float64(table.RecordsPerEmployeeFor(models.IndustryOther)) *
		dataset.CostPerRecord(models.IndustryOther)
	assert.Equal(t, wantAssetValue, result.Details.AssetValue)
}

func TestConfidenceRatings(t *testing.T) {
	calc := newTestCalculator()

	tests := []struct {
		name     string
		vuln     models.Vulnerability
		industry models.Industry
		want     models.ConfidenceLevel
	}{
		{
			name: "critical with CVE, industry data, and assets",
			vuln: models.Vulnerability{
				ID: "v1", Name: "v1", CVSSScore: scoreOf(9.8),
				CVEID:          "CVE-2024-3400",
				AffectedAssets: []string{"fw-01"},
			},
			industry: models.IndustryHealthcare,
			want:     models.ConfidenceHigh,
		},
		{
			name: "critical without CVE",
			vuln: models.Vulnerability{
				ID: "v2", Name: "v2", CVSSScore: scoreOf(9.8),
				AffectedAssets: []string{"fw-01"},
			},
			industry: models.IndustryHealthcare,
			want:     models.ConfidenceMedium,
		},
		{
			name: "medium severity, no CVE, generic industry",
			vuln: models.Vulnerability{
				ID: "v3", Name: "v3", CVSSScore: scoreOf(5.0),
				AffectedAssets: []string{"ws-12"},
			},
			industry: models.IndustryOther,
			want:     models.ConfidenceLow,
		},
		{
			name: "high severity with CVE but no affected assets",
			vuln: models.Vulnerability{
				ID: "v4", Name: "v4", CVSSScore: scoreOf(7.5),
				CVEID: "CVE-2023-44487",
			},
			industry: models.IndustryFinancial,
			want:     models.ConfidenceHigh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := healthcareClient()
			client.Industry = tt.industry

			result, err := calc.CalculateRisk(tt.vuln, client)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Confidence)
		})
	}
}

func TestCalculateRiskIsDeterministic(t *testing.T) {
	calc := newTestCalculator()
	client := healthcareClient()
	vuln := models.Vulnerability{
		ID: "v", Name: "v", CVSSScore: scoreOf(7.3),
		CVEID: "CVE-2022-22965", AffectedAssets: []string{"app-01"},
	}

	first, err := calc.CalculateRisk(vuln, client)
	require.NoError(t, err)
	second, err := calc.CalculateRisk(vuln, client)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSkipReasonStrings(t *testing.T) {
	assert.Equal(t, "missing CVSS score", skipReason(&MissingScoreError{VulnerabilityID: "v"}))
	assert.Equal(t, "CVSS score 15.00 outside the valid range 0.0-10.0",
		skipReason(&InvalidScoreError{VulnerabilityID: "v", Score: 15.0}))
	assert.Equal(t, "boom", skipReason(errors.New("boom")))
}
