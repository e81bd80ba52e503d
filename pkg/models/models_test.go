package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityFromScore(t *testing.T) {
	tests := []struct {
		score float64
		want  Severity
	}{
		{10.0, SeverityCritical},
		{9.0, SeverityCritical},
		{8.9, SeverityHigh},
		{7.0, SeverityHigh},
		{6.9, SeverityMedium},
		{4.0, SeverityMedium},
		{3.9, SeverityLow},
		{0.0, SeverityLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SeverityFromScore(tt.score), "score %v", tt.score)
	}
}

func TestNormalizeIndustry(t *testing.T) {
	assert.Equal(t, IndustryHealthcare, NormalizeIndustry("Healthcare"))
	assert.Equal(t, IndustryProfessionalServices, NormalizeIndustry(" professional_services "))
	assert.Equal(t, IndustryOther, NormalizeIndustry("space mining"))
	assert.Equal(t, IndustryOther, NormalizeIndustry(""))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "mercy-family-practice", Slug("Mercy Family Practice"))
	assert.Equal(t, "o-brien---co", Slug("  O'Brien & Co.  "))
	assert.Equal(t, "", Slug("!!!"))
}

func TestRiskByCategoryAddAndTotal(t *testing.T) {
	var r RiskByCategory
	r.Add(SeverityCritical, 100)
	r.Add(SeverityHigh, 50)
	r.Add(SeverityHigh, 25)
	r.Add(Severity("unknown"), 999)

	assert.Equal(t, 100.0, r.Critical)
	assert.Equal(t, 75.0, r.High)
	assert.Equal(t, 175.0, r.Total())
}

func TestVulnerabilityWireFormat(t *testing.T) {
	score := 9.8
	v := Vulnerability{
		ID:             "v1",
		Name:           "Unpatched EHR server",
		CVSSScore:      &score,
		Severity:       SeverityCritical,
		AffectedAssets: []string{"ehr-prod-01"},
		CVEID:          "CVE-2024-21413",
	}

	data, err := json.Marshal(v)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "cvssScore")
	assert.Contains(t, decoded, "affectedAssets")
	assert.Contains(t, decoded, "cveId")

	// Absent score serializes as explicit null, not zero.
	data, err = json.Marshal(Vulnerability{ID: "v2", Name: "n"})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Nil(t, decoded["cvssScore"])
}

func TestTotalRiskProfileWireFormat(t *testing.T) {
	profile := TotalRiskProfile{
		ClientID: "acme-1a2b3c4d",
		TotalALE: 16320000,
		IndividualRisks: []RiskCalculation{
			{VulnerabilityID: "v1", AnnualizedLossExpectancy: 16320000},
		},
	}

	data, err := json.Marshal(profile)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "totalALE")
	assert.Contains(t, decoded, "individualRisks")
	assert.Contains(t, decoded, "riskByCategory")

	risks := decoded["individualRisks"].([]interface{})
	first := risks[0].(map[string]interface{})
	assert.Contains(t, first, "annualizedLossExpectancy")
	assert.Contains(t, first, "calculationDetails")
}

func TestHasCVE(t *testing.T) {
	assert.True(t, Vulnerability{CVEID: "CVE-2024-1"}.HasCVE())
	assert.False(t, Vulnerability{}.HasCVE())
}
