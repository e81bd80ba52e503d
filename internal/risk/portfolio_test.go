package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GrayITguy/msp-risk-proposal/internal/breachcost"
	"github.com/GrayITguy/msp-risk-proposal/internal/coefficients"
	"github.com/GrayITguy/msp-risk-proposal/pkg/models"
)

type staticIDGen struct {
	id string
}

func (g staticIDGen) NewClientID(string) string { return g.id }

var testCalculatedAt = time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)

func newTestEngine() *Engine {
	calc := NewCalculator(coefficients.DefaultTable(), breachcost.DefaultDataset())
	engine := NewEngine(calc, staticIDGen{id: "mercy-family-practice-a1b2c3d4"})
	engine.now = func() time.Time { return testCalculatedAt }
	return engine
}

func portfolioVuln(id string, score float64, severity models.Severity) models.Vulnerability {
	return models.Vulnerability{
		ID:             id,
		Name:           "Finding " + id,
		CVSSScore:      scoreOf(score),
		Severity:       severity,
		AffectedAssets: []string{"asset-" + id},
	}
}

func TestCalculatePortfolioRiskAssemblesProfile(t *testing.T) {
	engine := newTestEngine()
	vulns := []models.Vulnerability{
		portfolioVuln("v1", 9.8, models.SeverityCritical),
		portfolioVuln("v2", 7.5, models.SeverityHigh),
		portfolioVuln("v3", 4.2, models.SeverityMedium),
	}

	profile, skipped, err := engine.CalculatePortfolioRisk(vulns, healthcareClient())
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Empty(t, skipped)

	assert.Equal(t, "mercy-family-practice-a1b2c3d4", profile.ClientID)
	assert.Equal(t, "Mercy Family Practice", profile.CompanyName)
	assert.Equal(t, models.IndustryHealthcare, profile.Industry)
	assert.Equal(t, testCalculatedAt, profile.CalculatedAt)
	require.Len(t, profile.IndividualRisks, 3)

	// individualRisks keeps input order.
	assert.Equal(t, "v1", profile.IndividualRisks[0].VulnerabilityID)
	assert.Equal(t, "v2", profile.IndividualRisks[1].VulnerabilityID)
	assert.Equal(t, "v3", profile.IndividualRisks[2].VulnerabilityID)
}

func TestTotalALEMatchesSumOfIndividualRisks(t *testing.T) {
	engine := newTestEngine()
	vulns := []models.Vulnerability{
		portfolioVuln("v1", 9.1, models.SeverityCritical),
		portfolioVuln("v2", 8.2, models.SeverityHigh),
		portfolioVuln("v3", 6.6, models.SeverityMedium),
		portfolioVuln("v4", 3.1, models.SeverityLow),
	}

	profile, _, err := engine.CalculatePortfolioRisk(vulns, healthcareClient())
	require.NoError(t, err)

	sum := 0.0
	for _, risk := range profile.IndividualRisks {
		sum += risk.AnnualizedLossExpectancy
	}
	assert.Equal(t, sum, profile.TotalALE)
	assert.Equal(t, profile.TotalALE, profile.RiskByCategory.Total())
}

func TestRiskByCategoryUsesDeclaredSeverity(t *testing.T) {
	engine := newTestEngine()

	// Declared "high" but the 9.5 score lands in the critical band for
	// exposure and occurrence. The bucket follows the declared tag; the
	// dollar figures follow the score.
	vulns := []models.Vulnerability{portfolioVuln("v1", 9.5, models.SeverityHigh)}

	profile, _, err := engine.CalculatePortfolioRisk(vulns, healthcareClient())
	require.NoError(t, err)

	assert.Zero(t, profile.RiskByCategory.Critical)
	assert.Equal(t, profile.TotalALE, profile.RiskByCategory.High)
	assert.Equal(t, 1.00, profile.IndividualRisks[0].Details.ExposureFactor)
	assert.Equal(t, 0.40, profile.IndividualRisks[0].AnnualRateOfOccurrence)
}

func TestPortfolioSkipsBadVulnerabilitiesAndContinues(t *testing.T) {
	engine := newTestEngine()
	vulns := []models.Vulnerability{
		portfolioVuln("v1", 9.8, models.SeverityCritical),
		{ID: "v2", Name: "No score", Severity: models.SeverityHigh},
		portfolioVuln("v3", 15.0, models.SeverityHigh),
		portfolioVuln("v4", 5.5, models.SeverityMedium),
	}

	profile, skipped, err := engine.CalculatePortfolioRisk(vulns, healthcareClient())
	require.NoError(t, err)
	require.NotNil(t, profile)

	require.Len(t, profile.IndividualRisks, 2)
	assert.Equal(t, "v1", profile.IndividualRisks[0].VulnerabilityID)
	assert.Equal(t, "v4", profile.IndividualRisks[1].VulnerabilityID)

	require.Len(t, skipped, 2)
	assert.Equal(t, "v2", skipped[0].VulnerabilityID)
	assert.Equal(t, "missing CVSS score", skipped[0].Reason)
	assert.Equal(t, "v3", skipped[1].VulnerabilityID)
	assert.Contains(t, skipped[1].Reason, "15.00")
}

func TestPortfolioEmptyInput(t *testing.T) {
	engine := newTestEngine()

	profile, skipped, err := engine.CalculatePortfolioRisk(nil, healthcareClient())

	var noVulns *NoVulnerabilitiesError
	require.ErrorAs(t, err, &noVulns)
	assert.Equal(t, "Mercy Family Practice", noVulns.CompanyName)
	assert.Nil(t, profile)
	assert.Nil(t, skipped)
}

func TestPortfolioAllCalculationsFailed(t *testing.T) {
	engine := newTestEngine()
	vulns := []models.Vulnerability{
		portfolioVuln("v1", 11.0, models.SeverityCritical),
		portfolioVuln("v2", 11.0, models.SeverityHigh),
	}

	profile, skipped, err := engine.CalculatePortfolioRisk(vulns, healthcareClient())

	var allFailed *AllCalculationsFailedError
	require.ErrorAs(t, err, &allFailed)
	assert.Nil(t, profile)
	require.Len(t, allFailed.Skipped, 2)
	assert.Equal(t, allFailed.Skipped, skipped)
	assert.Equal(t, "v1", allFailed.Skipped[0].VulnerabilityID)
}

func TestTopRisksCappedAndDescending(t *testing.T) {
	engine := newTestEngine()

	// For one client the ALE figure depends only on the severity band, so
	// same-band findings tie and the stable sort keeps their input order.
	scores := []float64{3.0, 9.9, 5.0, 7.1, 9.1, 4.5, 8.0}
	vulns := make([]models.Vulnerability, 0, len(scores))
	for i, score := range scores {
		vulns = append(vulns, portfolioVuln(
			string(rune('a'+i)), score, models.SeverityMedium))
	}

	profile, _, err := engine.CalculatePortfolioRisk(vulns, healthcareClient())
	require.NoError(t, err)

	require.Len(t, profile.TopRisks, 5)
	for i := 1; i < len(profile.TopRisks); i++ {
		assert.GreaterOrEqual(t,
			profile.TopRisks[i-1].AnnualizedLossExpectancy,
			profile.TopRisks[i].AnnualizedLossExpectancy)
	}

	// critical ties (b, e), high ties (d, g), then the first medium (c);
	// the second medium and the low finding fall off.
	got := make([]string, 0, len(profile.TopRisks))
	for _, risk := range profile.TopRisks {
		got = append(got, risk.VulnerabilityID)
	}
	assert.Equal(t, []string{"b", "e", "d", "g", "c"}, got)
}

func TestTopRisksStableUnderInputPermutation(t *testing.T) {
	engine := newTestEngine()

	// One score per band, so the four ALE figures are all distinct and
	// the ranking is independent of input order.
	vulns := []models.Vulnerability{
		portfolioVuln("low", 2.0, models.SeverityLow),
		portfolioVuln("medium", 5.0, models.SeverityMedium),
		portfolioVuln("high", 8.0, models.SeverityHigh),
		portfolioVuln("critical", 9.5, models.SeverityCritical),
	}

	profile, _, err := engine.CalculatePortfolioRisk(vulns, healthcareClient())
	require.NoError(t, err)

	reversed := make([]models.Vulnerability, len(vulns))
	for i, v := range vulns {
		reversed[len(vulns)-1-i] = v
	}
	again, _, err := engine.CalculatePortfolioRisk(reversed, healthcareClient())
	require.NoError(t, err)

	require.Len(t, profile.TopRisks, 4)
	require.Len(t, again.TopRisks, 4)
	for i := range profile.TopRisks {
		assert.Equal(t, profile.TopRisks[i].VulnerabilityID, again.TopRisks[i].VulnerabilityID)
	}
	assert.Equal(t, "critical", profile.TopRisks[0].VulnerabilityID)
	assert.Equal(t, "low", profile.TopRisks[3].VulnerabilityID)
}

func TestTopRisksShorterThanCapAndStableOnTies(t *testing.T) {
	engine := newTestEngine()

	// Identical scores and severities produce identical ALE figures, so
	// the stable sort must keep input order.
	vulns := []models.Vulnerability{
		portfolioVuln("first", 8.0, models.SeverityHigh),
		portfolioVuln("second", 8.0, models.SeverityHigh),
		portfolioVuln("third", 8.0, models.SeverityHigh),
	}

	profile, _, err := engine.CalculatePortfolioRisk(vulns, healthcareClient())
	require.NoError(t, err)

	require.Len(t, profile.TopRisks, 3)
	assert.Equal(t, "first", profile.TopRisks[0].VulnerabilityID)
	assert.Equal(t, "second", profile.TopRisks[1].VulnerabilityID)
	assert.Equal(t, "third", profile.TopRisks[2].VulnerabilityID)
}

func TestTopRisksDoesNotReorderIndividualRisks(t *testing.T) {
	engine := newTestEngine()
	vulns := []models.Vulnerability{
		portfolioVuln("low", 2.0, models.SeverityLow),
		portfolioVuln("critical", 9.8, models.SeverityCritical),
	}

	profile, _, err := engine.CalculatePortfolioRisk(vulns, healthcareClient())
	require.NoError(t, err)

	assert.Equal(t, "low", profile.IndividualRisks[0].VulnerabilityID)
	assert.Equal(t, "critical", profile.TopRisks[0].VulnerabilityID)
}

func TestCalculateSingleRisk(t *testing.T) {
	engine := newTestEngine()

	result, err := engine.CalculateSingleRisk(
		portfolioVuln("v1", 9.8, models.SeverityCritical), healthcareClient())
	require.NoError(t, err)
	assert.InEpsilon(t, 16320000.0, result.AnnualizedLossExpectancy, 1e-9)

	_, err = engine.CalculateSingleRisk(
		models.Vulnerability{ID: "v2", Name: "No score"}, healthcareClient())
	var missing *MissingScoreError
	assert.ErrorAs(t, err, &missing)
}

func TestUUIDGeneratorSlugsCompanyName(t *testing.T) {
	gen := UUIDGenerator{}

	id := gen.NewClientID("Mercy Family Practice")
	assert.Regexp(t, `^mercy-family-practice-[0-9a-f]{8}$`, id)

	id = gen.NewClientID("  O'Brien & Co.  ")
	assert.Regexp(t, `^o-brien---co-[0-9a-f]{8}$`, id)

	// Two calls for the same company must differ in the random suffix.
	assert.NotEqual(t, gen.NewClientID("Acme"), gen.NewClientID("Acme"))

	// A name with no usable characters falls back to the bare suffix.
	assert.Regexp(t, `^[0-9a-f]{8}$`, gen.NewClientID("!!!"))
}

func TestEngineMetricsCounters(t *testing.T) {
	engine := newTestEngine()
	vulns := []models.Vulnerability{
		portfolioVuln("v1", 9.8, models.SeverityCritical),
		{ID: "v2", Name: "No score", Severity: models.SeverityHigh},
	}

	_, _, err := engine.CalculatePortfolioRisk(vulns, healthcareClient())
	require.NoError(t, err)
	_, _, err = engine.CalculatePortfolioRisk(nil, healthcareClient())
	require.Error(t, err)

	snap := engine.Metrics()
	assert.Equal(t, int64(1), snap.AssessmentsCompleted)
	assert.Equal(t, int64(1), snap.AssessmentsFailed)
	assert.Equal(t, int64(2), snap.CalculationsPerformed)
	assert.Equal(t, int64(1), snap.CalculationsSkipped)
	assert.Equal(t, int64(1), snap.SkipReasons["missing CVSS score"])
	assert.False(t, snap.LastAssessment.IsZero())
}
