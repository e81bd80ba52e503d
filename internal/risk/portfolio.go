package risk

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GrayITguy/msp-risk-proposal/pkg/models"
)

// topRiskCount is how many of the highest-ALE calculations a profile
// surfaces in its topRisks list.
const topRiskCount = 5

// IDGenerator mints client identifiers for freshly assembled profiles.
// The default implementation is random; tests inject a deterministic one.
type IDGenerator interface {
	NewClientID(companyName string) string
}

// UUIDGenerator derives client identifiers from the lowercased company
// name, with every non-alphanumeric character replaced by a dash and a
// short random suffix appended for uniqueness.
type UUIDGenerator struct{}

// NewClientID implements IDGenerator.
func (UUIDGenerator) NewClientID(companyName string) string {
	slug := models.Slug(companyName)
	suffix := uuid.NewString()[:8]
	if slug == "" {
		return suffix
	}
	return slug + "-" + suffix
}

// Engine runs the calculator across a vulnerability portfolio and folds
// the results into a total risk profile. It is the only component with
// partial-failure semantics: per-item errors become recorded skips, and
// only an empty batch or a batch with zero successes fails the call.
type Engine struct {
	calculator *Calculator
	idGen      IDGenerator
	now        func() time.Time
	metrics    *engineMetrics
}

// NewEngine creates a portfolio engine around a calculator. A nil idGen
// falls back to the random UUIDGenerator.
func NewEngine(calculator *Calculator, idGen IDGenerator) *Engine {
	if idGen == nil {
		idGen = UUIDGenerator{}
	}
	return &Engine{
		calculator: calculator,
		idGen:      idGen,
		now:        func() time.Time { return time.Now().UTC() },
		metrics: &engineMetrics{
			SkipReasons: make(map[string]int64),
		},
	}
}

// CalculateSingleRisk computes the risk of one vulnerability. It exists so
// callers that want a single figure do not have to fabricate a batch.
func (e *Engine) CalculateSingleRisk(vuln models.Vulnerability, client models.ClientContext) (models.RiskCalculation, error) {
	calc, err := e.calculator.CalculateRisk(vuln, client)
	e.metrics.recordCalculation(err)
	if err != nil {
		return models.RiskCalculation{}, err
	}
	return calc, nil
}

// CalculatePortfolioRisk runs the calculator over every vulnerability and
// assembles the profile. It returns the skip list alongside the profile so
// callers can report which findings were excluded and why; skips are
// diagnostics, not an error.
func (e *Engine) CalculatePortfolioRisk(vulns []models.Vulnerability, client models.ClientContext) (*models.TotalRiskProfile, []models.SkippedVulnerability, error) {
	if len(vulns) == 0 {
		e.metrics.recordAssessment(false)
		return nil, nil, &NoVulnerabilitiesError{CompanyName: client.CompanyName}
	}

	// Two-list accumulator: successes feed the profile, failures become
	// skip records. One bad vulnerability never aborts the batch.
	risks := make([]models.RiskCalculation, 0, len(vulns))
	skipped := make([]models.SkippedVulnerability, 0)
	var categories models.RiskByCategory
	totalALE := 0.0

	for _, vuln := range vulns {
		calc, err := e.calculator.CalculateRisk(vuln, client)
		e.metrics.recordCalculation(err)
		if err != nil {
			log.Printf("Skipping vulnerability %s for %s: %v", vuln.ID, client.CompanyName, err)
			skipped = append(skipped, models.SkippedVulnerability{
				VulnerabilityID: vuln.ID,
				Reason:          skipReason(err),
			})
			continue
		}

		risks = append(risks, calc)
		totalALE += calc.AnnualizedLossExpectancy
		// Bucketing trusts the severity tag the scanner declared, not the
		// band the calculator derived from the score.
		categories.Add(vuln.Severity, calc.AnnualizedLossExpectancy)
	}

	if len(risks) == 0 {
		e.metrics.recordAssessment(false)
		return nil, skipped, &AllCalculationsFailedError{Skipped: skipped}
	}

	profile := &models.TotalRiskProfile{
		ClientID:        e.idGen.NewClientID(client.CompanyName),
		CompanyName:     client.CompanyName,
		Industry:        models.NormalizeIndustry(string(client.Industry)),
		CalculatedAt:    e.now(),
		IndividualRisks: risks,
		TotalALE:        totalALE,
		RiskByCategory:  categories,
		TopRisks:        topRisks(risks),
	}

	e.metrics.recordAssessment(true)
	return profile, skipped, nil
}

// topRisks returns the highest-ALE calculations in descending order,
// capped at topRiskCount. The sort is stable so ties keep their input
// order, and it operates on a copy so the profile's individualRisks list
// stays in input order.
func topRisks(risks []models.RiskCalculation) []models.RiskCalculation {
	ranked := make([]models.RiskCalculation, len(risks))
	copy(ranked, risks)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].AnnualizedLossExpectancy > ranked[j].AnnualizedLossExpectancy
	})
	if len(ranked) > topRiskCount {
		ranked = ranked[:topRiskCount]
	}
	return ranked
}

// MetricsSnapshot is a point-in-time copy of the engine counters, exposed
// on the metrics endpoint.
type MetricsSnapshot struct {
	AssessmentsCompleted  int64            `json:"assessmentsCompleted"`
	AssessmentsFailed     int64            `json:"assessmentsFailed"`
	CalculationsPerformed int64            `json:"calculationsPerformed"`
	CalculationsSkipped   int64            `json:"calculationsSkipped"`
	SkipReasons           map[string]int64 `json:"skipReasons"`
	LastAssessment        time.Time        `json:"lastAssessment"`
}

// Metrics returns a snapshot of the engine counters.
func (e *Engine) Metrics() MetricsSnapshot {
	return e.metrics.snapshot()
}

type engineMetrics struct {
	mu                    sync.RWMutex
	AssessmentsCompleted  int64
	AssessmentsFailed     int64
	CalculationsPerformed int64
	CalculationsSkipped   int64
	SkipReasons           map[string]int64
	LastAssessment        time.Time
}

func (m *engineMetrics) recordCalculation(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CalculationsPerformed++
	if err != nil {
		m.CalculationsSkipped++
		m.SkipReasons[skipReason(err)]++
	}
}

func (m *engineMetrics) recordAssessment(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ok {
		m.AssessmentsCompleted++
	} else {
		m.AssessmentsFailed++
	}
	m.LastAssessment = time.Now()
}

func (m *engineMetrics) snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	reasons := make(map[string]int64, len(m.SkipReasons))
	for reason, count := range m.SkipReasons {
		reasons[reason] = count
	}
	return MetricsSnapshot{
		AssessmentsCompleted:  m.AssessmentsCompleted,
		AssessmentsFailed:     m.AssessmentsFailed,
		CalculationsPerformed: m.CalculationsPerformed,
		CalculationsSkipped:   m.CalculationsSkipped,
		SkipReasons:           reasons,
		LastAssessment:        m.LastAssessment,
	}
}
