package coefficients

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/GrayITguy/msp-risk-proposal/pkg/models"
)

// Table holds every calibration constant the risk calculator consumes:
// severity-banded exposure factors and occurrence rates, industry
// records-per-employee multipliers, and confidence-scoring weights.
//
// A Table is an immutable value injected into the calculator at
// construction time. Recalibrating the engine means editing the
// coefficients file and restarting, never touching calculation code.
type Table struct {
	ExposureFactors    map[models.Severity]float64 `yaml:"exposure_factors" json:"exposureFactors"`
	OccurrenceRates    map[models.Severity]float64 `yaml:"occurrence_rates" json:"occurrenceRates"`
	RecordsPerEmployee map[models.Industry]int     `yaml:"records_per_employee" json:"recordsPerEmployee"`
	Confidence         ConfidenceWeights           `yaml:"confidence" json:"confidence"`
}

// ConfidenceWeights holds the additive weights and thresholds behind the
// calculator's confidence rating.
type ConfidenceWeights struct {
	HasCVE                 int `yaml:"has_cve" json:"hasCve"`
	ValidCVSS              int `yaml:"valid_cvss" json:"validCvss"`
	IndustrySpecific       int `yaml:"industry_specific" json:"industrySpecific"`
	HighSeverityWithAssets int `yaml:"high_severity_with_assets" json:"highSeverityWithAssets"`
	HighThreshold          int `yaml:"high_threshold" json:"highThreshold"`
	MediumThreshold        int `yaml:"medium_threshold" json:"mediumThreshold"`
}

// DefaultTable returns the shipped calibration. The exposure factor and
// occurrence rate per band, and the records-per-employee figures, are
// calibration constants, not semantics; deployments override them via
// LoadTable without code changes.
func DefaultTable() Table {
	return Table{
		ExposureFactors: map[models.Severity]float64{
			models.SeverityCritical: 1.00,
			models.SeverityHigh:     0.75,
			models.SeverityMedium:   0.40,
			models.SeverityLow:      0.15,
		},
		OccurrenceRates: map[models.Severity]float64{
			models.SeverityCritical: 0.40,
			models.SeverityHigh:     0.25,
			models.SeverityMedium:   0.10,
			models.SeverityLow:      0.03,
		},
		RecordsPerEmployee: map[models.Industry]int{
			models.IndustryHealthcare:           2000,
			models.IndustryFinancial:            3500,
			models.IndustryRetail:               5000,
			models.IndustryManufacturing:        800,
			models.IndustryProfessionalServices: 1200,
			models.IndustryEducation:            2500,
			models.IndustryGovernment:           4000,
			models.IndustryTechnology:           3000,
			models.IndustryOther:                1000,
		},
		Confidence: ConfidenceWeights{
			HasCVE:                 30,
			ValidCVSS:              25,
			IndustrySpecific:       25,
			HighSeverityWithAssets: 20,
			HighThreshold:          75,
			MediumThreshold:        50,
		},
	}
}

// ExposureFactor returns the fraction of asset value lost in a single
// occurrence for the severity band the score falls in. Total over all
// inputs: any float maps to a band, every band has a factor.
func (t Table) ExposureFactor(cvssScore float64) float64 {
	return t.ExposureFactors[models.SeverityFromScore(cvssScore)]
}

// AnnualRateOfOccurrence returns the probability of the vulnerability
// being exploited within a year for the score's severity band.
func (t Table) AnnualRateOfOccurrence(cvssScore float64) float64 {
	return t.OccurrenceRates[models.SeverityFromScore(cvssScore)]
}

// RecordsPerEmployeeFor returns the estimated records held per employee
// for the industry, falling back to the "other" entry for anything
// unrecognized. The "other" entry always exists in a valid table, so the
// lookup never fails.
func (t Table) RecordsPerEmployeeFor(industry models.Industry) int {
	if n, ok := t.RecordsPerEmployee[industry]; ok {
		return n
	}
	return t.RecordsPerEmployee[models.IndustryOther]
}

// Validate checks the invariants a usable table must satisfy: a factor and
// rate for every severity band, and an "other" records fallback.
func (t Table) Validate() error {
	for _, sev := range models.AllSeverities() {
		if _, ok := t.ExposureFactors[sev]; !ok {
			return fmt.Errorf("exposure factor missing for severity %q", sev)
		}
		if _, ok := t.OccurrenceRates[sev]; !ok {
			return fmt.Errorf("occurrence rate missing for severity %q", sev)
		}
	}
	if _, ok := t.RecordsPerEmployee[models.IndustryOther]; !ok {
		return fmt.Errorf("records_per_employee must include an %q fallback entry", models.IndustryOther)
	}
	if t.Confidence.HighThreshold < t.Confidence.MediumThreshold {
		return fmt.Errorf("confidence high_threshold %d below medium_threshold %d",
			t.Confidence.HighThreshold, t.Confidence.MediumThreshold)
	}
	return nil
}

// LoadTable reads a coefficients file and overlays it on the defaults, so
// partial files stay total: any band or industry the file omits keeps its
// shipped value.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("failed to read coefficients file: %w", err)
	}

	var loaded Table
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return Table{}, fmt.Errorf("failed to parse coefficients file: %w", err)
	}

	table := DefaultTable()
	for sev, factor := range loaded.ExposureFactors {
		table.ExposureFactors[sev] = factor
	}
	for sev, rate := range loaded.OccurrenceRates {
		table.OccurrenceRates[sev] = rate
	}
	for industry, n := range loaded.RecordsPerEmployee {
		table.RecordsPerEmployee[industry] = n
	}
	if loaded.Confidence != (ConfidenceWeights{}) {
		table.Confidence = loaded.Confidence
	}

	if err := table.Validate(); err != nil {
		return Table{}, fmt.Errorf("invalid coefficients file: %w", err)
	}
	return table, nil
}
