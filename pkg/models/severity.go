package models

// Severity represents a vulnerability severity level as declared by the
// scanner that produced the finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// AllSeverities lists every severity bucket in display order.
func AllSeverities() []Severity {
	return []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}
}

// Valid reports whether the severity is one of the known buckets.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// SeverityFromScore maps a CVSS base score onto its severity band.
// Band boundaries follow CVSS v3: >=9.0 critical, >=7.0 high, >=4.0 medium,
// everything below is low. The declared severity tag on a Vulnerability is
// display metadata; calculation code always re-derives the band from the
// numeric score via this function.
func SeverityFromScore(score float64) Severity {
	switch {
	case score >= 9.0:
		return SeverityCritical
	case score >= 7.0:
		return SeverityHigh
	case score >= 4.0:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// ConfidenceLevel represents how much supporting evidence backs a risk
// calculation.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)
