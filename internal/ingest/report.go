package ingest

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/GrayITguy/msp-risk-proposal/pkg/models"
)

// ScanReport is the wire format of an uploaded scanner export. Scanner
// exports use snake_case keys; the mapping into the engine's camelCase
// domain model happens here and nowhere else.
type ScanReport struct {
	ScanID     string    `json:"scan_id"`
	Scanner    string    `json:"scanner"`
	ScanStatus string    `json:"scan_status"`
	StartedAt  string    `json:"started_at"`
	Summary    Summary   `json:"summary"`
	Findings   []Finding `json:"findings"`
}

// Summary is the scanner's own severity tally, carried for display and
// cross-checking but never consumed by the calculation.
type Summary struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Finding is one raw scanner finding.
type Finding struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Severity       string   `json:"severity"`
	CVSS           *CVSS    `json:"cvss"`
	CVE            string   `json:"cve"`
	AffectedAssets []string `json:"affected_assets"`
	Recommendation string   `json:"recommendation"`
}

// CVSS is the nested score block scanners emit. Base stays a plain float
// here; absence of the whole block is what maps to a missing score.
type CVSS struct {
	Base   float64 `json:"base"`
	Vector string  `json:"vector"`
}

// ParseReport decodes a scanner export and maps its findings onto the
// engine's vulnerability model. Findings without an id are dropped with a
// log line; findings without a declared severity get one derived from the
// CVSS score so downstream bucketing always has a tag to work with. A
// missing CVSS block is preserved as a nil score for the calculator to
// reject per item.
func ParseReport(data []byte) (ScanReport, []models.Vulnerability, error) {
	var report ScanReport
	if err := json.Unmarshal(data, &report); err != nil {
		return ScanReport{}, nil, fmt.Errorf("failed to parse scan report: %w", err)
	}

	vulns := make([]models.Vulnerability, 0, len(report.Findings))
	for i, finding := range report.Findings {
		if finding.ID == "" {
			log.Printf("Dropping finding %d from scan %s: no id", i, report.ScanID)
			continue
		}

		var score *float64
		if finding.CVSS != nil {
			base := finding.CVSS.Base
			score = &base
		}

		severity := models.Severity(finding.Severity)
		if !severity.Valid() {
			if score != nil {
				severity = models.SeverityFromScore(*score)
			} else {
				severity = models.SeverityLow
			}
		}

		name := finding.Title
		if name == "" {
			name = finding.ID
		}

		vulns = append(vulns, models.Vulnerability{
			ID:             finding.ID,
			Name:           name,
			Description:    finding.Description,
			CVSSScore:      score,
			Severity:       severity,
			AffectedAssets: finding.AffectedAssets,
			CVEID:          finding.CVE,
			Recommendation: finding.Recommendation,
		})
	}

	return report, vulns, nil
}
