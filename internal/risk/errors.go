package risk

import (
	"errors"
	"fmt"

	"github.com/GrayITguy/msp-risk-proposal/pkg/models"
)

// MissingScoreError reports a vulnerability that arrived without a CVSS
// score. Raised by the calculator; the portfolio engine downgrades it to a
// recorded skip.
type MissingScoreError struct {
	VulnerabilityID string
}

func (e *MissingScoreError) Error() string {
	return fmt.Sprintf("vulnerability %s has no CVSS score", e.VulnerabilityID)
}

// InvalidScoreError reports a CVSS score outside the valid [0.0, 10.0]
// range.
type InvalidScoreError struct {
	VulnerabilityID string
	Score           float64
}

func (e *InvalidScoreError) Error() string {
	return fmt.Sprintf("vulnerability %s has CVSS score %.2f outside the valid range 0.0-10.0",
		e.VulnerabilityID, e.Score)
}

// NoVulnerabilitiesError reports an assessment request with an empty
// vulnerability list. Fatal to the call: there is nothing to compute.
type NoVulnerabilitiesError struct {
	CompanyName string
}

func (e *NoVulnerabilitiesError) Error() string {
	return fmt.Sprintf("no vulnerabilities supplied for %s", e.CompanyName)
}

// AllCalculationsFailedError reports a batch where every vulnerability was
// skipped. It carries the full skip list so callers can tell "no input"
// apart from "bad input throughout".
type AllCalculationsFailedError struct {
	Skipped []models.SkippedVulnerability
}

func (e *AllCalculationsFailedError) Error() string {
	return fmt.Sprintf("all %d vulnerability calculations failed", len(e.Skipped))
}

// skipReason condenses a per-item calculator error into the short reason
// string recorded on the skip entry. The vulnerability id lives on the skip
// entry itself, so the reason stays free of it.
func skipReason(err error) string {
	var missing *MissingScoreError
	if errors.As(err, &missing) {
		return "missing CVSS score"
	}
	var invalid *InvalidScoreError
	if errors.As(err, &invalid) {
		return fmt.Sprintf("CVSS score %.2f outside the valid range 0.0-10.0", invalid.Score)
	}
	return err.Error()
}
