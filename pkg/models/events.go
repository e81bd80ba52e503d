package models

import "time"

// EventType represents the type of platform event published to downstream
// consumers after engine work completes.
type EventType string

const (
	EventTypeAssessmentCompleted EventType = "assessment.completed"
	EventTypeAssessmentFailed    EventType = "assessment.failed"
	EventTypeProposalGenerated   EventType = "proposal.generated"
)

// AssessmentEvent represents the envelope published for assessment
// lifecycle events. Events are emitted after the risk calculation has
// finished; a publish failure never affects the returned profile.
type AssessmentEvent struct {
	ID                 string            `json:"id"`
	Type               EventType         `json:"type"`
	Timestamp          time.Time         `json:"timestamp"`
	ClientID           string            `json:"clientId"`
	CompanyName        string            `json:"companyName"`
	Industry           Industry          `json:"industry"`
	TotalALE           float64           `json:"totalALE,omitempty"`
	VulnerabilityCount int               `json:"vulnerabilityCount,omitempty"`
	SkippedCount       int               `json:"skippedCount,omitempty"`
	Reason             string            `json:"reason,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}
