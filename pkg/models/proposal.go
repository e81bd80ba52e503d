package models

import "time"

// Proposal represents a generated business proposal for a client, produced
// from a TotalRiskProfile by the prose-generation service.
type Proposal struct {
	ID          string    `json:"id"`
	ClientID    string    `json:"clientId"`
	CompanyName string    `json:"companyName"`
	GeneratedAt time.Time `json:"generatedAt"`
	Model       string    `json:"model"`
	Content     string    `json:"content"`
	Sources     []string  `json:"sources,omitempty"`
}
