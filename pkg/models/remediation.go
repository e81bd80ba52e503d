package models

import "time"

// RemediationArticle represents one entry in the remediation knowledge
// base: curated guidance text with an embedding stored alongside it for
// semantic lookup. Similarity is populated on search results only.
type RemediationArticle struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Tags       []string  `json:"tags,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	Similarity float64   `json:"similarity,omitempty"`
}
