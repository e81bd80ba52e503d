package proposal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GrayITguy/msp-risk-proposal/pkg/models"
)

type cannedProseClient struct {
	content string
	err     error
	lastReq openai.ChatCompletionRequest
}

func (c *cannedProseClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.lastReq = req
	if c.err != nil {
		return openai.ChatCompletionResponse{}, c.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: c.content}},
		},
	}, nil
}

type cannedRemediations struct {
	articles []models.RemediationArticle
	err      error
}

func (c *cannedRemediations) SuggestRemediations(context.Context, models.Vulnerability, int) ([]models.RemediationArticle, error) {
	return c.articles, c.err
}

func sampleProfile() *models.TotalRiskProfile {
	return &models.TotalRiskProfile{
		ClientID:     "mercy-family-practice-a1b2c3d4",
		CompanyName:  "Mercy Family Practice",
		Industry:     models.IndustryHealthcare,
		CalculatedAt: time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC),
		IndividualRisks: []models.RiskCalculation{
			{
				VulnerabilityID:          "v1",
				VulnerabilityName:        "Unpatched EHR server",
				SingleLossExpectancy:     40800000,
				AnnualRateOfOccurrence:   0.4,
				AnnualizedLossExpectancy: 16320000,
				Confidence:               models.ConfidenceHigh,
			},
		},
		TotalALE:       16320000,
		RiskByCategory: models.RiskByCategory{Critical: 16320000},
		TopRisks: []models.RiskCalculation{
			{
				VulnerabilityID:          "v1",
				VulnerabilityName:        "Unpatched EHR server",
				AnnualizedLossExpectancy: 16320000,
				Confidence:               models.ConfidenceHigh,
			},
		},
	}
}

func sampleClient() models.ClientContext {
	return models.ClientContext{
		CompanyName:            "Mercy Family Practice",
		Industry:               models.IndustryHealthcare,
		AnnualRevenue:          8500000,
		EmployeeCount:          50,
		CriticalSystems:        []string{"EHR", "Patient portal"},
		ComplianceRequirements: []string{"HIPAA"},
	}
}

func TestGenerateProposal(t *testing.T) {
	prose := &cannedProseClient{content: "## Executive Summary\n..."}
	gen := NewGenerator(prose, nil, DefaultConfig())

	prop, err := gen.GenerateProposal(context.Background(), sampleClient(), sampleProfile())
	require.NoError(t, err)

	assert.NotEmpty(t, prop.ID)
	assert.Equal(t, "mercy-family-practice-a1b2c3d4", prop.ClientID)
	assert.Equal(t, "Mercy Family Practice", prop.CompanyName)
	assert.Equal(t, openai.GPT4, prop.Model)
	assert.Equal(t, "## Executive Summary\n...", prop.Content)
	assert.Empty(t, prop.Sources)
	assert.False(t, prop.GeneratedAt.IsZero())

	// The briefing carries preformatted figures, not raw floats.
	userMsg := prose.lastReq.Messages[1].Content
	assert.Contains(t, userMsg, "$16,320,000")
	assert.Contains(t, userMsg, "50 employees")
	assert.Contains(t, userMsg, "HIPAA")
}

func TestGenerateProposalIncludesRemediationSources(t *testing.T) {
	prose := &cannedProseClient{content: "proposal"}
	kb := &cannedRemediations{articles: []models.RemediationArticle{
		{ID: "a1", Title: "Patch management for medical devices", Content: "Patch quarterly."},
	}}
	gen := NewGenerator(prose, kb, DefaultConfig())

	prop, err := gen.GenerateProposal(context.Background(), sampleClient(), sampleProfile())
	require.NoError(t, err)

	assert.Equal(t, []string{"Patch management for medical devices"}, prop.Sources)
	assert.Contains(t, prose.lastReq.Messages[1].Content, "Patch quarterly.")
}

func TestGenerateProposalSurvivesRemediationFailure(t *testing.T) {
	prose := &cannedProseClient{content: "proposal"}
	kb := &cannedRemediations{err: errors.New("kb down")}
	gen := NewGenerator(prose, kb, DefaultConfig())

	prop, err := gen.GenerateProposal(context.Background(), sampleClient(), sampleProfile())
	require.NoError(t, err)
	assert.Empty(t, prop.Sources)
}

func TestGenerateProposalPropagatesBackendError(t *testing.T) {
	prose := &cannedProseClient{err: errors.New("rate limited")}
	gen := NewGenerator(prose, nil, DefaultConfig())

	_, err := gen.GenerateProposal(context.Background(), sampleClient(), sampleProfile())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestGenerateRiskNarrative(t *testing.T) {
	prose := &cannedProseClient{content: "One bad day away from a seven-figure loss."}
	gen := NewGenerator(prose, nil, DefaultConfig())

	vuln := models.Vulnerability{
		ID: "v1", Name: "Unpatched EHR server",
		CVEID: "CVE-2024-21413", AffectedAssets: []string{"ehr-prod-01"},
	}
	calc := models.RiskCalculation{
		SingleLossExpectancy:     40800000,
		AnnualizedLossExpectancy: 16320000,
	}

	text, err := gen.GenerateRiskNarrative(context.Background(), vuln, calc)
	require.NoError(t, err)
	assert.Equal(t, "One bad day away from a seven-figure loss.", text)

	prompt := prose.lastReq.Messages[1].Content
	assert.Contains(t, prompt, "CVE-2024-21413")
	assert.Contains(t, prompt, "$40,800,000")
	assert.Contains(t, prompt, "ehr-prod-01")
}

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		amount float64
		want   string
	}{
		{0, "$0"},
		{999, "$999"},
		{1000, "$1,000"},
		{16320000, "$16,320,000"},
		{40800000.4, "$40,800,000"},
		{-1500, "-$1,500"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatUSD(tt.amount), "amount %v", tt.amount)
	}
}
