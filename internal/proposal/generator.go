package proposal

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"

	"github.com/GrayITguy/msp-risk-proposal/pkg/models"
)

// ProseClient is the narrow slice of the chat-completion API the generator
// consumes. The real client is openai.Client; tests substitute a canned one.
type ProseClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// RemediationSource supplies knowledge-base guidance used to ground the
// proposal's recommendations. Optional; a nil source simply produces a
// proposal without curated remediation references.
type RemediationSource interface {
	SuggestRemediations(ctx context.Context, vuln models.Vulnerability, limit int) ([]models.RemediationArticle, error)
}

// Config holds prose-generation settings.
type Config struct {
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the default generation settings.
func DefaultConfig() Config {
	return Config{
		Model:       openai.GPT4,
		Temperature: 0.7,
		MaxTokens:   1500,
		Timeout:     60 * time.Second,
	}
}

// Generator turns risk profiles into client-facing proposal text. It lives
// strictly downstream of the engine: a slow or failing prose backend can
// never affect a risk calculation.
type Generator struct {
	client       ProseClient
	remediations RemediationSource
	config       Config
}

// NewGenerator creates a generator. remediations may be nil.
func NewGenerator(client ProseClient, remediations RemediationSource, config Config) *Generator {
	return &Generator{
		client:       client,
		remediations: remediations,
		config:       config,
	}
}

// GenerateProposal produces an executive proposal for a completed
// assessment.
func (g *Generator) GenerateProposal(ctx context.Context, client models.ClientContext, profile *models.TotalRiskProfile) (*models.Proposal, error) {
	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	hints, sources := g.remediationHints(ctx, profile)
	prompt := buildProposalPrompt(client, profile, hints)

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: g.config.Temperature,
		MaxTokens:   g.config.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate proposal: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("proposal backend returned no choices")
	}

	return &models.Proposal{
		ID:          uuid.New().String(),
		ClientID:    profile.ClientID,
		CompanyName: client.CompanyName,
		GeneratedAt: time.Now().UTC(),
		Model:       g.config.Model,
		Content:     resp.Choices[0].Message.Content,
		Sources:     sources,
	}, nil
}

// GenerateRiskNarrative produces a short business-language paragraph for a
// single calculated risk.
func (g *Generator) GenerateRiskNarrative(ctx context.Context, vuln models.Vulnerability, calc models.RiskCalculation) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildNarrativePrompt(vuln, calc),
			},
		},
		Temperature: g.config.Temperature,
		MaxTokens:   300,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate risk narrative: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("narrative backend returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

const systemPrompt = "You are a security advisor at a managed service provider, " +
	"writing for small-business owners. Be concrete about dollar figures, " +
	"avoid jargon, and never invent numbers that are not in the briefing."

// remediationHints gathers knowledge-base guidance for the top risks. KB
// failures are logged and swallowed; proposals must not fail because the
// knowledge base is down.
func (g *Generator) remediationHints(ctx context.Context, profile *models.TotalRiskProfile) ([]models.RemediationArticle, []string) {
	if g.remediations == nil {
		return nil, nil
	}

	var hints []models.RemediationArticle
	var sources []string
	seen := make(map[string]bool)

	for _, risk := range profile.TopRisks {
		vuln := models.Vulnerability{ID: risk.VulnerabilityID, Name: risk.VulnerabilityName}
		articles, err := g.remediations.SuggestRemediations(ctx, vuln, 2)
		if err != nil {
			log.Printf("Failed to fetch remediations for %s: %v", risk.VulnerabilityID, err)
			continue
		}
		for _, article := range articles {
			if seen[article.ID] {
				continue
			}
			seen[article.ID] = true
			hints = append(hints, article)
			sources = append(sources, article.Title)
		}
	}
	return hints, sources
}

// buildProposalPrompt assembles the briefing the model writes from. Every
// figure is preformatted here so the model has no arithmetic to do.
func buildProposalPrompt(client models.ClientContext, profile *models.TotalRiskProfile, hints []models.RemediationArticle) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Write a security proposal for %s, a %s company with %d employees and %s in annual revenue.\n\n",
		client.CompanyName, client.Industry, client.EmployeeCount, formatUSD(client.AnnualRevenue))

	fmt.Fprintf(&b, "Our assessment quantified their annualized loss expectancy at %s across %d findings.\n",
		formatUSD(profile.TotalALE), len(profile.IndividualRisks))
	fmt.Fprintf(&b, "Risk by severity: critical %s, high %s, medium %s, low %s.\n\n",
		formatUSD(profile.RiskByCategory.Critical),
		formatUSD(profile.RiskByCategory.High),
		formatUSD(profile.RiskByCategory.Medium),
		formatUSD(profile.RiskByCategory.Low))

	b.WriteString("Top risks by expected annual loss:\n")
	for i, risk := range profile.TopRisks {
		fmt.Fprintf(&b, "%d. %s: %s per year (confidence: %s)\n",
			i+1, risk.VulnerabilityName, formatUSD(risk.AnnualizedLossExpectancy), risk.Confidence)
	}

	if len(client.CriticalSystems) > 0 {
		fmt.Fprintf(&b, "\nSystems the client considers critical: %s.\n", strings.Join(client.CriticalSystems, ", "))
	}
	if len(client.ComplianceRequirements) > 0 {
		fmt.Fprintf(&b, "Compliance obligations: %s.\n", strings.Join(client.ComplianceRequirements, ", "))
	}

	if len(hints) > 0 {
		b.WriteString("\nCurated remediation guidance to draw on:\n")
		for _, hint := range hints {
			fmt.Fprintf(&b, "- %s: %s\n", hint.Title, hint.Content)
		}
	}

	b.WriteString("\nStructure: executive summary, what the numbers mean, recommended ")
	b.WriteString("remediation roadmap, and proposed next steps with our team.")
	return b.String()
}

func buildNarrativePrompt(vuln models.Vulnerability, calc models.RiskCalculation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Explain the business risk of the finding %q in one paragraph.\n", vuln.Name)
	if vuln.Description != "" {
		fmt.Fprintf(&b, "Technical description: %s\n", vuln.Description)
	}
	if vuln.CVEID != "" {
		fmt.Fprintf(&b, "Tracked as %s.\n", vuln.CVEID)
	}
	fmt.Fprintf(&b, "A single incident is expected to cost %s; over a year the expected loss is %s.\n",
		formatUSD(calc.SingleLossExpectancy), formatUSD(calc.AnnualizedLossExpectancy))
	if len(vuln.AffectedAssets) > 0 {
		fmt.Fprintf(&b, "Affected systems: %s.\n", strings.Join(vuln.AffectedAssets, ", "))
	}
	return b.String()
}

// formatUSD renders a dollar amount with thousands separators and no
// cents; proposal copy never needs sub-dollar precision.
func formatUSD(amount float64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}

	whole := fmt.Sprintf("%.0f", amount)
	var b strings.Builder
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}

	if neg {
		return "-$" + b.String()
	}
	return "$" + b.String()
}
