package billing

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/usagerecord"
)

// Config holds Stripe metering settings. All fields are optional; an
// unconfigured service tracks usage locally and never calls Stripe.
type Config struct {
	APIKey              string `yaml:"api_key"`
	AssessmentItemID    string `yaml:"assessment_item_id"`
	ProposalItemID      string `yaml:"proposal_item_id"`
	BaseFeeCents        int64  `yaml:"base_fee_cents"`
	AssessmentUnitCents int64  `yaml:"assessment_unit_cents"`
	ProposalUnitCents   int64  `yaml:"proposal_unit_cents"`
	IncludedAssessments int64  `yaml:"included_assessments"`
	IncludedProposals   int64  `yaml:"included_proposals"`
}

// DefaultConfig returns the default metering tier: a flat platform fee
// with per-unit overage past the included volume.
func DefaultConfig() Config {
	return Config{
		BaseFeeCents:        14900,
		AssessmentUnitCents: 200,
		ProposalUnitCents:   500,
		IncludedAssessments: 50,
		IncludedProposals:   20,
	}
}

// InvoiceEstimate is a period invoice preview built from local counters.
// Amounts are in cents.
type InvoiceEstimate struct {
	PeriodStart time.Time     `json:"periodStart"`
	PeriodEnd   time.Time     `json:"periodEnd"`
	Items       []InvoiceItem `json:"items"`
	Currency    string        `json:"currency"`
	Total       int64         `json:"total"`
}

// InvoiceItem is a single estimate line.
type InvoiceItem struct {
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   int64  `json:"unitPrice"`
	Amount      int64  `json:"amount"`
	Type        string `json:"type"`
}

// Service meters billable platform events. Each completed assessment and
// generated proposal increments a local period counter and, when a
// subscription item is configured, posts an increment usage record to
// Stripe. A nil *Service is valid and records nothing.
type Service struct {
	config Config

	mu          sync.Mutex
	periodStart time.Time
	assessments int64
	proposals   int64
}

// NewService builds a metering service. The Stripe client key is global
// in stripe-go, so it is set once here.
func NewService(config Config) *Service {
	if config.APIKey != "" {
		stripe.Key = config.APIKey
	}
	return &Service{
		config:      config,
		periodStart: time.Now().UTC(),
	}
}

// RecordAssessment meters one completed portfolio assessment.
func (s *Service) RecordAssessment(ctx context.Context, clientID string) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	s.assessments++
	s.mu.Unlock()

	if err := s.pushUsage(s.config.AssessmentItemID, 1); err != nil {
		return fmt.Errorf("failed to record assessment usage for %s: %w", clientID, err)
	}
	return nil
}

// RecordProposal meters one generated proposal.
func (s *Service) RecordProposal(ctx context.Context, proposalID string) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	s.proposals++
	s.mu.Unlock()

	if err := s.pushUsage(s.config.ProposalItemID, 1); err != nil {
		return fmt.Errorf("failed to record proposal usage for %s: %w", proposalID, err)
	}
	return nil
}

func (s *Service) pushUsage(subscriptionItemID string, quantity int64) error {
	if subscriptionItemID == "" || s.config.APIKey == "" {
		return nil
	}
	params := &stripe.UsageRecordParams{
		SubscriptionItem: stripe.String(subscriptionItemID),
		Quantity:         stripe.Int64(quantity),
		Timestamp:        stripe.Int64(time.Now().Unix()),
		Action:           stripe.String("increment"),
	}
	if _, err := usagerecord.New(params); err != nil {
		return err
	}
	log.Printf("Recorded usage of %d against subscription item %s", quantity, subscriptionItemID)
	return nil
}

// EstimateInvoice previews the current period invoice from local counters.
func (s *Service) EstimateInvoice() *InvoiceEstimate {
	if s == nil {
		return &InvoiceEstimate{Currency: "usd"}
	}
	s.mu.Lock()
	assessments := s.assessments
	proposals := s.proposals
	periodStart := s.periodStart
	s.mu.Unlock()

	estimate := &InvoiceEstimate{
		PeriodStart: periodStart,
		PeriodEnd:   time.Now().UTC(),
		Currency:    "usd",
		Items: []InvoiceItem{
			{
				Description: "Platform fee",
				Quantity:    1,
				UnitPrice:   s.config.BaseFeeCents,
				Amount:      s.config.BaseFeeCents,
				Type:        "plan",
			},
		},
	}

	if overage := assessments - s.config.IncludedAssessments; overage > 0 {
		estimate.Items = append(estimate.Items, InvoiceItem{
			Description: fmt.Sprintf("Assessment overage (%d units)", overage),
			Quantity:    overage,
			UnitPrice:   s.config.AssessmentUnitCents,
			Amount:      overage * s.config.AssessmentUnitCents,
			Type:        "usage",
		})
	}
	if overage := proposals - s.config.IncludedProposals; overage > 0 {
		estimate.Items = append(estimate.Items, InvoiceItem{
			Description: fmt.Sprintf("Proposal overage (%d units)", overage),
			Quantity:    overage,
			UnitPrice:   s.config.ProposalUnitCents,
			Amount:      overage * s.config.ProposalUnitCents,
			Type:        "usage",
		})
	}

	for _, item := range estimate.Items {
		estimate.Total += item.Amount
	}
	return estimate
}

// ResetPeriod zeroes the local counters at a billing period rollover.
func (s *Service) ResetPeriod() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periodStart = time.Now().UTC()
	s.assessments = 0
	s.proposals = 0
}
