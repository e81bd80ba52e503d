package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/GrayITguy/msp-risk-proposal/pkg/models"
)

// Event topics
const (
	TopicAssessments = "assessments.lifecycle"
	TopicProposals   = "proposals.generated"
)

// Config holds Kafka publisher settings.
type Config struct {
	Brokers      []string      `yaml:"brokers"`
	ClientID     string        `yaml:"client_id"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

// DefaultConfig returns default publisher settings.
func DefaultConfig() Config {
	return Config{
		Brokers:      []string{"localhost:9092"},
		ClientID:     "risk-proposal-events",
		BatchTimeout: 10 * time.Millisecond,
	}
}

// Publisher emits assessment lifecycle events to Kafka. Publishing happens
// strictly after engine work completes; a broker outage costs downstream
// consumers an event, never a caller a profile.
type Publisher struct {
	writer *kafka.Writer
	config Config
}

// NewPublisher creates a Kafka publisher. Topics are set per message so
// one writer serves every topic.
func NewPublisher(config Config) *Publisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(config.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           config.BatchTimeout,
		Compression:            kafka.Gzip,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: writer, config: config}
}

// PublishAssessmentCompleted emits an event for a successful assessment.
func (p *Publisher) PublishAssessmentCompleted(ctx context.Context, profile *models.TotalRiskProfile, skippedCount int) error {
	return p.publish(ctx, TopicAssessments, AssessmentCompleted(profile, skippedCount))
}

// PublishAssessmentFailed emits an event for a batch-level failure.
func (p *Publisher) PublishAssessmentFailed(ctx context.Context, client models.ClientContext, reason string) error {
	return p.publish(ctx, TopicAssessments, AssessmentFailed(client, reason))
}

// PublishProposalGenerated emits an event for a generated proposal.
func (p *Publisher) PublishProposalGenerated(ctx context.Context, proposal *models.Proposal) error {
	return p.publish(ctx, TopicProposals, ProposalGenerated(proposal))
}

func (p *Publisher) publish(ctx context.Context, topic string, event models.AssessmentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	message := kafka.Message{
		Topic: topic,
		Key:   []byte(event.ClientID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(string(event.Type))},
			{Key: "timestamp", Value: []byte(event.Timestamp.Format(time.RFC3339))},
		},
		Time: time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}
	return nil
}

// Ping checks broker connectivity.
func (p *Publisher) Ping(ctx context.Context) error {
	conn, err := kafka.DialContext(ctx, "tcp", p.config.Brokers[0])
	if err != nil {
		return fmt.Errorf("failed to connect to Kafka: %w", err)
	}
	defer conn.Close()

	_, err = conn.Controller()
	return err
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// AssessmentCompleted builds the event envelope for a successful
// assessment.
func AssessmentCompleted(profile *models.TotalRiskProfile, skippedCount int) models.AssessmentEvent {
	return models.AssessmentEvent{
		ID:                 uuid.New().String(),
		Type:               models.EventTypeAssessmentCompleted,
		Timestamp:          time.Now().UTC(),
		ClientID:           profile.ClientID,
		CompanyName:        profile.CompanyName,
		Industry:           profile.Industry,
		TotalALE:           profile.TotalALE,
		VulnerabilityCount: len(profile.IndividualRisks),
		SkippedCount:       skippedCount,
	}
}

// AssessmentFailed builds the event envelope for a batch-level failure.
func AssessmentFailed(client models.ClientContext, reason string) models.AssessmentEvent {
	return models.AssessmentEvent{
		ID:          uuid.New().String(),
		Type:        models.EventTypeAssessmentFailed,
		Timestamp:   time.Now().UTC(),
		CompanyName: client.CompanyName,
		Industry:    models.NormalizeIndustry(string(client.Industry)),
		Reason:      reason,
	}
}

// ProposalGenerated builds the event envelope for a generated proposal.
func ProposalGenerated(proposal *models.Proposal) models.AssessmentEvent {
	return models.AssessmentEvent{
		ID:          uuid.New().String(),
		Type:        models.EventTypeProposalGenerated,
		Timestamp:   time.Now().UTC(),
		ClientID:    proposal.ClientID,
		CompanyName: proposal.CompanyName,
		Metadata: map[string]string{
			"proposalId": proposal.ID,
			"model":      proposal.Model,
		},
	}
}
