package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/sashabaranov/go-openai"

	"github.com/GrayITguy/msp-risk-proposal/pkg/models"
)

// EmbeddingClient is the slice of the OpenAI API used to embed article and
// query text. *openai.Client satisfies it.
type EmbeddingClient interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// Config holds knowledge base settings.
type Config struct {
	DatabaseURL         string  `yaml:"database_url"`
	MaxResults          int     `yaml:"max_results"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// DefaultConfig returns default knowledge base settings.
func DefaultConfig() Config {
	return Config{
		MaxResults:          5,
		SimilarityThreshold: 0.70,
	}
}

// Service is the remediation knowledge base: curated guidance articles in
// Postgres with pgvector embeddings, queried by semantic similarity to a
// vulnerability. It grounds proposal recommendations and is optional at
// runtime.
type Service struct {
	pool   *pgxpool.Pool
	ai     EmbeddingClient
	config Config
}

// NewService connects to Postgres and applies the schema. Vector values
// travel in text form through pgvector.Vector, so no type registration is
// needed on the pool.
func NewService(ctx context.Context, config Config, ai EmbeddingClient) (*Service, error) {
	pool, err := pgxpool.New(ctx, config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to knowledge base: %w", err)
	}

	service := &Service{pool: pool, ai: ai, config: config}
	if err := service.initializeSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize knowledge base schema: %w", err)
	}
	return service, nil
}

func (s *Service) initializeSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS remediation_articles (
			id UUID PRIMARY KEY,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			tags TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			embedding vector(1536)
		)`,
		`CREATE INDEX IF NOT EXISTS remediation_articles_embedding_idx
			ON remediation_articles
			USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// AddArticle embeds and stores a guidance article. A zero ID gets one
// assigned.
func (s *Service) AddArticle(ctx context.Context, article models.RemediationArticle) (string, error) {
	if article.ID == "" {
		article.ID = uuid.New().String()
	}

	embedding, err := s.embed(ctx, article.Title+"\n\n"+article.Content)
	if err != nil {
		return "", fmt.Errorf("failed to embed article: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO remediation_articles (id, title, content, tags, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title, content = EXCLUDED.content,
		    tags = EXCLUDED.tags, embedding = EXCLUDED.embedding
	`, article.ID, article.Title, article.Content, article.Tags, pgvector.NewVector(embedding))
	if err != nil {
		return "", fmt.Errorf("failed to store article: %w", err)
	}
	return article.ID, nil
}

// SuggestRemediations returns the guidance articles most similar to a
// vulnerability, best match first, filtered by the similarity threshold.
func (s *Service) SuggestRemediations(ctx context.Context, vuln models.Vulnerability, limit int) ([]models.RemediationArticle, error) {
	if limit <= 0 || limit > s.config.MaxResults {
		limit = s.config.MaxResults
	}

	embedding, err := s.embed(ctx, queryText(vuln))
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id::text, title, content, tags, created_at,
		       1 - (embedding <=> $1) AS similarity
		FROM remediation_articles
		ORDER BY embedding <=> $1
		LIMIT $2
	`, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search knowledge base: %w", err)
	}
	defer rows.Close()

	var articles []models.RemediationArticle
	for rows.Next() {
		var article models.RemediationArticle
		if err := rows.Scan(&article.ID, &article.Title, &article.Content,
			&article.Tags, &article.CreatedAt, &article.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		if article.Similarity < s.config.SimilarityThreshold {
			continue
		}
		articles = append(articles, article)
	}
	return articles, rows.Err()
}

func (s *Service) embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := s.ai.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.AdaEmbeddingV2,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding backend returned no data")
	}
	return resp.Data[0].Embedding, nil
}

// queryText flattens a vulnerability into the text the lookup embeds.
func queryText(vuln models.Vulnerability) string {
	parts := []string{vuln.Name}
	if vuln.CVEID != "" {
		parts = append(parts, vuln.CVEID)
	}
	if vuln.Description != "" {
		parts = append(parts, vuln.Description)
	}
	if vuln.Recommendation != "" {
		parts = append(parts, vuln.Recommendation)
	}
	return strings.Join(parts, "\n")
}

// Ping checks database connectivity.
func (s *Service) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Service) Close() {
	s.pool.Close()
}
