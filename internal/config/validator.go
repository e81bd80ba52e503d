package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate performs comprehensive validation of the configuration.
// Optional components are validated only when enabled.
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}

	if err := c.validateAPI(); err != nil {
		return fmt.Errorf("api config error: %w", err)
	}
	if err := c.validateGraph(); err != nil {
		return fmt.Errorf("graph config error: %w", err)
	}
	if err := c.validateEvents(); err != nil {
		return fmt.Errorf("events config error: %w", err)
	}
	if err := c.validateProposal(); err != nil {
		return fmt.Errorf("proposal config error: %w", err)
	}
	if err := c.validateKnowledge(); err != nil {
		return fmt.Errorf("knowledge config error: %w", err)
	}
	if err := c.validateArchive(); err != nil {
		return fmt.Errorf("archive config error: %w", err)
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.API.EnableCORS && len(c.API.AllowedOrigins) == 0 {
		return fmt.Errorf("allowed_origins is required when CORS is enabled")
	}
	if c.API.MaxRequestSize < 0 {
		return fmt.Errorf("max_request_size must not be negative")
	}
	return nil
}

func (c *Config) validateGraph() error {
	if !c.GraphEnabled() {
		return nil
	}
	if _, err := url.Parse(c.Graph.URI); err != nil {
		return fmt.Errorf("invalid uri format: %w", err)
	}
	if c.Graph.Username == "" {
		return fmt.Errorf("username is required")
	}
	return nil
}

func (c *Config) validateEvents() error {
	if !c.EventsEnabled() {
		return nil
	}
	for _, broker := range c.Events.Brokers {
		if !strings.Contains(broker, ":") {
			return fmt.Errorf("invalid broker format: %s (expected host:port)", broker)
		}
	}
	if c.Events.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	return nil
}

func (c *Config) validateProposal() error {
	if !c.OpenAIEnabled() {
		return nil
	}
	if c.Proposal.Temperature < 0 || c.Proposal.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.Proposal.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be greater than 0")
	}
	if c.Proposal.Model == "" {
		return fmt.Errorf("model is required")
	}
	return nil
}

func (c *Config) validateKnowledge() error {
	if c.Knowledge.DatabaseURL == "" {
		return nil
	}
	if c.Knowledge.MaxResults <= 0 {
		return fmt.Errorf("max_results must be greater than 0")
	}
	if c.Knowledge.SimilarityThreshold < 0 || c.Knowledge.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateArchive() error {
	if !c.ArchiveEnabled() {
		return nil
	}
	if c.Archive.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}
	if c.Archive.AccessKey == "" || c.Archive.SecretKey == "" {
		return fmt.Errorf("access_key and secret_key are required")
	}
	return nil
}
