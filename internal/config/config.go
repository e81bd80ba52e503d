package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/GrayITguy/msp-risk-proposal/internal/api"
	"github.com/GrayITguy/msp-risk-proposal/internal/billing"
	"github.com/GrayITguy/msp-risk-proposal/internal/events"
	"github.com/GrayITguy/msp-risk-proposal/internal/graph"
	"github.com/GrayITguy/msp-risk-proposal/internal/knowledge"
	"github.com/GrayITguy/msp-risk-proposal/internal/proposal"
)

// Config represents the overall application configuration. Component
// sections reuse the component packages' own config types so a section
// here is always exactly what the component constructor accepts.
type Config struct {
	Version   string            `yaml:"version"`
	API       api.GatewayConfig `yaml:"api"`
	Engine    EngineConfig      `yaml:"engine"`
	Graph     graph.Config      `yaml:"graph"`
	Events    events.Config     `yaml:"events"`
	OpenAI    OpenAIConfig      `yaml:"openai"`
	Proposal  proposal.Config   `yaml:"proposal"`
	Knowledge knowledge.Config  `yaml:"knowledge"`
	Billing   billing.Config    `yaml:"billing"`
	Archive   ArchiveConfig     `yaml:"archive"`
}

// EngineConfig points at calibration overlay files. Empty paths mean the
// shipped defaults.
type EngineConfig struct {
	CoefficientsPath string `yaml:"coefficients_path"`
	BreachCostsPath  string `yaml:"breach_costs_path"`
}

// OpenAIConfig holds the prose and embedding backend credentials.
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
}

// ArchiveConfig holds raw-report object storage settings.
type ArchiveConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Default returns the baseline configuration: the API and engine fully
// configured, every optional component off until its section or
// environment variables arrive.
func Default() *Config {
	eventsConfig := events.DefaultConfig()
	eventsConfig.Brokers = nil

	return &Config{
		Version:   "1",
		API:       api.DefaultGatewayConfig(),
		Events:    eventsConfig,
		Proposal:  proposal.DefaultConfig(),
		Knowledge: knowledge.DefaultConfig(),
		Billing:   billing.DefaultConfig(),
	}
}

// Load reads the config file named by CONFIG_PATH, falling back to
// config/config.yaml.
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/config.yaml"
	}
	return LoadFile(path)
}

// LoadFile overlays a yaml file onto the defaults, applies environment
// overrides and validates the result. A missing file is not an error: the
// defaults plus environment are a runnable configuration.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		log.Printf("Config file %s not found, using defaults", path)
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnv overlays secret-bearing settings from the environment, so
// credentials can stay out of the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv("NEO4J_URI"); v != "" {
		c.Graph.URI = v
	}
	if v := os.Getenv("NEO4J_USERNAME"); v != "" {
		c.Graph.Username = v
	}
	if v := os.Getenv("NEO4J_PASSWORD"); v != "" {
		c.Graph.Password = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Knowledge.DatabaseURL = v
	}
	if v := os.Getenv("STRIPE_API_KEY"); v != "" {
		c.Billing.APIKey = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Events.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		c.Archive.Endpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		c.Archive.AccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		c.Archive.SecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		c.Archive.Bucket = v
	}
}

// Component enablement. Optional components run only when their section
// carries enough to connect.

func (c *Config) GraphEnabled() bool { return c.Graph.URI != "" }

func (c *Config) EventsEnabled() bool { return len(c.Events.Brokers) > 0 }

func (c *Config) OpenAIEnabled() bool { return c.OpenAI.APIKey != "" }

func (c *Config) KnowledgeEnabled() bool {
	return c.Knowledge.DatabaseURL != "" && c.OpenAIEnabled()
}

func (c *Config) ArchiveEnabled() bool { return c.Archive.Endpoint != "" }
