package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sashabaranov/go-openai"

	"github.com/GrayITguy/msp-risk-proposal/internal/api"
	"github.com/GrayITguy/msp-risk-proposal/internal/billing"
	"github.com/GrayITguy/msp-risk-proposal/internal/breachcost"
	"github.com/GrayITguy/msp-risk-proposal/internal/coefficients"
	"github.com/GrayITguy/msp-risk-proposal/internal/config"
	"github.com/GrayITguy/msp-risk-proposal/internal/events"
	"github.com/GrayITguy/msp-risk-proposal/internal/graph"
	"github.com/GrayITguy/msp-risk-proposal/internal/health"
	"github.com/GrayITguy/msp-risk-proposal/internal/ingest"
	"github.com/GrayITguy/msp-risk-proposal/internal/knowledge"
	"github.com/GrayITguy/msp-risk-proposal/internal/proposal"
	"github.com/GrayITguy/msp-risk-proposal/internal/risk"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Configuration file path (overrides CONFIG_PATH)")
		versionFlag = flag.Bool("version", false, "Show version information")
		help        = flag.Bool("help", false, "Show help information")
	)
	flag.Parse()

	if *help {
		showHelp()
		return
	}
	if *versionFlag {
		showVersion()
		return
	}

	if err := godotenv.Load(); err == nil {
		log.Printf("Loaded environment from .env")
	}

	log.Printf("Starting risk proposal service v%s (commit: %s, built: %s)", version, commit, date)

	var (
		cfg *config.Config
		err error
	)
	if *configFile != "" {
		cfg, err = config.LoadFile(*configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Engine calibration
	table := coefficients.DefaultTable()
	if cfg.Engine.CoefficientsPath != "" {
		table, err = coefficients.LoadTable(cfg.Engine.CoefficientsPath)
		if err != nil {
			log.Fatalf("Failed to load coefficients: %v", err)
		}
		log.Printf("Loaded coefficient overrides from %s", cfg.Engine.CoefficientsPath)
	}
	dataset := breachcost.DefaultDataset()
	if cfg.Engine.BreachCostsPath != "" {
		dataset, err = breachcost.LoadDataset(cfg.Engine.BreachCostsPath)
		if err != nil {
			log.Fatalf("Failed to load breach cost dataset: %v", err)
		}
		log.Printf("Loaded breach cost dataset from %s", cfg.Engine.BreachCostsPath)
	}

	engine := risk.NewEngine(risk.NewCalculator(table, dataset), nil)

	checker := health.NewHealthChecker()
	deps := api.Deps{
		Engine:       engine,
		Health:       checker,
		Billing:      billing.NewService(cfg.Billing),
		Coefficients: table,
		BreachCosts:  dataset,
	}

	// Optional components

	if cfg.GraphEnabled() {
		store, err := graph.NewStore(ctx, cfg.Graph)
		if err != nil {
			log.Fatalf("Failed to initialize graph store: %v", err)
		}
		defer store.Close()
		deps.Store = store
		checker.Register(health.NewPingCheck("graph", store.Ping, 500*time.Millisecond))
	} else {
		log.Printf("Graph store disabled, running stateless")
	}

	if cfg.EventsEnabled() {
		publisher := events.NewPublisher(cfg.Events)
		defer publisher.Close()
		deps.Events = publisher
		checker.Register(health.NewPingCheck("events", publisher.Ping, 500*time.Millisecond))
	} else {
		log.Printf("Event publishing disabled")
	}

	if cfg.OpenAIEnabled() {
		aiClient := openai.NewClient(cfg.OpenAI.APIKey)

		var remediations proposal.RemediationSource
		if cfg.KnowledgeEnabled() {
			kb, err := knowledge.NewService(ctx, cfg.Knowledge, aiClient)
			if err != nil {
				log.Fatalf("Failed to initialize knowledge base: %v", err)
			}
			defer kb.Close()
			remediations = kb
			checker.Register(health.NewPingCheck("knowledge", kb.Ping, 500*time.Millisecond))
		} else {
			log.Printf("Remediation knowledge base disabled")
		}

		deps.Generator = proposal.NewGenerator(aiClient, remediations, cfg.Proposal)
	} else {
		log.Printf("Proposal generation disabled (no OpenAI key)")
	}

	if cfg.ArchiveEnabled() {
		archive, err := ingest.NewArchive(ctx, cfg.Archive.Endpoint, cfg.Archive.AccessKey,
			cfg.Archive.SecretKey, cfg.Archive.Bucket, cfg.Archive.UseSSL)
		if err != nil {
			log.Fatalf("Failed to initialize report archive: %v", err)
		}
		deps.Archive = archive
		checker.Register(health.NewPingCheck("archive", archive.Ping, 500*time.Millisecond))
	} else {
		log.Printf("Report archive disabled")
	}

	gateway := api.NewGateway(cfg.API, deps)

	go func() {
		if err := gateway.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("API gateway failed: %v", err)
		}
	}()

	waitForShutdown(cancel, gateway)
}

func showHelp() {
	fmt.Printf(`MSP Risk Proposal - vulnerability scan to dollar-denominated risk service

Usage:
  riskproposal [flags]

Flags:
  -config string
        Configuration file path (default: CONFIG_PATH or config/config.yaml)
  -version
        Show version information
  -help
        Show this help message

Examples:
  riskproposal                                  # Start with default config
  riskproposal -config config/production.yaml   # Start with production config
  riskproposal -version                         # Show version
`)
}

func showVersion() {
	fmt.Printf("riskproposal version %s\n", version)
	fmt.Printf("Commit: %s\n", commit)
	fmt.Printf("Built: %s\n", date)
}

func waitForShutdown(cancel context.CancelFunc, gateway *api.Gateway) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := gateway.Stop(shutdownCtx); err != nil {
		log.Printf("Error during gateway shutdown: %v", err)
	}

	cancel()
	log.Println("Risk proposal service stopped")
}
