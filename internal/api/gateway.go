package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/GrayITguy/msp-risk-proposal/internal/billing"
	"github.com/GrayITguy/msp-risk-proposal/internal/breachcost"
	"github.com/GrayITguy/msp-risk-proposal/internal/coefficients"
	"github.com/GrayITguy/msp-risk-proposal/internal/graph"
	"github.com/GrayITguy/msp-risk-proposal/internal/health"
	"github.com/GrayITguy/msp-risk-proposal/internal/ingest"
	"github.com/GrayITguy/msp-risk-proposal/internal/risk"
	"github.com/GrayITguy/msp-risk-proposal/pkg/models"
)

// Gateway is the HTTP front of the platform: it validates requests, runs
// the risk engine, and fans results out to the optional persistence,
// eventing and metering components.
type Gateway struct {
	server  *http.Server
	router  *mux.Router
	config  GatewayConfig
	deps    Deps
	metrics *gatewayMetrics
}

// RiskEngine is the calculation surface the gateway drives.
type RiskEngine interface {
	CalculateSingleRisk(vuln models.Vulnerability, client models.ClientContext) (models.RiskCalculation, error)
	CalculatePortfolioRisk(vulns []models.Vulnerability, client models.ClientContext) (*models.TotalRiskProfile, []models.SkippedVulnerability, error)
	Metrics() risk.MetricsSnapshot
}

// AssessmentStore is the persistence surface for completed assessments.
type AssessmentStore interface {
	SaveAssessment(ctx context.Context, profile *models.TotalRiskProfile, vulns []models.Vulnerability) error
	GetAssessment(ctx context.Context, id string) (*models.TotalRiskProfile, error)
	ListAssessments(ctx context.Context, clientKey string) ([]graph.AssessmentSummary, error)
	ALETrend(ctx context.Context, clientKey string) ([]graph.TrendPoint, error)
}

// EventPublisher emits lifecycle events after engine work finishes.
type EventPublisher interface {
	PublishAssessmentCompleted(ctx context.Context, profile *models.TotalRiskProfile, skippedCount int) error
	PublishAssessmentFailed(ctx context.Context, client models.ClientContext, reason string) error
	PublishProposalGenerated(ctx context.Context, proposal *models.Proposal) error
}

// ProposalGenerator turns a risk profile into client-facing prose.
type ProposalGenerator interface {
	GenerateProposal(ctx context.Context, client models.ClientContext, profile *models.TotalRiskProfile) (*models.Proposal, error)
}

// Deps collects the gateway's collaborators. Engine, Coefficients and
// BreachCosts are required; every other field may be left nil to run the
// service in stateless calculation-only mode.
type Deps struct {
	Engine       RiskEngine
	Store        AssessmentStore
	Events       EventPublisher
	Generator    ProposalGenerator
	Billing      *billing.Service
	Archive      *ingest.Archive
	Health       *health.HealthChecker
	Coefficients coefficients.Table
	BreachCosts  *breachcost.Dataset
}

// GatewayConfig represents gateway configuration.
type GatewayConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	EnableCORS     bool          `yaml:"enable_cors"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	AllowedMethods []string      `yaml:"allowed_methods"`
	AllowedHeaders []string      `yaml:"allowed_headers"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxRequestSize int64         `yaml:"max_request_size"`
}

// DefaultGatewayConfig returns default gateway configuration.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		EnableCORS:     true,
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		RequestTimeout: 30 * time.Second,
		MaxRequestSize: 10 << 20,
	}
}

// NewGateway creates a new API gateway.
func NewGateway(config GatewayConfig, deps Deps) *Gateway {
	if deps.Health == nil {
		deps.Health = health.NewHealthChecker()
	}

	router := mux.NewRouter()
	gateway := &Gateway{
		router: router,
		config: config,
		deps:   deps,
		metrics: &gatewayMetrics{
			requestsByPath:   make(map[string]int64),
			requestsByMethod: make(map[string]int64),
			requestsByStatus: make(map[int]int64),
		},
	}

	gateway.setupMiddleware()
	gateway.setupRoutes()

	gateway.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return gateway
}

// setupRoutes configures all API routes.
func (g *Gateway) setupRoutes() {
	api := g.router.PathPrefix("/api/v1").Subrouter()

	assessments := api.PathPrefix("/assessments").Subrouter()
	assessments.HandleFunc("", g.handleCreateAssessment).Methods("POST")
	assessments.HandleFunc("/single", g.handleSingleRisk).Methods("POST")
	assessments.HandleFunc("/upload", g.handleUploadReport).Methods("POST")
	assessments.HandleFunc("/{id}", g.handleGetAssessment).Methods("GET")

	clients := api.PathPrefix("/clients").Subrouter()
	clients.HandleFunc("/{clientId}/assessments", g.handleListClientAssessments).Methods("GET")
	clients.HandleFunc("/{clientId}/trend", g.handleClientTrend).Methods("GET")

	api.HandleFunc("/proposals", g.handleGenerateProposal).Methods("POST")

	reference := api.PathPrefix("/reference").Subrouter()
	reference.HandleFunc("/breach-costs", g.handleBreachCosts).Methods("GET")
	reference.HandleFunc("/coefficients", g.handleCoefficients).Methods("GET")

	api.HandleFunc("/billing/invoice", g.handleInvoiceEstimate).Methods("GET")
	api.HandleFunc("/health", g.deps.Health.HTTPHandler()).Methods("GET")
	api.HandleFunc("/metrics", g.handleMetrics).Methods("GET")
}

// setupMiddleware configures HTTP middleware.
func (g *Gateway) setupMiddleware() {
	if g.config.EnableCORS {
		c := cors.New(cors.Options{
			AllowedOrigins:   g.config.AllowedOrigins,
			AllowedMethods:   g.config.AllowedMethods,
			AllowedHeaders:   g.config.AllowedHeaders,
			AllowCredentials: true,
		})
		g.router.Use(c.Handler)
	}

	g.router.Use(g.requestLimitMiddleware)
	g.router.Use(g.metricsMiddleware)
}

// Start starts the API gateway.
func (g *Gateway) Start() error {
	log.Printf("Starting API gateway on %s", g.server.Addr)
	return g.server.ListenAndServe()
}

// Stop stops the API gateway.
func (g *Gateway) Stop(ctx context.Context) error {
	log.Printf("Stopping API gateway")
	return g.server.Shutdown(ctx)
}

// Handler exposes the configured router, mainly for tests.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

// Response types

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// APIMeta carries out-of-band result context. Skipped holds the
// diagnostics for vulnerabilities the engine could not price; the profile
// in Data never includes them.
type APIMeta struct {
	Total   int                           `json:"total,omitempty"`
	Skipped []models.SkippedVulnerability `json:"skipped,omitempty"`
}

// Helper functions

func writeJSONResponse(w http.ResponseWriter, status int, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeErrorResponse(w http.ResponseWriter, status int, code, message, details string) {
	response := APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
	writeJSONResponse(w, status, response)
}

func writeSuccessResponse(w http.ResponseWriter, data interface{}, meta *APIMeta) {
	response := APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	}
	writeJSONResponse(w, http.StatusOK, response)
}

func parseRequestBody(r *http.Request, target interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// Middleware implementations

func (g *Gateway) requestLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.config.MaxRequestSize > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, g.config.MaxRequestSize)
		}
		if g.config.RequestTimeout > 0 {
			ctx, cancel := context.WithTimeout(r.Context(), g.config.RequestTimeout)
			defer cancel()
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Gateway) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		g.metrics.record(r, wrapped.statusCode, time.Since(start))
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// gatewayMetrics tracks request counters behind a mutex; snapshots go out
// through GatewayMetricsSnapshot so callers never copy the lock.
type gatewayMetrics struct {
	mu               sync.Mutex
	requestsTotal    int64
	requestsFailed   int64
	averageLatency   time.Duration
	requestsByPath   map[string]int64
	requestsByMethod map[string]int64
	requestsByStatus map[int]int64
	lastRequest      time.Time
}

// GatewayMetricsSnapshot is the JSON view of the gateway counters.
type GatewayMetricsSnapshot struct {
	RequestsTotal    int64            `json:"requestsTotal"`
	RequestsFailed   int64            `json:"requestsFailed"`
	AverageLatency   time.Duration    `json:"averageLatency"`
	RequestsByPath   map[string]int64 `json:"requestsByPath"`
	RequestsByMethod map[string]int64 `json:"requestsByMethod"`
	RequestsByStatus map[int]int64    `json:"requestsByStatus"`
	LastRequest      time.Time        `json:"lastRequest"`
}

func (m *gatewayMetrics) record(r *http.Request, statusCode int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requestsTotal++
	if statusCode >= http.StatusInternalServerError {
		m.requestsFailed++
	}
	m.requestsByPath[r.URL.Path]++
	m.requestsByMethod[r.Method]++
	m.requestsByStatus[statusCode]++
	m.lastRequest = time.Now().UTC()

	if m.averageLatency == 0 {
		m.averageLatency = duration
	} else {
		m.averageLatency = (m.averageLatency + duration) / 2
	}
}

func (m *gatewayMetrics) snapshot() GatewayMetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := GatewayMetricsSnapshot{
		RequestsTotal:    m.requestsTotal,
		RequestsFailed:   m.requestsFailed,
		AverageLatency:   m.averageLatency,
		RequestsByPath:   make(map[string]int64, len(m.requestsByPath)),
		RequestsByMethod: make(map[string]int64, len(m.requestsByMethod)),
		RequestsByStatus: make(map[int]int64, len(m.requestsByStatus)),
		LastRequest:      m.lastRequest,
	}
	for k, v := range m.requestsByPath {
		snap.RequestsByPath[k] = v
	}
	for k, v := range m.requestsByMethod {
		snap.RequestsByMethod[k] = v
	}
	for k, v := range m.requestsByStatus {
		snap.RequestsByStatus[k] = v
	}
	return snap
}
