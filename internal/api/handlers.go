package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/GrayITguy/msp-risk-proposal/internal/ingest"
	"github.com/GrayITguy/msp-risk-proposal/internal/risk"
	"github.com/GrayITguy/msp-risk-proposal/pkg/models"
)

// Request types

type CreateAssessmentRequest struct {
	Client          models.ClientContext   `json:"client"`
	Vulnerabilities []models.Vulnerability `json:"vulnerabilities"`
}

type SingleRiskRequest struct {
	Client        models.ClientContext `json:"client"`
	Vulnerability models.Vulnerability `json:"vulnerability"`
}

type UploadAssessmentRequest struct {
	Client models.ClientContext `json:"client"`
	Report json.RawMessage      `json:"report"`
}

type GenerateProposalRequest struct {
	Client       models.ClientContext     `json:"client"`
	Profile      *models.TotalRiskProfile `json:"profile,omitempty"`
	AssessmentID string                   `json:"assessmentId,omitempty"`
}

// Assessment handlers

func (g *Gateway) handleCreateAssessment(w http.ResponseWriter, r *http.Request) {
	var req CreateAssessmentRequest
	if err := parseRequestBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to parse request body", err.Error())
		return
	}
	if err := validateClientContext(req.Client); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid client context", err.Error())
		return
	}

	profile, skipped, err := g.deps.Engine.CalculatePortfolioRisk(req.Vulnerabilities, req.Client)
	if err != nil {
		g.publishFailure(r.Context(), req.Client, err)
		g.writeEngineError(w, err)
		return
	}

	g.finishAssessment(r.Context(), profile, req.Vulnerabilities, len(skipped))
	writeSuccessResponse(w, profile, &APIMeta{
		Total:   len(profile.IndividualRisks),
		Skipped: skipped,
	})
}

func (g *Gateway) handleSingleRisk(w http.ResponseWriter, r *http.Request) {
	var req SingleRiskRequest
	if err := parseRequestBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to parse request body", err.Error())
		return
	}
	if err := validateClientContext(req.Client); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid client context", err.Error())
		return
	}

	calc, err := g.deps.Engine.CalculateSingleRisk(req.Vulnerability, req.Client)
	if err != nil {
		g.writeEngineError(w, err)
		return
	}

	writeSuccessResponse(w, calc, nil)
}

func (g *Gateway) handleUploadReport(w http.ResponseWriter, r *http.Request) {
	var req UploadAssessmentRequest
	if err := parseRequestBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to parse request body", err.Error())
		return
	}
	if err := validateClientContext(req.Client); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid client context", err.Error())
		return
	}
	if len(req.Report) == 0 {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "Report body is required", "")
		return
	}

	if g.deps.Archive != nil {
		key, err := g.deps.Archive.PutReport(r.Context(), models.Slug(req.Client.CompanyName), req.Report)
		if err != nil {
			log.Printf("Failed to archive report for %s: %v", req.Client.CompanyName, err)
		} else {
			log.Printf("Archived raw report as %s", key)
		}
	}

	scan, vulns, err := ingest.ParseReport(req.Report)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_REPORT", "Failed to parse scan report", err.Error())
		return
	}
	log.Printf("Parsed scan %s from %s with %d usable findings", scan.ScanID, scan.Scanner, len(vulns))

	profile, skipped, err := g.deps.Engine.CalculatePortfolioRisk(vulns, req.Client)
	if err != nil {
		g.publishFailure(r.Context(), req.Client, err)
		g.writeEngineError(w, err)
		return
	}

	g.finishAssessment(r.Context(), profile, vulns, len(skipped))
	writeSuccessResponse(w, profile, &APIMeta{
		Total:   len(profile.IndividualRisks),
		Skipped: skipped,
	})
}

func (g *Gateway) handleGetAssessment(w http.ResponseWriter, r *http.Request) {
	if g.deps.Store == nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Assessment store is not configured", "")
		return
	}

	id := mux.Vars(r)["id"]
	profile, err := g.deps.Store.GetAssessment(r.Context(), id)
	if err != nil {
		writeErrorResponse(w, http.StatusNotFound, "NOT_FOUND", "Assessment not found", err.Error())
		return
	}

	writeSuccessResponse(w, profile, nil)
}

func (g *Gateway) handleListClientAssessments(w http.ResponseWriter, r *http.Request) {
	if g.deps.Store == nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Assessment store is not configured", "")
		return
	}

	clientKey := mux.Vars(r)["clientId"]
	summaries, err := g.deps.Store.ListAssessments(r.Context(), clientKey)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list assessments", err.Error())
		return
	}

	writeSuccessResponse(w, summaries, &APIMeta{Total: len(summaries)})
}

func (g *Gateway) handleClientTrend(w http.ResponseWriter, r *http.Request) {
	if g.deps.Store == nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Assessment store is not configured", "")
		return
	}

	clientKey := mux.Vars(r)["clientId"]
	trend, err := g.deps.Store.ALETrend(r.Context(), clientKey)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load ALE trend", err.Error())
		return
	}

	writeSuccessResponse(w, trend, &APIMeta{Total: len(trend)})
}

// Proposal handlers

func (g *Gateway) handleGenerateProposal(w http.ResponseWriter, r *http.Request) {
	if g.deps.Generator == nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "PROPOSALS_UNAVAILABLE", "Proposal generation is not configured", "")
		return
	}

	var req GenerateProposalRequest
	if err := parseRequestBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to parse request body", err.Error())
		return
	}
	if err := validateClientContext(req.Client); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid client context", err.Error())
		return
	}

	profile := req.Profile
	if profile == nil && req.AssessmentID != "" {
		if g.deps.Store == nil {
			writeErrorResponse(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Assessment store is not configured", "")
			return
		}
		stored, err := g.deps.Store.GetAssessment(r.Context(), req.AssessmentID)
		if err != nil {
			writeErrorResponse(w, http.StatusNotFound, "NOT_FOUND", "Assessment not found", err.Error())
			return
		}
		profile = stored
	}
	if profile == nil {
		writeErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "Either profile or assessmentId is required", "")
		return
	}

	proposal, err := g.deps.Generator.GenerateProposal(r.Context(), req.Client, profile)
	if err != nil {
		writeErrorResponse(w, http.StatusBadGateway, "GENERATION_FAILED", "Proposal generation failed", err.Error())
		return
	}

	if g.deps.Events != nil {
		if err := g.deps.Events.PublishProposalGenerated(r.Context(), proposal); err != nil {
			log.Printf("Failed to publish proposal event for %s: %v", proposal.ID, err)
		}
	}
	if err := g.deps.Billing.RecordProposal(r.Context(), proposal.ID); err != nil {
		log.Printf("Failed to meter proposal %s: %v", proposal.ID, err)
	}

	writeSuccessResponse(w, proposal, nil)
}

// Reference data handlers

func (g *Gateway) handleBreachCosts(w http.ResponseWriter, r *http.Request) {
	records := g.deps.BreachCosts.Records()
	writeSuccessResponse(w, records, &APIMeta{Total: len(records)})
}

func (g *Gateway) handleCoefficients(w http.ResponseWriter, r *http.Request) {
	writeSuccessResponse(w, g.deps.Coefficients, nil)
}

// Operational handlers

func (g *Gateway) handleInvoiceEstimate(w http.ResponseWriter, r *http.Request) {
	writeSuccessResponse(w, g.deps.Billing.EstimateInvoice(), nil)
}

func (g *Gateway) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeSuccessResponse(w, map[string]interface{}{
		"engine":  g.deps.Engine.Metrics(),
		"gateway": g.metrics.snapshot(),
	}, nil)
}

// Helpers

// finishAssessment fans a computed profile out to the optional components.
// Failures here are logged, never surfaced: the assessment itself succeeded.
func (g *Gateway) finishAssessment(ctx context.Context, profile *models.TotalRiskProfile, vulns []models.Vulnerability, skippedCount int) {
	if g.deps.Store != nil {
		if err := g.deps.Store.SaveAssessment(ctx, profile, vulns); err != nil {
			log.Printf("Failed to persist assessment %s: %v", profile.ClientID, err)
		}
	}
	if g.deps.Events != nil {
		if err := g.deps.Events.PublishAssessmentCompleted(ctx, profile, skippedCount); err != nil {
			log.Printf("Failed to publish completion event for %s: %v", profile.ClientID, err)
		}
	}
	if err := g.deps.Billing.RecordAssessment(ctx, profile.ClientID); err != nil {
		log.Printf("Failed to meter assessment %s: %v", profile.ClientID, err)
	}
}

func (g *Gateway) publishFailure(ctx context.Context, client models.ClientContext, err error) {
	var allFailed *risk.AllCalculationsFailedError
	if g.deps.Events == nil || !errors.As(err, &allFailed) {
		return
	}
	if pubErr := g.deps.Events.PublishAssessmentFailed(ctx, client, err.Error()); pubErr != nil {
		log.Printf("Failed to publish failure event for %s: %v", client.CompanyName, pubErr)
	}
}

func (g *Gateway) writeEngineError(w http.ResponseWriter, err error) {
	var noVulns *risk.NoVulnerabilitiesError
	var allFailed *risk.AllCalculationsFailedError
	var missing *risk.MissingScoreError
	var invalid *risk.InvalidScoreError

	switch {
	case errors.As(err, &noVulns):
		writeErrorResponse(w, http.StatusBadRequest, "NO_VULNERABILITIES", "No vulnerabilities supplied", err.Error())
	case errors.As(err, &allFailed):
		writeErrorResponse(w, http.StatusUnprocessableEntity, "ALL_CALCULATIONS_FAILED", "Every vulnerability was skipped", err.Error())
	case errors.As(err, &missing):
		writeErrorResponse(w, http.StatusUnprocessableEntity, "MISSING_SCORE", "Vulnerability has no CVSS score", err.Error())
	case errors.As(err, &invalid):
		writeErrorResponse(w, http.StatusUnprocessableEntity, "INVALID_SCORE", "CVSS score outside the valid range", err.Error())
	default:
		writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Risk calculation failed", err.Error())
	}
}

// validateClientContext is the upstream gate the engine relies on: the
// calculator itself assumes client records are well formed.
func validateClientContext(client models.ClientContext) error {
	if strings.TrimSpace(client.CompanyName) == "" {
		return fmt.Errorf("companyName is required")
	}
	if client.EmployeeCount <= 0 {
		return fmt.Errorf("employeeCount must be a positive integer")
	}
	if client.AnnualRevenue < 0 {
		return fmt.Errorf("annualRevenue must not be negative")
	}
	return nil
}
