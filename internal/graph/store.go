package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/GrayITguy/msp-risk-proposal/pkg/models"
)

// Config holds graph store connection settings.
type Config struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Store persists completed assessments as a graph:
//
//	(Client)-[:HAS_ASSESSMENT]->(Assessment)-[:IDENTIFIED]->(Vulnerability)-[:AFFECTS]->(Asset)
//
// The full profile is kept as a JSON blob on the Assessment node, with the
// figures an MSP queries across assessments (total ALE, counts, timestamps)
// lifted into indexed scalar properties. The store sits strictly outside
// the calculation path and the service runs stateless without it.
type Store struct {
	driver neo4j.DriverWithContext
	config Config
}

// NewStore connects to Neo4j, verifies connectivity and applies the
// schema.
func NewStore(ctx context.Context, config Config) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(
		config.URI,
		neo4j.BasicAuth(config.Username, config.Password, ""),
		func(c *neo4j.Config) {
			c.MaxConnectionLifetime = time.Hour
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		return nil, fmt.Errorf("failed to verify Neo4j connectivity: %w", err)
	}

	store := &Store{driver: driver, config: config}
	if err := store.initializeSchema(ctx); err != nil {
		log.Printf("Warning: failed to initialize graph schema: %v", err)
	}

	return store, nil
}

func (s *Store) initializeSchema(ctx context.Context) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	statements := []string{
		"CREATE CONSTRAINT client_key_unique IF NOT EXISTS FOR (n:Client) REQUIRE n.key IS UNIQUE",
		"CREATE CONSTRAINT assessment_id_unique IF NOT EXISTS FOR (n:Assessment) REQUIRE n.id IS UNIQUE",
		"CREATE CONSTRAINT vulnerability_id_unique IF NOT EXISTS FOR (n:Vulnerability) REQUIRE n.id IS UNIQUE",
		"CREATE CONSTRAINT asset_name_unique IF NOT EXISTS FOR (n:Asset) REQUIRE n.name IS UNIQUE",
		"CREATE INDEX assessment_client_idx IF NOT EXISTS FOR (n:Assessment) ON (n.client_key)",
		"CREATE INDEX assessment_calculated_idx IF NOT EXISTS FOR (n:Assessment) ON (n.calculated_at)",
		"CREATE INDEX vulnerability_severity_idx IF NOT EXISTS FOR (n:Vulnerability) ON (n.severity)",
	}

	for _, stmt := range statements {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}

// AssessmentSummary is the listing view of a stored assessment.
type AssessmentSummary struct {
	ID                 string    `json:"id"`
	ClientKey          string    `json:"clientKey"`
	CompanyName        string    `json:"companyName"`
	Industry           string    `json:"industry"`
	CalculatedAt       time.Time `json:"calculatedAt"`
	TotalALE           float64   `json:"totalALE"`
	VulnerabilityCount int       `json:"vulnerabilityCount"`
}

// TrendPoint is one assessment's total ALE at a point in time.
type TrendPoint struct {
	CalculatedAt time.Time `json:"calculatedAt"`
	TotalALE     float64   `json:"totalALE"`
}

// SaveAssessment stores a completed profile together with the
// vulnerabilities it was computed from. The profile's client identifier is
// the assessment's graph id; the stable client key is the company slug, so
// repeat assessments of the same company hang off one Client node.
func (s *Store) SaveAssessment(ctx context.Context, profile *models.TotalRiskProfile, vulns []models.Vulnerability) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	clientKey := models.Slug(profile.CompanyName)

	query := `
		MERGE (c:Client {key: $clientKey})
		SET c.company_name = $companyName, c.industry = $industry, c.updated_at = datetime()
		CREATE (a:Assessment {
			id: $id, data: $data, client_key: $clientKey,
			company_name: $companyName, industry: $industry,
			total_ale: $totalALE, vulnerability_count: $count,
			calculated_at: $calculatedAt
		})
		MERGE (c)-[:HAS_ASSESSMENT]->(a)
	`
	params := map[string]interface{}{
		"clientKey":    clientKey,
		"companyName":  profile.CompanyName,
		"industry":     string(profile.Industry),
		"id":           profile.ClientID,
		"data":         string(data),
		"totalALE":     profile.TotalALE,
		"count":        len(profile.IndividualRisks),
		"calculatedAt": profile.CalculatedAt.Format(time.RFC3339),
	}
	if _, err := session.Run(ctx, query, params); err != nil {
		return fmt.Errorf("failed to store assessment %s: %w", profile.ClientID, err)
	}

	// Link the vulnerabilities that produced figures; skipped findings
	// never reach the graph.
	calculated := make(map[string]models.RiskCalculation, len(profile.IndividualRisks))
	for _, risk := range profile.IndividualRisks {
		calculated[risk.VulnerabilityID] = risk
	}

	for _, vuln := range vulns {
		risk, ok := calculated[vuln.ID]
		if !ok {
			continue
		}
		if err := s.linkVulnerability(ctx, session, profile.ClientID, vuln, risk); err != nil {
			log.Printf("Failed to link vulnerability %s to assessment %s: %v",
				vuln.ID, profile.ClientID, err)
		}
	}

	return nil
}

func (s *Store) linkVulnerability(ctx context.Context, session neo4j.SessionWithContext, assessmentID string, vuln models.Vulnerability, risk models.RiskCalculation) error {
	query := `
		MATCH (a:Assessment {id: $assessmentId})
		MERGE (v:Vulnerability {id: $vulnId})
		SET v.name = $name, v.severity = $severity, v.cve = $cve
		MERGE (a)-[r:IDENTIFIED]->(v)
		SET r.ale = $ale, r.sle = $sle, r.aro = $aro, r.confidence = $confidence
	`
	params := map[string]interface{}{
		"assessmentId": assessmentID,
		"vulnId":       vuln.ID,
		"name":         vuln.Name,
		"severity":     string(vuln.Severity),
		"cve":          vuln.CVEID,
		"ale":          risk.AnnualizedLossExpectancy,
		"sle":          risk.SingleLossExpectancy,
		"aro":          risk.AnnualRateOfOccurrence,
		"confidence":   string(risk.Confidence),
	}
	if _, err := session.Run(ctx, query, params); err != nil {
		return err
	}

	for _, asset := range vuln.AffectedAssets {
		assetQuery := `
			MATCH (v:Vulnerability {id: $vulnId})
			MERGE (ast:Asset {name: $assetName})
			MERGE (v)-[:AFFECTS]->(ast)
		`
		if _, err := session.Run(ctx, assetQuery, map[string]interface{}{
			"vulnId":    vuln.ID,
			"assetName": asset,
		}); err != nil {
			return err
		}
	}
	return nil
}

// GetAssessment retrieves a stored profile by its identifier.
func (s *Store) GetAssessment(ctx context.Context, id string) (*models.TotalRiskProfile, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		"MATCH (a:Assessment {id: $id}) RETURN a.data as data",
		map[string]interface{}{"id": id})
	if err != nil {
		return nil, err
	}

	record, err := result.Single(ctx)
	if err != nil {
		return nil, fmt.Errorf("assessment %s not found: %w", id, err)
	}

	data, _ := record.AsMap()["data"].(string)
	var profile models.TotalRiskProfile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal assessment %s: %w", id, err)
	}
	return &profile, nil
}

// ListAssessments returns the stored assessments for a client key, newest
// first.
func (s *Store) ListAssessments(ctx context.Context, clientKey string) ([]AssessmentSummary, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (a:Assessment {client_key: $clientKey})
		RETURN a.id as id, a.company_name as companyName, a.industry as industry,
		       a.total_ale as totalALE, a.vulnerability_count as count,
		       a.calculated_at as calculatedAt
		ORDER BY a.calculated_at DESC
	`
	result, err := session.Run(ctx, query, map[string]interface{}{"clientKey": clientKey})
	if err != nil {
		return nil, err
	}

	var summaries []AssessmentSummary
	for result.Next(ctx) {
		fields := result.Record().AsMap()
		summary := AssessmentSummary{
			ClientKey: clientKey,
		}
		summary.ID, _ = fields["id"].(string)
		summary.CompanyName, _ = fields["companyName"].(string)
		summary.Industry, _ = fields["industry"].(string)
		summary.TotalALE, _ = fields["totalALE"].(float64)
		if count, ok := fields["count"].(int64); ok {
			summary.VulnerabilityCount = int(count)
		}
		if raw, ok := fields["calculatedAt"].(string); ok {
			if ts, err := time.Parse(time.RFC3339, raw); err == nil {
				summary.CalculatedAt = ts
			}
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// ALETrend returns total ALE per assessment for a client key in
// chronological order, for plotting risk over time.
func (s *Store) ALETrend(ctx context.Context, clientKey string) ([]TrendPoint, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (a:Assessment {client_key: $clientKey})
		RETURN a.calculated_at as calculatedAt, a.total_ale as totalALE
		ORDER BY a.calculated_at ASC
	`
	result, err := session.Run(ctx, query, map[string]interface{}{"clientKey": clientKey})
	if err != nil {
		return nil, err
	}

	var points []TrendPoint
	for result.Next(ctx) {
		fields := result.Record().AsMap()
		var point TrendPoint
		point.TotalALE, _ = fields["totalALE"].(float64)
		if raw, ok := fields["calculatedAt"].(string); ok {
			if ts, err := time.Parse(time.RFC3339, raw); err == nil {
				point.CalculatedAt = ts
			}
		}
		points = append(points, point)
	}

	return points, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.driver.Close(context.Background())
}
