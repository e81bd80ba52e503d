package models

// Vulnerability represents a single finding from a vulnerability scan.
// Instances are immutable once received; the engine never writes to them.
//
// CVSSScore is a pointer so that "scanner reported no score" is
// distinguishable from a literal 0.0; the calculator treats a nil score
// as a per-item failure, not as zero risk.
type Vulnerability struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	CVSSScore      *float64 `json:"cvssScore"`
	Severity       Severity `json:"severity"`
	AffectedAssets []string `json:"affectedAssets"`
	CVEID          string   `json:"cveId,omitempty"`
	Recommendation string   `json:"recommendation"`
}

// HasCVE reports whether the finding carries a CVE identifier.
func (v Vulnerability) HasCVE() bool {
	return v.CVEID != ""
}

// ContactInfo represents the client-side point of contact for a proposal.
type ContactInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// ClientContext represents the business attributes of the client being
// assessed. It drives the records-at-risk estimate and the industry
// breach-cost lookup. Immutable once received; malformed contexts are
// rejected upstream of the engine.
type ClientContext struct {
	CompanyName            string      `json:"companyName"`
	Industry               Industry    `json:"industry"`
	AnnualRevenue          float64     `json:"annualRevenue"`
	EmployeeCount          int         `json:"employeeCount"`
	CriticalSystems        []string    `json:"criticalSystems"`
	ComplianceRequirements []string    `json:"complianceRequirements,omitempty"`
	Contact                ContactInfo `json:"contact"`
}
