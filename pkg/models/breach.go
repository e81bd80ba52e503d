package models

// IndustryBreachRecord represents one row of the industry breach-cost
// reference dataset. CostPerRecord is the only field the calculation
// consumes; the remaining fields are citation and context metadata carried
// through for display and auditability.
type IndustryBreachRecord struct {
	Industry              Industry `json:"industry" yaml:"industry"`
	CostPerRecord         float64  `json:"costPerRecord" yaml:"cost_per_record"`
	AvgTotalCost          float64  `json:"avgTotalCost" yaml:"avg_total_cost"`
	Source                string   `json:"source" yaml:"source"`
	Year                  int      `json:"year" yaml:"year"`
	AvgDetectionDays      int      `json:"avgDetectionDays" yaml:"avg_detection_days"`
	AvgContainmentDays    int      `json:"avgContainmentDays" yaml:"avg_containment_days"`
	AvgRecordsCompromised int      `json:"avgRecordsCompromised" yaml:"avg_records_compromised"`
}
