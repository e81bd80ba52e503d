package breachcost

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/GrayITguy/msp-risk-proposal/pkg/models"
)

// Last-resort figures used when a dataset carries neither the requested
// industry nor an "other" row. Calculations degrade to these rather than
// fail; the drop in output quality surfaces through the confidence rating
// instead.
const (
	fallbackCostPerRecord = 180.0
	fallbackAvgTotalCost  = 4350000.0
)

// Dataset is a read-only lookup of per-industry breach cost figures.
// Lookups are total: exact industry first, then the dataset's "other" row,
// then hardcoded fallbacks.
type Dataset struct {
	records map[models.Industry]models.IndustryBreachRecord
}

// NewDataset builds a dataset from explicit rows. Later rows for the same
// industry win.
func NewDataset(records []models.IndustryBreachRecord) *Dataset {
	d := &Dataset{records: make(map[models.Industry]models.IndustryBreachRecord, len(records))}
	for _, rec := range records {
		d.records[rec.Industry] = rec
	}
	return d
}

// DefaultDataset returns the shipped breach-cost reference data, derived
// from published industry breach studies. Figures are refreshed by editing
// the dataset file, not code.
func DefaultDataset() *Dataset {
	const (
		source = "IBM Cost of a Data Breach Report"
		year   = 2024
	)
	return NewDataset([]models.IndustryBreachRecord{
		{Industry: models.IndustryHealthcare, CostPerRecord: 408, AvgTotalCost: 9770000, Source: source, Year: year, AvgDetectionDays: 213, AvgContainmentDays: 83, AvgRecordsCompromised: 28500},
		{Industry: models.IndustryFinancial, CostPerRecord: 336, AvgTotalCost: 6080000, Source: source, Year: year, AvgDetectionDays: 168, AvgContainmentDays: 51, AvgRecordsCompromised: 21300},
		{Industry: models.IndustryTechnology, CostPerRecord: 251, AvgTotalCost: 4880000, Source: source, Year: year, AvgDetectionDays: 171, AvgContainmentDays: 59, AvgRecordsCompromised: 33200},
		{Industry: models.IndustryProfessionalServices, CostPerRecord: 257, AvgTotalCost: 5080000, Source: source, Year: year, AvgDetectionDays: 186, AvgContainmentDays: 62, AvgRecordsCompromised: 15700},
		{Industry: models.IndustryEducation, CostPerRecord: 219, AvgTotalCost: 3500000, Source: source, Year: year, AvgDetectionDays: 204, AvgContainmentDays: 77, AvgRecordsCompromised: 19800},
		{Industry: models.IndustryRetail, CostPerRecord: 169, AvgTotalCost: 3480000, Source: source, Year: year, AvgDetectionDays: 197, AvgContainmentDays: 69, AvgRecordsCompromised: 41200},
		{Industry: models.IndustryManufacturing, CostPerRecord: 207, AvgTotalCost: 5560000, Source: source, Year: year, AvgDetectionDays: 199, AvgContainmentDays: 73, AvgRecordsCompromised: 17400},
		{Industry: models.IndustryGovernment, CostPerRecord: 141, AvgTotalCost: 2550000, Source: source, Year: year, AvgDetectionDays: 231, AvgContainmentDays: 93, AvgRecordsCompromised: 24600},
		{Industry: models.IndustryOther, CostPerRecord: 180, AvgTotalCost: 4350000, Source: source, Year: year, AvgDetectionDays: 194, AvgContainmentDays: 70, AvgRecordsCompromised: 22000},
	})
}

// CostPerRecord returns the per-record breach cost for the industry,
// applying the fallback chain.
func (d *Dataset) CostPerRecord(industry models.Industry) float64 {
	if rec, ok := d.records[industry]; ok {
		return rec.CostPerRecord
	}
	if rec, ok := d.records[models.IndustryOther]; ok {
		return rec.CostPerRecord
	}
	return fallbackCostPerRecord
}

// AvgTotalCost returns the average total breach cost for the industry,
// applying the same fallback chain as CostPerRecord.
func (d *Dataset) AvgTotalCost(industry models.Industry) float64 {
	if rec, ok := d.records[industry]; ok {
		return rec.AvgTotalCost
	}
	if rec, ok := d.records[models.IndustryOther]; ok {
		return rec.AvgTotalCost
	}
	return fallbackAvgTotalCost
}

// Record returns the full reference row for an industry when one exists.
// Unlike the cost lookups this does not fall back; callers that want the
// chain should use CostPerRecord and AvgTotalCost.
func (d *Dataset) Record(industry models.Industry) (models.IndustryBreachRecord, bool) {
	rec, ok := d.records[industry]
	return rec, ok
}

// Records returns every row in the dataset sorted by industry, for the
// reference API and report appendices.
func (d *Dataset) Records() []models.IndustryBreachRecord {
	out := make([]models.IndustryBreachRecord, 0, len(d.records))
	for _, rec := range d.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Industry < out[j].Industry })
	return out
}

// Len reports the number of industries in the dataset.
func (d *Dataset) Len() int { return len(d.records) }

type datasetFile struct {
	Industries []models.IndustryBreachRecord `yaml:"industries"`
}

// LoadDataset reads a breach-cost dataset file. The file fully replaces
// the shipped data; rows it omits fall through the lookup chain like any
// unknown industry.
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read breach cost dataset: %w", err)
	}

	var file datasetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse breach cost dataset: %w", err)
	}
	if len(file.Industries) == 0 {
		return nil, fmt.Errorf("breach cost dataset %s contains no industries", path)
	}

	for i, rec := range file.Industries {
		if rec.Industry == "" {
			return nil, fmt.Errorf("breach cost dataset row %d has no industry", i)
		}
		if rec.CostPerRecord <= 0 {
			return nil, fmt.Errorf("breach cost dataset row %q has non-positive cost_per_record", rec.Industry)
		}
	}

	return NewDataset(file.Industries), nil
}
