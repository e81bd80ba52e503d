package models

import "strings"

// Industry represents the vertical a client operates in. Breach-cost and
// records-per-employee reference data is keyed by this enumeration.
type Industry string

const (
	IndustryHealthcare           Industry = "healthcare"
	IndustryFinancial            Industry = "financial"
	IndustryRetail               Industry = "retail"
	IndustryManufacturing        Industry = "manufacturing"
	IndustryProfessionalServices Industry = "professional_services"
	IndustryEducation            Industry = "education"
	IndustryGovernment           Industry = "government"
	IndustryTechnology           Industry = "technology"
	IndustryOther                Industry = "other"
)

// AllIndustries lists every recognized industry tag.
func AllIndustries() []Industry {
	return []Industry{
		IndustryHealthcare,
		IndustryFinancial,
		IndustryRetail,
		IndustryManufacturing,
		IndustryProfessionalServices,
		IndustryEducation,
		IndustryGovernment,
		IndustryTechnology,
		IndustryOther,
	}
}

// Valid reports whether the industry is part of the enumeration.
func (i Industry) Valid() bool {
	for _, known := range AllIndustries() {
		if i == known {
			return true
		}
	}
	return false
}

// NormalizeIndustry lowercases and trims a raw industry string and maps it
// onto the enumeration, returning IndustryOther for anything unrecognized.
// Lookups keyed by industry must never fail on unknown input.
func NormalizeIndustry(raw string) Industry {
	candidate := Industry(strings.ToLower(strings.TrimSpace(raw)))
	if candidate.Valid() {
		return candidate
	}
	return IndustryOther
}
