package domain

import "time"

// AuthorityType enumerates the organizations that resolve issues.
type AuthorityType string

const (
	AuthorityGHMC        AuthorityType = "GHMC"
	AuthorityIRCTC       AuthorityType = "IRCTC"
	AuthorityWater       AuthorityType = "WATER"
	AuthorityElectricity AuthorityType = "ELECTRICITY"
	AuthorityRoads       AuthorityType = "ROADS"
)

// KnownAuthorityTypes lists every valid authority type.
func KnownAuthorityTypes() []AuthorityType {
	return []AuthorityType{
		AuthorityGHMC,
		AuthorityIRCTC,
		AuthorityWater,
		AuthorityElectricity,
		AuthorityRoads,
	}
}

// ValidAuthorityType reports whether the value is a known authority type.
func ValidAuthorityType(a AuthorityType) bool {
	for _, known := range KnownAuthorityTypes() {
		if a == known {
			return true
		}
	}
	return false
}

// Authority is an organization record with its running workload counters.
type Authority struct {
	ID                     string
	Name                   string
	Type                   AuthorityType
	Email                  string
	Phone                  string
	City                   string
	SLAHours               int
	EscalationThresholdHrs int
	ActiveIssues           int
	ResolvedIssues         int
	AvgResolutionHours     float64
	CreatedAt              time.Time
	UpdatedAt              time.Time
}
