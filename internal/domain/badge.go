package domain

// BadgeMetric names the reporter counter a badge criterion tests.
type BadgeMetric string

const (
	BadgeMetricReports  BadgeMetric = "reports"
	BadgeMetricResolved BadgeMetric = "resolved"
	BadgeMetricPoints   BadgeMetric = "points"
)

// Badge defines one achievement and the counter threshold that awards it.
// Badges are evaluated, never mutated.
type Badge struct {
	Name        string
	Description string
	Metric      BadgeMetric
	Threshold   int
}

// Satisfied reports whether the badge criterion holds for the given totals.
func (b Badge) Satisfied(totals ReporterTotals) bool {
	switch b.Metric {
	case BadgeMetricReports:
		return totals.IssuesReported >= b.Threshold
	case BadgeMetricResolved:
		return totals.IssuesResolved >= b.Threshold
	case BadgeMetricPoints:
		return totals.Points >= b.Threshold
	}
	return false
}
