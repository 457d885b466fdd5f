package storage

// Template names one of the fixed report aggregations. The set is closed:
// backends map each template to driver-specific SQL and reject anything
// else, so no free-form SQL crosses the Store boundary.
type Template int

const (
	// MonthlySalaryByTitle sums minimum salaries normalized to a monthly
	// figure, grouped by position title and publication month.
	MonthlySalaryByTitle Template = iota

	// AvgSalaryByEligibility compares average salary midpoints between
	// citizen-only and student/internship postings.
	AvgSalaryByEligibility

	// OpeningsByOrganization counts open postings per organization.
	OpeningsByOrganization
)

// Templates lists every report template in render order.
var Templates = []Template{
	MonthlySalaryByTitle,
	AvgSalaryByEligibility,
	OpeningsByOrganization,
}

func (t Template) Name() string {
	switch t {
	case MonthlySalaryByTitle:
		return "monthly_salary_by_title"
	case AvgSalaryByEligibility:
		return "avg_salary_by_eligibility"
	case OpeningsByOrganization:
		return "openings_by_organization"
	default:
		return "unknown"
	}
}
