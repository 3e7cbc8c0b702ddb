package domain

import "time"

// AROverdueMonths is how long a business may go without an annual report
// before it becomes eligible for involuntary dissolution.
const AROverdueMonths = 26

// BusinessState is the registry state of a business.
type BusinessState string

const (
	BusinessStateActive      BusinessState = "ACTIVE"
	BusinessStateHistorical  BusinessState = "HISTORICAL"
	BusinessStateLiquidation BusinessState = "LIQUIDATION"
)

func (s BusinessState) String() string { return string(s) }

// Business is the subset of a registry business this job reads.
type Business struct {
	ID           string
	Identifier   string
	LegalName    string
	LegalType    string
	State        BusinessState
	FoundingDate time.Time
	LastARDate   *time.Time
	AdminFreeze  bool
}

// LastFilingDate is the date the overdue period is measured from.
func (b *Business) LastFilingDate() time.Time {
	if b.LastARDate != nil {
		return *b.LastARDate
	}
	return b.FoundingDate
}

// OverdueCutoff returns the instant before which a last filing date counts as overdue.
func OverdueCutoff(asOf time.Time) time.Time {
	return asOf.AddDate(0, -AROverdueMonths, 0)
}

// IsOverdue reports whether the business is eligible for involuntary
// dissolution as of asOf. A business that is not overdue is in good standing.
func (b *Business) IsOverdue(asOf time.Time) bool {
	if b == nil || b.State != BusinessStateActive || b.AdminFreeze {
		return false
	}
	return b.LastFilingDate().Before(OverdueCutoff(asOf))
}
