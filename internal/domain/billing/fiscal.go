package billing

import (
	"fmt"
	"time"

	"github.com/propman/backend/internal/domain/shared"
)

// FiscalPeriod identifies one billing month inside a client's fiscal
// year. Month is the zero-based offset from the configured fiscal-year
// start month, so a client starting its year in July has July as month 0
// and June as month 11.
type FiscalPeriod struct {
	Year  int `json:"fiscal_year"`
	Month int `json:"fiscal_month"`
}

// MonthsPerYear is the number of periods in a fiscal year.
const MonthsPerYear = 12

// NewFiscalPeriod creates a fiscal period, validating the month range.
func NewFiscalPeriod(year, month int) (FiscalPeriod, error) {
	if month < 0 || month >= MonthsPerYear {
		return FiscalPeriod{}, shared.NewDomainError("INVALID_PERIOD",
			fmt.Sprintf("Fiscal month must be in 0..11, got %d", month))
	}
	if year <= 0 {
		return FiscalPeriod{}, shared.NewDomainError("INVALID_PERIOD",
			fmt.Sprintf("Fiscal year must be positive, got %d", year))
	}
	return FiscalPeriod{Year: year, Month: month}, nil
}

// FiscalPeriodFromDate converts a calendar date into the fiscal period it
// falls in, given the fiscal-year start month (1..12). The fiscal year is
// numbered after the calendar year it ends in: with startMonth July, July
// 2025 opens fiscal year 2026 as month 0, and June 2026 closes it as
// month 11.
func FiscalPeriodFromDate(date time.Time, startMonth time.Month) (FiscalPeriod, error) {
	if startMonth < time.January || startMonth > time.December {
		return FiscalPeriod{}, shared.NewDomainError("INVALID_START_MONTH",
			fmt.Sprintf("Fiscal start month must be in 1..12, got %d", startMonth))
	}
	if date.IsZero() {
		return FiscalPeriod{}, shared.NewDomainError("INVALID_DATE", "Date cannot be zero")
	}

	calMonth := int(date.Month())
	calYear := date.Year()

	month := (calMonth - int(startMonth) + MonthsPerYear) % MonthsPerYear
	year := calYear
	if calMonth >= int(startMonth) {
		year = calYear + 1
	}
	return FiscalPeriod{Year: year, Month: month}, nil
}

// CalendarStart returns the first calendar day of the period for the
// given fiscal-year start month.
func (p FiscalPeriod) CalendarStart(startMonth time.Month) time.Time {
	calMonth := (int(startMonth)-1+p.Month)%MonthsPerYear + 1
	calYear := p.Year
	if calMonth >= int(startMonth) {
		calYear = p.Year - 1
	}
	return time.Date(calYear, time.Month(calMonth), 1, 0, 0, 0, 0, time.UTC)
}

// DueDate returns the payment due date for the period: the period's first
// calendar day shifted by the client's due-day offset.
func (p FiscalPeriod) DueDate(startMonth time.Month, dueDayOffset int) time.Time {
	return p.CalendarStart(startMonth).AddDate(0, 0, dueDayOffset)
}

// Compare orders two periods chronologically: -1 if p is earlier than
// other, 0 if equal, 1 if later.
func (p FiscalPeriod) Compare(other FiscalPeriod) int {
	if p.Year != other.Year {
		if p.Year < other.Year {
			return -1
		}
		return 1
	}
	if p.Month != other.Month {
		if p.Month < other.Month {
			return -1
		}
		return 1
	}
	return 0
}

// Before returns true if p is strictly earlier than other.
func (p FiscalPeriod) Before(other FiscalPeriod) bool {
	return p.Compare(other) < 0
}

// Equal returns true if both periods are the same.
func (p FiscalPeriod) Equal(other FiscalPeriod) bool {
	return p.Compare(other) == 0
}

// Prev returns the immediately preceding period.
func (p FiscalPeriod) Prev() FiscalPeriod {
	if p.Month == 0 {
		return FiscalPeriod{Year: p.Year - 1, Month: MonthsPerYear - 1}
	}
	return FiscalPeriod{Year: p.Year, Month: p.Month - 1}
}

// Next returns the immediately following period.
func (p FiscalPeriod) Next() FiscalPeriod {
	if p.Month == MonthsPerYear-1 {
		return FiscalPeriod{Year: p.Year + 1, Month: 0}
	}
	return FiscalPeriod{Year: p.Year, Month: p.Month + 1}
}

// String returns a compact representation like "FY2026-M03".
func (p FiscalPeriod) String() string {
	return fmt.Sprintf("FY%d-M%02d", p.Year, p.Month)
}
