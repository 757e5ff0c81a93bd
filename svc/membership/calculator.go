package membership

import "time"

// Calculator computes expiration dates and derives statuses.
type Calculator struct {
	graceDays int
}

// NewCalculator returns a Calculator using a grace window of graceDays.
func NewCalculator(graceDays int) Calculator {
	return Calculator{graceDays: graceDays}
}

// Next returns the expiration that follows a renewal of plan bought on today
// by a member whose current expiration is from. A zero from means today.
//
// Rolling plans add one year to from, or to today when from is older than the
// grace window. Fixed-period plans land on the last day of the month before
// the plan's renewal month: one year after the year of a future from, or one
// year after the most recent occurrence of that month otherwise.
func (c Calculator) Next(plan *Plan, from, today time.Time) time.Time {
	today = Date(today)
	from = Date(from)
	if from.IsZero() {
		from = today
	}

	if plan.IsRolling() {
		base := from
		if from.Before(today.AddDate(0, 0, -c.graceDays)) {
			base = today
		}
		next := AddYears(base, 1)
		if plan.ExpireEndOfMonth {
			next = EndOfMonth(next)
		}
		return next
	}

	month := plan.RenewalMonth - 1
	if month == 0 {
		month = time.December
	}
	if from.After(today) {
		return lastDayOf(from.Year()+1, month)
	}
	year := today.Year()
	if today.Month() < month {
		year--
	}
	return lastDayOf(year+1, month)
}

// Status derives the time-driven status for expires as of today.
func (c Calculator) Status(expires, today time.Time) Status {
	return DeriveStatus(expires, today, c.graceDays)
}

// DeriveStatus is active while expires >= today, arrears while expires is
// within graceDays before today and expired after that.
func DeriveStatus(expires, today time.Time, graceDays int) Status {
	expires, today = Date(expires), Date(today)
	switch {
	case !expires.Before(today):
		return StatusActive
	case !expires.Before(today.AddDate(0, 0, -graceDays)):
		return StatusArrears
	default:
		return StatusExpired
	}
}
