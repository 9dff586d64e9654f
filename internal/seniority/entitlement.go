package seniority

const (
	sixMonthsInDays = 180
	oneYearInDays   = 365

	tenYearBaseDays    = 15
	entitlementCapDays = 30
)

// Entitlement maps tenure to annual leave days per the statutory
// progressive schedule. Tiers are evaluated top-down and the first
// match wins, so the day-based half-year tier is only reachable while
// completed years is below one.
//
//	>= 10y: 15 + 1 per extra year, capped at 30
//	>=  5y: 15
//	>=  3y: 14
//	>=  2y: 10
//	>=  1y: 7
//	180 <= days < 365: 3
func Entitlement(years, daysAfterCorrection int) int {
	switch {
	case years >= 10:
		days := tenYearBaseDays + (years - 10)
		if days > entitlementCapDays {
			return entitlementCapDays
		}
		return days
	case years >= 5:
		return 15
	case years >= 3:
		return 14
	case years >= 2:
		return 10
	case years >= 1:
		return 7
	case daysAfterCorrection >= sixMonthsInDays && daysAfterCorrection < oneYearInDays:
		return 3
	default:
		return 0
	}
}
