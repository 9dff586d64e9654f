// Package seniority computes employee tenure and the statutory annual
// leave entitlement derived from it. Everything here is pure: callers
// supply the reference date, nothing reads the clock or the database.
package seniority

import (
	"fmt"
	"time"
)

type Details struct {
	Years                int       `json:"seniority_in_years"`
	YearsDecimal         float64   `json:"seniority_in_years_decimal"`
	DaysBeforeCorrection int       `json:"seniority_in_days_before_correction"`
	DaysAfterCorrection  int       `json:"seniority_in_days_after_correction"`
	DaysUntilNextCycle   int       `json:"days_until_next_cycle"`
	CycleLabel           string    `json:"current_seniority_cycle"`
	CycleStart           time.Time `json:"current_cycle_start_date"`
}

// Calculate derives tenure metrics for an employee hired on hireDate,
// as of ref (taken at day granularity). correctionDays shifts the
// day-based tenure only; the completed-years count always comes from
// the uncorrected calendar difference. A hire date in the future yields
// negative day and year counts rather than an error.
func Calculate(hireDate time.Time, correctionDays int, ref time.Time) Details {
	hire := DateOf(hireDate)
	today := DateOf(ref)

	daysBefore := daysBetween(hire, today)
	daysAfter := daysBefore + correctionDays
	years := fullYearsBetween(hire, today)

	var label string
	var nextAnniversary time.Time
	if years < 1 {
		label = "未滿1年"
		nextAnniversary = AddYears(hire, 1)
	} else {
		label = fmt.Sprintf("%d年-%d年", years, years+1)
		nextAnniversary = AddYears(hire, years+1)
	}

	return Details{
		Years:                years,
		YearsDecimal:         float64(daysAfter) / 365.25,
		DaysBeforeCorrection: daysBefore,
		DaysAfterCorrection:  daysAfter,
		DaysUntilNextCycle:   daysBetween(today, nextAnniversary),
		CycleLabel:           label,
		CycleStart:           AddYears(hire, years),
	}
}

// DateOf truncates t to a calendar date in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

// fullYearsBetween counts completed anniversaries, truncating toward
// zero so future hire dates produce negative counts.
func fullYearsBetween(from, to time.Time) int {
	years := to.Year() - from.Year()
	anniversary := AddYears(from, years)
	if !to.Before(from) {
		if anniversary.After(to) {
			years--
		}
	} else {
		if anniversary.Before(to) {
			years++
		}
	}
	return years
}

// AddYears keeps Feb 29 anniversaries on Feb 28 in non-leap years
// instead of letting the date normalize into March.
func AddYears(t time.Time, years int) time.Time {
	y, m, d := t.Date()
	y += years
	if m == time.February && d == 29 && !isLeapYear(y) {
		d = 28
	}
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func isLeapYear(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}
