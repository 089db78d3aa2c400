package timeseries

import "time"

// IsLeapYear reports whether year is a Gregorian leap year.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// CalendarDayIndex maps a date to a stable day-of-year index in
// [1, 366]. In leap years the index equals the ordinal day of year; in
// non-leap years every day from 1 March onward is shifted up by one so
// that a given calendar date always maps to the same index (index 60
// belongs exclusively to 29 February).
func CalendarDayIndex(t time.Time) int {
	idx := t.YearDay()
	if !IsLeapYear(t.Year()) && idx >= 60 {
		idx++
	}
	if idx < 1 || idx > 366 {
		// Unreachable for any valid time.Time; a violation here is a
		// programming error, not a data problem.
		panic("timeseries: calendar day index out of [1,366]")
	}
	return idx
}

// calendarMonthLengths is the number of day indices each month spans
// in the 366-day convention (February always owns 29 indices).
var calendarMonthLengths = [13]int{0, 31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// MonthDayIndexRange returns the half-open [first, last] day-index
// range a calendar month occupies in the 366-day convention.
func MonthDayIndexRange(month time.Month) (first, last int) {
	first = 1
	for m := time.January; m < month; m++ {
		first += calendarMonthLengths[m]
	}
	return first, first + calendarMonthLengths[month] - 1
}
