// Package calendar builds the week-aligned month grid behind the bills
// view and resolves a recurring bill's due day into a concrete date.
//
// All boundary math runs in UTC; mixing local-time "today" defaults with
// UTC month boundaries is exactly the off-by-one-day class of bug this
// package exists to avoid.
package calendar

import (
	"strings"
	"time"
)

// Day is a single cell of a month grid.
type Day struct {
	Date       time.Time
	InMonth    bool
	ISO        string
	DayOfMonth int
}

// Week is seven consecutive days, Sunday first.
type Week [7]Day

// Grid covers a target month with whole weeks, padded with adjacent-month
// days so the first cell is a Sunday and the last a Saturday.
type Grid []Week

const ymdLayout = "2006-01-02"

// MonthStart returns the first day of the month named by monthKey
// (YYYY-MM or YYYY-MM-DD) at UTC midnight. An unparseable key falls back
// to the current month: the grid must always render something.
func MonthStart(monthKey string) time.Time {
	key := strings.TrimSpace(monthKey)
	if len(key) == 7 {
		key += "-01"
	}
	parsed, err := time.ParseInLocation(ymdLayout, key, time.UTC)
	if err != nil {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(parsed.Year(), parsed.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthEndExclusive returns the first day of the month after monthKey,
// the half-open partner to MonthStart.
func MonthEndExclusive(monthKey string) time.Time {
	start := MonthStart(monthKey)
	return start.AddDate(0, 1, 0)
}

// DaysInMonth returns the day count of the month containing d.
// Day zero of the next month is the last day of this one; leap years come
// out of the calendar arithmetic, not a table.
func DaysInMonth(d time.Time) int {
	return time.Date(d.Year(), d.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampDueDay resolves a nominal due day (1-31) into a real day of the
// month containing monthDate. A bill due on the 31st lands on the last
// day of shorter months; anything below 1 lands on the 1st.
func ClampDueDay(dueDay int, monthDate time.Time) int {
	last := DaysInMonth(monthDate)
	if dueDay < 1 {
		return 1
	}
	if dueDay > last {
		return last
	}
	return dueDay
}

// DueDate places a bill's due day inside the month containing monthDate,
// clamped to the month's real length, at UTC midnight.
func DueDate(dueDay int, monthDate time.Time) time.Time {
	day := ClampDueDay(dueDay, monthDate)
	return time.Date(monthDate.Year(), monthDate.Month(), day, 0, 0, 0, 0, time.UTC)
}

// BuildGrid produces the padded calendar for monthKey. The grid starts on
// the Sunday on or before the 1st and ends on the Saturday on or after the
// month's last day; every day of the target month appears exactly once
// with InMonth set. Never fails; MonthStart's current-month fallback
// covers bad keys.
func BuildGrid(monthKey string) Grid {
	start := MonthStart(monthKey)
	endExclusive := start.AddDate(0, 1, 0)
	year, month := start.Year(), start.Month()

	gridStart := start.AddDate(0, 0, -int(start.Weekday()))
	lastOfMonth := endExclusive.AddDate(0, 0, -1)
	gridEndExclusive := endExclusive.AddDate(0, 0, int(time.Saturday-lastOfMonth.Weekday()))

	var grid Grid
	var week Week
	i := 0
	for cursor := gridStart; cursor.Before(gridEndExclusive); cursor = cursor.AddDate(0, 0, 1) {
		week[i] = Day{
			Date:       cursor,
			InMonth:    cursor.Year() == year && cursor.Month() == month,
			ISO:        cursor.Format(ymdLayout),
			DayOfMonth: cursor.Day(),
		}
		i++
		if i == 7 {
			grid = append(grid, week)
			i = 0
		}
	}
	return grid
}
