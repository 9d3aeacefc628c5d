// Package dates normalizes calendar dates crossing the boundary between
// user input, storage, and display.
//
// Stored instants are pinned to midday UTC so that a calendar day survives
// timezone conversion intact; a date stored at midnight shifts by one day
// for half the world's clients.
package dates

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDateInput signals an empty or unparseable user-entered date.
var ErrInvalidDateInput = errors.New("invalid date input")

const ymdLayout = "2006-01-02"

// StorageLayout is the wire form of stored instants. Zulu times render with
// a literal Z, so stored values sort lexicographically by time.
const StorageLayout = "2006-01-02T15:04:05.000Z07:00"

var monthNames = [12]string{
	"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

// NormalizeToStorage converts a user-entered calendar date (YYYY-MM-DD,
// surrounding whitespace tolerated) into the canonical storage instant: the
// same day at 12:00:00.000 UTC, formatted as a full ISO-8601 string.
//
// The first 10 characters of the result always reproduce the input day.
// Returns ErrInvalidDateInput for empty or unparseable strings; this is the
// strict boundary where a bad submission must stop the write.
func NormalizeToStorage(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", ErrInvalidDateInput
	}
	day, err := time.ParseInLocation(ymdLayout, trimmed, time.UTC)
	if err != nil {
		return "", ErrInvalidDateInput
	}
	noon := time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, time.UTC)
	return noon.Format(StorageLayout), nil
}

// ToDisplayForm reduces a stored instant to its YYYY-MM-DD prefix for
// form fields and display. Upstream values are ISO-prefixed, so the prefix
// is taken without re-parsing. Anything shorter than 10 characters
// (including the empty string standing in for a missing value) degrades to
// "". Never fails; rendering trusted data must not.
func ToDisplayForm(stored string) string {
	if len(stored) >= 10 {
		return stored[:10]
	}
	return ""
}

// PrettyLabel renders a YYYY-MM-DD string as e.g. "Mar 07, 2024".
// Input that is not exactly 10 characters, or whose numeric components
// come out zero or unparseable, is returned unchanged rather than
// rejected: this runs at render time where passthrough beats an error.
func PrettyLabel(ymd string) string {
	if len(ymd) != 10 {
		return ymd
	}
	parts := strings.SplitN(ymd, "-", 3)
	if len(parts) != 3 {
		return ymd
	}
	year, _ := strconv.Atoi(parts[0])
	month, _ := strconv.Atoi(parts[1])
	day, _ := strconv.Atoi(parts[2])
	if year == 0 || month < 1 || month > 12 || day < 1 || day > 31 {
		return ymd
	}
	return monthNames[month-1] + " " + twoDigits(day) + ", " + parts[0]
}

func twoDigits(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
