// Package normalize canonicalizes the loosely-typed fields that arrive via
// bulk import: free-form date strings and percentage columns.
package normalize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrUnparseableDate is returned when an input matches no known date form.
// Callers skip the row; it is never fatal.
var ErrUnparseableDate = errors.New("unparseable date")

const isoDate = "2006-01-02"

// freeformLayouts are tried in order when the input is not a three-part
// day-first date. Covers ISO, timestamp, and common spreadsheet exports.
var freeformLayouts = []string{
	isoDate,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"Mon Jan 2 2006",
}

// Date parses arbitrary date text into canonical ISO YYYY-MM-DD.
//
// Three slash- or dash-delimited parts are read day-first (the import
// format's convention): a 2-digit year is expanded with a "20" prefix, day
// and month are zero-padded, and the result must be a real calendar date.
// Anything else falls through to a free-form layout list.
func Date(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", fmt.Errorf("%w: empty input", ErrUnparseableDate)
	}

	if parts := splitDateParts(s); len(parts) == 3 {
		if len(parts[2]) == 2 {
			parts[2] = "20" + parts[2]
		}
		d, derr := strconv.Atoi(parts[0])
		m, merr := strconv.Atoi(parts[1])
		y, yerr := strconv.Atoi(parts[2])
		if derr == nil && merr == nil && yerr == nil {
			iso := fmt.Sprintf("%04d-%02d-%02d", y, m, d)
			if _, err := time.Parse(isoDate, iso); err == nil {
				return iso, nil
			}
		}
		// Not a valid day-first date; fall through to free-form parsing.
	}

	for _, layout := range freeformLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(isoDate), nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnparseableDate, input)
}

// splitDateParts splits on the two accepted delimiters, dropping empty
// segments. Inputs like RFC3339 timestamps still yield three parts here but
// fail the numeric check and fall through to free-form parsing.
func splitDateParts(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == '/' || r == '-'
	})
}

// ClampPercent coerces arbitrary numeric text into [0,100]. Non-numeric
// input maps to 0; fractional values truncate.
func ClampPercent(input string) int {
	s := strings.TrimSpace(input)
	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0
		}
		n = int(f)
	}
	return Clamp(n)
}

// Clamp bounds an integer to [0,100].
func Clamp(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
