// Package numbering formats and parses year-scoped ticket numbers (TKT-2026-000042).
// Counters are allocated by the store from a per-year sequence row.
package numbering

import (
	"fmt"
	"strconv"
	"strings"
)

const prefix = "TKT"

// Format renders the ticket number for counter within year.
func Format(year int, counter int64) string {
	return fmt.Sprintf("%s-%04d-%06d", prefix, year, counter)
}

// YearPrefix is the LIKE/HasPrefix pattern shared by all numbers of a year.
func YearPrefix(year int) string {
	return fmt.Sprintf("%s-%04d-", prefix, year)
}

// Parse splits a ticket number into its year and counter.
func Parse(number string) (year int, counter int64, err error) {
	parts := strings.Split(number, "-")
	if len(parts) != 3 || parts[0] != prefix {
		return 0, 0, fmt.Errorf("malformed ticket number %q", number)
	}
	year, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed ticket year %q: %w", number, err)
	}
	counter, err = strconv.ParseInt(parts[2], 10, 64)
	if err != nil || counter <= 0 {
		return 0, 0, fmt.Errorf("malformed ticket counter %q", number)
	}
	return year, counter, nil
}

// MaxCounter returns the highest counter among numbers issued in year, 0 if none.
// Used to resynchronise a sequence with rows written before it existed.
func MaxCounter(numbers []string, year int) int64 {
	var max int64
	for _, n := range numbers {
		y, c, err := Parse(n)
		if err != nil || y != year {
			continue
		}
		if c > max {
			max = c
		}
	}
	return max
}
