package lesson

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ResolveChoice maps a learner's multiple-choice response to a 0-based
// option index.
//
// Accepted forms:
//   - a 1-indexed option number ("2")
//   - the option text, compared case-insensitively with surrounding
//     whitespace trimmed
//
// Returns false if the response matches no option.
func ResolveChoice(response string, cfu CFU) (int, bool) {
	response = strings.TrimSpace(response)
	if response == "" {
		return 0, false
	}

	if n, err := strconv.Atoi(response); err == nil && n >= 1 && n <= len(cfu.Options) {
		return n - 1, true
	}

	for i, opt := range cfu.Options {
		if strings.EqualFold(strings.TrimSpace(opt), response) {
			return i, true
		}
	}
	return 0, false
}

// ParseNumber parses a numeric response. Integers, decimals and simple
// fractions ("3/4") are accepted; a trailing percent sign is ignored.
func ParseNumber(response string) (float64, error) {
	s := strings.TrimSpace(response)
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, fmt.Errorf("empty numeric answer")
	}

	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid numerator: %w", err)
		}
		d, err := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid denominator: %w", err)
		}
		if d == 0 {
			return 0, fmt.Errorf("zero denominator")
		}
		return n / d, nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %w", err)
	}
	return f, nil
}

// WithinTolerance reports whether value is within the CFU's tolerance of the
// expected value. A zero tolerance still allows for float rounding.
func WithinTolerance(value float64, cfu CFU) bool {
	tol := cfu.Tolerance
	if tol == 0 {
		tol = 1e-9
	}
	return math.Abs(value-cfu.Expected) <= tol
}
