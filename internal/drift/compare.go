package drift

import (
	"strconv"
	"strings"
	"time"
)

// Comparator decides whether an extracted value matches a gold value.
// Strings compare case-insensitively after trimming; values that parse as
// numbers compare within Tolerance (absolute by default, relative when
// Relative is set); values that parse as ISO dates compare by day.
type Comparator struct {
	Tolerance float64
	Relative  bool
}

func (c Comparator) Match(expected, predicted string) bool {
	expected = strings.TrimSpace(expected)
	predicted = strings.TrimSpace(predicted)
	if expected == "" && predicted == "" {
		return true
	}
	if expected == "" || predicted == "" {
		return false
	}

	if ev, err1 := strconv.ParseFloat(strings.ReplaceAll(expected, ",", ""), 64); err1 == nil {
		if pv, err2 := strconv.ParseFloat(strings.ReplaceAll(predicted, ",", ""), 64); err2 == nil {
			return c.numericMatch(ev, pv)
		}
		return false
	}

	if ed, err1 := time.Parse("2006-01-02", expected); err1 == nil {
		if pd, err2 := time.Parse("2006-01-02", predicted); err2 == nil {
			return ed.Equal(pd)
		}
		return false
	}

	return strings.EqualFold(expected, predicted)
}

func (c Comparator) numericMatch(expected, predicted float64) bool {
	tol := c.Tolerance
	if tol <= 0 {
		tol = 0.01
	}
	diff := expected - predicted
	if diff < 0 {
		diff = -diff
	}
	if c.Relative {
		scale := expected
		if scale < 0 {
			scale = -scale
		}
		if scale == 0 {
			return diff <= tol
		}
		return diff/scale <= tol
	}
	return diff <= tol
}
