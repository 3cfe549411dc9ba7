// Package osver compares operating-system version strings as ordered integer
// tuples. Windows build numbers and iOS/iPadOS semantic versions share the
// same algorithm; only the choice of minimum version is platform-specific.
package osver

import (
	"fmt"
	"strconv"
	"strings"
)

// Operator is a version comparison operator.
type Operator string

const (
	OpEQ Operator = "eq"
	OpNE Operator = "ne"
	OpLT Operator = "lt"
	OpLE Operator = "le"
	OpGT Operator = "gt"
	OpGE Operator = "ge"
)

// ParseOperator parses a user-supplied operator name. A malformed operator is
// a configuration error and fatal to the run.
func ParseOperator(s string) (Operator, error) {
	switch Operator(strings.ToLower(strings.TrimSpace(s))) {
	case OpEQ:
		return OpEQ, nil
	case OpNE:
		return OpNE, nil
	case OpLT:
		return OpLT, nil
	case OpLE:
		return OpLE, nil
	case OpGT:
		return OpGT, nil
	case OpGE:
		return OpGE, nil
	default:
		return "", fmt.Errorf("unknown comparison operator %q: use eq, ne, lt, le, gt, or ge", s)
	}
}

// Compare evaluates `current op target` over the two version strings.
// Versions are normalized (a bare integer gains a zero minor component, so
// "18" compares as "18.0"), parsed into integer tuples, and compared
// lexicographically with the shorter tuple zero-padded: "10.0" is less than
// "10.0.22621" because the implicit third component 0 < 22621.
//
// A string that does not parse as dot-separated integers makes the pair
// incomparable: Compare returns false and a non-nil error. Callers treat
// incomparable as "does not match" and log the failure; it never aborts a run.
func Compare(current, target string, op Operator) (bool, error) {
	a, err := parse(current)
	if err != nil {
		return false, err
	}
	b, err := parse(target)
	if err != nil {
		return false, err
	}

	c := compareTuples(a, b)
	switch op {
	case OpEQ:
		return c == 0, nil
	case OpNE:
		return c != 0, nil
	case OpLT:
		return c < 0, nil
	case OpLE:
		return c <= 0, nil
	case OpGT:
		return c > 0, nil
	case OpGE:
		return c >= 0, nil
	default:
		return false, fmt.Errorf("unknown comparison operator %q", op)
	}
}

// parse normalizes and splits a version string into integer components.
func parse(v string) ([]int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, fmt.Errorf("empty version string")
	}
	// Single build numbers ("18") compare consistently with dotted versions.
	if !strings.Contains(v, ".") {
		v += ".0"
	}

	parts := strings.Split(v, ".")
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("version %q: component %q is not a non-negative integer", v, p)
		}
		nums[i] = n
	}
	return nums, nil
}

// compareTuples is a lexicographic comparison with the shorter tuple
// zero-padded to the longer length.
func compareTuples(a, b []int) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		av, bv := 0, 0
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
	}
	return 0
}
