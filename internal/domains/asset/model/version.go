package model

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultVersion is reported for an asset whose history cannot be read.
const DefaultVersion = "01.00.00"

// VersionIncrement selects which part of a "MM.mm.pp" label to bump.
type VersionIncrement string

const (
	IncrementMajor VersionIncrement = "major"
	IncrementMinor VersionIncrement = "minor"
	IncrementPatch VersionIncrement = "patch"
)

// IsValid checks the increment against the known values
func (i VersionIncrement) IsValid() bool {
	switch i {
	case IncrementMajor, IncrementMinor, IncrementPatch:
		return true
	}
	return false
}

func parseVersion(label string) ([3]int, bool) {
	var parts [3]int
	fields := strings.Split(strings.TrimSpace(label), ".")
	if len(fields) != 3 {
		return parts, false
	}
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 {
			return parts, false
		}
		parts[i] = n
	}
	return parts, true
}

// NextVersion bumps a "MM.mm.pp" label. Lower parts reset to 00.
func NextVersion(current string, inc VersionIncrement) (string, error) {
	parts, ok := parseVersion(current)
	if !ok {
		return "", fmt.Errorf("version %q is not in MM.mm.pp form", current)
	}

	switch inc {
	case IncrementMajor:
		parts = [3]int{parts[0] + 1, 0, 0}
	case IncrementMinor:
		parts = [3]int{parts[0], parts[1] + 1, 0}
	case IncrementPatch:
		parts[2]++
	default:
		return "", fmt.Errorf("unknown version increment %q", inc)
	}

	return fmt.Sprintf("%02d.%02d.%02d", parts[0], parts[1], parts[2]), nil
}

// CompareVersions orders labels numerically when both parse, otherwise
// lexicographically. Returns -1, 0 or 1.
func CompareVersions(a, b string) int {
	pa, okA := parseVersion(a)
	pb, okB := parseVersion(b)
	if okA && okB {
		for i := range pa {
			if pa[i] != pb[i] {
				if pa[i] < pb[i] {
					return -1
				}
				return 1
			}
		}
		return 0
	}
	return strings.Compare(a, b)
}
