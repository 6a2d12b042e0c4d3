package ota

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is an ordered (major, minor, patch) triple.
type Version struct {
	Major int
	Minor int
	Patch int
}

// ParseVersion parses a dotted version string permissively: missing or
// unparsable components default to 0, extra components are ignored. Release
// feeds are lenient about version strings, so no error is ever raised.
// Callers strip a leading "v" before parsing.
func ParseVersion(s string) Version {
	var v Version

	parts := strings.SplitN(strings.TrimSpace(s), ".", 4)
	fields := []*int{&v.Major, &v.Minor, &v.Patch}

	for i, field := range fields {
		if i >= len(parts) {
			break
		}
		if n, err := strconv.Atoi(strings.TrimSpace(parts[i])); err == nil && n >= 0 {
			*field = n
		}
	}

	return v
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// IsNewer reports whether candidate is strictly newer than current under
// lexicographic (major, minor, patch) order.
func IsNewer(current, candidate Version) bool {
	if candidate.Major != current.Major {
		return candidate.Major > current.Major
	}
	if candidate.Minor != current.Minor {
		return candidate.Minor > current.Minor
	}
	return candidate.Patch > current.Patch
}
