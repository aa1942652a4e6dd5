package updater

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a semantic version as [major, minor, patch].
type Version [3]int

// ParseVersion parses "1.2.3" or "v1.2.3". Pre-release suffixes after a
// hyphen are ignored for comparison purposes ("1.2.3-rc1" compares as 1.2.3).
func ParseVersion(s string) (Version, error) {
	s = strings.TrimPrefix(s, "v")
	if i := strings.IndexByte(s, '-'); i >= 0 {
		s = s[:i]
	}

	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}

	var v Version
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("invalid version component %q", p)
		}
		v[i] = n
	}
	return v, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v[0], v[1], v[2])
}

// Compare returns -1, 0 or 1 as v is older than, equal to or newer than other.
func (v Version) Compare(other Version) int {
	for i := range v {
		switch {
		case v[i] < other[i]:
			return -1
		case v[i] > other[i]:
			return 1
		}
	}
	return 0
}
