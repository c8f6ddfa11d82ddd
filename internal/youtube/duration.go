package youtube

import (
	"regexp"
	"strconv"
)

var durationPattern = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?`)

// ParseDuration converts an ISO 8601 "PT#H#M#S" duration into whole minutes.
// Seconds are truncated. Input that does not match yields 0, which callers
// treat as an unknown duration.
func ParseDuration(s string) int {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	hours := atoiOrZero(m[1])
	minutes := atoiOrZero(m[2])
	seconds := atoiOrZero(m[3])
	return hours*60 + minutes + seconds/60
}

func atoiOrZero(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
