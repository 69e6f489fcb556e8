package youtube

import "regexp"

var (
	durationHours   = regexp.MustCompile(`(\d+)H`)
	durationMinutes = regexp.MustCompile(`(\d+)M`)
	durationSeconds = regexp.MustCompile(`(\d+)S`)
)

// ParseISODuration converts an ISO 8601 duration like "PT1H2M3S" to seconds.
// Malformed input parses to zero.
func ParseISODuration(s string) int64 {
	if len(s) < 2 || s[:2] != "PT" {
		return 0
	}
	var total int64
	if m := durationHours.FindStringSubmatch(s); m != nil {
		total += atoi(m[1]) * 3600
	}
	if m := durationMinutes.FindStringSubmatch(s); m != nil {
		total += atoi(m[1]) * 60
	}
	if m := durationSeconds.FindStringSubmatch(s); m != nil {
		total += atoi(m[1])
	}
	return total
}

func atoi(s string) int64 {
	var n int64
	for _, c := range s {
		n = n*10 + int64(c-'0')
	}
	return n
}
