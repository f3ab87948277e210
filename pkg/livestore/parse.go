package livestore

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	datetimePattern = regexp.MustCompile(`^\d+-\d+-\d+ \d+:\d+:\d+$`)
	durationPattern = regexp.MustCompile(`^\d+:\d+:\d+$`)
)

const datetimeLayout = "2006-1-2 15:4:5"

// parseAny applies the LiveStore parsing rule: a text value matching
// "YYYY-MM-DD HH:MM:SS" is promoted to a time.Time, "HH:MM:SS" to a
// time.Duration, and a purely numeric string without a leading zero
// becomes an int64 or float64. Anything else is returned unchanged.
func parseAny(raw string) any {
	switch {
	case datetimePattern.MatchString(raw):
		if t, err := time.ParseInLocation(datetimeLayout, raw, time.Local); err == nil {
			return t
		}
	case durationPattern.MatchString(raw):
		if d, ok := parseDuration(raw); ok {
			return d
		}
	case isNumeric(raw):
		if strings.Contains(raw, ".") {
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				return f
			}
		} else if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return i
		}
	}
	return raw
}

func parseDuration(raw string) (time.Duration, bool) {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	s, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second, true
}

// isNumeric mirrors the original rule: digits (optionally with a
// single decimal point), not starting with a leading zero unless the
// value is exactly "0" or a decimal such as "0.5".
func isNumeric(raw string) bool {
	if raw == "" {
		return false
	}
	body := raw
	if strings.HasPrefix(body, "-") {
		body = body[1:]
	}
	if body == "" {
		return false
	}
	dotSeen := false
	for i, r := range body {
		if r == '.' {
			if dotSeen {
				return false
			}
			dotSeen = true
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
		if i == 0 && r == '0' && len(body) > 1 && body[1] != '.' {
			return false
		}
	}
	return true
}
