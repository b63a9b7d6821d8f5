package contract

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseISODuration parses an ISO 8601 duration like PT1H, PT30M, P1D, or
// P1DT2H30M. Weeks and days count as whole 24-hour spans.
func ParseISODuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	s = strings.ToUpper(s)
	if !strings.HasPrefix(s, "P") {
		return 0, fmt.Errorf("duration must start with P")
	}
	s = s[1:]

	var total time.Duration
	inTime := false
	num := ""
	for _, c := range s {
		switch {
		case c == 'T':
			inTime = true
			continue
		case c >= '0' && c <= '9':
			num += string(c)
			continue
		}
		n, err := strconv.Atoi(num)
		if err != nil {
			return 0, fmt.Errorf("invalid duration number: %q", num)
		}
		num = ""
		if inTime {
			switch c {
			case 'H':
				total += time.Duration(n) * time.Hour
			case 'M':
				total += time.Duration(n) * time.Minute
			case 'S':
				total += time.Duration(n) * time.Second
			default:
				return 0, fmt.Errorf("unknown time unit: %c", c)
			}
		} else {
			switch c {
			case 'D':
				total += time.Duration(n) * 24 * time.Hour
			case 'W':
				total += time.Duration(n) * 7 * 24 * time.Hour
			default:
				return 0, fmt.Errorf("unknown date unit: %c", c)
			}
		}
	}
	if num != "" {
		return 0, fmt.Errorf("trailing number without unit: %q", num)
	}
	if total <= 0 {
		return 0, fmt.Errorf("duration must be positive")
	}
	return total, nil
}
