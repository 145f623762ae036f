package scheduler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// CronExpression is a parsed five-field cron expression evaluated in a fixed
// timezone: minute hour day-of-month month day-of-week.
// Examples:
//   - "0 6 * * 1-5"  - weekdays at 06:00
//   - "*/5 * * * *"  - every 5 minutes
type CronExpression struct {
	raw      string
	loc      *time.Location
	minutes  []int // 0-59
	hours    []int // 0-23
	days     []int // 1-31
	months   []int // 1-12
	weekdays []int // 0-6 (0 = Sunday)
}

// ParseCronExpression parses a cron expression evaluated in loc (UTC if nil).
// Supports: *, */n, n, n-m, n-m/s, n,m,o
func ParseCronExpression(expr string, loc *time.Location) (*CronExpression, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("invalid cron expression: expected 5 fields, got %d", len(fields))
	}
	if loc == nil {
		loc = time.UTC
	}

	ce := &CronExpression{raw: expr, loc: loc}
	specs := []struct {
		name     string
		dst      *[]int
		min, max int
	}{
		{"minute", &ce.minutes, 0, 59},
		{"hour", &ce.hours, 0, 23},
		{"day", &ce.days, 1, 31},
		{"month", &ce.months, 1, 12},
		{"weekday", &ce.weekdays, 0, 6},
	}
	for i, spec := range specs {
		values, err := parseField(fields[i], spec.min, spec.max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", spec.name, err)
		}
		*spec.dst = values
	}
	return ce, nil
}

// MustParseCronExpression parses a cron expression or panics.
// Use only for compile-time constants.
func MustParseCronExpression(expr string, loc *time.Location) *CronExpression {
	ce, err := ParseCronExpression(expr, loc)
	if err != nil {
		panic(fmt.Sprintf("invalid cron expression %q: %v", expr, err))
	}
	return ce
}

// DailyAt returns the schedule of the daily nudge run: hour:minute in loc,
// Monday to Friday only when weekdaysOnly is set.
func DailyAt(hour, minute int, weekdaysOnly bool, loc *time.Location) (*CronExpression, error) {
	days := "*"
	if weekdaysOnly {
		days = "1-5"
	}
	return ParseCronExpression(fmt.Sprintf("%d %d * * %s", minute, hour, days), loc)
}

// parseField parses a single cron field.
func parseField(field string, min, max int) ([]int, error) {
	if strings.Contains(field, ",") {
		seen := make(map[int]bool)
		var out []int
		for _, part := range strings.Split(field, ",") {
			values, err := parseField(strings.TrimSpace(part), min, max)
			if err != nil {
				return nil, err
			}
			for _, v := range values {
				if !seen[v] {
					seen[v] = true
					out = append(out, v)
				}
			}
		}
		sort.Ints(out)
		return out, nil
	}

	step := 1
	if base, s, ok := strings.Cut(field, "/"); ok {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid step value: %s", s)
		}
		step = n
		field = base
	}

	start, end := min, max
	switch {
	case field == "*":
	case strings.Contains(field, "-"):
		lo, hi, _ := strings.Cut(field, "-")
		var err error
		if start, err = atoiInRange(lo, min, max); err != nil {
			return nil, err
		}
		if end, err = atoiInRange(hi, min, max); err != nil {
			return nil, err
		}
		if start > end {
			return nil, fmt.Errorf("invalid range: %s", field)
		}
	default:
		v, err := atoiInRange(field, min, max)
		if err != nil {
			return nil, err
		}
		start = v
		if step == 1 {
			end = v
		}
	}

	var out []int
	for i := start; i <= end; i += step {
		out = append(out, i)
	}
	return out, nil
}

func atoiInRange(s string, min, max int) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid value: %s", s)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("value out of range [%d-%d]: %d", min, max, v)
	}
	return v, nil
}

// String returns the expression and its timezone.
func (ce *CronExpression) String() string {
	return ce.raw + " " + ce.loc.String()
}

// Next returns the first matching minute strictly after the given time.
func (ce *CronExpression) Next(after time.Time) time.Time {
	t := after.In(ce.loc).Truncate(time.Minute).Add(time.Minute)

	// A year of minutes covers every satisfiable expression.
	const maxIterations = 366 * 24 * 60
	for i := 0; i < maxIterations; i++ {
		if ce.matches(t) {
			return t
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}
}

func (ce *CronExpression) matches(t time.Time) bool {
	return contains(ce.minutes, t.Minute()) &&
		contains(ce.hours, t.Hour()) &&
		contains(ce.days, t.Day()) &&
		contains(ce.months, int(t.Month())) &&
		contains(ce.weekdays, int(t.Weekday()))
}

func contains(slice []int, val int) bool {
	for _, v := range slice {
		if v == val {
			return true
		}
	}
	return false
}
