// Package schedule converts between the "Nd" timespan notation used on the
// command line and the 5-field cron expression that maintenance and workflow
// schedules are stored as.
//
// Only whole-day recurrences between MinDays and MaxDays are representable.
// Both directions reject anything outside that exact shape instead of guessing.
package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/agilira/go-errors"
)

// ErrCodeInvalidArgument is the code carried by errors from TimespanToCron and Days.
const ErrCodeInvalidArgument = "AZCHAIN_INVALID_ARGUMENT"

const (
	MinDays = 1
	MaxDays = 30
)

// ExpectedTimespan describes the accepted timespan shape in error messages.
const ExpectedTimespan = "<N>d with N in [1, 30]"

var (
	timespanPattern = regexp.MustCompile(`^(\d{1,2})d$`)

	// Cron output is never zero-padded, so padded input is not a match.
	cronPattern = regexp.MustCompile(`^0 0 \*/([1-9]\d?) \* \*$`)
)

// TimespanToCron converts a timespan such as "5d" into "0 0 */5 * *".
func TimespanToCron(timespan string) (string, error) {
	days, err := Days(timespan)
	if err != nil {
		return "", err
	}
	return cronFor(days), nil
}

// CronToTimespan converts "0 0 */N * *" back into "Nd". Any other input,
// including an empty string, reports false rather than an error.
func CronToTimespan(cron string) (string, bool) {
	m := cronPattern.FindStringSubmatch(cron)
	if m == nil {
		return "", false
	}
	days, ok := parseDays(m[1])
	if !ok {
		return "", false
	}
	return timespanFor(days), true
}

// Days returns the validated day count of a timespan.
func Days(timespan string) (int, error) {
	m := timespanPattern.FindStringSubmatch(timespan)
	if m == nil {
		return 0, invalidTimespan(timespan)
	}
	days, ok := parseDays(m[1])
	if !ok {
		return 0, invalidTimespan(timespan)
	}
	return days, nil
}

// Entry is one row of the timespan/cron mapping.
type Entry struct {
	Days     int
	Timespan string
	Cron     string
}

// Table lists every representable recurrence in ascending order of days.
func Table() []Entry {
	entries := make([]Entry, 0, MaxDays-MinDays+1)
	for d := MinDays; d <= MaxDays; d++ {
		entries = append(entries, Entry{Days: d, Timespan: timespanFor(d), Cron: cronFor(d)})
	}
	return entries
}

// NextRuns returns the first n times strictly after from at which the cron
// expression "0 0 */N * *" fires, in from's location. Like cron, the step
// restarts on the 1st of every month, so a month's last run can be closer
// than N days to the next month's first.
func NextRuns(cron string, from time.Time, n int) ([]time.Time, error) {
	m := cronPattern.FindStringSubmatch(cron)
	if m == nil {
		return nil, invalidCron(cron)
	}
	days, ok := parseDays(m[1])
	if !ok {
		return nil, invalidCron(cron)
	}

	runs := make([]time.Time, 0, max(n, 0))
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	if !day.After(from) {
		day = day.AddDate(0, 0, 1)
	}
	for len(runs) < n {
		if (day.Day()-1)%days == 0 {
			runs = append(runs, day)
		}
		day = day.AddDate(0, 0, 1)
	}
	return runs, nil
}

func parseDays(digits string) (int, bool) {
	days, err := strconv.Atoi(digits)
	if err != nil || days < MinDays || days > MaxDays {
		return 0, false
	}
	return days, true
}

func cronFor(days int) string {
	return fmt.Sprintf("0 0 */%d * *", days)
}

func timespanFor(days int) string {
	return strconv.Itoa(days) + "d"
}

func invalidCron(input string) error {
	return errors.New(ErrCodeInvalidArgument,
		fmt.Sprintf("invalid cron expression %q: expected 0 0 */N * * with N in [1, 30]", input)).
		WithContext("input", input)
}

func invalidTimespan(input string) error {
	return errors.New(ErrCodeInvalidArgument,
		fmt.Sprintf("invalid timespan %q: expected %s", input, ExpectedTimespan)).
		WithContext("input", input).
		WithContext("expected", ExpectedTimespan)
}
