package reminder

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// clockPattern accepts a 12-hour clock time such as "4:05 PM" or "11:30am".
var clockPattern = regexp.MustCompile(`(?i)^(\d{1,2}):(\d{2})\s*(AM|PM)$`)

// ResolveDue derives an absolute due time from either a relative delay in
// minutes or a 12-hour clock string. A positive delay wins when both are
// given. A clock time earlier than now on the current day rolls over to the
// same time on the next day.
func ResolveDue(now time.Time, delayMinutes *float64, specificTime string) (time.Time, error) {
	if delayMinutes != nil && *delayMinutes > 0 && !math.IsInf(*delayMinutes, 0) {
		return now.Add(time.Duration(*delayMinutes * float64(time.Minute))), nil
	}

	specificTime = strings.TrimSpace(specificTime)
	if specificTime == "" {
		if delayMinutes != nil {
			return time.Time{}, fmt.Errorf("%w: delay must be positive, got %v", ErrInvalidSchedule, *delayMinutes)
		}
		return time.Time{}, fmt.Errorf("%w: neither delay nor time given", ErrInvalidSchedule)
	}

	hour, minute, err := parseClock(specificTime)
	if err != nil {
		return time.Time{}, err
	}
	due := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if due.Before(now) {
		due = due.AddDate(0, 0, 1)
	}
	return due, nil
}

// parseClock converts "H:MM AM/PM" into a 24-hour hour and minute.
func parseClock(s string) (hour, minute int, err error) {
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("%w: unrecognised time %q", ErrInvalidSchedule, s)
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	if hour < 1 || hour > 12 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: time %q out of range", ErrInvalidSchedule, s)
	}

	hour %= 12
	if strings.EqualFold(m[3], "PM") {
		hour += 12
	}
	return hour, minute, nil
}

// SameDay reports whether a and b fall on the same calendar day in a's
// location.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
