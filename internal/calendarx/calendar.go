// Package calendarx converts between working-day offsets and calendar
// dates (spec §4.1, component C1). It never mutates the Calendar it is
// given and holds no state across calls.
package calendarx

import (
	"errors"
	"fmt"
	"time"

	"github.com/ashgrove/corepath/internal/domain"
)

// ErrNoWorkingDays is returned when a calendar has no working weekdays at
// all — every offset computation would loop forever.
var ErrNoWorkingDays = errors.New("calendar has no working days")

// ErrZeroWorkingHours is returned when a calendar's working day has zero
// configured minutes — durations cannot be materialized (spec §4.1).
var ErrZeroWorkingHours = errors.New("calendar has zero working hours per day")

// Validate checks the fatal preconditions spec §4.1/§7 require before the
// calendar is used for any conversion.
func Validate(cal *domain.Calendar) error {
	if cal == nil {
		return fmt.Errorf("calendarx: nil calendar")
	}
	anyWorking := false
	for _, ok := range cal.WorkingDays {
		if ok {
			anyWorking = true
			break
		}
	}
	if !anyWorking {
		return fmt.Errorf("calendarx: calendar %q: %w", cal.ID, ErrNoWorkingDays)
	}
	totalMinutes := 0
	for _, wh := range cal.WorkingHours {
		totalMinutes += wh.Minutes()
	}
	if totalMinutes <= 0 {
		return fmt.Errorf("calendarx: calendar %q: %w", cal.ID, ErrZeroWorkingHours)
	}
	return nil
}

// ValidationDiagnosticCode maps an error returned by Validate to the
// spec §6 calendar diagnostic code a caller's fatal diagnostic should
// carry: C002 when the calendar has no working days at all, C001 when it
// has working days but zero working minutes per day.
func ValidationDiagnosticCode(err error) domain.DiagnosticCode {
	switch {
	case errors.Is(err, ErrNoWorkingDays):
		return domain.CodeNoWorkingDays
	case errors.Is(err, ErrZeroWorkingHours):
		return domain.CodeZeroWorkingHours
	default:
		return domain.CodeZeroWorkingHours
	}
}

func truncate(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
}

// IsWorkingDay reports whether d is a working day under cal: its weekday
// is in WorkingDays, it is not inside a holiday range, and no exception
// overrides it — in that precedence order, with exceptions always winning
// last (spec §4.1 edge policy).
func IsWorkingDay(d time.Time, cal *domain.Calendar) bool {
	d = truncate(d)
	if exc, ok := cal.Exceptions[d]; ok {
		return exc
	}
	if !cal.WorkingDays[d.Weekday()] {
		return false
	}
	for _, h := range cal.Holidays {
		if h.Contains(d) {
			return false
		}
	}
	return true
}

// AddWorkingDays returns the calendar date n working days after start,
// skipping non-working days. n = 0 returns the smallest working date >=
// start (spec §4.1). n may be negative to walk backward.
func AddWorkingDays(start time.Time, n int, cal *domain.Calendar) (time.Time, error) {
	if err := Validate(cal); err != nil {
		return time.Time{}, err
	}
	cur := truncate(start)
	if n >= 0 {
		for !IsWorkingDay(cur, cal) {
			cur = cur.AddDate(0, 0, 1)
		}
		for n > 0 {
			cur = cur.AddDate(0, 0, 1)
			if IsWorkingDay(cur, cal) {
				n--
			}
		}
		return cur, nil
	}
	for !IsWorkingDay(cur, cal) {
		cur = cur.AddDate(0, 0, -1)
	}
	for n < 0 {
		cur = cur.AddDate(0, 0, -1)
		if IsWorkingDay(cur, cal) {
			n++
		}
	}
	return cur, nil
}

// WorkingDaysBetween returns the signed count of working days from a to b:
// positive if b is after a, negative if before, symmetric under swap with
// sign flip (spec §4.1).
func WorkingDaysBetween(a, b time.Time, cal *domain.Calendar) (int64, error) {
	if err := Validate(cal); err != nil {
		return 0, err
	}
	a, b = truncate(a), truncate(b)
	if a.Equal(b) {
		return 0, nil
	}
	sign := int64(1)
	if b.Before(a) {
		a, b = b, a
		sign = -1
	}
	var count int64
	for cur := a; cur.Before(b); cur = cur.AddDate(0, 0, 1) {
		if IsWorkingDay(cur, cal) {
			count++
		}
	}
	return count * sign, nil
}

// EnumerateWorkingDays returns every working day in the inclusive [a, b]
// range, used by the overallocation map (C5) to build per-(resource, day)
// cells.
func EnumerateWorkingDays(a, b time.Time, cal *domain.Calendar) ([]time.Time, error) {
	if err := Validate(cal); err != nil {
		return nil, err
	}
	a, b = truncate(a), truncate(b)
	if b.Before(a) {
		return nil, nil
	}
	var days []time.Time
	for cur := a; !cur.After(b); cur = cur.AddDate(0, 0, 1) {
		if IsWorkingDay(cur, cal) {
			days = append(days, cur)
		}
	}
	return days, nil
}
