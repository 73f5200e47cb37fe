// Package schedule computes when a task runs next. Two strategies exist:
// a fixed interval relative to the previous invocation, and a calendar
// schedule anchored to a start date/time advanced in repetition units.
package schedule

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrBadFactor rejects non-positive repetition factors at registration.
	ErrBadFactor = errors.New("repetition factor must be 1 or greater")
	// ErrBadRepetition rejects repetition values outside the known enum.
	ErrBadRepetition = errors.New("unknown repetition type")
)

// Repetition is the granularity a calendar schedule advances by.
type Repetition int

const (
	Secondly Repetition = iota + 1
	Minutely
	Hourly
	Daily
	Weekly
	Monthly
	Yearly
)

// String returns the lowercase name used in configuration and logs.
func (r Repetition) String() string {
	switch r {
	case Secondly:
		return "secondly"
	case Minutely:
		return "minutely"
	case Hourly:
		return "hourly"
	case Daily:
		return "daily"
	case Weekly:
		return "weekly"
	case Monthly:
		return "monthly"
	case Yearly:
		return "yearly"
	default:
		return fmt.Sprintf("repetition(%d)", int(r))
	}
}

// Strategy answers "when does the task run" in absolute wall-clock time.
// First is asked once before the loop starts, Next after every invocation.
type Strategy interface {
	First(now time.Time) time.Time
	Next(now time.Time) time.Time
}

// IntervalStrategy runs immediately, then a fixed duration after each
// invocation returns. It is duration-anchored: a slow invocation pushes
// every later run out.
type IntervalStrategy struct {
	interval time.Duration
}

// Interval creates an interval strategy firing every d.
func Interval(d time.Duration) *IntervalStrategy {
	return &IntervalStrategy{interval: d}
}

func (s *IntervalStrategy) First(now time.Time) time.Time { return now }

func (s *IntervalStrategy) Next(now time.Time) time.Time { return now.Add(s.interval) }

// Spec configures a calendar strategy. Zero values mean "now"/"today"/
// daily/factor 1, matching the registration defaults.
type Spec struct {
	StartTime  string     `yaml:"start_time"` // "15:04" or "15:04:05", empty = now
	StartDate  string     `yaml:"start_date"` // "2006-01-02", empty = today
	Repetition Repetition `yaml:"-"`
	Factor     int        `yaml:"factor"`
}

// CalendarStrategy computes runs as the arithmetic progression
// anchor + n*(factor repetition units), always strictly in the future.
// It is wall-clock anchored: invocation duration does not shift the grid.
type CalendarStrategy struct {
	rep    Repetition
	factor int

	hasTime          bool
	hour, min, sec   int
	hasDate          bool
	year, month, day int

	cursor time.Time // most recently scheduled run
}

// Calendar validates spec and creates a calendar strategy.
func Calendar(spec Spec) (*CalendarStrategy, error) {
	rep := spec.Repetition
	if rep == 0 {
		rep = Daily
	}
	if rep < Secondly || rep > Yearly {
		return nil, fmt.Errorf("%w: %d", ErrBadRepetition, int(spec.Repetition))
	}

	factor := spec.Factor
	if factor == 0 {
		factor = 1
	}
	if factor < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrBadFactor, spec.Factor)
	}

	s := &CalendarStrategy{rep: rep, factor: factor}

	if spec.StartTime != "" {
		tod, err := parseClock(spec.StartTime)
		if err != nil {
			return nil, err
		}
		s.hasTime = true
		s.hour, s.min, s.sec = tod.Hour(), tod.Minute(), tod.Second()
	}
	if spec.StartDate != "" {
		d, err := time.Parse("2006-01-02", spec.StartDate)
		if err != nil {
			return nil, fmt.Errorf("invalid start date %q: %w", spec.StartDate, err)
		}
		s.hasDate = true
		s.year, s.month, s.day = d.Year(), int(d.Month()), d.Day()
	}
	return s, nil
}

func parseClock(v string) (time.Time, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid start time %q", v)
}

// First anchors the schedule at combine(startDate, startTime) and advances
// in repetition units until the result is strictly after now.
func (s *CalendarStrategy) First(now time.Time) time.Time {
	s.cursor = s.anchor(now)
	for !s.cursor.After(now) {
		s.cursor = s.advance(s.cursor)
	}
	return s.cursor
}

// Next advances the last scheduled run until it is strictly after now.
// Skipped occurrences (an invocation ran longer than one unit) collapse
// into the next future slot rather than firing back to back.
func (s *CalendarStrategy) Next(now time.Time) time.Time {
	if s.cursor.IsZero() {
		return s.First(now)
	}
	for !s.cursor.After(now) {
		s.cursor = s.advance(s.cursor)
	}
	return s.cursor
}

func (s *CalendarStrategy) anchor(now time.Time) time.Time {
	year, month, day := now.Year(), int(now.Month()), now.Day()
	if s.hasDate {
		year, month, day = s.year, s.month, s.day
	}
	hour, min, sec := now.Hour(), now.Minute(), now.Second()
	if s.hasTime {
		hour, min, sec = s.hour, s.min, s.sec
	}
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, now.Location())
}

func (s *CalendarStrategy) advance(t time.Time) time.Time {
	switch s.rep {
	case Secondly:
		return t.Add(time.Duration(s.factor) * time.Second)
	case Minutely:
		return t.Add(time.Duration(s.factor) * time.Minute)
	case Hourly:
		return t.Add(time.Duration(s.factor) * time.Hour)
	case Daily:
		return t.AddDate(0, 0, s.factor)
	case Weekly:
		return t.AddDate(0, 0, 7*s.factor)
	case Monthly:
		return addMonthsClamped(t, s.factor)
	case Yearly:
		return addMonthsClamped(t, 12*s.factor)
	}
	return t
}

// addMonthsClamped moves t forward by whole calendar months, clamping the
// day of month to the length of the target month. Go's AddDate would
// normalize Jan 31 + 1 month into March; the contract here is Feb 28/29.
func addMonthsClamped(t time.Time, months int) time.Time {
	total := int(t.Month()) - 1 + months
	year := t.Year() + total/12
	month := time.Month(total%12 + 1)

	day := t.Day()
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// daysIn returns the number of days in the given month; day 0 of the next
// month is the last day of this one.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
