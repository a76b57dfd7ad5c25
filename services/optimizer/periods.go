package optimizer

import "time"

// Period is one calendar bucket, inclusive on both ends.
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the bucket.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// monthlyPeriods covers [start, end] with calendar months. The first bucket
// begins on the first of the start month; the last is clipped to end.
func monthlyPeriods(start, end time.Time) []Period {
	var periods []Period
	current := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, start.Location())
	for !current.After(end) {
		next := current.AddDate(0, 1, 0)
		periods = append(periods, Period{
			Start: current,
			End:   minTime(next.AddDate(0, 0, -1), end),
		})
		current = next
	}
	return periods
}

// quarterlyPeriods covers [start, end] with calendar quarters aligned to
// Jan/Apr/Jul/Oct boundaries.
func quarterlyPeriods(start, end time.Time) []Period {
	var periods []Period
	quarterMonth := ((int(start.Month())-1)/3)*3 + 1
	current := time.Date(start.Year(), time.Month(quarterMonth), 1, 0, 0, 0, 0, start.Location())
	for !current.After(end) {
		next := current.AddDate(0, 3, 0)
		periods = append(periods, Period{
			Start: current,
			End:   minTime(next.AddDate(0, 0, -1), end),
		})
		current = next
	}
	return periods
}

// yearlyPeriods covers [start, end] with calendar years, both bounds clipped
// to the data range.
func yearlyPeriods(start, end time.Time) []Period {
	var periods []Period
	for year := start.Year(); year <= end.Year(); year++ {
		periods = append(periods, Period{
			Start: maxTime(time.Date(year, time.January, 1, 0, 0, 0, 0, start.Location()), start),
			End:   minTime(time.Date(year, time.December, 31, 0, 0, 0, 0, start.Location()), end),
		})
	}
	return periods
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
