package optimizer

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMonthlyPeriodsClipToDataRange(t *testing.T) {
	periods := monthlyPeriods(date(2024, time.March, 15), date(2024, time.May, 10))
	if len(periods) != 3 {
		t.Fatalf("got %d periods, want 3", len(periods))
	}
	if !periods[0].Start.Equal(date(2024, time.March, 1)) || !periods[0].End.Equal(date(2024, time.March, 31)) {
		t.Fatalf("first period = %v..%v", periods[0].Start, periods[0].End)
	}
	if !periods[1].End.Equal(date(2024, time.April, 30)) {
		t.Fatalf("second period end = %v", periods[1].End)
	}
	// Last bucket is cut at the final data date.
	if !periods[2].End.Equal(date(2024, time.May, 10)) {
		t.Fatalf("last period end = %v", periods[2].End)
	}
}

func TestMonthlyPeriodsDecemberRollover(t *testing.T) {
	periods := monthlyPeriods(date(2023, time.December, 1), date(2024, time.January, 31))
	if len(periods) != 2 {
		t.Fatalf("got %d periods, want 2", len(periods))
	}
	if !periods[1].Start.Equal(date(2024, time.January, 1)) {
		t.Fatalf("january start = %v", periods[1].Start)
	}
}

func TestQuarterlyPeriodsAlignToQuarterBoundaries(t *testing.T) {
	periods := quarterlyPeriods(date(2024, time.February, 10), date(2024, time.August, 1))
	if len(periods) != 3 {
		t.Fatalf("got %d periods, want 3", len(periods))
	}
	if !periods[0].Start.Equal(date(2024, time.January, 1)) || !periods[0].End.Equal(date(2024, time.March, 31)) {
		t.Fatalf("q1 = %v..%v", periods[0].Start, periods[0].End)
	}
	if !periods[1].End.Equal(date(2024, time.June, 30)) {
		t.Fatalf("q2 end = %v", periods[1].End)
	}
	if !periods[2].End.Equal(date(2024, time.August, 1)) {
		t.Fatalf("q3 end = %v", periods[2].End)
	}
}

func TestYearlyPeriodsClipBothEnds(t *testing.T) {
	periods := yearlyPeriods(date(2023, time.June, 5), date(2024, time.March, 20))
	if len(periods) != 2 {
		t.Fatalf("got %d periods, want 2", len(periods))
	}
	if !periods[0].Start.Equal(date(2023, time.June, 5)) || !periods[0].End.Equal(date(2023, time.December, 31)) {
		t.Fatalf("2023 = %v..%v", periods[0].Start, periods[0].End)
	}
	if !periods[1].Start.Equal(date(2024, time.January, 1)) || !periods[1].End.Equal(date(2024, time.March, 20)) {
		t.Fatalf("2024 = %v..%v", periods[1].Start, periods[1].End)
	}
}

func TestPeriodContainsIsInclusive(t *testing.T) {
	p := Period{Start: date(2024, time.January, 1), End: date(2024, time.January, 31)}
	if !p.Contains(p.Start) || !p.Contains(p.End) {
		t.Fatal("bounds must be inclusive")
	}
	if p.Contains(date(2024, time.February, 1)) {
		t.Fatal("february should be outside")
	}
}
