// Package marketdata loads and stores daily OHLCV series.
package marketdata

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Bar is one daily OHLCV bar with values converted to float64 for the scan.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// RawBar carries the values as parsed, before float conversion. Exact decimal
// values are what gets written to and read from ClickHouse.
type RawBar struct {
	Symbol string
	Date   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

// Float converts a RawBar to the scan representation.
func (r RawBar) Float() Bar {
	return Bar{
		Date:   r.Date,
		Open:   r.Open.InexactFloat64(),
		High:   r.High.InexactFloat64(),
		Low:    r.Low.InexactFloat64(),
		Close:  r.Close.InexactFloat64(),
		Volume: r.Volume.InexactFloat64(),
	}
}

// ToBars converts a raw series in one pass.
func ToBars(raws []RawBar) []Bar {
	bars := make([]Bar, len(raws))
	for i, r := range raws {
		bars[i] = r.Float()
	}
	return bars
}

// Normalize sorts bars by date and drops duplicate dates, keeping the last
// occurrence. The returned slice satisfies the strictly-ascending invariant
// the simulators require.
func Normalize(bars []Bar) []Bar {
	if len(bars) < 2 {
		return bars
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	uniq := bars[:0:0]
	for _, b := range bars {
		if n := len(uniq); n > 0 && uniq[n-1].Date.Equal(b.Date) {
			uniq[n-1] = b
			continue
		}
		uniq = append(uniq, b)
	}
	return uniq
}

// Validate checks the ascending unique-date invariant.
func Validate(bars []Bar) error {
	for i := 1; i < len(bars); i++ {
		if !bars[i].Date.After(bars[i-1].Date) {
			return fmt.Errorf("bars out of order at index %d: %s then %s",
				i, bars[i-1].Date.Format("2006-01-02"), bars[i].Date.Format("2006-01-02"))
		}
	}
	return nil
}

// Closes extracts the close series.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Volumes extracts the volume series.
func Volumes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}
