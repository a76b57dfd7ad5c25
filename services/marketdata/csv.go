package marketdata

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Accepted date layouts for CSV input. Daily exports come either as plain
// dates or as datetimes.
var dateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05", "01/02/2006"}

// LoadCSV reads a daily-bar CSV (date,open,high,low,close,volume). Rows with
// unparseable dates or prices are dropped rather than failing the load; the
// result is sorted and de-duplicated.
func LoadCSV(path string, logger *zap.Logger) ([]Bar, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(bufio.NewReader(file))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var bars []Bar
	dropped := 0
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line++
			dropped++
			continue
		}
		line++
		if len(rec) < 6 {
			dropped++
			continue
		}
		// Header row.
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "date") {
			continue
		}
		raw, ok := parseRow(rec)
		if !ok {
			dropped++
			continue
		}
		bars = append(bars, raw.Float())
	}

	bars = Normalize(bars)
	logger.Info("loaded bars from csv",
		zap.String("path", path),
		zap.Int("bars", len(bars)),
		zap.Int("dropped_rows", dropped),
	)
	return bars, nil
}

// LoadRawCSV reads the same CSV shape but keeps exact decimal values and
// stamps each row with the symbol, ready for a ClickHouse batch insert.
func LoadRawCSV(path, symbol string, logger *zap.Logger) ([]RawBar, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(bufio.NewReader(file))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var raws []RawBar
	dropped := 0
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line++
			dropped++
			continue
		}
		line++
		if len(rec) < 6 {
			dropped++
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "date") {
			continue
		}
		raw, ok := parseRow(rec)
		if !ok {
			dropped++
			continue
		}
		raw.Symbol = symbol
		raws = append(raws, raw)
	}

	logger.Info("loaded raw bars from csv",
		zap.String("path", path),
		zap.String("symbol", symbol),
		zap.Int("rows", len(raws)),
		zap.Int("dropped_rows", dropped),
	)
	return raws, nil
}

func parseRow(rec []string) (RawBar, bool) {
	date, ok := parseDate(strings.TrimSpace(strings.TrimPrefix(rec[0], "\uFEFF")))
	if !ok {
		return RawBar{}, false
	}
	vals := make([]decimal.Decimal, 5)
	for i := 0; i < 5; i++ {
		d, err := decimal.NewFromString(strings.TrimSpace(rec[i+1]))
		if err != nil {
			// A missing volume field is tolerated; missing prices are not.
			if i == 4 {
				d = decimal.Zero
			} else {
				return RawBar{}, false
			}
		}
		vals[i] = d
	}
	return RawBar{
		Date:   date,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, true
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
