package marketdata

import (
	"context"
	"fmt"
	"time"

	clickhouse "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Kyzereye/KyzerEyeStockLabs/services/config"
)

// Store reads and writes daily bars in ClickHouse. The engine never touches
// it directly; callers materialize a full series and hand it over.
type Store struct {
	conn   clickhouse.Conn
	db     string
	table  string
	logger *zap.Logger
}

const tableDDL = `
CREATE TABLE IF NOT EXISTS %s.%s (
    symbol  LowCardinality(String),
    date    Date,
    open    Decimal(18, 4),
    high    Decimal(18, 4),
    low     Decimal(18, 4),
    close   Decimal(18, 4),
    volume  Decimal(24, 0),
    ver     UInt64
) ENGINE = ReplacingMergeTree(ver)
ORDER BY (symbol, date)
`

// NewStore opens a ClickHouse connection and ensures the bar table exists.
func NewStore(ctx context.Context, cfg config.ClickHouseConfig, logger *zap.Logger) (*Store, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	s := &Store{conn: conn, db: cfg.Database, table: cfg.Table, logger: logger}
	if err := conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", cfg.Database)); err != nil {
		return nil, fmt.Errorf("create database: %w", err)
	}
	if err := conn.Exec(ctx, fmt.Sprintf(tableDDL, cfg.Database, cfg.Table)); err != nil {
		return nil, fmt.Errorf("create table: %w", err)
	}
	return s, nil
}

// InsertBars writes a batch of raw bars. ReplacingMergeTree keeps the last
// version per (symbol, date), so re-ingesting a file is safe.
func (s *Store) InsertBars(ctx context.Context, raws []RawBar) error {
	if len(raws) == 0 {
		return nil
	}
	batch, err := s.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s.%s", s.db, s.table))
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	ver := uint64(time.Now().UTC().UnixNano())
	for _, r := range raws {
		if err := batch.Append(
			r.Symbol,
			r.Date,
			r.Open, r.High, r.Low, r.Close,
			r.Volume,
			ver,
		); err != nil {
			return fmt.Errorf("batch append: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("batch send: %w", err)
	}
	s.logger.Info("inserted bars", zap.Int("rows", len(raws)), zap.String("symbol", raws[0].Symbol))
	return nil
}

// QueryBars reads the bar series for one symbol across [from, to], sorted and
// collapsed to the latest version per date.
func (s *Store) QueryBars(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error) {
	q := fmt.Sprintf(`
SELECT date, open, high, low, close, volume
FROM %s.%s FINAL
WHERE symbol = ? AND date >= ? AND date <= ?
ORDER BY date`, s.db, s.table)

	rows, err := s.conn.Query(ctx, q, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	var bars []Bar
	for rows.Next() {
		var (
			date                         time.Time
			open, high, low, closep, vol decimal.Decimal
		)
		if err := rows.Scan(&date, &open, &high, &low, &closep, &vol); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		bars = append(bars, RawBar{
			Symbol: symbol,
			Date:   date,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closep,
			Volume: vol,
		}.Float())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read bars: %w", err)
	}
	return bars, nil
}

// Close releases the connection.
func (s *Store) Close() error { return s.conn.Close() }
