package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ChartSync/internal/domain/models"
	domrepo "ChartSync/internal/domain/repository"
	pkgch "ChartSync/pkg/clickhouse"
	applogger "ChartSync/pkg/logger"
)

// CHBackfiller implements Backfiller backed by a ClickHouse candle table.
// It serves deployments where history lives in warehouse storage instead of
// an exchange REST endpoint.
type CHBackfiller struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHBackfiller(ch *pkgch.Client, table string) *CHBackfiller {
	return &CHBackfiller{db: ch.DB(), table: table}
}

// SetLogger injects a structured logger.
func (s *CHBackfiller) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHBackfiller) Fetch(ctx context.Context, instrument string, g models.Granularity, start, end int64, limit int) ([]models.Candle, error) {
	began := time.Now()
	q := fmt.Sprintf(`
        SELECT t, open, high, low, close, volume
        FROM %s
        WHERE instrument = ? AND granularity = ? AND t >= ? AND t <= ?
        ORDER BY t ASC
        LIMIT ?
    `, s.table)

	rows, err := s.db.QueryContext(ctx, q, instrument, string(g), start, end, limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse fetch query error",
				applogger.String("table", s.table),
				applogger.String("instrument", instrument),
				applogger.String("granularity", string(g)),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("fetch candles: %w", err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, limit)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Time, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candles: %w", err)
	}

	if s.l != nil {
		s.l.Debug("clickhouse fetch",
			applogger.String("instrument", instrument),
			applogger.String("granularity", string(g)),
			applogger.Int("rows", len(out)),
			applogger.Duration("took", time.Since(began)),
		)
	}
	return out, nil
}

// Health pings the underlying connection pool.
func (s *CHBackfiller) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var _ domrepo.Backfiller = (*CHBackfiller)(nil)
