package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/w1r2p1/moonshot/internal/domain"
	"github.com/w1r2p1/moonshot/internal/storage"
)

// HistoricalDataStore implements storage.HistoricalDataStore using
// ClickHouse. Observations are stored in long form, one row per
// (db, date, instrument, field).
type HistoricalDataStore struct {
	conn *Conn
}

// NewHistoricalDataStore creates a new HistoricalDataStore.
func NewHistoricalDataStore(conn *Conn) *HistoricalDataStore {
	return &HistoricalDataStore{conn: conn}
}

// Compile-time interface check.
var _ storage.HistoricalDataStore = (*HistoricalDataStore)(nil)

// InsertBulk adds observations to the given history database.
func (s *HistoricalDataStore) InsertBulk(ctx context.Context, db string, points []*domain.PricePoint) error {
	if db == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO history (db, instrument_id, date, field, value)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if p == nil || p.InstrumentID == "" || p.Field == "" {
			return storage.ErrInvalidInput
		}
		if err := batch.Append(db, p.InstrumentID, p.Date, p.Field, p.Value); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetPrices returns all observations matching the query, ordered by date
// ASC, instrument ASC, field ASC.
func (s *HistoricalDataStore) GetPrices(ctx context.Context, q storage.HistoricalQuery) ([]*domain.PricePoint, error) {
	var (
		conds = []string{"db = ?"}
		args  = []any{q.DB}
	)
	if len(q.Instruments) > 0 {
		conds = append(conds, "instrument_id IN (?)")
		args = append(args, q.Instruments)
	}
	if len(q.Fields) > 0 {
		conds = append(conds, "field IN (?)")
		args = append(args, q.Fields)
	}
	if !q.Start.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, q.Start.UTC())
	}
	if !q.End.IsZero() {
		conds = append(conds, "date <= ?")
		args = append(args, q.End.UTC())
	}

	query := fmt.Sprintf(`
		SELECT instrument_id, date, field, value
		FROM history FINAL
		WHERE %s
		ORDER BY date ASC, instrument_id ASC, field ASC
	`, strings.Join(conds, " AND "))

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// scanPricePoints scans multiple rows.
func scanPricePoints(rows chRows) ([]*domain.PricePoint, error) {
	var points []*domain.PricePoint

	for rows.Next() {
		var (
			p    domain.PricePoint
			date time.Time
		)
		if err := rows.Scan(&p.InstrumentID, &date, &p.Field, &p.Value); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		p.Date = date.UTC()
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}

	return points, nil
}
