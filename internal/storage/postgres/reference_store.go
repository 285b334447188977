package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/w1r2p1/moonshot/internal/domain"
	"github.com/w1r2p1/moonshot/internal/storage"
)

// ReferenceDataStore implements storage.ReferenceDataStore using
// PostgreSQL. Universe membership lives in a separate table so one
// instrument can appear in many universes.
type ReferenceDataStore struct {
	pool *Pool
}

// NewReferenceDataStore creates a new ReferenceDataStore.
func NewReferenceDataStore(pool *Pool) *ReferenceDataStore {
	return &ReferenceDataStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ReferenceDataStore = (*ReferenceDataStore)(nil)

// InsertSecurity adds a master record. Returns ErrDuplicateKey if the
// instrument id already exists.
func (s *ReferenceDataStore) InsertSecurity(ctx context.Context, sec *domain.SecurityMaster) error {
	query := `
		INSERT INTO securities (
			instrument_id, symbol, sec_type, primary_exchange, currency,
			multiplier, price_magnifier, min_tick, timezone
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		sec.InstrumentID,
		sec.Symbol,
		sec.SecType,
		sec.PrimaryExchange,
		sec.Currency,
		sec.Multiplier,
		sec.PriceMagnifier,
		sec.MinTick,
		sec.Timezone,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert security: %w", err)
	}
	return nil
}

// AddToUniverse registers an instrument under a universe name. Adding an
// existing member is a no-op.
func (s *ReferenceDataStore) AddToUniverse(ctx context.Context, universe, instrumentID string) error {
	query := `
		INSERT INTO universe_members (universe, instrument_id)
		VALUES ($1, $2)
		ON CONFLICT (universe, instrument_id) DO NOTHING
	`

	if _, err := s.pool.Exec(ctx, query, universe, instrumentID); err != nil {
		return fmt.Errorf("add to universe: %w", err)
	}
	return nil
}

// GetSecurity retrieves one master record. Returns ErrNotFound if the
// instrument id does not exist.
func (s *ReferenceDataStore) GetSecurity(ctx context.Context, instrumentID string) (*domain.SecurityMaster, error) {
	query := `
		SELECT instrument_id, symbol, sec_type, primary_exchange, currency,
		       multiplier, price_magnifier, min_tick, timezone
		FROM securities
		WHERE instrument_id = $1
	`

	row := s.pool.QueryRow(ctx, query, instrumentID)
	sec, err := scanSecurity(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get security: %w", err)
	}
	return sec, nil
}

// GetSecurities returns one row per instrument matching the selection,
// ordered by instrument id ASC.
func (s *ReferenceDataStore) GetSecurities(ctx context.Context, sel storage.SecuritySelection) ([]*domain.SecurityMaster, error) {
	query := `
		SELECT s.instrument_id, s.symbol, s.sec_type, s.primary_exchange, s.currency,
		       s.multiplier, s.price_magnifier, s.min_tick, s.timezone
		FROM securities s
		WHERE (
			s.instrument_id = ANY($1)
			OR EXISTS (
				SELECT 1 FROM universe_members um
				WHERE um.instrument_id = s.instrument_id AND um.universe = ANY($2)
			)
		)
		AND NOT s.instrument_id = ANY($3)
		AND NOT EXISTS (
			SELECT 1 FROM universe_members um
			WHERE um.instrument_id = s.instrument_id AND um.universe = ANY($4)
		)
		ORDER BY s.instrument_id
	`

	rows, err := s.pool.Query(ctx, query,
		emptyIfNil(sel.Instruments),
		emptyIfNil(sel.Universes),
		emptyIfNil(sel.ExcludeInstruments),
		emptyIfNil(sel.ExcludeUniverses),
	)
	if err != nil {
		return nil, fmt.Errorf("get securities: %w", err)
	}
	defer rows.Close()

	var out []*domain.SecurityMaster
	for rows.Next() {
		sec, err := scanSecurity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan security: %w", err)
		}
		out = append(out, sec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate securities: %w", err)
	}
	return out, nil
}

// scanSecurity scans a single row into SecurityMaster.
func scanSecurity(row pgx.Row) (*domain.SecurityMaster, error) {
	var sec domain.SecurityMaster

	err := row.Scan(
		&sec.InstrumentID,
		&sec.Symbol,
		&sec.SecType,
		&sec.PrimaryExchange,
		&sec.Currency,
		&sec.Multiplier,
		&sec.PriceMagnifier,
		&sec.MinTick,
		&sec.Timezone,
	)
	if err != nil {
		return nil, err
	}

	return &sec, nil
}

// emptyIfNil keeps pgx from binding a NULL array, which would make
// `= ANY(...)` yield NULL instead of false.
func emptyIfNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
