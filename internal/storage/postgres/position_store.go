package postgres

import (
	"context"
	"fmt"

	"github.com/w1r2p1/moonshot/internal/domain"
	"github.com/w1r2p1/moonshot/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

// UpsertPosition records or replaces a held quantity. A zero quantity
// removes the record.
func (s *PositionStore) UpsertPosition(ctx context.Context, p *domain.HeldPosition) error {
	if p.Quantity == 0 {
		query := `
			DELETE FROM positions
			WHERE order_ref = $1 AND account = $2 AND instrument_id = $3
		`
		if _, err := s.pool.Exec(ctx, query, p.OrderRef, p.Account, p.InstrumentID); err != nil {
			return fmt.Errorf("delete position: %w", err)
		}
		return nil
	}

	query := `
		INSERT INTO positions (order_ref, account, instrument_id, quantity, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (order_ref, account, instrument_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = now()
	`

	if _, err := s.pool.Exec(ctx, query, p.OrderRef, p.Account, p.InstrumentID, p.Quantity); err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	return nil
}

// GetPositions returns held quantities for the grouping label across the
// given accounts and instruments, ordered by instrument then account.
func (s *PositionStore) GetPositions(ctx context.Context, orderRef string, accounts, instruments []string) ([]*domain.HeldPosition, error) {
	query := `
		SELECT order_ref, account, instrument_id, quantity
		FROM positions
		WHERE order_ref = $1 AND account = ANY($2) AND instrument_id = ANY($3)
		ORDER BY instrument_id, account
	`

	rows, err := s.pool.Query(ctx, query, orderRef, emptyIfNil(accounts), emptyIfNil(instruments))
	if err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}
	defer rows.Close()

	var out []*domain.HeldPosition
	for rows.Next() {
		var p domain.HeldPosition
		if err := rows.Scan(&p.OrderRef, &p.Account, &p.InstrumentID, &p.Quantity); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate positions: %w", err)
	}
	return out, nil
}
