package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/w1r2p1/moonshot/internal/domain"
	"github.com/w1r2p1/moonshot/internal/storage"
)

// AccountStore implements storage.AccountStore using PostgreSQL.
// Balances are append-only snapshots; reads take the latest per account.
type AccountStore struct {
	pool *Pool
}

// NewAccountStore creates a new AccountStore.
func NewAccountStore(pool *Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AccountStore = (*AccountStore)(nil)

// InsertBalance records a balance snapshot at the given time.
func (s *AccountStore) InsertBalance(ctx context.Context, b *domain.AccountBalance, asOf time.Time) error {
	query := `
		INSERT INTO account_balances (account, net_liquidation, currency, as_of)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.pool.Exec(ctx, query, b.Account, b.NetLiquidation, b.Currency, asOf)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert account balance: %w", err)
	}
	return nil
}

// GetBalances returns the latest snapshot per requested account. Returns
// ErrNotFound if any requested account has no snapshot.
func (s *AccountStore) GetBalances(ctx context.Context, accounts []string) ([]*domain.AccountBalance, error) {
	query := `
		SELECT DISTINCT ON (account) account, net_liquidation, currency
		FROM account_balances
		WHERE account = ANY($1)
		ORDER BY account, as_of DESC
	`

	rows, err := s.pool.Query(ctx, query, emptyIfNil(accounts))
	if err != nil {
		return nil, fmt.Errorf("get balances: %w", err)
	}
	defer rows.Close()

	byAccount := make(map[string]*domain.AccountBalance)
	for rows.Next() {
		var b domain.AccountBalance
		if err := rows.Scan(&b.Account, &b.NetLiquidation, &b.Currency); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		byAccount[b.Account] = &b
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balances: %w", err)
	}

	out := make([]*domain.AccountBalance, 0, len(accounts))
	for _, account := range accounts {
		b, exists := byAccount[account]
		if !exists {
			return nil, fmt.Errorf("%w: account %s", storage.ErrNotFound, account)
		}
		out = append(out, b)
	}
	return out, nil
}
