package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ledger/internal/domain"
)

type AccountRepository struct{}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{}
}

func (r *AccountRepository) UpsertTx(ctx context.Context, tx *sql.Tx, account domain.Account) error {
	query := `
		INSERT INTO accounts (id, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET balance = EXCLUDED.balance, updated_at = EXCLUDED.updated_at
	`
	_, err := tx.ExecContext(ctx, query,
		account.ID, account.Balance, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert account %s: %w", account.ID, err)
	}
	return nil
}

func (r *AccountRepository) UpsertBalanceTx(ctx context.Context, tx *sql.Tx, accountID string, balance int64) error {
	query := `
		INSERT INTO accounts (id, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (id) DO UPDATE
		SET balance = EXCLUDED.balance, updated_at = EXCLUDED.updated_at
	`
	_, err := tx.ExecContext(ctx, query, accountID, balance, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert balance for account %s: %w", accountID, err)
	}
	return nil
}

func (r *AccountRepository) GetAll(ctx context.Context, querier domain.Querier) ([]domain.Account, error) {
	query := `
		SELECT id, balance, created_at, updated_at
		FROM accounts
	`
	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var acc domain.Account
		if err := rows.Scan(&acc.ID, &acc.Balance, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account row: %w", err)
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate account rows: %w", err)
	}
	return accounts, nil
}
