package accounts_repo

import (
	"context"
	"database/sql"

	"ledger/internal/domain"
)

type AccountRepository interface {
	UpsertTx(ctx context.Context, tx *sql.Tx, account domain.Account) error
	UpsertBalanceTx(ctx context.Context, tx *sql.Tx, accountID string, balance int64) error
	GetAll(ctx context.Context, querier domain.Querier) ([]domain.Account, error)
}
