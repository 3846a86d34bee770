package loans_repo

import (
	"context"
	"database/sql"

	"ledger/internal/domain"
)

type LoanRepository interface {
	UpsertTx(ctx context.Context, tx *sql.Tx, l domain.Loan) error
	GetAll(ctx context.Context, querier domain.Querier) ([]domain.Loan, error)
}
