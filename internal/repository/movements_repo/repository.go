package movements_repo

import (
	"context"
	"database/sql"

	"ledger/internal/domain"
)

type MovementRepository interface {
	CreateTx(ctx context.Context, tx *sql.Tx, mv domain.Movement) error
	GetAll(ctx context.Context, querier domain.Querier) ([]domain.Movement, error)
	ListByAccount(ctx context.Context, querier domain.Querier, accountID string) ([]domain.Movement, error)
}
