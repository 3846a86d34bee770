package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"ledger/internal/domain"
)

type MovementRepository struct{}

func NewMovementRepository() *MovementRepository {
	return &MovementRepository{}
}

func (r *MovementRepository) CreateTx(ctx context.Context, tx *sql.Tx, mv domain.Movement) error {
	query := `
		INSERT INTO movements (id, kind, account_id, counterparty_id, amount, description, group_id, loan_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := tx.ExecContext(ctx, query,
		mv.ID, string(mv.Kind), mv.AccountID, mv.CounterpartyID,
		mv.Amount, mv.Description, mv.GroupID, mv.LoanID, mv.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert movement %s: %w", mv.ID, err)
	}
	return nil
}

func (r *MovementRepository) GetAll(ctx context.Context, querier domain.Querier) ([]domain.Movement, error) {
	query := `
		SELECT id, kind, account_id, counterparty_id, amount, description, group_id, loan_id, created_at
		FROM movements
		ORDER BY created_at ASC
	`
	return r.queryMovements(ctx, querier, query)
}

func (r *MovementRepository) ListByAccount(ctx context.Context, querier domain.Querier, accountID string) ([]domain.Movement, error) {
	query := `
		SELECT id, kind, account_id, counterparty_id, amount, description, group_id, loan_id, created_at
		FROM movements
		WHERE account_id = $1 OR counterparty_id = $1
		ORDER BY created_at DESC
	`
	return r.queryMovements(ctx, querier, query, accountID)
}

func (r *MovementRepository) queryMovements(ctx context.Context, querier domain.Querier, query string, args ...any) ([]domain.Movement, error) {
	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	var movements []domain.Movement
	for rows.Next() {
		var mv domain.Movement
		var kind string
		var counterparty, loanID sql.NullString
		if err := rows.Scan(&mv.ID, &kind, &mv.AccountID, &counterparty,
			&mv.Amount, &mv.Description, &mv.GroupID, &loanID, &mv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan movement row: %w", err)
		}
		mv.Kind = domain.MovementKind(kind)
		if counterparty.Valid {
			mv.CounterpartyID = &counterparty.String
		}
		if loanID.Valid {
			mv.LoanID = &loanID.String
		}
		movements = append(movements, mv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate movement rows: %w", err)
	}
	return movements, nil
}
