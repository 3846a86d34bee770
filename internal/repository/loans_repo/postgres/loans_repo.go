package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"ledger/internal/domain"
)

type LoanRepository struct{}

func NewLoanRepository() *LoanRepository {
	return &LoanRepository{}
}

func (r *LoanRepository) UpsertTx(ctx context.Context, tx *sql.Tx, l domain.Loan) error {
	query := `
		INSERT INTO loans (id, account_id, principal, rate_bps, term_months, status, requested_at, approved_at, due_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET principal = EXCLUDED.principal,
		    rate_bps = EXCLUDED.rate_bps,
		    term_months = EXCLUDED.term_months,
		    status = EXCLUDED.status,
		    approved_at = EXCLUDED.approved_at,
		    due_at = EXCLUDED.due_at
	`
	_, err := tx.ExecContext(ctx, query,
		l.ID, l.AccountID, l.Principal, l.RateBps, l.TermMonths,
		string(l.Status), l.RequestedAt, l.ApprovedAt, l.DueAt)
	if err != nil {
		return fmt.Errorf("failed to upsert loan %s: %w", l.ID, err)
	}
	return nil
}

func (r *LoanRepository) GetAll(ctx context.Context, querier domain.Querier) ([]domain.Loan, error) {
	query := `
		SELECT id, account_id, principal, rate_bps, term_months, status, requested_at, approved_at, due_at
		FROM loans
	`
	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}
	defer rows.Close()

	var loans []domain.Loan
	for rows.Next() {
		var l domain.Loan
		var status string
		var approvedAt sql.NullTime
		if err := rows.Scan(&l.ID, &l.AccountID, &l.Principal, &l.RateBps,
			&l.TermMonths, &status, &l.RequestedAt, &approvedAt, &l.DueAt); err != nil {
			return nil, fmt.Errorf("failed to scan loan row: %w", err)
		}
		l.Status = domain.LoanStatus(status)
		if approvedAt.Valid {
			t := approvedAt.Time.UTC()
			l.ApprovedAt = &t
		}
		loans = append(loans, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate loan rows: %w", err)
	}
	return loans, nil
}
