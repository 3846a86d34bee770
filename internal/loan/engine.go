package loan

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"ledger/internal/domain"
	"ledger/internal/ledger"
	"ledger/internal/util"
)

// Recorder receives loan state for write-behind persistence. Called
// outside hot paths, must not block.
type Recorder interface {
	RecordLoan(l domain.Loan)
}

// Engine owns loan records and their pending -> approved/rejected state
// machine. All balance mutation is delegated to the ledger engine; the
// loans mutex is held across the approval credit so the status flip and
// the deposit commit as one unit.
type Engine struct {
	ledger         *ledger.Engine
	recorder       Recorder
	logger         *zap.Logger
	defaultRateBps int64

	mu    sync.RWMutex
	loans map[string]*domain.Loan
}

func NewEngine(ledgerEngine *ledger.Engine, recorder Recorder, defaultRateBps int64, logger *zap.Logger) *Engine {
	return &Engine{
		ledger:         ledgerEngine,
		recorder:       recorder,
		logger:         logger,
		defaultRateBps: defaultRateBps,
		loans:          make(map[string]*domain.Loan),
	}
}

// Request creates a pending loan. The interest rate falls back to the
// configured default when nil. No ledger interaction happens here.
func (e *Engine) Request(ctx context.Context, accountID string, principal int64, rateBps *int64, termMonths int) (domain.Loan, error) {
	if principal <= 0 {
		return domain.Loan{}, domain.ErrInvalidAmount
	}
	if termMonths <= 0 {
		return domain.Loan{}, domain.ErrInvalidTerm
	}
	rate := e.defaultRateBps
	if rateBps != nil {
		if *rateBps < 0 {
			return domain.Loan{}, domain.ErrInvalidRate
		}
		rate = *rateBps
	}
	if !e.ledger.AccountExists(accountID) {
		return domain.Loan{}, domain.ErrAccountNotFound
	}

	now := time.Now().UTC()
	l := domain.Loan{
		ID:          util.NewID(),
		AccountID:   accountID,
		Principal:   principal,
		RateBps:     rate,
		TermMonths:  termMonths,
		Status:      domain.LoanStatusPending,
		RequestedAt: now,
		DueAt:       now.AddDate(0, termMonths, 0),
	}

	e.mu.Lock()
	e.loans[l.ID] = &l
	e.mu.Unlock()

	e.logger.Info("loan requested",
		zap.String("loan_id", l.ID),
		zap.String("account_id", accountID),
		zap.Int64("principal", principal),
		zap.Int64("rate_bps", rate),
		zap.Int("term_months", termMonths))
	e.record(l)
	cp := l
	return cp, nil
}

// Amend updates principal, rate or term of a loan that is still
// pending. A term change recomputes the due date.
func (e *Engine) Amend(ctx context.Context, loanID string, principal, rateBps *int64, termMonths *int) (domain.Loan, error) {
	if principal != nil && *principal <= 0 {
		return domain.Loan{}, domain.ErrInvalidAmount
	}
	if rateBps != nil && *rateBps < 0 {
		return domain.Loan{}, domain.ErrInvalidRate
	}
	if termMonths != nil && *termMonths <= 0 {
		return domain.Loan{}, domain.ErrInvalidTerm
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.loans[loanID]
	if !ok {
		return domain.Loan{}, domain.ErrLoanNotFound
	}
	if l.Status != domain.LoanStatusPending {
		return domain.Loan{}, domain.ErrInvalidLoanState
	}
	if principal != nil {
		l.Principal = *principal
	}
	if rateBps != nil {
		l.RateBps = *rateBps
	}
	if termMonths != nil {
		l.TermMonths = *termMonths
		l.DueAt = l.RequestedAt.AddDate(0, *termMonths, 0)
	}
	e.logger.Info("loan amended", zap.String("loan_id", loanID))
	e.record(*l)
	cp := *l
	return cp, nil
}

// Approve flips the loan to approved and credits the principal to the
// borrower as a single unit. The deposit re-verifies its preconditions
// before mutating, so a failure leaves the loan pending and the ledger
// untouched; a second Approve finds the loan no longer pending and
// never reaches the ledger.
func (e *Engine) Approve(ctx context.Context, loanID string) (domain.Loan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.loans[loanID]
	if !ok {
		return domain.Loan{}, domain.ErrLoanNotFound
	}
	if l.Status != domain.LoanStatusPending {
		return domain.Loan{}, domain.ErrInvalidLoanState
	}

	description := fmt.Sprintf("loan #%s approved", l.ID)
	if _, err := e.ledger.DepositForLoan(ctx, l.AccountID, l.Principal, description, l.ID); err != nil {
		e.logger.Error("loan credit failed, loan stays pending",
			zap.String("loan_id", loanID),
			zap.Error(err))
		return domain.Loan{}, err
	}

	now := time.Now().UTC()
	l.Status = domain.LoanStatusApproved
	l.ApprovedAt = &now
	e.logger.Info("loan approved",
		zap.String("loan_id", loanID),
		zap.String("account_id", l.AccountID),
		zap.Int64("principal", l.Principal))
	e.record(*l)
	cp := *l
	return cp, nil
}

// Reject flips the loan to rejected. No ledger interaction.
func (e *Engine) Reject(ctx context.Context, loanID string) (domain.Loan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.loans[loanID]
	if !ok {
		return domain.Loan{}, domain.ErrLoanNotFound
	}
	if l.Status != domain.LoanStatusPending {
		return domain.Loan{}, domain.ErrInvalidLoanState
	}
	l.Status = domain.LoanStatusRejected
	e.logger.Info("loan rejected", zap.String("loan_id", loanID))
	e.record(*l)
	cp := *l
	return cp, nil
}

// Loan returns one loan by id.
func (e *Engine) Loan(ctx context.Context, loanID string) (domain.Loan, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	l, ok := e.loans[loanID]
	if !ok {
		return domain.Loan{}, domain.ErrLoanNotFound
	}
	cp := *l
	return cp, nil
}

// LoansByAccount lists an account's loans, most recently requested
// first.
func (e *Engine) LoansByAccount(ctx context.Context, accountID string) ([]domain.Loan, error) {
	if !e.ledger.AccountExists(accountID) {
		return nil, domain.ErrAccountNotFound
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []domain.Loan
	for _, l := range e.loans {
		if l.AccountID == accountID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RequestedAt.After(out[j].RequestedAt)
	})
	return out, nil
}

// Restore rebuilds loan state from persistence at boot.
func (e *Engine) Restore(loans []domain.Loan) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loans = make(map[string]*domain.Loan, len(loans))
	for _, l := range loans {
		cp := l
		e.loans[cp.ID] = &cp
	}
}

func (e *Engine) record(l domain.Loan) {
	if e.recorder != nil {
		e.recorder.RecordLoan(l)
	}
}
