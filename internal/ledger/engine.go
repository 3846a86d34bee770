package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"ledger/internal/domain"
	"ledger/internal/util"
)

// Recorder receives committed operations for write-behind persistence
// and event publishing. RecordMovement is called inside the engine's
// account critical section so entries arrive in commit order;
// implementations must not block.
type Recorder interface {
	RecordAccount(a domain.Account)
	RecordMovement(mv domain.Movement, balances map[string]int64)
}

// Engine executes deposit, withdrawal and transfer atomically against
// the AccountStore and owns the append-only movement log.
type Engine struct {
	accounts *AccountStore
	recorder Recorder
	logger   *zap.Logger

	mu        sync.RWMutex
	movements []domain.Movement
	byID      map[string]int
}

func NewEngine(accounts *AccountStore, recorder Recorder, logger *zap.Logger) *Engine {
	return &Engine{
		accounts: accounts,
		recorder: recorder,
		logger:   logger,
		byID:     make(map[string]int),
	}
}

// CreateAccount provisions an account. An opening balance is recorded
// as a deposit movement so the log always explains the balance.
func (e *Engine) CreateAccount(ctx context.Context, opening int64, description string) (domain.Account, error) {
	if opening < 0 {
		return domain.Account{}, domain.ErrInvalidAmount
	}
	id := util.NewID()
	now := time.Now().UTC()
	if err := e.accounts.Create(id, now); err != nil {
		return domain.Account{}, err
	}
	e.logger.Info("account created", zap.String("account_id", id))
	if e.recorder != nil {
		e.recorder.RecordAccount(domain.Account{ID: id, CreatedAt: now, UpdatedAt: now})
	}
	if opening > 0 {
		if description == "" {
			description = "Opening balance"
		}
		if _, err := e.Deposit(ctx, id, opening, description); err != nil {
			return domain.Account{}, err
		}
	}
	return e.accounts.get(id)
}

// Deposit increments the balance and appends a deposit movement.
func (e *Engine) Deposit(ctx context.Context, accountID string, amount int64, description string) (int64, error) {
	return e.deposit(ctx, accountID, amount, description, nil)
}

// DepositForLoan is Deposit with the movement linked to the loan that
// produced it. Only the loan engine calls it.
func (e *Engine) DepositForLoan(ctx context.Context, accountID string, amount int64, description, loanID string) (int64, error) {
	return e.deposit(ctx, accountID, amount, description, &loanID)
}

func (e *Engine) deposit(ctx context.Context, accountID string, amount int64, description string, loanID *string) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	if description == "" {
		description = "Deposit"
	}
	now := time.Now().UTC()
	mv := domain.Movement{
		ID:          util.NewID(),
		Kind:        domain.MovementDeposit,
		AccountID:   accountID,
		Amount:      amount,
		Description: description,
		GroupID:     util.NewID(),
		LoanID:      loanID,
		CreatedAt:   now,
	}
	balance, err := e.accounts.Update(accountID, amount, now, func(newBalance int64) {
		e.append(mv)
		e.record(mv, map[string]int64{accountID: newBalance})
	})
	if err != nil {
		return 0, err
	}
	e.logger.Info("deposit applied",
		zap.String("account_id", accountID),
		zap.Int64("amount", amount),
		zap.Int64("balance", balance))
	return balance, nil
}

// Withdraw verifies sufficiency and decrements as one atomic step; on
// insufficient funds nothing changes.
func (e *Engine) Withdraw(ctx context.Context, accountID string, amount int64, description string) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	if description == "" {
		description = "Withdrawal"
	}
	now := time.Now().UTC()
	mv := domain.Movement{
		ID:          util.NewID(),
		Kind:        domain.MovementWithdrawal,
		AccountID:   accountID,
		Amount:      amount,
		Description: description,
		GroupID:     util.NewID(),
		CreatedAt:   now,
	}
	balance, err := e.accounts.Update(accountID, -amount, now, func(newBalance int64) {
		e.append(mv)
		e.record(mv, map[string]int64{accountID: newBalance})
	})
	if err != nil {
		return 0, err
	}
	e.logger.Info("withdrawal applied",
		zap.String("account_id", accountID),
		zap.Int64("amount", amount),
		zap.Int64("balance", balance))
	return balance, nil
}

// Transfer debits the source, credits the destination and appends the
// two movement legs, all inside one critical section over both
// accounts. Returns the updated source balance.
func (e *Engine) Transfer(ctx context.Context, fromID, toID string, amount int64, description string) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	if fromID == toID {
		return 0, domain.ErrSelfTransfer
	}
	if description == "" {
		description = "Transfer"
	}
	now := time.Now().UTC()
	groupID := util.NewID()
	out := domain.Movement{
		ID:             util.NewID(),
		Kind:           domain.MovementTransferOut,
		AccountID:      fromID,
		CounterpartyID: &toID,
		Amount:         amount,
		Description:    description,
		GroupID:        groupID,
		CreatedAt:      now,
	}
	in := domain.Movement{
		ID:             util.NewID(),
		Kind:           domain.MovementTransferIn,
		AccountID:      toID,
		CounterpartyID: &fromID,
		Amount:         amount,
		Description:    description,
		GroupID:        groupID,
		CreatedAt:      now,
	}
	fromBalance, toBalance, err := e.accounts.UpdatePair(fromID, toID, amount, now, func(debitBalance, creditBalance int64) {
		e.append(out, in)
		balances := map[string]int64{fromID: debitBalance, toID: creditBalance}
		e.record(out, balances)
		e.record(in, balances)
	})
	if err != nil {
		return 0, err
	}
	e.logger.Info("transfer applied",
		zap.String("from_account_id", fromID),
		zap.String("to_account_id", toID),
		zap.Int64("amount", amount),
		zap.Int64("from_balance", fromBalance),
		zap.Int64("to_balance", toBalance))
	return fromBalance, nil
}

// Balance returns the current balance of an account.
func (e *Engine) Balance(ctx context.Context, accountID string) (int64, error) {
	return e.accounts.Balance(accountID)
}

// Account returns a snapshot of one account.
func (e *Engine) Account(ctx context.Context, accountID string) (domain.Account, error) {
	return e.accounts.get(accountID)
}

// AccountExists reports whether the account is known.
func (e *Engine) AccountExists(accountID string) bool {
	return e.accounts.Exists(accountID)
}

// Movements lists every movement where the account is source or
// counterparty, newest first.
func (e *Engine) Movements(ctx context.Context, accountID string) ([]domain.Movement, error) {
	if !e.accounts.Exists(accountID) {
		return nil, domain.ErrAccountNotFound
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []domain.Movement
	for i := len(e.movements) - 1; i >= 0; i-- {
		mv := e.movements[i]
		if mv.AccountID == accountID {
			out = append(out, mv)
		}
	}
	return out, nil
}

// Movement returns one movement by id.
func (e *Engine) Movement(ctx context.Context, id string) (domain.Movement, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	i, ok := e.byID[id]
	if !ok {
		return domain.Movement{}, domain.ErrMovementNotFound
	}
	return e.movements[i], nil
}

// Restore rebuilds the engine from persisted state at boot. Movements
// are re-ordered by creation time so listings stay newest-first.
func (e *Engine) Restore(accounts []domain.Account, movements []domain.Movement) {
	e.accounts.Restore(accounts)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.movements = make([]domain.Movement, len(movements))
	copy(e.movements, movements)
	sort.SliceStable(e.movements, func(i, j int) bool {
		return e.movements[i].CreatedAt.Before(e.movements[j].CreatedAt)
	})
	e.byID = make(map[string]int, len(e.movements))
	for i, mv := range e.movements {
		e.byID[mv.ID] = i
	}
}

// append runs inside an account critical section; the log mutex is
// always taken after account mutexes and never the other way around.
func (e *Engine) append(mvs ...domain.Movement) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, mv := range mvs {
		e.byID[mv.ID] = len(e.movements)
		e.movements = append(e.movements, mv)
	}
}

func (e *Engine) record(mv domain.Movement, balances map[string]int64) {
	if e.recorder != nil {
		e.recorder.RecordMovement(mv, balances)
	}
}
