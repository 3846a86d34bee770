package loan

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ledger/internal/domain"
	"ledger/internal/ledger"
)

const testDefaultRateBps = 500

func newTestEngines(t *testing.T) (*ledger.Engine, *Engine) {
	t.Helper()
	ledgerEngine := ledger.NewEngine(ledger.NewAccountStore(), nil, zap.NewNop())
	loanEngine := NewEngine(ledgerEngine, nil, testDefaultRateBps, zap.NewNop())
	return ledgerEngine, loanEngine
}

func mustCreateAccount(t *testing.T, e *ledger.Engine, opening int64) string {
	t.Helper()
	acc, err := e.CreateAccount(context.Background(), opening, "")
	require.NoError(t, err)
	return acc.ID
}

func TestRequest(t *testing.T) {
	ledgerEngine, loans := newTestEngines(t)
	ctx := context.Background()
	accountID := mustCreateAccount(t, ledgerEngine, 0)

	before := time.Now().UTC()
	l, err := loans.Request(ctx, accountID, 500000, nil, 12)
	require.NoError(t, err)

	assert.Equal(t, accountID, l.AccountID)
	assert.Equal(t, int64(500000), l.Principal)
	assert.Equal(t, int64(testDefaultRateBps), l.RateBps)
	assert.Equal(t, 12, l.TermMonths)
	assert.Equal(t, domain.LoanStatusPending, l.Status)
	assert.Nil(t, l.ApprovedAt)
	assert.WithinDuration(t, before.AddDate(0, 12, 0), l.DueAt, 5*time.Second)

	// Requesting a loan never touches the balance.
	balance, err := ledgerEngine.Balance(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestRequestExplicitRate(t *testing.T) {
	ledgerEngine, loans := newTestEngines(t)
	ctx := context.Background()
	accountID := mustCreateAccount(t, ledgerEngine, 0)

	rate := int64(725)
	l, err := loans.Request(ctx, accountID, 100000, &rate, 6)
	require.NoError(t, err)
	assert.Equal(t, int64(725), l.RateBps)
}

func TestRequestValidation(t *testing.T) {
	ledgerEngine, loans := newTestEngines(t)
	ctx := context.Background()
	accountID := mustCreateAccount(t, ledgerEngine, 0)

	_, err := loans.Request(ctx, accountID, 0, nil, 12)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = loans.Request(ctx, accountID, 100, nil, 0)
	require.ErrorIs(t, err, domain.ErrInvalidTerm)

	badRate := int64(-1)
	_, err = loans.Request(ctx, accountID, 100, &badRate, 12)
	require.ErrorIs(t, err, domain.ErrInvalidRate)

	_, err = loans.Request(ctx, "missing", 100, nil, 12)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestApprove(t *testing.T) {
	ledgerEngine, loans := newTestEngines(t)
	ctx := context.Background()
	accountID := mustCreateAccount(t, ledgerEngine, 100000)

	l, err := loans.Request(ctx, accountID, 500000, nil, 12)
	require.NoError(t, err)

	approved, err := loans.Approve(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedAt)

	balance, err := ledgerEngine.Balance(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(600000), balance)

	movements, err := ledgerEngine.Movements(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, movements, 2) // opening deposit + loan credit
	credit := movements[0]
	assert.Equal(t, domain.MovementDeposit, credit.Kind)
	assert.Equal(t, int64(500000), credit.Amount)
	require.NotNil(t, credit.LoanID)
	assert.Equal(t, l.ID, *credit.LoanID)
}

func TestApproveTwiceCreditsOnce(t *testing.T) {
	ledgerEngine, loans := newTestEngines(t)
	ctx := context.Background()
	accountID := mustCreateAccount(t, ledgerEngine, 0)

	l, err := loans.Request(ctx, accountID, 500000, nil, 12)
	require.NoError(t, err)

	_, err = loans.Approve(ctx, l.ID)
	require.NoError(t, err)
	_, err = loans.Approve(ctx, l.ID)
	require.ErrorIs(t, err, domain.ErrInvalidLoanState)

	balance, err := ledgerEngine.Balance(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(500000), balance)

	movements, err := ledgerEngine.Movements(ctx, accountID)
	require.NoError(t, err)
	assert.Len(t, movements, 1)
}

func TestConcurrentApprovesCreditOnce(t *testing.T) {
	ledgerEngine, loans := newTestEngines(t)
	ctx := context.Background()
	accountID := mustCreateAccount(t, ledgerEngine, 0)

	l, err := loans.Request(ctx, accountID, 100000, nil, 12)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := loans.Approve(ctx, l.ID); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	balance, err := ledgerEngine.Balance(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), balance)
}

func TestReject(t *testing.T) {
	ledgerEngine, loans := newTestEngines(t)
	ctx := context.Background()
	accountID := mustCreateAccount(t, ledgerEngine, 0)

	l, err := loans.Request(ctx, accountID, 100000, nil, 12)
	require.NoError(t, err)

	rejected, err := loans.Reject(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusRejected, rejected.Status)
	assert.Nil(t, rejected.ApprovedAt)

	// Terminal: neither approve nor reject can follow.
	_, err = loans.Approve(ctx, l.ID)
	require.ErrorIs(t, err, domain.ErrInvalidLoanState)
	_, err = loans.Reject(ctx, l.ID)
	require.ErrorIs(t, err, domain.ErrInvalidLoanState)

	balance, err := ledgerEngine.Balance(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestDecisionOnUnknownLoan(t *testing.T) {
	_, loans := newTestEngines(t)
	ctx := context.Background()

	_, err := loans.Approve(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrLoanNotFound)
	_, err = loans.Reject(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrLoanNotFound)
	_, err = loans.Loan(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrLoanNotFound)
}

func TestAmend(t *testing.T) {
	ledgerEngine, loans := newTestEngines(t)
	ctx := context.Background()
	accountID := mustCreateAccount(t, ledgerEngine, 0)

	l, err := loans.Request(ctx, accountID, 100000, nil, 12)
	require.NoError(t, err)

	principal := int64(200000)
	term := 24
	amended, err := loans.Amend(ctx, l.ID, &principal, nil, &term)
	require.NoError(t, err)
	assert.Equal(t, int64(200000), amended.Principal)
	assert.Equal(t, 24, amended.TermMonths)
	assert.Equal(t, l.RequestedAt.AddDate(0, 24, 0), amended.DueAt)
	assert.Equal(t, int64(testDefaultRateBps), amended.RateBps)

	// Once decided, no further amendments.
	_, err = loans.Reject(ctx, l.ID)
	require.NoError(t, err)
	_, err = loans.Amend(ctx, l.ID, &principal, nil, nil)
	require.ErrorIs(t, err, domain.ErrInvalidLoanState)
}

func TestLoansByAccountNewestFirst(t *testing.T) {
	ledgerEngine, loans := newTestEngines(t)
	ctx := context.Background()
	accountID := mustCreateAccount(t, ledgerEngine, 0)
	other := mustCreateAccount(t, ledgerEngine, 0)

	first, err := loans.Request(ctx, accountID, 100, nil, 1)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := loans.Request(ctx, accountID, 200, nil, 2)
	require.NoError(t, err)
	_, err = loans.Request(ctx, other, 300, nil, 3)
	require.NoError(t, err)

	got, err := loans.LoansByAccount(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID)
	assert.Equal(t, first.ID, got[1].ID)

	_, err = loans.LoansByAccount(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

// Full walkthrough: deposit, withdraw, transfer, loan request and
// approval, then a withdrawal that must bounce.
func TestLedgerAndLoanRoundTrip(t *testing.T) {
	ledgerEngine, loans := newTestEngines(t)
	ctx := context.Background()

	a := mustCreateAccount(t, ledgerEngine, 0)
	b := mustCreateAccount(t, ledgerEngine, 0)

	balance, err := ledgerEngine.Deposit(ctx, a, 1000, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance)

	movements, err := ledgerEngine.Movements(ctx, a)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, domain.MovementDeposit, movements[0].Kind)
	assert.Equal(t, int64(1000), movements[0].Amount)

	balance, err = ledgerEngine.Withdraw(ctx, a, 300, "")
	require.NoError(t, err)
	assert.Equal(t, int64(700), balance)

	balance, err = ledgerEngine.Transfer(ctx, a, b, 200, "")
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance)
	bBalance, err := ledgerEngine.Balance(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, int64(200), bBalance)

	l, err := loans.Request(ctx, a, 5000, nil, 12)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusPending, l.Status)

	approved, err := loans.Approve(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusApproved, approved.Status)
	balance, err = ledgerEngine.Balance(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, int64(5500), balance)

	movements, err = ledgerEngine.Movements(ctx, a)
	require.NoError(t, err)
	require.Len(t, movements, 4)
	require.NotNil(t, movements[0].LoanID)
	assert.Equal(t, l.ID, *movements[0].LoanID)

	_, err = ledgerEngine.Withdraw(ctx, a, 99999900, "")
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	balance, err = ledgerEngine.Balance(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, int64(5500), balance)
}
