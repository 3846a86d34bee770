package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/domain"
)

func TestAccountStoreCreateAndBalance(t *testing.T) {
	s := NewAccountStore()
	now := time.Now().UTC()

	require.NoError(t, s.Create("a", now))
	require.ErrorIs(t, s.Create("a", now), domain.ErrAccountAlreadyExists)

	balance, err := s.Balance("a")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	_, err = s.Balance("missing")
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestAccountStoreUpdate(t *testing.T) {
	s := NewAccountStore()
	now := time.Now().UTC()
	require.NoError(t, s.Create("a", now))

	balance, err := s.Update("a", 500, now, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance)

	balance, err = s.Update("a", -200, now, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(300), balance)

	// A delta that would go negative fails and mutates nothing.
	_, err = s.Update("a", -301, now, nil)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	balance, err = s.Balance("a")
	require.NoError(t, err)
	assert.Equal(t, int64(300), balance)

	_, err = s.Update("missing", 1, now, nil)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestAccountStoreUpdateCommitRunsInsideCriticalSection(t *testing.T) {
	s := NewAccountStore()
	now := time.Now().UTC()
	require.NoError(t, s.Create("a", now))

	var seen int64 = -1
	_, err := s.Update("a", 700, now, func(newBalance int64) {
		seen = newBalance
	})
	require.NoError(t, err)
	assert.Equal(t, int64(700), seen)

	// commit must not run when the update fails
	called := false
	_, err = s.Update("a", -701, now, func(int64) { called = true })
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.False(t, called)
}

func TestAccountStoreUpdatePair(t *testing.T) {
	s := NewAccountStore()
	now := time.Now().UTC()
	require.NoError(t, s.Create("a", now))
	require.NoError(t, s.Create("b", now))
	_, err := s.Update("a", 1000, now, nil)
	require.NoError(t, err)

	fromBal, toBal, err := s.UpdatePair("a", "b", 400, now, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(600), fromBal)
	assert.Equal(t, int64(400), toBal)

	_, _, err = s.UpdatePair("a", "b", 601, now, nil)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	_, _, err = s.UpdatePair("missing", "b", 1, now, nil)
	require.ErrorIs(t, err, domain.ErrSourceNotFound)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, _, err = s.UpdatePair("a", "missing", 1, now, nil)
	require.ErrorIs(t, err, domain.ErrDestinationNotFound)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestAccountStoreConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	s := NewAccountStore()
	now := time.Now().UTC()
	require.NoError(t, s.Create("a", now))
	_, err := s.Update("a", 1000, now, nil)
	require.NoError(t, err)

	// 100 withdrawals of 100 against a balance of 1000: exactly 10 can
	// succeed, whatever the interleaving.
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Update("a", -100, time.Now().UTC(), nil); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	balance, err := s.Balance("a")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestAccountStoreOpposingTransfersDoNotDeadlock(t *testing.T) {
	s := NewAccountStore()
	now := time.Now().UTC()
	require.NoError(t, s.Create("a", now))
	require.NoError(t, s.Create("b", now))
	_, err := s.Update("a", 10000, now, nil)
	require.NoError(t, err)
	_, err = s.Update("b", 10000, now, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 500; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.UpdatePair("a", "b", 1, time.Now().UTC(), nil)
		}()
		go func() {
			defer wg.Done()
			s.UpdatePair("b", "a", 1, time.Now().UTC(), nil)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("opposing transfers deadlocked")
	}

	// Conservation: the total across both accounts is unchanged.
	aBal, err := s.Balance("a")
	require.NoError(t, err)
	bBal, err := s.Balance("b")
	require.NoError(t, err)
	assert.Equal(t, int64(20000), aBal+bBal)
}

func TestAccountStoreSnapshotRestore(t *testing.T) {
	s := NewAccountStore()
	now := time.Now().UTC()
	require.NoError(t, s.Create("a", now))
	_, err := s.Update("a", 1234, now, nil)
	require.NoError(t, err)

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "a", snap[0].ID)
	assert.Equal(t, int64(1234), snap[0].Balance)

	restored := NewAccountStore()
	restored.Restore(snap)
	balance, err := restored.Balance("a")
	require.NoError(t, err)
	assert.Equal(t, int64(1234), balance)
}
