package ledger

import (
	"sync"
	"time"

	"ledger/internal/domain"
)

// account is a single balance cell with its own mutex. Every mutation
// runs with the mutex held, so check-sufficiency and apply are one
// indivisible step.
type account struct {
	mu        sync.Mutex
	balance   int64
	createdAt time.Time
	updatedAt time.Time
}

// AccountStore owns the authoritative balances. The store-level RWMutex
// only guards the shape of the map (account creation and lookup); the
// balance itself is protected by the per-account mutex.
type AccountStore struct {
	mu    sync.RWMutex
	accts map[string]*account
}

func NewAccountStore() *AccountStore {
	return &AccountStore{accts: make(map[string]*account)}
}

func (s *AccountStore) Create(id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accts[id]; ok {
		return domain.ErrAccountAlreadyExists
	}
	s.accts[id] = &account{createdAt: now, updatedAt: now}
	return nil
}

func (s *AccountStore) lookup(id string) (*account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accts[id]
	return a, ok
}

func (s *AccountStore) Exists(id string) bool {
	_, ok := s.lookup(id)
	return ok
}

func (s *AccountStore) Balance(id string) (int64, error) {
	a, ok := s.lookup(id)
	if !ok {
		return 0, domain.ErrAccountNotFound
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance, nil
}

// Update applies a signed delta to one account. A negative delta that
// would drive the balance below zero fails without mutating anything.
// commit runs inside the critical section so callers can append their
// movement record atomically with the balance change.
func (s *AccountStore) Update(id string, delta int64, now time.Time, commit func(newBalance int64)) (int64, error) {
	a, ok := s.lookup(id)
	if !ok {
		return 0, domain.ErrAccountNotFound
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.balance+delta < 0 {
		return 0, domain.ErrInsufficientFunds
	}
	a.balance += delta
	a.updatedAt = now
	if commit != nil {
		commit(a.balance)
	}
	return a.balance, nil
}

// UpdatePair debits one account and credits another as a single unit.
// Both mutexes are taken in lexicographic id order so two transfers
// going in opposite directions cannot deadlock.
func (s *AccountStore) UpdatePair(debitID, creditID string, amount int64, now time.Time, commit func(debitBalance, creditBalance int64)) (int64, int64, error) {
	from, ok := s.lookup(debitID)
	if !ok {
		return 0, 0, domain.ErrSourceNotFound
	}
	to, ok := s.lookup(creditID)
	if !ok {
		return 0, 0, domain.ErrDestinationNotFound
	}

	first, second := from, to
	if creditID < debitID {
		first, second = to, from
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	if from.balance < amount {
		return 0, 0, domain.ErrInsufficientFunds
	}
	from.balance -= amount
	to.balance += amount
	from.updatedAt = now
	to.updatedAt = now
	if commit != nil {
		commit(from.balance, to.balance)
	}
	return from.balance, to.balance, nil
}

// Snapshot returns a copy of every account, for persistence and tests.
func (s *AccountStore) Snapshot() []domain.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Account, 0, len(s.accts))
	for id, a := range s.accts {
		a.mu.Lock()
		out = append(out, domain.Account{
			ID:        id,
			Balance:   a.balance,
			CreatedAt: a.createdAt,
			UpdatedAt: a.updatedAt,
		})
		a.mu.Unlock()
	}
	return out
}

// Restore rebuilds the arena from persisted accounts. Existing state is
// discarded; only used at boot before the store is shared.
func (s *AccountStore) Restore(accounts []domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accts = make(map[string]*account, len(accounts))
	for _, acc := range accounts {
		s.accts[acc.ID] = &account{
			balance:   acc.Balance,
			createdAt: acc.CreatedAt,
			updatedAt: acc.UpdatedAt,
		}
	}
}

func (s *AccountStore) get(id string) (domain.Account, error) {
	a, ok := s.lookup(id)
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return domain.Account{ID: id, Balance: a.balance, CreatedAt: a.createdAt, UpdatedAt: a.updatedAt}, nil
}
