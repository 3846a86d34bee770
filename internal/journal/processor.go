package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"ledger/internal/domain"
	kafkaInfra "ledger/internal/infrastructure/kafka"
	"ledger/internal/repository/accounts_repo"
	"ledger/internal/repository/loans_repo"
	"ledger/internal/repository/movements_repo"
)

// Entry is one committed engine operation waiting to be persisted.
// Exactly one of Account, Movement or Loan is set.
type Entry struct {
	Account  *domain.Account
	Movement *domain.Movement
	Balances map[string]int64
	Loan     *domain.Loan
}

// Processor is the write-behind side of the engines. Committed
// operations are queued by RecordMovement/RecordLoan without blocking
// the engine critical sections; the processor drains the queue, writes
// each entry in one database transaction, then publishes the matching
// event to Kafka. The in-memory engines stay authoritative; the
// database is a durable replica used to restore state at boot.
type Processor struct {
	db        *sql.DB
	accounts  accounts_repo.AccountRepository
	movements movements_repo.MovementRepository
	loans     loans_repo.LoanRepository
	producer  kafkaInfra.Producer
	logger    *zap.Logger

	entries chan Entry
	done    chan struct{}
}

func NewProcessor(
	db *sql.DB,
	accounts accounts_repo.AccountRepository,
	movements movements_repo.MovementRepository,
	loans loans_repo.LoanRepository,
	producer kafkaInfra.Producer,
	bufferSize int,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		db:        db,
		accounts:  accounts,
		movements: movements,
		loans:     loans,
		producer:  producer,
		logger:    logger,
		entries:   make(chan Entry, bufferSize),
		done:      make(chan struct{}),
	}
}

// RecordAccount implements ledger.Recorder.
func (p *Processor) RecordAccount(a domain.Account) {
	p.enqueue(Entry{Account: &a})
}

// RecordMovement implements ledger.Recorder.
func (p *Processor) RecordMovement(mv domain.Movement, balances map[string]int64) {
	p.enqueue(Entry{Movement: &mv, Balances: balances})
}

// RecordLoan implements loan.Recorder.
func (p *Processor) RecordLoan(l domain.Loan) {
	p.enqueue(Entry{Loan: &l})
}

// enqueue never blocks the caller. A full queue means persistence is
// falling behind; the entry is dropped, logged in full so it can be
// replayed from the log. Balances and loans are reconciled by a later
// upsert for the same aggregate; a dropped movement row stays lost
// until it is replayed.
func (p *Processor) enqueue(e Entry) {
	select {
	case p.entries <- e:
	default:
		payload, err := json.Marshal(e)
		if err != nil {
			p.logger.Error("journal queue full, dropping entry", zap.Error(err))
			return
		}
		p.logger.Error("journal queue full, dropping entry",
			zap.ByteString("entry", payload))
	}
}

// Start drains the queue until ctx is cancelled, then flushes whatever
// is still buffered before returning.
func (p *Processor) Start(ctx context.Context) {
	p.logger.Info("Starting journal processor...")
	defer close(p.done)
	for {
		select {
		case e := <-p.entries:
			p.process(ctx, e)
		case <-ctx.Done():
			p.flush()
			p.logger.Info("Journal processor stopped.")
			return
		}
	}
}

// Wait blocks until Start has returned.
func (p *Processor) Wait() {
	<-p.done
}

func (p *Processor) flush() {
	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for {
		select {
		case e := <-p.entries:
			p.process(flushCtx, e)
		default:
			return
		}
	}
}

func (p *Processor) process(ctx context.Context, e Entry) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		p.logger.Error("Failed to begin journal transaction", zap.Error(err))
		return
	}

	if err := p.apply(ctx, tx, e); err != nil {
		p.logger.Error("Failed to persist journal entry", zap.Error(err))
		if rbErr := tx.Rollback(); rbErr != nil {
			p.logger.Error("Failed to roll back journal transaction", zap.Error(rbErr))
		}
		return
	}

	if err := tx.Commit(); err != nil {
		p.logger.Error("Failed to commit journal transaction", zap.Error(err))
		return
	}

	p.publish(ctx, e)
}

func (p *Processor) apply(ctx context.Context, tx *sql.Tx, e Entry) error {
	if e.Account != nil {
		return p.accounts.UpsertTx(ctx, tx, *e.Account)
	}
	if e.Movement != nil {
		// Balances first so the movement's account rows exist.
		for accountID, balance := range e.Balances {
			if err := p.accounts.UpsertBalanceTx(ctx, tx, accountID, balance); err != nil {
				return err
			}
		}
		return p.movements.CreateTx(ctx, tx, *e.Movement)
	}
	if e.Loan != nil {
		return p.loans.UpsertTx(ctx, tx, *e.Loan)
	}
	return nil
}

func (p *Processor) publish(ctx context.Context, e Entry) {
	if p.producer == nil {
		return
	}

	var key string
	var payload []byte
	var err error

	switch {
	case e.Movement != nil:
		mv := e.Movement
		event := domain.MovementRecordedEvent{
			MovementID:  mv.ID,
			Kind:        string(mv.Kind),
			AccountID:   mv.AccountID,
			Amount:      domain.FormatAmount(mv.Amount),
			Balance:     domain.FormatAmount(e.Balances[mv.AccountID]),
			Description: mv.Description,
			Timestamp:   mv.CreatedAt,
		}
		if mv.CounterpartyID != nil {
			event.CounterpartyID = *mv.CounterpartyID
		}
		if mv.LoanID != nil {
			event.LoanID = *mv.LoanID
		}
		key = mv.AccountID
		payload, err = json.Marshal(event)
	case e.Loan != nil && e.Loan.Status != domain.LoanStatusPending:
		l := e.Loan
		event := domain.LoanDecidedEvent{
			LoanID:     l.ID,
			AccountID:  l.AccountID,
			Principal:  domain.FormatAmount(l.Principal),
			RateBps:    l.RateBps,
			TermMonths: l.TermMonths,
			Status:     string(l.Status),
			Timestamp:  time.Now().UTC(),
		}
		key = l.AccountID
		payload, err = json.Marshal(event)
	default:
		return
	}

	if err != nil {
		p.logger.Error("Failed to marshal journal event", zap.Error(err))
		return
	}
	if err := p.producer.Produce(ctx, key, payload); err != nil {
		p.logger.Error("Failed to publish journal event", zap.Error(err))
	}
}
