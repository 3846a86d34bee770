package domain

import "time"

type MovementKind string

const (
	MovementDeposit     MovementKind = "deposit"
	MovementWithdrawal  MovementKind = "withdrawal"
	MovementTransferOut MovementKind = "transfer_out"
	MovementTransferIn  MovementKind = "transfer_in"
)

// Movement is an immutable record of a single balance-affecting event.
// The two legs of a transfer share a GroupID. LoanID is set only on the
// deposit created by a loan approval.
type Movement struct {
	ID             string
	Kind           MovementKind
	AccountID      string
	CounterpartyID *string
	Amount         int64
	Description    string
	GroupID        string
	LoanID         *string
	CreatedAt      time.Time
}
