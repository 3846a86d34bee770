package domain

import "time"

// MovementRecordedEvent is published to Kafka after a movement and the
// balance it implies have been persisted.
type MovementRecordedEvent struct {
	MovementID     string    `json:"movement_id"`
	Kind           string    `json:"kind"`
	AccountID      string    `json:"account_id"`
	CounterpartyID string    `json:"counterparty_id,omitempty"`
	Amount         string    `json:"amount"`
	Balance        string    `json:"balance"`
	Description    string    `json:"description,omitempty"`
	LoanID         string    `json:"loan_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// LoanDecidedEvent is published when a loan leaves the pending state.
type LoanDecidedEvent struct {
	LoanID     string    `json:"loan_id"`
	AccountID  string    `json:"account_id"`
	Principal  string    `json:"principal"`
	RateBps    int64     `json:"rate_bps"`
	TermMonths int       `json:"term_months"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
}
