package domain

import "time"

type LoanStatus string

const (
	LoanStatusPending  LoanStatus = "pending"
	LoanStatusApproved LoanStatus = "approved"
	LoanStatusRejected LoanStatus = "rejected"
)

// Loan is a request for credit. Principal is in minor units, RateBps is
// the yearly interest rate in basis points (500 = 5.00%). Status only
// ever moves pending -> approved or pending -> rejected.
type Loan struct {
	ID          string
	AccountID   string
	Principal   int64
	RateBps     int64
	TermMonths  int
	Status      LoanStatus
	RequestedAt time.Time
	ApprovedAt  *time.Time
	DueAt       time.Time
}
