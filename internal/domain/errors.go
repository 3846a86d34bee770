package domain

import (
	"errors"
	"fmt"
)

var ErrAccountNotFound = errors.New("account not found")
var ErrAccountAlreadyExists = errors.New("account already exists")
var ErrLoanNotFound = errors.New("loan not found")
var ErrMovementNotFound = errors.New("movement not found")
var ErrInsufficientFunds = errors.New("insufficient funds")
var ErrInvalidAmount = errors.New("amount must be positive")
var ErrInvalidRate = errors.New("interest rate must not be negative")
var ErrInvalidTerm = errors.New("term must be a positive number of months")
var ErrSelfTransfer = errors.New("cannot transfer to the same account")
var ErrInvalidLoanState = errors.New("loan is not pending")

// Transfer failures keep source and destination apart for caller
// diagnostics while still matching ErrAccountNotFound via errors.Is.
var ErrSourceNotFound = fmt.Errorf("source: %w", ErrAccountNotFound)
var ErrDestinationNotFound = fmt.Errorf("destination: %w", ErrAccountNotFound)
