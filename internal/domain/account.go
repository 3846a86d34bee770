package domain

import "time"

// Account holds a monetary balance in minor units (cents).
type Account struct {
	ID        string
	Balance   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
