package util

import "github.com/google/uuid"

// NewID returns a random UUID string, used for account, movement and
// loan ids.
func NewID() string {
	return uuid.NewString()
}
