package identity

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when the identity provider has no such user.
var ErrNotFound = errors.New("user not found")

// User is the subset of an identity-provider account the payment flow reads.
type User struct {
	ID        string
	Email     string
	Phone     string
	CreatedAt time.Time
}

// Directory resolves users by id.
type Directory interface {
	FindByID(ctx context.Context, id string) (User, error)
}
