package users

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no account row exists for an id.
var ErrNotFound = errors.New("user not found")

// Repo stores signed-in accounts keyed by "<provider>:<subject>".
type Repo interface {
	// Upsert inserts or refreshes the profile; CreatedAt survives refreshes.
	Upsert(ctx context.Context, user User) error
	GetByID(ctx context.Context, userID string) (User, error)
}
