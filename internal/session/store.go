package session

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("session_not_found")

// Store is the shared key-value session store. Implementations read
// and write whole records; per-request read-then-write races resolve
// last-writer-wins, which is safe for every field we keep here.
type Store interface {
	Get(ctx context.Context, id string) (*Record, error)
	Save(ctx context.Context, record *Record, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}
