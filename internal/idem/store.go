package idem

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("idempotency key not found")

// Entry is what a used Idempotency-Key maps to: the resource it produced and
// a fingerprint of the request payload, so a replay with a different payload
// can be told apart from a genuine retry.
type Entry struct {
	Fingerprint string `json:"fingerprint"`
	ResourceID  string `json:"resource_id"`
}

type Store interface {
	Get(ctx context.Context, key string) (Entry, error)
	Save(ctx context.Context, key string, e Entry) error
}
