package port

import "context"

type IdempotencyRepository interface {
	// SetIdempotency claims key, returns false if it is already claimed
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency frees key so the request can be submitted again
	ReleaseIdempotency(ctx context.Context, key string) error
}
