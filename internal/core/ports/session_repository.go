package ports

import (
	"context"
	"time"
)

// SessionRepository stores the per-user third-party data session token.
// Single owner: the trading service reads and writes it, nothing else does.
type SessionRepository interface {
	// Read returns the stored token, or "" when none is stored.
	Read(ctx context.Context, userID string) (string, error)
	Write(ctx context.Context, userID, token string, ttl time.Duration) error
	Clear(ctx context.Context, userID string) error
}
