package ports

import (
	"context"

	"github.com/fxdesk/trader-portal/internal/core/domain"
)

// LicenseValidation is the server-side boundary result checked by the
// companion trading product before it will run on an account.
type LicenseValidation struct {
	Valid bool `json:"valid"`
	// Reason is one of "", "not_found", "inactive", "expired",
	// "unauthorized_account".
	Reason string `json:"reason,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

// LicenseService is the registry of license keys and their bound accounts.
type LicenseService interface {
	// Generate creates, uniqueness-checks, and persists a new license for
	// the user. Bounded regeneration retries on key collision.
	Generate(ctx context.Context, userID string) (*domain.LicenseKey, error)
	GetByUserID(ctx context.Context, userID string) (*domain.LicenseKey, error)
	BindAccount(ctx context.Context, userID, account string) (*domain.LicenseKey, error)
	UnbindAccount(ctx context.Context, userID, account string) (*domain.LicenseKey, error)
	Validate(ctx context.Context, key, account string) (*LicenseValidation, error)
	Revoke(ctx context.Context, userID string) error
}
