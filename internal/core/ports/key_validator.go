package ports

import (
	"context"

	"github.com/fxdesk/trader-portal/internal/core/domain"
)

// KeyValidation is the structured result of classifying and resolving a
// candidate code. A candidate that fails the format check yields the zero
// value with no lookup performed.
type KeyValidation struct {
	Candidate      string           `json:"candidate"`
	IsProperFormat bool             `json:"is_proper_format"`
	Format         domain.KeyFormat `json:"format,omitempty"`
	// IsValid means the backing record exists and is active.
	IsValid    bool   `json:"is_valid"`
	IsAssigned bool   `json:"is_assigned"`
	AssignedTo string `json:"assigned_to,omitempty"`
	Role       string `json:"role,omitempty"`
}

// ReferralValidation is the result of resolving a candidate referral code.
type ReferralValidation struct {
	Candidate      string `json:"candidate"`
	IsProperFormat bool   `json:"is_proper_format"`
	IsValid        bool   `json:"is_valid"`
	OwnerID        string `json:"owner_id,omitempty"`
	OwnerName      string `json:"owner_name,omitempty"`
}

// KeyValidatorService classifies candidate codes and resolves their current
// status against the record store.
type KeyValidatorService interface {
	ValidateStaffKey(ctx context.Context, candidate string) (*KeyValidation, error)
	ValidateReferralCode(ctx context.Context, candidate string) (*ReferralValidation, error)
	// WatchStaffKey resolves the candidate immediately, then re-resolves on
	// every change notification affecting staff keys or profiles, pushing
	// each fresh result on the returned channel. The subscription is
	// released when ctx is cancelled.
	WatchStaffKey(ctx context.Context, candidate string) (<-chan KeyValidation, error)
}
