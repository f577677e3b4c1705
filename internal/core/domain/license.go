package domain

import (
	"errors"
	"time"
)

// MaxLicenseAccounts is the fixed cap of trading accounts a single license
// may authorize.
const MaxLicenseAccounts = 5

// LicenseStatus represents the lifecycle state of a license key.
type LicenseStatus string

const (
	LicenseCreated LicenseStatus = "created"
	LicenseActive  LicenseStatus = "active"
	LicenseExpired LicenseStatus = "expired"
	LicenseRevoked LicenseStatus = "revoked"
)

// validLicenseTransitions defines the allowed state machine transitions.
// Account list mutations are active -> active and need no entry here.
var validLicenseTransitions = map[LicenseStatus][]LicenseStatus{
	LicenseCreated: {LicenseActive, LicenseRevoked},
	LicenseActive:  {LicenseExpired, LicenseRevoked},
}

var ErrLicenseNotFound = errors.New("license not found")
var ErrLicenseInactive = errors.New("license inactive")
var ErrLicenseExpired = errors.New("license expired")
var ErrUnauthorizedAccount = errors.New("account not authorized for license")
var ErrDuplicateAccount = errors.New("account already bound to license")
var ErrAccountCapExceeded = errors.New("license account cap exceeded")
var ErrInvalidLicenseTransition = errors.New("invalid license status transition")
var ErrKeyGeneration = errors.New("could not generate a unique license key")

// CanTransitionTo reports whether a transition from current status to next
// is valid. There is no path back to active from expired or revoked.
func (s LicenseStatus) CanTransitionTo(next LicenseStatus) bool {
	for _, allowed := range validLicenseTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// LicenseKey authorizes up to MaxLicenseAccounts trading accounts to run the
// companion automated-trading product. Exactly one license per user, created
// alongside the user.
type LicenseKey struct {
	Key            string        `json:"key" bson:"key"`
	UserID         string        `json:"user_id" bson:"user_id"`
	Status         LicenseStatus `json:"status" bson:"status"`
	AccountNumbers []string      `json:"account_numbers" bson:"account_numbers"`
	// EnrolledBy mirrors the profile's enrolling code; back-filled by the
	// reconciler, never authoritative.
	EnrolledBy string     `json:"enrolled_by,omitempty" bson:"enrolled_by,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" bson:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" bson:"updated_at"`
}

// IsExpired reports whether the license has passed its expiry, regardless of
// whether the stored status has caught up yet.
func (l *LicenseKey) IsExpired(now time.Time) bool {
	if l.Status == LicenseExpired {
		return true
	}
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

// HasAccount reports whether the account number is in the authorized list.
func (l *LicenseKey) HasAccount(account string) bool {
	for _, a := range l.AccountNumbers {
		if a == account {
			return true
		}
	}
	return false
}

// AddAccount appends an account number, rejecting duplicates and enforcing
// the cap. The existing list is left untouched on failure.
func (l *LicenseKey) AddAccount(account string) error {
	if l.HasAccount(account) {
		return ErrDuplicateAccount
	}
	if len(l.AccountNumbers) >= MaxLicenseAccounts {
		return ErrAccountCapExceeded
	}
	l.AccountNumbers = append(l.AccountNumbers, account)
	return nil
}

// RemoveAccount deletes an account number if present. Removing an absent
// number is a no-op, not an error.
func (l *LicenseKey) RemoveAccount(account string) {
	for i, a := range l.AccountNumbers {
		if a == account {
			l.AccountNumbers = append(l.AccountNumbers[:i], l.AccountNumbers[i+1:]...)
			return
		}
	}
}
