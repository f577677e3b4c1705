package ports

import (
	"context"

	"github.com/fxdesk/trader-portal/internal/core/domain"
)

// ProfileRepository persists the authoritative profile records.
type ProfileRepository interface {
	FindByUserID(ctx context.Context, userID string) (*domain.Profile, error)
	FindByEmail(ctx context.Context, email string) (*domain.Profile, error)
	FindByReferralCode(ctx context.Context, code string) (*domain.Profile, error)
	// ListMissingReferralCodes returns profiles that have no referral code yet.
	ListMissingReferralCodes(ctx context.Context) ([]*domain.Profile, error)
	Upsert(ctx context.Context, p *domain.Profile) error
	// SetEnrollment writes the code into the enrollment field matching its
	// namespace and clears the opposite one, keeping staff_key and
	// referred_by mutually exclusive.
	SetEnrollment(ctx context.Context, userID, code string) error
}

// StaffKeyRepository persists staff key records.
type StaffKeyRepository interface {
	FindByCode(ctx context.Context, code string) (*domain.StaffKey, error)
	// FindByCodeDirect is the secondary lookup path used when the primary
	// read fails; it bypasses any caching decoration and queries the store
	// directly.
	FindByCodeDirect(ctx context.Context, code string) (*domain.StaffKey, error)
	Assign(ctx context.Context, code, userID string) error
}

// LicenseRepository persists license keys.
type LicenseRepository interface {
	FindByKey(ctx context.Context, key string) (*domain.LicenseKey, error)
	FindByUserID(ctx context.Context, userID string) (*domain.LicenseKey, error)
	// ExistsKey reports whether a key string is already taken, used for the
	// pre-insert uniqueness check during generation.
	ExistsKey(ctx context.Context, key string) (bool, error)
	Create(ctx context.Context, l *domain.LicenseKey) error
	Update(ctx context.Context, l *domain.LicenseKey) error
	// SetEnrolledBy back-fills the enrollment projection field.
	SetEnrolledBy(ctx context.Context, userID, code string) error
}

// CustomerRepository persists both customer-facing projections.
type CustomerRepository interface {
	FindCustomer(ctx context.Context, userID string) (*domain.Customer, error)
	FindCustomerAccount(ctx context.Context, userID string) (*domain.CustomerAccount, error)
	UpsertCustomer(ctx context.Context, c *domain.Customer) error
	UpsertCustomerAccount(ctx context.Context, c *domain.CustomerAccount) error
	SetCustomerEnrolledBy(ctx context.Context, userID, code string) error
	SetCustomerAccountEnrollingCode(ctx context.Context, userID, code string) error
}
