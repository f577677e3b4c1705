package domain

import (
	"errors"
	"time"
)

var ErrProfileNotFound = errors.New("profile not found")
var ErrProfileInvalid = errors.New("profile violates role constraints")
var ErrReferralCodeNotFound = errors.New("referral code not found")
var ErrReferralCodeTaken = errors.New("referral code already taken")
var ErrEnrollmentCodeInvalid = errors.New("enrollment code not valid")

// Profile is the authoritative record of who a user is and who enrolled
// them. Every other table carrying enrollment facts is a read-optimized
// projection coerced toward this record.
type Profile struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	Role     string `json:"role"`
	// StaffKey is set for staff roles only.
	StaffKey string `json:"staff_key,omitempty"`
	// ReferredBy is the enrolling code a customer supplied at sign-up.
	// Mutually exclusive with StaffKey.
	ReferredBy string `json:"referred_by,omitempty"`
	// ReferralCode is this profile's own globally unique code that others
	// may enroll under.
	ReferralCode string    `json:"referral_code,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Validate enforces the role exclusivity invariant: staff roles carry a
// staff key and no enrolling code, customers the reverse.
func (p *Profile) Validate() error {
	if IsStaffRole(p.Role) {
		if p.ReferredBy != "" {
			return ErrProfileInvalid
		}
		return nil
	}
	if p.Role != RoleCustomer {
		return ErrProfileInvalid
	}
	if p.StaffKey != "" {
		return ErrProfileInvalid
	}
	return nil
}
