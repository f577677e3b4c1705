package domain

import (
	"errors"
	"regexp"
	"time"
)

// KeyFormat classifies a candidate code against the fixed staff-key patterns.
type KeyFormat string

const (
	FormatCEO          KeyFormat = "ceo"
	FormatAdmin        KeyFormat = "admin"
	FormatEnroller     KeyFormat = "enroller"
	FormatUnrecognized KeyFormat = "unrecognized"
)

// StaffKeyStatus represents the lifecycle state of a staff key.
type StaffKeyStatus string

const (
	StaffKeyActive   StaffKeyStatus = "active"
	StaffKeyInactive StaffKeyStatus = "inactive"
)

var (
	ceoPattern      = regexp.MustCompile(`^CEO\d{3}$`)
	adminPattern    = regexp.MustCompile(`^AD\d{4}$`)
	enrollerPattern = regexp.MustCompile(`^EN\d{4}$`)
	referralPattern = regexp.MustCompile(`^\d{4}$`)
)

var ErrStaffKeyNotFound = errors.New("staff key not found")
var ErrStaffKeyInactive = errors.New("staff key inactive")
var ErrStaffKeyAssigned = errors.New("staff key already assigned")

// ClassifyStaffKey matches a candidate string against the fixed-width
// staff-key patterns. Unrecognized input must never trigger a lookup.
func ClassifyStaffKey(candidate string) KeyFormat {
	switch {
	case ceoPattern.MatchString(candidate):
		return FormatCEO
	case adminPattern.MatchString(candidate):
		return FormatAdmin
	case enrollerPattern.MatchString(candidate):
		return FormatEnroller
	default:
		return FormatUnrecognized
	}
}

// Role returns the role a key of this format grants, or "" for unrecognized.
func (f KeyFormat) Role() string {
	switch f {
	case FormatCEO:
		return RoleCEO
	case FormatAdmin:
		return RoleAdmin
	case FormatEnroller:
		return RoleEnroller
	default:
		return ""
	}
}

// IsReferralCodeFormat reports whether a candidate looks like a referral
// code. Referral codes share a namespace distinct from staff keys: exactly
// four digits, no alphabetic prefix.
func IsReferralCodeFormat(candidate string) bool {
	return referralPattern.MatchString(candidate)
}

// StaffKey is a preformatted code granting a staff role. Created out-of-band
// by an administrator, assigned to at most one user, never reassigned while
// active.
type StaffKey struct {
	Code       string         `json:"code"`
	Role       string         `json:"role"`
	Status     StaffKeyStatus `json:"status"`
	AssignedTo string         `json:"assigned_to,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Assignable reports whether the key can be handed to a new user.
func (k *StaffKey) Assignable() bool {
	return k.Status == StaffKeyActive && k.AssignedTo == ""
}
