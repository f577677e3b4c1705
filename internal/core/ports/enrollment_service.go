package ports

import "context"

// ProjectionOutcome records the best-effort write result for one secondary
// projection during a reconciliation pass.
type ProjectionOutcome struct {
	Projection string `json:"projection"`
	Updated    bool   `json:"updated"`
	Error      string `json:"error,omitempty"`
}

// ReconcileResult summarizes a reconciliation pass. The authoritative
// profile write either succeeded (or was already consistent) or the whole
// operation failed; secondary projections report individually.
type ReconcileResult struct {
	UserID      string              `json:"user_id"`
	Code        string              `json:"code,omitempty"`
	Projections []ProjectionOutcome `json:"projections"`
}

// NewUserInput carries the facts needed to materialize records for a
// freshly created user.
type NewUserInput struct {
	UserID         string
	Email          string
	FullName       string
	Role           string
	EnrollmentCode string
}

// MigrateResult reports a referral-code backfill pass.
type MigrateResult struct {
	Assigned int `json:"assigned"`
	Failed   int `json:"failed"`
}

// EnrollmentService keeps the "who enrolled this user" fact consistent
// across the profile and its projections. The profile is the single
// authority; projections are coerced toward it.
type EnrollmentService interface {
	// CorrectEnrollment resolves a user by email and writes the given code
	// into the profile and all projections. Profile failure aborts;
	// projection failures are logged and reported, not fatal.
	CorrectEnrollment(ctx context.Context, email, code string) (*ReconcileResult, error)
	// Repair re-derives every projection from the authoritative profile.
	// A missing profile is rebuilt from the auth record via HandleNewUser.
	// Idempotent: a second run on the same state changes nothing.
	Repair(ctx context.Context, userID string) (*ReconcileResult, error)
	// HandleNewUser creates the profile, license, and customer projections
	// for a new user, propagating the enrollment code. Safe to re-invoke:
	// existing records are reconciled, not duplicated.
	HandleNewUser(ctx context.Context, input NewUserInput) (*ReconcileResult, error)
	// MigrateToReferralCodes assigns referral codes to profiles lacking one.
	MigrateToReferralCodes(ctx context.Context) (*MigrateResult, error)
}
