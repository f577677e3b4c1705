package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"

	"github.com/fxdesk/trader-portal/internal/core/domain"
	"github.com/fxdesk/trader-portal/internal/core/ports"
)

const maxReferralCodeAttempts = 5

// Projection names reported in reconcile results.
const (
	projectionLicense         = "license_keys"
	projectionCustomer        = "customers"
	projectionCustomerAccount = "customer_accounts"
)

// EnrollmentService keeps enrollment facts consistent across the profile
// and its read projections. The profile is authoritative: its write failing
// aborts the operation, projection failures are logged and absorbed.
type EnrollmentService struct {
	users     ports.AuthRepository
	profiles  ports.ProfileRepository
	staffKeys ports.StaffKeyRepository
	licenses  ports.LicenseRepository
	customers ports.CustomerRepository
	registry  ports.LicenseService
	validator ports.KeyValidatorService
	publisher ports.ChangePublisher
	log       zerolog.Logger
}

func NewEnrollmentService(
	users ports.AuthRepository,
	profiles ports.ProfileRepository,
	staffKeys ports.StaffKeyRepository,
	licenses ports.LicenseRepository,
	customers ports.CustomerRepository,
	registry ports.LicenseService,
	validator ports.KeyValidatorService,
	publisher ports.ChangePublisher,
	log zerolog.Logger,
) *EnrollmentService {
	return &EnrollmentService{
		users:     users,
		profiles:  profiles,
		staffKeys: staffKeys,
		licenses:  licenses,
		customers: customers,
		registry:  registry,
		validator: validator,
		publisher: publisher,
		log:       log,
	}
}

// CorrectEnrollment is the operator path for fixing a mismatched enrollment:
// resolve the user by email, verify the code, write the profile, then push
// the code into each projection best-effort.
func (s *EnrollmentService) CorrectEnrollment(ctx context.Context, email, code string) (*ports.ReconcileResult, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		// Nothing to reconcile without a resolved user.
		return nil, fmt.Errorf("resolve user %q: %w", email, err)
	}

	if err := s.verifyCode(ctx, code); err != nil {
		return nil, err
	}

	if err := s.profiles.SetEnrollment(ctx, user.ID, code); err != nil {
		return nil, fmt.Errorf("profile enrollment write: %w", err)
	}
	s.notify(ctx, "profiles", ports.ChangeUpdate, user.ID)

	result := &ports.ReconcileResult{UserID: user.ID, Code: code}
	result.Projections = s.propagateCode(ctx, user.ID, code)

	s.log.Info().Str("user_id", user.ID).Str("code", code).Msg("enrollment corrected")
	return result, nil
}

// Repair re-derives every projection from the authoritative profile.
// Running it twice produces the same end state. When the profile itself is
// missing the auth record is the only surviving fact, so the whole new-user
// materialization is replayed from it; a registration whose pipeline died
// before the profile landed converges the same way as ordinary drift.
func (s *EnrollmentService) Repair(ctx context.Context, userID string) (*ports.ReconcileResult, error) {
	profile, err := s.profiles.FindByUserID(ctx, userID)
	if errors.Is(err, domain.ErrProfileNotFound) {
		return s.rebuildFromUser(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve profile %q: %w", userID, err)
	}

	result := &ports.ReconcileResult{UserID: userID, Code: profile.ReferredBy}
	result.Projections = append(result.Projections, s.repairLicense(ctx, profile))
	result.Projections = append(result.Projections, s.repairCustomer(ctx, profile))
	result.Projections = append(result.Projections, s.repairCustomerAccount(ctx, profile))
	return result, nil
}

// rebuildFromUser handles the profile-missing repair case: resolve the auth
// record and run the new-user pipeline from it. The enrollment code is not
// replayed; whatever claim failed the first time stays unclaimed rather than
// being retried with stale input.
func (s *EnrollmentService) rebuildFromUser(ctx context.Context, userID string) (*ports.ReconcileResult, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve user %q: %w", userID, err)
	}

	s.log.Info().Str("user_id", userID).Msg("profile missing, rebuilding records from auth user")
	return s.HandleNewUser(ctx, ports.NewUserInput{
		UserID:   user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		Role:     user.Role,
	})
}

// HandleNewUser materializes all records for a freshly created user. Safe to
// re-invoke: existing records are reconciled toward the input, not
// duplicated.
func (s *EnrollmentService) HandleNewUser(ctx context.Context, input ports.NewUserInput) (*ports.ReconcileResult, error) {
	now := time.Now().UTC()

	profile := &domain.Profile{
		UserID:    input.UserID,
		Email:     input.Email,
		FullName:  input.FullName,
		Role:      input.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if domain.IsStaffRole(input.Role) {
		profile.StaffKey = input.EnrollmentCode
	} else {
		profile.ReferredBy = input.EnrollmentCode
	}

	if existing, err := s.profiles.FindByUserID(ctx, input.UserID); err == nil {
		profile.ReferralCode = existing.ReferralCode
		profile.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, domain.ErrProfileNotFound) {
		return nil, fmt.Errorf("profile lookup: %w", err)
	}

	if profile.ReferralCode == "" {
		code, err := s.uniqueReferralCode(ctx)
		if err != nil {
			return nil, err
		}
		profile.ReferralCode = code
	}

	if err := profile.Validate(); err != nil {
		return nil, err
	}

	// Staff keys are claimed before the profile records the grant, so a
	// lost race on the key leaves no half-enrolled staff profile behind.
	if domain.IsStaffRole(input.Role) && input.EnrollmentCode != "" {
		if err := s.staffKeys.Assign(ctx, input.EnrollmentCode, input.UserID); err != nil {
			return nil, fmt.Errorf("staff key assignment: %w", err)
		}
		s.notify(ctx, "staff_keys", ports.ChangeUpdate, input.EnrollmentCode)
	}

	if err := s.profiles.Upsert(ctx, profile); err != nil {
		return nil, fmt.Errorf("profile write: %w", err)
	}
	s.notify(ctx, "profiles", ports.ChangeInsert, input.UserID)

	result := &ports.ReconcileResult{UserID: input.UserID, Code: input.EnrollmentCode}
	result.Projections = append(result.Projections, s.repairLicense(ctx, profile))
	result.Projections = append(result.Projections, s.repairCustomer(ctx, profile))
	result.Projections = append(result.Projections, s.repairCustomerAccount(ctx, profile))

	s.log.Info().Str("user_id", input.UserID).Str("role", input.Role).Msg("new user records materialized")
	return result, nil
}

// MigrateToReferralCodes back-fills referral codes for profiles created
// before codes existed.
func (s *EnrollmentService) MigrateToReferralCodes(ctx context.Context) (*ports.MigrateResult, error) {
	missing, err := s.profiles.ListMissingReferralCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles without referral codes: %w", err)
	}

	result := &ports.MigrateResult{}
	for _, profile := range missing {
		code, err := s.uniqueReferralCode(ctx)
		if err != nil {
			s.log.Warn().Err(err).Str("user_id", profile.UserID).Msg("referral code generation failed")
			result.Failed++
			continue
		}
		profile.ReferralCode = code
		profile.UpdatedAt = time.Now().UTC()
		if err := s.profiles.Upsert(ctx, profile); err != nil {
			s.log.Warn().Err(err).Str("user_id", profile.UserID).Msg("referral code backfill failed")
			result.Failed++
			continue
		}
		s.notify(ctx, "profiles", ports.ChangeUpdate, profile.UserID)
		result.Assigned++
	}

	s.log.Info().Int("assigned", result.Assigned).Int("failed", result.Failed).Msg("referral code migration finished")
	return result, nil
}

// verifyCode accepts a code from either namespace: an active staff key or a
// referral code owned by an existing profile.
func (s *EnrollmentService) verifyCode(ctx context.Context, code string) error {
	if domain.ClassifyStaffKey(code) != domain.FormatUnrecognized {
		check, err := s.validator.ValidateStaffKey(ctx, code)
		if err != nil {
			return err
		}
		if !check.IsValid {
			return domain.ErrEnrollmentCodeInvalid
		}
		return nil
	}

	check, err := s.validator.ValidateReferralCode(ctx, code)
	if err != nil {
		return err
	}
	if !check.IsValid {
		return domain.ErrEnrollmentCodeInvalid
	}
	return nil
}

// propagateCode pushes an enrollment code into the three projections.
// Failures are non-fatal: the projections are read caches, the profile has
// already recorded the truth.
func (s *EnrollmentService) propagateCode(ctx context.Context, userID, code string) []ports.ProjectionOutcome {
	outcomes := make([]ports.ProjectionOutcome, 0, 3)

	writes := []struct {
		projection string
		write      func(context.Context, string, string) error
	}{
		{projectionLicense, s.licenses.SetEnrolledBy},
		{projectionCustomer, s.customers.SetCustomerEnrolledBy},
		{projectionCustomerAccount, s.customers.SetCustomerAccountEnrollingCode},
	}

	for _, w := range writes {
		outcome := ports.ProjectionOutcome{Projection: w.projection}
		if err := w.write(ctx, userID, code); err != nil {
			s.log.Warn().Err(err).Str("user_id", userID).Str("projection", w.projection).Msg("projection write failed")
			outcome.Error = err.Error()
		} else {
			outcome.Updated = true
			s.notify(ctx, w.projection, ports.ChangeUpdate, userID)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// repairLicense coerces the license projection toward the profile, creating
// the license when missing.
func (s *EnrollmentService) repairLicense(ctx context.Context, profile *domain.Profile) ports.ProjectionOutcome {
	outcome := ports.ProjectionOutcome{Projection: projectionLicense}

	license, err := s.licenses.FindByUserID(ctx, profile.UserID)
	if errors.Is(err, domain.ErrLicenseNotFound) {
		created, genErr := s.registry.Generate(ctx, profile.UserID)
		if genErr != nil {
			s.log.Warn().Err(genErr).Str("user_id", profile.UserID).Msg("license creation during repair failed")
			outcome.Error = genErr.Error()
			return outcome
		}
		license = created
		outcome.Updated = true
	} else if err != nil {
		s.log.Warn().Err(err).Str("user_id", profile.UserID).Msg("license read during repair failed")
		outcome.Error = err.Error()
		return outcome
	}

	if license.EnrolledBy != profile.ReferredBy {
		if license.EnrolledBy != "" {
			s.log.Info().
				Str("user_id", profile.UserID).
				Str("projection_value", license.EnrolledBy).
				Str("profile_value", profile.ReferredBy).
				Msg("license enrollment conflict, profile wins")
		}
		if err := s.licenses.SetEnrolledBy(ctx, profile.UserID, profile.ReferredBy); err != nil {
			s.log.Warn().Err(err).Str("user_id", profile.UserID).Msg("license enrollment backfill failed")
			outcome.Error = err.Error()
			return outcome
		}
		outcome.Updated = true
		s.notify(ctx, projectionLicense, ports.ChangeUpdate, profile.UserID)
	}
	return outcome
}

func (s *EnrollmentService) repairCustomer(ctx context.Context, profile *domain.Profile) ports.ProjectionOutcome {
	outcome := ports.ProjectionOutcome{Projection: projectionCustomer}

	existing, err := s.customers.FindCustomer(ctx, profile.UserID)
	if err != nil && !errors.Is(err, domain.ErrCustomerNotFound) {
		s.log.Warn().Err(err).Str("user_id", profile.UserID).Msg("customer read during repair failed")
		outcome.Error = err.Error()
		return outcome
	}

	if existing != nil && existing.Email == profile.Email &&
		existing.FullName == profile.FullName && existing.EnrolledBy == profile.ReferredBy {
		return outcome
	}
	if existing != nil && existing.EnrolledBy != "" && existing.EnrolledBy != profile.ReferredBy {
		s.log.Info().
			Str("user_id", profile.UserID).
			Str("projection_value", existing.EnrolledBy).
			Str("profile_value", profile.ReferredBy).
			Msg("customer enrollment conflict, profile wins")
	}

	now := time.Now().UTC()
	customer := &domain.Customer{
		UserID:     profile.UserID,
		Email:      profile.Email,
		FullName:   profile.FullName,
		EnrolledBy: profile.ReferredBy,
		CreatedAt:  profile.CreatedAt,
		UpdatedAt:  now,
	}
	if err := s.customers.UpsertCustomer(ctx, customer); err != nil {
		s.log.Warn().Err(err).Str("user_id", profile.UserID).Msg("customer upsert during repair failed")
		outcome.Error = err.Error()
		return outcome
	}
	outcome.Updated = true
	s.notify(ctx, projectionCustomer, ports.ChangeUpdate, profile.UserID)
	return outcome
}

func (s *EnrollmentService) repairCustomerAccount(ctx context.Context, profile *domain.Profile) ports.ProjectionOutcome {
	outcome := ports.ProjectionOutcome{Projection: projectionCustomerAccount}

	existing, err := s.customers.FindCustomerAccount(ctx, profile.UserID)
	if err != nil && !errors.Is(err, domain.ErrCustomerNotFound) {
		s.log.Warn().Err(err).Str("user_id", profile.UserID).Msg("customer account read during repair failed")
		outcome.Error = err.Error()
		return outcome
	}

	if existing != nil && existing.Email == profile.Email &&
		existing.FullName == profile.FullName && existing.EnrollingCode == profile.ReferredBy {
		return outcome
	}
	if existing != nil && existing.EnrollingCode != "" && existing.EnrollingCode != profile.ReferredBy {
		s.log.Info().
			Str("user_id", profile.UserID).
			Str("projection_value", existing.EnrollingCode).
			Str("profile_value", profile.ReferredBy).
			Msg("customer account enrollment conflict, profile wins")
	}

	now := time.Now().UTC()
	account := &domain.CustomerAccount{
		UserID:        profile.UserID,
		Email:         profile.Email,
		FullName:      profile.FullName,
		EnrollingCode: profile.ReferredBy,
		CreatedAt:     profile.CreatedAt,
		UpdatedAt:     now,
	}
	if err := s.customers.UpsertCustomerAccount(ctx, account); err != nil {
		s.log.Warn().Err(err).Str("user_id", profile.UserID).Msg("customer account upsert during repair failed")
		outcome.Error = err.Error()
		return outcome
	}
	outcome.Updated = true
	s.notify(ctx, projectionCustomerAccount, ports.ChangeUpdate, profile.UserID)
	return outcome
}

// uniqueReferralCode draws four-digit codes until one is free, bounded by
// maxReferralCodeAttempts.
func (s *EnrollmentService) uniqueReferralCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxReferralCodeAttempts; attempt++ {
		code, err := randomReferralCode()
		if err != nil {
			return "", err
		}
		_, err = s.profiles.FindByReferralCode(ctx, code)
		if errors.Is(err, domain.ErrReferralCodeNotFound) || errors.Is(err, domain.ErrProfileNotFound) {
			return code, nil
		}
		if err != nil {
			return "", fmt.Errorf("referral code uniqueness check: %w", err)
		}
		s.log.Warn().Int("attempt", attempt+1).Msg("referral code collision, regenerating")
	}
	return "", domain.ErrReferralCodeTaken
}

// randomReferralCode returns a code in [1000, 9999]; no leading zeros so the
// code survives spreadsheet round-trips.
func randomReferralCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", fmt.Errorf("referral code generation: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+1000), nil
}

func (s *EnrollmentService) notify(ctx context.Context, table, event, key string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ports.Change{Table: table, Event: event, Key: key}); err != nil {
		s.log.Warn().Err(err).Str("table", table).Str("key", key).Msg("failed to publish change")
	}
}
