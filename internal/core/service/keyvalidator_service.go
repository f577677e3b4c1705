package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fxdesk/trader-portal/internal/api/metrics"
	"github.com/fxdesk/trader-portal/internal/core/domain"
	"github.com/fxdesk/trader-portal/internal/core/ports"
)

// Tables whose changes can flip a staff-key validation result: the key
// record itself and the profile holding its assignment.
var staffKeyWatchTables = []string{"staff_keys", "profiles"}

// KeyValidatorService classifies candidate codes and resolves them against
// the record store. It is the single validation authority; no other
// component re-implements the format or status checks.
type KeyValidatorService struct {
	staffKeys  ports.StaffKeyRepository
	profiles   ports.ProfileRepository
	subscriber ports.ChangeSubscriber
	log        zerolog.Logger
}

func NewKeyValidatorService(
	staffKeys ports.StaffKeyRepository,
	profiles ports.ProfileRepository,
	subscriber ports.ChangeSubscriber,
	log zerolog.Logger,
) *KeyValidatorService {
	return &KeyValidatorService{
		staffKeys:  staffKeys,
		profiles:   profiles,
		subscriber: subscriber,
		log:        log,
	}
}

// ValidateStaffKey classifies the candidate and, only when the format
// matches, resolves its current status. Unrecognized or incomplete input
// short-circuits with an all-false result and no lookup.
func (s *KeyValidatorService) ValidateStaffKey(ctx context.Context, candidate string) (*ports.KeyValidation, error) {
	format := domain.ClassifyStaffKey(candidate)
	result := &ports.KeyValidation{Candidate: candidate}
	if format == domain.FormatUnrecognized {
		metrics.KeyLookupsTotal.WithLabelValues("unrecognized", "invalid").Inc()
		return result, nil
	}
	result.IsProperFormat = true
	result.Format = format

	key, err := s.lookupStaffKey(ctx, candidate)
	if err != nil {
		if errors.Is(err, domain.ErrStaffKeyNotFound) {
			metrics.KeyLookupsTotal.WithLabelValues(string(format), "invalid").Inc()
			return result, nil
		}
		// Both lookup paths failed: default to invalid, surface the error,
		// no automatic retry.
		metrics.KeyLookupsTotal.WithLabelValues(string(format), "error").Inc()
		return result, err
	}

	result.IsValid = key.Status == domain.StaffKeyActive
	result.IsAssigned = key.AssignedTo != ""
	result.AssignedTo = key.AssignedTo
	result.Role = key.Role
	if result.IsValid {
		metrics.KeyLookupsTotal.WithLabelValues(string(format), "valid").Inc()
	} else {
		metrics.KeyLookupsTotal.WithLabelValues(string(format), "invalid").Inc()
	}
	return result, nil
}

// lookupStaffKey tries the primary repository read and falls back to the
// direct-query path when it fails.
func (s *KeyValidatorService) lookupStaffKey(ctx context.Context, code string) (*domain.StaffKey, error) {
	key, err := s.staffKeys.FindByCode(ctx, code)
	if err == nil || errors.Is(err, domain.ErrStaffKeyNotFound) {
		return key, err
	}

	s.log.Warn().Err(err).Str("code", code).Msg("primary staff key lookup failed, trying direct query")
	key, directErr := s.staffKeys.FindByCodeDirect(ctx, code)
	if directErr == nil || errors.Is(directErr, domain.ErrStaffKeyNotFound) {
		return key, directErr
	}
	return nil, fmt.Errorf("staff key lookup: %w", directErr)
}

// ValidateReferralCode resolves a candidate referral code to its owning
// profile. Format mismatch short-circuits without a lookup.
func (s *KeyValidatorService) ValidateReferralCode(ctx context.Context, candidate string) (*ports.ReferralValidation, error) {
	result := &ports.ReferralValidation{Candidate: candidate}
	if !domain.IsReferralCodeFormat(candidate) {
		return result, nil
	}
	result.IsProperFormat = true

	owner, err := s.profiles.FindByReferralCode(ctx, candidate)
	if err != nil {
		if errors.Is(err, domain.ErrReferralCodeNotFound) || errors.Is(err, domain.ErrProfileNotFound) {
			return result, nil
		}
		return result, err
	}

	result.IsValid = true
	result.OwnerID = owner.UserID
	result.OwnerName = owner.FullName
	return result, nil
}

// WatchStaffKey emits an immediate validation result and then a fresh one
// for every change notification touching staff keys or profiles. The
// subscription lives exactly as long as ctx. A candidate that fails the
// format check yields its single short-circuit result and a closed channel;
// there is no record to watch.
func (s *KeyValidatorService) WatchStaffKey(ctx context.Context, candidate string) (<-chan ports.KeyValidation, error) {
	initial, err := s.ValidateStaffKey(ctx, candidate)
	if err != nil {
		return nil, err
	}

	out := make(chan ports.KeyValidation, 1)
	out <- *initial

	if !initial.IsProperFormat {
		close(out)
		return out, nil
	}

	changes, release, err := s.subscriber.Subscribe(ctx, staffKeyWatchTables...)
	if err != nil {
		close(out)
		return nil, err
	}

	go s.watchLoop(ctx, candidate, changes, release, out)
	return out, nil
}

func (s *KeyValidatorService) watchLoop(
	ctx context.Context,
	candidate string,
	changes <-chan ports.Change,
	release func(),
	out chan<- ports.KeyValidation,
) {
	defer release()
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			fresh, err := s.ValidateStaffKey(ctx, candidate)
			if err != nil {
				s.log.Warn().Err(err).
					Str("candidate", candidate).
					Str("table", change.Table).
					Msg("re-resolve after change failed")
				continue
			}
			select {
			case out <- *fresh:
			case <-ctx.Done():
				return
			}
		}
	}
}
