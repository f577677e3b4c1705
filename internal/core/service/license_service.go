package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fxdesk/trader-portal/internal/api/metrics"
	"github.com/fxdesk/trader-portal/internal/core/domain"
	"github.com/fxdesk/trader-portal/internal/core/ports"
)

const (
	keyCharset     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	keyGroups      = 5
	keyGroupLen    = 5
	maxKeyAttempts = 3
)

// LicenseService implements the license registry.
type LicenseService struct {
	repo      ports.LicenseRepository
	publisher ports.ChangePublisher
	log       zerolog.Logger
}

func NewLicenseService(repo ports.LicenseRepository, publisher ports.ChangePublisher, log zerolog.Logger) *LicenseService {
	return &LicenseService{repo: repo, publisher: publisher, log: log}
}

// Generate produces a unique license key for the user and persists it as
// active. On key collision the key is regenerated up to maxKeyAttempts
// times before the operation fails.
func (s *LicenseService) Generate(ctx context.Context, userID string) (*domain.LicenseKey, error) {
	var key string
	for attempt := 0; ; attempt++ {
		if attempt >= maxKeyAttempts {
			return nil, domain.ErrKeyGeneration
		}

		key = generateLicenseKey()
		taken, err := s.repo.ExistsKey(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("license uniqueness check: %w", err)
		}
		if !taken {
			break
		}
		s.log.Warn().Int("attempt", attempt+1).Msg("license key collision, regenerating")
	}

	now := time.Now().UTC()
	license := &domain.LicenseKey{
		Key:            key,
		UserID:         userID,
		Status:         domain.LicenseActive,
		AccountNumbers: []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Create(ctx, license); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("failed to create license")
		return nil, err
	}

	s.notify(ctx, ports.ChangeInsert, license.Key)
	s.log.Info().Str("user_id", userID).Msg("license created")
	return license, nil
}

func (s *LicenseService) GetByUserID(ctx context.Context, userID string) (*domain.LicenseKey, error) {
	return s.repo.FindByUserID(ctx, userID)
}

// BindAccount adds an account number to the user's license. Duplicate
// numbers and numbers past the cap are rejected with distinct errors and
// the stored list is left unchanged.
func (s *LicenseService) BindAccount(ctx context.Context, userID, account string) (*domain.LicenseKey, error) {
	license, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.ensureUsable(ctx, license); err != nil {
		return nil, err
	}

	if err := license.AddAccount(account); err != nil {
		return nil, err
	}
	license.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, license); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("failed to bind account")
		return nil, err
	}

	s.notify(ctx, ports.ChangeUpdate, license.Key)
	s.log.Info().Str("user_id", userID).Str("account", account).Int("bound", len(license.AccountNumbers)).Msg("account bound")
	return license, nil
}

// UnbindAccount removes an account number from the user's license. Removing
// a number that is not bound succeeds without a write.
func (s *LicenseService) UnbindAccount(ctx context.Context, userID, account string) (*domain.LicenseKey, error) {
	license, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !license.HasAccount(account) {
		return license, nil
	}

	license.RemoveAccount(account)
	license.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, license); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("failed to unbind account")
		return nil, err
	}

	s.notify(ctx, ports.ChangeUpdate, license.Key)
	s.log.Info().Str("user_id", userID).Str("account", account).Msg("account unbound")
	return license, nil
}

// Validate is the server-side boundary checked by the trading product: the
// key must exist, be active, be unexpired, and authorize the account. Each
// failed precondition yields its own reason so the caller can distinguish.
func (s *LicenseService) Validate(ctx context.Context, key, account string) (*ports.LicenseValidation, error) {
	license, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrLicenseNotFound) {
			metrics.LicenseValidationsTotal.WithLabelValues("not_found").Inc()
			return &ports.LicenseValidation{Valid: false, Reason: "not_found"}, nil
		}
		return nil, err
	}

	if license.IsExpired(time.Now().UTC()) {
		s.coerceExpired(ctx, license)
		metrics.LicenseValidationsTotal.WithLabelValues("expired").Inc()
		return &ports.LicenseValidation{Valid: false, Reason: "expired"}, nil
	}
	if license.Status != domain.LicenseActive {
		metrics.LicenseValidationsTotal.WithLabelValues("inactive").Inc()
		return &ports.LicenseValidation{Valid: false, Reason: "inactive"}, nil
	}
	if !license.HasAccount(account) {
		metrics.LicenseValidationsTotal.WithLabelValues("unauthorized_account").Inc()
		return &ports.LicenseValidation{Valid: false, Reason: "unauthorized_account"}, nil
	}

	metrics.LicenseValidationsTotal.WithLabelValues("valid").Inc()
	return &ports.LicenseValidation{Valid: true, UserID: license.UserID}, nil
}

// Revoke ends the license permanently. There is no path back to active.
func (s *LicenseService) Revoke(ctx context.Context, userID string) error {
	license, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return err
	}

	if !license.Status.CanTransitionTo(domain.LicenseRevoked) {
		return fmt.Errorf("%w (from %s to %s)", domain.ErrInvalidLicenseTransition, license.Status, domain.LicenseRevoked)
	}

	license.Status = domain.LicenseRevoked
	license.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, license); err != nil {
		return err
	}

	s.notify(ctx, ports.ChangeUpdate, license.Key)
	s.log.Info().Str("user_id", userID).Msg("license revoked")
	return nil
}

// ensureUsable rejects mutations on licenses that are no longer active,
// coercing a stale active status when the expiry has passed.
func (s *LicenseService) ensureUsable(ctx context.Context, license *domain.LicenseKey) error {
	if license.IsExpired(time.Now().UTC()) {
		s.coerceExpired(ctx, license)
		return domain.ErrLicenseExpired
	}
	if license.Status != domain.LicenseActive {
		return domain.ErrLicenseInactive
	}
	return nil
}

// coerceExpired persists the expired status when the stored record still
// says active. Best effort: validation already reported expired either way.
func (s *LicenseService) coerceExpired(ctx context.Context, license *domain.LicenseKey) {
	if license.Status != domain.LicenseActive || !license.Status.CanTransitionTo(domain.LicenseExpired) {
		return
	}
	license.Status = domain.LicenseExpired
	license.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, license); err != nil {
		s.log.Warn().Err(err).Str("key", license.Key).Msg("failed to persist expired status")
		return
	}
	s.notify(ctx, ports.ChangeUpdate, license.Key)
}

func (s *LicenseService) notify(ctx context.Context, event, key string) {
	if s.publisher == nil {
		return
	}
	change := ports.Change{Table: "license_keys", Event: event, Key: key}
	if err := s.publisher.Publish(ctx, change); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to publish license change")
	}
}

// generateLicenseKey returns a key of keyGroups groups of keyGroupLen
// alphanumeric characters joined by hyphens, e.g. A1B2C-D3E4F-G5H6I-J7K8L-M9N0P.
func generateLicenseKey() string {
	raw := make([]byte, keyGroups*keyGroupLen)
	if _, err := rand.Read(raw); err != nil {
		// crypto/rand failing is unrecoverable for key material
		panic(fmt.Sprintf("license key generation: %v", err))
	}

	groups := make([]string, keyGroups)
	for g := 0; g < keyGroups; g++ {
		chars := make([]byte, keyGroupLen)
		for i := 0; i < keyGroupLen; i++ {
			chars[i] = keyCharset[int(raw[g*keyGroupLen+i])%len(keyCharset)]
		}
		groups[g] = string(chars)
	}
	return strings.Join(groups, "-")
}
