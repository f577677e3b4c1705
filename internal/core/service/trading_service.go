package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fxdesk/trader-portal/internal/core/domain"
	"github.com/fxdesk/trader-portal/internal/core/ports"
)

// TradingService bridges the portal to the third-party trading-data API.
// The provider session token is owned here and nowhere else.
type TradingService struct {
	client     ports.FxDataClient
	sessions   ports.SessionRepository
	sessionTTL time.Duration
	log        zerolog.Logger
}

func NewTradingService(client ports.FxDataClient, sessions ports.SessionRepository, sessionTTL time.Duration, log zerolog.Logger) *TradingService {
	if sessionTTL <= 0 {
		sessionTTL = 12 * time.Hour
	}
	return &TradingService{client: client, sessions: sessions, sessionTTL: sessionTTL, log: log}
}

// Connect logs the user into the provider and stores the session token.
func (s *TradingService) Connect(ctx context.Context, userID, email, password string) error {
	token, err := s.client.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("provider login: %w", err)
	}
	if err := s.sessions.Write(ctx, userID, token, s.sessionTTL); err != nil {
		return fmt.Errorf("store provider session: %w", err)
	}
	s.log.Info().Str("user_id", userID).Msg("provider session established")
	return nil
}

// Disconnect ends the provider session. The remote logout is best effort;
// the local token is always cleared.
func (s *TradingService) Disconnect(ctx context.Context, userID string) error {
	token, err := s.sessions.Read(ctx, userID)
	if err == nil && token != "" {
		if err := s.client.Logout(ctx, token); err != nil {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("provider logout failed")
		}
	}
	return s.sessions.Clear(ctx, userID)
}

func (s *TradingService) Accounts(ctx context.Context, userID string) ([]domain.TradingAccount, error) {
	token, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}

	accounts, err := s.client.Accounts(ctx, token)
	if err != nil {
		return nil, s.mapProviderErr(ctx, userID, err)
	}
	return accounts, nil
}

func (s *TradingService) DailyGain(ctx context.Context, userID string, accountID int, from, to time.Time) (*ports.GainSummary, error) {
	token, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}

	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, -1, 0)
	}

	daily, err := s.client.DailyGain(ctx, token, accountID, from, to)
	if err != nil {
		return nil, s.mapProviderErr(ctx, userID, err)
	}

	summary := &ports.GainSummary{Daily: daily}
	for _, d := range daily {
		summary.TotalGain += d.Value
		summary.TotalProfit += d.Profit
	}
	return summary, nil
}

func (s *TradingService) History(ctx context.Context, userID string, accountID int) ([]domain.Trade, error) {
	token, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}

	trades, err := s.client.History(ctx, token, accountID)
	if err != nil {
		return nil, s.mapProviderErr(ctx, userID, err)
	}
	return trades, nil
}

func (s *TradingService) session(ctx context.Context, userID string) (string, error) {
	token, err := s.sessions.Read(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("read provider session: %w", err)
	}
	if token == "" {
		return "", domain.ErrFxSessionExpired
	}
	return token, nil
}

// mapProviderErr clears a session the provider no longer accepts so the
// next call prompts the user to reconnect.
func (s *TradingService) mapProviderErr(ctx context.Context, userID string, err error) error {
	if errors.Is(err, domain.ErrFxSessionExpired) {
		if clearErr := s.sessions.Clear(ctx, userID); clearErr != nil {
			s.log.Warn().Err(clearErr).Str("user_id", userID).Msg("failed to clear stale provider session")
		}
	}
	return err
}
