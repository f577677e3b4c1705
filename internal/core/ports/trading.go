package ports

import (
	"context"
	"time"

	"github.com/fxdesk/trader-portal/internal/core/domain"
)

// FxDataClient is the read-only third-party trading-data API. A session
// token obtained from Login keys every other call.
type FxDataClient interface {
	Login(ctx context.Context, email, password string) (string, error)
	Accounts(ctx context.Context, session string) ([]domain.TradingAccount, error)
	DailyGain(ctx context.Context, session string, accountID int, from, to time.Time) ([]domain.DailyGain, error)
	History(ctx context.Context, session string, accountID int) ([]domain.Trade, error)
	Logout(ctx context.Context, session string) error
}

// GainSummary aggregates a daily gain series for the dashboard.
type GainSummary struct {
	TotalGain   float64            `json:"total_gain"`
	TotalProfit float64            `json:"total_profit"`
	Daily       []domain.DailyGain `json:"daily"`
}

// TradingService exposes provider data to the portal. Each user links their
// own provider credentials once; the resulting session token is kept in the
// session repository and reused until the provider expires it.
type TradingService interface {
	Connect(ctx context.Context, userID, email, password string) error
	Disconnect(ctx context.Context, userID string) error
	Accounts(ctx context.Context, userID string) ([]domain.TradingAccount, error)
	DailyGain(ctx context.Context, userID string, accountID int, from, to time.Time) (*GainSummary, error)
	History(ctx context.Context, userID string, accountID int) ([]domain.Trade, error)
}
