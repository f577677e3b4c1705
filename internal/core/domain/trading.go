package domain

import (
	"errors"
	"time"
)

var ErrFxSessionExpired = errors.New("fx data session expired")
var ErrFxAccountNotFound = errors.New("fx trading account not found")

// TradingAccount is a trading account as reported by the third-party data
// provider.
type TradingAccount struct {
	ID            int       `json:"id"`
	Name          string    `json:"name"`
	AccountNumber string    `json:"account_number"`
	Broker        string    `json:"broker"`
	Currency      string    `json:"currency"`
	Balance       float64   `json:"balance"`
	Equity        float64   `json:"equity"`
	Profit        float64   `json:"profit"`
	Gain          float64   `json:"gain"`
	Drawdown      float64   `json:"drawdown"`
	Demo          bool      `json:"demo"`
	LastUpdate    time.Time `json:"last_update"`
}

// DailyGain is a single day's gain/profit data point.
type DailyGain struct {
	Date   time.Time `json:"date"`
	Value  float64   `json:"value"`
	Profit float64   `json:"profit"`
}

// Trade is a single closed trade from the provider's history feed.
type Trade struct {
	OpenTime   time.Time `json:"open_time"`
	CloseTime  time.Time `json:"close_time"`
	Symbol     string    `json:"symbol"`
	Action     string    `json:"action"`
	Lots       float64   `json:"lots"`
	OpenPrice  float64   `json:"open_price"`
	ClosePrice float64   `json:"close_price"`
	Pips       float64   `json:"pips"`
	Profit     float64   `json:"profit"`
	Gain       float64   `json:"gain"`
}
