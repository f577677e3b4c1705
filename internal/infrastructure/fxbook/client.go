// Package fxbook is a thin read-only client for the MyFxBook JSON API.
// Every call is a GET with query-string parameters; a session token from
// Login keys all data endpoints.
package fxbook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fxdesk/trader-portal/internal/api/metrics"
	"github.com/fxdesk/trader-portal/internal/core/domain"
)

const (
	defaultBaseURL = "https://www.myfxbook.com/api"
	defaultTimeout = 15 * time.Second

	dateLayout     = "2006-01-02"
	dateTimeLayout = "01/02/2006 15:04"
)

// Config customizes the client; zero values fall back to defaults.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the provider API.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(cfg Config, log zerolog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// envelope is the provider's response frame shared by all endpoints.
type envelope struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type loginResponse struct {
	envelope
	Session string `json:"session"`
}

type accountsResponse struct {
	envelope
	Accounts []providerAccount `json:"accounts"`
}

type providerAccount struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	AccountID  int     `json:"accountId"`
	Broker     string  `json:"server"`
	Currency   string  `json:"currency"`
	Balance    float64 `json:"balance"`
	Equity     float64 `json:"equity"`
	Profit     float64 `json:"profit"`
	Gain       float64 `json:"gain"`
	Drawdown   float64 `json:"drawdown"`
	Demo       bool    `json:"demo"`
	LastUpdate string  `json:"lastUpdateDate"`
}

type dailyGainResponse struct {
	envelope
	DailyGain [][]providerDailyGain `json:"dailyGain"`
}

type providerDailyGain struct {
	Date   string  `json:"date"`
	Value  float64 `json:"value"`
	Profit float64 `json:"profit"`
}

type historyResponse struct {
	envelope
	History []providerTrade `json:"history"`
}

type providerTrade struct {
	OpenTime   string  `json:"openTime"`
	CloseTime  string  `json:"closeTime"`
	Symbol     string  `json:"symbol"`
	Action     string  `json:"action"`
	Sizing     sizing  `json:"sizing"`
	OpenPrice  float64 `json:"openPrice"`
	ClosePrice float64 `json:"closePrice"`
	Pips       float64 `json:"pips"`
	Profit     float64 `json:"profit"`
	Gain       float64 `json:"gain"`
}

type sizing struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	params := url.Values{}
	params.Set("email", email)
	params.Set("password", password)

	var resp loginResponse
	if err := c.get(ctx, "login.json", params, &resp); err != nil {
		return "", err
	}
	if resp.Error {
		return "", fmt.Errorf("provider login: %s", resp.Message)
	}
	return resp.Session, nil
}

// Logout invalidates a session token.
func (c *Client) Logout(ctx context.Context, session string) error {
	params := url.Values{}
	params.Set("session", session)

	var resp envelope
	if err := c.get(ctx, "logout.json", params, &resp); err != nil {
		return err
	}
	if resp.Error {
		return c.apiError(resp)
	}
	return nil
}

// Accounts lists the trading accounts linked to the session.
func (c *Client) Accounts(ctx context.Context, session string) ([]domain.TradingAccount, error) {
	params := url.Values{}
	params.Set("session", session)

	var resp accountsResponse
	if err := c.get(ctx, "get-my-accounts.json", params, &resp); err != nil {
		return nil, err
	}
	if resp.Error {
		return nil, c.apiError(resp.envelope)
	}

	accounts := make([]domain.TradingAccount, 0, len(resp.Accounts))
	for _, a := range resp.Accounts {
		lastUpdate, _ := time.Parse(dateTimeLayout, a.LastUpdate)
		accounts = append(accounts, domain.TradingAccount{
			ID:            a.ID,
			Name:          a.Name,
			AccountNumber: strconv.Itoa(a.AccountID),
			Broker:        a.Broker,
			Currency:      a.Currency,
			Balance:       a.Balance,
			Equity:        a.Equity,
			Profit:        a.Profit,
			Gain:          a.Gain,
			Drawdown:      a.Drawdown,
			Demo:          a.Demo,
			LastUpdate:    lastUpdate,
		})
	}
	return accounts, nil
}

// DailyGain fetches the daily gain series for one account.
func (c *Client) DailyGain(ctx context.Context, session string, accountID int, from, to time.Time) ([]domain.DailyGain, error) {
	params := url.Values{}
	params.Set("session", session)
	params.Set("id", strconv.Itoa(accountID))
	params.Set("start", from.Format(dateLayout))
	params.Set("end", to.Format(dateLayout))

	var resp dailyGainResponse
	if err := c.get(ctx, "get-daily-gain.json", params, &resp); err != nil {
		return nil, err
	}
	if resp.Error {
		return nil, c.apiError(resp.envelope)
	}

	var series []domain.DailyGain
	for _, day := range resp.DailyGain {
		for _, point := range day {
			date, err := time.Parse(dateLayout, point.Date)
			if err != nil {
				c.log.Warn().Str("date", point.Date).Msg("unparseable daily gain date, skipping point")
				continue
			}
			series = append(series, domain.DailyGain{Date: date, Value: point.Value, Profit: point.Profit})
		}
	}
	return series, nil
}

// History fetches the closed-trade history for one account.
func (c *Client) History(ctx context.Context, session string, accountID int) ([]domain.Trade, error) {
	params := url.Values{}
	params.Set("session", session)
	params.Set("id", strconv.Itoa(accountID))

	var resp historyResponse
	if err := c.get(ctx, "get-history.json", params, &resp); err != nil {
		return nil, err
	}
	if resp.Error {
		return nil, c.apiError(resp.envelope)
	}

	trades := make([]domain.Trade, 0, len(resp.History))
	for _, t := range resp.History {
		openTime, _ := time.Parse(dateTimeLayout, t.OpenTime)
		closeTime, _ := time.Parse(dateTimeLayout, t.CloseTime)
		lots, _ := strconv.ParseFloat(t.Sizing.Value, 64)
		trades = append(trades, domain.Trade{
			OpenTime:   openTime,
			CloseTime:  closeTime,
			Symbol:     t.Symbol,
			Action:     t.Action,
			Lots:       lots,
			OpenPrice:  t.OpenPrice,
			ClosePrice: t.ClosePrice,
			Pips:       t.Pips,
			Profit:     t.Profit,
			Gain:       t.Gain,
		})
	}
	return trades, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("fxbook request: %w", err)
	}

	res, err := c.http.Do(req)
	if err != nil {
		metrics.FxAPICallsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return fmt.Errorf("fxbook %s: %w", endpoint, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		metrics.FxAPICallsTotal.WithLabelValues(endpoint, fmt.Sprintf("http_%d", res.StatusCode)).Inc()
		return fmt.Errorf("fxbook %s: unexpected status %d", endpoint, res.StatusCode)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("fxbook %s: read body: %w", endpoint, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		metrics.FxAPICallsTotal.WithLabelValues(endpoint, "bad_payload").Inc()
		return fmt.Errorf("fxbook %s: decode: %w", endpoint, err)
	}

	metrics.FxAPICallsTotal.WithLabelValues(endpoint, "ok").Inc()
	return nil
}

// apiError maps the provider's in-band errors. An invalidated session is
// the one case callers handle specially.
func (c *Client) apiError(e envelope) error {
	if strings.Contains(strings.ToLower(e.Message), "session") {
		return domain.ErrFxSessionExpired
	}
	return fmt.Errorf("fxbook api: %s", e.Message)
}
