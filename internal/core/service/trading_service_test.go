package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fxdesk/trader-portal/internal/core/domain"
)

func newTradingFixture(client *stubFxClient) (*TradingService, *stubSessionRepo) {
	sessions := newStubSessionRepo()
	return NewTradingService(client, sessions, time.Hour, discardLogger), sessions
}

func TestTrading_ConnectStoresSession(t *testing.T) {
	client := &stubFxClient{token: "tok-1"}
	svc, sessions := newTradingFixture(client)

	if err := svc.Connect(context.Background(), "user-1", "a@b.com", "pw"); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	if sessions.tokens["user-1"] != "tok-1" {
		t.Fatalf("session token was not stored")
	}
}

func TestTrading_CallsWithoutSession(t *testing.T) {
	client := &stubFxClient{}
	svc, _ := newTradingFixture(client)
	ctx := context.Background()

	if _, err := svc.Accounts(ctx, "user-1"); !errors.Is(err, domain.ErrFxSessionExpired) {
		t.Fatalf("expected ErrFxSessionExpired, got %v", err)
	}
	if len(client.lastTokens) != 0 {
		t.Fatalf("the provider must not be called without a session")
	}
}

func TestTrading_Accounts(t *testing.T) {
	client := &stubFxClient{
		token:    "tok-1",
		accounts: []domain.TradingAccount{{ID: 42, Name: "Main", Balance: 1000}},
	}
	svc, _ := newTradingFixture(client)
	ctx := context.Background()

	if err := svc.Connect(ctx, "user-1", "a@b.com", "pw"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	accounts, err := svc.Accounts(ctx, "user-1")
	if err != nil {
		t.Fatalf("Accounts returned error: %v", err)
	}
	if len(accounts) != 1 || accounts[0].ID != 42 {
		t.Fatalf("unexpected accounts: %+v", accounts)
	}
	if client.lastTokens[len(client.lastTokens)-1] != "tok-1" {
		t.Fatalf("stored session token was not used")
	}
}

func TestTrading_DailyGainSummary(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	client := &stubFxClient{
		token: "tok-1",
		daily: []domain.DailyGain{
			{Date: day, Value: 1.5, Profit: 120},
			{Date: day.AddDate(0, 0, 1), Value: -0.5, Profit: -40},
		},
	}
	svc, _ := newTradingFixture(client)
	ctx := context.Background()

	if err := svc.Connect(ctx, "user-1", "a@b.com", "pw"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	summary, err := svc.DailyGain(ctx, "user-1", 42, from, to)
	if err != nil {
		t.Fatalf("DailyGain returned error: %v", err)
	}
	if summary.TotalGain != 1.0 || summary.TotalProfit != 80 {
		t.Fatalf("unexpected totals: %+v", summary)
	}
	if !client.lastFrom.Equal(from) || !client.lastTo.Equal(to) {
		t.Fatalf("date range not forwarded: %v - %v", client.lastFrom, client.lastTo)
	}
}

func TestTrading_DailyGainDefaultRange(t *testing.T) {
	client := &stubFxClient{token: "tok-1"}
	svc, _ := newTradingFixture(client)
	ctx := context.Background()

	if err := svc.Connect(ctx, "user-1", "a@b.com", "pw"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if _, err := svc.DailyGain(ctx, "user-1", 42, time.Time{}, time.Time{}); err != nil {
		t.Fatalf("DailyGain returned error: %v", err)
	}
	if client.lastTo.IsZero() || client.lastFrom.IsZero() {
		t.Fatalf("defaults were not applied")
	}
	want := client.lastTo.AddDate(0, -1, 0)
	if !client.lastFrom.Equal(want) {
		t.Fatalf("default from = %v, want one month before to", client.lastFrom)
	}
}

func TestTrading_ExpiredSessionIsCleared(t *testing.T) {
	client := &stubFxClient{token: "tok-1", callErr: domain.ErrFxSessionExpired}
	svc, sessions := newTradingFixture(client)
	ctx := context.Background()

	if err := svc.Connect(ctx, "user-1", "a@b.com", "pw"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if _, err := svc.Accounts(ctx, "user-1"); !errors.Is(err, domain.ErrFxSessionExpired) {
		t.Fatalf("expected ErrFxSessionExpired, got %v", err)
	}
	if _, ok := sessions.tokens["user-1"]; ok {
		t.Fatalf("stale session must be cleared after provider rejection")
	}
}

func TestTrading_Disconnect(t *testing.T) {
	client := &stubFxClient{token: "tok-1"}
	svc, sessions := newTradingFixture(client)
	ctx := context.Background()

	if err := svc.Connect(ctx, "user-1", "a@b.com", "pw"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := svc.Disconnect(ctx, "user-1"); err != nil {
		t.Fatalf("Disconnect returned error: %v", err)
	}
	if _, ok := sessions.tokens["user-1"]; ok {
		t.Fatalf("local session must be cleared")
	}
	if len(client.loggedOut) != 1 || client.loggedOut[0] != "tok-1" {
		t.Fatalf("provider logout was not attempted: %+v", client.loggedOut)
	}

	// disconnecting without a session is still fine
	if err := svc.Disconnect(ctx, "user-1"); err != nil {
		t.Fatalf("second disconnect failed: %v", err)
	}
}
