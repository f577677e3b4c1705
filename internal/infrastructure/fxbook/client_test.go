package fxbook

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fxdesk/trader-portal/internal/core/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, Timeout: 2 * time.Second}, zerolog.Nop())
}

func TestClient_Login(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/login.json" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("email") != "a@b.com" || q.Get("password") != "pw" {
			t.Fatalf("credentials not forwarded: %v", q)
		}
		w.Write([]byte(`{"error":false,"message":"","session":"tok-1"}`))
	})

	session, err := client.Login(context.Background(), "a@b.com", "pw")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if session != "tok-1" {
		t.Fatalf("session = %q, want tok-1", session)
	}
}

func TestClient_Login_ProviderError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":true,"message":"Wrong email or password"}`))
	})

	if _, err := client.Login(context.Background(), "a@b.com", "bad"); err == nil {
		t.Fatalf("expected an error for a provider rejection")
	}
}

func TestClient_Accounts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/get-my-accounts.json" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("session") != "tok-1" {
			t.Fatalf("session not forwarded")
		}
		w.Write([]byte(`{
			"error": false,
			"accounts": [{
				"id": 42,
				"name": "Main",
				"accountId": 100001,
				"server": "IC Markets",
				"currency": "USD",
				"balance": 1000.5,
				"equity": 990.25,
				"profit": 120.75,
				"gain": 12.5,
				"drawdown": 3.2,
				"demo": false,
				"lastUpdateDate": "03/01/2024 10:30"
			}]
		}`))
	})

	accounts, err := client.Accounts(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("Accounts returned error: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("expected 1 account, got %d", len(accounts))
	}

	a := accounts[0]
	if a.ID != 42 || a.AccountNumber != "100001" || a.Broker != "IC Markets" {
		t.Fatalf("unexpected account: %+v", a)
	}
	want := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	if !a.LastUpdate.Equal(want) {
		t.Fatalf("last update = %v, want %v", a.LastUpdate, want)
	}
}

func TestClient_Accounts_ExpiredSession(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":true,"message":"Invalid session."}`))
	})

	_, err := client.Accounts(context.Background(), "stale")
	if !errors.Is(err, domain.ErrFxSessionExpired) {
		t.Fatalf("expected ErrFxSessionExpired, got %v", err)
	}
}

func TestClient_DailyGain(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/get-daily-gain.json" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("start") != "2024-03-01" || q.Get("end") != "2024-03-31" {
			t.Fatalf("date range not forwarded: %v", q)
		}
		w.Write([]byte(`{
			"error": false,
			"dailyGain": [
				[{"date":"2024-03-01","value":1.5,"profit":120}],
				[{"date":"2024-03-02","value":-0.5,"profit":-40}],
				[{"date":"bogus","value":9,"profit":9}]
			]
		}`))
	})

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	series, err := client.DailyGain(context.Background(), "tok-1", 42, from, to)
	if err != nil {
		t.Fatalf("DailyGain returned error: %v", err)
	}
	// the unparseable point is dropped, not fatal
	if len(series) != 2 {
		t.Fatalf("expected 2 points, got %d", len(series))
	}
	if series[0].Value != 1.5 || series[1].Profit != -40 {
		t.Fatalf("unexpected series: %+v", series)
	}
}

func TestClient_History(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/get-history.json" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"error": false,
			"history": [{
				"openTime": "03/01/2024 09:00",
				"closeTime": "03/01/2024 15:30",
				"symbol": "EURUSD",
				"action": "Buy",
				"sizing": {"type": "lots", "value": "0.50"},
				"openPrice": 1.0850,
				"closePrice": 1.0910,
				"pips": 60,
				"profit": 300,
				"gain": 2.1
			}]
		}`))
	})

	trades, err := client.History(context.Background(), "tok-1", 42)
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].Symbol != "EURUSD" || trades[0].Lots != 0.5 || trades[0].Pips != 60 {
		t.Fatalf("unexpected trade: %+v", trades[0])
	}
}

func TestClient_NonOKStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	if _, err := client.Accounts(context.Background(), "tok-1"); err == nil {
		t.Fatalf("expected an error for a non-200 response")
	}
}
