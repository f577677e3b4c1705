package domain

import (
	"errors"
	"testing"
	"time"
)

func TestLicenseStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to LicenseStatus
		allowed  bool
	}{
		{LicenseCreated, LicenseActive, true},
		{LicenseCreated, LicenseRevoked, true},
		{LicenseCreated, LicenseExpired, false},
		{LicenseActive, LicenseExpired, true},
		{LicenseActive, LicenseRevoked, true},
		{LicenseActive, LicenseCreated, false},
		// terminal states: no way back to active
		{LicenseExpired, LicenseActive, false},
		{LicenseExpired, LicenseRevoked, false},
		{LicenseRevoked, LicenseActive, false},
		{LicenseRevoked, LicenseExpired, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestLicenseKeyAddAccount(t *testing.T) {
	l := &LicenseKey{Status: LicenseActive}

	if err := l.AddAccount("100001"); err != nil {
		t.Fatalf("AddAccount returned error: %v", err)
	}
	if !l.HasAccount("100001") {
		t.Fatalf("expected account to be bound")
	}

	if err := l.AddAccount("100001"); !errors.Is(err, ErrDuplicateAccount) {
		t.Fatalf("expected ErrDuplicateAccount, got %v", err)
	}
	if len(l.AccountNumbers) != 1 {
		t.Fatalf("duplicate add must not grow the list, len = %d", len(l.AccountNumbers))
	}
}

func TestLicenseKeyAccountCap(t *testing.T) {
	l := &LicenseKey{Status: LicenseActive}
	accounts := []string{"1", "2", "3", "4", "5"}
	for _, a := range accounts {
		if err := l.AddAccount(a); err != nil {
			t.Fatalf("AddAccount(%q) returned error: %v", a, err)
		}
	}

	if err := l.AddAccount("6"); !errors.Is(err, ErrAccountCapExceeded) {
		t.Fatalf("expected ErrAccountCapExceeded, got %v", err)
	}
	if len(l.AccountNumbers) != MaxLicenseAccounts {
		t.Fatalf("cap breach must not grow the list, len = %d", len(l.AccountNumbers))
	}

	// freeing a slot allows a new account in
	l.RemoveAccount("3")
	if err := l.AddAccount("6"); err != nil {
		t.Fatalf("AddAccount after removal returned error: %v", err)
	}
}

func TestLicenseKeyRemoveAbsentAccount(t *testing.T) {
	l := &LicenseKey{Status: LicenseActive, AccountNumbers: []string{"100001"}}
	l.RemoveAccount("999999")
	if len(l.AccountNumbers) != 1 {
		t.Fatalf("removing an absent account must be a no-op")
	}
}

func TestLicenseKeyIsExpired(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	l := &LicenseKey{Status: LicenseActive}
	if l.IsExpired(now) {
		t.Fatalf("license without expiry must not be expired")
	}

	l.ExpiresAt = &future
	if l.IsExpired(now) {
		t.Fatalf("license expiring in the future must not be expired")
	}

	l.ExpiresAt = &past
	if !l.IsExpired(now) {
		t.Fatalf("license past its expiry must be expired")
	}

	// stored status wins even without a timestamp
	l = &LicenseKey{Status: LicenseExpired}
	if !l.IsExpired(now) {
		t.Fatalf("license with expired status must be expired")
	}
}
