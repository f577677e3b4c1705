package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fxdesk/trader-portal/internal/core/domain"
	"github.com/fxdesk/trader-portal/internal/core/ports"
)

func newValidatorFixture() (*KeyValidatorService, *stubStaffKeyRepo, *stubProfileRepo, *stubSubscriber) {
	staffKeys := newStubStaffKeyRepo()
	profiles := newStubProfileRepo()
	sub := newStubSubscriber()
	svc := NewKeyValidatorService(staffKeys, profiles, sub, discardLogger)
	return svc, staffKeys, profiles, sub
}

func TestKeyValidator_UnrecognizedFormatSkipsLookup(t *testing.T) {
	svc, staffKeys, _, _ := newValidatorFixture()

	for _, candidate := range []string{"", "AD12", "garbage", "ceo001", "CEO1234"} {
		result, err := svc.ValidateStaffKey(context.Background(), candidate)
		if err != nil {
			t.Fatalf("ValidateStaffKey(%q) returned error: %v", candidate, err)
		}
		if result.IsProperFormat || result.IsValid {
			t.Fatalf("ValidateStaffKey(%q) = %+v, want all-false", candidate, result)
		}
	}
	if staffKeys.findCalls != 0 || staffKeys.directCalls != 0 {
		t.Fatalf("format mismatch must not hit the repository, got %d/%d calls", staffKeys.findCalls, staffKeys.directCalls)
	}
}

func TestKeyValidator_ActiveUnassignedKey(t *testing.T) {
	svc, staffKeys, _, _ := newValidatorFixture()
	staffKeys.keys["AD1234"] = &domain.StaffKey{Code: "AD1234", Role: domain.RoleAdmin, Status: domain.StaffKeyActive}

	result, err := svc.ValidateStaffKey(context.Background(), "AD1234")
	if err != nil {
		t.Fatalf("ValidateStaffKey returned error: %v", err)
	}
	if !result.IsProperFormat || result.Format != domain.FormatAdmin {
		t.Fatalf("unexpected format result: %+v", result)
	}
	if !result.IsValid || result.IsAssigned || result.Role != domain.RoleAdmin {
		t.Fatalf("unexpected validity result: %+v", result)
	}
}

func TestKeyValidator_AssignedKey(t *testing.T) {
	svc, staffKeys, _, _ := newValidatorFixture()
	staffKeys.keys["EN0042"] = &domain.StaffKey{
		Code: "EN0042", Role: domain.RoleEnroller,
		Status: domain.StaffKeyActive, AssignedTo: "user-7",
	}

	result, err := svc.ValidateStaffKey(context.Background(), "EN0042")
	if err != nil {
		t.Fatalf("ValidateStaffKey returned error: %v", err)
	}
	if !result.IsValid || !result.IsAssigned || result.AssignedTo != "user-7" {
		t.Fatalf("unexpected result for assigned key: %+v", result)
	}
}

func TestKeyValidator_WellFormedButUnknownKey(t *testing.T) {
	svc, _, _, _ := newValidatorFixture()

	result, err := svc.ValidateStaffKey(context.Background(), "CEO001")
	if err != nil {
		t.Fatalf("ValidateStaffKey returned error: %v", err)
	}
	if !result.IsProperFormat || result.IsValid {
		t.Fatalf("unknown key must be well-formed but invalid: %+v", result)
	}
}

func TestKeyValidator_DirectLookupFallback(t *testing.T) {
	svc, staffKeys, _, _ := newValidatorFixture()
	staffKeys.keys["AD1234"] = &domain.StaffKey{Code: "AD1234", Role: domain.RoleAdmin, Status: domain.StaffKeyActive}
	staffKeys.primaryErr = errors.New("primary path down")

	result, err := svc.ValidateStaffKey(context.Background(), "AD1234")
	if err != nil {
		t.Fatalf("fallback path should have resolved the key: %v", err)
	}
	if !result.IsValid {
		t.Fatalf("expected valid result via direct lookup: %+v", result)
	}
	if staffKeys.directCalls != 1 {
		t.Fatalf("expected exactly one direct lookup, got %d", staffKeys.directCalls)
	}
}

func TestKeyValidator_ReferralCode(t *testing.T) {
	svc, _, profiles, _ := newValidatorFixture()
	profiles.profiles["user-3"] = &domain.Profile{
		UserID: "user-3", FullName: "Dana Vega",
		Role: domain.RoleCustomer, ReferralCode: "7741",
	}

	result, err := svc.ValidateReferralCode(context.Background(), "7741")
	if err != nil {
		t.Fatalf("ValidateReferralCode returned error: %v", err)
	}
	if !result.IsValid || result.OwnerID != "user-3" || result.OwnerName != "Dana Vega" {
		t.Fatalf("unexpected referral result: %+v", result)
	}

	result, _ = svc.ValidateReferralCode(context.Background(), "0000")
	if result.IsValid || !result.IsProperFormat {
		t.Fatalf("unknown code must be well-formed but invalid: %+v", result)
	}

	result, _ = svc.ValidateReferralCode(context.Background(), "AD1234")
	if result.IsProperFormat {
		t.Fatalf("staff key must not pass the referral format check")
	}
}

func TestKeyValidator_WatchEmitsOnChange(t *testing.T) {
	svc, staffKeys, _, sub := newValidatorFixture()
	staffKeys.keys["AD1234"] = &domain.StaffKey{Code: "AD1234", Role: domain.RoleAdmin, Status: domain.StaffKeyActive}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := svc.WatchStaffKey(ctx, "AD1234")
	if err != nil {
		t.Fatalf("WatchStaffKey returned error: %v", err)
	}

	initial := receiveValidation(t, updates)
	if !initial.IsValid || initial.IsAssigned {
		t.Fatalf("unexpected initial result: %+v", initial)
	}

	// the key gets claimed; a change notification must trigger a re-resolve
	staffKeys.keys["AD1234"].AssignedTo = "user-9"
	sub.ch <- ports.Change{Table: "staff_keys", Event: ports.ChangeUpdate, Key: "AD1234"}

	fresh := receiveValidation(t, updates)
	if !fresh.IsAssigned || fresh.AssignedTo != "user-9" {
		t.Fatalf("expected re-resolved result to reflect assignment: %+v", fresh)
	}

	cancel()
	waitClosed(t, updates)
}

func TestKeyValidator_WatchBadFormatClosesImmediately(t *testing.T) {
	svc, _, _, _ := newValidatorFixture()

	updates, err := svc.WatchStaffKey(context.Background(), "nonsense")
	if err != nil {
		t.Fatalf("WatchStaffKey returned error: %v", err)
	}

	initial := receiveValidation(t, updates)
	if initial.IsProperFormat {
		t.Fatalf("expected format-mismatch result, got %+v", initial)
	}
	waitClosed(t, updates)
}

func receiveValidation(t *testing.T, ch <-chan ports.KeyValidation) ports.KeyValidation {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed before a result arrived")
		}
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a validation result")
		return ports.KeyValidation{}
	}
}

func waitClosed(t *testing.T, ch <-chan ports.KeyValidation) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for the channel to close")
		}
	}
}
