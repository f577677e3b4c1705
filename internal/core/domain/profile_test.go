package domain

import (
	"errors"
	"testing"
)

func TestProfileValidate(t *testing.T) {
	cases := []struct {
		name    string
		profile Profile
		wantErr bool
	}{
		{"customer with referral", Profile{Role: RoleCustomer, ReferredBy: "1234"}, false},
		{"customer without referral", Profile{Role: RoleCustomer}, false},
		{"admin with staff key", Profile{Role: RoleAdmin, StaffKey: "AD1234"}, false},
		{"ceo with staff key", Profile{Role: RoleCEO, StaffKey: "CEO001"}, false},
		{"staff with referral", Profile{Role: RoleEnroller, StaffKey: "EN0001", ReferredBy: "1234"}, true},
		{"customer with staff key", Profile{Role: RoleCustomer, StaffKey: "AD1234"}, true},
		{"unknown role", Profile{Role: "superuser"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.profile.Validate()
			if tc.wantErr && !errors.Is(err, ErrProfileInvalid) {
				t.Fatalf("expected ErrProfileInvalid, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
