package domain

import "testing"

func TestClassifyStaffKey(t *testing.T) {
	cases := []struct {
		candidate string
		want      KeyFormat
	}{
		{"CEO001", FormatCEO},
		{"CEO999", FormatCEO},
		{"AD1234", FormatAdmin},
		{"AD0007", FormatAdmin},
		{"EN0042", FormatEnroller},
		{"EN9999", FormatEnroller},
		// wrong widths
		{"CEO1234", FormatUnrecognized},
		{"CEO01", FormatUnrecognized},
		{"AD12", FormatUnrecognized},
		{"AD12345", FormatUnrecognized},
		{"EN123", FormatUnrecognized},
		// case sensitive
		{"ceo001", FormatUnrecognized},
		{"ad1234", FormatUnrecognized},
		// other namespaces
		{"1234", FormatUnrecognized},
		{"", FormatUnrecognized},
		{"AD12X4", FormatUnrecognized},
		{" AD1234", FormatUnrecognized},
	}

	for _, tc := range cases {
		if got := ClassifyStaffKey(tc.candidate); got != tc.want {
			t.Errorf("ClassifyStaffKey(%q) = %s, want %s", tc.candidate, got, tc.want)
		}
	}
}

func TestKeyFormatRole(t *testing.T) {
	if got := FormatCEO.Role(); got != RoleCEO {
		t.Errorf("FormatCEO.Role() = %q, want %q", got, RoleCEO)
	}
	if got := FormatAdmin.Role(); got != RoleAdmin {
		t.Errorf("FormatAdmin.Role() = %q, want %q", got, RoleAdmin)
	}
	if got := FormatEnroller.Role(); got != RoleEnroller {
		t.Errorf("FormatEnroller.Role() = %q, want %q", got, RoleEnroller)
	}
	if got := FormatUnrecognized.Role(); got != "" {
		t.Errorf("FormatUnrecognized.Role() = %q, want empty", got)
	}
}

func TestIsReferralCodeFormat(t *testing.T) {
	valid := []string{"1234", "0000", "9999"}
	for _, c := range valid {
		if !IsReferralCodeFormat(c) {
			t.Errorf("IsReferralCodeFormat(%q) = false, want true", c)
		}
	}

	invalid := []string{"", "123", "12345", "12a4", "AD1234", " 1234"}
	for _, c := range invalid {
		if IsReferralCodeFormat(c) {
			t.Errorf("IsReferralCodeFormat(%q) = true, want false", c)
		}
	}
}

func TestStaffKeyAssignable(t *testing.T) {
	key := StaffKey{Code: "AD1234", Role: RoleAdmin, Status: StaffKeyActive}
	if !key.Assignable() {
		t.Fatalf("active unassigned key should be assignable")
	}

	key.AssignedTo = "user-1"
	if key.Assignable() {
		t.Fatalf("assigned key must not be assignable")
	}

	key.AssignedTo = ""
	key.Status = StaffKeyInactive
	if key.Assignable() {
		t.Fatalf("inactive key must not be assignable")
	}
}
