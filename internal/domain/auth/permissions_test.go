package auth

import (
	"strings"
	"testing"
)

func TestRoleCapabilitiesSubset(t *testing.T) {
	if err := ValidateRoleCapabilities(RoleCapabilities); err != nil {
		t.Fatalf("role grants invalid: %v", err)
	}
}

func TestValidateRoleCapabilitiesRejectsBadGrants(t *testing.T) {
	cases := []struct {
		name   string
		grants map[Role][]Capability
		want   string
	}{
		{"unknown capability", map[Role][]Capability{RoleManager: {CapCatalogRead, "payroll.run"}}, "unknown capability payroll.run"},
		{"empty role", map[Role][]Capability{RoleEmployee: nil}, "has no capabilities"},
		{"unknown role", map[Role][]Capability{"owner": {CapAuditRead}}, `unknown role "owner"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateRoleCapabilities(tc.grants)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestDefaultCapabilitiesUnique(t *testing.T) {
	seen := map[Capability]struct{}{}
	for _, c := range DefaultCapabilities {
		if _, ok := seen[c]; ok {
			t.Fatalf("duplicate capability %s", c)
		}
		seen[c] = struct{}{}
	}
}

func TestAuthorize(t *testing.T) {
	cases := []struct {
		name    string
		actor   Actor
		cap     Capability
		allowed bool
	}{
		{"hr reopens", Actor{UserID: "u1", Role: RoleHR, CompanyID: "c1"}, CapEvaluationReopen, true},
		{"manager cannot reopen", Actor{UserID: "u2", Role: RoleManager, CompanyID: "c1"}, CapEvaluationReopen, false},
		{"manager rates", Actor{UserID: "u2", Role: RoleManager, CompanyID: "c1"}, CapEvaluationRate, true},
		{"employee acknowledges", Actor{UserID: "u3", Role: RoleEmployee, CompanyID: "c1"}, CapEvaluationAcknowledge, true},
		{"employee cannot rate", Actor{UserID: "u3", Role: RoleEmployee, CompanyID: "c1"}, CapEvaluationRate, false},
		{"missing company", Actor{UserID: "u1", Role: RoleHR}, CapEvaluationView, false},
		{"unknown role", Actor{UserID: "u1", Role: "admin", CompanyID: "c1"}, CapEvaluationView, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Authorize(tc.actor, tc.cap)
			if tc.allowed && err != nil {
				t.Fatalf("expected allowed, got %v", err)
			}
			if !tc.allowed && err != ErrForbidden {
				t.Fatalf("expected ErrForbidden, got %v", err)
			}
		})
	}
}

func TestParseRoleNormalizes(t *testing.T) {
	role, ok := ParseRole("  Manager ")
	if !ok || role != RoleManager {
		t.Fatalf("expected manager, got %q %v", role, ok)
	}
	if _, ok := ParseRole("owner"); ok {
		t.Fatal("expected owner to be rejected")
	}
}
