package auth

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

type Role string

const (
	RoleHR       Role = "hr"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

func ParseRole(value string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleHR:
		return RoleHR, true
	case RoleManager:
		return RoleManager, true
	case RoleEmployee:
		return RoleEmployee, true
	}
	return "", false
}

func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

type Capability string

const (
	CapEvaluationView        Capability = "evaluation.view"
	CapEvaluationRate        Capability = "evaluation.rate"
	CapEvaluationComplete    Capability = "evaluation.complete"
	CapEvaluationReopen      Capability = "evaluation.reopen"
	CapEvaluationAcknowledge Capability = "evaluation.acknowledge"
	CapCatalogRead           Capability = "catalog.read"
	CapCatalogCompany        Capability = "catalog.company"
	CapCatalogTeam           Capability = "catalog.team"
	CapCatalogAssign         Capability = "catalog.assign"
	CapUsersRead             Capability = "users.read"
	CapUsersManage           Capability = "users.manage"
	CapUsersForceDelete      Capability = "users.force_delete"
	CapCyclesRead            Capability = "cycles.read"
	CapCyclesManage          Capability = "cycles.manage"
	CapAuditRead             Capability = "audit.read"
)

// DefaultCapabilities is the full set of capabilities a role may be granted.
var DefaultCapabilities = []Capability{
	CapEvaluationView,
	CapEvaluationRate,
	CapEvaluationComplete,
	CapEvaluationReopen,
	CapEvaluationAcknowledge,
	CapCatalogRead,
	CapCatalogCompany,
	CapCatalogTeam,
	CapCatalogAssign,
	CapUsersRead,
	CapUsersManage,
	CapUsersForceDelete,
	CapCyclesRead,
	CapCyclesManage,
	CapAuditRead,
}

var RoleCapabilities = map[Role][]Capability{
	RoleEmployee: {
		CapEvaluationView,
		CapEvaluationAcknowledge,
		CapCatalogRead,
		CapCyclesRead,
	},
	RoleManager: {
		CapEvaluationView,
		CapEvaluationRate,
		CapCatalogRead,
		CapCatalogTeam,
		CapCatalogAssign,
		CapUsersRead,
		CapCyclesRead,
	},
	RoleHR: {
		CapEvaluationView,
		CapEvaluationRate,
		CapEvaluationComplete,
		CapEvaluationReopen,
		CapCatalogRead,
		CapCatalogCompany,
		CapCatalogTeam,
		CapCatalogAssign,
		CapUsersRead,
		CapUsersManage,
		CapUsersForceDelete,
		CapCyclesRead,
		CapCyclesManage,
		CapAuditRead,
	},
}

func init() {
	if err := ValidateRoleCapabilities(RoleCapabilities); err != nil {
		panic(err)
	}
}

// ValidateRoleCapabilities rejects unknown roles, roles without grants and grants outside
// DefaultCapabilities.
func ValidateRoleCapabilities(grants map[Role][]Capability) error {
	var errs []error
	for role, caps := range grants {
		if !role.Valid() {
			errs = append(errs, fmt.Errorf("unknown role %q", role))
			continue
		}
		if len(caps) == 0 {
			errs = append(errs, fmt.Errorf("role %s has no capabilities", role))
		}
		for _, c := range caps {
			if !slices.Contains(DefaultCapabilities, c) {
				errs = append(errs, fmt.Errorf("role %s has unknown capability %s", role, c))
			}
		}
	}
	return errors.Join(errs...)
}

var ErrForbidden = errors.New("forbidden")

// Actor is the session triple supplied by the auth provider for every call.
type Actor struct {
	UserID    string `json:"userId"`
	Role      Role   `json:"role"`
	CompanyID string `json:"companyId"`
	SessionID string `json:"sessionId,omitempty"`
}

// System actors are used for cascade operations triggered by catalog changes.
func (a Actor) System() bool {
	return a.UserID == ""
}

func (a Actor) Can(capability Capability) bool {
	for _, c := range RoleCapabilities[a.Role] {
		if c == capability {
			return true
		}
	}
	return false
}

// Authorize is the single access-control guard for domain operations.
func Authorize(actor Actor, capability Capability) error {
	if actor.CompanyID == "" || !actor.Role.Valid() {
		return ErrForbidden
	}
	if !actor.Can(capability) {
		return ErrForbidden
	}
	return nil
}
