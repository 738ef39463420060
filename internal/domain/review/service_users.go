package review

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"perfreview/internal/domain/audit"
	"perfreview/internal/domain/auth"
)

type UserInput struct {
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Username   string  `json:"username"`
	Role       string  `json:"role"`
	Department string  `json:"department"`
	Position   string  `json:"position"`
	ManagerID  *string `json:"managerId"`
}

type UserPatch struct {
	Name       *string `json:"name"`
	Email      *string `json:"email"`
	Username   *string `json:"username"`
	Role       *string `json:"role"`
	Department *string `json:"department"`
	Position   *string `json:"position"`
	ManagerID  *string `json:"managerId"`
	// ClearManager detaches the user from their manager; ManagerID is ignored when set.
	ClearManager bool `json:"clearManager"`
}

// ForceDeleteResult counts what a force delete removed or detached.
type ForceDeleteResult struct {
	UserID               string `json:"userId"`
	EvaluationsDeleted   int    `json:"evaluationsDeleted"`
	AssignmentsDeleted   int    `json:"assignmentsDeleted"`
	ReportsDetached      int    `json:"reportsDetached"`
	EvaluationsUnmanaged int    `json:"evaluationsUnmanaged"`
}

func validateEmail(v *validator, email string) {
	email = strings.TrimSpace(email)
	if email == "" {
		v.add("email", "is required")
		return
	}
	if !strings.Contains(email, "@") {
		v.add("email", "is invalid")
	}
}

func (s *Service) CreateUser(ctx context.Context, actor auth.Actor, in UserInput) (User, error) {
	if err := auth.Authorize(actor, auth.CapUsersManage); err != nil {
		return User{}, err
	}
	v := validator{}
	v.required("name", in.Name)
	validateEmail(&v, in.Email)
	if _, ok := auth.ParseRole(in.Role); !ok {
		v.add("role", "must be one of hr, manager, employee")
	}
	if err := v.err(); err != nil {
		return User{}, err
	}

	var created User
	err := s.withAudit(ctx, actor, func(tx Tx, record recordFunc) error {
		if in.ManagerID != nil && *in.ManagerID != "" {
			if err := checkManager(ctx, tx, actor.CompanyID, "", *in.ManagerID); err != nil {
				return err
			}
		} else {
			in.ManagerID = nil
		}
		role, _ := auth.ParseRole(in.Role)
		now := s.timestamp()
		u := User{
			ID:         s.newID(),
			CompanyID:  actor.CompanyID,
			Name:       strings.TrimSpace(in.Name),
			Email:      strings.TrimSpace(in.Email),
			Username:   in.Username,
			Role:       string(role),
			Department: strings.TrimSpace(in.Department),
			Position:   in.Position,
			ManagerID:  in.ManagerID,
			Active:     true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.InsertUser(ctx, u); err != nil {
			return err
		}
		created = u
		return record(audit.ActionCreate, audit.EntityUser, u.ID, nil, u, "")
	})
	if err != nil {
		return User{}, err
	}
	return created, nil
}

// checkManager rejects unknown, archived and self-referencing managers.
func checkManager(ctx context.Context, tx Tx, companyID, userID, managerID string) error {
	if managerID == userID {
		return &ValidationError{Fields: []FieldIssue{{Field: "managerId", Reason: "user cannot manage themselves"}}}
	}
	manager, err := tx.GetUser(ctx, companyID, managerID, true)
	if errors.Is(err, ErrNotFound) {
		return &ValidationError{Fields: []FieldIssue{{Field: "managerId", Reason: "manager not found"}}}
	}
	if err != nil {
		return err
	}
	if !manager.Active {
		return &ValidationError{Fields: []FieldIssue{{Field: "managerId", Reason: "manager is archived"}}}
	}
	return nil
}

func (s *Service) UpdateUser(ctx context.Context, actor auth.Actor, id string, patch UserPatch) (User, error) {
	if err := auth.Authorize(actor, auth.CapUsersManage); err != nil {
		return User{}, err
	}
	v := validator{}
	if patch.Name != nil {
		v.required("name", *patch.Name)
	}
	if patch.Email != nil {
		validateEmail(&v, *patch.Email)
	}
	if patch.Role != nil {
		if _, ok := auth.ParseRole(*patch.Role); !ok {
			v.add("role", "must be one of hr, manager, employee")
		}
	}
	if err := v.err(); err != nil {
		return User{}, err
	}

	var out User
	err := s.withAudit(ctx, actor, func(tx Tx, record recordFunc) error {
		u, err := tx.GetUser(ctx, actor.CompanyID, id, true)
		if err != nil {
			return err
		}
		before := u
		if patch.Name != nil {
			u.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Email != nil {
			u.Email = strings.TrimSpace(*patch.Email)
		}
		if patch.Username != nil {
			u.Username = *patch.Username
		}
		if patch.Role != nil {
			role, _ := auth.ParseRole(*patch.Role)
			u.Role = string(role)
		}
		if patch.Department != nil {
			u.Department = strings.TrimSpace(*patch.Department)
		}
		if patch.Position != nil {
			u.Position = *patch.Position
		}
		switch {
		case patch.ClearManager:
			u.ManagerID = nil
		case patch.ManagerID != nil && *patch.ManagerID != "":
			if err := checkManager(ctx, tx, actor.CompanyID, u.ID, *patch.ManagerID); err != nil {
				return err
			}
			u.ManagerID = strPtr(*patch.ManagerID)
		}
		u.UpdatedAt = s.timestamp()
		if err := tx.UpdateUser(ctx, u); err != nil {
			return err
		}
		out = u
		return record(audit.ActionUpdate, audit.EntityUser, u.ID, before, u, "")
	})
	if err != nil {
		return User{}, err
	}
	return out, nil
}

func (s *Service) GetUser(ctx context.Context, actor auth.Actor, id string) (User, error) {
	if id != actor.UserID {
		if err := auth.Authorize(actor, auth.CapUsersRead); err != nil {
			return User{}, err
		}
	}
	var out User
	err := s.read(ctx, func(tx Tx) error {
		u, err := tx.GetUser(ctx, actor.CompanyID, id, false)
		if err != nil {
			return err
		}
		if !canView(actor, u) {
			return ErrForbidden
		}
		out = u
		return nil
	})
	return out, err
}

// ListUsers returns the company directory for HR and the caller's direct reports for managers.
func (s *Service) ListUsers(ctx context.Context, actor auth.Actor, filter UserFilter) ([]User, error) {
	if err := auth.Authorize(actor, auth.CapUsersRead); err != nil {
		return nil, err
	}
	if actor.Role != auth.RoleHR {
		filter.ManagerID = actor.UserID
	}
	var out []User
	err := s.read(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ListUsers(ctx, actor.CompanyID, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []User{}
	}
	return out, nil
}

func (s *Service) DirectReports(ctx context.Context, actor auth.Actor, managerID string) ([]User, error) {
	if actor.Role != auth.RoleHR && managerID != actor.UserID {
		return nil, ErrForbidden
	}
	return s.ListUsers(ctx, actor, UserFilter{ManagerID: managerID})
}

// ArchiveUser soft-deletes a user and freezes the manager, department, position and company
// they had at that moment.
func (s *Service) ArchiveUser(ctx context.Context, actor auth.Actor, id, reason string) (User, error) {
	if err := auth.Authorize(actor, auth.CapUsersManage); err != nil {
		return User{}, err
	}
	v := validator{}
	v.required("reason", reason)
	if id == actor.UserID {
		v.add("id", "cannot archive yourself")
	}
	if err := v.err(); err != nil {
		return User{}, err
	}

	var out User
	err := s.withAudit(ctx, actor, func(tx Tx, record recordFunc) error {
		u, err := tx.GetUser(ctx, actor.CompanyID, id, true)
		if err != nil {
			return err
		}
		if !u.Active {
			return ErrAlreadyArchived
		}
		reports, err := tx.CountActiveReports(ctx, actor.CompanyID, u.ID)
		if err != nil {
			return err
		}
		if reports > 0 {
			return &DependencyBlockedError{Operation: "archive user", Dependents: Dependents{DirectReports: reports}}
		}

		company, err := tx.GetCompany(ctx, actor.CompanyID)
		if err != nil {
			return err
		}
		managerName, managerEmail := "", ""
		if u.ManagerID != nil {
			manager, err := tx.GetUser(ctx, actor.CompanyID, *u.ManagerID, false)
			switch {
			case err == nil:
				managerName, managerEmail = manager.Name, manager.Email
			case !errors.Is(err, ErrNotFound):
				return err
			}
		}

		before := u
		now := s.timestamp()
		u.Active = false
		u.ArchivedAt = &now
		u.ArchivedReason = strPtr(reason)
		u.ArchivedManagerName = strPtr(managerName)
		u.ArchivedManagerEmail = strPtr(managerEmail)
		u.ArchivedDepartment = strPtr(u.Department)
		u.ArchivedPosition = strPtr(u.Position)
		u.ArchivedCompanyName = strPtr(company.Name)
		u.UpdatedAt = now
		if err := tx.UpdateUser(ctx, u); err != nil {
			return err
		}
		out = u
		return record(audit.ActionArchive, audit.EntityUser, u.ID, before, u, reason)
	})
	if err != nil {
		return User{}, err
	}
	return out, nil
}

// UnarchiveUser clears the snapshot. Live managerId and department were never touched by
// archiving, so nothing is re-validated.
func (s *Service) UnarchiveUser(ctx context.Context, actor auth.Actor, id string) (User, error) {
	if err := auth.Authorize(actor, auth.CapUsersManage); err != nil {
		return User{}, err
	}
	var out User
	err := s.withAudit(ctx, actor, func(tx Tx, record recordFunc) error {
		u, err := tx.GetUser(ctx, actor.CompanyID, id, true)
		if err != nil {
			return err
		}
		if u.Active {
			return ErrNotArchived
		}
		before := u
		u.Active = true
		u.ArchivedAt = nil
		u.ArchivedReason = nil
		u.ArchivedManagerName = nil
		u.ArchivedManagerEmail = nil
		u.ArchivedDepartment = nil
		u.ArchivedPosition = nil
		u.ArchivedCompanyName = nil
		u.UpdatedAt = s.timestamp()
		if err := tx.UpdateUser(ctx, u); err != nil {
			return err
		}
		out = u
		return record(audit.ActionUnarchive, audit.EntityUser, u.ID, before, u, "")
	})
	if err != nil {
		return User{}, err
	}
	return out, nil
}

// DeleteUser hard-deletes a user with no evaluations, assignments or direct reports.
func (s *Service) DeleteUser(ctx context.Context, actor auth.Actor, id string) error {
	if err := auth.Authorize(actor, auth.CapUsersManage); err != nil {
		return err
	}
	return s.withAudit(ctx, actor, func(tx Tx, record recordFunc) error {
		u, err := tx.GetUser(ctx, actor.CompanyID, id, true)
		if err != nil {
			return err
		}
		deps, err := tx.CountDependents(ctx, actor.CompanyID, id)
		if err != nil {
			return err
		}
		if deps.Any() {
			return &DependencyBlockedError{Operation: "delete user", Dependents: deps}
		}
		if err := tx.DeleteUser(ctx, actor.CompanyID, id); err != nil {
			return err
		}
		return record(audit.ActionDelete, audit.EntityUser, id, u, nil, "")
	})
}

// ForceDeleteUser deletes a user together with their own evaluations and assignments. Reports
// and evaluations they managed are detached rather than deleted. This destroys evaluation
// history, so a reason is mandatory.
func (s *Service) ForceDeleteUser(ctx context.Context, actor auth.Actor, id, reason string) (ForceDeleteResult, error) {
	if err := auth.Authorize(actor, auth.CapUsersForceDelete); err != nil {
		return ForceDeleteResult{}, err
	}
	v := validator{}
	v.required("reason", reason)
	if id == actor.UserID {
		v.add("id", "cannot delete yourself")
	}
	if err := v.err(); err != nil {
		return ForceDeleteResult{}, err
	}

	result := ForceDeleteResult{UserID: id}
	err := s.withAudit(ctx, actor, func(tx Tx, record recordFunc) error {
		u, err := tx.GetUser(ctx, actor.CompanyID, id, true)
		if err != nil {
			return err
		}
		if result.EvaluationsDeleted, err = tx.DeleteEmployeeEvaluations(ctx, actor.CompanyID, id); err != nil {
			return err
		}
		if result.AssignmentsDeleted, err = tx.DeleteAssignments(ctx, actor.CompanyID, AssignmentFilter{EmployeeID: id}); err != nil {
			return err
		}
		if result.ReportsDetached, err = tx.DetachReports(ctx, actor.CompanyID, id); err != nil {
			return err
		}
		if result.EvaluationsUnmanaged, err = tx.ClearEvaluationManager(ctx, actor.CompanyID, id); err != nil {
			return err
		}
		if err := tx.DeleteUser(ctx, actor.CompanyID, id); err != nil {
			return err
		}
		return record(audit.ActionDelete, audit.EntityUser, id, u, result, reason)
	})
	if err != nil {
		return ForceDeleteResult{}, err
	}
	s.log.Warn("user force deleted",
		zap.String("user_id", id),
		zap.String("actor_id", actor.UserID),
		zap.Int("evaluations_deleted", result.EvaluationsDeleted),
		zap.Int("reports_detached", result.ReportsDetached),
	)
	return result, nil
}

// BulkArchiveUsers archives each user in its own transaction and reports per-row outcomes in
// input order.
func (s *Service) BulkArchiveUsers(ctx context.Context, actor auth.Actor, ids []string, reason string) ([]BulkOutcome, error) {
	if err := auth.Authorize(actor, auth.CapUsersManage); err != nil {
		return nil, err
	}
	v := validator{}
	v.required("reason", reason)
	if len(ids) == 0 {
		v.add("ids", "is required")
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	outcomes := make([]BulkOutcome, len(ids))
	var g errgroup.Group
	g.SetLimit(s.cascadeLimit)
	for i, id := range ids {
		g.Go(func() error {
			_, err := s.ArchiveUser(ctx, actor, id, reason)
			outcome := BulkOutcome{ID: id, Success: err == nil, Message: "archived"}
			if err != nil {
				outcome.Message = err.Error()
			}
			outcomes[i] = outcome
			return nil
		})
	}
	_ = g.Wait()
	return outcomes, nil
}
