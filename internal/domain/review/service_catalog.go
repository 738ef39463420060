package review

import (
	"context"
	"errors"
	"strings"
	"time"

	"perfreview/internal/domain/audit"
	"perfreview/internal/domain/auth"
)

type ItemInput struct {
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	Type               string     `json:"type"`
	Level              string     `json:"level"`
	AssignedTo         *string    `json:"assignedTo"`
	SortOrder          int        `json:"sortOrder"`
	EvaluationDeadline *time.Time `json:"evaluationDeadline"`
}

type ItemPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Type        *string `json:"type"`
	SortOrder   *int    `json:"sortOrder"`
}

func (s *Service) CreateItem(ctx context.Context, actor auth.Actor, in ItemInput) (EvaluationItem, CascadeReport, error) {
	capability := auth.CapCatalogTeam
	if in.Level == ItemLevelCompany {
		capability = auth.CapCatalogCompany
	}
	if err := auth.Authorize(actor, capability); err != nil {
		return EvaluationItem{}, CascadeReport{}, err
	}

	v := validator{}
	v.required("title", in.Title)
	v.oneOf("type", in.Type, ItemTypes)
	v.oneOf("level", in.Level, ItemLevels)
	if in.Level == ItemLevelCompany && in.AssignedTo != nil {
		v.add("assignedTo", "must be empty for company items")
	}
	if in.Level == ItemLevelDepartment && (in.AssignedTo == nil || strings.TrimSpace(*in.AssignedTo) == "") {
		v.add("assignedTo", "department is required")
	}
	if err := v.err(); err != nil {
		return EvaluationItem{}, CascadeReport{}, err
	}

	var created EvaluationItem
	err := s.withAudit(ctx, actor, func(tx Tx, record recordFunc) error {
		assignedTo, err := s.itemScope(ctx, tx, actor, in.Level, in.AssignedTo)
		if err != nil {
			return err
		}
		now := s.timestamp()
		item := EvaluationItem{
			ID:                 s.newID(),
			CompanyID:          actor.CompanyID,
			Title:              strings.TrimSpace(in.Title),
			Description:        in.Description,
			Type:               in.Type,
			Level:              in.Level,
			AssignedTo:         assignedTo,
			SortOrder:          in.SortOrder,
			CreatedBy:          actor.UserID,
			Active:             true,
			EvaluationDeadline: in.EvaluationDeadline,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if in.EvaluationDeadline != nil {
			item.DeadlineSetBy = strPtr(actor.UserID)
		}
		if err := tx.InsertItem(ctx, item); err != nil {
			return err
		}
		created = item
		return record(audit.ActionCreate, audit.EntityEvaluationItem, item.ID, nil, item, "")
	})
	if err != nil {
		return EvaluationItem{}, CascadeReport{}, err
	}

	var report CascadeReport
	switch created.Level {
	case ItemLevelCompany:
		report = s.runCascade(ctx, actor, cascadeJob{mode: cascadeAppend, item: created, reason: ReasonCompanyItemAdded})
	case ItemLevelDepartment:
		report = s.runCascade(ctx, actor, cascadeJob{mode: cascadeAppend, item: created, reason: ReasonDepartmentItemAdded})
	}
	return created, report, nil
}

// itemScope validates assignedTo for the item level. Managers may only target their own
// department or themselves.
func (s *Service) itemScope(ctx context.Context, tx Tx, actor auth.Actor, level string, assignedTo *string) (*string, error) {
	switch level {
	case ItemLevelCompany:
		return nil, nil
	case ItemLevelDepartment:
		department := strings.TrimSpace(*assignedTo)
		if actor.Role == auth.RoleHR {
			return &department, nil
		}
		me, err := tx.GetUser(ctx, actor.CompanyID, actor.UserID, false)
		if err != nil {
			return nil, err
		}
		if me.Department != department {
			return nil, ErrForbidden
		}
		return &department, nil
	default:
		if assignedTo == nil || *assignedTo == "" {
			if actor.Role == auth.RoleHR {
				return nil, &ValidationError{Fields: []FieldIssue{{Field: "assignedTo", Reason: "manager is required"}}}
			}
			return strPtr(actor.UserID), nil
		}
		if actor.Role != auth.RoleHR && *assignedTo != actor.UserID {
			return nil, ErrForbidden
		}
		manager, err := tx.GetUser(ctx, actor.CompanyID, *assignedTo, false)
		if errors.Is(err, ErrNotFound) {
			return nil, &ValidationError{Fields: []FieldIssue{{Field: "assignedTo", Reason: "manager not found"}}}
		}
		if err != nil {
			return nil, err
		}
		return strPtr(manager.ID), nil
	}
}

// authorizeItem checks the caller may change an existing item: HR any item, managers their
// department's items and their own manager-level items.
func authorizeItem(ctx context.Context, tx Tx, actor auth.Actor, item EvaluationItem) error {
	if actor.Role == auth.RoleHR {
		return auth.Authorize(actor, auth.CapCatalogCompany)
	}
	if err := auth.Authorize(actor, auth.CapCatalogTeam); err != nil {
		return err
	}
	switch item.Level {
	case ItemLevelManager:
		if item.AssignedTo != nil && *item.AssignedTo == actor.UserID {
			return nil
		}
	case ItemLevelDepartment:
		me, err := tx.GetUser(ctx, actor.CompanyID, actor.UserID, false)
		if err != nil {
			return err
		}
		if item.AssignedTo != nil && *item.AssignedTo == me.Department {
			return nil
		}
	}
	return ErrForbidden
}

// mutateItem loads an item, authorizes the caller and persists whatever fn changes. fn
// returning an empty action leaves the item untouched and writes no audit row.
func (s *Service) mutateItem(ctx context.Context, actor auth.Actor, id, reason string, fn func(item *EvaluationItem) (audit.Action, error)) (EvaluationItem, bool, error) {
	var out EvaluationItem
	changed := false
	err := s.withAudit(ctx, actor, func(tx Tx, record recordFunc) error {
		item, err := tx.GetItem(ctx, actor.CompanyID, id, true)
		if err != nil {
			return err
		}
		if err := authorizeItem(ctx, tx, actor, item); err != nil {
			return err
		}
		before := item
		action, err := fn(&item)
		if err != nil {
			return err
		}
		out = item
		if action == "" {
			return nil
		}
		item.UpdatedAt = s.timestamp()
		if err := tx.UpdateItem(ctx, item); err != nil {
			return err
		}
		out = item
		changed = true
		return record(action, audit.EntityEvaluationItem, item.ID, before, item, reason)
	})
	if err != nil {
		return EvaluationItem{}, false, err
	}
	return out, changed, nil
}

func (s *Service) UpdateItem(ctx context.Context, actor auth.Actor, id string, patch ItemPatch) (EvaluationItem, error) {
	v := validator{}
	if patch.Title != nil {
		v.required("title", *patch.Title)
	}
	if patch.Type != nil {
		v.oneOf("type", *patch.Type, ItemTypes)
	}
	if err := v.err(); err != nil {
		return EvaluationItem{}, err
	}
	item, _, err := s.mutateItem(ctx, actor, id, "", func(item *EvaluationItem) (audit.Action, error) {
		if item.ArchivedAt != nil {
			return "", invalidTransition("update", "archived")
		}
		if patch.Title != nil {
			item.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Description != nil {
			item.Description = *patch.Description
		}
		if patch.Type != nil {
			item.Type = *patch.Type
		}
		if patch.SortOrder != nil {
			item.SortOrder = *patch.SortOrder
		}
		return audit.ActionUpdate, nil
	})
	return item, err
}

// SetItemActive toggles an item. Activation appends it to affected current-cycle evaluations,
// reopening those past draft; deactivation drops it from current-cycle drafts only.
func (s *Service) SetItemActive(ctx context.Context, actor auth.Actor, id string, active bool) (EvaluationItem, CascadeReport, error) {
	item, changed, err := s.mutateItem(ctx, actor, id, "", func(item *EvaluationItem) (audit.Action, error) {
		if item.ArchivedAt != nil {
			return "", invalidTransition("toggle", "archived")
		}
		if item.Active == active {
			return "", nil
		}
		item.Active = active
		if active {
			return audit.ActionActivate, nil
		}
		return audit.ActionDeactivate, nil
	})
	if err != nil || !changed {
		return item, CascadeReport{}, err
	}
	if active {
		return item, s.runCascade(ctx, actor, cascadeJob{mode: cascadeAppend, item: item, reason: ReasonItemReactivated}), nil
	}
	return item, s.runCascade(ctx, actor, cascadeJob{mode: cascadePrune, item: item, reason: ReasonItemDeactivated}), nil
}

// SetItemDeadline sets or clears the evaluation deadline.
func (s *Service) SetItemDeadline(ctx context.Context, actor auth.Actor, id string, deadline *time.Time) (EvaluationItem, error) {
	item, _, err := s.mutateItem(ctx, actor, id, "", func(item *EvaluationItem) (audit.Action, error) {
		if item.ArchivedAt != nil {
			return "", invalidTransition("set deadline on", "archived")
		}
		item.EvaluationDeadline = deadline
		item.DeadlineSetBy = strPtr(actor.UserID)
		return audit.ActionUpdate, nil
	})
	return item, err
}

func (s *Service) ArchiveItem(ctx context.Context, actor auth.Actor, id, reason string) (EvaluationItem, CascadeReport, error) {
	v := validator{}
	v.required("reason", reason)
	if err := v.err(); err != nil {
		return EvaluationItem{}, CascadeReport{}, err
	}
	wasActive := false
	item, _, err := s.mutateItem(ctx, actor, id, reason, func(item *EvaluationItem) (audit.Action, error) {
		if item.ArchivedAt != nil {
			return "", ErrAlreadyArchived
		}
		wasActive = item.Active
		item.Active = false
		item.ArchivedAt = timePtr(s.timestamp())
		item.ArchivedBy = strPtr(actor.UserID)
		item.ArchivedReason = strPtr(reason)
		return audit.ActionArchive, nil
	})
	if err != nil {
		return EvaluationItem{}, CascadeReport{}, err
	}
	if !wasActive {
		return item, CascadeReport{}, nil
	}
	return item, s.runCascade(ctx, actor, cascadeJob{mode: cascadePrune, item: item, reason: ReasonItemArchived}), nil
}

// UnarchiveItem clears the archive fields. The item stays inactive until explicitly activated.
func (s *Service) UnarchiveItem(ctx context.Context, actor auth.Actor, id string) (EvaluationItem, error) {
	item, _, err := s.mutateItem(ctx, actor, id, "", func(item *EvaluationItem) (audit.Action, error) {
		if item.ArchivedAt == nil {
			return "", ErrNotArchived
		}
		item.ArchivedAt = nil
		item.ArchivedBy = nil
		item.ArchivedReason = nil
		item.Active = false
		return audit.ActionUnarchive, nil
	})
	return item, err
}

// DeleteItem removes an item and its assignments. Evaluations keep their snapshot copy.
func (s *Service) DeleteItem(ctx context.Context, actor auth.Actor, id string) error {
	return s.withAudit(ctx, actor, func(tx Tx, record recordFunc) error {
		item, err := tx.GetItem(ctx, actor.CompanyID, id, true)
		if err != nil {
			return err
		}
		if err := authorizeItem(ctx, tx, actor, item); err != nil {
			return err
		}
		if _, err := tx.DeleteAssignments(ctx, actor.CompanyID, AssignmentFilter{ItemID: id}); err != nil {
			return err
		}
		if err := tx.DeleteItem(ctx, actor.CompanyID, id); err != nil {
			return err
		}
		return record(audit.ActionDelete, audit.EntityEvaluationItem, id, item, nil, "")
	})
}

func (s *Service) GetItem(ctx context.Context, actor auth.Actor, id string) (EvaluationItem, error) {
	if err := auth.Authorize(actor, auth.CapCatalogRead); err != nil {
		return EvaluationItem{}, err
	}
	var out EvaluationItem
	err := s.read(ctx, func(tx Tx) error {
		var err error
		out, err = tx.GetItem(ctx, actor.CompanyID, id, false)
		return err
	})
	return out, err
}

func (s *Service) ListItems(ctx context.Context, actor auth.Actor, filter ItemFilter) ([]EvaluationItem, error) {
	if err := auth.Authorize(actor, auth.CapCatalogRead); err != nil {
		return nil, err
	}
	var out []EvaluationItem
	err := s.read(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ListItems(ctx, actor.CompanyID, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []EvaluationItem{}
	}
	return out, nil
}

// AssignItem adds individual assignments; pairs that already exist are skipped. Newly assigned
// employees get the item in their current-cycle evaluation.
func (s *Service) AssignItem(ctx context.Context, actor auth.Actor, itemID string, employeeIDs []string) ([]Assignment, CascadeReport, error) {
	if err := auth.Authorize(actor, auth.CapCatalogAssign); err != nil {
		return nil, CascadeReport{}, err
	}
	if len(employeeIDs) == 0 {
		return nil, CascadeReport{}, &ValidationError{Fields: []FieldIssue{{Field: "employeeIds", Reason: "is required"}}}
	}

	var item EvaluationItem
	created := []Assignment{}
	err := s.withAudit(ctx, actor, func(tx Tx, record recordFunc) error {
		var err error
		item, err = tx.GetItem(ctx, actor.CompanyID, itemID, true)
		if err != nil {
			return err
		}
		if item.ArchivedAt != nil {
			return invalidTransition("assign", "archived")
		}
		for _, employeeID := range employeeIDs {
			employee, err := tx.GetUser(ctx, actor.CompanyID, employeeID, false)
			if err != nil {
				return err
			}
			if !canRate(actor, employee) {
				return ErrForbidden
			}
			a := Assignment{
				EvaluationItemID: item.ID,
				EmployeeID:       employee.ID,
				AssignedBy:       actor.UserID,
				CompanyID:        actor.CompanyID,
				CreatedAt:        s.timestamp(),
			}
			inserted, err := tx.InsertAssignment(ctx, a)
			if err != nil {
				return err
			}
			if !inserted {
				continue
			}
			created = append(created, a)
			if err := record(audit.ActionAssign, audit.EntityAssignment, assignmentID(a), nil, a, ""); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, CascadeReport{}, err
	}
	if len(created) == 0 || !item.Rateable() {
		return created, CascadeReport{}, nil
	}
	ids := make([]string, 0, len(created))
	for _, a := range created {
		ids = append(ids, a.EmployeeID)
	}
	return created, s.runCascade(ctx, actor, cascadeJob{mode: cascadeAppend, item: item, reason: ReasonItemAssigned, employeeIDs: ids}), nil
}

func (s *Service) UnassignItem(ctx context.Context, actor auth.Actor, itemID, employeeID string) error {
	if err := auth.Authorize(actor, auth.CapCatalogAssign); err != nil {
		return err
	}
	return s.withAudit(ctx, actor, func(tx Tx, record recordFunc) error {
		employee, err := tx.GetUser(ctx, actor.CompanyID, employeeID, false)
		if err != nil {
			return err
		}
		if !canRate(actor, employee) {
			return ErrForbidden
		}
		filter := AssignmentFilter{ItemID: itemID, EmployeeID: employeeID}
		existing, err := tx.ListAssignments(ctx, actor.CompanyID, filter)
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			return ErrNotFound
		}
		if _, err := tx.DeleteAssignments(ctx, actor.CompanyID, filter); err != nil {
			return err
		}
		return record(audit.ActionUnassign, audit.EntityAssignment, assignmentID(existing[0]), existing[0], nil, "")
	})
}

func (s *Service) ListAssignments(ctx context.Context, actor auth.Actor, filter AssignmentFilter) ([]Assignment, error) {
	if err := auth.Authorize(actor, auth.CapCatalogRead); err != nil {
		return nil, err
	}
	if actor.Role == auth.RoleEmployee {
		filter.EmployeeID = actor.UserID
	}
	var out []Assignment
	err := s.read(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ListAssignments(ctx, actor.CompanyID, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Assignment{}
	}
	return out, nil
}

func assignmentID(a Assignment) string {
	return a.EvaluationItemID + ":" + a.EmployeeID
}
