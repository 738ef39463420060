package review

import (
	"context"
	"fmt"

	"perfreview/internal/domain/auth"
)

// resolveItems returns the items the employee must be rated on: company items, then items for
// the employee's department, then individually assigned items. An item reachable through more
// than one path appears once, at its first position.
func resolveItems(ctx context.Context, tx Tx, employee User) ([]EvaluationItem, error) {
	companyItems, err := tx.ListItems(ctx, employee.CompanyID, ItemFilter{Level: ItemLevelCompany})
	if err != nil {
		return nil, fmt.Errorf("company items: %w", err)
	}

	var departmentItems []EvaluationItem
	if employee.Department != "" {
		departmentItems, err = tx.ListItems(ctx, employee.CompanyID, ItemFilter{Level: ItemLevelDepartment, AssignedTo: employee.Department})
		if err != nil {
			return nil, fmt.Errorf("department items: %w", err)
		}
	}

	assignments, err := tx.ListAssignments(ctx, employee.CompanyID, AssignmentFilter{EmployeeID: employee.ID})
	if err != nil {
		return nil, fmt.Errorf("assignments: %w", err)
	}
	var individualItems []EvaluationItem
	if len(assignments) > 0 {
		ids := make([]string, 0, len(assignments))
		for _, a := range assignments {
			ids = append(ids, a.EvaluationItemID)
		}
		individualItems, err = tx.ListItems(ctx, employee.CompanyID, ItemFilter{IDs: ids})
		if err != nil {
			return nil, fmt.Errorf("assigned items: %w", err)
		}
	}

	seen := map[string]bool{}
	var out []EvaluationItem
	for _, group := range [][]EvaluationItem{companyItems, departmentItems, individualItems} {
		for _, item := range group {
			if seen[item.ID] || !item.Rateable() {
				continue
			}
			seen[item.ID] = true
			out = append(out, item)
		}
	}
	return out, nil
}

func snapshotOf(item EvaluationItem) SnapshotItem {
	return SnapshotItem{ID: item.ID, Title: item.Title, Description: item.Description, Type: item.Type}
}

func snapshotAll(items []EvaluationItem) []SnapshotItem {
	out := make([]SnapshotItem, 0, len(items))
	for _, item := range items {
		out = append(out, snapshotOf(item))
	}
	return out
}

// ResolveItems exposes the resolved item set for an employee, e.g. to preview a new evaluation.
func (s *Service) ResolveItems(ctx context.Context, actor auth.Actor, employeeID string) ([]EvaluationItem, error) {
	if err := auth.Authorize(actor, auth.CapEvaluationView); err != nil {
		return nil, err
	}
	var out []EvaluationItem
	err := s.read(ctx, func(tx Tx) error {
		employee, err := tx.GetUser(ctx, actor.CompanyID, employeeID, false)
		if err != nil {
			return err
		}
		if !canView(actor, employee) {
			return ErrForbidden
		}
		out, err = resolveItems(ctx, tx, employee)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
