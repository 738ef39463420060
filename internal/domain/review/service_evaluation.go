package review

import (
	"context"
	"errors"
	"strings"

	"perfreview/internal/domain/audit"
	"perfreview/internal/domain/auth"
)

type CreateDraftInput struct {
	EmployeeID string `json:"employeeId"`
	// CycleID defaults to the company's active cycle.
	CycleID    string `json:"cycleId"`
	PeriodType string `json:"periodType"`
	PeriodDate string `json:"periodDate"`
}

type ItemRating struct {
	ItemID  string  `json:"itemId"`
	Rating  *int    `json:"rating"`
	Comment *string `json:"comment"`
}

type DraftUpdate struct {
	Items           []ItemRating `json:"items"`
	OverallRating   *int         `json:"overallRating"`
	ManagerComments *string      `json:"managerComments"`
}

func (s *Service) CreateDraft(ctx context.Context, actor auth.Actor, in CreateDraftInput) (Evaluation, error) {
	if err := auth.Authorize(actor, auth.CapEvaluationRate); err != nil {
		return Evaluation{}, err
	}
	v := validator{}
	v.required("employeeId", in.EmployeeID)
	if in.PeriodType != "" {
		v.oneOf("periodType", in.PeriodType, PeriodTypes)
	}
	if err := v.err(); err != nil {
		return Evaluation{}, err
	}

	var created Evaluation
	err := s.withAudit(ctx, actor, func(tx Tx, record recordFunc) error {
		employee, err := tx.GetUser(ctx, actor.CompanyID, in.EmployeeID, false)
		if err != nil {
			return err
		}
		if !canRate(actor, employee) {
			return ErrForbidden
		}
		if !employee.Active {
			return &ValidationError{Fields: []FieldIssue{{Field: "employeeId", Reason: "employee is archived"}}}
		}

		var cycle PerformanceCycle
		if in.CycleID == "" {
			cycle, err = tx.ActiveCycle(ctx, actor.CompanyID)
			if errors.Is(err, ErrNotFound) {
				return &ValidationError{Fields: []FieldIssue{{Field: "cycleId", Reason: "no active cycle"}}}
			}
		} else {
			cycle, err = tx.GetCycle(ctx, actor.CompanyID, in.CycleID, false)
		}
		if err != nil {
			return err
		}
		if cycle.Status != CycleStatusActive {
			return invalidTransition("create evaluation in", cycle.Status+" cycle")
		}

		now := s.timestamp()
		e := Evaluation{
			ID:         s.newID(),
			CompanyID:  actor.CompanyID,
			EmployeeID: employee.ID,
			ManagerID:  employee.ManagerID,
			CycleID:    cycle.ID,
			PeriodType: in.PeriodType,
			PeriodDate: in.PeriodDate,
			Status:     EvaluationStatusDraft,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if actor.Role == auth.RoleManager {
			e.ManagerID = strPtr(actor.UserID)
		}
		if e.PeriodType == "" {
			e.PeriodType = PeriodTypeYearly
		}
		if e.PeriodDate == "" {
			e.PeriodDate = cycle.StartDate.Format("2006")
		}

		if _, err := tx.FindEvaluation(ctx, actor.CompanyID, e.Key()); err == nil {
			return ErrDuplicateEvaluation
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		items, err := resolveItems(ctx, tx, employee)
		if err != nil {
			return err
		}
		e.Items = snapshotAll(items)

		if err := tx.InsertEvaluation(ctx, e); err != nil {
			return err
		}
		created = e
		return record(audit.ActionCreate, audit.EntityEvaluation, e.ID, nil, e, "")
	})
	if err != nil {
		return Evaluation{}, err
	}
	return created, nil
}

// mutateEvaluation loads the evaluation under a row lock, checks the caller may act on the
// employee and hands both to fn. fn returns the audit action to record, or "" to skip the write.
func (s *Service) mutateEvaluation(ctx context.Context, actor auth.Actor, id, reason string,
	allowed func(actor auth.Actor, employee User) bool,
	fn func(tx Tx, e *Evaluation) (audit.Action, error),
) (Evaluation, error) {
	var out Evaluation
	err := s.withAudit(ctx, actor, func(tx Tx, record recordFunc) error {
		e, err := tx.GetEvaluation(ctx, actor.CompanyID, id, true)
		if err != nil {
			return err
		}
		employee, err := tx.GetUser(ctx, actor.CompanyID, e.EmployeeID, false)
		if err != nil {
			return err
		}
		if !allowed(actor, employee) {
			return ErrForbidden
		}

		before := cloneEvaluation(e)
		action, err := fn(tx, &e)
		if err != nil {
			return err
		}
		e.UpdatedAt = s.timestamp()
		if err := tx.UpdateEvaluation(ctx, e); err != nil {
			return err
		}
		out = e
		return record(action, audit.EntityEvaluation, e.ID, before, e, reason)
	})
	if err != nil {
		return Evaluation{}, err
	}
	return out, nil
}

func (s *Service) UpdateDraft(ctx context.Context, actor auth.Actor, id string, update DraftUpdate) (Evaluation, error) {
	if err := auth.Authorize(actor, auth.CapEvaluationRate); err != nil {
		return Evaluation{}, err
	}
	return s.mutateEvaluation(ctx, actor, id, "", canRate, func(_ Tx, e *Evaluation) (audit.Action, error) {
		if e.Status != EvaluationStatusDraft {
			return "", invalidTransition("update", e.Status)
		}
		if err := applyDraftUpdate(e, update); err != nil {
			return "", err
		}
		return audit.ActionUpdate, nil
	})
}

func applyDraftUpdate(e *Evaluation, update DraftUpdate) error {
	v := validator{}
	index := make(map[string]int, len(e.Items))
	for i, item := range e.Items {
		index[item.ID] = i
	}
	for _, r := range update.Items {
		field := "items." + r.ItemID
		if _, ok := index[r.ItemID]; !ok {
			v.add(field, "is not part of this evaluation")
			continue
		}
		v.rating(field+".rating", r.Rating)
	}
	v.rating("overallRating", update.OverallRating)
	if err := v.err(); err != nil {
		return err
	}

	for _, r := range update.Items {
		item := &e.Items[index[r.ItemID]]
		if r.Rating != nil {
			rating := *r.Rating
			item.Rating = &rating
		}
		if r.Comment != nil {
			item.Comment = *r.Comment
		}
	}
	if update.OverallRating != nil {
		rating := *update.OverallRating
		e.OverallRating = &rating
	}
	if update.ManagerComments != nil {
		e.ManagerComments = *update.ManagerComments
	}
	return nil
}

// checkComplete enforces that every snapshot item is rated and commented and the overall
// rating is set.
func checkComplete(e Evaluation) error {
	var missing []string
	for _, item := range e.Items {
		if item.Rating == nil || strings.TrimSpace(item.Comment) == "" {
			missing = append(missing, item.ID)
		}
	}
	if len(missing) == 0 && e.OverallRating != nil {
		return nil
	}
	return &IncompleteEvaluationError{MissingItemIDs: missing, MissingOverallRating: e.OverallRating == nil}
}

func (s *Service) Submit(ctx context.Context, actor auth.Actor, id string) (Evaluation, error) {
	if err := auth.Authorize(actor, auth.CapEvaluationRate); err != nil {
		return Evaluation{}, err
	}
	return s.mutateEvaluation(ctx, actor, id, "", canRate, func(_ Tx, e *Evaluation) (audit.Action, error) {
		if e.Status != EvaluationStatusDraft {
			return "", invalidTransition("submit", e.Status)
		}
		if err := checkComplete(*e); err != nil {
			return "", err
		}
		e.Status = EvaluationStatusSubmitted
		return audit.ActionSubmit, nil
	})
}

func (s *Service) Complete(ctx context.Context, actor auth.Actor, id string) (Evaluation, error) {
	if err := auth.Authorize(actor, auth.CapEvaluationComplete); err != nil {
		return Evaluation{}, err
	}
	return s.mutateEvaluation(ctx, actor, id, "", canRate, func(_ Tx, e *Evaluation) (audit.Action, error) {
		if e.Status != EvaluationStatusDraft && e.Status != EvaluationStatusSubmitted {
			return "", invalidTransition("complete", e.Status)
		}
		if err := checkComplete(*e); err != nil {
			return "", err
		}
		e.Status = EvaluationStatusCompleted
		e.CompletionCount++
		return audit.ActionComplete, nil
	})
}

// Acknowledge lets the evaluated employee accept a submitted evaluation, completing it.
func (s *Service) Acknowledge(ctx context.Context, actor auth.Actor, id string) (Evaluation, error) {
	if err := auth.Authorize(actor, auth.CapEvaluationAcknowledge); err != nil {
		return Evaluation{}, err
	}
	self := func(actor auth.Actor, employee User) bool { return employee.ID == actor.UserID }
	return s.mutateEvaluation(ctx, actor, id, ReasonAcknowledged, self, func(_ Tx, e *Evaluation) (audit.Action, error) {
		if e.Status != EvaluationStatusSubmitted {
			return "", invalidTransition("acknowledge", e.Status)
		}
		if err := checkComplete(*e); err != nil {
			return "", err
		}
		e.Status = EvaluationStatusCompleted
		e.CompletionCount++
		return audit.ActionComplete, nil
	})
}

func (s *Service) Reopen(ctx context.Context, actor auth.Actor, id, reason string) (Evaluation, error) {
	if err := auth.Authorize(actor, auth.CapEvaluationReopen); err != nil {
		return Evaluation{}, err
	}
	v := validator{}
	v.required("reason", reason)
	if err := v.err(); err != nil {
		return Evaluation{}, err
	}
	return s.mutateEvaluation(ctx, actor, id, reason, canRate, func(_ Tx, e *Evaluation) (audit.Action, error) {
		if e.Status != EvaluationStatusSubmitted && e.Status != EvaluationStatusCompleted {
			return "", invalidTransition("reopen", e.Status)
		}
		s.reopen(e, actor, reason)
		return audit.ActionReopen, nil
	})
}

// reopen moves a submitted or completed evaluation back to draft; ratings and completionCount
// are kept.
func (s *Service) reopen(e *Evaluation, actor auth.Actor, reason string) {
	now := s.timestamp()
	previous := e.Status
	e.PreviousStatus = &previous
	e.Status = EvaluationStatusDraft
	e.IsReopened = true
	e.ReopenedAt = &now
	e.ReopenedReason = strPtr(reason)
	e.ReopenedBy = nil
	if !actor.System() {
		e.ReopenedBy = strPtr(actor.UserID)
	}
}

func (s *Service) GetEvaluation(ctx context.Context, actor auth.Actor, id string) (Evaluation, error) {
	if err := auth.Authorize(actor, auth.CapEvaluationView); err != nil {
		return Evaluation{}, err
	}
	var out Evaluation
	err := s.read(ctx, func(tx Tx) error {
		e, err := tx.GetEvaluation(ctx, actor.CompanyID, id, false)
		if err != nil {
			return err
		}
		employee, err := tx.GetUser(ctx, actor.CompanyID, e.EmployeeID, false)
		if err != nil {
			return err
		}
		if !canView(actor, employee) {
			return ErrForbidden
		}
		out = e
		return nil
	})
	if err != nil {
		return Evaluation{}, err
	}
	return out, nil
}

// ListEvaluations narrows the filter to what the caller may see: employees their own, managers
// their own and their direct reports', HR the whole company.
func (s *Service) ListEvaluations(ctx context.Context, actor auth.Actor, filter EvaluationFilter) ([]Evaluation, error) {
	if err := auth.Authorize(actor, auth.CapEvaluationView); err != nil {
		return nil, err
	}
	var out []Evaluation
	err := s.read(ctx, func(tx Tx) error {
		switch actor.Role {
		case auth.RoleEmployee:
			if filter.EmployeeID != "" && filter.EmployeeID != actor.UserID {
				return ErrForbidden
			}
			filter.EmployeeID = actor.UserID
		case auth.RoleManager:
			reports, err := tx.ListUsers(ctx, actor.CompanyID, UserFilter{ManagerID: actor.UserID, IncludeArchived: true})
			if err != nil {
				return err
			}
			visible := []string{actor.UserID}
			for _, r := range reports {
				visible = append(visible, r.ID)
			}
			if filter.EmployeeID != "" && !containsString(visible, filter.EmployeeID) {
				return ErrForbidden
			}
			filter.EmployeeIDs = visible
		}
		var err error
		out, err = tx.ListEvaluations(ctx, actor.CompanyID, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Evaluation{}
	}
	return out, nil
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
