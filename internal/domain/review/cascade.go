package review

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"perfreview/internal/domain/audit"
	"perfreview/internal/domain/auth"
)

// CascadeReport lists the current-cycle evaluations touched by a catalog change. Each
// evaluation is updated in its own transaction, so Failed rows never undo the others.
type CascadeReport struct {
	Reason   string        `json:"reason"`
	Updated  []string      `json:"updated"`
	Reopened []string      `json:"reopened"`
	Failed   []BulkOutcome `json:"failed"`
}

func (r CascadeReport) Touched() int {
	return len(r.Updated) + len(r.Reopened)
}

type cascadeMode int

const (
	// cascadeAppend re-resolves each evaluation and appends missing items, reopening
	// evaluations that have left draft.
	cascadeAppend cascadeMode = iota
	// cascadePrune drops the item from draft snapshots.
	cascadePrune
)

type cascadeJob struct {
	mode   cascadeMode
	item   EvaluationItem
	reason string
	// employeeIDs restricts the cascade; nil derives the audience from the item's scope.
	employeeIDs []string
}

type cascadeOutcome int

const (
	outcomeNone cascadeOutcome = iota
	outcomeUpdated
	outcomeReopened
)

func (s *Service) runCascade(ctx context.Context, actor auth.Actor, job cascadeJob) CascadeReport {
	report := CascadeReport{Reason: job.reason, Updated: []string{}, Reopened: []string{}, Failed: []BulkOutcome{}}

	targets, err := s.cascadeTargets(ctx, actor.CompanyID, job)
	if err != nil {
		s.log.Error("cascade target lookup failed", zap.String("item_id", job.item.ID), zap.Error(err))
		report.Failed = append(report.Failed, BulkOutcome{ID: job.item.ID, Message: err.Error()})
		return report
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.cascadeLimit)
	for _, id := range targets {
		g.Go(func() error {
			outcome, err := s.cascadeOne(ctx, actor, id, job)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				s.log.Warn("cascade evaluation failed", zap.String("evaluation_id", id), zap.String("item_id", job.item.ID), zap.Error(err))
				report.Failed = append(report.Failed, BulkOutcome{ID: id, Message: err.Error()})
			case outcome == outcomeReopened:
				report.Reopened = append(report.Reopened, id)
			case outcome == outcomeUpdated:
				report.Updated = append(report.Updated, id)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(report.Updated)
	sort.Strings(report.Reopened)
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].ID < report.Failed[j].ID })
	if report.Touched() > 0 || len(report.Failed) > 0 {
		s.log.Info("catalog cascade finished",
			zap.String("item_id", job.item.ID),
			zap.String("reason", job.reason),
			zap.Int("updated", len(report.Updated)),
			zap.Int("reopened", len(report.Reopened)),
			zap.Int("failed", len(report.Failed)),
		)
	}
	return report
}

// cascadeTargets returns the ids of active-cycle evaluations the job may affect.
func (s *Service) cascadeTargets(ctx context.Context, companyID string, job cascadeJob) ([]string, error) {
	var targets []string
	err := s.read(ctx, func(tx Tx) error {
		cycle, err := tx.ActiveCycle(ctx, companyID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("active cycle: %w", err)
		}

		filter := EvaluationFilter{CycleID: cycle.ID}
		if job.mode == cascadePrune {
			filter.Status = EvaluationStatusDraft
		} else {
			employees, all, err := audienceOf(ctx, tx, companyID, job)
			if err != nil {
				return err
			}
			if !all {
				if len(employees) == 0 {
					return nil
				}
				filter.EmployeeIDs = employees
			}
		}

		evaluations, err := tx.ListEvaluations(ctx, companyID, filter)
		if err != nil {
			return fmt.Errorf("list evaluations: %w", err)
		}
		for _, e := range evaluations {
			if job.mode == cascadePrune && !e.HasItem(job.item.ID) {
				continue
			}
			if job.mode == cascadeAppend && e.HasItem(job.item.ID) {
				continue
			}
			targets = append(targets, e.ID)
		}
		return nil
	})
	return targets, err
}

// audienceOf returns the employees an item applies to; all is set for company-level items.
func audienceOf(ctx context.Context, tx Tx, companyID string, job cascadeJob) (ids []string, all bool, err error) {
	if job.employeeIDs != nil {
		return job.employeeIDs, false, nil
	}
	if job.item.Level == ItemLevelCompany {
		return nil, true, nil
	}
	if job.item.Level == ItemLevelDepartment && job.item.AssignedTo != nil {
		users, err := tx.ListUsers(ctx, companyID, UserFilter{Department: *job.item.AssignedTo, IncludeArchived: true})
		if err != nil {
			return nil, false, fmt.Errorf("department users: %w", err)
		}
		for _, u := range users {
			ids = append(ids, u.ID)
		}
	}
	assignments, err := tx.ListAssignments(ctx, companyID, AssignmentFilter{ItemID: job.item.ID})
	if err != nil {
		return nil, false, fmt.Errorf("item assignments: %w", err)
	}
	for _, a := range assignments {
		if !containsString(ids, a.EmployeeID) {
			ids = append(ids, a.EmployeeID)
		}
	}
	return ids, false, nil
}

func (s *Service) cascadeOne(ctx context.Context, actor auth.Actor, evaluationID string, job cascadeJob) (cascadeOutcome, error) {
	outcome := outcomeNone
	err := s.withAudit(ctx, actor, func(tx Tx, record recordFunc) error {
		e, err := tx.GetEvaluation(ctx, actor.CompanyID, evaluationID, true)
		if err != nil {
			return err
		}
		before := cloneEvaluation(e)

		switch job.mode {
		case cascadePrune:
			if e.Status != EvaluationStatusDraft || !e.HasItem(job.item.ID) {
				return nil
			}
			kept := e.Items[:0]
			for _, item := range e.Items {
				if item.ID != job.item.ID {
					kept = append(kept, item)
				}
			}
			e.Items = kept
			outcome = outcomeUpdated
		default:
			employee, err := tx.GetUser(ctx, actor.CompanyID, e.EmployeeID, false)
			if err != nil {
				return err
			}
			resolved, err := resolveItems(ctx, tx, employee)
			if err != nil {
				return err
			}
			appended := 0
			for _, item := range resolved {
				if !e.HasItem(item.ID) {
					e.Items = append(e.Items, snapshotOf(item))
					appended++
				}
			}
			if appended == 0 {
				return nil
			}
			outcome = outcomeUpdated
			if e.Status != EvaluationStatusDraft {
				s.reopen(&e, actor, job.reason)
				outcome = outcomeReopened
			}
		}

		e.UpdatedAt = s.timestamp()
		if err := tx.UpdateEvaluation(ctx, e); err != nil {
			return err
		}
		action := audit.ActionUpdate
		if outcome == outcomeReopened {
			action = audit.ActionReopen
		}
		return record(action, audit.EntityEvaluation, e.ID, before, e, job.reason)
	})
	if err != nil {
		return outcomeNone, err
	}
	return outcome, nil
}
