package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"perfreview/internal/domain/audit"
	"perfreview/internal/domain/auth"
)

type CycleInput struct {
	Name      string    `json:"name"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

func errActiveCycleExists(existing PerformanceCycle) error {
	return fmt.Errorf("%w: cycle %q is already active", ErrInvalidTransition, existing.Name)
}

// CreateCycle opens a new active cycle. A company has at most one active cycle.
func (s *Service) CreateCycle(ctx context.Context, actor auth.Actor, in CycleInput) (PerformanceCycle, error) {
	if err := auth.Authorize(actor, auth.CapCyclesManage); err != nil {
		return PerformanceCycle{}, err
	}
	v := validator{}
	v.required("name", in.Name)
	if in.StartDate.IsZero() {
		v.add("startDate", "is required")
	}
	if in.EndDate.IsZero() {
		v.add("endDate", "is required")
	}
	if !in.StartDate.IsZero() && !in.EndDate.IsZero() && in.EndDate.Before(in.StartDate) {
		v.add("endDate", "must not be before startDate")
	}
	if err := v.err(); err != nil {
		return PerformanceCycle{}, err
	}

	var created PerformanceCycle
	err := s.withAudit(ctx, actor, func(tx Tx, record recordFunc) error {
		if err := ensureNoActiveCycle(ctx, tx, actor.CompanyID); err != nil {
			return err
		}
		now := s.timestamp()
		c := PerformanceCycle{
			ID:        s.newID(),
			CompanyID: actor.CompanyID,
			Name:      strings.TrimSpace(in.Name),
			StartDate: in.StartDate,
			EndDate:   in.EndDate,
			Status:    CycleStatusActive,
			CreatedBy: actor.UserID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.InsertCycle(ctx, c); err != nil {
			return err
		}
		created = c
		return record(audit.ActionCreate, audit.EntityPerformanceCycle, c.ID, nil, c, "")
	})
	if err != nil {
		return PerformanceCycle{}, err
	}
	return created, nil
}

func ensureNoActiveCycle(ctx context.Context, tx Tx, companyID string) error {
	existing, err := tx.ActiveCycle(ctx, companyID)
	if err == nil {
		return errActiveCycleExists(existing)
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

func (s *Service) mutateCycle(ctx context.Context, actor auth.Actor, id string, fn func(tx Tx, c *PerformanceCycle) (audit.Action, error)) (PerformanceCycle, error) {
	if err := auth.Authorize(actor, auth.CapCyclesManage); err != nil {
		return PerformanceCycle{}, err
	}
	var out PerformanceCycle
	err := s.withAudit(ctx, actor, func(tx Tx, record recordFunc) error {
		c, err := tx.GetCycle(ctx, actor.CompanyID, id, true)
		if err != nil {
			return err
		}
		before := c
		action, err := fn(tx, &c)
		if err != nil {
			return err
		}
		c.UpdatedAt = s.timestamp()
		if err := tx.UpdateCycle(ctx, c); err != nil {
			return err
		}
		out = c
		return record(action, audit.EntityPerformanceCycle, c.ID, before, c, "")
	})
	if err != nil {
		return PerformanceCycle{}, err
	}
	return out, nil
}

// CloseCycle stops new evaluations from being created in the cycle.
func (s *Service) CloseCycle(ctx context.Context, actor auth.Actor, id string) (PerformanceCycle, error) {
	return s.mutateCycle(ctx, actor, id, func(_ Tx, c *PerformanceCycle) (audit.Action, error) {
		if c.Status != CycleStatusActive {
			return "", invalidTransition("close", c.Status)
		}
		c.Status = CycleStatusClosed
		c.ClosedBy = strPtr(actor.UserID)
		c.ClosedAt = timePtr(s.timestamp())
		return audit.ActionClose, nil
	})
}

// ReopenCycle is closed -> active only; archived cycles stay archived.
func (s *Service) ReopenCycle(ctx context.Context, actor auth.Actor, id string) (PerformanceCycle, error) {
	return s.mutateCycle(ctx, actor, id, func(tx Tx, c *PerformanceCycle) (audit.Action, error) {
		if c.Status != CycleStatusClosed {
			return "", invalidTransition("reopen", c.Status)
		}
		if err := ensureNoActiveCycle(ctx, tx, actor.CompanyID); err != nil {
			return "", err
		}
		c.Status = CycleStatusActive
		c.ClosedBy = nil
		c.ClosedAt = nil
		return audit.ActionReopen, nil
	})
}

func (s *Service) ArchiveCycle(ctx context.Context, actor auth.Actor, id string) (PerformanceCycle, error) {
	return s.mutateCycle(ctx, actor, id, func(_ Tx, c *PerformanceCycle) (audit.Action, error) {
		if c.Status == CycleStatusArchived {
			return "", ErrAlreadyArchived
		}
		if c.Status != CycleStatusClosed {
			return "", invalidTransition("archive", c.Status)
		}
		c.Status = CycleStatusArchived
		return audit.ActionArchive, nil
	})
}

func (s *Service) GetCycle(ctx context.Context, actor auth.Actor, id string) (PerformanceCycle, error) {
	if err := auth.Authorize(actor, auth.CapCyclesRead); err != nil {
		return PerformanceCycle{}, err
	}
	var out PerformanceCycle
	err := s.read(ctx, func(tx Tx) error {
		var err error
		out, err = tx.GetCycle(ctx, actor.CompanyID, id, false)
		return err
	})
	return out, err
}

func (s *Service) ActiveCycle(ctx context.Context, actor auth.Actor) (PerformanceCycle, error) {
	if err := auth.Authorize(actor, auth.CapCyclesRead); err != nil {
		return PerformanceCycle{}, err
	}
	var out PerformanceCycle
	err := s.read(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ActiveCycle(ctx, actor.CompanyID)
		return err
	})
	return out, err
}

func (s *Service) ListCycles(ctx context.Context, actor auth.Actor) ([]PerformanceCycle, error) {
	if err := auth.Authorize(actor, auth.CapCyclesRead); err != nil {
		return nil, err
	}
	var out []PerformanceCycle
	err := s.read(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ListCycles(ctx, actor.CompanyID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []PerformanceCycle{}
	}
	return out, nil
}
