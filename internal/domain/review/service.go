package review

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"perfreview/internal/domain/audit"
	"perfreview/internal/domain/auth"
)

const defaultCascadeConcurrency = 4

type Service struct {
	store        Store
	log          *zap.Logger
	now          func() time.Time
	newID        func() string
	cascadeLimit int
}

type Option func(*Service)

// WithClock replaces time.Now for timestamps written by the service.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithCascadeConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.cascadeLimit = n
		}
	}
}

func NewService(store Store, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:        store,
		log:          logger,
		now:          time.Now,
		newID:        uuid.NewString,
		cascadeLimit: defaultCascadeConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC()
}

// recordFunc appends one audit row inside the surrounding transaction.
type recordFunc func(action audit.Action, entityType audit.EntityType, entityID string, before, after any, reason string) error

// withAudit runs fn in one store transaction; the audit rows it records commit or roll back
// together with the business mutation.
func (s *Service) withAudit(ctx context.Context, actor auth.Actor, fn func(tx Tx, record recordFunc) error) error {
	return s.store.InTx(ctx, func(tx Tx) error {
		record := func(action audit.Action, entityType audit.EntityType, entityID string, before, after any, reason string) error {
			entry, err := audit.NewEntry(ctx, actor, action, entityType, entityID, before, after, reason)
			if err != nil {
				return err
			}
			return tx.AppendAudit(ctx, entry)
		}
		return fn(tx, record)
	})
}

// read runs fn in a transaction without audit.
func (s *Service) read(ctx context.Context, fn func(tx Tx) error) error {
	return s.store.InTx(ctx, fn)
}

// canView reports whether actor may see the employee's evaluations.
func canView(actor auth.Actor, employee User) bool {
	switch actor.Role {
	case auth.RoleHR:
		return true
	case auth.RoleManager:
		return employee.ID == actor.UserID || employee.ReportsTo(actor.UserID)
	default:
		return employee.ID == actor.UserID
	}
}

// canRate reports whether actor may create or edit the employee's evaluations.
func canRate(actor auth.Actor, employee User) bool {
	switch actor.Role {
	case auth.RoleHR:
		return true
	case auth.RoleManager:
		return employee.ReportsTo(actor.UserID)
	}
	return false
}

func strPtr(v string) *string {
	return &v
}

func timePtr(v time.Time) *time.Time {
	return &v
}
