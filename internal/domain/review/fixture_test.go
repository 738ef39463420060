package review

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"perfreview/internal/domain/audit"
	"perfreview/internal/domain/auth"
)

// stepClock advances one second per reading so consecutive writes get distinct timestamps.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *MemoryStore
	svc   *Service

	company  Company
	hr       User
	manager  User
	employee User
	cycle    PerformanceCycle

	hrActor       auth.Actor
	managerActor  auth.Actor
	employeeActor auth.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	clock := &stepClock{now: time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	store.now = clock.Now

	f := &fixture{
		t:     t,
		ctx:   ctx,
		store: store,
		svc:   NewService(store, zaptest.NewLogger(t), WithClock(clock.Now), WithCascadeConcurrency(2)),
		company: Company{
			ID:        "company-acme",
			Name:      "Acme",
			CreatedAt: clock.Now(),
		},
	}
	f.hr = User{
		ID:         "user-hr",
		CompanyID:  f.company.ID,
		Name:       "Hana Park",
		Email:      "hana@acme.test",
		Role:       string(auth.RoleHR),
		Department: "People",
		Position:   "HR Lead",
		Active:     true,
		CreatedAt:  clock.Now(),
		UpdatedAt:  clock.Now(),
	}
	require.NoError(t, store.InTx(ctx, func(tx Tx) error {
		if err := tx.InsertCompany(ctx, f.company); err != nil {
			return err
		}
		return tx.InsertUser(ctx, f.hr)
	}))
	f.hrActor = auth.Actor{UserID: f.hr.ID, Role: auth.RoleHR, CompanyID: f.company.ID, SessionID: "sess-hr"}

	f.manager = f.createUser("Mona Diaz", "mona@acme.test", auth.RoleManager, "Finance", nil)
	f.managerActor = f.actorFor(f.manager)
	f.employee = f.createUser("Xavier Kim", "xavier@acme.test", auth.RoleEmployee, "Finance", &f.manager.ID)
	f.employeeActor = f.actorFor(f.employee)

	cycle, err := f.svc.CreateCycle(ctx, f.hrActor, CycleInput{
		Name:      "FY2025",
		StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	f.cycle = cycle
	return f
}

func (f *fixture) actorFor(u User) auth.Actor {
	return auth.Actor{UserID: u.ID, Role: auth.Role(u.Role), CompanyID: u.CompanyID}
}

func (f *fixture) createUser(name, email string, role auth.Role, department string, managerID *string) User {
	f.t.Helper()
	u, err := f.svc.CreateUser(f.ctx, f.hrActor, UserInput{
		Name:       name,
		Email:      email,
		Role:       string(role),
		Department: department,
		Position:   "Analyst",
		ManagerID:  managerID,
	})
	require.NoError(f.t, err)
	return u
}

func (f *fixture) createItem(title, level string, assignedTo *string) EvaluationItem {
	f.t.Helper()
	item, _, err := f.svc.CreateItem(f.ctx, f.hrActor, ItemInput{
		Title:      title,
		Type:       ItemTypeOKR,
		Level:      level,
		AssignedTo: assignedTo,
	})
	require.NoError(f.t, err)
	return item
}

func (f *fixture) draftFor(employee User) Evaluation {
	f.t.Helper()
	e, err := f.svc.CreateDraft(f.ctx, f.managerActor, CreateDraftInput{EmployeeID: employee.ID})
	require.NoError(f.t, err)
	return e
}

// rateAll gives every snapshot item a 4 with a comment and sets the overall rating.
func (f *fixture) rateAll(e Evaluation) Evaluation {
	f.t.Helper()
	update := DraftUpdate{OverallRating: intPtr(4), ManagerComments: strPtr("steady year")}
	for _, item := range e.Items {
		update.Items = append(update.Items, ItemRating{ItemID: item.ID, Rating: intPtr(4), Comment: strPtr("solid")})
	}
	out, err := f.svc.UpdateDraft(f.ctx, f.managerActor, e.ID, update)
	require.NoError(f.t, err)
	return out
}

func (f *fixture) submitted(employee User) Evaluation {
	f.t.Helper()
	e := f.rateAll(f.draftFor(employee))
	out, err := f.svc.Submit(f.ctx, f.managerActor, e.ID)
	require.NoError(f.t, err)
	return out
}

func (f *fixture) auditCount() int {
	f.t.Helper()
	n, err := f.store.Count(f.ctx, f.company.ID, audit.Filter{})
	require.NoError(f.t, err)
	return n
}

func (f *fixture) lastAudit() audit.Entry {
	f.t.Helper()
	entries, err := f.store.List(f.ctx, f.company.ID, audit.Filter{}, true, 1, 0)
	require.NoError(f.t, err)
	require.Len(f.t, entries, 1)
	return entries[0]
}

func (f *fixture) evaluation(id string) Evaluation {
	f.t.Helper()
	e, err := f.svc.GetEvaluation(f.ctx, f.hrActor, id)
	require.NoError(f.t, err)
	return e
}

func intPtr(v int) *int {
	return &v
}
