package review

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"perfreview/internal/domain/audit"
)

// MemoryStore keeps every entity in process memory. Transactions run serially against a
// cloned state that replaces the committed state only when the callback succeeds.
type MemoryStore struct {
	mu    sync.Mutex
	state memoryState
	now   func() time.Time
}

type assignmentKey struct {
	itemID     string
	employeeID string
}

type memoryState struct {
	companies   map[string]Company
	users       map[string]User
	items       map[string]EvaluationItem
	assignments map[assignmentKey]Assignment
	cycles      map[string]PerformanceCycle
	evaluations map[string]Evaluation
	audit       []audit.Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: memoryState{
			companies:   map[string]Company{},
			users:       map[string]User{},
			items:       map[string]EvaluationItem{},
			assignments: map[assignmentKey]Assignment{},
			cycles:      map[string]PerformanceCycle{},
			evaluations: map[string]Evaluation{},
		},
		now: time.Now,
	}
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		companies:   make(map[string]Company, len(s.companies)),
		users:       make(map[string]User, len(s.users)),
		items:       make(map[string]EvaluationItem, len(s.items)),
		assignments: make(map[assignmentKey]Assignment, len(s.assignments)),
		cycles:      make(map[string]PerformanceCycle, len(s.cycles)),
		evaluations: make(map[string]Evaluation, len(s.evaluations)),
		audit:       slices.Clone(s.audit),
	}
	for k, v := range s.companies {
		out.companies[k] = v
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.items {
		out.items[k] = v
	}
	for k, v := range s.assignments {
		out.assignments[k] = v
	}
	for k, v := range s.cycles {
		out.cycles[k] = v
	}
	for k, v := range s.evaluations {
		out.evaluations[k] = cloneEvaluation(v)
	}
	return out
}

func cloneEvaluation(e Evaluation) Evaluation {
	e.Items = slices.Clone(e.Items)
	return e
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memoryTx{state: s.state.clone(), now: s.now}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) Count(_ context.Context, companyID string, filter audit.Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, e := range s.state.audit {
		if e.CompanyID == companyID && filter.Match(e) {
			total++
		}
	}
	return total, nil
}

func (s *MemoryStore) List(_ context.Context, companyID string, filter audit.Filter, includeDetails bool, limit, offset int) ([]audit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []audit.Entry
	for i := len(s.state.audit) - 1; i >= 0; i-- {
		e := s.state.audit[i]
		if e.CompanyID != companyID || !filter.Match(e) {
			continue
		}
		if !includeDetails {
			e.OldData, e.NewData, e.Changes = nil, nil, nil
		}
		matched = append(matched, e)
	}
	if offset >= len(matched) {
		return nil, nil
	}
	end := len(matched)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return matched[offset:end], nil
}

type memoryTx struct {
	state memoryState
	now   func() time.Time
}

func (t *memoryTx) GetCompany(_ context.Context, companyID string) (Company, error) {
	c, ok := t.state.companies[companyID]
	if !ok {
		return Company{}, ErrNotFound
	}
	return c, nil
}

func (t *memoryTx) InsertCompany(_ context.Context, company Company) error {
	t.state.companies[company.ID] = company
	return nil
}

func (t *memoryTx) FindCompanyByName(_ context.Context, name string) (Company, error) {
	for _, c := range t.state.companies {
		if c.Name == name {
			return c, nil
		}
	}
	return Company{}, ErrNotFound
}

func (t *memoryTx) GetUser(_ context.Context, companyID, userID string, _ bool) (User, error) {
	u, ok := t.state.users[userID]
	if !ok || u.CompanyID != companyID {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (t *memoryTx) FindUserByEmail(_ context.Context, companyID, email string) (User, error) {
	for _, u := range t.state.users {
		if u.CompanyID == companyID && strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (t *memoryTx) ListUsers(_ context.Context, companyID string, filter UserFilter) ([]User, error) {
	var out []User
	for _, u := range t.state.users {
		if u.CompanyID != companyID {
			continue
		}
		if !filter.IncludeArchived && !u.Active {
			continue
		}
		if filter.Department != "" && u.Department != filter.Department {
			continue
		}
		if filter.ManagerID != "" && !u.ReportsTo(filter.ManagerID) {
			continue
		}
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// emailTaken mirrors users_company_email_idx: emails are unique per company, ignoring case.
func (t *memoryTx) emailTaken(user User) error {
	for _, u := range t.state.users {
		if u.ID != user.ID && u.CompanyID == user.CompanyID && strings.EqualFold(u.Email, user.Email) {
			return &ValidationError{Fields: []FieldIssue{{Field: "email", Reason: "is already in use"}}}
		}
	}
	return nil
}

func (t *memoryTx) InsertUser(_ context.Context, user User) error {
	if err := t.emailTaken(user); err != nil {
		return err
	}
	t.state.users[user.ID] = user
	return nil
}

func (t *memoryTx) UpdateUser(_ context.Context, user User) error {
	if _, ok := t.state.users[user.ID]; !ok {
		return ErrNotFound
	}
	if err := t.emailTaken(user); err != nil {
		return err
	}
	t.state.users[user.ID] = user
	return nil
}

func (t *memoryTx) DeleteUser(_ context.Context, companyID, userID string) error {
	u, ok := t.state.users[userID]
	if !ok || u.CompanyID != companyID {
		return ErrNotFound
	}
	delete(t.state.users, userID)
	return nil
}

func (t *memoryTx) CountDependents(_ context.Context, companyID, userID string) (Dependents, error) {
	var d Dependents
	for _, e := range t.state.evaluations {
		if e.CompanyID != companyID {
			continue
		}
		if e.EmployeeID == userID || (e.ManagerID != nil && *e.ManagerID == userID) {
			d.Evaluations++
		}
	}
	for k, a := range t.state.assignments {
		if a.CompanyID == companyID && k.employeeID == userID {
			d.Assignments++
		}
	}
	for _, u := range t.state.users {
		if u.CompanyID == companyID && u.ReportsTo(userID) {
			d.DirectReports++
		}
	}
	return d, nil
}

func (t *memoryTx) CountActiveReports(_ context.Context, companyID, managerID string) (int, error) {
	n := 0
	for _, u := range t.state.users {
		if u.CompanyID == companyID && u.Active && u.ReportsTo(managerID) {
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) DetachReports(_ context.Context, companyID, managerID string) (int, error) {
	n := 0
	for id, u := range t.state.users {
		if u.CompanyID == companyID && u.ReportsTo(managerID) {
			u.ManagerID = nil
			u.UpdatedAt = t.now()
			t.state.users[id] = u
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) GetItem(_ context.Context, companyID, itemID string, _ bool) (EvaluationItem, error) {
	i, ok := t.state.items[itemID]
	if !ok || i.CompanyID != companyID {
		return EvaluationItem{}, ErrNotFound
	}
	return i, nil
}

func (t *memoryTx) ListItems(_ context.Context, companyID string, filter ItemFilter) ([]EvaluationItem, error) {
	var out []EvaluationItem
	for _, i := range t.state.items {
		if i.CompanyID != companyID {
			continue
		}
		if filter.Level != "" && i.Level != filter.Level {
			continue
		}
		if filter.AssignedTo != "" && (i.AssignedTo == nil || *i.AssignedTo != filter.AssignedTo) {
			continue
		}
		if filter.IDs != nil && !slices.Contains(filter.IDs, i.ID) {
			continue
		}
		if !filter.IncludeInactive && !i.Active {
			continue
		}
		if !filter.IncludeArchived && i.ArchivedAt != nil {
			continue
		}
		out = append(out, i)
	}
	sortItems(out)
	return out, nil
}

func (t *memoryTx) InsertItem(_ context.Context, item EvaluationItem) error {
	t.state.items[item.ID] = item
	return nil
}

func (t *memoryTx) UpdateItem(_ context.Context, item EvaluationItem) error {
	if _, ok := t.state.items[item.ID]; !ok {
		return ErrNotFound
	}
	t.state.items[item.ID] = item
	return nil
}

func (t *memoryTx) DeleteItem(_ context.Context, companyID, itemID string) error {
	i, ok := t.state.items[itemID]
	if !ok || i.CompanyID != companyID {
		return ErrNotFound
	}
	delete(t.state.items, itemID)
	return nil
}

func (t *memoryTx) ListAssignments(_ context.Context, companyID string, filter AssignmentFilter) ([]Assignment, error) {
	var out []Assignment
	for k, a := range t.state.assignments {
		if a.CompanyID != companyID {
			continue
		}
		if filter.ItemID != "" && k.itemID != filter.ItemID {
			continue
		}
		if filter.EmployeeID != "" && k.employeeID != filter.EmployeeID {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			if out[i].EvaluationItemID == out[j].EvaluationItemID {
				return out[i].EmployeeID < out[j].EmployeeID
			}
			return out[i].EvaluationItemID < out[j].EvaluationItemID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (t *memoryTx) InsertAssignment(_ context.Context, assignment Assignment) (bool, error) {
	key := assignmentKey{itemID: assignment.EvaluationItemID, employeeID: assignment.EmployeeID}
	if _, ok := t.state.assignments[key]; ok {
		return false, nil
	}
	t.state.assignments[key] = assignment
	return true, nil
}

func (t *memoryTx) DeleteAssignments(_ context.Context, companyID string, filter AssignmentFilter) (int, error) {
	n := 0
	for k, a := range t.state.assignments {
		if a.CompanyID != companyID {
			continue
		}
		if filter.ItemID != "" && k.itemID != filter.ItemID {
			continue
		}
		if filter.EmployeeID != "" && k.employeeID != filter.EmployeeID {
			continue
		}
		delete(t.state.assignments, k)
		n++
	}
	return n, nil
}

func (t *memoryTx) GetCycle(_ context.Context, companyID, cycleID string, _ bool) (PerformanceCycle, error) {
	c, ok := t.state.cycles[cycleID]
	if !ok || c.CompanyID != companyID {
		return PerformanceCycle{}, ErrNotFound
	}
	return c, nil
}

func (t *memoryTx) ActiveCycle(_ context.Context, companyID string) (PerformanceCycle, error) {
	for _, c := range t.state.cycles {
		if c.CompanyID == companyID && c.Status == CycleStatusActive {
			return c, nil
		}
	}
	return PerformanceCycle{}, ErrNotFound
}

func (t *memoryTx) ListCycles(_ context.Context, companyID string) ([]PerformanceCycle, error) {
	var out []PerformanceCycle
	for _, c := range t.state.cycles {
		if c.CompanyID == companyID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartDate.After(out[j].StartDate)
	})
	return out, nil
}

func (t *memoryTx) InsertCycle(_ context.Context, cycle PerformanceCycle) error {
	t.state.cycles[cycle.ID] = cycle
	return nil
}

func (t *memoryTx) UpdateCycle(_ context.Context, cycle PerformanceCycle) error {
	if _, ok := t.state.cycles[cycle.ID]; !ok {
		return ErrNotFound
	}
	t.state.cycles[cycle.ID] = cycle
	return nil
}

func (t *memoryTx) GetEvaluation(_ context.Context, companyID, evaluationID string, _ bool) (Evaluation, error) {
	e, ok := t.state.evaluations[evaluationID]
	if !ok || e.CompanyID != companyID {
		return Evaluation{}, ErrNotFound
	}
	return cloneEvaluation(e), nil
}

func (t *memoryTx) FindEvaluation(_ context.Context, companyID string, key PeriodKey) (Evaluation, error) {
	for _, e := range t.state.evaluations {
		if e.CompanyID == companyID && e.Key() == key {
			return cloneEvaluation(e), nil
		}
	}
	return Evaluation{}, ErrNotFound
}

func (t *memoryTx) ListEvaluations(_ context.Context, companyID string, filter EvaluationFilter) ([]Evaluation, error) {
	var out []Evaluation
	for _, e := range t.state.evaluations {
		if e.CompanyID != companyID {
			continue
		}
		if filter.EmployeeID != "" && e.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.EmployeeIDs != nil && !slices.Contains(filter.EmployeeIDs, e.EmployeeID) {
			continue
		}
		if filter.ManagerID != "" && (e.ManagerID == nil || *e.ManagerID != filter.ManagerID) {
			continue
		}
		if filter.CycleID != "" && e.CycleID != filter.CycleID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, cloneEvaluation(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (t *memoryTx) InsertEvaluation(_ context.Context, evaluation Evaluation) error {
	for _, e := range t.state.evaluations {
		if e.CompanyID == evaluation.CompanyID && e.Key() == evaluation.Key() {
			return ErrDuplicateEvaluation
		}
	}
	t.state.evaluations[evaluation.ID] = cloneEvaluation(evaluation)
	return nil
}

func (t *memoryTx) UpdateEvaluation(_ context.Context, evaluation Evaluation) error {
	if _, ok := t.state.evaluations[evaluation.ID]; !ok {
		return ErrNotFound
	}
	t.state.evaluations[evaluation.ID] = cloneEvaluation(evaluation)
	return nil
}

func (t *memoryTx) DeleteEmployeeEvaluations(_ context.Context, companyID, employeeID string) (int, error) {
	n := 0
	for id, e := range t.state.evaluations {
		if e.CompanyID == companyID && e.EmployeeID == employeeID {
			delete(t.state.evaluations, id)
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) ClearEvaluationManager(_ context.Context, companyID, managerID string) (int, error) {
	n := 0
	for id, e := range t.state.evaluations {
		if e.CompanyID == companyID && e.ManagerID != nil && *e.ManagerID == managerID {
			e.ManagerID = nil
			t.state.evaluations[id] = e
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) AppendAudit(_ context.Context, entry audit.Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = t.now().UTC()
	}
	t.state.audit = append(t.state.audit, entry)
	return nil
}

func sortItems(items []EvaluationItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].SortOrder != items[j].SortOrder {
			return items[i].SortOrder < items[j].SortOrder
		}
		if items[i].Title != items[j].Title {
			return items[i].Title < items[j].Title
		}
		return items[i].ID < items[j].ID
	})
}
