package review

import (
	"context"

	"perfreview/internal/domain/audit"
)

// Store is the persistence boundary. Every mutation and its audit entry run inside one InTx call.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	audit.Reader
}

// Tx is the unit-of-work view handed to InTx callbacks. Lookups return ErrNotFound when the
// id does not resolve inside the given company.
type Tx interface {
	GetCompany(ctx context.Context, companyID string) (Company, error)
	InsertCompany(ctx context.Context, company Company) error
	FindCompanyByName(ctx context.Context, name string) (Company, error)

	// GetUser, GetItem, GetCycle and GetEvaluation lock the row for the rest of the
	// transaction when forUpdate is set. Callers that write the row back must set it.
	GetUser(ctx context.Context, companyID, userID string, forUpdate bool) (User, error)
	FindUserByEmail(ctx context.Context, companyID, email string) (User, error)
	ListUsers(ctx context.Context, companyID string, filter UserFilter) ([]User, error)
	InsertUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	DeleteUser(ctx context.Context, companyID, userID string) error
	CountDependents(ctx context.Context, companyID, userID string) (Dependents, error)
	CountActiveReports(ctx context.Context, companyID, managerID string) (int, error)
	DetachReports(ctx context.Context, companyID, managerID string) (int, error)

	GetItem(ctx context.Context, companyID, itemID string, forUpdate bool) (EvaluationItem, error)
	ListItems(ctx context.Context, companyID string, filter ItemFilter) ([]EvaluationItem, error)
	InsertItem(ctx context.Context, item EvaluationItem) error
	UpdateItem(ctx context.Context, item EvaluationItem) error
	DeleteItem(ctx context.Context, companyID, itemID string) error

	ListAssignments(ctx context.Context, companyID string, filter AssignmentFilter) ([]Assignment, error)
	InsertAssignment(ctx context.Context, assignment Assignment) (bool, error)
	DeleteAssignments(ctx context.Context, companyID string, filter AssignmentFilter) (int, error)

	GetCycle(ctx context.Context, companyID, cycleID string, forUpdate bool) (PerformanceCycle, error)
	ActiveCycle(ctx context.Context, companyID string) (PerformanceCycle, error)
	ListCycles(ctx context.Context, companyID string) ([]PerformanceCycle, error)
	InsertCycle(ctx context.Context, cycle PerformanceCycle) error
	UpdateCycle(ctx context.Context, cycle PerformanceCycle) error

	GetEvaluation(ctx context.Context, companyID, evaluationID string, forUpdate bool) (Evaluation, error)
	FindEvaluation(ctx context.Context, companyID string, key PeriodKey) (Evaluation, error)
	ListEvaluations(ctx context.Context, companyID string, filter EvaluationFilter) ([]Evaluation, error)
	InsertEvaluation(ctx context.Context, evaluation Evaluation) error
	UpdateEvaluation(ctx context.Context, evaluation Evaluation) error
	DeleteEmployeeEvaluations(ctx context.Context, companyID, employeeID string) (int, error)
	ClearEvaluationManager(ctx context.Context, companyID, managerID string) (int, error)

	AppendAudit(ctx context.Context, entry audit.Entry) error
}
