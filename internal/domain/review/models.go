package review

import "time"

type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type User struct {
	ID                   string     `json:"id"`
	CompanyID            string     `json:"companyId"`
	Name                 string     `json:"name"`
	Email                string     `json:"email"`
	Username             string     `json:"username,omitempty"`
	Role                 string     `json:"role"`
	Department           string     `json:"department"`
	Position             string     `json:"position"`
	ManagerID            *string    `json:"managerId"`
	Active               bool       `json:"active"`
	ArchivedAt           *time.Time `json:"archivedAt"`
	ArchivedReason       *string    `json:"archivedReason"`
	ArchivedManagerName  *string    `json:"archivedManagerName"`
	ArchivedManagerEmail *string    `json:"archivedManagerEmail"`
	ArchivedDepartment   *string    `json:"archivedDepartment"`
	ArchivedPosition     *string    `json:"archivedPosition"`
	ArchivedCompanyName  *string    `json:"archivedCompanyName"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

func (u User) ReportsTo(managerID string) bool {
	return u.ManagerID != nil && *u.ManagerID == managerID
}

type EvaluationItem struct {
	ID                 string     `json:"id"`
	CompanyID          string     `json:"companyId"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	Type               string     `json:"type"`
	Level              string     `json:"level"`
	AssignedTo         *string    `json:"assignedTo"`
	SortOrder          int        `json:"sortOrder"`
	CreatedBy          string     `json:"createdBy"`
	Active             bool       `json:"active"`
	EvaluationDeadline *time.Time `json:"evaluationDeadline"`
	DeadlineSetBy      *string    `json:"deadlineSetBy"`
	ArchivedAt         *time.Time `json:"archivedAt"`
	ArchivedBy         *string    `json:"archivedBy"`
	ArchivedReason     *string    `json:"archivedReason"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// Rateable reports whether the item may appear in newly resolved evaluation sets.
func (i EvaluationItem) Rateable() bool {
	return i.Active && i.ArchivedAt == nil
}

type Assignment struct {
	EvaluationItemID string    `json:"evaluationItemId"`
	EmployeeID       string    `json:"employeeId"`
	AssignedBy       string    `json:"assignedBy"`
	CompanyID        string    `json:"companyId"`
	CreatedAt        time.Time `json:"createdAt"`
}

type PerformanceCycle struct {
	ID        string     `json:"id"`
	CompanyID string     `json:"companyId"`
	Name      string     `json:"name"`
	StartDate time.Time  `json:"startDate"`
	EndDate   time.Time  `json:"endDate"`
	Status    string     `json:"status"`
	CreatedBy string     `json:"createdBy"`
	ClosedBy  *string    `json:"closedBy"`
	ClosedAt  *time.Time `json:"closedAt"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// SnapshotItem is the point-in-time copy of an evaluation item owned by one evaluation.
type SnapshotItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Rating      *int   `json:"rating"`
	Comment     string `json:"comment"`
}

type PeriodKey struct {
	EmployeeID string `json:"employeeId"`
	CycleID    string `json:"cycleId"`
	PeriodType string `json:"periodType"`
	PeriodDate string `json:"periodDate"`
}

type Evaluation struct {
	ID              string         `json:"id"`
	CompanyID       string         `json:"companyId"`
	EmployeeID      string         `json:"employeeId"`
	ManagerID       *string        `json:"managerId"`
	CycleID         string         `json:"cycleId"`
	PeriodType      string         `json:"periodType"`
	PeriodDate      string         `json:"periodDate"`
	Status          string         `json:"status"`
	OverallRating   *int           `json:"overallRating"`
	ManagerComments string         `json:"managerComments"`
	Items           []SnapshotItem `json:"evaluationItemsData"`
	IsReopened      bool           `json:"isReopened"`
	PreviousStatus  *string        `json:"previousStatus"`
	ReopenedAt      *time.Time     `json:"reopenedAt"`
	ReopenedBy      *string        `json:"reopenedBy"`
	ReopenedReason  *string        `json:"reopenedReason"`
	CompletionCount int            `json:"completionCount"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

func (e Evaluation) Key() PeriodKey {
	return PeriodKey{EmployeeID: e.EmployeeID, CycleID: e.CycleID, PeriodType: e.PeriodType, PeriodDate: e.PeriodDate}
}

func (e Evaluation) HasItem(itemID string) bool {
	for _, item := range e.Items {
		if item.ID == itemID {
			return true
		}
	}
	return false
}

// Dependents counts the rows that block a hard delete or archive of a user.
type Dependents struct {
	Evaluations   int `json:"evaluations"`
	Assignments   int `json:"assignments"`
	DirectReports int `json:"directReports"`
}

func (d Dependents) Any() bool {
	return d.Evaluations > 0 || d.Assignments > 0 || d.DirectReports > 0
}

type UserFilter struct {
	IncludeArchived bool
	Department      string
	ManagerID       string
	Role            string
}

type ItemFilter struct {
	Level           string
	AssignedTo      string
	IDs             []string
	IncludeInactive bool
	IncludeArchived bool
}

type AssignmentFilter struct {
	ItemID     string
	EmployeeID string
}

type EvaluationFilter struct {
	EmployeeID  string
	EmployeeIDs []string
	ManagerID   string
	CycleID     string
	Status      string
}

// BulkOutcome is the per-row {success, message} result of a bulk operation.
type BulkOutcome struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}
