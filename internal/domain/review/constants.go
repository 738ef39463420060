package review

const (
	EvaluationStatusDraft     = "draft"
	EvaluationStatusSubmitted = "submitted"
	EvaluationStatusCompleted = "completed"

	CycleStatusActive   = "active"
	CycleStatusClosed   = "closed"
	CycleStatusArchived = "archived"

	ItemTypeOKR        = "okr"
	ItemTypeCompetency = "competency"

	ItemLevelCompany    = "company"
	ItemLevelDepartment = "department"
	ItemLevelManager    = "manager"

	PeriodTypeYearly    = "yearly"
	PeriodTypeQuarterly = "quarterly"
	PeriodTypeMonthly   = "monthly"

	RatingMin = 1
	RatingMax = 5
)

const (
	ReasonCompanyItemAdded    = "New company-wide item added"
	ReasonDepartmentItemAdded = "New department item added"
	ReasonItemReactivated     = "Evaluation item reactivated"
	ReasonItemAssigned        = "New item assigned"
	ReasonItemDeactivated     = "Evaluation item deactivated"
	ReasonItemArchived        = "Evaluation item archived"
	ReasonAcknowledged        = "Acknowledged by employee"
)

var (
	Statuses    = []string{EvaluationStatusDraft, EvaluationStatusSubmitted, EvaluationStatusCompleted}
	ItemTypes   = []string{ItemTypeOKR, ItemTypeCompetency}
	ItemLevels  = []string{ItemLevelCompany, ItemLevelDepartment, ItemLevelManager}
	PeriodTypes = []string{PeriodTypeYearly, PeriodTypeQuarterly, PeriodTypeMonthly}
)
