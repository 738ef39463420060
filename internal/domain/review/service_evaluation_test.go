package review

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfreview/internal/domain/audit"
	"perfreview/internal/domain/auth"
)

func TestCreateDraftSnapshotsResolvedItems(t *testing.T) {
	f := newFixture(t)
	i1 := f.createItem("Close books on time", ItemLevelCompany, nil)
	i2 := f.createItem("Forecast accuracy", ItemLevelDepartment, strPtr("Finance"))
	f.createItem("Sales pipeline", ItemLevelDepartment, strPtr("Sales"))

	e := f.draftFor(f.employee)

	assert.Equal(t, EvaluationStatusDraft, e.Status)
	assert.Equal(t, PeriodTypeYearly, e.PeriodType)
	assert.Equal(t, "2025", e.PeriodDate)
	require.NotNil(t, e.ManagerID)
	assert.Equal(t, f.manager.ID, *e.ManagerID)
	want := []SnapshotItem{
		{ID: i1.ID, Title: "Close books on time", Type: ItemTypeOKR},
		{ID: i2.ID, Title: "Forecast accuracy", Type: ItemTypeOKR},
	}
	if diff := cmp.Diff(want, e.Items); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateDraftRejectsDuplicatePeriod(t *testing.T) {
	f := newFixture(t)
	f.draftFor(f.employee)

	_, err := f.svc.CreateDraft(f.ctx, f.managerActor, CreateDraftInput{EmployeeID: f.employee.ID})
	assert.ErrorIs(t, err, ErrDuplicateEvaluation)

	quarterly, err := f.svc.CreateDraft(f.ctx, f.managerActor, CreateDraftInput{EmployeeID: f.employee.ID, PeriodType: PeriodTypeQuarterly, PeriodDate: "2025-Q1"})
	require.NoError(t, err)
	assert.Equal(t, "2025-Q1", quarterly.PeriodDate)
}

func TestCreateDraftRequiresActiveCycle(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CloseCycle(f.ctx, f.hrActor, f.cycle.ID)
	require.NoError(t, err)

	_, err = f.svc.CreateDraft(f.ctx, f.managerActor, CreateDraftInput{EmployeeID: f.employee.ID, CycleID: f.cycle.ID})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.CreateDraft(f.ctx, f.managerActor, CreateDraftInput{EmployeeID: f.employee.ID})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "cycleId", verr.Fields[0].Field)
}

func TestManagerMayOnlyRateDirectReports(t *testing.T) {
	f := newFixture(t)
	other := f.createUser("Sam Ortiz", "sam@acme.test", auth.RoleManager, "Sales", nil)

	_, err := f.svc.CreateDraft(f.ctx, f.actorFor(other), CreateDraftInput{EmployeeID: f.employee.ID})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.CreateDraft(f.ctx, f.employeeActor, CreateDraftInput{EmployeeID: f.employee.ID})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUpdateDraftValidatesRatingsAndItems(t *testing.T) {
	f := newFixture(t)
	item := f.createItem("Close books on time", ItemLevelCompany, nil)
	e := f.draftFor(f.employee)

	_, err := f.svc.UpdateDraft(f.ctx, f.managerActor, e.ID, DraftUpdate{
		Items:         []ItemRating{{ItemID: item.ID, Rating: intPtr(6)}, {ItemID: "unknown", Rating: intPtr(3)}},
		OverallRating: intPtr(0),
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	fields := []string{}
	for _, issue := range verr.Fields {
		fields = append(fields, issue.Field)
	}
	assert.Equal(t, []string{"items." + item.ID + ".rating", "items.unknown", "overallRating"}, fields)

	unchanged := f.evaluation(e.ID)
	assert.Nil(t, unchanged.Items[0].Rating)
}

func TestUpdateDraftOnlyInDraft(t *testing.T) {
	f := newFixture(t)
	e := f.submitted(f.employee)

	_, err := f.svc.UpdateDraft(f.ctx, f.managerActor, e.ID, DraftUpdate{OverallRating: intPtr(2)})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSubmitReportsExactlyTheIncompleteItem(t *testing.T) {
	f := newFixture(t)
	i1 := f.createItem("Close books on time", ItemLevelCompany, nil)
	i2 := f.createItem("Audit readiness", ItemLevelCompany, nil)
	i3 := f.createItem("Forecast accuracy", ItemLevelCompany, nil)
	e := f.draftFor(f.employee)

	_, err := f.svc.UpdateDraft(f.ctx, f.managerActor, e.ID, DraftUpdate{
		OverallRating: intPtr(4),
		Items: []ItemRating{
			{ItemID: i1.ID, Rating: intPtr(4), Comment: strPtr("on time every month")},
			{ItemID: i2.ID, Rating: intPtr(3)},
			{ItemID: i3.ID, Rating: intPtr(5), Comment: strPtr("within 2%")},
		},
	})
	require.NoError(t, err)
	before := f.auditCount()

	_, err = f.svc.Submit(f.ctx, f.managerActor, e.ID)

	var incomplete *IncompleteEvaluationError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, []string{i2.ID}, incomplete.MissingItemIDs)
	assert.False(t, incomplete.MissingOverallRating)
	assert.Equal(t, EvaluationStatusDraft, f.evaluation(e.ID).Status)
	assert.Equal(t, before, f.auditCount(), "failed transition must not leave an audit row")
}

func TestSubmitRequiresOverallRating(t *testing.T) {
	f := newFixture(t)
	e := f.draftFor(f.employee)

	_, err := f.svc.Submit(f.ctx, f.managerActor, e.ID)

	var incomplete *IncompleteEvaluationError
	require.ErrorAs(t, err, &incomplete)
	assert.True(t, incomplete.MissingOverallRating)
	assert.Empty(t, incomplete.MissingItemIDs)
}

func TestForwardStatesAreComplete(t *testing.T) {
	f := newFixture(t)
	f.createItem("Close books on time", ItemLevelCompany, nil)
	f.createItem("Forecast accuracy", ItemLevelDepartment, strPtr("Finance"))
	submitted := f.submitted(f.employee)
	completed, err := f.svc.Complete(f.ctx, f.hrActor, submitted.ID)
	require.NoError(t, err)

	for _, e := range []Evaluation{submitted, completed} {
		require.NotNil(t, e.OverallRating)
		for _, item := range e.Items {
			assert.NotNil(t, item.Rating, "item %s", item.ID)
			assert.NotEmpty(t, item.Comment, "item %s", item.ID)
		}
	}
}

func TestCompleteFromDraftAndCountsCompletions(t *testing.T) {
	f := newFixture(t)
	e := f.rateAll(f.draftFor(f.employee))

	_, err := f.svc.Complete(f.ctx, f.managerActor, e.ID)
	assert.ErrorIs(t, err, ErrForbidden, "managers cannot complete")

	completed, err := f.svc.Complete(f.ctx, f.hrActor, e.ID)
	require.NoError(t, err)
	assert.Equal(t, EvaluationStatusCompleted, completed.Status)
	assert.Equal(t, 1, completed.CompletionCount)

	_, err = f.svc.Complete(f.ctx, f.hrActor, e.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	reopened, err := f.svc.Reopen(f.ctx, f.hrActor, e.ID, "rating dispute")
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.CompletionCount)

	again, err := f.svc.Complete(f.ctx, f.hrActor, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, again.CompletionCount)
}

func TestReopenFromDraftIsInvalid(t *testing.T) {
	f := newFixture(t)
	e := f.draftFor(f.employee)

	_, err := f.svc.Reopen(f.ctx, f.hrActor, e.ID, "typo")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, EvaluationStatusDraft, f.evaluation(e.ID).Status)
}

func TestReopenRecordsPreviousStatus(t *testing.T) {
	for _, complete := range []bool{false, true} {
		f := newFixture(t)
		e := f.submitted(f.employee)
		want := EvaluationStatusSubmitted
		if complete {
			var err error
			e, err = f.svc.Complete(f.ctx, f.hrActor, e.ID)
			require.NoError(t, err)
			want = EvaluationStatusCompleted
		}

		got, err := f.svc.Reopen(f.ctx, f.hrActor, e.ID, "new evidence")
		require.NoError(t, err)

		assert.Equal(t, EvaluationStatusDraft, got.Status)
		require.NotNil(t, got.PreviousStatus)
		assert.Equal(t, want, *got.PreviousStatus)
		assert.True(t, got.IsReopened)
		require.NotNil(t, got.ReopenedBy)
		assert.Equal(t, f.hr.ID, *got.ReopenedBy)
		assert.Equal(t, "new evidence", *got.ReopenedReason)
		assert.NotNil(t, got.ReopenedAt)
		assert.Equal(t, 4, *got.OverallRating, "ratings survive a reopen")
	}
}

func TestReopenRequiresReason(t *testing.T) {
	f := newFixture(t)
	e := f.submitted(f.employee)

	_, err := f.svc.Reopen(f.ctx, f.hrActor, e.ID, "  ")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestAcknowledgeCompletesForEvaluatedEmployeeOnly(t *testing.T) {
	f := newFixture(t)
	draft := f.rateAll(f.draftFor(f.employee))

	_, err := f.svc.Acknowledge(f.ctx, f.employeeActor, draft.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition, "only submitted evaluations can be acknowledged")

	e, err := f.svc.Submit(f.ctx, f.managerActor, draft.ID)
	require.NoError(t, err)

	other := f.createUser("Lee Chan", "lee@acme.test", auth.RoleEmployee, "Finance", &f.manager.ID)
	_, err = f.svc.Acknowledge(f.ctx, f.actorFor(other), e.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := f.svc.Acknowledge(f.ctx, f.employeeActor, e.ID)
	require.NoError(t, err)
	assert.Equal(t, EvaluationStatusCompleted, got.Status)
	assert.Equal(t, 1, got.CompletionCount)

	entry := f.lastAudit()
	assert.Equal(t, audit.ActionComplete, entry.Action)
	assert.Equal(t, ReasonAcknowledged, entry.Reason)
	assert.Equal(t, f.employee.ID, entry.UserID)
}

func TestEachTransitionWritesOneAuditRow(t *testing.T) {
	f := newFixture(t)
	f.createItem("Close books on time", ItemLevelCompany, nil)
	e := f.rateAll(f.draftFor(f.employee))
	item := f.createItem("Coach a new hire", ItemLevelManager, &f.manager.ID)

	steps := []struct {
		action   audit.Action
		entityID string
		run      func() error
	}{
		{audit.ActionSubmit, e.ID, func() error { _, err := f.svc.Submit(f.ctx, f.managerActor, e.ID); return err }},
		{audit.ActionComplete, e.ID, func() error { _, err := f.svc.Complete(f.ctx, f.hrActor, e.ID); return err }},
		{audit.ActionReopen, e.ID, func() error { _, err := f.svc.Reopen(f.ctx, f.hrActor, e.ID, "recalibration"); return err }},
		{audit.ActionArchive, f.employee.ID, func() error {
			_, err := f.svc.ArchiveUser(f.ctx, f.hrActor, f.employee.ID, "left company")
			return err
		}},
		{audit.ActionUnarchive, f.employee.ID, func() error { _, err := f.svc.UnarchiveUser(f.ctx, f.hrActor, f.employee.ID); return err }},
		{audit.ActionArchive, item.ID, func() error {
			_, _, err := f.svc.ArchiveItem(f.ctx, f.hrActor, item.ID, "replaced")
			return err
		}},
		{audit.ActionUnarchive, item.ID, func() error { _, err := f.svc.UnarchiveItem(f.ctx, f.hrActor, item.ID); return err }},
	}
	for _, step := range steps {
		before := f.auditCount()
		require.NoError(t, step.run(), string(step.action))
		assert.Equal(t, before+1, f.auditCount(), string(step.action))

		entry := f.lastAudit()
		assert.Equal(t, step.action, entry.Action)
		assert.Equal(t, step.entityID, entry.EntityID)
	}
}

func TestTransitionAuditCarriesStatusDiff(t *testing.T) {
	f := newFixture(t)
	e := f.rateAll(f.draftFor(f.employee))

	_, err := f.svc.Submit(f.ctx, f.managerActor, e.ID)
	require.NoError(t, err)

	entry := f.lastAudit()
	assert.Equal(t, audit.EntityEvaluation, entry.EntityType)
	assert.Equal(t, "manager", entry.UserRole)
	assert.Contains(t, string(entry.Changes), `"status":{"old":"draft","new":"submitted"}`)
}

func TestListEvaluationsScopesByRole(t *testing.T) {
	f := newFixture(t)
	other := f.createUser("Lee Chan", "lee@acme.test", auth.RoleEmployee, "Sales", nil)
	mine := f.draftFor(f.employee)
	theirs, err := f.svc.CreateDraft(f.ctx, f.hrActor, CreateDraftInput{EmployeeID: other.ID})
	require.NoError(t, err)

	all, err := f.svc.ListEvaluations(f.ctx, f.hrActor, EvaluationFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	managed, err := f.svc.ListEvaluations(f.ctx, f.managerActor, EvaluationFilter{})
	require.NoError(t, err)
	require.Len(t, managed, 1)
	assert.Equal(t, mine.ID, managed[0].ID)

	own, err := f.svc.ListEvaluations(f.ctx, f.employeeActor, EvaluationFilter{})
	require.NoError(t, err)
	require.Len(t, own, 1)

	_, err = f.svc.ListEvaluations(f.ctx, f.employeeActor, EvaluationFilter{EmployeeID: other.ID})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.GetEvaluation(f.ctx, f.managerActor, theirs.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestLookupsAreCompanyScoped(t *testing.T) {
	f := newFixture(t)
	e := f.draftFor(f.employee)
	outsider := auth.Actor{UserID: "user-other", Role: auth.RoleHR, CompanyID: "company-other"}

	_, err := f.svc.GetEvaluation(f.ctx, outsider, e.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = f.svc.Reopen(f.ctx, outsider, e.ID, "x")
	assert.ErrorIs(t, err, ErrNotFound)
}
