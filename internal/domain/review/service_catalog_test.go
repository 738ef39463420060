package review

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfreview/internal/domain/auth"
)

func TestArchiveItemTwiceChangesNothing(t *testing.T) {
	f := newFixture(t)
	item := f.createItem("Close books on time", ItemLevelCompany, nil)

	archived, _, err := f.svc.ArchiveItem(f.ctx, f.hrActor, item.ID, "retired")
	require.NoError(t, err)
	assert.False(t, archived.Active)
	require.NotNil(t, archived.ArchivedBy)
	assert.Equal(t, f.hr.ID, *archived.ArchivedBy)
	before := f.auditCount()

	_, _, err = f.svc.ArchiveItem(f.ctx, f.hrActor, item.ID, "retired again")
	assert.ErrorIs(t, err, ErrAlreadyArchived)

	current, err := f.svc.GetItem(f.ctx, f.hrActor, item.ID)
	require.NoError(t, err)
	assert.Equal(t, archived.UpdatedAt, current.UpdatedAt)
	assert.Equal(t, "retired", *current.ArchivedReason)
	assert.Equal(t, before, f.auditCount())
}

func TestUnarchiveItemStaysInactive(t *testing.T) {
	f := newFixture(t)
	item := f.createItem("Close books on time", ItemLevelCompany, nil)

	_, err := f.svc.UnarchiveItem(f.ctx, f.hrActor, item.ID)
	assert.ErrorIs(t, err, ErrNotArchived)

	_, _, err = f.svc.ArchiveItem(f.ctx, f.hrActor, item.ID, "retired")
	require.NoError(t, err)
	restored, err := f.svc.UnarchiveItem(f.ctx, f.hrActor, item.ID)
	require.NoError(t, err)
	assert.False(t, restored.Active)
	assert.Nil(t, restored.ArchivedAt)
	assert.Nil(t, restored.ArchivedBy)
	assert.Nil(t, restored.ArchivedReason)

	_, _, err = f.svc.SetItemActive(f.ctx, f.hrActor, item.ID, true)
	require.NoError(t, err)
}

func TestArchivedItemsLeaveTheCatalog(t *testing.T) {
	f := newFixture(t)
	kept := f.createItem("Close books on time", ItemLevelCompany, nil)
	gone := f.createItem("Legacy KPI", ItemLevelCompany, nil)
	_, _, err := f.svc.ArchiveItem(f.ctx, f.hrActor, gone.ID, "retired")
	require.NoError(t, err)

	items, err := f.svc.ListItems(f.ctx, f.employeeActor, ItemFilter{IncludeInactive: true})
	require.NoError(t, err)
	assert.Equal(t, []string{kept.ID}, itemIDs(items))

	_, _, err = f.svc.SetItemActive(f.ctx, f.hrActor, gone.ID, true)
	assert.ErrorIs(t, err, ErrInvalidTransition, "archived items must be unarchived first")
}

func TestSetItemDeadlineRecordsSetter(t *testing.T) {
	f := newFixture(t)
	item, _, err := f.svc.CreateItem(f.ctx, f.managerActor, ItemInput{Title: "Forecast accuracy", Type: ItemTypeOKR, Level: ItemLevelDepartment, AssignedTo: strPtr("Finance")})
	require.NoError(t, err)
	deadline := time.Date(2025, 11, 30, 0, 0, 0, 0, time.UTC)

	got, err := f.svc.SetItemDeadline(f.ctx, f.managerActor, item.ID, &deadline)
	require.NoError(t, err)
	assert.Equal(t, deadline, *got.EvaluationDeadline)
	assert.Equal(t, f.manager.ID, *got.DeadlineSetBy)

	cleared, err := f.svc.SetItemDeadline(f.ctx, f.hrActor, item.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, cleared.EvaluationDeadline)
	assert.Equal(t, f.hr.ID, *cleared.DeadlineSetBy)
}

func TestManagersEditOnlyTheirTeamItems(t *testing.T) {
	f := newFixture(t)
	companyItem := f.createItem("Close books on time", ItemLevelCompany, nil)
	other := f.createUser("Sam Ortiz", "sam@acme.test", auth.RoleManager, "Sales", nil)
	salesItem, _, err := f.svc.CreateItem(f.ctx, f.actorFor(other), ItemInput{Title: "Quota", Type: ItemTypeOKR, Level: ItemLevelDepartment, AssignedTo: strPtr("Sales")})
	require.NoError(t, err)

	_, err = f.svc.UpdateItem(f.ctx, f.managerActor, companyItem.ID, ItemPatch{Title: strPtr("Renamed")})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.UpdateItem(f.ctx, f.managerActor, salesItem.ID, ItemPatch{Title: strPtr("Renamed")})
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := f.svc.UpdateItem(f.ctx, f.actorFor(other), salesItem.ID, ItemPatch{Title: strPtr("Quarterly quota"), SortOrder: intPtr(3)})
	require.NoError(t, err)
	assert.Equal(t, "Quarterly quota", updated.Title)
	assert.Equal(t, 3, updated.SortOrder)
}

func TestCreateItemValidation(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.CreateItem(f.ctx, f.hrActor, ItemInput{Title: "", Type: "kpi", Level: ItemLevelDepartment})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 3)

	_, _, err = f.svc.CreateItem(f.ctx, f.hrActor, ItemInput{Title: "Vision", Type: ItemTypeOKR, Level: ItemLevelCompany, AssignedTo: strPtr("Finance")})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "assignedTo", verr.Fields[0].Field)
}

func TestDeleteItemKeepsSnapshots(t *testing.T) {
	f := newFixture(t)
	item := f.createItem("Side project", ItemLevelManager, &f.manager.ID)
	_, _, err := f.svc.AssignItem(f.ctx, f.hrActor, item.ID, []string{f.employee.ID})
	require.NoError(t, err)
	e := f.draftFor(f.employee)
	require.True(t, e.HasItem(item.ID))

	require.NoError(t, f.svc.DeleteItem(f.ctx, f.hrActor, item.ID))

	assignments, err := f.svc.ListAssignments(f.ctx, f.hrActor, AssignmentFilter{EmployeeID: f.employee.ID})
	require.NoError(t, err)
	assert.Empty(t, assignments)
	assert.True(t, f.evaluation(e.ID).HasItem(item.ID))
	_, err = f.svc.GetItem(f.ctx, f.hrActor, item.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUnassignItem(t *testing.T) {
	f := newFixture(t)
	item := f.createItem("Side project", ItemLevelManager, &f.manager.ID)
	_, _, err := f.svc.AssignItem(f.ctx, f.managerActor, item.ID, []string{f.employee.ID})
	require.NoError(t, err)

	require.NoError(t, f.svc.UnassignItem(f.ctx, f.managerActor, item.ID, f.employee.ID))
	assert.ErrorIs(t, f.svc.UnassignItem(f.ctx, f.managerActor, item.ID, f.employee.ID), ErrNotFound)

	_, _, err = f.svc.AssignItem(f.ctx, f.managerActor, item.ID, []string{f.hr.ID})
	assert.ErrorIs(t, err, ErrForbidden, "managers assign only to their reports")
}
