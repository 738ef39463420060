package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func itemIDs(items []EvaluationItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}

func TestResolverListsSharedItemOnce(t *testing.T) {
	f := newFixture(t)
	shared := f.createItem("Forecast accuracy", ItemLevelDepartment, strPtr("Finance"))
	_, _, err := f.svc.AssignItem(f.ctx, f.hrActor, shared.ID, []string{f.employee.ID})
	require.NoError(t, err)

	items, err := f.svc.ResolveItems(f.ctx, f.hrActor, f.employee.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{shared.ID}, itemIDs(items))
}

func TestResolverOrdersCompanyDepartmentIndividual(t *testing.T) {
	f := newFixture(t)
	individual, _, err := f.svc.CreateItem(f.ctx, f.hrActor, ItemInput{Title: "A individual", Type: ItemTypeOKR, Level: ItemLevelManager, AssignedTo: &f.manager.ID})
	require.NoError(t, err)
	department, _, err := f.svc.CreateItem(f.ctx, f.hrActor, ItemInput{Title: "B department", Type: ItemTypeOKR, Level: ItemLevelDepartment, AssignedTo: strPtr("Finance"), SortOrder: -1})
	require.NoError(t, err)
	late, _, err := f.svc.CreateItem(f.ctx, f.hrActor, ItemInput{Title: "C company", Type: ItemTypeOKR, Level: ItemLevelCompany, SortOrder: 2})
	require.NoError(t, err)
	early, _, err := f.svc.CreateItem(f.ctx, f.hrActor, ItemInput{Title: "D company", Type: ItemTypeOKR, Level: ItemLevelCompany, SortOrder: 1})
	require.NoError(t, err)
	_, _, err = f.svc.AssignItem(f.ctx, f.hrActor, individual.ID, []string{f.employee.ID})
	require.NoError(t, err)

	items, err := f.svc.ResolveItems(f.ctx, f.employeeActor, f.employee.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{early.ID, late.ID, department.ID, individual.ID}, itemIDs(items))
}

func TestResolverSkipsInactiveAndArchivedItems(t *testing.T) {
	f := newFixture(t)
	kept := f.createItem("Close books on time", ItemLevelCompany, nil)
	inactive := f.createItem("Legacy KPI", ItemLevelCompany, nil)
	archived := f.createItem("Old OKR", ItemLevelDepartment, strPtr("Finance"))
	assigned := f.createItem("Side project", ItemLevelManager, &f.manager.ID)

	_, _, err := f.svc.SetItemActive(f.ctx, f.hrActor, inactive.ID, false)
	require.NoError(t, err)
	_, _, err = f.svc.ArchiveItem(f.ctx, f.hrActor, archived.ID, "retired")
	require.NoError(t, err)
	_, _, err = f.svc.AssignItem(f.ctx, f.hrActor, assigned.ID, []string{f.employee.ID})
	require.NoError(t, err)
	_, _, err = f.svc.SetItemActive(f.ctx, f.hrActor, assigned.ID, false)
	require.NoError(t, err)

	items, err := f.svc.ResolveItems(f.ctx, f.hrActor, f.employee.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{kept.ID}, itemIDs(items))
}

func TestResolveItemsRespectsVisibility(t *testing.T) {
	f := newFixture(t)
	other := f.createUser("Lee Chan", "lee@acme.test", "employee", "Sales", nil)

	_, err := f.svc.ResolveItems(f.ctx, f.employeeActor, other.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}
