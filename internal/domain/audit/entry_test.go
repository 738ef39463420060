package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfreview/internal/domain/auth"
	"perfreview/internal/requestctx"
)

func TestDiffReportsChangedAddedAndRemovedFields(t *testing.T) {
	before := json.RawMessage(`{"status":"submitted","overallRating":4,"gone":true}`)
	after := json.RawMessage(`{"status":"draft","overallRating":4,"isReopened":true}`)

	changes, err := Diff(before, after)
	require.NoError(t, err)

	require.Len(t, changes, 3)
	assert.JSONEq(t, `"submitted"`, string(changes["status"].Old))
	assert.JSONEq(t, `"draft"`, string(changes["status"].New))
	assert.JSONEq(t, `null`, string(changes["isReopened"].Old))
	assert.JSONEq(t, `true`, string(changes["gone"].Old))
	assert.NotContains(t, changes, "overallRating")
}

func TestDiffHandlesCreateAndDelete(t *testing.T) {
	created, err := Diff(nil, json.RawMessage(`{"name":"Q1"}`))
	require.NoError(t, err)
	assert.Len(t, created, 1)

	deleted, err := Diff(json.RawMessage(`{"name":"Q1"}`), nil)
	require.NoError(t, err)
	assert.JSONEq(t, `null`, string(deleted["name"].New))
}

func TestDiffIgnoresWhitespace(t *testing.T) {
	changes, err := Diff(json.RawMessage(`{"items":[1, 2]}`), json.RawMessage(`{"items":[1,2]}`))
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestNewEntryCarriesRequestMetadata(t *testing.T) {
	ctx := requestctx.WithRequestID(context.Background(), "req-9")
	ctx = requestctx.WithClient(ctx, requestctx.Client{IP: "203.0.113.5", UserAgent: "test-agent"})
	actor := auth.Actor{UserID: "u1", Role: auth.RoleHR, CompanyID: "c1", SessionID: "sess-1"}

	entry, err := NewEntry(ctx, actor, ActionArchive, EntityUser, "u2",
		map[string]any{"active": true}, map[string]any{"active": false}, "left company")
	require.NoError(t, err)

	assert.Equal(t, "u1", entry.UserID)
	assert.Equal(t, "hr", entry.UserRole)
	assert.Equal(t, "c1", entry.CompanyID)
	assert.Equal(t, "req-9", entry.RequestID)
	assert.Equal(t, "203.0.113.5", entry.IPAddress)
	assert.Equal(t, "sess-1", entry.SessionID)
	assert.Equal(t, "left company", entry.Reason)
	assert.JSONEq(t, `{"active":{"old":true,"new":false}}`, string(entry.Changes))
}

func TestFilterMatch(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := Entry{Action: ActionSubmit, EntityType: EntityEvaluation, EntityID: "e1", UserID: "u1", CreatedAt: now}

	from := now.Add(-time.Hour)
	to := now.Add(time.Hour)
	assert.True(t, Filter{Action: "submit", EntityType: "evaluation", UserID: "u1", From: &from, To: &to}.Match(entry))
	assert.False(t, Filter{Action: "reopen"}.Match(entry))
	assert.False(t, Filter{To: &now}.Match(entry), "upper bound is exclusive")
	assert.False(t, Filter{EntityID: "e2"}.Match(entry))
}

func TestBuildBaseQueryNumbersPlaceholders(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	query, args := buildBaseQuery("SELECT COUNT(1)", "c1", Filter{Action: "archive", UserID: "u1", From: &from})

	assert.Equal(t, "SELECT COUNT(1) FROM audit_logs WHERE company_id = $1 AND action = $2 AND user_id::text = $3 AND created_at >= $4", query)
	assert.Equal(t, []any{"c1", "archive", "u1", from}, args)
}
