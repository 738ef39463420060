package shared

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePaginationClamps(t *testing.T) {
	v := NewValidator()
	req := httptest.NewRequest(http.MethodGet, "/?limit=900&offset=20", nil)
	assert.Equal(t, Pagination{Limit: 200, Offset: 20}, ParsePagination(req, v, 50, 200))
	assert.False(t, v.HasIssues())

	req = httptest.NewRequest(http.MethodGet, "/?limit=-1&offset=x", nil)
	assert.Equal(t, Pagination{Limit: 50}, ParsePagination(req, v, 50, 200))
	issues := v.Issues()
	require.Len(t, issues, 2)
	assert.Equal(t, "limit", issues[0].Field)
	assert.Equal(t, "offset", issues[1].Field)
}

func TestParseDateTruncatesTimestamps(t *testing.T) {
	got, err := ParseDate("2025-03-01T23:30:00-05:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseDate(" 2025-03-01 ")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseDate("03/01/2025")
	assert.Error(t, err)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", ClientIP(req))
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))
	require.NoError(t, DecodeJSON(req, &dst))
	assert.Equal(t, "x", dst.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nope":1}`))
	assert.Error(t, DecodeJSON(req, &dst))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	assert.ErrorIs(t, DecodeJSON(req, &dst), ErrEmptyBody)
}

func TestValidatorIssuesSorted(t *testing.T) {
	v := NewValidator()
	v.Required("name", " ", "is required")
	start, _ := v.Date("startDate", "2025-12-31")
	end, _ := v.Date("endDate", "2025-01-01")
	v.DateOrder("startDate", start, "endDate", end)

	issues := v.Issues()
	require.Len(t, issues, 3)
	assert.Equal(t, "endDate", issues[0].Field)
	assert.Equal(t, "name", issues[1].Field)
	assert.Equal(t, "startDate", issues[2].Field)
}

func TestValidatorCount(t *testing.T) {
	v := NewValidator()
	v.Count("ids", 0, 1, 3)
	v.Count("tags", 4, 1, 3)
	v.Count("ok", 2, 1, 3)

	issues := v.Issues()
	require.Len(t, issues, 2)
	assert.Equal(t, ValidationIssue{Field: "ids", Reason: "must contain at least 1 entry"}, issues[0])
	assert.Equal(t, ValidationIssue{Field: "tags", Reason: "must contain at most 3 entries"}, issues[1])
}

func TestParseInstant(t *testing.T) {
	got, dateOnly, err := ParseInstant("2025-03-01T10:15:30.5+02:00")
	require.NoError(t, err)
	assert.False(t, dateOnly)
	assert.Equal(t, time.Date(2025, 3, 1, 8, 15, 30, 500_000_000, time.UTC), got)

	got, dateOnly, err = ParseInstant("2025-03-01")
	require.NoError(t, err)
	assert.True(t, dateOnly)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), got)

	_, _, err = ParseInstant("yesterday")
	assert.Error(t, err)
}
