package audithandler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"perfreview/internal/domain/audit"
	"perfreview/internal/domain/auth"
	"perfreview/internal/transport/http/middleware"
)

type fakeReader struct {
	entries []audit.Entry
}

func (f fakeReader) Count(_ context.Context, companyID string, filter audit.Filter) (int, error) {
	n := 0
	for _, e := range f.entries {
		if e.CompanyID == companyID && filter.Match(e) {
			n++
		}
	}
	return n, nil
}

func (f fakeReader) List(_ context.Context, companyID string, filter audit.Filter, _ bool, limit, offset int) ([]audit.Entry, error) {
	var out []audit.Entry
	for _, e := range f.entries {
		if e.CompanyID == companyID && filter.Match(e) {
			out = append(out, e)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	at := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	reader := fakeReader{entries: []audit.Entry{
		{ID: "a1", CompanyID: "c1", CreatedAt: at, UserID: "hr", Action: audit.ActionCreate, EntityType: audit.EntityEvaluation, EntityID: "e1"},
		{ID: "a2", CompanyID: "c1", CreatedAt: at, UserID: "hr", Action: audit.ActionReopen, EntityType: audit.EntityEvaluation, EntityID: "e1", Reason: "calibration"},
		{ID: "a3", CompanyID: "c2", CreatedAt: at, UserID: "other", Action: audit.ActionCreate, EntityType: audit.EntityUser, EntityID: "u1"},
	}}
	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := middleware.WithActor(r.Context(), auth.Actor{UserID: "hr", CompanyID: "c1", Role: auth.RoleHR})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	NewHandler(audit.NewService(reader), zaptest.NewLogger(t)).RegisterRoutes(router)
	return router
}

func TestExportCSVScopesToCompany(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit/export", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "id,created_at"))
	assert.Contains(t, lines[2], "calibration")
	assert.NotContains(t, rec.Body.String(), "a3")
}

func TestExportAppliesFilter(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit/export?format=csv&action=reopen", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "a2,"))
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit/export?format=xlsx", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRejectsBadDates(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit?from=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	newRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit?from=2025-03-01&to=2025-02-01", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	newRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit?entityId=e1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-Total-Count"))
}

func TestListRangeBoundsAreInclusive(t *testing.T) {
	cases := []struct {
		query string
		total string
	}{
		{"from=2025-02-01&to=2025-02-01", "2"},
		{"from=2025-01-31&to=2025-02-01&action=reopen", "1"},
		{"to=2025-02-01T10:00:00Z", "2"},
		{"to=2025-02-01T09:59:59Z", "0"},
		{"from=2025-02-01T10:00:00Z", "2"},
		{"from=2025-02-02", "0"},
		{"to=2025-01-31", "0"},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit?"+tc.query, nil))
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tc.total, rec.Header().Get("X-Total-Count"))
		})
	}
}

func TestExportSameDayRange(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit/export?from=2025-02-01&to=2025-02-01", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 3)
}
