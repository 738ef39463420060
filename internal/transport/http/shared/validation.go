package shared

import (
	"cmp"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"perfreview/internal/domain/review"
	"perfreview/internal/transport/http/api"
)

// ValidationIssue has the same shape as the domain's field issues so transport and service
// validation failures render identically.
type ValidationIssue = review.FieldIssue

// Validator collects request-shape problems before the service is called. Business rules stay
// in the service and surface as *review.ValidationError.
type Validator struct {
	issues []ValidationIssue
}

func NewValidator() *Validator {
	return &Validator{issues: make([]ValidationIssue, 0, 4)}
}

func (v *Validator) Add(field, reason string) {
	if v == nil {
		return
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return
	}
	v.issues = append(v.issues, ValidationIssue{Field: strings.TrimSpace(field), Reason: reason})
}

func (v *Validator) Required(field, value, reason string) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, reason)
	}
}

// Enum accepts an empty value; callers pair it with Required when the field is mandatory.
func (v *Validator) Enum(field, value string, allowed []string, reason string) {
	value = strings.TrimSpace(value)
	if value == "" || slices.Contains(allowed, value) {
		return
	}
	v.Add(field, reason)
}

// Count bounds the length of a list field.
func (v *Validator) Count(field string, n, min, max int) {
	switch {
	case n < min:
		v.Add(field, fmt.Sprintf("must contain at least %d %s", min, entries(min)))
	case max > 0 && n > max:
		v.Add(field, fmt.Sprintf("must contain at most %d %s", max, entries(max)))
	}
}

func entries(n int) string {
	if n == 1 {
		return "entry"
	}
	return "entries"
}

func (v *Validator) Date(field, raw string) (time.Time, bool) {
	parsed, err := ParseDate(raw)
	if err != nil || parsed.IsZero() {
		v.Add(field, "must be a valid date in YYYY-MM-DD format")
		return time.Time{}, false
	}
	return parsed, true
}

// Instant accepts a timestamp or a date; see ParseInstant.
func (v *Validator) Instant(field, raw string) (t time.Time, dateOnly, ok bool) {
	t, dateOnly, err := ParseInstant(raw)
	if err != nil {
		v.Add(field, "must be an RFC 3339 timestamp or a date in YYYY-MM-DD format")
		return time.Time{}, false, false
	}
	return t, dateOnly, true
}

func (v *Validator) DateOrder(startField string, start time.Time, endField string, end time.Time) {
	if start.IsZero() || end.IsZero() {
		return
	}
	if end.Before(start) {
		v.Add(startField, "must be on or before "+endField)
		v.Add(endField, "must be on or after "+startField)
	}
}

func (v *Validator) HasIssues() bool {
	return v != nil && len(v.issues) > 0
}

// Issues returns the collected issues ordered by field, then reason.
func (v *Validator) Issues() []ValidationIssue {
	if !v.HasIssues() {
		return nil
	}
	out := slices.Clone(v.issues)
	slices.SortStableFunc(out, func(a, b ValidationIssue) int {
		if c := cmp.Compare(a.Field, b.Field); c != 0 {
			return c
		}
		return cmp.Compare(a.Reason, b.Reason)
	})
	return out
}

// Reject writes a 400 envelope when issues were collected and reports whether it did.
func (v *Validator) Reject(w http.ResponseWriter, requestID string) bool {
	if !v.HasIssues() {
		return false
	}
	FailValidation(w, requestID, v.Issues())
	return true
}

func FailValidation(w http.ResponseWriter, requestID string, issues []ValidationIssue) {
	if issues == nil {
		issues = []ValidationIssue{}
	}
	api.FailWithDetails(w, http.StatusBadRequest, "validation_error", "payload validation failed",
		map[string]any{"fields": issues}, requestID)
}
