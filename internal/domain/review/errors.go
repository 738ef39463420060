package review

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"perfreview/internal/domain/auth"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrDuplicateEvaluation = errors.New("evaluation already exists for this period")
	ErrAlreadyArchived     = errors.New("already archived")
	ErrNotArchived         = errors.New("not archived")
	ErrForbidden           = auth.ErrForbidden
)

// IncompleteEvaluationError lists what blocks a forward transition.
type IncompleteEvaluationError struct {
	MissingItemIDs       []string
	MissingOverallRating bool
}

func (e *IncompleteEvaluationError) Error() string {
	parts := make([]string, 0, 2)
	if len(e.MissingItemIDs) > 0 {
		parts = append(parts, fmt.Sprintf("%d item(s) missing rating or comment", len(e.MissingItemIDs)))
	}
	if e.MissingOverallRating {
		parts = append(parts, "overall rating missing")
	}
	return "incomplete evaluation: " + strings.Join(parts, ", ")
}

// DependencyBlockedError is returned instead of cascading a delete or archive.
type DependencyBlockedError struct {
	Operation  string
	Dependents Dependents
}

func (e *DependencyBlockedError) Error() string {
	return fmt.Sprintf("%s blocked: %d evaluation(s), %d assignment(s), %d direct report(s)",
		e.Operation, e.Dependents.Evaluations, e.Dependents.Assignments, e.Dependents.DirectReports)
}

type FieldIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type ValidationError struct {
	Fields []FieldIssue
}

func (e *ValidationError) Error() string {
	reasons := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		reasons = append(reasons, f.Field+": "+f.Reason)
	}
	return "validation failed: " + strings.Join(reasons, "; ")
}

type validator struct {
	issues []FieldIssue
}

func (v *validator) add(field, reason string) {
	v.issues = append(v.issues, FieldIssue{Field: field, Reason: reason})
}

func (v *validator) required(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.add(field, "is required")
	}
}

func (v *validator) oneOf(field, value string, allowed []string) {
	for _, candidate := range allowed {
		if value == candidate {
			return
		}
	}
	v.add(field, "must be one of "+strings.Join(allowed, ", "))
}

func (v *validator) rating(field string, value *int) {
	if value != nil && (*value < RatingMin || *value > RatingMax) {
		v.add(field, fmt.Sprintf("must be between %d and %d", RatingMin, RatingMax))
	}
}

func (v *validator) err() error {
	if len(v.issues) == 0 {
		return nil
	}
	out := make([]FieldIssue, len(v.issues))
	copy(out, v.issues)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return &ValidationError{Fields: out}
}

func invalidTransition(op, from string) error {
	return fmt.Errorf("%w: cannot %s from %s", ErrInvalidTransition, op, from)
}
