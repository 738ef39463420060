package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"perfreview/internal/domain/auth"
	"perfreview/internal/requestctx"
)

// Change is the before/after value of one top-level field.
type Change struct {
	Old json.RawMessage `json:"old"`
	New json.RawMessage `json:"new"`
}

// NewEntry builds an entry for a mutation. before/after are serialized as-is; nil means
// the entity did not exist on that side of the mutation.
func NewEntry(ctx context.Context, actor auth.Actor, action Action, entityType EntityType, entityID string, before, after any, reason string) (Entry, error) {
	oldJSON, err := marshalOptional(before)
	if err != nil {
		return Entry{}, fmt.Errorf("audit old data: %w", err)
	}
	newJSON, err := marshalOptional(after)
	if err != nil {
		return Entry{}, fmt.Errorf("audit new data: %w", err)
	}
	changes, err := Diff(oldJSON, newJSON)
	if err != nil {
		return Entry{}, fmt.Errorf("audit diff: %w", err)
	}
	var changesJSON json.RawMessage
	if len(changes) > 0 {
		changesJSON, err = json.Marshal(changes)
		if err != nil {
			return Entry{}, err
		}
	}

	client := requestctx.GetClient(ctx)
	sessionID := client.SessionID
	if sessionID == "" {
		sessionID = actor.SessionID
	}
	return Entry{
		UserID:     actor.UserID,
		UserRole:   string(actor.Role),
		CompanyID:  actor.CompanyID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		OldData:    oldJSON,
		NewData:    newJSON,
		Changes:    changesJSON,
		Reason:     reason,
		IPAddress:  client.IP,
		UserAgent:  client.UserAgent,
		SessionID:  sessionID,
		RequestID:  requestctx.GetRequestID(ctx),
	}, nil
}

// Diff compares the top-level fields of two JSON objects.
func Diff(before, after json.RawMessage) (map[string]Change, error) {
	oldFields, err := objectFields(before)
	if err != nil {
		return nil, err
	}
	newFields, err := objectFields(after)
	if err != nil {
		return nil, err
	}

	out := map[string]Change{}
	for key, oldValue := range oldFields {
		newValue, ok := newFields[key]
		if !ok {
			out[key] = Change{Old: oldValue, New: json.RawMessage("null")}
			continue
		}
		if !jsonEqual(oldValue, newValue) {
			out[key] = Change{Old: oldValue, New: newValue}
		}
	}
	for key, newValue := range newFields {
		if _, ok := oldFields[key]; !ok {
			out[key] = Change{Old: json.RawMessage("null"), New: newValue}
		}
	}
	return out, nil
}

func marshalOptional(value any) (json.RawMessage, error) {
	if value == nil {
		return nil, nil
	}
	return json.Marshal(value)
}

func objectFields(raw json.RawMessage) (map[string]json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return fields, nil
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func jsonEqual(a, b json.RawMessage) bool {
	var left, right bytes.Buffer
	if err := json.Compact(&left, a); err != nil {
		return bytes.Equal(a, b)
	}
	if err := json.Compact(&right, b); err != nil {
		return bytes.Equal(a, b)
	}
	return bytes.Equal(left.Bytes(), right.Bytes())
}
