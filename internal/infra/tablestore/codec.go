package tablestore

import (
	"encoding/json"
	"fmt"
	"strings"

	"questionbank/internal/domain"
)

// encodeOmitting marshals v and drops the named top-level keys.
func encodeOmitting(v any, fields ...string) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return raw, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	for _, f := range fields {
		delete(obj, f)
	}
	return json.Marshal(obj)
}

func isEmptyBody(body string) bool {
	b := strings.TrimSpace(body)
	return b == "" || b == "[]"
}

// decodeList decodes a JSON array body. Empty bodies yield an empty slice.
func decodeList[T any](resource, body string) ([]T, error) {
	if isEmptyBody(body) {
		return []T{}, nil
	}
	var out []T
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil, &domain.DecodeError{Resource: resource, Body: domain.Snippet(body, snippetLen), Err: err}
	}
	return out, nil
}

// decodeFirst returns the first element of a JSON array body, or nil.
func decodeFirst[T any](resource, body string) (*T, error) {
	rows, err := decodeList[T](resource, body)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

// recoverID extracts the assigned identifier from an insert representation.
func recoverID(resource, body, idField string) (int, error) {
	rows, err := decodeList[map[string]json.RawMessage](resource, body)
	if err != nil {
		return 0, &domain.IDRecoveryError{Resource: resource, Body: domain.Snippet(body, snippetLen), Err: err}
	}
	if len(rows) == 0 {
		return 0, &domain.IDRecoveryError{Resource: resource, Body: domain.Snippet(body, snippetLen), Err: fmt.Errorf("empty representation")}
	}
	rawID, ok := rows[0][idField]
	if !ok {
		return 0, &domain.IDRecoveryError{Resource: resource, Body: domain.Snippet(body, snippetLen), Err: fmt.Errorf("field %s missing", idField)}
	}
	var id int
	if err := json.Unmarshal(rawID, &id); err != nil {
		return 0, &domain.IDRecoveryError{Resource: resource, Body: domain.Snippet(body, snippetLen), Err: err}
	}
	if id <= 0 {
		return 0, &domain.IDRecoveryError{Resource: resource, Body: domain.Snippet(body, snippetLen), Err: fmt.Errorf("non-positive id %d", id)}
	}
	return id, nil
}
