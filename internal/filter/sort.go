package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// SortKey is one caller-specified sort criterion.
type SortKey struct {
	Field string
	Desc  bool
}

// SortOrder is an ordered list of sort criteria.
type SortOrder []SortKey

// ParseSortOrder decodes the wire-shape sort object ({"date": 1,
// "filename": -1}, Mongo convention). Key order is significant, so the
// object is walked with a token decoder rather than unmarshaled into a map.
// An empty or null sort parses to nil.
func ParseSortOrder(raw []byte) (SortOrder, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("malformed sort order: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("sort order must be a JSON object")
	}

	var order SortOrder
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("malformed sort order: %w", err)
		}
		field := keyTok.(string)

		valTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("malformed sort order: %w", err)
		}
		num, ok := valTok.(json.Number)
		if !ok {
			return nil, fmt.Errorf("sort direction for %q must be 1 or -1", field)
		}
		dir, err := num.Int64()
		if err != nil || (dir != 1 && dir != -1) {
			return nil, fmt.Errorf("sort direction for %q must be 1 or -1", field)
		}

		order = append(order, SortKey{Field: field, Desc: dir == -1})
	}

	return order, nil
}

// CompileSort renders the ORDER BY column list. The record id is always
// appended ascending as the final tiebreaker: without it, offset pagination
// is not stable across calls when sort keys tie.
func CompileSort(order SortOrder) (string, error) {
	var parts []string
	for _, key := range order {
		info, ok := fields[key.Field]
		if !ok {
			return "", fmt.Errorf("unknown sort field %q", key.Field)
		}
		if info.kind == kindArray {
			return "", fmt.Errorf("cannot sort on array field %q", key.Field)
		}
		direction := "ASC"
		if key.Desc {
			direction = "DESC"
		}
		parts = append(parts, info.column+" "+direction)
	}

	parts = append(parts, "id ASC")
	return strings.Join(parts, ", "), nil
}
