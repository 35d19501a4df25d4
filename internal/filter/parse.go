package filter

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Parse decodes the external wire-shape filter (a JSON object with $and/$or
// groupings of field-comparison leaves) into the expression tree. An empty,
// null, or absent filter parses to a match-all expression.
//
// Object keys within one level are an implicit AND, so they are processed in
// sorted order to keep the parse (and therefore the canonical cursor key)
// deterministic.
func Parse(raw []byte) (Expr, error) {
	if len(raw) == 0 {
		return MatchAll(), nil
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("malformed filter: %w", err)
	}
	if doc == nil {
		return MatchAll(), nil
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("filter must be a JSON object, got %T", doc)
	}

	return parseObject(obj)
}

func parseObject(obj map[string]any) (Expr, error) {
	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var children []Expr
	for _, key := range keys {
		value := obj[key]
		switch key {
		case string(GroupAnd), string(GroupOr):
			group, err := parseGroup(GroupOp(key), value)
			if err != nil {
				return nil, err
			}
			children = append(children, group)
		default:
			leaves, err := parseField(key, value)
			if err != nil {
				return nil, err
			}
			children = append(children, leaves...)
		}
	}

	if len(children) == 1 {
		return children[0], nil
	}
	return &Group{Op: GroupAnd, Children: children}, nil
}

func parseGroup(op GroupOp, value any) (Expr, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("%s expects an array", op)
	}

	group := &Group{Op: op}
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s elements must be objects", op)
		}
		child, err := parseObject(obj)
		if err != nil {
			return nil, err
		}
		group.Children = append(group.Children, child)
	}
	return group, nil
}

// parseField handles one "field: value" entry. A scalar value is an equality
// test; an object value carries explicit comparison operators.
func parseField(field string, value any) ([]Expr, error) {
	obj, isObject := value.(map[string]any)
	if !isObject {
		return []Expr{&Leaf{Field: field, Op: OpEq, Value: value}}, nil
	}

	ops := make([]string, 0, len(obj))
	for op := range obj {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	var leaves []Expr
	for _, op := range ops {
		leaf, err := parseOperator(field, op, obj[op])
		if err != nil {
			return nil, err
		}
		leaves = append(leaves, leaf)
	}
	return leaves, nil
}

func parseOperator(field, op string, value any) (Expr, error) {
	switch LeafOp(op) {
	case OpEq:
		if arr, ok := value.([]any); ok && len(arr) == 0 {
			return &Leaf{Field: field, Op: OpEmptyArray}, nil
		}
		return &Leaf{Field: field, Op: OpEq, Value: value}, nil
	case OpNe, OpLt, OpLte, OpGt, OpGte:
		return &Leaf{Field: field, Op: LeafOp(op), Value: value}, nil
	case OpIn:
		arr, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("%s.$in expects an array", field)
		}
		return &Leaf{Field: field, Op: OpIn, Value: arr}, nil
	case OpExists:
		flag, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%s.$exists expects a boolean", field)
		}
		return &Leaf{Field: field, Op: OpExists, Value: flag}, nil
	case "$elemMatch":
		return parseElemMatch(field, value)
	default:
		return nil, fmt.Errorf("unsupported operator %s on field %s", op, field)
	}
}

// parseElemMatch supports the literal spellings of the array-membership
// predicates that placeholder decoding also produces.
func parseElemMatch(field string, value any) (Expr, error) {
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s.$elemMatch expects an object", field)
	}

	if eq, present := obj[string(OpEq)]; present {
		return &Leaf{Field: field, Op: OpContains, Value: eq}, nil
	}
	if all, present := obj["$all"]; present {
		arr, ok := all.([]any)
		if !ok {
			return nil, fmt.Errorf("%s.$elemMatch.$all expects an array", field)
		}
		return &Leaf{Field: field, Op: OpContainsAll, Value: arr}, nil
	}
	if in, present := obj[string(OpIn)]; present {
		arr, ok := in.([]any)
		if !ok {
			return nil, fmt.Errorf("%s.$elemMatch.$in expects an array", field)
		}
		return &Leaf{Field: field, Op: OpContainsAny, Value: arr}, nil
	}

	return nil, fmt.Errorf("%s.$elemMatch needs one of $eq, $all, $in", field)
}
