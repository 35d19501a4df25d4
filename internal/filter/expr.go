package filter

import (
	"encoding/json"
	"time"
)

// GroupOp is a boolean grouping operator.
type GroupOp string

const (
	GroupAnd GroupOp = "$and"
	GroupOr  GroupOp = "$or"
)

// LeafOp is a field-comparison operator. The array operators apply only to
// array-valued fields (tags, collections).
type LeafOp string

const (
	OpEq     LeafOp = "$eq"
	OpNe     LeafOp = "$ne"
	OpLt     LeafOp = "$lt"
	OpLte    LeafOp = "$lte"
	OpGt     LeafOp = "$gt"
	OpGte    LeafOp = "$gte"
	OpIn     LeafOp = "$in"
	OpExists LeafOp = "$exists"

	// OpContains matches array fields containing one exact element.
	OpContains LeafOp = "$contains"
	// OpContainsAll matches array fields containing every listed element.
	OpContainsAll LeafOp = "$containsAll"
	// OpContainsAny matches array fields containing at least one listed element.
	OpContainsAny LeafOp = "$containsAny"
	// OpEmptyArray matches array fields that are exactly empty.
	OpEmptyArray LeafOp = "$empty"
)

// Expr is a node in the filter-expression tree: either a Group or a Leaf.
type Expr interface {
	isExpr()
}

// Group is a boolean combination of sub-expressions.
type Group struct {
	Op       GroupOp
	Children []Expr
}

func (*Group) isExpr() {}

// Leaf is a single field comparison.
type Leaf struct {
	Field string
	Op    LeafOp
	Value any
}

func (*Leaf) isExpr() {}

// MatchAll returns an expression matching every record.
func MatchAll() Expr {
	return &Group{Op: GroupAnd}
}

// Canonical returns a deterministic serialization of the expression, used to
// key persisted filter cursors. Two filters that parse to the same tree share
// one cursor regardless of how their wire form was spelled.
func Canonical(e Expr) string {
	data, err := json.Marshal(normalize(e))
	if err != nil {
		// Normalized nodes only contain marshalable values.
		return ""
	}
	return string(data)
}

func normalize(e Expr) any {
	switch node := e.(type) {
	case *Group:
		children := make([]any, 0, len(node.Children))
		for _, child := range node.Children {
			children = append(children, normalize(child))
		}
		return []any{string(node.Op), children}
	case *Leaf:
		return []any{node.Field, string(node.Op), normalizeValue(node.Value)}
	default:
		return nil
	}
}

func normalizeValue(v any) any {
	switch value := v.(type) {
	case time.Time:
		return value.UnixMilli()
	case []any:
		out := make([]any, 0, len(value))
		for _, item := range value {
			out = append(out, normalizeValue(item))
		}
		return out
	default:
		return value
	}
}
