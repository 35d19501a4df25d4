package filter

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Query is the store's native form of a resolved filter: a SQL boolean
// expression over the photo table's columns plus its bind arguments. An
// empty Where matches every record.
type Query struct {
	Where string
	Args  []any
}

type fieldKind int

const (
	kindScalar fieldKind = iota
	kindTime
	kindArray
)

type fieldInfo struct {
	column string
	kind   fieldKind
}

// fields maps wire-shape field names onto photo columns. Both the original
// document field names and their camelCase record spellings are accepted.
var fields = map[string]fieldInfo{
	"fullname":    {"path", kindScalar},
	"path":        {"path", kindScalar},
	"filename":    {"filename", kindScalar},
	"dirname":     {"dirname", kindScalar},
	"extension":   {"extension", kindScalar},
	"size":        {"size", kindScalar},
	"uid":         {"uid", kindScalar},
	"gid":         {"gid", kindScalar},
	"width":       {"width", kindScalar},
	"height":      {"height", kindScalar},
	"aspect":      {"aspect", kindScalar},
	"make":        {"make", kindScalar},
	"model":       {"model", kindScalar},
	"orientation": {"orientation", kindScalar},
	"rating":      {"rating", kindScalar},
	"fingerPrint": {"fingerprint", kindScalar},
	"fingerprint": {"fingerprint", kindScalar},
	"date":        {"taken_at", kindTime},
	"takenAt":     {"taken_at", kindTime},
	"missingAt":   {"missing_at", kindTime},
	"tags":        {"tags", kindArray},
	"collections": {"collections", kindArray},
}

// Compile translates a resolved expression into its SQL form. The expression
// must already have gone through Resolve: placeholder strings are treated as
// opaque literals here.
func Compile(e Expr) (*Query, error) {
	where, args, err := compileExpr(e)
	if err != nil {
		return nil, err
	}
	if where == "1=1" {
		where = ""
	}
	return &Query{Where: where, Args: args}, nil
}

func compileExpr(e Expr) (string, []any, error) {
	switch node := e.(type) {
	case *Group:
		return compileGroup(node)
	case *Leaf:
		return compileLeaf(node)
	default:
		return "", nil, fmt.Errorf("unknown expression node %T", e)
	}
}

func compileGroup(g *Group) (string, []any, error) {
	if len(g.Children) == 0 {
		return "1=1", nil, nil
	}

	joiner := " AND "
	if g.Op == GroupOr {
		joiner = " OR "
	}

	parts := make([]string, 0, len(g.Children))
	var args []any
	for _, child := range g.Children {
		sql, childArgs, err := compileExpr(child)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		args = append(args, childArgs...)
	}

	if len(parts) == 1 {
		return parts[0], args, nil
	}
	return "(" + strings.Join(parts, joiner) + ")", args, nil
}

func compileLeaf(leaf *Leaf) (string, []any, error) {
	info, ok := fields[leaf.Field]
	if !ok {
		return "", nil, fmt.Errorf("unknown filter field %q", leaf.Field)
	}

	switch leaf.Op {
	case OpEq, OpNe, OpLt, OpLte, OpGt, OpGte:
		return compileComparison(info, leaf)
	case OpIn:
		return compileIn(info, leaf)
	case OpExists:
		flag, _ := leaf.Value.(bool)
		if flag {
			return info.column + " IS NOT NULL", nil, nil
		}
		return info.column + " IS NULL", nil, nil
	case OpContains, OpContainsAll, OpContainsAny, OpEmptyArray:
		if info.kind != kindArray {
			return "", nil, fmt.Errorf("array predicate on scalar field %q", leaf.Field)
		}
		return compileArrayOp(info, leaf)
	default:
		return "", nil, fmt.Errorf("unsupported operator %s", leaf.Op)
	}
}

var comparisonOps = map[LeafOp]string{
	OpEq:  "=",
	OpNe:  "!=",
	OpLt:  "<",
	OpLte: "<=",
	OpGt:  ">",
	OpGte: ">=",
}

func compileComparison(info fieldInfo, leaf *Leaf) (string, []any, error) {
	if leaf.Value == nil {
		switch leaf.Op {
		case OpEq:
			return info.column + " IS NULL", nil, nil
		case OpNe:
			return info.column + " IS NOT NULL", nil, nil
		default:
			return "", nil, fmt.Errorf("cannot order against null on field %q", leaf.Field)
		}
	}

	// Equality against a whole array value compares the stored JSON text.
	if arr, ok := leaf.Value.([]any); ok && info.kind == kindArray && leaf.Op == OpEq {
		text, err := json.Marshal(arr)
		if err != nil {
			return "", nil, err
		}
		return info.column + " = ?", []any{string(text)}, nil
	}

	return fmt.Sprintf("%s %s ?", info.column, comparisonOps[leaf.Op]), []any{bindValue(leaf.Value)}, nil
}

func compileIn(info fieldInfo, leaf *Leaf) (string, []any, error) {
	values, ok := leaf.Value.([]any)
	if !ok {
		return "", nil, fmt.Errorf("$in on field %q expects an array", leaf.Field)
	}

	// Mongo's $in on an array field means "contains any of".
	if info.kind == kindArray {
		return compileArrayOp(info, &Leaf{Field: leaf.Field, Op: OpContainsAny, Value: values})
	}

	if len(values) == 0 {
		return "1=0", nil, nil
	}
	args := make([]any, 0, len(values))
	for _, v := range values {
		args = append(args, bindValue(v))
	}
	return fmt.Sprintf("%s IN (%s)", info.column, placeholders(len(values))), args, nil
}

func compileArrayOp(info fieldInfo, leaf *Leaf) (string, []any, error) {
	contains := fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(%s) WHERE json_each.value = ?)", info.column)

	switch leaf.Op {
	case OpEmptyArray:
		return fmt.Sprintf("json_array_length(%s) = 0", info.column), nil, nil

	case OpContains:
		return contains, []any{bindValue(leaf.Value)}, nil

	case OpContainsAll:
		values, ok := leaf.Value.([]any)
		if !ok {
			return "", nil, fmt.Errorf("contains-all on field %q expects an array", leaf.Field)
		}
		if len(values) == 0 {
			return "1=1", nil, nil
		}
		parts := make([]string, 0, len(values))
		args := make([]any, 0, len(values))
		for _, v := range values {
			parts = append(parts, contains)
			args = append(args, bindValue(v))
		}
		return "(" + strings.Join(parts, " AND ") + ")", args, nil

	case OpContainsAny:
		values, ok := leaf.Value.([]any)
		if !ok {
			return "", nil, fmt.Errorf("contains-any on field %q expects an array", leaf.Field)
		}
		if len(values) == 0 {
			return "1=0", nil, nil
		}
		args := make([]any, 0, len(values))
		for _, v := range values {
			args = append(args, bindValue(v))
		}
		sql := fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(%s) WHERE json_each.value IN (%s))",
			info.column, placeholders(len(values)))
		return sql, args, nil
	}

	return "", nil, fmt.Errorf("unsupported array operator %s", leaf.Op)
}

// bindValue converts tree values into driver-friendly bind arguments.
// Timestamps are stored as epoch milliseconds.
func bindValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UnixMilli()
	}
	return v
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
