package filter

// The "unsorted" collection is virtual: it is never stored on a record.
// A photo is unsorted exactly when its collections array is empty, so a
// clause asserting membership in "unsorted" must also match the empty array.
const unsortedCollection = "unsorted"

// ResolveUnsortedCollection rewrites every clause asserting "collections
// contains 'unsorted'" into an OR of that clause and "collections is exactly
// empty".
func ResolveUnsortedCollection(e Expr) Expr {
	switch node := e.(type) {
	case *Group:
		for i, child := range node.Children {
			node.Children[i] = ResolveUnsortedCollection(child)
		}
		return node
	case *Leaf:
		if !mentionsUnsorted(node) {
			return node
		}
		return &Group{Op: GroupOr, Children: []Expr{
			node,
			&Leaf{Field: node.Field, Op: OpEmptyArray},
		}}
	default:
		return e
	}
}

func mentionsUnsorted(leaf *Leaf) bool {
	if leaf.Field != "collections" {
		return false
	}
	switch leaf.Op {
	case OpContains:
		return leaf.Value == unsortedCollection
	case OpIn, OpContainsAny, OpContainsAll:
		values, ok := leaf.Value.([]any)
		if !ok {
			return false
		}
		for _, v := range values {
			if v == unsortedCollection {
				return true
			}
		}
	}
	return false
}

// ResolveFolderSearch is a reserved hook for letting folder clauses
// short-circuit all other criteria. It is intentionally inert: the behavior
// was prototyped upstream and then disabled, but the hook keeps its slot in
// the resolution order so enabling it cannot reorder the rewrites.
func ResolveFolderSearch(e Expr) Expr {
	return e
}

// Resolve parses the wire-shape filter and applies the full resolution
// pipeline in its fixed order: placeholders, then the unsorted-collection
// rewrite, then the folder-search rewrite. Later rewrites assume placeholder
// values are already concrete.
func Resolve(raw []byte) (Expr, error) {
	expr, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	expr, err = ResolvePlaceholders(expr)
	if err != nil {
		return nil, err
	}
	expr = ResolveUnsortedCollection(expr)
	expr = ResolveFolderSearch(expr)
	return expr, nil
}
