package filter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// placeholderMarker starts every placeholder-encoded string value. The full
// form is __KEYWORD-payload.
const placeholderMarker = "__"

type placeholderKeyword string

const (
	keywordDate              placeholderKeyword = "DATE"
	keywordArrayIncludesItem placeholderKeyword = "ARRAY_INCLUDES_ITEM"
	keywordArrayIncludesAll  placeholderKeyword = "ARRAY_INCLUDES_ARRAY_AND"
	keywordArrayIncludesAny  placeholderKeyword = "ARRAY_INCLUDES_ARRAY_OR"
)

// ResolvePlaceholders walks the expression tree and decodes placeholder
// strings into concrete values. A decoded membership predicate also rewrites
// the leaf's operator (e.g. tags = "__ARRAY_INCLUDES_ITEM-..." becomes an
// array-contains comparison). Strings with an unrecognized keyword pass
// through unchanged.
func ResolvePlaceholders(e Expr) (Expr, error) {
	switch node := e.(type) {
	case *Group:
		for i, child := range node.Children {
			resolved, err := ResolvePlaceholders(child)
			if err != nil {
				return nil, err
			}
			node.Children[i] = resolved
		}
		return node, nil
	case *Leaf:
		return resolveLeaf(node)
	default:
		return e, nil
	}
}

func resolveLeaf(leaf *Leaf) (Expr, error) {
	switch value := leaf.Value.(type) {
	case string:
		decoded, op, err := decodePlaceholder(value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", leaf.Field, err)
		}
		leaf.Value = decoded
		if op != "" {
			// The placeholder stood in for the whole comparison, so it
			// dictates the operator. Only an equality test can carry one.
			if leaf.Op != OpEq {
				return nil, fmt.Errorf("field %s: membership placeholder under %s", leaf.Field, leaf.Op)
			}
			leaf.Op = op
		}
	case []any:
		for i, item := range value {
			s, ok := item.(string)
			if !ok {
				continue
			}
			decoded, op, err := decodePlaceholder(s)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", leaf.Field, err)
			}
			if op != "" {
				return nil, fmt.Errorf("field %s: membership placeholder inside a value list", leaf.Field)
			}
			value[i] = decoded
		}
	}
	return leaf, nil
}

// decodePlaceholder returns the replacement value and, for membership
// keywords, the leaf operator the placeholder implies. Non-placeholder
// strings and unknown keywords come back unchanged.
func decodePlaceholder(s string) (any, LeafOp, error) {
	if !strings.HasPrefix(s, placeholderMarker) {
		return s, "", nil
	}

	sep := strings.Index(s, "-")
	if sep < len(placeholderMarker) {
		return s, "", nil
	}
	keyword := placeholderKeyword(s[len(placeholderMarker):sep])
	payload := s[sep+1:]

	switch keyword {
	case keywordDate:
		millis, err := strconv.ParseInt(payload, 10, 64)
		if err != nil {
			return nil, "", fmt.Errorf("bad DATE payload %q: %w", payload, err)
		}
		return time.UnixMilli(millis).UTC(), "", nil

	case keywordArrayIncludesItem:
		var item any
		if err := json.Unmarshal([]byte(payload), &item); err != nil {
			return nil, "", fmt.Errorf("bad ARRAY_INCLUDES_ITEM payload %q: %w", payload, err)
		}
		return item, OpContains, nil

	case keywordArrayIncludesAll:
		items, err := decodeArrayPayload(payload)
		if err != nil {
			return nil, "", fmt.Errorf("bad ARRAY_INCLUDES_ARRAY_AND payload %q: %w", payload, err)
		}
		return items, OpContainsAll, nil

	case keywordArrayIncludesAny:
		items, err := decodeArrayPayload(payload)
		if err != nil {
			return nil, "", fmt.Errorf("bad ARRAY_INCLUDES_ARRAY_OR payload %q: %w", payload, err)
		}
		return items, OpContainsAny, nil

	default:
		return s, "", nil
	}
}

func decodeArrayPayload(payload string) ([]any, error) {
	var items []any
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return nil, err
	}
	return items, nil
}
