// Package filter turns externally supplied filter expressions into the
// record store's native query form.
//
// The wire shape is a JSON object of $and/$or groupings over
// field-comparison leaves. Leaf string values may be placeholder-encoded
// (__DATE-…, __ARRAY_INCLUDES_ITEM-…, __ARRAY_INCLUDES_ARRAY_AND-…,
// __ARRAY_INCLUDES_ARRAY_OR-…); Resolve decodes those, rewrites the virtual
// "unsorted" collection into an or-with-empty-array clause, and applies the
// (currently inert) folder-search rewrite, in that fixed order. Compile and
// CompileSort then render SQL for the photo table.
package filter
