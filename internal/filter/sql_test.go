package filter

import (
	"strings"
	"testing"
)

func mustResolve(t *testing.T, raw string) Expr {
	t.Helper()
	expr, err := Resolve([]byte(raw))
	if err != nil {
		t.Fatalf("Resolve(%s) returned error: %v", raw, err)
	}
	return expr
}

func TestCompileMatchAll(t *testing.T) {
	t.Parallel()

	q, err := Compile(MatchAll())
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	if q.Where != "" || len(q.Args) != 0 {
		t.Errorf("match-all should compile empty, got %q with %v", q.Where, q.Args)
	}
}

func TestCompileLeaves(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		raw      string
		wantSQL  string
		wantArgs int
	}{
		{
			"scalar equality",
			`{"rating": 5}`,
			"rating = ?",
			1,
		},
		{
			"field alias",
			`{"fullname": "/photos/a.jpg"}`,
			"path = ?",
			1,
		},
		{
			"null equality",
			`{"width": null}`,
			"width IS NULL",
			0,
		},
		{
			"exists",
			`{"width": {"$exists": true}}`,
			"width IS NOT NULL",
			0,
		},
		{
			"scalar in",
			`{"extension": {"$in": [".jpg", ".png"]}}`,
			"extension IN (?,?)",
			2,
		},
		{
			"array contains",
			`{"tags": "__ARRAY_INCLUDES_ITEM-\"beach\""}`,
			"EXISTS (SELECT 1 FROM json_each(tags) WHERE json_each.value = ?)",
			1,
		},
		{
			"empty array",
			`{"collections": {"$eq": []}}`,
			"json_array_length(collections) = 0",
			0,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			q, err := Compile(mustResolve(t, tc.raw))
			if err != nil {
				t.Fatalf("Compile returned error: %v", err)
			}
			if q.Where != tc.wantSQL {
				t.Errorf("got SQL %q, want %q", q.Where, tc.wantSQL)
			}
			if len(q.Args) != tc.wantArgs {
				t.Errorf("got %d args, want %d", len(q.Args), tc.wantArgs)
			}
		})
	}
}

func TestCompileContainsAllJoinsWithAnd(t *testing.T) {
	t.Parallel()

	q, err := Compile(mustResolve(t, `{"tags": "__ARRAY_INCLUDES_ARRAY_AND-[\"a\",\"b\"]"}`))
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	if strings.Count(q.Where, "EXISTS") != 2 || !strings.Contains(q.Where, " AND ") {
		t.Errorf("contains-all should AND two EXISTS clauses, got %q", q.Where)
	}
	if len(q.Args) != 2 {
		t.Errorf("got %d args, want 2", len(q.Args))
	}
}

func TestCompileInOnArrayFieldMeansContainsAny(t *testing.T) {
	t.Parallel()

	q, err := Compile(mustResolve(t, `{"collections": {"$in": ["general", "favorites"]}}`))
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	if !strings.Contains(q.Where, "json_each(collections)") || !strings.Contains(q.Where, "IN (?,?)") {
		t.Errorf("$in on array field should test element membership, got %q", q.Where)
	}
}

func TestCompileDateComparisonBindsMillis(t *testing.T) {
	t.Parallel()

	q, err := Compile(mustResolve(t, `{"date": {"$gte": "__DATE-1703785527694"}}`))
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	if q.Where != "taken_at >= ?" {
		t.Errorf("got SQL %q", q.Where)
	}
	if len(q.Args) != 1 || q.Args[0] != int64(1703785527694) {
		t.Errorf("got args %v, want [1703785527694]", q.Args)
	}
}

func TestCompileUnknownFieldFails(t *testing.T) {
	t.Parallel()

	_, err := Compile(&Leaf{Field: "nonsense", Op: OpEq, Value: 1})
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestCompileSortAlwaysBreaksTies(t *testing.T) {
	t.Parallel()

	orderBy, err := CompileSort(nil)
	if err != nil {
		t.Fatalf("CompileSort returned error: %v", err)
	}
	if orderBy != "id ASC" {
		t.Errorf("empty sort should still order by id, got %q", orderBy)
	}

	order, err := ParseSortOrder([]byte(`{"date": -1, "filename": 1}`))
	if err != nil {
		t.Fatalf("ParseSortOrder returned error: %v", err)
	}
	orderBy, err = CompileSort(order)
	if err != nil {
		t.Fatalf("CompileSort returned error: %v", err)
	}
	if orderBy != "taken_at DESC, filename ASC, id ASC" {
		t.Errorf("got %q", orderBy)
	}
}

func TestParseSortOrderPreservesKeyOrder(t *testing.T) {
	t.Parallel()

	order, err := ParseSortOrder([]byte(`{"filename": 1, "date": -1}`))
	if err != nil {
		t.Fatalf("ParseSortOrder returned error: %v", err)
	}
	if len(order) != 2 || order[0].Field != "filename" || order[1].Field != "date" {
		t.Errorf("key order not preserved: %#v", order)
	}
}

func TestCompileSortRejectsArrayFields(t *testing.T) {
	t.Parallel()

	if _, err := CompileSort(SortOrder{{Field: "tags"}}); err == nil {
		t.Fatal("expected error sorting on array field")
	}
}

func TestParseSortOrderRejectsBadDirections(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{`{"date": 0}`, `{"date": "desc"}`, `[1]`} {
		if _, err := ParseSortOrder([]byte(raw)); err == nil {
			t.Errorf("ParseSortOrder(%s) should fail", raw)
		}
	}
}
