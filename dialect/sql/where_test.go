package sql

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratumdb/stratum"
	"github.com/stratumdb/stratum/dialect"
)

var (
	pg   = dialect.PostgresDialect{}
	lite = dialect.SQLiteDialect{}
)

func TestCompileWhere_Comparisons(t *testing.T) {
	tests := []struct {
		name string
		f    Filter
		expr string
		args []any
	}{
		{"eq", Eq("name", "a"), `"name" = $1`, []any{"a"}},
		{"ne", F("name", OpNE, "a"), `"name" <> $1`, []any{"a"}},
		{"gt", F("age", OpGT, 18), `"age" > $1`, []any{18}},
		{"gte", F("age", OpGTE, 18), `"age" >= $1`, []any{18}},
		{"lt", F("age", OpLT, 18), `"age" < $1`, []any{18}},
		{"lte", F("age", OpLTE, 18), `"age" <= $1`, []any{18}},
		{"is_null", F("deleted_at", OpIsNull, true), `"deleted_at" IS NULL`, nil},
		{"is_not_null", F("deleted_at", OpIsNull, false), `"deleted_at" IS NOT NULL`, nil},
		{"in", F("id", OpIn, []int{1, 2, 3}), `"id" IN ($1, $2, $3)`, []any{1, 2, 3}},
		{"not_in", F("id", OpNotIn, []string{"a", "b"}), `"id" NOT IN ($1, $2)`, []any{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, args, err := CompileWhere(pg, tt.f, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.expr, expr)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestCompileWhere_Combinators(t *testing.T) {
	tests := []struct {
		name string
		f    Filter
		expr string
		n    int // expected parameter count
	}{
		{
			name: "implicit_and",
			f:    And{Filters: []Filter{Eq("a", 1), Eq("b", 2)}},
			expr: `"a" = $1 AND "b" = $2`,
			n:    2,
		},
		{
			name: "or_in_and_parenthesized",
			f: And{Filters: []Filter{
				Eq("a", 1),
				Or{Filters: []Filter{Eq("b", 2), Eq("c", 3)}},
			}},
			expr: `"a" = $1 AND ("b" = $2 OR "c" = $3)`,
			n:    3,
		},
		{
			name: "not_wraps",
			f:    Not{Filter: Or{Filters: []Filter{Eq("b", 2), Eq("c", 3)}}},
			expr: `NOT ("b" = $1 OR "c" = $2)`,
			n:    2,
		},
		{
			name: "single_child_unwrapped",
			f:    Or{Filters: []Filter{Eq("a", 1)}},
			expr: `"a" = $1`,
			n:    1,
		},
		{
			name: "deep_nesting",
			f: Or{Filters: []Filter{
				And{Filters: []Filter{Eq("a", 1), Eq("b", 2)}},
				Not{Filter: Eq("c", 3)},
			}},
			expr: `("a" = $1 AND "b" = $2) OR NOT ("c" = $3)`,
			n:    3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, args, err := CompileWhere(pg, tt.f, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.expr, expr)
			assert.Len(t, args, tt.n)
		})
	}
}

// The empty-set identities must hold even nested inside other combinators.
func TestCompileWhere_EmptySetIdentities(t *testing.T) {
	tests := []struct {
		name string
		f    Filter
		expr string
	}{
		{"in_empty", F("id", OpIn, []int{}), "FALSE"},
		{"not_in_empty", F("id", OpNotIn, []int{}), "TRUE"},
		{"or_empty", Or{}, "FALSE"},
		{"and_empty", And{}, "TRUE"},
		{
			"nested_or_empty",
			And{Filters: []Filter{Eq("a", 1), Or{}}},
			`"a" = $1 AND FALSE`,
		},
		{
			"nested_in_empty_under_not",
			Not{Filter: F("id", OpIn, []any{})},
			"NOT (FALSE)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, _, err := CompileWhere(pg, tt.f, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.expr, expr)
		})
	}
}

func TestCompileWhere_Offset(t *testing.T) {
	f := And{Filters: []Filter{Eq("a", 1), F("b", OpIn, []int{2, 3})}}

	expr, args, err := CompileWhere(pg, f, 0)
	require.NoError(t, err)
	assert.Equal(t, `"a" = $1 AND "b" IN ($2, $3)`, expr)
	assert.Len(t, args, 3)

	// An offset of k shifts every placeholder index by exactly k.
	expr, args, err = CompileWhere(pg, f, 7)
	require.NoError(t, err)
	assert.Equal(t, `"a" = $8 AND "b" IN ($9, $10)`, expr)
	assert.Len(t, args, 3)
}

func TestCompileWhere_PatternEscaping(t *testing.T) {
	t.Run("operators", func(t *testing.T) {
		for op, want := range map[Op]string{
			OpContains:   "%abc%",
			OpStartsWith: "abc%",
			OpEndsWith:   "%abc",
		} {
			expr, args, err := CompileWhere(pg, F("name", op, "abc"), 0)
			require.NoError(t, err)
			assert.Equal(t, `"name" LIKE $1 ESCAPE '\'`, expr)
			assert.Equal(t, []any{want}, args)
		}
	})

	t.Run("metacharacters", func(t *testing.T) {
		_, args, err := CompileWhere(pg, F("name", OpContains, `50%_off\`), 0)
		require.NoError(t, err)
		assert.Equal(t, []any{`%50\%\_off\\%`}, args)
	})

	t.Run("each_occurrence_escaped_once", func(t *testing.T) {
		in := `a%b_c\d%e`
		_, args, err := CompileWhere(pg, F("name", OpStartsWith, in), 0)
		require.NoError(t, err)
		got := args[0].(string)
		body := strings.TrimSuffix(got, "%")
		assert.Equal(t, `a\%b\_c\\d\%e`, body)
		// No unescaped metacharacter remains in the body.
		for i := 0; i < len(body); i++ {
			if body[i] == '%' || body[i] == '_' {
				require.Greater(t, i, 0)
				assert.Equal(t, byte('\\'), body[i-1])
			}
		}
	})

	t.Run("non_string_rejected", func(t *testing.T) {
		_, _, err := CompileWhere(pg, F("name", OpContains, 7), 0)
		assert.True(t, stratum.IsQueryError(err))
	})
}

func TestCompileWhere_JSONPath(t *testing.T) {
	expr, args, err := CompileWhere(pg, Eq("meta->theme->color", "dark"), 0)
	require.NoError(t, err)
	assert.Equal(t, `"meta"->'theme'->>'color' = $1`, expr)
	assert.Equal(t, []any{"dark"}, args)

	// Segment quote characters are escaped, not interpolated.
	expr, _, err = CompileWhere(pg, Eq("meta->it's", "x"), 0)
	require.NoError(t, err)
	assert.Equal(t, `"meta"->>'it''s' = $1`, expr)

	// The embedded dialect rejects path addressing before building SQL.
	_, _, err = CompileWhere(lite, Eq("meta->theme", "dark"), 0)
	assert.True(t, stratum.IsUnsupported(err))
}

func TestCompileWhere_ArrayOperators(t *testing.T) {
	for op, sym := range map[Op]string{
		OpArrayContains:    "@>",
		OpArrayContainedBy: "<@",
		OpArrayOverlaps:    "&&",
	} {
		expr, args, err := CompileWhere(pg, F("tags", op, []string{"go"}), 0)
		require.NoError(t, err)
		assert.Equal(t, `"tags" `+sym+` $1`, expr)
		require.Len(t, args, 1)

		_, _, err = CompileWhere(lite, F("tags", op, []string{"go"}), 0)
		assert.True(t, stratum.IsUnsupported(err))
	}
}

func TestCompileWhere_SQLitePlaceholders(t *testing.T) {
	f := And{Filters: []Filter{Eq("a", 1), F("b", OpIn, []int{2, 3})}}
	expr, args, err := CompileWhere(lite, f, 0)
	require.NoError(t, err)
	assert.Equal(t, "`a` = ? AND `b` IN (?, ?)", expr)
	assert.Len(t, args, 3)
}

func TestCompileWhere_Nil(t *testing.T) {
	expr, args, err := CompileWhere(pg, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, expr)
	assert.Empty(t, args)
}
