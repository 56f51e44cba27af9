package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratumdb/stratum"
)

func TestBuildUpdate(t *testing.T) {
	tests := []struct {
		name  string
		spec  UpdateSpec
		query string
		args  []any
	}{
		{
			name: "basic",
			spec: UpdateSpec{
				Table: "users",
				Set:   Row{{Column: "name", Value: "b"}},
				Where: Eq("id", 7),
			},
			query: `UPDATE "users" SET "name" = $1 WHERE "id" = $2`,
			args:  []any{"b", 7},
		},
		{
			name: "now_sentinel_and_offset_continuation",
			spec: UpdateSpec{
				Table: "users",
				Set: Row{
					{Column: "name", Value: "b"},
					{Column: "updated_at", Value: NowValue},
					{Column: "age", Value: 30},
				},
				NowColumns: []string{"updated_at"},
				Where:      F("id", OpIn, []int{1, 2}),
			},
			query: `UPDATE "users" SET "name" = $1, "updated_at" = CURRENT_TIMESTAMP, "age" = $2 WHERE "id" IN ($3, $4)`,
			args:  []any{"b", 30, 1, 2},
		},
		{
			name: "returning",
			spec: UpdateSpec{
				Table:        "users",
				Set:          Row{{Column: "name", Value: "b"}},
				Where:        Eq("id", 7),
				ReturningAll: true,
			},
			query: `UPDATE "users" SET "name" = $1 WHERE "id" = $2 RETURNING *`,
			args:  []any{"b", 7},
		},
		{
			name: "always_false_or_allowed",
			spec: UpdateSpec{
				Table: "users",
				Set:   Row{{Column: "name", Value: "b"}},
				Where: Or{},
			},
			query: `UPDATE "users" SET "name" = $1 WHERE FALSE`,
			args:  []any{"b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, err := BuildUpdate(pg, tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.query, query)
			assert.Equal(t, tt.args, args)
		})
	}
}

// Whole-table mutation guard: a missing or vacuous WHERE fails before any
// SQL reaches the database.
func TestBuildUpdate_EmptyWhereRejected(t *testing.T) {
	set := Row{{Column: "name", Value: "b"}}
	for name, where := range map[string]Filter{
		"nil":              nil,
		"empty_and":        And{},
		"nested_empty_and": And{Filters: []Filter{And{}, And{}}},
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := BuildUpdate(pg, UpdateSpec{Table: "users", Set: set, Where: where})
			assert.True(t, stratum.IsQueryError(err))
		})
	}
}

func TestBuildDelete(t *testing.T) {
	query, args, err := BuildDelete(pg, DeleteSpec{Table: "users", Where: Eq("id", 7)})
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "users" WHERE "id" = $1`, query)
	assert.Equal(t, []any{7}, args)

	query, args, err = BuildDelete(pg, DeleteSpec{
		Table:        "users",
		Where:        Eq("id", 7),
		ReturningAll: true,
	})
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "users" WHERE "id" = $1 RETURNING *`, query)
	assert.Equal(t, []any{7}, args)
}

func TestBuildDelete_EmptyWhereRejected(t *testing.T) {
	for name, where := range map[string]Filter{
		"nil":       nil,
		"empty_and": And{},
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := BuildDelete(pg, DeleteSpec{Table: "users", Where: where})
			assert.True(t, stratum.IsQueryError(err))
		})
	}
}
