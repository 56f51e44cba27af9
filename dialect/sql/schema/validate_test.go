package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateClean(t *testing.T) {
	r := Validate(usersSnapshot())
	assert.False(t, r.HasErrors())
	assert.False(t, r.HasWarnings())
	assert.Equal(t, "ok", r.String())
}

func TestValidateErrors(t *testing.T) {
	s := usersSnapshot()
	tbl, _ := s.Table("users")
	tbl.Columns = append(tbl.Columns,
		ColumnSnapshot{Name: "email", Type: "string"}, // duplicate
		ColumnSnapshot{Name: "mood", Type: "feeling"}, // unknown type
		ColumnSnapshot{Name: "id2", Type: "int", Primary: true, Nullable: true},
	)
	tbl.ForeignKeys = append(tbl.ForeignKeys,
		ForeignKeySnapshot{Column: "ghost", TargetTable: "users", TargetColumn: "id"},
		ForeignKeySnapshot{Column: "email", TargetTable: "nowhere", TargetColumn: "id"},
	)
	tbl.Indexes = append(tbl.Indexes, IndexSnapshot{Columns: []string{"missing"}})

	r := Validate(s)
	require.True(t, r.HasErrors())
	var messages []string
	for _, e := range r.Errors {
		messages = append(messages, e.Error())
	}
	assert.Contains(t, messages, "users.email: duplicate column")
	assert.Contains(t, messages, `users.mood: unknown type "feeling"`)
	assert.Contains(t, messages, "users.id2: primary key column cannot be nullable")
	assert.Contains(t, messages, "users.ghost: foreign key on unknown column")
	assert.Contains(t, messages, `users.email: foreign key references unknown table "nowhere"`)
	assert.Contains(t, messages, "users.missing: index on unknown column")
}

func TestValidateWarnsMissingPrimaryKey(t *testing.T) {
	s := New()
	s.Tables = []TableSnapshot{{
		Name:    "logs",
		Columns: []ColumnSnapshot{{Name: "line", Type: "string"}},
	}}
	r := Validate(s)
	assert.False(t, r.HasErrors())
	require.True(t, r.HasWarnings())
	assert.Contains(t, r.Warnings[0].Error(), "no primary key")
}

func TestDestructiveChanges(t *testing.T) {
	changes := []Change{
		AddTable{Table: TableSnapshot{Name: "tags"}},
		DropTable{Table: TableSnapshot{Name: "posts"}},
		DropColumn{Table: "users", Column: ColumnSnapshot{Name: "name"}},
		ModifyColumn{
			Table:   "users",
			From:    ColumnSnapshot{Name: "age", Type: "int"},
			To:      ColumnSnapshot{Name: "age", Type: "string"},
			Aspects: AspectType,
		},
		ModifyColumn{
			Table:   "users",
			From:    ColumnSnapshot{Name: "bio", Type: "string", Nullable: true},
			To:      ColumnSnapshot{Name: "bio", Type: "string"},
			Aspects: AspectNullable,
		},
	}
	warns := DestructiveChanges(changes)
	require.Len(t, warns, 3)
	assert.Contains(t, warns[0], "posts")
	assert.Contains(t, warns[1], "name")
	assert.Contains(t, warns[2], "changing type")
}
