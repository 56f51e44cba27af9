package schema

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

func TestBootstrapSQLPostgres(t *testing.T) {
	stmts, err := BootstrapSQL(pg, usersSnapshot())
	require.NoError(t, err)
	require.Len(t, stmts, 4) // enum, users, index, posts

	assert.Equal(t, `CREATE TYPE "user_status" AS ENUM ('active', 'banned')`, stmts[0])
	assert.Equal(t,
		`CREATE TABLE "users" (`+
			`"id" bigint NOT NULL, `+
			`"email" varchar NOT NULL UNIQUE, `+
			`"name" varchar, `+
			`"status" "user_status" NOT NULL DEFAULT 'active', `+
			`"created_at" timestamptz NOT NULL DEFAULT CURRENT_TIMESTAMP, `+
			`PRIMARY KEY ("id"))`,
		stmts[1])
	assert.Equal(t, `CREATE INDEX "idx_users_name_created_at" ON "users" ("name", "created_at")`, stmts[2])
	assert.Contains(t, stmts[3], `FOREIGN KEY ("author_id") REFERENCES "users" ("id")`)
}

// The embedded profile has no enum types: enum columns become
// CHECK-constrained text and type declarations have no DDL at all.
func TestBootstrapSQLSQLite(t *testing.T) {
	stmts, err := BootstrapSQL(lite, usersSnapshot())
	require.NoError(t, err)
	require.Len(t, stmts, 3) // no CREATE TYPE

	assert.Contains(t, stmts[0], "`status` text CHECK (`status` IN ('active', 'banned'))")
	assert.NotContains(t, strings.Join(stmts, "\n"), "CREATE TYPE")
}

func TestMigrationSQLChanges(t *testing.T) {
	s := usersSnapshot()
	tests := []struct {
		name   string
		change Change
		want   string
	}{
		{
			name:   "drop_table",
			change: DropTable{Table: TableSnapshot{Name: "posts"}},
			want:   `DROP TABLE "posts"`,
		},
		{
			name:   "add_column",
			change: AddColumn{Table: "users", Column: ColumnSnapshot{Name: "age", Type: "int", Nullable: true}},
			want:   `ALTER TABLE "users" ADD COLUMN "age" integer`,
		},
		{
			name:   "drop_column",
			change: DropColumn{Table: "users", Column: ColumnSnapshot{Name: "age", Type: "int"}},
			want:   `ALTER TABLE "users" DROP COLUMN "age"`,
		},
		{
			name: "rename_column",
			change: RenameColumn{
				Table: "users",
				From:  ColumnSnapshot{Name: "name", Type: "string"},
				To:    ColumnSnapshot{Name: "full_name", Type: "string"},
			},
			want: `ALTER TABLE "users" RENAME COLUMN "name" TO "full_name"`,
		},
		{
			name: "set_not_null",
			change: ModifyColumn{
				Table:   "users",
				From:    ColumnSnapshot{Name: "name", Type: "string", Nullable: true},
				To:      ColumnSnapshot{Name: "name", Type: "string"},
				Aspects: AspectNullable,
			},
			want: `ALTER TABLE "users" ALTER COLUMN "name" SET NOT NULL`,
		},
		{
			name: "set_default",
			change: ModifyColumn{
				Table:   "users",
				From:    ColumnSnapshot{Name: "name", Type: "string"},
				To:      ColumnSnapshot{Name: "name", Type: "string", Default: "anon"},
				Aspects: AspectDefault,
			},
			want: `ALTER TABLE "users" ALTER COLUMN "name" SET DEFAULT 'anon'`,
		},
		{
			name: "alter_type",
			change: ModifyColumn{
				Table:   "users",
				From:    ColumnSnapshot{Name: "age", Type: "int"},
				To:      ColumnSnapshot{Name: "age", Type: "bigint"},
				Aspects: AspectType,
			},
			want: `ALTER TABLE "users" ALTER COLUMN "age" TYPE bigint`,
		},
		{
			name:   "add_index",
			change: AddIndex{Table: "users", Index: IndexSnapshot{Columns: []string{"email"}, Unique: true}},
			want:   `CREATE UNIQUE INDEX "idx_users_email" ON "users" ("email")`,
		},
		{
			name:   "drop_index",
			change: DropIndex{Table: "users", Index: IndexSnapshot{Columns: []string{"email"}}},
			want:   `DROP INDEX "idx_users_email"`,
		},
		{
			name:   "modify_enum_adds_values",
			change: ModifyEnum{From: s.Enums[0], To: EnumSnapshot{Name: "user_status", Values: []string{"active", "banned", "suspended"}}},
			want:   `ALTER TYPE "user_status" ADD VALUE 'suspended'`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmts, err := MigrationSQL(pg, []Change{tt.change}, s)
			require.NoError(t, err)
			require.Len(t, stmts, 1)
			assert.Equal(t, tt.want, stmts[0])
		})
	}
}

// Literal values embedded in DDL come from trusted schema input but still
// get their quote characters doubled.
func TestMigrationSQLLiteralQuoting(t *testing.T) {
	s := New()
	s.Enums = []EnumSnapshot{{Name: "mood", Values: []string{"it's fine"}}}
	stmts, err := MigrationSQL(pg, []Change{AddEnum{Enum: s.Enums[0]}}, s)
	require.NoError(t, err)
	assert.Equal(t, `CREATE TYPE "mood" AS ENUM ('it''s fine')`, stmts[0])

	stmts, err = MigrationSQL(pg, []Change{
		AddColumn{Table: "t", Column: ColumnSnapshot{Name: "c", Type: "string", Default: "o'clock"}},
	}, s)
	require.NoError(t, err)
	assert.Contains(t, stmts[0], `DEFAULT 'o''clock'`)
}

func TestMigrationSQLSQLiteRestrictions(t *testing.T) {
	// No in-place column type change on the embedded profile.
	_, err := MigrationSQL(lite, []Change{
		ModifyColumn{
			Table:   "users",
			From:    ColumnSnapshot{Name: "age", Type: "int"},
			To:      ColumnSnapshot{Name: "age", Type: "bigint"},
			Aspects: AspectType,
		},
	}, New())
	assert.True(t, stratum.IsUnsupported(err))

	// Enum type DDL is a no-op, not an error.
	stmts, err := MigrationSQL(lite, []Change{
		AddEnum{Enum: EnumSnapshot{Name: "mood", Values: []string{"a"}}},
		DropEnum{Enum: EnumSnapshot{Name: "mood", Values: []string{"a"}}},
	}, New())
	require.NoError(t, err)
	assert.Empty(t, stmts)
}

// Rollback SQL is the structural inverse: generating forward then rollback
// DDL returns every affected entity to its pre-change shape.
func TestRollbackSQL(t *testing.T) {
	from := usersSnapshot()
	to := usersSnapshot()
	tbl, _ := to.Table("users")
	tbl.Columns = append(tbl.Columns, ColumnSnapshot{Name: "age", Type: "int", Nullable: true})
	tbl.Columns[2].Name = "full_name"
	to.Tables = append(to.Tables, TableSnapshot{
		Name:    "tags",
		Columns: []ColumnSnapshot{{Name: "id", Type: "bigint", Primary: true}},
	})

	changes := Diff(from, to)
	forward, err := MigrationSQL(pg, changes, to)
	require.NoError(t, err)
	rollback, err := RollbackSQL(pg, changes, from)
	require.NoError(t, err)

	joined := strings.Join(rollback, "\n")
	assert.Contains(t, joined, `DROP TABLE "tags"`)
	assert.Contains(t, joined, `ALTER TABLE "users" DROP COLUMN "age"`)
	assert.Contains(t, joined, `RENAME COLUMN "full_name" TO "name"`)

	// The rollback undoes the forward list back-to-front.
	require.NotEmpty(t, forward)
	assert.Contains(t, forward[0], `CREATE TABLE "tags"`)
	assert.Contains(t, rollback[len(rollback)-1], `DROP TABLE "tags"`)
}
