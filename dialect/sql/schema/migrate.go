package schema

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stratumdb/stratum"
	"github.com/stratumdb/stratum/dialect"
	"github.com/stratumdb/stratum/dialect/sql"
)

// DefaultHistoryTable is the reserved ledger table name.
const DefaultHistoryTable = "schema_migrations"

// AppliedMigration is one row of the history ledger, append-only.
type AppliedMigration struct {
	Name      string
	Checksum  string
	AppliedAt time.Time
}

// Drift reports an applied migration whose on-disk text no longer matches
// what was recorded at apply time.
type Drift struct {
	Name    string
	Applied string // checksum recorded in the ledger
	Current string // checksum of the on-disk text
}

// ApplyReport describes one apply call. In dry-run mode Executed is false
// and the statement list shows exactly what would have run.
type ApplyReport struct {
	Name       string
	Checksum   string
	Statements []string
	Executed   bool
}

// Migrate applies and tracks migrations against a live database through
// the execution boundary. It never opens transactions itself: the
// body-then-ledger pair is one logical unit, and callers that need
// atomicity run Apply inside a transaction they control.
type Migrate struct {
	drv         dialect.Driver
	d           dialect.Dialect
	log         *slog.Logger
	table       string
	store       Store
	snapshotKey string
	dryRun      bool
}

// MigrateOption configures a Migrate.
type MigrateOption func(*Migrate)

// WithHistoryTable overrides the ledger table name.
func WithHistoryTable(name string) MigrateOption {
	return func(m *Migrate) { m.table = name }
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) MigrateOption {
	return func(m *Migrate) { m.log = log }
}

// WithSnapshotStore wires a snapshot store for AutoMigrate.
func WithSnapshotStore(store Store, key string) MigrateOption {
	return func(m *Migrate) {
		m.store = store
		m.snapshotKey = key
	}
}

// WithDryRun makes Apply report its statements without executing them.
func WithDryRun(dry bool) MigrateOption {
	return func(m *Migrate) { m.dryRun = dry }
}

// NewMigrate returns a Migrate bound to the driver's dialect.
func NewMigrate(drv *sql.Driver, opts ...MigrateOption) (*Migrate, error) {
	d, err := dialect.New(drv.Dialect())
	if err != nil {
		return nil, err
	}
	m := &Migrate{
		drv:   drv,
		d:     d,
		log:   slog.Default(),
		table: DefaultHistoryTable,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Checksum returns the hex sha256 of a migration body. It is the identity
// check for drift detection and is stored with every ledger row.
func Checksum(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ensureHistory creates the ledger table if missing.
func (m *Migrate) ensureHistory(ctx context.Context) error {
	id := m.d.Quote("id") + " INTEGER PRIMARY KEY AUTOINCREMENT"
	if m.d.Name() == dialect.Postgres {
		id = m.d.Quote("id") + " bigserial PRIMARY KEY"
	}
	stmt := "CREATE TABLE IF NOT EXISTS " + m.d.Quote(m.table) + " (" +
		id + ", " +
		m.d.Quote("name") + " " + columnTypeOf(m.d, "string") + " NOT NULL UNIQUE, " +
		m.d.Quote("checksum") + " " + columnTypeOf(m.d, "string") + " NOT NULL, " +
		m.d.Quote("applied_at") + " " + columnTypeOf(m.d, "datetime") + " NOT NULL DEFAULT CURRENT_TIMESTAMP)"
	if err := m.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
		return stratum.NewMigrationError(m.table, stmt, err)
	}
	return nil
}

func columnTypeOf(d dialect.Dialect, canonical string) string {
	t, err := d.ColumnType(canonical)
	if err != nil {
		return "text"
	}
	return t
}

// Applied lists the ledger rows in application order.
func (m *Migrate) Applied(ctx context.Context) ([]AppliedMigration, error) {
	if err := m.ensureHistory(ctx); err != nil {
		return nil, err
	}
	query := "SELECT " + m.d.Quote("name") + ", " + m.d.Quote("checksum") + ", " + m.d.Quote("applied_at") +
		" FROM " + m.d.Quote(m.table) + " ORDER BY " + m.d.Quote("id")
	rows, err := sql.QueryMaps(ctx, m.drv, query, nil)
	if err != nil {
		return nil, stratum.NewMigrationError(m.table, query, err)
	}
	out := make([]AppliedMigration, 0, len(rows))
	for _, row := range rows {
		a := AppliedMigration{
			Name:     toString(row["name"]),
			Checksum: toString(row["checksum"]),
		}
		if ts, ok := row["applied_at"].(time.Time); ok {
			a.AppliedAt = ts
		}
		out = append(out, a)
	}
	return out, nil
}

// Apply runs one migration and records it in the ledger. In dry-run mode
// it returns the checksum and statement list without touching the database.
func (m *Migrate) Apply(ctx context.Context, f MigrationFile) (*ApplyReport, error) {
	report := &ApplyReport{
		Name:       f.Name,
		Checksum:   Checksum(f.SQL),
		Statements: SplitStatements(f.SQL),
	}
	if m.dryRun {
		return report, nil
	}
	if err := m.ensureHistory(ctx); err != nil {
		return nil, err
	}
	runID := uuid.New()
	m.log.Info("applying migration", "run_id", runID, "name", f.Name, "statements", len(report.Statements))
	for _, stmt := range report.Statements {
		if err := m.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return nil, stratum.NewMigrationError(f.Name, stmt, err)
		}
	}
	insert := "INSERT INTO " + m.d.Quote(m.table) +
		" (" + m.d.Quote("name") + ", " + m.d.Quote("checksum") + ", " + m.d.Quote("applied_at") + ")" +
		" VALUES (" + m.d.Placeholder(1) + ", " + m.d.Placeholder(2) + ", " + m.d.Now() + ")"
	if err := m.drv.Exec(ctx, insert, []any{f.Name, report.Checksum}, nil); err != nil {
		return nil, stratum.NewMigrationError(f.Name, insert, err)
	}
	report.Executed = true
	m.log.Info("migration applied", "run_id", runID, "name", f.Name)
	return report, nil
}

// Pending returns the files not yet present in the ledger, ascending by
// sequence.
func (m *Migrate) Pending(ctx context.Context, files []MigrationFile) ([]MigrationFile, error) {
	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	return pendingOf(applied, files), nil
}

func pendingOf(applied []AppliedMigration, files []MigrationFile) []MigrationFile {
	seen := make(map[string]bool, len(applied))
	for _, a := range applied {
		seen[a.Name] = true
	}
	var pending []MigrationFile
	for _, f := range files {
		if !seen[f.Name] {
			pending = append(pending, f)
		}
	}
	return pending
}

// DetectDrift recomputes the checksum of every file whose name matches an
// applied ledger entry and reports mismatches: the migration text was
// edited after it ran.
func (m *Migrate) DetectDrift(ctx context.Context, files []MigrationFile) ([]Drift, error) {
	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]string, len(files))
	for _, f := range files {
		byName[f.Name] = Checksum(f.SQL)
	}
	var drift []Drift
	for _, a := range applied {
		current, ok := byName[a.Name]
		if !ok || current == a.Checksum {
			continue
		}
		drift = append(drift, Drift{Name: a.Name, Applied: a.Checksum, Current: current})
	}
	return drift, nil
}

// DetectOutOfOrder returns the names of pending files whose sequence
// precedes the most recently applied file's sequence, typical of merging a
// branch that authored migrations in parallel.
func (m *Migrate) DetectOutOfOrder(ctx context.Context, files []MigrationFile) ([]string, error) {
	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	latest := 0
	for _, a := range applied {
		seq, _, err := ParseMigrationName(a.Name)
		if err != nil {
			continue
		}
		if seq > latest {
			latest = seq
		}
	}
	var out []string
	for _, f := range pendingOf(applied, files) {
		if f.Sequence < latest {
			out = append(out, f.Name)
		}
	}
	return out, nil
}

// AutoMigrateReport describes one AutoMigrate run.
type AutoMigrateReport struct {
	RunID      uuid.UUID
	Changes    []Change
	Statements []string
}

// AutoMigrate diffs the current declared snapshot against the stored
// previous one, applies the resulting DDL directly, and persists the new
// snapshot. Destructive changes are logged but not blocked; drift and
// out-of-order detection remain separate opt-in checks. Running it twice
// with no schema edits in between performs zero DDL on the second call.
func (m *Migrate) AutoMigrate(ctx context.Context, current *Snapshot) (*AutoMigrateReport, error) {
	if m.store == nil {
		return nil, fmt.Errorf("schema: AutoMigrate requires a snapshot store")
	}
	previous, ok, err := m.store.Load(m.snapshotKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		previous = New()
	}
	changes := Diff(previous, current)
	report := &AutoMigrateReport{RunID: uuid.New(), Changes: changes}
	for _, warn := range DestructiveChanges(changes) {
		m.log.Warn("destructive schema change", "run_id", report.RunID, "change", warn)
	}
	// Diff orders enum changes last, but enum types must exist before the
	// tables and columns that use them.
	if ok {
		report.Statements, err = MigrationSQL(m.d, hoistEnumAdds(changes), current)
	} else {
		report.Statements, err = BootstrapSQL(m.d, current)
	}
	if err != nil {
		return nil, err
	}
	for _, stmt := range report.Statements {
		if err := m.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return nil, stratum.NewMigrationError(m.snapshotKey, stmt, err)
		}
	}
	if err := m.store.Save(m.snapshotKey, current); err != nil {
		return nil, err
	}
	m.log.Info("schema synchronized", "run_id", report.RunID, "changes", len(changes), "statements", len(report.Statements))
	return report, nil
}

// hoistEnumAdds moves enum type creation ahead of the table and column
// changes that reference the new types.
func hoistEnumAdds(changes []Change) []Change {
	var enums, rest []Change
	for _, c := range changes {
		if _, isAdd := c.(AddEnum); isAdd {
			enums = append(enums, c)
		} else {
			rest = append(rest, c)
		}
	}
	if len(enums) == 0 {
		return changes
	}
	return append(enums, rest...)
}

func toString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
