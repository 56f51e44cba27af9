package schema

// Change is one atomic structural difference between two snapshots. The
// set of kinds is closed; generators switch over it exhaustively.
type Change interface {
	change()
}

// AddTable creates a table with all its columns, keys and indexes.
type AddTable struct {
	Table TableSnapshot
}

// DropTable removes a table. The full definition is carried so the change
// is reversible.
type DropTable struct {
	Table TableSnapshot
}

// AddColumn adds a column to an existing table.
type AddColumn struct {
	Table  string
	Column ColumnSnapshot
}

// DropColumn removes a column from an existing table.
type DropColumn struct {
	Table  string
	Column ColumnSnapshot
}

// RenameColumn renames From to To. Confidence is the similarity score that
// paired the two columns.
type RenameColumn struct {
	Table      string
	From, To   ColumnSnapshot
	Confidence float64
}

// ColumnAspect is a bit set naming which sub-fields of a column changed.
type ColumnAspect int

const (
	AspectType ColumnAspect = 1 << iota
	AspectNullable
	AspectDefault
)

// ModifyColumn alters a column in place. Aspects names exactly the
// sub-fields that differ between From and To.
type ModifyColumn struct {
	Table    string
	From, To ColumnSnapshot
	Aspects  ColumnAspect
}

// AddIndex creates an index.
type AddIndex struct {
	Table string
	Index IndexSnapshot
}

// DropIndex removes an index.
type DropIndex struct {
	Table string
	Index IndexSnapshot
}

// AddEnum declares an enum type.
type AddEnum struct {
	Enum EnumSnapshot
}

// DropEnum removes an enum type.
type DropEnum struct {
	Enum EnumSnapshot
}

// ModifyEnum changes an enum's value set.
type ModifyEnum struct {
	From, To EnumSnapshot
}

func (AddTable) change()     {}
func (DropTable) change()    {}
func (AddColumn) change()    {}
func (DropColumn) change()   {}
func (RenameColumn) change() {}
func (ModifyColumn) change() {}
func (AddIndex) change()     {}
func (DropIndex) change()    {}
func (AddEnum) change()      {}
func (DropEnum) change()     {}
func (ModifyEnum) change()   {}

// RenameThreshold is the minimum similarity score at which a removed and an
// added column are paired as a rename.
const RenameThreshold = 0.7

// Diff computes the ordered change list turning snapshot `from` into
// snapshot `to`. Both snapshots are read-only inputs; ordering is
// deterministic for fixed declaration order: table additions, table
// removals, then per shared table renames, column additions, column
// removals and alterations, then index changes, then enum changes.
func Diff(from, to *Snapshot) []Change {
	if from == nil {
		from = New()
	}
	if to == nil {
		to = New()
	}
	var changes []Change
	for _, t := range to.Tables {
		if _, ok := from.Table(t.Name); !ok {
			changes = append(changes, AddTable{Table: t})
		}
	}
	for _, t := range from.Tables {
		if _, ok := to.Table(t.Name); !ok {
			changes = append(changes, DropTable{Table: t})
		}
	}
	for _, nt := range to.Tables {
		ot, ok := from.Table(nt.Name)
		if !ok {
			continue
		}
		changes = append(changes, diffTable(ot, &nt)...)
	}
	changes = append(changes, diffEnums(from, to)...)
	return changes
}

func diffTable(old, next *TableSnapshot) []Change {
	var (
		added   []ColumnSnapshot
		removed []ColumnSnapshot
	)
	for _, c := range next.Columns {
		if _, ok := old.Column(c.Name); !ok {
			added = append(added, c)
		}
	}
	for _, c := range old.Columns {
		if _, ok := next.Column(c.Name); !ok {
			removed = append(removed, c)
		}
	}

	renames, added, removed := detectRenames(next.Name, removed, added)

	var changes []Change
	for _, r := range renames {
		changes = append(changes, r)
	}
	for _, c := range added {
		changes = append(changes, AddColumn{Table: next.Name, Column: c})
	}
	for _, c := range removed {
		changes = append(changes, DropColumn{Table: next.Name, Column: c})
	}
	for _, nc := range next.Columns {
		oc, ok := old.Column(nc.Name)
		if !ok {
			continue
		}
		if aspects := columnAspects(oc, nc); aspects != 0 {
			changes = append(changes, ModifyColumn{Table: next.Name, From: oc, To: nc, Aspects: aspects})
		}
	}
	changes = append(changes, diffIndexes(old, next)...)
	return changes
}

// detectRenames pairs removed with added columns by structural similarity.
// Pairing is greedy with no backtracking: removed columns are visited in
// declaration order and each takes its best-scoring unmatched candidate at
// or above the threshold. Ties break to the first-declared candidate.
func detectRenames(table string, removed, added []ColumnSnapshot) ([]RenameColumn, []ColumnSnapshot, []ColumnSnapshot) {
	var renames []RenameColumn
	matched := make([]bool, len(added))
	var stillRemoved []ColumnSnapshot
	for _, rc := range removed {
		best, bestScore := -1, 0.0
		for i, ac := range added {
			if matched[i] {
				continue
			}
			if score := similarity(rc, ac); score >= RenameThreshold && score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			stillRemoved = append(stillRemoved, rc)
			continue
		}
		matched[best] = true
		renames = append(renames, RenameColumn{
			Table:      table,
			From:       rc,
			To:         added[best],
			Confidence: bestScore,
		})
	}
	var stillAdded []ColumnSnapshot
	for i, ac := range added {
		if !matched[i] {
			stillAdded = append(stillAdded, ac)
		}
	}
	return renames, stillAdded, stillRemoved
}

// similarity scores two columns in [0,1]: type match weighs 3, each of
// nullable, primary and unique weighs 1.
func similarity(a, b ColumnSnapshot) float64 {
	score := 0.0
	if a.Type == b.Type {
		score += 3
	}
	if a.Nullable == b.Nullable {
		score++
	}
	if a.Primary == b.Primary {
		score++
	}
	if a.Unique == b.Unique {
		score++
	}
	return score / 6
}

func columnAspects(old, next ColumnSnapshot) ColumnAspect {
	var a ColumnAspect
	if old.Type != next.Type {
		a |= AspectType
	}
	if old.Nullable != next.Nullable {
		a |= AspectNullable
	}
	if old.Default != next.Default {
		a |= AspectDefault
	}
	return a
}

// diffIndexes compares index sets by column-tuple identity.
func diffIndexes(old, next *TableSnapshot) []Change {
	oldKeys := make(map[string]bool, len(old.Indexes))
	for _, i := range old.Indexes {
		oldKeys[i.Key()] = true
	}
	newKeys := make(map[string]bool, len(next.Indexes))
	for _, i := range next.Indexes {
		newKeys[i.Key()] = true
	}
	var changes []Change
	for _, i := range next.Indexes {
		if !oldKeys[i.Key()] {
			changes = append(changes, AddIndex{Table: next.Name, Index: i})
		}
	}
	for _, i := range old.Indexes {
		if !newKeys[i.Key()] {
			changes = append(changes, DropIndex{Table: next.Name, Index: i})
		}
	}
	return changes
}

func diffEnums(from, to *Snapshot) []Change {
	var changes []Change
	for _, e := range to.Enums {
		if _, ok := from.Enum(e.Name); !ok {
			changes = append(changes, AddEnum{Enum: e})
		}
	}
	for _, e := range from.Enums {
		if _, ok := to.Enum(e.Name); !ok {
			changes = append(changes, DropEnum{Enum: e})
		}
	}
	for _, ne := range to.Enums {
		oe, ok := from.Enum(ne.Name)
		if !ok {
			continue
		}
		if !equalStrings(oe.Values, ne.Values) {
			changes = append(changes, ModifyEnum{From: oe, To: ne})
		}
	}
	return changes
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Reverse inverts every change's direction and replays the list in reverse
// order, so generating SQL from the result rolls the migration back.
func Reverse(changes []Change) []Change {
	out := make([]Change, 0, len(changes))
	for i := len(changes) - 1; i >= 0; i-- {
		out = append(out, reverseChange(changes[i]))
	}
	return out
}

func reverseChange(c Change) Change {
	switch c := c.(type) {
	case AddTable:
		return DropTable{Table: c.Table}
	case DropTable:
		return AddTable{Table: c.Table}
	case AddColumn:
		return DropColumn{Table: c.Table, Column: c.Column}
	case DropColumn:
		return AddColumn{Table: c.Table, Column: c.Column}
	case RenameColumn:
		return RenameColumn{Table: c.Table, From: c.To, To: c.From, Confidence: c.Confidence}
	case ModifyColumn:
		return ModifyColumn{Table: c.Table, From: c.To, To: c.From, Aspects: c.Aspects}
	case AddIndex:
		return DropIndex{Table: c.Table, Index: c.Index}
	case DropIndex:
		return AddIndex{Table: c.Table, Index: c.Index}
	case AddEnum:
		return DropEnum{Enum: c.Enum}
	case DropEnum:
		return AddEnum{Enum: c.Enum}
	case ModifyEnum:
		return ModifyEnum{From: c.To, To: c.From}
	default:
		return c
	}
}
