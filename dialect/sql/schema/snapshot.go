// Package schema implements the snapshot, diff, DDL-generation and
// migration-tracking layer of the engine. A snapshot is a declarative,
// serializable description of tables, columns, indexes, foreign keys and
// enums, independent of any live database; diffing compares two immutable
// snapshots and never mutates either.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SnapshotVersion is the on-disk snapshot document version.
const SnapshotVersion = 1

// ColumnSnapshot describes one column. Type is a canonical scalar name
// (string, int, bigint, float, bool, datetime, json, uuid, bytes) or the
// name of an enum declared in the owning snapshot. Immutable value;
// recreated wholesale whenever declared definitions change.
type ColumnSnapshot struct {
	Name     string `json:"-"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable,omitempty"`
	Primary  bool   `json:"primary,omitempty"`
	Unique   bool   `json:"unique,omitempty"`
	// Default is a literal default value, kept dialect-agnostic at the
	// snapshot level and rendered by the generator.
	Default string `json:"default,omitempty"`
	// Sensitive and Hidden are visibility flags carried through for the
	// projection layer; they never affect DDL.
	Sensitive bool `json:"sensitive,omitempty"`
	Hidden    bool `json:"hidden,omitempty"`
}

// IndexSnapshot is an ordered column-name tuple, optionally unique.
type IndexSnapshot struct {
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique,omitempty"`
}

// Key returns the identity of the index: its column tuple plus uniqueness.
func (i IndexSnapshot) Key() string {
	k := ""
	for _, c := range i.Columns {
		k += c + ","
	}
	if i.Unique {
		k += "unique"
	}
	return k
}

// ForeignKeySnapshot is a single-column reference to another table.
type ForeignKeySnapshot struct {
	Column       string `json:"column"`
	TargetTable  string `json:"targetTable"`
	TargetColumn string `json:"targetColumn"`
}

// TableSnapshot describes one table. Columns preserve declaration order so
// generated column-order SQL is deterministic.
type TableSnapshot struct {
	Name        string
	Columns     []ColumnSnapshot
	Indexes     []IndexSnapshot
	ForeignKeys []ForeignKeySnapshot
}

// Column returns the column with the given name and whether it exists.
func (t *TableSnapshot) Column(name string) (ColumnSnapshot, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSnapshot{}, false
}

// PrimaryKey returns the names of the primary key columns in declared order.
func (t *TableSnapshot) PrimaryKey() []string {
	var pk []string
	for _, c := range t.Columns {
		if c.Primary {
			pk = append(pk, c.Name)
		}
	}
	return pk
}

// EnumSnapshot is a named, ordered list of enum values.
type EnumSnapshot struct {
	Name   string
	Values []string
}

// Snapshot is the sole unit of schema state persisted between runs. The
// current snapshot is built fresh from declared definitions; the previous
// one is loaded from storage.
type Snapshot struct {
	Version int
	Tables  []TableSnapshot
	Enums   []EnumSnapshot
}

// New returns an empty snapshot at the current document version.
func New() *Snapshot {
	return &Snapshot{Version: SnapshotVersion}
}

// Table returns the table with the given name and whether it exists.
func (s *Snapshot) Table(name string) (*TableSnapshot, bool) {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// Enum returns the enum with the given name and whether it exists.
func (s *Snapshot) Enum(name string) (EnumSnapshot, bool) {
	for _, e := range s.Enums {
		if e.Name == name {
			return e, true
		}
	}
	return EnumSnapshot{}, false
}

// The wire form is `{"version":1,"tables":{...},"enums":{...}}`. Tables,
// columns and enums are JSON objects whose key order is meaningful, so
// both directions go through explicit token handling instead of Go maps.

type tableBody struct {
	Columns     json.RawMessage      `json:"columns"`
	Indexes     []IndexSnapshot      `json:"indexes,omitempty"`
	ForeignKeys []ForeignKeySnapshot `json:"foreignKeys,omitempty"`
}

// MarshalJSON renders tables, columns and enums as objects in declaration
// order.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf(`{"version":%d,"tables":{`, s.Version))
	for i, t := range s.Tables {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, t.Name); err != nil {
			return nil, err
		}
		cols := bytes.NewBufferString("{")
		for j := range t.Columns {
			if j > 0 {
				cols.WriteByte(',')
			}
			if err := writeKey(cols, t.Columns[j].Name); err != nil {
				return nil, err
			}
			b, err := json.Marshal(t.Columns[j])
			if err != nil {
				return nil, err
			}
			cols.Write(b)
		}
		cols.WriteByte('}')
		body, err := json.Marshal(tableBody{
			Columns:     cols.Bytes(),
			Indexes:     t.Indexes,
			ForeignKeys: t.ForeignKeys,
		})
		if err != nil {
			return nil, err
		}
		buf.Write(body)
	}
	buf.WriteString(`},"enums":{`)
	for i, e := range s.Enums {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, e.Name); err != nil {
			return nil, err
		}
		b, err := json.Marshal(e.Values)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes the wire form, preserving object key order.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	for dec.More() {
		key, err := stringToken(dec)
		if err != nil {
			return err
		}
		switch key {
		case "version":
			if err := dec.Decode(&s.Version); err != nil {
				return err
			}
		case "tables":
			if err := s.decodeTables(dec); err != nil {
				return err
			}
		case "enums":
			if err := s.decodeEnums(dec); err != nil {
				return err
			}
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return err
			}
		}
	}
	return expectDelim(dec, '}')
}

func (s *Snapshot) decodeTables(dec *json.Decoder) error {
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	for dec.More() {
		name, err := stringToken(dec)
		if err != nil {
			return err
		}
		var body tableBody
		if err := dec.Decode(&body); err != nil {
			return err
		}
		t := TableSnapshot{
			Name:        name,
			Indexes:     body.Indexes,
			ForeignKeys: body.ForeignKeys,
		}
		if len(body.Columns) > 0 {
			cdec := json.NewDecoder(bytes.NewReader(body.Columns))
			if err := expectDelim(cdec, '{'); err != nil {
				return err
			}
			for cdec.More() {
				cname, err := stringToken(cdec)
				if err != nil {
					return err
				}
				var col ColumnSnapshot
				if err := cdec.Decode(&col); err != nil {
					return err
				}
				col.Name = cname
				t.Columns = append(t.Columns, col)
			}
			if err := expectDelim(cdec, '}'); err != nil {
				return err
			}
		}
		s.Tables = append(s.Tables, t)
	}
	return expectDelim(dec, '}')
}

func (s *Snapshot) decodeEnums(dec *json.Decoder) error {
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	for dec.More() {
		name, err := stringToken(dec)
		if err != nil {
			return err
		}
		var values []string
		if err := dec.Decode(&values); err != nil {
			return err
		}
		s.Enums = append(s.Enums, EnumSnapshot{Name: name, Values: values})
	}
	return expectDelim(dec, '}')
}

func writeKey(buf *bytes.Buffer, key string) error {
	b, err := json.Marshal(key)
	if err != nil {
		return err
	}
	buf.Write(b)
	buf.WriteByte(':')
	return nil
}

func expectDelim(dec *json.Decoder, d json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("schema: decode snapshot: %w", err)
	}
	if got, ok := tok.(json.Delim); !ok || got != d {
		return fmt.Errorf("schema: decode snapshot: expected %q, got %v", d, tok)
	}
	return nil
}

func stringToken(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("schema: decode snapshot: %w", err)
	}
	s, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("schema: decode snapshot: expected object key, got %v", tok)
	}
	return s, nil
}
