package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// JournalVersion is the journal document version.
const JournalVersion = 1

// JournalEntry records one locally created migration.
type JournalEntry struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	Checksum    string    `json:"checksum"`
}

// Journal is the developer-side ledger of authored migrations. It exists
// only to detect sequence-number collisions between concurrent authors and
// never drives application.
type Journal struct {
	Version    int            `json:"version"`
	Migrations []JournalEntry `json:"migrations"`
}

// NewJournal returns an empty journal at the current version.
func NewJournal() *Journal {
	return &Journal{Version: JournalVersion, Migrations: []JournalEntry{}}
}

// Append records a newly authored migration.
func (j *Journal) Append(name, description, sqlText string) {
	j.Migrations = append(j.Migrations, JournalEntry{
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
		Checksum:    Checksum(sqlText),
	})
}

// ReadJournal loads a journal document. A missing file yields an empty
// journal, not an error.
func ReadJournal(path string) (*Journal, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewJournal(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("schema: read journal: %w", err)
	}
	j := NewJournal()
	if err := json.Unmarshal(data, j); err != nil {
		return nil, fmt.Errorf("schema: read journal: %w", err)
	}
	return j, nil
}

// WriteJournal persists the journal, creating parent directories on demand.
func WriteJournal(path string, j *Journal) error {
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return fmt.Errorf("schema: write journal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("schema: write journal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("schema: write journal: %w", err)
	}
	return nil
}

// Collision is a sequence number claimed by a journal entry and a
// different on-disk filename, typical of concurrently authored branches.
// Suggested is the next free sequence for renumbering; nothing is renamed
// automatically.
type Collision struct {
	Sequence    int
	JournalName string
	FileName    string
	Suggested   int
}

// DetectCollisions compares the journal against the on-disk migration set.
func DetectCollisions(j *Journal, files []MigrationFile) []Collision {
	bySeq := make(map[int]string, len(files))
	for _, f := range files {
		bySeq[f.Sequence] = f.Name
	}
	next := NextSequence(files)
	var collisions []Collision
	for _, e := range j.Migrations {
		seq, _, err := ParseMigrationName(e.Name)
		if err != nil {
			continue
		}
		name, ok := bySeq[seq]
		if !ok || name == e.Name {
			continue
		}
		collisions = append(collisions, Collision{
			Sequence:    seq,
			JournalName: e.Name,
			FileName:    name,
			Suggested:   next,
		})
		next++
	}
	return collisions
}
