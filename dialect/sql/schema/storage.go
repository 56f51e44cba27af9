package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

// Store persists snapshots between runs. Load reports absence without an
// error: a missing previous snapshot means "diff against empty".
type Store interface {
	Load(key string) (*Snapshot, bool, error)
	Save(key string, s *Snapshot) error
}

// Codec is the snapshot encoding used by a FileStore.
type Codec interface {
	Marshal(s *Snapshot) ([]byte, error)
	Unmarshal(data []byte, s *Snapshot) error
	// Ext is the file extension including the dot.
	Ext() string
}

// JSONCodec encodes snapshots as the canonical JSON document. It is the
// default codec: the output is diffable and readable in review.
type JSONCodec struct{}

func (JSONCodec) Marshal(s *Snapshot) ([]byte, error)   { return json.MarshalIndent(s, "", "  ") }
func (JSONCodec) Unmarshal(b []byte, s *Snapshot) error { return json.Unmarshal(b, s) }
func (JSONCodec) Ext() string                           { return ".json" }

// MsgpackCodec encodes snapshots as msgpack, for callers that store many
// snapshots and care about size over reviewability.
type MsgpackCodec struct{}

func (MsgpackCodec) Marshal(s *Snapshot) ([]byte, error)   { return msgpack.Marshal(s) }
func (MsgpackCodec) Unmarshal(b []byte, s *Snapshot) error { return msgpack.Unmarshal(b, s) }
func (MsgpackCodec) Ext() string                           { return ".msgpack" }

// FileStore stores each snapshot as one file under a directory, creating
// parent directories on demand.
type FileStore struct {
	dir   string
	codec Codec
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithCodec overrides the default JSON codec.
func WithCodec(c Codec) FileStoreOption {
	return func(fs *FileStore) { fs.codec = c }
}

// NewFileStore returns a Store rooted at dir.
func NewFileStore(dir string, opts ...FileStoreOption) *FileStore {
	fs := &FileStore{dir: dir, codec: JSONCodec{}}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

func (fs *FileStore) path(key string) string {
	return filepath.Join(fs.dir, key+fs.codec.Ext())
}

// Load reads the snapshot stored under key. A missing file is not an error.
func (fs *FileStore) Load(key string) (*Snapshot, bool, error) {
	data, err := os.ReadFile(fs.path(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("schema: load snapshot %q: %w", key, err)
	}
	s := New()
	if err := fs.codec.Unmarshal(data, s); err != nil {
		return nil, false, fmt.Errorf("schema: load snapshot %q: %w", key, err)
	}
	return s, true, nil
}

// Save writes the snapshot under key, creating the directory if needed.
func (fs *FileStore) Save(key string, s *Snapshot) error {
	data, err := fs.codec.Marshal(s)
	if err != nil {
		return fmt.Errorf("schema: save snapshot %q: %w", key, err)
	}
	path := fs.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("schema: save snapshot %q: %w", key, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("schema: save snapshot %q: %w", key, err)
	}
	return nil
}
