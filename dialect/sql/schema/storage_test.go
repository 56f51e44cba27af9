package schema

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		store := NewFileStore(filepath.Join(t.TempDir(), "nested", "dir"))

		_, ok, err := store.Load("schema")
		require.NoError(t, err)
		assert.False(t, ok)

		want := usersSnapshot()
		require.NoError(t, store.Save("schema", want))

		got, ok, err := store.Load("schema")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, got)
	})

	t.Run("msgpack", func(t *testing.T) {
		store := NewFileStore(t.TempDir(), WithCodec(MsgpackCodec{}))

		want := usersSnapshot()
		require.NoError(t, store.Save("schema", want))

		got, ok, err := store.Load("schema")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, got)
	})
}

func TestFileStoreCorruptFile(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	require.NoError(t, writeFile(t, filepath.Join(dir, "schema.json"), "{not json"))

	_, _, err := store.Load("schema")
	assert.Error(t, err)
}
