package indexing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorManager_LoadSave(t *testing.T) {
	cursorPath := filepath.Join(t.TempDir(), "cursor.json")
	manager := NewCursorManager(cursorPath)

	cursor, err := manager.Load()
	require.NoError(t, err)
	assert.True(t, cursor.IsEmpty())
	assert.Equal(t, CursorVersion, cursor.Version)

	err = manager.Save(Cursor{
		Corpus:         "data/corpus.jsonl",
		Collection:     "demo_k8s_helm",
		NextLine:       256,
		ProcessedCount: 240,
	})
	require.NoError(t, err)

	loaded, err := manager.Load()
	require.NoError(t, err)
	assert.Equal(t, CursorVersion, loaded.Version)
	assert.Equal(t, 256, loaded.NextLine)
	assert.Equal(t, 240, loaded.ProcessedCount)
	assert.True(t, loaded.Matches("data/corpus.jsonl", "demo_k8s_helm"))
	assert.False(t, loaded.Matches("data/corpus.jsonl", "other"))
	assert.False(t, loaded.UpdatedAt.IsZero())

	_, err = os.Stat(cursorPath + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestCursorManager_Reset(t *testing.T) {
	cursorPath := filepath.Join(t.TempDir(), "cursor.json")
	manager := NewCursorManager(cursorPath)

	require.NoError(t, manager.Save(Cursor{NextLine: 3}))
	require.NoError(t, manager.Reset())

	_, err := os.Stat(cursorPath)
	assert.True(t, os.IsNotExist(err))

	loaded, err := manager.Load()
	require.NoError(t, err)
	assert.True(t, loaded.IsEmpty())

	// Resetting twice is fine.
	assert.NoError(t, manager.Reset())
}

func TestCursorManager_LoadCorrupt(t *testing.T) {
	cursorPath := filepath.Join(t.TempDir(), "cursor.json")
	require.NoError(t, os.WriteFile(cursorPath, []byte("{not json"), 0o644))

	_, err := NewCursorManager(cursorPath).Load()
	assert.ErrorContains(t, err, "parse cursor file")
}

func TestCursorManager_Lock(t *testing.T) {
	cursorPath := filepath.Join(t.TempDir(), "cursor.json")

	manager1 := NewCursorManager(cursorPath)
	manager2 := NewCursorManager(cursorPath)

	require.NoError(t, manager1.Lock())

	err := manager2.Lock()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "locked by another index run")

	require.NoError(t, manager1.Unlock())
	require.NoError(t, manager2.Lock())
	require.NoError(t, manager2.Unlock())
}
